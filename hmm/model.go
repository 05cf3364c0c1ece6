package hmm

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Start is the sentence-initial pseudostate. It only ever appears as a
// transition source.
const Start = "START"

type logTable map[string]map[string]float64

// Model holds the log-probability tables of a first-order HMM. It is built by
// Train or LoadModel and never changes afterwards, so a single Model can be
// shared by any number of concurrent decoders.
type Model struct {
	transitions logTable
	emissions   logTable

	states     []string
	successors map[string][]string
}

func newModel(transitions, emissions logTable) *Model {
	m := Model{
		transitions: transitions,
		emissions:   emissions,
		successors:  make(map[string][]string, len(transitions)),
	}

	known := make(map[string]bool)
	for source, targets := range transitions {
		if source != Start {
			known[source] = true
		}
		next := make([]string, 0, len(targets))
		for target := range targets {
			known[target] = true
			next = append(next, target)
		}
		sort.Strings(next)
		m.successors[source] = next
	}
	for state := range emissions {
		known[state] = true
	}

	m.states = make([]string, 0, len(known))
	for state := range known {
		m.states = append(m.states, state)
	}
	sort.Strings(m.states)

	return &m
}

func (m *Model) TransitionScore(source, target string) (float64, bool) {
	targets, ok := m.transitions[source]
	if !ok {
		return 0, false
	}
	score, ok := targets[target]
	return score, ok
}

// EmissionScore expects word to be lowercased already.
func (m *Model) EmissionScore(state, word string) (float64, bool) {
	words, ok := m.emissions[state]
	if !ok {
		return 0, false
	}
	score, ok := words[word]
	return score, ok
}

// States returns every tag seen in training, sorted. Start is not included.
func (m *Model) States() []string {
	res := make([]string, len(m.states))
	copy(res, m.states)
	return res
}

func (m *Model) IsKnownTransitionSource(state string) bool {
	return len(m.successors[state]) > 0
}

// successorsOf returns the sorted targets of state. The slice is shared and
// must not be modified.
func (m *Model) successorsOf(state string) []string {
	return m.successors[state]
}

// Validate checks that every recorded distribution sums to one within
// tolerance and that Start is used only as a transition source.
func (m *Model) Validate(tolerance float64) error {
	if _, ok := m.emissions[Start]; ok {
		return fmt.Errorf("state %q must not emit words", Start)
	}
	for source, targets := range m.transitions {
		if _, ok := targets[Start]; ok {
			return fmt.Errorf("state %q is used as a transition target of %q", Start, source)
		}
		if err := checkDistribution(targets, tolerance); err != nil {
			return fmt.Errorf("transitions from %q: %w", source, err)
		}
	}
	for state, words := range m.emissions {
		if err := checkDistribution(words, tolerance); err != nil {
			return fmt.Errorf("emissions of %q: %w", state, err)
		}
	}
	return nil
}

func checkDistribution(dist map[string]float64, tolerance float64) error {
	if len(dist) == 0 {
		return fmt.Errorf("empty distribution")
	}
	sum := 0.0
	for key, logProb := range dist {
		if logProb > 0 || math.IsNaN(logProb) {
			return fmt.Errorf("invalid log-probability %v for %q", logProb, key)
		}
		sum += math.Exp(logProb)
	}
	if math.Abs(sum-1) > tolerance {
		return fmt.Errorf("probabilities sum to %v", sum)
	}
	return nil
}

type modelSnapshot struct {
	Transitions logTable `json:"transitions"`
	Emissions   logTable `json:"emissions"`
}

func (m *Model) MarshalJSON() ([]byte, error) {
	return json.Marshal(modelSnapshot{
		Transitions: m.transitions,
		Emissions:   m.emissions,
	})
}

// LoadModel rebuilds a Model from the output of Model.MarshalJSON.
func LoadModel(data []byte) (*Model, error) {
	var snapshot modelSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model: %w", err)
	}
	if snapshot.Transitions == nil {
		snapshot.Transitions = logTable{}
	}
	if snapshot.Emissions == nil {
		snapshot.Emissions = logTable{}
	}
	return newModel(snapshot.Transitions, snapshot.Emissions), nil
}
