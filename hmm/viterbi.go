package hmm

import (
	"sort"
	"strings"
)

// DefaultUnseenPenalty is the emission score used for a word never observed
// under a candidate state. It is far below any log-probability a corpus of
// realistic size produces, so it only decides between paths that are otherwise
// equally implausible.
const DefaultUnseenPenalty = -100.0

type Decoder struct {
	model   *Model
	penalty float64
}

func NewDecoder(model *Model, unseenPenalty float64) *Decoder {
	return &Decoder{
		model:   model,
		penalty: unseenPenalty,
	}
}

// Decode tags tokens with the default unseen-word penalty.
func Decode(model *Model, tokens []string) ([]string, error) {
	return NewDecoder(model, DefaultUnseenPenalty).Decode(tokens)
}

type frontier struct {
	states []string // sorted
	scores map[string]float64
}

// Decode returns the most likely tag for every token. Equal scores resolve to
// the lexicographically smallest state, both for backpointers and for the
// final state, so the result depends only on the model and the tokens.
func (d *Decoder) Decode(tokens []string) ([]string, error) {
	if len(tokens) == 0 {
		return []string{}, nil
	}

	curr := frontier{
		states: []string{Start},
		scores: map[string]float64{Start: 0},
	}
	backpointers := make([]map[string]string, len(tokens))

	for t, token := range tokens {
		word := strings.ToLower(token)
		next, back := d.step(curr, word)
		if len(next.states) == 0 {
			return nil, &DecodeError{Step: t, Token: token}
		}
		backpointers[t] = back
		curr = next
	}

	last := curr.states[0]
	for _, state := range curr.states[1:] {
		if curr.scores[state] > curr.scores[last] {
			last = state
		}
	}

	tags := make([]string, len(tokens))
	for t := len(tokens) - 1; t >= 0; t-- {
		tags[t] = last
		last = backpointers[t][last]
	}
	return tags, nil
}

func (d *Decoder) step(curr frontier, word string) (frontier, map[string]string) {
	next := frontier{scores: make(map[string]float64)}
	back := make(map[string]string)

	// curr.states is sorted and only a strictly better score replaces an
	// entry, so the smallest source wins a tie.
	for _, source := range curr.states {
		base := curr.scores[source]
		for _, target := range d.model.successorsOf(source) {
			transition, _ := d.model.TransitionScore(source, target)
			emission, ok := d.model.EmissionScore(target, word)
			if !ok {
				emission = d.penalty
			}
			candidate := base + transition + emission

			best, seen := next.scores[target]
			if seen && candidate <= best {
				continue
			}
			if !seen {
				next.states = append(next.states, target)
			}
			next.scores[target] = candidate
			back[target] = source
		}
	}

	sort.Strings(next.states)
	return next, back
}
