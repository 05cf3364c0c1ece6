package hmm

import (
	"fmt"
	"math"
	"strings"
)

type countTable map[string]map[string]int

func (c countTable) inc(outer, inner string) {
	row, ok := c[outer]
	if !ok {
		row = make(map[string]int)
		c[outer] = row
	}
	row[inner]++
}

// normalize turns every row of raw counts into natural-log probabilities.
func (c countTable) normalize() logTable {
	res := make(logTable, len(c))
	for outer, row := range c {
		total := 0
		for _, count := range row {
			total += count
		}
		logRow := make(map[string]float64, len(row))
		for inner, count := range row {
			logRow[inner] = math.Log(float64(count) / float64(total))
		}
		res[outer] = logRow
	}
	return res
}

// Train estimates a Model from line-aligned word and tag sentences.
func Train(sentences, tags [][]string) (*Model, error) {
	if len(sentences) != len(tags) {
		return nil, &CorpusFormatError{
			Reason: fmt.Sprintf("%d sentence lines but %d tag lines", len(sentences), len(tags)),
		}
	}
	transitions, err := trainTransitions(tags)
	if err != nil {
		return nil, err
	}
	emissions, err := trainEmissions(sentences, tags)
	if err != nil {
		return nil, err
	}
	return newModel(transitions, emissions), nil
}

func trainTransitions(tagLines [][]string) (logTable, error) {
	counts := make(countTable)
	for i, tags := range tagLines {
		if len(tags) == 0 {
			return nil, &CorpusFormatError{Line: i + 1, Reason: "empty tag sequence"}
		}
		prev := Start
		for _, tag := range tags {
			if tag == Start {
				return nil, &CorpusFormatError{
					Line:   i + 1,
					Reason: fmt.Sprintf("tag %q is reserved", Start),
				}
			}
			counts.inc(prev, tag)
			prev = tag
		}
	}
	return counts.normalize(), nil
}

func trainEmissions(wordLines, tagLines [][]string) (logTable, error) {
	if len(wordLines) != len(tagLines) {
		return nil, &CorpusFormatError{
			Reason: fmt.Sprintf("%d sentence lines but %d tag lines", len(wordLines), len(tagLines)),
		}
	}
	counts := make(countTable)
	for i, words := range wordLines {
		tags := tagLines[i]
		if len(words) != len(tags) {
			return nil, &CorpusFormatError{
				Line:   i + 1,
				Reason: fmt.Sprintf("%d words but %d tags", len(words), len(tags)),
			}
		}
		for j, word := range words {
			counts.inc(tags[j], strings.ToLower(word))
		}
	}
	return counts.normalize(), nil
}
