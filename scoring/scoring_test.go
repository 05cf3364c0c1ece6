package scoring

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"text2phenotype.com/postag/corpus"
	"text2phenotype.com/postag/hmm"
)

type taggerFunc func(tokens []string) ([]string, error)

func (f taggerFunc) Decode(tokens []string) ([]string, error) {
	return f(tokens)
}

func TestCompare(t *testing.T) {
	r, err := Compare([]string{"DET", "NOUN", "VERB"}, []string{"DET", "VERB", "VERB"})
	require.NoError(t, err)
	assert.Equal(t, Report{Correct: 2, Wrong: 1}, r)
	assert.Equal(t, 3, r.Total())
	assert.InDelta(t, 2.0/3.0, r.Accuracy(), 1e-12)

	_, err = Compare([]string{"DET"}, []string{"DET", "NOUN"})
	assert.Error(t, err)
}

func TestReportAdd(t *testing.T) {
	r := Report{Correct: 1, Wrong: 2}
	r.Add(Report{Correct: 3, Wrong: 4})
	assert.Equal(t, Report{Correct: 4, Wrong: 6}, r)
	assert.Zero(t, Report{}.Accuracy())
}

func TestEvaluate(t *testing.T) {
	model, err := hmm.Train(
		[][]string{{"the", "dog", "runs"}, {"a", "cat", "sleeps"}},
		[][]string{{"DET", "NOUN", "VERB"}, {"DET", "NOUN", "VERB"}},
	)
	require.NoError(t, err)

	test := corpus.Corpus{
		Sentences: [][]string{{"the", "cat", "runs"}, {"a", "dog", "sleeps"}},
		Tags:      [][]string{{"DET", "NOUN", "VERB"}, {"DET", "NOUN", "NOUN"}},
	}
	var attempts bytes.Buffer
	r, err := Evaluate(hmm.NewDecoder(model, hmm.DefaultUnseenPenalty), test, &attempts, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, Report{Correct: 5, Wrong: 1}, r)
	assert.Equal(t, "DET NOUN VERB\nDET NOUN VERB\n", attempts.String())
}

func TestEvaluateDecodeFailure(t *testing.T) {
	tagger := taggerFunc(func(tokens []string) ([]string, error) {
		if tokens[0] == "bad" {
			return nil, &hmm.DecodeError{Step: 0, Token: "bad"}
		}
		return []string{"X", "Y"}, nil
	})
	test := corpus.Corpus{
		Sentences: [][]string{{"bad", "line"}, {"good", "line"}},
		Tags:      [][]string{{"X", "Y"}, {"X", "Y"}},
	}
	var attempts bytes.Buffer
	r, err := Evaluate(tagger, test, &attempts, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, Report{Correct: 2, Wrong: 2}, r)
	assert.Equal(t, "\nX Y\n", attempts.String())
}

func TestEvaluateUnexpectedError(t *testing.T) {
	boom := errors.New("boom")
	tagger := taggerFunc(func(tokens []string) ([]string, error) {
		return nil, boom
	})
	test := corpus.Corpus{Sentences: [][]string{{"a"}}, Tags: [][]string{{"X"}}}
	_, err := Evaluate(tagger, test, nil, zerolog.Nop())
	assert.True(t, errors.Is(err, boom))
}

func TestEvaluateMisalignedCorpus(t *testing.T) {
	tagger := taggerFunc(func(tokens []string) ([]string, error) {
		return tokens, nil
	})

	_, err := Evaluate(tagger, corpus.Corpus{
		Sentences: [][]string{{"a"}, {"b"}, {"c"}},
		Tags:      [][]string{{"X"}, {"Y"}},
	}, nil, zerolog.Nop())
	var formatErr *hmm.CorpusFormatError
	require.True(t, errors.As(err, &formatErr))
	assert.Equal(t, 0, formatErr.Line)

	_, err = Evaluate(tagger, corpus.Corpus{
		Sentences: [][]string{{"a"}, {"b", "c"}},
		Tags:      [][]string{{"X"}, {"Y"}},
	}, nil, zerolog.Nop())
	require.True(t, errors.As(err, &formatErr))
	assert.Equal(t, 2, formatErr.Line)
}
