package scoring

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"text2phenotype.com/postag/corpus"
	"text2phenotype.com/postag/hmm"
)

type Tagger interface {
	Decode(tokens []string) ([]string, error)
}

type Report struct {
	Correct int `json:"correct"`
	Wrong   int `json:"wrong"`
}

func (r Report) Total() int {
	return r.Correct + r.Wrong
}

func (r Report) Accuracy() float64 {
	if r.Total() == 0 {
		return 0
	}
	return float64(r.Correct) / float64(r.Total())
}

func (r *Report) Add(o Report) {
	r.Correct += o.Correct
	r.Wrong += o.Wrong
}

// Compare counts the positions where predicted agrees with gold.
func Compare(gold, predicted []string) (Report, error) {
	if len(gold) != len(predicted) {
		return Report{}, fmt.Errorf("gold has %d tags but prediction has %d", len(gold), len(predicted))
	}
	var r Report
	for i, tag := range gold {
		if predicted[i] == tag {
			r.Correct++
		} else {
			r.Wrong++
		}
	}
	return r, nil
}

// Evaluate tags every sentence of test and scores it against the gold tags.
// Predicted tag lines are written to attempts when it is not nil. A sentence
// that cannot be decoded counts as wrong at every position and produces an
// empty attempt line.
func Evaluate(tagger Tagger, test corpus.Corpus, attempts io.Writer, log zerolog.Logger) (Report, error) {
	if len(test.Sentences) != len(test.Tags) {
		return Report{}, &hmm.CorpusFormatError{
			Reason: fmt.Sprintf("%d sentence lines but %d tag lines", len(test.Sentences), len(test.Tags)),
		}
	}

	var total Report
	for i, tokens := range test.Sentences {
		gold := test.Tags[i]
		if len(tokens) != len(gold) {
			return Report{}, &hmm.CorpusFormatError{
				Line:   i + 1,
				Reason: fmt.Sprintf("%d words but %d tags", len(tokens), len(gold)),
			}
		}

		predicted, err := tagger.Decode(tokens)
		var decodeErr *hmm.DecodeError
		switch {
		case errors.As(err, &decodeErr):
			log.Warn().Err(err).Int("line", i+1).Msg("Could not decode sentence, counting it as wrong")
			total.Wrong += len(gold)
			predicted = nil
		case err != nil:
			return Report{}, fmt.Errorf("failed to decode line %d: %w", i+1, err)
		default:
			r, err := Compare(gold, predicted)
			if err != nil {
				return Report{}, fmt.Errorf("line %d: %w", i+1, err)
			}
			total.Add(r)
		}

		if attempts != nil {
			if err := corpus.WriteLines(attempts, [][]string{predicted}); err != nil {
				return Report{}, fmt.Errorf("failed to write attempt for line %d: %w", i+1, err)
			}
		}
	}
	return total, nil
}
