package pipeline

import (
	"runtime"
	"strings"
	"sync"

	"text2phenotype.com/postag/corpus"
	"text2phenotype.com/postag/hmm"
	"text2phenotype.com/postag/types"
)

type sentence struct {
	index  int
	line   int
	tokens []string
	tags   []string
	err    error
}

func splitSentences(text string) <-chan sentence {
	out := make(chan sentence)
	go func() {
		defer close(out)
		index := 0
		for i, line := range strings.Split(text, "\n") {
			tokens := corpus.Tokenize(line)
			if len(tokens) == 0 {
				continue
			}
			out <- sentence{index: index, line: i + 1, tokens: tokens}
			index++
		}
	}()
	return out
}

// NewSentenceTagger decodes sentences on runtime.GOMAXPROCS goroutines.
func NewSentenceTagger(decoder *hmm.Decoder) func(in <-chan sentence) <-chan sentence {
	return newSentenceTagger(decoder, runtime.GOMAXPROCS(0))
}

// newSentenceTagger decodes on at most workers goroutines. The model is
// immutable, so they share it without locking.
func newSentenceTagger(decoder *hmm.Decoder, workers int) func(in <-chan sentence) <-chan sentence {
	if workers < 1 {
		workers = 1
	}
	return func(in <-chan sentence) <-chan sentence {
		out := make(chan sentence)
		var wg sync.WaitGroup
		wg.Add(workers)
		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()
				for sent := range in {
					sent.tags, sent.err = decoder.Decode(sent.tokens)
					out <- sent
				}
			}()
		}
		go func() {
			wg.Wait()
			close(out)
		}()
		return out
	}
}

// collect restores input order.
func collect(in <-chan sentence) []types.TaggedSentence {
	var res []types.TaggedSentence
	for sent := range in {
		for len(res) <= sent.index {
			res = append(res, types.TaggedSentence{})
		}
		tagged := types.TaggedSentence{
			Line:   sent.line,
			Tokens: sent.tokens,
			Tags:   sent.tags,
		}
		if sent.err != nil {
			tagged.Error = sent.err.Error()
			tagged.Tags = []string{}
		}
		res[sent.index] = tagged
	}
	if res == nil {
		res = []types.TaggedSentence{}
	}
	return res
}
