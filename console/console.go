// Package console runs the interactive tagging loop.
package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"text2phenotype.com/postag/corpus"
	"text2phenotype.com/postag/hmm"
)

const (
	Prompt       = "Hello! Please provide an input, or 'q' to quit."
	QuitSentinel = "q"
)

type Tagger interface {
	Decode(tokens []string) ([]string, error)
}

// Run prompts for sentences on out, reads them from in and prints their tags
// until the quit sentinel or the end of input.
func Run(in io.Reader, out io.Writer, tagger Tagger) error {
	scanner := bufio.NewScanner(in)
	for {
		if _, err := fmt.Fprintln(out, Prompt); err != nil {
			return err
		}
		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == QuitSentinel {
			return nil
		}
		tokens := corpus.Tokenize(line)
		if len(tokens) == 0 {
			continue
		}

		tags, err := tagger.Decode(tokens)
		var decodeErr *hmm.DecodeError
		switch {
		case errors.As(err, &decodeErr):
			_, err = fmt.Fprintf(out, "Could not tag this sentence: %v\n", decodeErr)
		case err != nil:
			return err
		default:
			_, err = fmt.Fprintln(out, corpus.Format(tags))
		}
		if err != nil {
			return err
		}
	}
}
