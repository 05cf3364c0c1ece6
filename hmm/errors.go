package hmm

import "fmt"

// CorpusFormatError reports misaligned or malformed training data.
// Line is 1-based; 0 means the problem concerns the corpus as a whole.
type CorpusFormatError struct {
	Line   int
	Reason string
}

func (e *CorpusFormatError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("corpus format error: %s", e.Reason)
	}
	return fmt.Sprintf("corpus format error at line %d: %s", e.Line, e.Reason)
}

// DecodeError is returned when no state can be reached for the token at Step.
type DecodeError struct {
	Step  int
	Token string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error: no reachable state for token %q at position %d", e.Token, e.Step)
}
