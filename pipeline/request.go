package pipeline

import "encoding/json"

type Request struct {
	Tid       string          `json:"tid"`
	Text      string          `json:"text"`
	Config    string          `json:"config"`
	Overrides json.RawMessage `json:"overrides,omitempty"`
}

// Pipeline delivers exactly one JSON response for a request, or closes the
// channel without a value when the request cannot be processed.
type Pipeline func(request Request) <-chan string
