package types

type TaggedSentence struct {
	Line   int      `json:"line"`
	Tokens []string `json:"tokens"`
	Tags   []string `json:"tags"`
	Error  string   `json:"error,omitempty"`
}

type TaggingResponse struct {
	Tid           string           `json:"tid"`
	Config        string           `json:"config"`
	UnseenPenalty float64          `json:"unseen_penalty"`
	Sentences     []TaggedSentence `json:"sentences"`
}
