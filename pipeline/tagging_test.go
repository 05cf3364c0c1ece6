package pipeline

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"text2phenotype.com/postag/hmm"
	"text2phenotype.com/postag/models"
	"text2phenotype.com/postag/types"
)

type staticResolver struct {
	model *hmm.Model
	err   error
	seen  []types.Configuration
}

func (r *staticResolver) Model(cfg types.Configuration) (*hmm.Model, error) {
	r.seen = append(r.seen, cfg)
	return r.model, r.err
}

func animalsResolver(t *testing.T) *staticResolver {
	model, err := hmm.Train(
		[][]string{{"the", "dog", "runs"}, {"a", "cat", "sleeps"}, {"dogs", "run"}},
		[][]string{{"DET", "NOUN", "VERB"}, {"DET", "NOUN", "VERB"}, {"NOUN", "VERB"}},
	)
	require.NoError(t, err)
	return &staticResolver{model: model}
}

var configs = []types.Configuration{
	{Name: "animals", CorpusSource: types.CorpusSourceLocal, Train: types.CorpusConfig{Sentences: "s", Tags: "t"}},
	{Name: "other", CorpusSource: types.CorpusSourceLocal, Train: types.CorpusConfig{Sentences: "s2", Tags: "t2"}},
}

func run(t *testing.T, ppln Pipeline, request Request) (types.TaggingResponse, bool) {
	t.Helper()
	res, ok := <-ppln(request)
	if !ok {
		return types.TaggingResponse{}, false
	}
	var response types.TaggingResponse
	require.NoError(t, json.Unmarshal([]byte(res), &response))
	return response, true
}

func TestTagging(t *testing.T) {
	ppln := NewTagging(configs, animalsResolver(t))

	text := "the cat runs\n\n  \na zzzqx sleeps\r\nthe dog runs the dog runs\ndogs run"
	response, ok := run(t, ppln, Request{Tid: "tid-1", Text: text, Config: "animals"})
	require.True(t, ok)

	want := types.TaggingResponse{
		Tid:           "tid-1",
		Config:        "animals",
		UnseenPenalty: hmm.DefaultUnseenPenalty,
		Sentences: []types.TaggedSentence{
			{Line: 1, Tokens: []string{"the", "cat", "runs"}, Tags: []string{"DET", "NOUN", "VERB"}},
			{Line: 4, Tokens: []string{"a", "zzzqx", "sleeps"}, Tags: []string{"DET", "NOUN", "VERB"}},
			{
				Line:   5,
				Tokens: []string{"the", "dog", "runs", "the", "dog", "runs"},
				Tags:   []string{},
				Error:  (&hmm.DecodeError{Step: 3, Token: "the"}).Error(),
			},
			{Line: 6, Tokens: []string{"dogs", "run"}, Tags: []string{"NOUN", "VERB"}},
		},
	}
	if diff := cmp.Diff(want, response); diff != "" {
		t.Errorf("unexpected response (-want +got):\n%s", diff)
	}
}

func TestTaggingOverrides(t *testing.T) {
	resolver := animalsResolver(t)
	ppln := NewTagging(configs, resolver)

	response, ok := run(t, ppln, Request{
		Tid:       "tid-2",
		Text:      "the dog runs",
		Config:    "other",
		Overrides: json.RawMessage(`{"unseen_penalty": -7.5}`),
	})
	require.True(t, ok)
	assert.Equal(t, -7.5, response.UnseenPenalty)
	assert.Equal(t, "other", response.Config)
	require.Len(t, resolver.seen, 1)
	assert.Equal(t, "s2", resolver.seen[0].Train.Sentences)
}

func TestTaggingEmptyText(t *testing.T) {
	ppln := NewTagging(configs[:1], animalsResolver(t))

	response, ok := run(t, ppln, Request{Tid: "tid-3", Text: " \n\n"})
	require.True(t, ok)
	assert.Equal(t, "animals", response.Config)
	assert.NotNil(t, response.Sentences)
	assert.Empty(t, response.Sentences)
}

func TestTaggingFailures(t *testing.T) {
	cases := map[string]struct {
		resolver ModelResolver
		request  Request
	}{
		"unknown config": {
			resolver: animalsResolver(t),
			request:  Request{Text: "the dog", Config: "missing"},
		},
		"ambiguous config": {
			resolver: animalsResolver(t),
			request:  Request{Text: "the dog"},
		},
		"invalid overrides": {
			resolver: animalsResolver(t),
			request:  Request{Text: "the dog", Config: "animals", Overrides: json.RawMessage(`{"unseen_penalty": 1}`)},
		},
		"corpus override": {
			resolver: animalsResolver(t),
			request: Request{
				Text:      "the dog",
				Config:    "animals",
				Overrides: json.RawMessage(`{"train": {"sentences": "/tmp/words.txt", "tags": "/tmp/words.txt"}}`),
			},
		},
		"model error": {
			resolver: &staticResolver{err: errors.New("corpus missing")},
			request:  Request{Text: "the dog", Config: "animals"},
		},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := run(t, NewTagging(configs, c.resolver), c.request)
			assert.False(t, ok)
			if resolver, isStatic := c.resolver.(*staticResolver); isStatic && c.request.Overrides != nil {
				assert.Empty(t, resolver.seen)
			}
		})
	}
}

func TestTaggingCorpusStaysFixed(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}
	cfgs := []types.Configuration{{
		Name:         "animals",
		CorpusSource: types.CorpusSourceLocal,
		Train: types.CorpusConfig{
			Sentences: write("sentences.txt", "the dog runs\n"),
			Tags:      write("tags.txt", "DET NOUN VERB\n"),
		},
	}}
	private := write("private.txt", "alpha\nbeta\n")
	registry := models.NewRegistry(map[string]models.CorpusSource{types.CorpusSourceLocal: models.FileSource{}}, nil)
	ppln := NewTagging(cfgs, registry)

	_, ok := run(t, ppln, Request{
		Tid:       "tid-4",
		Text:      "x",
		Overrides: json.RawMessage(`{"train": {"sentences": "` + private + `", "tags": "` + private + `"}}`),
	})
	assert.False(t, ok)

	response, ok := run(t, ppln, Request{Tid: "tid-5", Text: "x"})
	require.True(t, ok)
	require.Len(t, response.Sentences, 1)
	assert.Equal(t, []string{"DET"}, response.Sentences[0].Tags)
}

func TestSentenceTaggerKeepsOrder(t *testing.T) {
	resolver := animalsResolver(t)
	tagger := NewSentenceTagger(hmm.NewDecoder(resolver.model, hmm.DefaultUnseenPenalty))

	var lines []string
	for i := 0; i < 200; i++ {
		if i%2 == 0 {
			lines = append(lines, "the dog runs")
		} else {
			lines = append(lines, "dogs run")
		}
	}
	sentences := collect(tagger(splitSentences(strings.Join(lines, "\n"))))
	require.Len(t, sentences, 200)
	for i, sent := range sentences {
		assert.Equal(t, i+1, sent.Line)
		assert.Len(t, sent.Tags, len(sent.Tokens))
	}
}

func TestSentenceTaggerBoundsWorkers(t *testing.T) {
	resolver := animalsResolver(t)
	decoder := hmm.NewDecoder(resolver.model, hmm.DefaultUnseenPenalty)

	for _, workers := range []int{0, 1, 3} {
		in := make(chan sentence)
		out := newSentenceTagger(decoder, workers)(in)
		go func() {
			defer close(in)
			for i := 0; i < 50; i++ {
				in <- sentence{index: i, line: i + 1, tokens: []string{"dogs", "run"}}
			}
		}()
		sentences := collect(out)
		require.Len(t, sentences, 50)
		for _, sent := range sentences {
			assert.Equal(t, []string{"NOUN", "VERB"}, sent.Tags)
		}
	}

	before := runtime.NumGoroutine()
	in := make(chan sentence)
	newSentenceTagger(decoder, 2)(in)
	assert.LessOrEqual(t, runtime.NumGoroutine()-before, 3)
	close(in)
}
