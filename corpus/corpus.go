// Package corpus reads line-aligned sentence and tag files.
//
// Both files hold one sentence per line with whitespace separated tokens; line
// i of the tag file tags line i of the sentence file token by token.
package corpus

import (
	"fmt"
	"io"
	"strings"

	"text2phenotype.com/postag/utils"
)

type Corpus struct {
	Sentences [][]string
	Tags      [][]string
}

func Tokenize(line string) []string {
	return strings.Fields(line)
}

// Format renders tags separated by single spaces.
func Format(tags []string) string {
	return strings.Join(tags, " ")
}

func Read(sentences, tags io.Reader) (Corpus, error) {
	sentenceLines, err := utils.ScanLines(sentences)
	if err != nil {
		return Corpus{}, fmt.Errorf("failed to read sentences: %w", err)
	}
	tagLines, err := utils.ScanLines(tags)
	if err != nil {
		return Corpus{}, fmt.Errorf("failed to read tags: %w", err)
	}
	return fromLines(sentenceLines, tagLines), nil
}

func LoadFiles(sentencesPath, tagsPath string) (Corpus, error) {
	sentenceLines, err := utils.ReadList(sentencesPath)
	if err != nil {
		return Corpus{}, fmt.Errorf("failed to read sentences file %s: %w", sentencesPath, err)
	}
	tagLines, err := utils.ReadList(tagsPath)
	if err != nil {
		return Corpus{}, fmt.Errorf("failed to read tags file %s: %w", tagsPath, err)
	}
	return fromLines(sentenceLines, tagLines), nil
}

func fromLines(sentenceLines, tagLines []string) Corpus {
	c := Corpus{
		Sentences: make([][]string, len(sentenceLines)),
		Tags:      make([][]string, len(tagLines)),
	}
	for i, line := range sentenceLines {
		c.Sentences[i] = Tokenize(line)
	}
	for i, line := range tagLines {
		c.Tags[i] = Tokenize(line)
	}
	return c
}

// Fingerprint identifies the corpus content; two corpora with the same tokens
// on the same lines share a fingerprint.
func (c Corpus) Fingerprint() uint64 {
	sentences := make([]string, len(c.Sentences))
	for i, tokens := range c.Sentences {
		sentences[i] = Format(tokens)
	}
	tags := make([]string, len(c.Tags))
	for i, tokens := range c.Tags {
		tags[i] = Format(tokens)
	}
	return utils.HashLines(sentences, tags)
}

func WriteLines(w io.Writer, lines [][]string) error {
	for _, line := range lines {
		if _, err := io.WriteString(w, Format(line)+"\n"); err != nil {
			return err
		}
	}
	return nil
}
