package models

import (
	"bytes"
	"fmt"

	"text2phenotype.com/postag/corpus"
	"text2phenotype.com/postag/types"
)

// FileSource reads corpora from the local file system.
type FileSource struct{}

func (FileSource) Load(files types.CorpusConfig) (corpus.Corpus, error) {
	return corpus.LoadFiles(files.Sentences, files.Tags)
}

type Downloader interface {
	Download(key string) ([]byte, error)
}

// S3Source reads corpora stored as objects; the configured paths are object
// keys.
type S3Source struct {
	Downloader Downloader
}

func (source S3Source) Load(files types.CorpusConfig) (corpus.Corpus, error) {
	sentences, err := source.Downloader.Download(files.Sentences)
	if err != nil {
		return corpus.Corpus{}, fmt.Errorf("failed to download %s: %w", files.Sentences, err)
	}
	tags, err := source.Downloader.Download(files.Tags)
	if err != nil {
		return corpus.Corpus{}, fmt.Errorf("failed to download %s: %w", files.Tags, err)
	}
	return corpus.Read(bytes.NewReader(sentences), bytes.NewReader(tags))
}
