// Package models trains tagger models on demand and shares them through an
// optional cache so that replicas train each corpus only once.
package models

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"text2phenotype.com/postag/corpus"
	"text2phenotype.com/postag/hmm"
	"text2phenotype.com/postag/logger"
	"text2phenotype.com/postag/types"
)

// ValidationTolerance bounds the normalization error accepted for a cached
// model.
const ValidationTolerance = 1e-9

var ErrCacheMiss = errors.New("model not cached")

type CorpusSource interface {
	Load(files types.CorpusConfig) (corpus.Corpus, error)
}

type Cache interface {
	// Get returns ErrCacheMiss when nothing is stored under key.
	Get(key string) ([]byte, error)
	Set(key string, data []byte) error
	Lock(key string) (release func() error, err error)
}

type Registry struct {
	sources      map[string]CorpusSource
	cache        Cache
	postagLogger zerolog.Logger

	mu     sync.Mutex
	models map[string]*entry
}

// entry is a model being built or already built. done closes once model or
// err is set.
type entry struct {
	done  chan struct{}
	model *hmm.Model
	err   error
}

// NewRegistry returns a registry loading corpora from sources, keyed by
// types.Configuration.CorpusSource. cache may be nil.
func NewRegistry(sources map[string]CorpusSource, cache Cache) *Registry {
	return &Registry{
		sources:      sources,
		cache:        cache,
		postagLogger: logger.NewLogger("Model registry"),
		models:       make(map[string]*entry),
	}
}

// Model returns the model trained on cfg's training corpus. Each source and
// file pair is built once; concurrent callers wait for that build while
// other corpora build in parallel. A failed build is forgotten so the next
// call retries it.
func (r *Registry) Model(cfg types.Configuration) (*hmm.Model, error) {
	source, ok := r.sources[cfg.CorpusSource]
	if !ok {
		return nil, fmt.Errorf("no corpus source %q for configuration %s", cfg.CorpusSource, cfg.Name)
	}
	memoKey := fmt.Sprintf("%s|%s|%s", cfg.CorpusSource, cfg.Train.Sentences, cfg.Train.Tags)

	r.mu.Lock()
	if e, ok := r.models[memoKey]; ok {
		r.mu.Unlock()
		<-e.done
		return e.model, e.err
	}
	e := &entry{done: make(chan struct{})}
	r.models[memoKey] = e
	r.mu.Unlock()

	e.model, e.err = r.build(cfg, source)
	if e.err != nil {
		r.mu.Lock()
		delete(r.models, memoKey)
		r.mu.Unlock()
	}
	close(e.done)
	return e.model, e.err
}

func (r *Registry) build(cfg types.Configuration, source CorpusSource) (*hmm.Model, error) {
	train, err := source.Load(cfg.Train)
	if err != nil {
		return nil, fmt.Errorf("failed to load training corpus of %s: %w", cfg.Name, err)
	}
	key := cacheKey(cfg, train)
	log := r.postagLogger.With().Str("config", cfg.Name).Str("model_key", key).Logger()

	if r.cache == nil {
		return r.train(train, log)
	}
	return r.fromCache(key, train, log)
}

func (r *Registry) fromCache(key string, train corpus.Corpus, log zerolog.Logger) (model *hmm.Model, err error) {
	release, err := r.cache.Lock(key)
	if err != nil {
		return nil, fmt.Errorf("failed to lock model cache: %w", err)
	}
	defer func() {
		if releaseErr := release(); releaseErr != nil {
			log.Warn().Err(releaseErr).Msg("Failed to release model cache lock")
		}
	}()

	data, err := r.cache.Get(key)
	switch {
	case err == nil:
		model, err = hmm.LoadModel(data)
		if err == nil {
			err = model.Validate(ValidationTolerance)
		}
		if err == nil {
			log.Info().Msg("Loaded model from cache")
			return model, nil
		}
		log.Warn().Err(err).Msg("Cached model is invalid, retraining")
	case errors.Is(err, ErrCacheMiss):
		log.Info().Msg("Model is not cached yet")
	default:
		return nil, fmt.Errorf("failed to read model cache: %w", err)
	}

	model, err = r.train(train, log)
	if err != nil {
		return nil, err
	}
	data, err = model.MarshalJSON()
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(key, data); err != nil {
		// the model is still usable locally
		log.Err(err).Msg("Failed to store model in cache")
	}
	return model, nil
}

func (r *Registry) train(train corpus.Corpus, log zerolog.Logger) (*hmm.Model, error) {
	log.Info().Int("sentences", len(train.Sentences)).Msg("Training model")
	model, err := hmm.Train(train.Sentences, train.Tags)
	if err != nil {
		log.Err(err).Msg("Failed to train model")
		return nil, err
	}
	log.Info().Int("states", len(model.States())).Msg("Trained model")
	return model, nil
}

func cacheKey(cfg types.Configuration, train corpus.Corpus) string {
	return fmt.Sprintf("hmm-model:%s:%016x", cfg.Name, train.Fingerprint())
}
