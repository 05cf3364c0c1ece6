package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	jsonpatch "github.com/evanphx/json-patch"
	"gopkg.in/yaml.v3"
	"text2phenotype.com/postag/hmm"
	"text2phenotype.com/postag/logger"
)

const (
	// corpus sources
	CorpusSourceLocal = "local"
	CorpusSourceS3    = "s3"
)

type CorpusConfig struct {
	Sentences string `yaml:"sentences" json:"sentences"`
	Tags      string `yaml:"tags" json:"tags"`
}

func (c CorpusConfig) IsEmpty() bool {
	return len(c.Sentences) == 0 && len(c.Tags) == 0
}

type Configuration struct {
	Name          string       `json:"name"`
	FilePath      string       `json:"file_path"`
	CorpusSource  string       `yaml:"corpus_source" json:"corpus_source"`
	Train         CorpusConfig `yaml:"train" json:"train"`
	Test          CorpusConfig `yaml:"test" json:"test"`
	UnseenPenalty *float64     `yaml:"unseen_penalty" json:"unseen_penalty"`
}

// Overrides holds the settings a single request may change. Everything else,
// corpus locations in particular, is fixed by the configuration file.
type Overrides struct {
	UnseenPenalty *float64 `json:"unseen_penalty"`
}

// Penalty is the unseen-word penalty to decode with. A missing
// unseen_penalty means hmm.DefaultUnseenPenalty; an explicit 0 is kept.
func (cfg Configuration) Penalty() float64 {
	if cfg.UnseenPenalty == nil {
		return hmm.DefaultUnseenPenalty
	}
	return *cfg.UnseenPenalty
}

func (cfg Configuration) Validate() error {
	switch cfg.CorpusSource {
	case CorpusSourceLocal, CorpusSourceS3:
	default:
		return fmt.Errorf("wrong corpus source %q", cfg.CorpusSource)
	}
	if len(cfg.Train.Sentences) == 0 || len(cfg.Train.Tags) == 0 {
		return errors.New("train sentences and tags are required")
	}
	if cfg.UnseenPenalty != nil && *cfg.UnseenPenalty > 0 {
		return fmt.Errorf("unseen penalty must not be positive, got %v", *cfg.UnseenPenalty)
	}
	return nil
}

// WithOverrides applies a JSON merge patch over the configuration's
// Overrides. A patch naming any other field is rejected; a null
// unseen_penalty restores the default.
func (cfg Configuration) WithOverrides(patch []byte) (Configuration, error) {
	if len(patch) == 0 {
		return cfg, nil
	}
	doc, err := json.Marshal(Overrides{UnseenPenalty: cfg.UnseenPenalty})
	if err != nil {
		return cfg, err
	}
	merged, err := jsonpatch.MergePatch(doc, patch)
	if err != nil {
		return cfg, fmt.Errorf("failed to apply overrides: %w", err)
	}
	var overrides Overrides
	decoder := json.NewDecoder(bytes.NewReader(merged))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&overrides); err != nil {
		return cfg, fmt.Errorf("overrides may only set unseen_penalty: %w", err)
	}
	res := cfg
	res.UnseenPenalty = overrides.UnseenPenalty
	if err := res.Validate(); err != nil {
		return cfg, fmt.Errorf("patched configuration is invalid: %w", err)
	}
	return res, nil
}

// FindConfiguration returns the configuration called name. An empty name
// selects the only configuration when exactly one is loaded.
func FindConfiguration(cfgs []Configuration, name string) (Configuration, error) {
	if len(name) == 0 {
		if len(cfgs) == 1 {
			return cfgs[0], nil
		}
		return Configuration{}, fmt.Errorf("configuration name is required, %d configurations loaded", len(cfgs))
	}
	for _, cfg := range cfgs {
		if cfg.Name == name {
			return cfg, nil
		}
	}
	return Configuration{}, fmt.Errorf("unknown configuration %q", name)
}

// LoadConfigurations reads every *.yaml file of dirPath. Files that cannot be
// read or are invalid are logged and skipped.
func LoadConfigurations(dirPath string) ([]Configuration, error) {
	postagLogger := logger.NewLogger("LoadConfigurations")

	files, err := ioutil.ReadDir(dirPath)
	if err != nil {
		return nil, err
	}

	var wg sync.WaitGroup
	configChan := make(chan Configuration, len(files))
	for _, f := range files {
		// Skip dirs and non-yaml files
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".yaml") {
			continue
		}

		wg.Add(1)
		go func(file os.FileInfo) {
			defer wg.Done()
			cfg := Configuration{
				Name:         strings.TrimSuffix(file.Name(), ".yaml"),
				FilePath:     path.Join(dirPath, file.Name()),
				CorpusSource: CorpusSourceLocal,
			}
			fileLogger := postagLogger.With().Str("file_path", cfg.FilePath).Logger()
			buf, err := ioutil.ReadFile(cfg.FilePath)
			if err != nil {
				fileLogger.Err(err).Msg("Could not read configuration")
				return
			}
			if err := yaml.Unmarshal(buf, &cfg); err != nil {
				fileLogger.Err(err).Msg("Could not parse configuration")
				return
			}
			if err := cfg.Validate(); err != nil {
				fileLogger.Err(err).Msg("Invalid configuration")
				return
			}

			configChan <- cfg
		}(f)
	}

	go func() {
		wg.Wait()
		close(configChan)
	}()

	configs := make([]Configuration, 0, len(configChan))
	for cfg := range configChan {
		configs = append(configs, cfg)
	}
	sort.Slice(configs, func(i, j int) bool {
		return configs[i].Name < configs[j].Name
	})
	return configs, nil
}
