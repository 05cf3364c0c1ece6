package pipeline

import (
	"encoding/json"

	"text2phenotype.com/postag/hmm"
	"text2phenotype.com/postag/logger"
	"text2phenotype.com/postag/types"
)

type ModelResolver interface {
	Model(cfg types.Configuration) (*hmm.Model, error)
}

// NewTagging builds the pipeline that tags every non-empty line of a request's
// text with the model of the requested configuration.
func NewTagging(configs []types.Configuration, resolver ModelResolver) Pipeline {
	postagLogger := logger.NewLogger("Tagging pipeline")

	return func(request Request) <-chan string {
		out := make(chan string, 1)
		go func() {
			defer close(out)
			log := postagLogger.With().Str("tid", request.Tid).Str("config", request.Config).Logger()

			cfg, err := types.FindConfiguration(configs, request.Config)
			if err != nil {
				log.Err(err).Msg("Could not select configuration")
				return
			}
			cfg, err = cfg.WithOverrides(request.Overrides)
			if err != nil {
				log.Err(err).RawJSON("overrides", request.Overrides).Msg("Could not apply overrides")
				return
			}
			model, err := resolver.Model(cfg)
			if err != nil {
				log.Err(err).Msg("Could not get model")
				return
			}

			decoder := hmm.NewDecoder(model, cfg.Penalty())
			tagger := NewSentenceTagger(decoder)
			response := types.TaggingResponse{
				Tid:           request.Tid,
				Config:        cfg.Name,
				UnseenPenalty: cfg.Penalty(),
				Sentences:     collect(tagger(splitSentences(request.Text))),
			}

			failed := 0
			for _, sent := range response.Sentences {
				if len(sent.Error) > 0 {
					failed++
				}
			}
			if failed > 0 {
				log.Warn().Int("failed", failed).Msg("Some sentences could not be tagged")
			}

			b, err := json.Marshal(response)
			if err != nil {
				log.Err(err).Msg("Could not marshal response")
				return
			}
			log.Info().Int("sentences", len(response.Sentences)).Msg("Tagged request")
			out <- string(b)
		}()
		return out
	}
}
