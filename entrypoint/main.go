package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"text2phenotype.com/postag/api"
	"text2phenotype.com/postag/console"
	"text2phenotype.com/postag/hmm"
	"text2phenotype.com/postag/logger"
	"text2phenotype.com/postag/models"
	"text2phenotype.com/postag/pipeline"
	"text2phenotype.com/postag/redis"
	"text2phenotype.com/postag/s3client"
	"text2phenotype.com/postag/scoring"
	"text2phenotype.com/postag/types"
	"text2phenotype.com/postag/worker"
)

type Config struct {
	ConfigPath           string        `envconfig:"POSTAG_CONFIG_PATH" required:"true"`
	ModelCacheActive     bool          `envconfig:"POSTAG_MODEL_CACHE_ACTIVE" default:"false"`
	ModelCacheExpiration time.Duration `envconfig:"POSTAG_MODEL_CACHE_EXPIRATION" default:"0s"`
	RestAPIActive        bool          `envconfig:"POSTAG_REST_API_ACTIVE" default:"false"`
	RestAPIPort          string        `envconfig:"POSTAG_REST_API_PORT" default:"10000"`
	WorkerActive         bool          `envconfig:"POSTAG_WORKER_ACTIVE" default:"true"`
}

const pipelineStartMaxRetries = 5

func main() {
	logger.SetupLogging()
	postagLogger := logger.NewLogger("Main")
	fatalErrLogger := postagLogger.Fatal().Caller()
	buildModels := flag.Bool("build-models", false, "train and cache the model of every configuration, then exit")
	interactive := flag.String("interactive", "", "tag sentences typed on stdin with the named configuration")
	evaluate := flag.String("evaluate", "", "score the named configuration on its test corpus")
	attemptsPath := flag.String("attempts", "", "file receiving the predicted tags of -evaluate, one sentence per line")
	flag.Parse()
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		fatalErrLogger.Err(err).Msg("Failed to read environment")
		os.Exit(1)
	}

	cfgs, err := types.LoadConfigurations(config.ConfigPath)
	if err != nil {
		fatalErrLogger.Err(err).Msg("Failed to load configurations")
		os.Exit(1)
	}
	postagLogger.Info().Msgf("Loaded %d configurations", len(cfgs))

	sources, err := corpusSources(cfgs)
	if err != nil {
		fatalErrLogger.Err(err).Msg("Failed to create corpus sources")
		os.Exit(1)
	}
	cache, err := modelCache(config)
	if err != nil {
		fatalErrLogger.Err(err).Msg("Failed to create model cache")
		os.Exit(1)
	}
	registry := models.NewRegistry(sources, cache)

	switch {
	case *buildModels:
		for _, cfg := range cfgs {
			if _, err = registry.Model(cfg); err != nil {
				fatalErrLogger.Err(err).Str("config", cfg.Name).Msg("Failed to build model")
				os.Exit(1)
			}
		}
		postagLogger.Info().Msg("Models were built. Exit...")
		return
	case *interactive != "":
		decoder, _, err := decoderFor(cfgs, *interactive, registry)
		if err != nil {
			fatalErrLogger.Err(err).Msg("Failed to prepare tagger")
			os.Exit(1)
		}
		if err = console.Run(os.Stdin, os.Stdout, decoder); err != nil {
			fatalErrLogger.Err(err).Msg("Interactive session stopped with error")
			os.Exit(1)
		}
		return
	case *evaluate != "":
		if err = runEvaluation(cfgs, *evaluate, *attemptsPath, registry, sources, postagLogger); err != nil {
			fatalErrLogger.Err(err).Msg("Evaluation failed")
			os.Exit(1)
		}
		return
	}

	ppln := startPipeline(cfgs, registry, postagLogger)

	if config.RestAPIActive {
		go func() {
			postagLogger.Info().Msg("Starting API service")
			apiRequest := &api.Request{
				Pipeline: ppln,
			}
			http.HandleFunc("/", apiRequest.ProcessData)
			host := fmt.Sprintf(":%s", config.RestAPIPort)
			postagLogger.Info().Msgf("REST API on %s", host)
			err := http.ListenAndServe(host, nil)
			fatalErrLogger.Err(err).Msg("REST API stopped with error")
		}()
	}

	if !config.WorkerActive {
		if !config.RestAPIActive {
			fatalErrLogger.Msg("Neither worker nor REST API is active, nothing to do")
			os.Exit(1)
		}
		select {}
	}

	postagLogger.Info().Msg("Start POS tagging Worker")
	for {
		rmqWorker, err := worker.New(ppln)
		if err != nil {
			postagLogger.Fatal().Err(err).Msg("Could not initialize RMQ worker")
			os.Exit(1)
		}
		err = rmqWorker.StartWorker()
		if err != nil {
			postagLogger.Err(err).Msg("Worker returned with error. Launching new in 5 seconds")
			time.Sleep(5 * time.Second)
		}
	}
}

// startPipeline trains every configured model before serving, retrying while
// corpora or the cache are unavailable.
func startPipeline(cfgs []types.Configuration, registry *models.Registry, postagLogger zerolog.Logger) pipeline.Pipeline {
	for retry := 0; retry < pipelineStartMaxRetries; retry++ {
		var failed error
		for _, cfg := range cfgs {
			if _, err := registry.Model(cfg); err != nil {
				postagLogger.Err(err).Str("config", cfg.Name).Msg("Failed to load model")
				failed = err
				break
			}
		}
		if failed != nil {
			postagLogger.Info().Msg("Retrying in 5 sec")
			time.Sleep(5 * time.Second)
			continue
		}
		postagLogger.Info().Msg("Models loaded")
		return pipeline.NewTagging(cfgs, registry)
	}
	postagLogger.Fatal().Caller().Msgf("Could not load models after %d retries, exiting", pipelineStartMaxRetries)
	os.Exit(1)
	return nil
}

func corpusSources(cfgs []types.Configuration) (map[string]models.CorpusSource, error) {
	sources := map[string]models.CorpusSource{
		types.CorpusSourceLocal: models.FileSource{},
	}
	for _, cfg := range cfgs {
		if cfg.CorpusSource != types.CorpusSourceS3 {
			continue
		}
		s3Client, err := s3client.New()
		if err != nil {
			return nil, err
		}
		sources[types.CorpusSourceS3] = models.S3Source{Downloader: s3Client}
		break
	}
	return sources, nil
}

func modelCache(config Config) (models.Cache, error) {
	if !config.ModelCacheActive {
		return nil, nil
	}
	client, err := redis.NewClient(models.ModelsDB)
	if err != nil {
		return nil, err
	}
	return models.RedisCache{Client: &client, Expiration: config.ModelCacheExpiration}, nil
}

func decoderFor(cfgs []types.Configuration, name string, registry *models.Registry) (*hmm.Decoder, types.Configuration, error) {
	cfg, err := types.FindConfiguration(cfgs, name)
	if err != nil {
		return nil, cfg, err
	}
	model, err := registry.Model(cfg)
	if err != nil {
		return nil, cfg, err
	}
	return hmm.NewDecoder(model, cfg.Penalty()), cfg, nil
}

func runEvaluation(
	cfgs []types.Configuration,
	name string,
	attemptsPath string,
	registry *models.Registry,
	sources map[string]models.CorpusSource,
	postagLogger zerolog.Logger,
) error {
	decoder, cfg, err := decoderFor(cfgs, name, registry)
	if err != nil {
		return err
	}
	if cfg.Test.IsEmpty() {
		return fmt.Errorf("configuration %s has no test corpus", cfg.Name)
	}
	test, err := sources[cfg.CorpusSource].Load(cfg.Test)
	if err != nil {
		return err
	}

	attempts := io.Discard
	if attemptsPath != "" {
		file, err := os.Create(attemptsPath)
		if err != nil {
			return err
		}
		defer file.Close()
		attempts = file
	}

	report, err := scoring.Evaluate(decoder, test, attempts, postagLogger.With().Str("config", cfg.Name).Logger())
	if err != nil {
		return err
	}
	fmt.Printf("Correct: %d\nWrong: %d\nAccuracy: %.4f\n", report.Correct, report.Wrong, report.Accuracy())
	return nil
}
