// Package app builds the pipeline and its dependencies from service
// configuration. Both binaries share it.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/c0ld-w4ter/you-fm/internal/aggregator"
	"github.com/c0ld-w4ter/you-fm/internal/briefing"
	"github.com/c0ld-w4ter/you-fm/internal/config"
	"github.com/c0ld-w4ter/you-fm/internal/consolidation"
	"github.com/c0ld-w4ter/you-fm/internal/delivery"
	"github.com/c0ld-w4ter/you-fm/internal/observability"
	"github.com/c0ld-w4ter/you-fm/internal/pipeline"
	"github.com/c0ld-w4ter/you-fm/internal/resilience"
	"github.com/c0ld-w4ter/you-fm/internal/sources"
	"github.com/c0ld-w4ter/you-fm/internal/tts"
)

// App holds the wired pipeline and what the outer surfaces need from it
type App struct {
	Orchestrator *pipeline.Orchestrator
	Defaults     briefing.Config
	Checks       map[string]observability.HealthCheckFunc
	Sources      []string
}

// Build wires every stage from cfg. The run defaults come from the profile
// at cfg.ProfilePath, or the built-in defaults when none is set.
func Build(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	defaults, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		return nil, err
	}

	fetchRetry := &resilience.RetryConfig{
		MaxAttempts:       cfg.RetryMaxAttempts,
		InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
	stageRetry := &resilience.RetryConfig{
		MaxAttempts:       cfg.StageRetryMaxAttempts,
		InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}

	agg := aggregator.New(buildSources(cfg), fetchRetry, logger)

	var backend consolidation.Backend
	if cfg.AIAPIKey != "" {
		backend = consolidation.NewOpenAIBackend(consolidation.OpenAIConfig{
			APIKey:      cfg.AIAPIKey,
			BaseURL:     cfg.AIBaseURL,
			Model:       cfg.AIModel,
			Temperature: cfg.AITemperature,
			Timeout:     config.Seconds(cfg.AITimeout),
		})
	} else {
		logger.Warn().Msg("AI_API_KEY not set, every briefing will use the fallback script")
	}
	engine := consolidation.NewEngine(backend, consolidation.Options{
		WordsPerMinute: float64(cfg.SpeakingRateWPM),
		Tolerance:      cfg.DurationTolerance,
		Timeout:        config.Seconds(cfg.AITimeout),
		Retry:          fetchRetry,
		Breaker:        newBreaker(cfg, "ai", logger),
	}, logger)

	speech, err := buildTTSBackend(cfg)
	if err != nil {
		return nil, err
	}
	synth := tts.NewSynthesizer(speech, tts.Options{
		MaxChunks:   cfg.TTSMaxChunks,
		Padding:     time.Duration(cfg.TTSPaddingMs) * time.Millisecond,
		TrimSilence: cfg.TTSTrimSilence,
		Trim:        tts.DefaultOptions().Trim,
		Normalize:   true,
		Timeout:     config.Seconds(cfg.TTSTimeout),
		Retry:       stageRetry,
		Breaker:     newBreaker(cfg, "tts_"+speech.Name(), logger),
	}, logger)

	local := delivery.NewLocalStore(cfg.OutputDir)
	var remote delivery.ObjectStore
	if cfg.ObjectStoreEnabled() {
		store, err := delivery.NewMinioStore(delivery.MinioConfig{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			return nil, err
		}
		remote = store
	}
	deliverer := delivery.NewService(local, remote, delivery.Options{
		Timeout:       config.Seconds(cfg.StorageTimeout),
		Retry:         stageRetry,
		KeepLocalCopy: cfg.S3KeepLocalCopy,
	}, logger)

	checks := deliverer.Checks()
	checks["tts_"+speech.Name()] = configured(speech.Name(), cfg.TTSKeySet())

	return &App{
		Orchestrator: pipeline.New(pipeline.Deps{
			Aggregator:   agg,
			Consolidator: engine,
			Synthesizer:  synth,
			Deliverer:    deliverer,
			Logger:       logger,
		}),
		Defaults: defaults,
		Checks:   checks,
		Sources:  agg.Sources(),
	}, nil
}

// buildSources creates one client per provider. Providers without keys are
// still registered so their failures show up as auth_error statuses.
func buildSources(cfg *config.Config) []sources.Source {
	timeout := config.Seconds(cfg.SourceTimeout)
	return []sources.Source{
		sources.NewNewsAPISource(sources.NewsAPIConfig{
			APIKey:  cfg.NewsAPIKey,
			BaseURL: cfg.NewsAPIBaseURL,
			Country: cfg.NewsCountry,
			Timeout: timeout,
		}),
		sources.NewWeatherSource(sources.WeatherConfig{
			APIKey:  cfg.OpenWeatherAPIKey,
			BaseURL: cfg.OpenWeatherURL,
			Timeout: timeout,
		}),
		sources.NewPodcastSource(sources.PodcastConfig{
			UserID:  cfg.TaddyUserID,
			APIKey:  cfg.TaddyAPIKey,
			URL:     cfg.TaddyURL,
			Timeout: timeout,
		}),
		sources.NewFeedSource(timeout),
	}
}

func buildTTSBackend(cfg *config.Config) (tts.Backend, error) {
	switch cfg.TTSProvider {
	case config.ProviderCartesia:
		return tts.NewCartesiaClient(tts.CartesiaConfig{
			APIKey:        cfg.CartesiaAPIKey,
			URL:           cfg.CartesiaURL,
			VoiceID:       cfg.CartesiaVoiceID,
			ModelID:       cfg.CartesiaModelID,
			MaxInputChars: cfg.TTSMaxChars,
			Timeout:       config.Seconds(cfg.TTSTimeout),
		}), nil
	case config.ProviderDeepgram:
		dg, err := tts.NewDeepgramClient(tts.DeepgramConfig{
			APIKey:        cfg.DeepgramAPIKey,
			Host:          cfg.DeepgramHost,
			Model:         cfg.DeepgramTTSModel,
			MaxInputChars: cfg.TTSMaxChars,
		})
		if err != nil {
			return nil, err
		}
		return dg, nil
	default:
		return nil, fmt.Errorf("unknown TTS provider %q", cfg.TTSProvider)
	}
}

// newBreaker creates a breaker that reports its state to the metrics
func newBreaker(cfg *config.Config, service string, logger zerolog.Logger) *resilience.CircuitBreaker {
	logger = logger.With().Str("component", "resilience").Logger()
	cb := resilience.NewCircuitBreaker(service, cfg.CircuitBreakerMaxFailures, config.Seconds(cfg.CircuitBreakerResetTimeout))
	cb.OnStateChange(func(name string, state resilience.CircuitState) {
		observability.UpdateCircuitBreakerState(name, int(state))
		if state == resilience.StateOpen {
			observability.IncrementCircuitBreakerFailures(name)
			logger.Warn().Str("service", name).Msg("Circuit breaker opened")
		}
	})
	return cb
}

// configured is a readiness check that never calls a paid API
func configured(what string, ok bool) observability.HealthCheckFunc {
	return func(context.Context) (bool, error) {
		if !ok {
			return false, fmt.Errorf("%s is not configured", what)
		}
		return true, nil
	}
}
