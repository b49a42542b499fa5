package consolidation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/c0ld-w4ter/you-fm/internal/briefing"
	"github.com/c0ld-w4ter/you-fm/internal/observability"
	"github.com/c0ld-w4ter/you-fm/internal/resilience"
)

// Options tunes the engine
type Options struct {
	WordsPerMinute float64       // base speaking rate before voice speed
	Tolerance      float64       // allowed overrun of the AI script, e.g. 0.2
	Timeout        time.Duration // per backend call
	Retry          *resilience.RetryConfig
	Breaker        *resilience.CircuitBreaker
}

// DefaultOptions returns the engine defaults
func DefaultOptions() Options {
	return Options{
		WordsPerMinute: DefaultWordsPerMinute,
		Tolerance:      0.2,
		Timeout:        90 * time.Second,
		Retry:          resilience.DefaultRetryConfig(),
	}
}

// Outcome is the result of the consolidation stage
type Outcome struct {
	Script   briefing.Script
	Status   briefing.StageStatus
	Errors   []briefing.ErrorRecord
	Warnings []string
}

// Engine writes the briefing script from a bundle with one batched AI call,
// falling back to a deterministic script when the backend is unavailable
type Engine struct {
	backend Backend
	opts    Options
	logger  zerolog.Logger
}

// NewEngine creates an engine. A nil backend always uses the fallback.
func NewEngine(backend Backend, opts Options, logger zerolog.Logger) *Engine {
	def := DefaultOptions()
	if opts.WordsPerMinute <= 0 {
		opts.WordsPerMinute = def.WordsPerMinute
	}
	if opts.Tolerance < 0 {
		opts.Tolerance = def.Tolerance
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.Retry == nil {
		opts.Retry = def.Retry
	}
	return &Engine{
		backend: backend,
		opts:    opts,
		logger:  logger.With().Str("component", "consolidation").Logger(),
	}
}

// Consolidate produces the script for a run. It never fails: backend errors
// are recorded and answered with the fallback script.
func (e *Engine) Consolidate(ctx context.Context, bundle *briefing.ContentBundle, cfg briefing.Config) Outcome {
	wpm := EffectiveWPM(e.opts.WordsPerMinute, cfg.VoiceSpeed)
	target := float64(cfg.DurationMinutes) * 60

	if bundle.IsEmpty() {
		e.logger.Warn().Msg("No content available, using empty briefing script")
		return Outcome{
			Script:   e.script(EmptyScript(bundle, cfg), briefing.OriginEmpty, wpm, target),
			Status:   briefing.StatusDegraded,
			Warnings: []string{"no source returned content"},
		}
	}

	text, err := e.complete(ctx, BuildPrompt(bundle, cfg, wpm))
	if err != nil {
		e.logger.Warn().Err(err).Msg("AI consolidation failed, using fallback script")
		return Outcome{
			Script: e.script(FallbackScript(bundle, cfg, wpm), briefing.OriginFallback, wpm, target),
			Status: briefing.StatusDegraded,
			Errors: []briefing.ErrorRecord{{
				Stage:   briefing.StageConsolidation,
				Kind:    briefing.KindAIBackend,
				Message: err.Error(),
			}},
		}
	}

	out := Outcome{
		Script: e.script(text, briefing.OriginAI, wpm, target),
		Status: briefing.StatusOK,
	}
	if limit := target * (1 + e.opts.Tolerance); out.Script.EstimatedSpokenSeconds > limit {
		out.Status = briefing.StatusDegraded
		out.Warnings = append(out.Warnings, fmt.Sprintf(
			"script runs %.0fs against a %.0fs target (tolerance %.0f%%)",
			out.Script.EstimatedSpokenSeconds, target, e.opts.Tolerance*100))
		e.logger.Warn().
			Float64("estimated_seconds", out.Script.EstimatedSpokenSeconds).
			Float64("target_seconds", target).
			Msg("AI script exceeds duration tolerance")
	}
	return out
}

// complete runs the backend call under the breaker and retry policy and
// returns sanitized text
func (e *Engine) complete(ctx context.Context, prompt Prompt) (string, error) {
	if e.backend == nil {
		return "", briefing.Errorf(briefing.KindAIBackend, "ai.complete", "no AI backend configured")
	}

	retry := e.opts.Retry.WithHook(func(attempt int, err error, wait time.Duration) {
		e.logger.Warn().Err(err).Int("attempt", attempt).Dur("backoff", wait).Msg("AI request failed, retrying")
	})

	var text string
	_, err := resilience.Retry(ctx, func(ctx context.Context) error {
		call := func() error {
			callCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
			defer cancel()

			start := time.Now()
			out, err := e.backend.Complete(callCtx, prompt)
			observability.RecordAIRequest(err == nil, time.Since(start))
			if err != nil {
				return err
			}
			text = Sanitize(out)
			if text == "" {
				return briefing.Errorf(briefing.KindAIBackend, "ai.complete", "completion is empty after sanitizing")
			}
			return nil
		}
		if e.opts.Breaker == nil {
			return call()
		}
		return e.opts.Breaker.Call(call, countsAgainstBackend)
	}, retry, briefing.IsTransient)
	return text, err
}

// countsAgainstBackend ignores failures caused by the caller giving up
func countsAgainstBackend(err error) bool {
	return !errors.Is(err, context.Canceled)
}

func (e *Engine) script(text string, origin briefing.ScriptOrigin, wpm, target float64) briefing.Script {
	words := CountWords(text)
	return briefing.Script{
		Text:                   text,
		Words:                  words,
		EstimatedSpokenSeconds: EstimateSeconds(words, wpm),
		TargetSeconds:          target,
		Origin:                 origin,
	}
}
