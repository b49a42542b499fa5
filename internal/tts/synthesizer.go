package tts

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/c0ld-w4ter/you-fm/internal/audio"
	"github.com/c0ld-w4ter/you-fm/internal/briefing"
	"github.com/c0ld-w4ter/you-fm/internal/observability"
	"github.com/c0ld-w4ter/you-fm/internal/resilience"
)

// Options tunes the synthesizer
type Options struct {
	MaxChunks   int           // scripts needing more chunks are rejected
	Padding     time.Duration // silence inserted between segments
	TrimSilence bool          // trim edge silence of each segment
	Trim        audio.TrimConfig
	Normalize   bool
	Timeout     time.Duration // per backend call
	Retry       *resilience.RetryConfig
	Breaker     *resilience.CircuitBreaker
}

// DefaultOptions returns the synthesizer defaults
func DefaultOptions() Options {
	return Options{
		MaxChunks:   200,
		Padding:     250 * time.Millisecond,
		TrimSilence: true,
		Trim:        audio.DefaultTrimConfig(),
		Normalize:   true,
		Timeout:     60 * time.Second,
		Retry:       resilience.StageRetryConfig(),
	}
}

// Synthesizer turns a script into one audio artifact in the briefing format
type Synthesizer struct {
	backend Backend
	opts    Options
	logger  zerolog.Logger
}

// NewSynthesizer creates a synthesizer over backend
func NewSynthesizer(backend Backend, opts Options, logger zerolog.Logger) *Synthesizer {
	if opts.Retry == nil {
		opts.Retry = resilience.StageRetryConfig()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	return &Synthesizer{
		backend: backend,
		opts:    opts,
		logger:  logger.With().Str("component", "tts").Str("provider", backend.Name()).Logger(),
	}
}

// Synthesize splits the script, synthesizes each chunk in order and joins
// the segments with fixed padding. Any chunk that still fails after its retry
// fails the whole artifact.
func (s *Synthesizer) Synthesize(ctx context.Context, script briefing.Script, cfg briefing.Config) (*briefing.AudioArtifact, error) {
	const op = "tts.synthesize"
	format := briefing.BriefingFormat

	chunks := SplitScript(script.Text, s.backend.MaxInputChars())
	if len(chunks) == 0 {
		return nil, briefing.Errorf(briefing.KindTTSBackend, op, "script is empty")
	}
	if s.opts.MaxChunks > 0 && len(chunks) > s.opts.MaxChunks {
		return nil, briefing.Errorf(briefing.KindInputTooLarge, op,
			"script needs %d chunks, limit is %d", len(chunks), s.opts.MaxChunks)
	}

	voice := Voice{ID: cfg.Voice, Speed: cfg.VoiceSpeed}
	padding := audio.SilenceSamples(s.opts.Padding, format.SampleRate)

	var (
		joined   []int16
		segments = make([]float64, 0, len(chunks))
	)
	for i, chunk := range chunks {
		samples, err := s.synthesizeChunk(ctx, chunk, voice)
		if err != nil {
			if briefing.KindOf(err, "") == briefing.KindInputTooLarge {
				return nil, err
			}
			return nil, briefing.NewError(briefing.KindTTSBackend, op,
				fmt.Errorf("chunk %d of %d: %w", i+1, len(chunks), err))
		}

		if i > 0 {
			joined = append(joined, padding...)
		}
		joined = append(joined, samples...)
		segments = append(segments, audio.DurationSeconds(len(samples), format.SampleRate))
	}

	if s.opts.Normalize {
		joined = audio.Normalize(joined, 0.89, 4.0)
	}

	artifact := &briefing.AudioArtifact{
		Data:            audio.EncodePCM16(joined),
		Format:          format,
		DurationSeconds: audio.DurationSeconds(len(joined), format.SampleRate),
		SegmentSeconds:  segments,
	}
	observability.RecordAudioSeconds(artifact.DurationSeconds)
	s.logger.Info().
		Int("chunks", len(chunks)).
		Float64("duration_seconds", artifact.DurationSeconds).
		Msg("Synthesis complete")
	return artifact, nil
}

// synthesizeChunk calls the backend with retry and returns samples at the
// briefing sample rate
func (s *Synthesizer) synthesizeChunk(ctx context.Context, text string, voice Voice) ([]int16, error) {
	retry := s.opts.Retry.WithHook(func(attempt int, err error, wait time.Duration) {
		s.logger.Warn().Err(err).Int("attempt", attempt).Dur("backoff", wait).Msg("TTS request failed, retrying")
	})

	var pcm []byte
	_, err := resilience.Retry(ctx, func(ctx context.Context) error {
		call := func() error {
			callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
			defer cancel()

			start := time.Now()
			out, err := s.backend.Synthesize(callCtx, text, voice)
			observability.RecordTTSRequest(s.backend.Name(), err == nil, time.Since(start))
			if err != nil {
				return err
			}
			pcm = out
			return nil
		}
		if s.opts.Breaker == nil {
			return call()
		}
		return s.opts.Breaker.Call(call, func(err error) bool {
			return briefing.KindOf(err, "") != briefing.KindInputTooLarge && ctx.Err() == nil
		})
	}, retry, briefing.IsTransient)
	if err != nil {
		return nil, err
	}

	samples, err := audio.DecodePCM16(pcm)
	if err != nil {
		return nil, briefing.NewError(briefing.KindTTSBackend, "tts.decode", err)
	}
	samples = audio.Resample(samples, s.backend.SampleRate(), briefing.BriefingFormat.SampleRate)
	if s.opts.TrimSilence {
		samples = audio.TrimSilence(samples, briefing.BriefingFormat.SampleRate, s.opts.Trim)
	}
	return samples, nil
}
