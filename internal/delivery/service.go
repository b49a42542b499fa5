package delivery

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/c0ld-w4ter/you-fm/internal/briefing"
	"github.com/c0ld-w4ter/you-fm/internal/observability"
	"github.com/c0ld-w4ter/you-fm/internal/resilience"
)

const (
	contentTypeWAV    = "audio/wav"
	contentTypeScript = "text/plain; charset=utf-8"
)

// Options tunes delivery
type Options struct {
	Timeout       time.Duration // per upload attempt
	Retry         *resilience.RetryConfig
	KeepLocalCopy bool // also keep the audio in the output dir after an upload
}

// DefaultOptions returns the delivery defaults
func DefaultOptions() Options {
	return Options{
		Timeout: 60 * time.Second,
		Retry:   resilience.StageRetryConfig(),
	}
}

// Outcome is the result of the delivery stage
type Outcome struct {
	Reference *briefing.AudioReference
	Status    briefing.StageStatus
	Errors    []briefing.ErrorRecord
}

// Service persists artifacts to the requested destination, falling back to
// the local store when the object store cannot be written
type Service struct {
	local  *LocalStore
	remote ObjectStore
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a delivery service. remote may be nil when no object
// store is configured.
func NewService(local *LocalStore, remote ObjectStore, opts Options, logger zerolog.Logger) *Service {
	if opts.Retry == nil {
		opts.Retry = resilience.StageRetryConfig()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	return &Service{
		local:  local,
		remote: remote,
		opts:   opts,
		logger: logger.With().Str("component", "delivery").Logger(),
		now:    time.Now,
	}
}

// WithClock replaces the clock used for file names
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// HasObjectStore reports whether uploads are possible
func (s *Service) HasObjectStore() bool {
	return s.remote != nil
}

// Deliver writes the artifact and script to dest and returns a reference.
// An object store failure degrades to a local write; the stage only fails
// when nothing could be written.
func (s *Service) Deliver(ctx context.Context, artifact *briefing.AudioArtifact, script briefing.Script, dest briefing.Destination) Outcome {
	name := NewName(s.now())
	logger := s.logger.With().Str("destination", string(dest)).Str("name", string(name)).Logger()

	var out Outcome
	if dest == briefing.DestinationObjectStore {
		ref, err := s.upload(ctx, name, artifact, script.Text)
		if err == nil {
			observability.RecordDelivery(string(dest), "ok")
			logger.Info().Str("location", ref.Location).Msg("Briefing uploaded")
			out.Reference = ref
			out.Status = briefing.StatusOK
			return out
		}

		observability.RecordDelivery(string(dest), "failed")
		logger.Warn().Err(err).Msg("Object store write failed, falling back to local storage")
		out.Errors = append(out.Errors, storageRecord(string(dest), err))
	}

	files, err := s.local.Write(name, artifact, script.Text)
	if err != nil {
		observability.RecordDelivery(string(briefing.DestinationLocal), "failed")
		logger.Error().Err(err).Msg("Local write failed")
		out.Errors = append(out.Errors, storageRecord(string(briefing.DestinationLocal), err))
		out.Status = briefing.StatusFailed
		return out
	}

	observability.RecordDelivery(string(briefing.DestinationLocal), "ok")
	logger.Info().Str("path", files.Audio).Msg("Briefing written")
	out.Reference = &briefing.AudioReference{
		Destination:    briefing.DestinationLocal,
		Location:       files.Audio,
		ScriptLocation: files.Script,
		Filename:       name.Audio(),
	}
	out.Status = briefing.StatusOK
	if len(out.Errors) > 0 {
		out.Status = briefing.StatusDegraded
	}
	return out
}

// upload stages the files in a temporary directory, uploads both with one
// retry of transient failures and returns the remote reference
func (s *Service) upload(ctx context.Context, name Name, artifact *briefing.AudioArtifact, script string) (*briefing.AudioReference, error) {
	const op = "delivery.object_store"

	if s.remote == nil {
		return nil, briefing.Errorf(briefing.KindStorageWrite, op, "object store is not configured")
	}

	staging, err := os.MkdirTemp("", "youfm-*")
	if err != nil {
		return nil, briefing.NewError(briefing.KindStorageWrite, op, fmt.Errorf("failed to create staging dir: %w", err))
	}
	defer os.RemoveAll(staging)

	files, err := NewLocalStore(staging).Write(name, artifact, script)
	if err != nil {
		return nil, err
	}

	retry := s.opts.Retry.WithHook(func(attempt int, err error, wait time.Duration) {
		s.logger.Warn().Err(err).Int("attempt", attempt).Dur("backoff", wait).Msg("Upload failed, retrying")
	})

	ref := &briefing.AudioReference{Destination: briefing.DestinationObjectStore, Filename: name.Audio()}
	_, err = resilience.Retry(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()

		url, err := s.remote.Put(callCtx, name.Audio(), files.Audio, contentTypeWAV)
		if err != nil {
			return err
		}
		ref.Location = url

		url, err = s.remote.Put(callCtx, name.Script(), files.Script, contentTypeScript)
		if err != nil {
			return err
		}
		ref.ScriptLocation = url
		return nil
	}, retry, briefing.IsTransient)
	if err != nil {
		return nil, err
	}

	if s.opts.KeepLocalCopy {
		if _, err := s.local.Write(name, artifact, script); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to keep local copy")
		}
	}
	return ref, nil
}

// storageRecord records every delivery failure as storage_write_error,
// including timeouts
func storageRecord(dest string, err error) briefing.ErrorRecord {
	return briefing.ErrorRecord{
		Stage:   briefing.StageDelivery,
		Kind:    briefing.KindStorageWrite,
		Source:  dest,
		Message: err.Error(),
	}
}

// Checks returns readiness checks for the configured stores
func (s *Service) Checks() map[string]observability.HealthCheckFunc {
	checks := map[string]observability.HealthCheckFunc{
		"output_dir": s.local.Check,
	}
	if s.remote != nil {
		checks["object_store"] = s.remote.Check
	}
	return checks
}
