package delivery

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/c0ld-w4ter/you-fm/internal/audio"
	"github.com/c0ld-w4ter/you-fm/internal/briefing"
)

// LocalStore writes briefings into a directory on the local filesystem
type LocalStore struct {
	dir string
}

// NewLocalStore creates a store rooted at dir. The directory is created on
// first write.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

// Dir returns the output directory
func (s *LocalStore) Dir() string {
	return s.dir
}

// Files are the paths written for one briefing
type Files struct {
	Audio  string
	Script string
}

// Write stores the artifact as a WAV file plus the script text and verifies
// the audio by reading its header back
func (s *LocalStore) Write(name Name, artifact *briefing.AudioArtifact, script string) (Files, error) {
	const op = "delivery.local"

	if artifact == nil || len(artifact.Data) == 0 {
		return Files{}, briefing.Errorf(briefing.KindStorageWrite, op, "no audio to write")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Files{}, briefing.NewError(briefing.KindStorageWrite, op, fmt.Errorf("failed to create output dir: %w", err))
	}

	files := Files{
		Audio:  filepath.Join(s.dir, name.Audio()),
		Script: filepath.Join(s.dir, name.Script()),
	}

	format := artifact.Format
	if err := audio.WriteWAV(files.Audio, artifact.Data, format.SampleRate, format.Channels); err != nil {
		os.Remove(files.Audio)
		return Files{}, briefing.NewError(briefing.KindStorageWrite, op, err)
	}
	if err := verifyWAV(files.Audio, artifact); err != nil {
		os.Remove(files.Audio)
		return Files{}, briefing.NewError(briefing.KindStorageWrite, op, err)
	}

	if err := os.WriteFile(files.Script, []byte(script+"\n"), 0o644); err != nil {
		os.Remove(files.Audio)
		return Files{}, briefing.NewError(briefing.KindStorageWrite, op, fmt.Errorf("failed to write script: %w", err))
	}
	return files, nil
}

// Check reports whether the output directory is writable
func (s *LocalStore) Check(ctx context.Context) (bool, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return false, err
	}
	f, err := os.CreateTemp(s.dir, ".ready-*")
	if err != nil {
		return false, err
	}
	f.Close()
	os.Remove(f.Name())
	return true, nil
}

func verifyWAV(path string, artifact *briefing.AudioArtifact) error {
	info, err := audio.ReadWAVInfo(path)
	if err != nil {
		return err
	}
	if info.SampleRate != artifact.Format.SampleRate || info.Channels != artifact.Format.Channels {
		return fmt.Errorf("wav header mismatch: %d Hz x %d channels", info.SampleRate, info.Channels)
	}
	// One sample of slack for header rounding
	if math.Abs(info.Duration.Seconds()-artifact.DurationSeconds) > 1/float64(artifact.Format.SampleRate)+0.001 {
		return fmt.Errorf("wav duration %.3fs does not match %.3fs", info.Duration.Seconds(), artifact.DurationSeconds)
	}
	return nil
}
