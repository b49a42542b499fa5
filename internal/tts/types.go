package tts

import (
	"context"
	"fmt"
	"net/http"

	"github.com/c0ld-w4ter/you-fm/internal/briefing"
)

// Voice selects the speaker for a synthesis request
type Voice struct {
	ID    string  // provider voice or model identifier
	Speed float64 // 1.0 is the provider's normal rate
}

// Backend is a text-to-speech provider. Synthesize returns raw signed 16-bit
// little-endian mono PCM at SampleRate. Text longer than MaxInputChars is
// rejected by the provider and must be chunked by the caller.
type Backend interface {
	Name() string
	SampleRate() int
	MaxInputChars() int
	Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error)
}

// DefaultVoiceName is the configuration value that selects the provider's
// configured voice
const DefaultVoiceName = "default"

// statusError classifies a provider HTTP failure. Rate limits and server
// errors are retried; other statuses are final.
func statusError(op string, status int, detail string) error {
	err := fmt.Errorf("status %d: %s", status, detail)
	switch {
	case status == http.StatusRequestEntityTooLarge:
		return briefing.NewError(briefing.KindInputTooLarge, op, err)
	case status == http.StatusTooManyRequests || status >= 500:
		return briefing.NewTemporaryError(briefing.KindTTSBackend, op, err)
	default:
		return briefing.NewError(briefing.KindTTSBackend, op, err)
	}
}
