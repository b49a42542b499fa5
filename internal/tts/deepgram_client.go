package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	version "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/version"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	speak "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/speak"

	"github.com/c0ld-w4ter/you-fm/internal/briefing"
)

// DeepgramConfig holds configuration for Deepgram Aura speech
type DeepgramConfig struct {
	APIKey        string
	Host          string // empty means api.deepgram.com; may carry an http(s) scheme
	Model         string
	MaxInputChars int
}

// DeepgramClient implements Backend using Deepgram's speak REST API
type DeepgramClient struct {
	client   *speak.RESTClient
	model    string
	maxChars int
}

const (
	deepgramSampleRate = 24000
	// Aura rejects requests over 2000 characters
	deepgramMaxChars = 2000
)

type deepgramText struct {
	Text string `json:"text"`
}

// NewDeepgramClient creates a new Deepgram TTS client
func NewDeepgramClient(cfg DeepgramConfig) (*DeepgramClient, error) {
	model := cfg.Model
	if model == "" {
		model = "aura-asteria-en"
	}
	maxChars := cfg.MaxInputChars
	if maxChars <= 0 || maxChars > deepgramMaxChars {
		maxChars = deepgramMaxChars
	}

	c := speak.NewREST(cfg.APIKey, &interfaces.ClientOptions{Host: cfg.Host})
	if c == nil {
		return nil, fmt.Errorf("failed to create deepgram client: no API key")
	}
	return &DeepgramClient{
		client:   c,
		model:    model,
		maxChars: maxChars,
	}, nil
}

func (d *DeepgramClient) Name() string       { return "deepgram" }
func (d *DeepgramClient) SampleRate() int    { return deepgramSampleRate }
func (d *DeepgramClient) MaxInputChars() int { return d.maxChars }

// Synthesize requests headerless linear16 audio for one chunk of text. Aura
// voices are selected by model, so a non-default voice id names the model.
// Aura has no rate control and voice.Speed is ignored.
//
// The request goes through the SDK's request and response helpers rather than
// ToStream, which drops the HTTP status of a failed call.
func (d *DeepgramClient) Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error) {
	const op = "tts.deepgram"

	model := voice.ID
	if model == "" || model == DefaultVoiceName {
		model = d.model
	}

	options := &interfaces.SpeakOptions{
		Model:      model,
		Encoding:   "linear16",
		Container:  "none",
		SampleRate: deepgramSampleRate,
	}

	c := d.client
	uri, err := version.GetSpeakAPI(ctx, c.Options.Host, c.Options.APIVersion, c.Options.Path, options)
	if err != nil {
		return nil, briefing.NewError(briefing.KindTTSBackend, op, fmt.Errorf("failed to build speak url: %w", err))
	}

	jsonData, err := json.Marshal(deepgramText{Text: text})
	if err != nil {
		return nil, briefing.NewError(briefing.KindTTSBackend, op, fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := c.SetupRequest(ctx, http.MethodPost, uri, bytes.NewReader(jsonData))
	if err != nil {
		return nil, briefing.NewError(briefing.KindTTSBackend, op, fmt.Errorf("failed to create request: %w", err))
	}

	var buf interfaces.RawResponse
	responded := false
	err = c.HTTPClient.Do(ctx, req, func(res *http.Response) error {
		responded = true
		_, err := c.HandleResponse(res, nil, &buf)
		return err
	})
	if err != nil {
		return nil, deepgramError(op, err, responded)
	}

	if buf.Len() == 0 {
		return nil, briefing.Errorf(briefing.KindTTSBackend, op, "deepgram returned empty audio data")
	}
	return buf.Bytes(), nil
}

// deepgramError maps an SDK failure onto the same kinds the Cartesia backend
// reports for the same HTTP statuses
func deepgramError(op string, err error, responded bool) error {
	var se *interfaces.StatusError
	if errors.As(err, &se) && se.Resp != nil {
		detail := http.StatusText(se.Resp.StatusCode)
		if dg := se.DeepgramError; dg != nil {
			detail = strings.TrimSpace(dg.ErrCode + " " + dg.ErrMsg)
		}
		return statusError(op, se.Resp.StatusCode, detail)
	}
	if !responded {
		return briefing.NewError(briefing.KindNetwork, op, fmt.Errorf("failed to make request: %w", err))
	}
	return briefing.NewError(briefing.KindOf(err, briefing.KindTTSBackend), op, fmt.Errorf("speak request failed: %w", err))
}
