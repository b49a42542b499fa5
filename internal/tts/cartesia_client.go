package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/c0ld-w4ter/you-fm/internal/briefing"
)

// CartesiaConfig holds configuration for the Cartesia bytes endpoint
type CartesiaConfig struct {
	APIKey        string
	URL           string
	VoiceID       string
	ModelID       string
	MaxInputChars int
	Timeout       time.Duration
}

// CartesiaClient implements Backend using Cartesia's /tts/bytes endpoint
type CartesiaClient struct {
	apiKey     string
	apiURL     string
	voiceID    string
	modelID    string
	maxChars   int
	httpClient *http.Client
}

const (
	cartesiaVersion    = "2025-04-16"
	cartesiaSampleRate = 24000
)

// CartesiaRequest represents the request payload for the Cartesia bytes API
type CartesiaRequest struct {
	ModelID      string               `json:"model_id"`
	Transcript   string               `json:"transcript"`
	Voice        cartesiaVoice        `json:"voice"`
	OutputFormat cartesiaOutputFormat `json:"output_format"`
	Language     string               `json:"language,omitempty"`
	Speed        string               `json:"speed,omitempty"`
}

type cartesiaVoice struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type cartesiaOutputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

// NewCartesiaClient creates a new Cartesia TTS client
func NewCartesiaClient(cfg CartesiaConfig) *CartesiaClient {
	apiURL := cfg.URL
	if apiURL == "" {
		apiURL = "https://api.cartesia.ai/tts/bytes"
	}
	modelID := cfg.ModelID
	if modelID == "" {
		modelID = "sonic-2"
	}
	maxChars := cfg.MaxInputChars
	if maxChars <= 0 {
		maxChars = 1500
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &CartesiaClient{
		apiKey:     cfg.APIKey,
		apiURL:     apiURL,
		voiceID:    cfg.VoiceID,
		modelID:    modelID,
		maxChars:   maxChars,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *CartesiaClient) Name() string       { return "cartesia" }
func (c *CartesiaClient) SampleRate() int    { return cartesiaSampleRate }
func (c *CartesiaClient) MaxInputChars() int { return c.maxChars }

// Synthesize requests raw PCM for one chunk of text
func (c *CartesiaClient) Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error) {
	const op = "tts.cartesia"

	voiceID := voice.ID
	if voiceID == "" || voiceID == DefaultVoiceName {
		voiceID = c.voiceID
	}
	if voiceID == "" {
		return nil, briefing.Errorf(briefing.KindTTSBackend, op, "no voice id configured")
	}

	reqBody := CartesiaRequest{
		ModelID:    c.modelID,
		Transcript: text,
		Voice:      cartesiaVoice{Mode: "id", ID: voiceID},
		OutputFormat: cartesiaOutputFormat{
			Container:  "raw",
			Encoding:   "pcm_s16le",
			SampleRate: cartesiaSampleRate,
		},
		Language: "en",
		Speed:    cartesiaSpeed(voice.Speed),
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, briefing.NewError(briefing.KindTTSBackend, op, fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, briefing.NewError(briefing.KindTTSBackend, op, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Cartesia-Version", cartesiaVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, briefing.NewError(briefing.KindNetwork, op, fmt.Errorf("failed to make request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, statusError(op, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, briefing.NewError(briefing.KindNetwork, op, fmt.Errorf("failed to read audio: %w", err))
	}
	if len(audioData) == 0 {
		return nil, briefing.Errorf(briefing.KindTTSBackend, op, "cartesia returned empty audio data")
	}
	return audioData, nil
}

// cartesiaSpeed maps a numeric rate onto Cartesia's named speeds
func cartesiaSpeed(speed float64) string {
	switch {
	case speed == 0:
		return ""
	case speed < 0.9:
		return "slow"
	case speed > 1.1:
		return "fast"
	default:
		return "normal"
	}
}
