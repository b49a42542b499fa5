package consolidation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/c0ld-w4ter/you-fm/internal/briefing"
)

// Backend turns one prompt into narrative text
type Backend interface {
	Name() string
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// OpenAIConfig holds configuration for an OpenAI-compatible chat endpoint
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string // empty uses api.openai.com
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// OpenAIBackend calls a chat completion endpoint through go-openai. Gemini
// and other providers with an OpenAI-compatible surface work through BaseURL.
type OpenAIBackend struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAIBackend creates a new chat completion backend
func NewOpenAIBackend(cfg OpenAIConfig) *OpenAIBackend {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &OpenAIBackend{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}
}

// Name returns the model identifier
func (b *OpenAIBackend) Name() string {
	return b.model
}

// Complete sends the prompt as a system and a user message
func (b *OpenAIBackend) Complete(ctx context.Context, prompt Prompt) (string, error) {
	const op = "ai.complete"

	req := openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.System},
			{Role: openai.ChatMessageRoleUser, Content: prompt.User},
		},
		Temperature: b.temperature,
		MaxTokens:   prompt.MaxTokens,
	}

	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyAIError(op, err)
	}
	if len(resp.Choices) == 0 {
		return "", briefing.Errorf(briefing.KindAIBackend, op, "response has no choices")
	}

	choice := resp.Choices[0]
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return "", briefing.Errorf(briefing.KindAIBackend, op, "empty completion (finish reason %q)", choice.FinishReason)
	}
	return text, nil
}

// classifyAIError maps client errors so the retry policy can tell transient
// failures from permanent ones
func classifyAIError(op string, err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return briefing.NewError(briefing.KindAuth, op, err)
	case status == http.StatusTooManyRequests:
		return briefing.NewError(briefing.KindRateLimited, op, err)
	case status >= 500:
		return briefing.NewTemporaryError(briefing.KindAIBackend, op, err)
	case status != 0:
		return briefing.NewError(briefing.KindAIBackend, op, fmt.Errorf("status %d: %w", status, err))
	}
	return briefing.NewError(briefing.KindOf(err, briefing.KindAIBackend), op, err)
}
