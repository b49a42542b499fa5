package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/c0ld-w4ter/you-fm/internal/briefing"
	"github.com/c0ld-w4ter/you-fm/internal/pipeline"
)

// Runner executes one briefing run
type Runner interface {
	RunObserved(ctx context.Context, cfg briefing.Config, observe pipeline.Observer) (*briefing.PipelineResult, error)
}

// Handler handles briefing requests
type Handler struct {
	runner     Runner
	defaults   briefing.Config
	runTimeout time.Duration
	logger     zerolog.Logger
}

// NewHandler creates a handler. Request bodies are overlaid on defaults.
func NewHandler(runner Runner, defaults briefing.Config, runTimeout time.Duration, logger zerolog.Logger) *Handler {
	return &Handler{
		runner:     runner,
		defaults:   defaults,
		runTimeout: runTimeout,
		logger:     logger.With().Str("component", "api").Logger(),
	}
}

// errorResponse is the body of every non-result response
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// CreateBriefing runs the pipeline synchronously and returns the result:
// 200 for success or partial, 502 when no audio was produced
func (h *Handler) CreateBriefing(c *gin.Context) {
	cfg, err := h.decodeConfig(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid briefing config", Details: err.Error()})
		return
	}

	ctx, cancel := h.runContext(c.Request.Context())
	defer cancel()

	result, err := h.runner.RunObserved(ctx, cfg, nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid briefing config", Details: err.Error()})
		return
	}

	c.JSON(statusCode(result), result)
}

// decodeConfig overlays a JSON body on the defaults. An empty body runs the
// defaults unchanged.
func (h *Handler) decodeConfig(body io.Reader) (briefing.Config, error) {
	cfg := cloneConfig(h.defaults)
	if body == nil {
		return cfg, cfg.Validate()
	}

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to decode body: %w", err)
	}
	return cfg, cfg.Validate()
}

func (h *Handler) runContext(parent context.Context) (context.Context, context.CancelFunc) {
	if h.runTimeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, h.runTimeout)
}

func statusCode(result *briefing.PipelineResult) int {
	if result.Status == briefing.RunFailed {
		return http.StatusBadGateway
	}
	return http.StatusOK
}

// cloneConfig copies the slices and maps of cfg so a decoded request never
// writes into the shared defaults
func cloneConfig(cfg briefing.Config) briefing.Config {
	out := cfg
	out.NewsTopics = append([]string(nil), cfg.NewsTopics...)
	out.PodcastShows = append([]string(nil), cfg.PodcastShows...)
	out.Feeds = append([]string(nil), cfg.Feeds...)
	out.ExcludeKeywords = append([]string(nil), cfg.ExcludeKeywords...)
	if cfg.Sources != nil {
		out.Sources = make(map[string]briefing.SourceSettings, len(cfg.Sources))
		for k, v := range cfg.Sources {
			out.Sources[k] = v
		}
	}
	return out
}
