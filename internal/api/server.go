package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/c0ld-w4ter/you-fm/internal/observability"
)

// NewServer creates the HTTP router with all routes configured
func NewServer(handler *Handler, checks map[string]observability.HealthCheckFunc, metricsEnabled bool, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(RequestLogger(logger))
	r.Use(gin.Recovery())

	setupRoutes(r, handler, checks, metricsEnabled)
	return r
}

// setupRoutes configures all the application routes
func setupRoutes(r *gin.Engine, handler *Handler, checks map[string]observability.HealthCheckFunc, metricsEnabled bool) {
	r.GET("/health", gin.WrapF(observability.HealthCheckHandler()))
	r.GET("/ready", gin.WrapF(observability.ReadinessHandler(checks)))
	if metricsEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	v1 := r.Group("/v1")
	{
		v1.POST("/briefings", handler.CreateBriefing)
		v1.GET("/briefings/stream", handler.StreamBriefing)
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service": "you-fm",
			"endpoints": map[string]string{
				"create":  "POST /v1/briefings",
				"stream":  "GET /v1/briefings/stream (websocket)",
				"health":  "/health",
				"ready":   "/ready",
				"metrics": "/metrics",
			},
		})
	})
}

// RequestLogger writes one zerolog event per request
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	logger = logger.With().Str("component", "http").Logger()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := logger.Info()
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		}
		if len(c.Errors) > 0 {
			event = event.Str("error", c.Errors.String())
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}
