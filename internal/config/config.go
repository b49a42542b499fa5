package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// TTS providers
const (
	ProviderCartesia = "cartesia"
	ProviderDeepgram = "deepgram"
)

// Config holds all service-level configuration. Per-run preferences live in
// briefing.Config and are never read from the environment.
type Config struct {
	// Server configuration
	Port     string `envconfig:"PORT" default:"8080"`
	GRPCPort string `envconfig:"GRPC_PORT" default:"9090"`

	// Source providers
	NewsAPIKey        string `envconfig:"NEWSAPI_KEY"`
	NewsAPIBaseURL    string `envconfig:"NEWSAPI_BASE_URL" default:"https://newsapi.org"`
	NewsCountry       string `envconfig:"NEWS_COUNTRY" default:"us"`
	OpenWeatherAPIKey string `envconfig:"OPENWEATHER_API_KEY"`
	OpenWeatherURL    string `envconfig:"OPENWEATHER_BASE_URL" default:"https://api.openweathermap.org"`
	TaddyUserID       string `envconfig:"TADDY_USER_ID"`
	TaddyAPIKey       string `envconfig:"TADDY_API_KEY"`
	TaddyURL          string `envconfig:"TADDY_URL" default:"https://api.taddy.org/graphql"`
	SourceTimeout     int    `envconfig:"SOURCE_TIMEOUT" default:"10"` // seconds per provider call

	// Consolidation backend (any OpenAI-compatible chat endpoint)
	AIAPIKey      string  `envconfig:"AI_API_KEY"`
	AIBaseURL     string  `envconfig:"AI_BASE_URL" default:"https://generativelanguage.googleapis.com/v1beta/openai/"`
	AIModel       string  `envconfig:"AI_MODEL" default:"gemini-2.5-pro"`
	AITimeout     int     `envconfig:"AI_TIMEOUT" default:"90"` // seconds
	AITemperature float32 `envconfig:"AI_TEMPERATURE" default:"0.7"`

	// Duration budgeting
	SpeakingRateWPM   int     `envconfig:"SPEAKING_RATE_WPM" default:"150"`  // average words per minute
	DurationTolerance float64 `envconfig:"DURATION_TOLERANCE" default:"0.2"` // allowed overrun fraction

	// Text-to-speech
	TTSProvider      string `envconfig:"TTS_PROVIDER" default:"cartesia"` // cartesia, deepgram
	CartesiaAPIKey   string `envconfig:"CARTESIA_API_KEY"`
	CartesiaURL      string `envconfig:"CARTESIA_URL" default:"https://api.cartesia.ai/tts/bytes"`
	CartesiaVoiceID  string `envconfig:"CARTESIA_VOICE_ID" default:"694f9389-aac1-45b6-b726-9d9369183238"`
	CartesiaModelID  string `envconfig:"CARTESIA_MODEL_ID" default:"sonic-2"`
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY"`
	DeepgramTTSModel string `envconfig:"DEEPGRAM_TTS_MODEL" default:"aura-asteria-en"`
	DeepgramHost     string `envconfig:"DEEPGRAM_HOST"`
	TTSMaxChars      int    `envconfig:"TTS_MAX_CHARS" default:"1500"`        // per request input limit
	TTSMaxChunks     int    `envconfig:"TTS_MAX_CHUNKS" default:"200"`        // larger scripts are rejected
	TTSPaddingMs     int    `envconfig:"TTS_SEGMENT_PADDING_MS" default:"250"` // silence between chunks
	TTSTrimSilence   bool   `envconfig:"TTS_TRIM_SILENCE" default:"true"`     // trim edge silence of each chunk
	TTSTimeout       int    `envconfig:"TTS_TIMEOUT" default:"60"`            // seconds per chunk

	// Delivery
	OutputDir        string `envconfig:"OUTPUT_DIR" default:"./output"`
	S3Endpoint       string `envconfig:"S3_ENDPOINT" default:"s3.amazonaws.com"`
	S3Bucket         string `envconfig:"S3_BUCKET"`
	S3Region         string `envconfig:"S3_REGION" default:"us-east-1"`
	S3AccessKey      string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey      string `envconfig:"S3_SECRET_KEY"`
	S3UseSSL         bool   `envconfig:"S3_USE_SSL" default:"true"`
	S3KeepLocalCopy  bool   `envconfig:"S3_KEEP_LOCAL_COPY" default:"false"`
	StorageTimeout   int    `envconfig:"STORAGE_TIMEOUT" default:"60"` // seconds per upload
	RunTimeout       int    `envconfig:"RUN_TIMEOUT" default:"600"`    // seconds per pipeline run
	ProfilePath      string `envconfig:"BRIEFING_PROFILE" default:""`  // optional YAML defaults for runs
	HealthRefreshSec int    `envconfig:"HEALTH_REFRESH_INTERVAL" default:"30"`

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Fetch and AI attempts
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"200"`        // Initial backoff in milliseconds
	StageRetryMaxAttempts      int `envconfig:"STAGE_RETRY_MAX_ATTEMPTS" default:"2"`       // Synthesis and delivery attempts

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.TTSProvider {
	case ProviderCartesia:
		if c.CartesiaAPIKey == "" {
			return fmt.Errorf("CARTESIA_API_KEY is required when TTS_PROVIDER is cartesia")
		}
	case ProviderDeepgram:
		if c.DeepgramAPIKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY is required when TTS_PROVIDER is deepgram")
		}
	default:
		return fmt.Errorf("unknown TTS_PROVIDER %q", c.TTSProvider)
	}

	if c.SpeakingRateWPM <= 0 {
		return fmt.Errorf("SPEAKING_RATE_WPM must be positive")
	}
	if c.DurationTolerance < 0 {
		return fmt.Errorf("DURATION_TOLERANCE must not be negative")
	}
	if c.S3Bucket != "" && (c.S3AccessKey == "" || c.S3SecretKey == "") {
		return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY are required when S3_BUCKET is set")
	}
	return nil
}

// TTSKeySet reports whether the selected TTS provider has an API key
func (c *Config) TTSKeySet() bool {
	switch c.TTSProvider {
	case ProviderCartesia:
		return c.CartesiaAPIKey != ""
	case ProviderDeepgram:
		return c.DeepgramAPIKey != ""
	}
	return false
}

// ObjectStoreEnabled reports whether object storage delivery is configured
func (c *Config) ObjectStoreEnabled() bool {
	return c.S3Bucket != ""
}

// Seconds converts one of the integer second settings to a duration
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
