package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/c0ld-w4ter/you-fm/internal/config"
	"github.com/c0ld-w4ter/you-fm/internal/resilience"
)

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("CARTESIA_API_KEY", "test-key")
	t.Setenv("OUTPUT_DIR", t.TempDir())
	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}
	return cfg
}

func TestBuild(t *testing.T) {
	cfg := loadConfig(t)

	a, err := Build(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if a.Orchestrator == nil {
		t.Fatal("Expected orchestrator")
	}
	if len(a.Sources) != 4 {
		t.Errorf("Expected 4 sources, got %v", a.Sources)
	}
	if a.Defaults.ListenerName != "Seamus" {
		t.Errorf("Expected built-in defaults, got %+v", a.Defaults)
	}
	for _, name := range []string{"output_dir", "tts_cartesia"} {
		check, ok := a.Checks[name]
		if !ok {
			t.Errorf("Expected %s check", name)
			continue
		}
		if healthy, err := check(context.Background()); !healthy || err != nil {
			t.Errorf("Expected %s healthy, got %v %v", name, healthy, err)
		}
	}
	if _, ok := a.Checks["object_store"]; ok {
		t.Error("Expected no object store check without a bucket")
	}
}

func TestBuild_WithObjectStoreAndProfile(t *testing.T) {
	cfg := loadConfig(t)
	cfg.S3Bucket = "briefings"
	cfg.S3Endpoint = "localhost:9000"
	cfg.S3AccessKey = "key"
	cfg.S3SecretKey = "secret"

	profile := filepath.Join(t.TempDir(), "profile.yaml")
	os.WriteFile(profile, []byte("listener_name: Ada\nduration_minutes: 5\n"), 0o644)
	cfg.ProfilePath = profile

	a, err := Build(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if _, ok := a.Checks["object_store"]; !ok {
		t.Error("Expected object store check")
	}
	if a.Defaults.ListenerName != "Ada" || a.Defaults.DurationMinutes != 5 {
		t.Errorf("Expected profile defaults, got %+v", a.Defaults)
	}
}

func TestBuild_Errors(t *testing.T) {
	cfg := loadConfig(t)
	cfg.TTSProvider = "polly"
	if _, err := Build(cfg, zerolog.Nop()); err == nil {
		t.Error("Expected error for unknown provider")
	}

	cfg = loadConfig(t)
	cfg.ProfilePath = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := Build(cfg, zerolog.Nop()); err == nil {
		t.Error("Expected error for missing profile")
	}
}

func TestBuild_TTSCheckNeedsKey(t *testing.T) {
	cfg := loadConfig(t)
	cfg.CartesiaAPIKey = ""

	a, err := Build(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	healthy, err := a.Checks["tts_cartesia"](context.Background())
	if healthy || err == nil {
		t.Errorf("Expected unhealthy TTS check without a key, got %v %v", healthy, err)
	}
}

func TestNewBreaker_LogsOpen(t *testing.T) {
	cfg := loadConfig(t)
	cfg.CircuitBreakerMaxFailures = 1

	var buf bytes.Buffer
	cb := newBreaker(cfg, "tts_cartesia", zerolog.New(&buf))
	cb.RecordResult(false)

	if cb.GetState() != resilience.StateOpen {
		t.Fatalf("Expected open circuit, got %s", cb.GetState())
	}
	out := buf.String()
	if !strings.Contains(out, "Circuit breaker opened") || !strings.Contains(out, `"service":"tts_cartesia"`) {
		t.Errorf("Expected open warning, got %q", out)
	}
}
