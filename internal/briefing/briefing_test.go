package briefing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected default config to be valid, got %v", err)
	}
	if cfg.DurationMinutes != 8 {
		t.Errorf("Expected default duration 8, got %d", cfg.DurationMinutes)
	}
	if cfg.ListenerName != "Seamus" {
		t.Errorf("Expected default listener 'Seamus', got '%s'", cfg.ListenerName)
	}
}

func TestConfigValidate_ReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DurationMinutes = 45
	cfg.Tone = "sarcastic"
	cfg.VoiceSpeed = 3
	cfg.Feeds = []string{"ftp://example.com/feed"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation error")
	}

	msg := err.Error()
	for _, want := range []string{"duration_minutes", "tone", "voice_speed", "ftp://example.com/feed"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Expected error to mention %q, got %q", want, msg)
		}
	}
}

func TestConfigSourceSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sources[SourceNews] = SourceSettings{Enabled: false, MaxItems: 5}
	delete(cfg.Sources, SourceFeeds)

	if cfg.SourceEnabled(SourceNews) {
		t.Error("Expected news to be disabled")
	}
	if !cfg.SourceEnabled(SourceFeeds) {
		t.Error("Expected missing source entry to default to enabled")
	}
	if cfg.MaxItems(SourceNews) != 5 {
		t.Errorf("Expected max items 5, got %d", cfg.MaxItems(SourceNews))
	}
	if cfg.MaxItems(SourceFeeds) != DefaultMaxItems {
		t.Errorf("Expected default max items %d, got %d", DefaultMaxItems, cfg.MaxItems(SourceFeeds))
	}
}

func TestNewContentItem_CopiesMetadata(t *testing.T) {
	meta := map[string]string{MetaTopic: "science"}
	item := NewContentItem(KindNews, "news", "Title", "Body", "https://example.com", nil, meta)

	meta[MetaTopic] = "changed"
	if item.Topic() != "science" {
		t.Errorf("Expected item metadata to be isolated, got topic %q", item.Topic())
	}
}

func TestNewBundle_OrdersByKind(t *testing.T) {
	podcast := NewContentItem(KindPodcast, "podcasts", "Episode", "", "", nil, nil)
	weather := NewContentItem(KindWeather, "weather", "Weather", "", "", nil, nil)
	news1 := NewContentItem(KindNews, "news", "First", "", "", nil, nil)
	news2 := NewContentItem(KindNews, "news", "Second", "", "", nil, nil)

	statuses := []FetchStatus{
		{Source: "podcasts", State: FetchOK, Items: 1},
		{Source: "weather", State: FetchOK, Items: 1},
		{Source: "news", State: FetchOK, Items: 2},
	}
	b := NewBundle(time.Now(), statuses, [][]ContentItem{{podcast}, {weather}, {news1, news2}})

	want := []string{"First", "Second", "Weather", "Episode"}
	if len(b.Items) != len(want) {
		t.Fatalf("Expected %d items, got %d", len(want), len(b.Items))
	}
	for i, title := range want {
		if b.Items[i].Title != title {
			t.Errorf("Item %d: expected %q, got %q", i, title, b.Items[i].Title)
		}
	}

	kinds := b.Kinds()
	if len(kinds) != 3 || kinds[0] != KindNews || kinds[2] != KindPodcast {
		t.Errorf("Unexpected kinds %v", kinds)
	}
}

func TestBundleIsEmpty(t *testing.T) {
	empty := NewBundle(time.Now(), []FetchStatus{{Source: "news", State: FetchFailed}}, nil)
	if !empty.IsEmpty() {
		t.Error("Expected bundle without items to be empty")
	}

	item := NewContentItem(KindNews, "news", "Title", "", "", nil, nil)
	full := NewBundle(time.Now(), []FetchStatus{{Source: "news", State: FetchOK, Items: 1}}, [][]ContentItem{{item}})
	if full.IsEmpty() {
		t.Error("Expected bundle with an ok source to be non-empty")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"typed", NewError(KindAuth, "op", errors.New("denied")), KindAuth},
		{"wrapped typed", fmt.Errorf("outer: %w", NewError(KindParse, "op", nil)), KindParse},
		{"deadline", context.DeadlineExceeded, KindNetwork},
		{"unknown", errors.New("boom"), KindTTSBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err, KindTTSBackend); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(NewError(KindRateLimited, "op", nil)) {
		t.Error("Expected rate_limited to be transient")
	}
	if !IsTransient(NewError(KindNetwork, "op", nil)) {
		t.Error("Expected network_error to be transient")
	}
	if IsTransient(NewError(KindAuth, "op", nil)) {
		t.Error("Expected auth_error not to be transient")
	}
	if IsTransient(NewError(KindParse, "op", nil)) {
		t.Error("Expected parse_error not to be transient")
	}
	if !IsTransient(NewTemporaryError(KindTTSBackend, "op", nil)) {
		t.Error("Expected temporary tts error to be transient")
	}
	if IsTransient(NewError(KindNetwork, "op", context.Canceled)) {
		t.Error("Expected cancellation not to be transient")
	}
}

func TestFinalize(t *testing.T) {
	r := NewPipelineResult("run", time.Now())
	for _, stage := range Stages {
		r.StageStatus[stage] = StatusOK
	}
	r.AudioReference = &AudioReference{Location: "/tmp/a.wav"}
	r.Finalize(time.Now())
	if r.Status != RunSuccess {
		t.Errorf("Expected success, got %s", r.Status)
	}

	r.StageStatus[StageConsolidation] = StatusDegraded
	r.Finalize(time.Now())
	if r.Status != RunPartial {
		t.Errorf("Expected partial, got %s", r.Status)
	}

	r.StageStatus[StageSynthesis] = StatusFailed
	r.StageStatus[StageDelivery] = StatusSkipped
	r.Finalize(time.Now())
	if r.Status != RunFailed {
		t.Errorf("Expected failed, got %s", r.Status)
	}
	if r.AudioReference != nil {
		t.Error("Expected failed result to drop the audio reference")
	}
}
