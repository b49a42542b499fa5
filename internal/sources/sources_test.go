package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/c0ld-w4ter/you-fm/internal/briefing"
)

func TestCleanText(t *testing.T) {
	got := CleanText("<p>Hello <b>world</b></p><script>alert(1)</script>\n\n  again")
	if got != "Hello world again" {
		t.Errorf("Expected 'Hello world again', got %q", got)
	}
	if CleanText("   ") != "" {
		t.Error("Expected empty string for whitespace input")
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("the quick brown fox jumps", 12); got != "the quick..." {
		t.Errorf("Expected 'the quick...', got %q", got)
	}
	if got := Truncate("short", 100); got != "short" {
		t.Errorf("Expected text unchanged, got %q", got)
	}
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		status int
		want   briefing.ErrorKind
	}{
		{http.StatusUnauthorized, briefing.KindAuth},
		{http.StatusForbidden, briefing.KindAuth},
		{http.StatusTooManyRequests, briefing.KindRateLimited},
		{http.StatusBadGateway, briefing.KindNetwork},
		{http.StatusNotFound, briefing.KindParse},
	}
	for _, tt := range tests {
		err := statusError("test", tt.status, "")
		if got := briefing.KindOf(err, ""); got != tt.want {
			t.Errorf("Status %d: expected %s, got %s", tt.status, tt.want, got)
		}
	}
}

func newsConfig(topics ...string) briefing.Config {
	cfg := briefing.DefaultConfig()
	cfg.NewsTopics = topics
	return cfg
}

func TestNewsAPISource_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/top-headlines" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "news-key" {
			t.Errorf("Expected api key header, got %q", r.Header.Get("X-Api-Key"))
		}
		if r.URL.Query().Get("country") != "us" || r.URL.Query().Get("language") != "en" {
			t.Errorf("Unexpected query %s", r.URL.RawQuery)
		}

		topic := r.URL.Query().Get("category")
		resp := map[string]any{
			"status": "ok",
			"articles": []map[string]any{
				{
					"source":      map[string]string{"name": "Wire"},
					"title":       "Shared story",
					"url":         "https://example.com/shared",
					"content":     "Body text… [+1234 chars]",
					"publishedAt": "2026-10-16T08:00:00Z",
				},
				{
					"source":      map[string]string{"name": "Paper"},
					"title":       topic + " exclusive",
					"url":         "https://example.com/" + topic,
					"description": "<p>Only a <em>description</em></p>",
				},
				{"title": "[Removed]", "url": "https://removed.com"},
				{"title": "No link"},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	src := NewNewsAPISource(NewsAPIConfig{APIKey: "news-key", BaseURL: server.URL})
	items, err := src.Fetch(context.Background(), newsConfig("technology", "science"))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if len(items) != 3 {
		t.Fatalf("Expected 3 items after dedupe, got %d", len(items))
	}
	if items[0].Body != "Body text" {
		t.Errorf("Expected truncation marker stripped, got %q", items[0].Body)
	}
	if items[0].Metadata[briefing.MetaPublisher] != "Wire" || items[0].Topic() != "technology" {
		t.Errorf("Unexpected metadata %v", items[0].Metadata)
	}
	if items[0].PublishedAt == nil {
		t.Error("Expected published time to be parsed")
	}
	if items[1].Body != "Only a description" {
		t.Errorf("Expected description fallback, got %q", items[1].Body)
	}
	if items[2].Topic() != "science" {
		t.Errorf("Expected science topic, got %q", items[2].Topic())
	}
}

func TestNewsAPISource_APIKeyError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"status":"error","code":"apiKeyInvalid","message":"Your API key is invalid"}`)
	}))
	defer server.Close()

	src := NewNewsAPISource(NewsAPIConfig{APIKey: "bad", BaseURL: server.URL})
	_, err := src.Fetch(context.Background(), newsConfig("technology"))
	if briefing.KindOf(err, "") != briefing.KindAuth {
		t.Errorf("Expected auth_error, got %v", err)
	}
}

func TestNewsAPISource_MissingKey(t *testing.T) {
	src := NewNewsAPISource(NewsAPIConfig{})
	_, err := src.Fetch(context.Background(), newsConfig("technology"))
	if briefing.KindOf(err, "") != briefing.KindAuth {
		t.Errorf("Expected auth_error, got %v", err)
	}
}

func TestNewsAPISource_PartialTopicFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("category") == "business" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		io.WriteString(w, `{"status":"ok","articles":[{"title":"Chip news","url":"https://example.com/chip"}]}`)
	}))
	defer server.Close()

	src := NewNewsAPISource(NewsAPIConfig{APIKey: "k", BaseURL: server.URL})
	items, err := src.Fetch(context.Background(), newsConfig("business", "technology"))
	if err != nil {
		t.Fatalf("Expected surviving topic to succeed, got %v", err)
	}
	if len(items) != 1 {
		t.Errorf("Expected 1 item, got %d", len(items))
	}
}

func TestNewsAPISource_NoArticles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status":"ok","articles":[]}`)
	}))
	defer server.Close()

	src := NewNewsAPISource(NewsAPIConfig{APIKey: "k", BaseURL: server.URL})
	_, err := src.Fetch(context.Background(), newsConfig("technology"))
	if briefing.KindOf(err, "") != briefing.KindEmpty {
		t.Errorf("Expected empty_result, got %v", err)
	}
}

func TestParseNewsResponse_Malformed(t *testing.T) {
	_, err := ParseNewsResponse([]byte("not json"), "technology")
	if briefing.KindOf(err, "") != briefing.KindParse {
		t.Errorf("Expected parse_error, got %v", err)
	}
}

func TestWeatherSource_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("q") != "Denver,US" || q.Get("units") != "metric" || q.Get("appid") != "wx" {
			t.Errorf("Unexpected query %s", r.URL.RawQuery)
		}
		io.WriteString(w, `{"name":"Denver","sys":{"country":"US"},"main":{"temp":21.6,"humidity":40},
			"weather":[{"description":"scattered clouds"}],"wind":{"speed":3.2},"dt":1760600000}`)
	}))
	defer server.Close()

	src := NewWeatherSource(WeatherConfig{APIKey: "wx", BaseURL: server.URL})
	items, err := src.Fetch(context.Background(), briefing.DefaultConfig())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}

	item := items[0]
	if item.Kind != briefing.KindWeather {
		t.Errorf("Expected weather kind, got %s", item.Kind)
	}
	if item.Title != "Weather in Denver, US" {
		t.Errorf("Unexpected title %q", item.Title)
	}
	if item.Metadata["conditions"] != "Scattered Clouds" {
		t.Errorf("Expected title-cased conditions, got %q", item.Metadata["conditions"])
	}
	if !strings.Contains(item.Body, "22 degrees") || !strings.Contains(item.Body, "40 percent") {
		t.Errorf("Unexpected body %q", item.Body)
	}
}

func TestWeatherSource_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	src := NewWeatherSource(WeatherConfig{APIKey: "wx", BaseURL: server.URL})
	_, err := src.Fetch(context.Background(), briefing.DefaultConfig())
	if briefing.KindOf(err, "") != briefing.KindRateLimited {
		t.Errorf("Expected rate_limited, got %v", err)
	}
	if !briefing.IsTransient(err) {
		t.Error("Expected rate limit to be transient")
	}
}

func TestParseWeatherResponse_MissingFields(t *testing.T) {
	_, err := ParseWeatherResponse([]byte(`{"name":"Denver","weather":[]}`))
	if briefing.KindOf(err, "") != briefing.KindParse {
		t.Errorf("Expected parse_error, got %v", err)
	}
}

func TestParseWeatherResponse_Conditions(t *testing.T) {
	tests := []struct {
		description string
		conditions  string
		body        string
	}{
		{"Light RAIN ", "Light Rain", "Currently 9 degrees Celsius with light rain. Humidity is 80 percent and the wind is 5.0 meters per second."},
		{"", "", "Currently 9 degrees Celsius. Humidity is 80 percent and the wind is 5.0 meters per second."},
	}
	for _, tt := range tests {
		body := fmt.Sprintf(`{"name":"Oslo","main":{"temp":8.7,"humidity":80},"weather":[{"description":%q}],"wind":{"speed":5}}`, tt.description)
		item, err := ParseWeatherResponse([]byte(body))
		if err != nil {
			t.Fatalf("ParseWeatherResponse(%q) failed: %v", tt.description, err)
		}
		if item.Metadata["conditions"] != tt.conditions {
			t.Errorf("Expected conditions %q, got %q", tt.conditions, item.Metadata["conditions"])
		}
		if item.Body != tt.body {
			t.Errorf("Expected body %q, got %q", tt.body, item.Body)
		}
	}
}

func TestPodcastSource_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.Header.Get("X-USER-ID") != "42" || r.Header.Get("X-API-KEY") != "taddy" {
			t.Errorf("Missing auth headers")
		}

		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
			return
		}
		if !strings.Contains(req.Query, "getPodcastSeries") || req.Variables["name"] != "Hard Fork" {
			t.Errorf("Unexpected request %+v", req)
		}

		io.WriteString(w, `{"data":{"getPodcastSeries":{"uuid":"s1","name":"Hard Fork","episodes":[
			{"uuid":"e1","name":"AI Week","description":"<p>Big <b>news</b></p>","audioUrl":"https://cdn/e1.mp3","datePublished":1760600000},
			{"uuid":"e2","name":"No audio","description":"skip","audioUrl":""}
		]}}}`)
	}))
	defer server.Close()

	cfg := briefing.DefaultConfig()
	cfg.PodcastShows = []string{"Hard Fork"}

	src := NewPodcastSource(PodcastConfig{UserID: "42", APIKey: "taddy", URL: server.URL})
	items, err := src.Fetch(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 episode with audio, got %d", len(items))
	}
	if items[0].Body != "Big news" {
		t.Errorf("Expected cleaned description, got %q", items[0].Body)
	}
	if items[0].Metadata[briefing.MetaAudioURL] != "https://cdn/e1.mp3" || items[0].Topic() != "Hard Fork" {
		t.Errorf("Unexpected metadata %v", items[0].Metadata)
	}
}

func TestParsePodcastResponse_GraphQLErrors(t *testing.T) {
	_, err := ParsePodcastResponse([]byte(`{"data":{"getPodcastSeries":null},"errors":[{"message":"Invalid API key"}]}`), "Show")
	if briefing.KindOf(err, "") != briefing.KindAuth {
		t.Errorf("Expected auth_error, got %v", err)
	}

	_, err = ParsePodcastResponse([]byte(`{"data":{"getPodcastSeries":null},"errors":[{"message":"Syntax error"}]}`), "Show")
	if briefing.KindOf(err, "") != briefing.KindParse {
		t.Errorf("Expected parse_error, got %v", err)
	}

	_, err = ParsePodcastResponse([]byte(`{"data":{"getPodcastSeries":null}}`), "Show")
	if briefing.KindOf(err, "") != briefing.KindEmpty {
		t.Errorf("Expected empty_result, got %v", err)
	}
}

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Go Weekly</title>
  <link>https://example.com</link>
  <item><title>Generics tips</title><link>https://example.com/1</link><description>&lt;p&gt;Use &lt;b&gt;constraints&lt;/b&gt;&lt;/p&gt;</description><pubDate>Thu, 16 Oct 2026 08:00:00 GMT</pubDate></item>
  <item><title>Fuzzing</title><link>https://example.com/2</link><description>Fuzz all the things</description></item>
  <item><title>Profiling</title><link>https://example.com/3</link><description>pprof</description></item>
</channel>
</rss>`

func TestFeedSource_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		io.WriteString(w, testFeed)
	}))
	defer server.Close()

	cfg := briefing.DefaultConfig()
	cfg.Feeds = []string{server.URL + "/rss"}
	cfg.Sources[briefing.SourceFeeds] = briefing.SourceSettings{Enabled: true, MaxItems: 2}

	src := NewFeedSource(time.Second)
	items, err := src.Fetch(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if items[0].Kind != briefing.KindOther || items[0].Topic() != "Go Weekly" {
		t.Errorf("Unexpected item %+v", items[0])
	}
	if items[0].Body != "Use constraints" {
		t.Errorf("Expected cleaned description, got %q", items[0].Body)
	}
	if items[0].PublishedAt == nil {
		t.Error("Expected pubDate to be parsed")
	}
}

func TestFeedSource_InvalidDocument(t *testing.T) {
	_, err := NewFeedSource(time.Second).ParseFeed([]byte("plainly not a feed"), "https://example.com", 3)
	if briefing.KindOf(err, "") != briefing.KindParse {
		t.Errorf("Expected parse_error, got %v", err)
	}
}

func TestFeedSource_NoFeeds(t *testing.T) {
	cfg := briefing.DefaultConfig()
	cfg.Feeds = nil
	_, err := NewFeedSource(time.Second).Fetch(context.Background(), cfg)
	if briefing.KindOf(err, "") != briefing.KindEmpty {
		t.Errorf("Expected empty_result, got %v", err)
	}
}

func TestFetch_ServerDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	src := NewWeatherSource(WeatherConfig{APIKey: "wx", BaseURL: url, Timeout: time.Second})
	_, err := src.Fetch(context.Background(), briefing.DefaultConfig())
	if briefing.KindOf(err, "") != briefing.KindNetwork {
		t.Errorf("Expected network_error, got %v", err)
	}
}
