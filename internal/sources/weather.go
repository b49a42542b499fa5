package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/c0ld-w4ter/you-fm/internal/briefing"
)

// WeatherConfig configures the OpenWeatherMap client
type WeatherConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// WeatherSource reports current conditions for the configured location
type WeatherSource struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewWeatherSource creates a new OpenWeatherMap client
func NewWeatherSource(cfg WeatherConfig) *WeatherSource {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openweathermap.org"
	}
	return &WeatherSource{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newHTTPClient(cfg.Timeout),
	}
}

func (s *WeatherSource) Name() string              { return briefing.SourceWeather }
func (s *WeatherSource) Kind() briefing.SourceKind { return briefing.KindWeather }

// Fetch returns a single item describing current conditions
func (s *WeatherSource) Fetch(ctx context.Context, cfg briefing.Config) ([]briefing.ContentItem, error) {
	const op = "openweather.fetch"
	if s.apiKey == "" {
		return nil, briefing.Errorf(briefing.KindAuth, op, "OPENWEATHER_API_KEY is not set")
	}
	if cfg.Location.City == "" {
		return nil, briefing.Errorf(briefing.KindEmpty, op, "no location configured")
	}

	place := cfg.Location.City
	if cfg.Location.Country != "" {
		place += "," + cfg.Location.Country
	}
	q := url.Values{}
	q.Set("q", place)
	q.Set("appid", s.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/data/2.5/weather?"+q.Encode(), nil)
	if err != nil {
		return nil, briefing.NewError(briefing.KindParse, op, err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := do(s.httpClient, req, op)
	if err != nil {
		return nil, err
	}

	item, err := ParseWeatherResponse(body)
	if err != nil {
		return nil, err
	}
	return []briefing.ContentItem{item}, nil
}

type weatherResponse struct {
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Main *struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Dt int64 `json:"dt"`
}

// ParseWeatherResponse maps a current-weather payload to a content item
func ParseWeatherResponse(body []byte) (briefing.ContentItem, error) {
	const op = "openweather.parse"

	var resp weatherResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return briefing.ContentItem{}, briefing.NewError(briefing.KindParse, op, fmt.Errorf("decode: %w", err))
	}
	if resp.Name == "" || resp.Main == nil || len(resp.Weather) == 0 {
		return briefing.ContentItem{}, briefing.Errorf(briefing.KindParse, op, "response is missing name, main or weather")
	}

	// spoken lower case in the summary, title case in metadata
	description := strings.ToLower(strings.TrimSpace(resp.Weather[0].Description))
	conditions := cases.Title(language.English).String(description)
	place := resp.Name
	if resp.Sys.Country != "" {
		place += ", " + resp.Sys.Country
	}

	summary := fmt.Sprintf("Currently %d degrees Celsius", int(math.Round(resp.Main.Temp)))
	if description != "" {
		summary += " with " + description
	}
	summary += fmt.Sprintf(". Humidity is %d percent and the wind is %.1f meters per second.",
		resp.Main.Humidity, resp.Wind.Speed)

	var observed *time.Time
	if resp.Dt > 0 {
		t := time.Unix(resp.Dt, 0)
		observed = &t
	}

	return briefing.NewContentItem(
		briefing.KindWeather,
		briefing.SourceWeather,
		"Weather in "+place,
		summary,
		"",
		observed,
		map[string]string{
			briefing.MetaTopic: "weather",
			"conditions":       conditions,
			"temperature_c":    fmt.Sprintf("%.1f", resp.Main.Temp),
		},
	), nil
}
