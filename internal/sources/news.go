package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/c0ld-w4ter/you-fm/internal/briefing"
)

// NewsAPIConfig configures the NewsAPI top-headlines client
type NewsAPIConfig struct {
	APIKey  string
	BaseURL string
	Country string
	Timeout time.Duration
}

// NewsAPISource fetches top headlines per configured topic
type NewsAPISource struct {
	apiKey     string
	baseURL    string
	country    string
	httpClient *http.Client
	now        func() time.Time
}

// NewNewsAPISource creates a new NewsAPI client
func NewNewsAPISource(cfg NewsAPIConfig) *NewsAPISource {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://newsapi.org"
	}
	country := cfg.Country
	if country == "" {
		country = "us"
	}
	return &NewsAPISource{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		country:    country,
		httpClient: newHTTPClient(cfg.Timeout),
		now:        time.Now,
	}
}

func (s *NewsAPISource) Name() string              { return briefing.SourceNews }
func (s *NewsAPISource) Kind() briefing.SourceKind { return briefing.KindNews }

// Fetch requests each topic in turn. Topics that fail are skipped as long as
// at least one topic returns articles.
func (s *NewsAPISource) Fetch(ctx context.Context, cfg briefing.Config) ([]briefing.ContentItem, error) {
	const op = "newsapi.fetch"
	if s.apiKey == "" {
		return nil, briefing.Errorf(briefing.KindAuth, op, "NEWSAPI_KEY is not set")
	}
	if len(cfg.NewsTopics) == 0 {
		return nil, briefing.Errorf(briefing.KindEmpty, op, "no news topics configured")
	}

	var (
		items    []briefing.ContentItem
		firstErr error
		seen     = make(map[string]bool)
	)
	for _, topic := range cfg.NewsTopics {
		topicItems, err := s.fetchTopic(ctx, topic, cfg.MaxItems(briefing.SourceNews))
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if ctx.Err() != nil {
				return nil, err
			}
			continue
		}
		for _, item := range topicItems {
			if seen[item.URL] {
				continue
			}
			seen[item.URL] = true
			items = append(items, item)
		}
	}

	if len(items) == 0 {
		if firstErr != nil {
			return nil, firstErr
		}
		return nil, briefing.Errorf(briefing.KindEmpty, op, "no articles for topics %v", cfg.NewsTopics)
	}
	return items, nil
}

func (s *NewsAPISource) fetchTopic(ctx context.Context, topic string, pageSize int) ([]briefing.ContentItem, error) {
	op := "newsapi.fetch." + topic

	q := url.Values{}
	q.Set("category", topic)
	q.Set("country", s.country)
	q.Set("language", "en")
	q.Set("pageSize", strconv.Itoa(pageSize))
	q.Set("from", s.now().UTC().Add(-24*time.Hour).Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v2/top-headlines?"+q.Encode(), nil)
	if err != nil {
		return nil, briefing.NewError(briefing.KindParse, op, err)
	}
	req.Header.Set("X-Api-Key", s.apiKey)
	req.Header.Set("Accept", "application/json")

	body, err := do(s.httpClient, req, op)
	if err != nil {
		// NewsAPI explains 4xx failures in a JSON body
		if apiErr := newsAPIError(op, body); apiErr != nil {
			return nil, apiErr
		}
		return nil, err
	}
	return ParseNewsResponse(body, topic)
}

type newsResponse struct {
	Status   string        `json:"status"`
	Code     string        `json:"code"`
	Message  string        `json:"message"`
	Articles []newsArticle `json:"articles"`
}

type newsArticle struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
}

var truncationMarker = regexp.MustCompile(`\s*…?\s*\[\+\d+ chars\]\s*$`)

// ParseNewsResponse maps a top-headlines payload to content items
func ParseNewsResponse(body []byte, topic string) ([]briefing.ContentItem, error) {
	const op = "newsapi.parse"

	var resp newsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, briefing.NewError(briefing.KindParse, op, fmt.Errorf("decode: %w", err))
	}
	if resp.Status != "ok" {
		if apiErr := newsAPIError(op, body); apiErr != nil {
			return nil, apiErr
		}
		return nil, briefing.Errorf(briefing.KindParse, op, "unexpected status %q", resp.Status)
	}

	items := make([]briefing.ContentItem, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		title := strings.TrimSpace(a.Title)
		if title == "" || a.URL == "" || title == "[Removed]" {
			continue
		}

		text := a.Content
		if strings.TrimSpace(text) == "" {
			text = a.Description
		}
		text = truncationMarker.ReplaceAllString(CleanText(text), "")

		publisher := a.Source.Name
		if publisher == "" {
			publisher = "Unknown Source"
		}

		items = append(items, briefing.NewContentItem(
			briefing.KindNews,
			briefing.SourceNews,
			title,
			text,
			a.URL,
			parseTime(a.PublishedAt),
			map[string]string{
				briefing.MetaTopic:     topic,
				briefing.MetaPublisher: publisher,
			},
		))
	}
	return items, nil
}

// newsAPIError maps a NewsAPI error body to the taxonomy, or nil if the body
// is not one
func newsAPIError(op string, body []byte) error {
	var resp newsResponse
	if len(body) == 0 || json.Unmarshal(body, &resp) != nil || resp.Status != "error" {
		return nil
	}

	err := errors.New(resp.Message)
	switch resp.Code {
	case "apiKeyDisabled", "apiKeyExhausted", "apiKeyInvalid", "apiKeyMissing":
		return briefing.NewError(briefing.KindAuth, op, err)
	case "rateLimited":
		return briefing.NewError(briefing.KindRateLimited, op, err)
	case "unexpectedError":
		return briefing.NewError(briefing.KindNetwork, op, err)
	default:
		return briefing.NewError(briefing.KindParse, op, fmt.Errorf("%s: %w", resp.Code, err))
	}
}
