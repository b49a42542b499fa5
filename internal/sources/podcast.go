package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/c0ld-w4ter/you-fm/internal/briefing"
)

// PodcastConfig configures the Taddy GraphQL client
type PodcastConfig struct {
	UserID  string
	APIKey  string
	URL     string
	Timeout time.Duration
}

// PodcastSource fetches the latest episodes of followed shows
type PodcastSource struct {
	userID     string
	apiKey     string
	url        string
	httpClient *http.Client
}

// NewPodcastSource creates a new Taddy client
func NewPodcastSource(cfg PodcastConfig) *PodcastSource {
	endpoint := cfg.URL
	if endpoint == "" {
		endpoint = "https://api.taddy.org/graphql"
	}
	return &PodcastSource{
		userID:     cfg.UserID,
		apiKey:     cfg.APIKey,
		url:        endpoint,
		httpClient: newHTTPClient(cfg.Timeout),
	}
}

func (s *PodcastSource) Name() string              { return briefing.SourcePodcasts }
func (s *PodcastSource) Kind() briefing.SourceKind { return briefing.KindPodcast }

const podcastQuery = `query GetPodcast($name: String!, $limit: Int!) {
  getPodcastSeries(name: $name) {
    uuid
    name
    episodes(limitPerPage: $limit) {
      uuid
      name
      description
      audioUrl
      datePublished
    }
  }
}`

// Fetch queries each followed show. Shows that fail are skipped as long as
// at least one returns episodes.
func (s *PodcastSource) Fetch(ctx context.Context, cfg briefing.Config) ([]briefing.ContentItem, error) {
	const op = "taddy.fetch"
	if s.userID == "" || s.apiKey == "" {
		return nil, briefing.Errorf(briefing.KindAuth, op, "TADDY_USER_ID and TADDY_API_KEY must be set")
	}
	if len(cfg.PodcastShows) == 0 {
		return nil, briefing.Errorf(briefing.KindEmpty, op, "no podcast shows configured")
	}

	var (
		items    []briefing.ContentItem
		firstErr error
	)
	for _, show := range cfg.PodcastShows {
		showItems, err := s.fetchShow(ctx, show, cfg.MaxItems(briefing.SourcePodcasts))
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if ctx.Err() != nil {
				return nil, err
			}
			continue
		}
		items = append(items, showItems...)
	}

	if len(items) == 0 {
		if firstErr != nil {
			return nil, firstErr
		}
		return nil, briefing.Errorf(briefing.KindEmpty, op, "no episodes for shows %v", cfg.PodcastShows)
	}
	return items, nil
}

func (s *PodcastSource) fetchShow(ctx context.Context, show string, limit int) ([]briefing.ContentItem, error) {
	const op = "taddy.fetch"

	payload, err := json.Marshal(map[string]any{
		"query": podcastQuery,
		"variables": map[string]any{
			"name":  show,
			"limit": limit,
		},
	})
	if err != nil {
		return nil, briefing.NewError(briefing.KindParse, op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return nil, briefing.NewError(briefing.KindParse, op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-USER-ID", s.userID)
	req.Header.Set("X-API-KEY", s.apiKey)

	body, err := do(s.httpClient, req, op)
	if err != nil {
		return nil, err
	}
	return ParsePodcastResponse(body, show)
}

type podcastResponse struct {
	Data struct {
		Series *struct {
			UUID     string           `json:"uuid"`
			Name     string           `json:"name"`
			Episodes []podcastEpisode `json:"episodes"`
		} `json:"getPodcastSeries"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type podcastEpisode struct {
	UUID          string `json:"uuid"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	AudioURL      string `json:"audioUrl"`
	DatePublished int64  `json:"datePublished"`
}

// ParsePodcastResponse maps a getPodcastSeries payload to content items.
// GraphQL errors are only reported when the payload carries no series.
func ParsePodcastResponse(body []byte, show string) ([]briefing.ContentItem, error) {
	const op = "taddy.parse"

	var resp podcastResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, briefing.NewError(briefing.KindParse, op, fmt.Errorf("decode: %w", err))
	}

	series := resp.Data.Series
	if series == nil {
		if len(resp.Errors) > 0 {
			return nil, graphQLError(op, resp.Errors[0].Message)
		}
		return nil, briefing.Errorf(briefing.KindEmpty, op, "podcast %q not found", show)
	}

	name := series.Name
	if name == "" {
		name = show
	}

	var items []briefing.ContentItem
	for _, ep := range series.Episodes {
		if ep.AudioURL == "" || strings.TrimSpace(ep.Name) == "" {
			continue
		}
		var published *time.Time
		if ep.DatePublished > 0 {
			t := time.Unix(ep.DatePublished, 0)
			published = &t
		}
		items = append(items, briefing.NewContentItem(
			briefing.KindPodcast,
			briefing.SourcePodcasts,
			strings.TrimSpace(ep.Name),
			CleanText(ep.Description),
			ep.AudioURL,
			published,
			map[string]string{
				briefing.MetaTopic:     name,
				briefing.MetaPublisher: name,
				briefing.MetaAudioURL:  ep.AudioURL,
				"episode_uuid":         ep.UUID,
			},
		))
	}
	return items, nil
}

func graphQLError(op, message string) error {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "api key"), strings.Contains(lower, "unauthori"),
		strings.Contains(lower, "authentic"), strings.Contains(lower, "user id"):
		return briefing.Errorf(briefing.KindAuth, op, "%s", message)
	case strings.Contains(lower, "rate limit"), strings.Contains(lower, "too many"):
		return briefing.Errorf(briefing.KindRateLimited, op, "%s", message)
	default:
		return briefing.Errorf(briefing.KindParse, op, "%s", message)
	}
}
