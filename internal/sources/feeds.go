package sources

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/c0ld-w4ter/you-fm/internal/briefing"
)

// FeedSource reads the RSS and Atom feeds listed in the run configuration
type FeedSource struct {
	httpClient *http.Client
}

// NewFeedSource creates a new feed reader
func NewFeedSource(timeout time.Duration) *FeedSource {
	return &FeedSource{
		httpClient: newHTTPClient(timeout),
	}
}

func (s *FeedSource) Name() string              { return briefing.SourceFeeds }
func (s *FeedSource) Kind() briefing.SourceKind { return briefing.KindOther }

// Fetch reads every configured feed. Feeds that fail are skipped as long as
// at least one returns entries.
func (s *FeedSource) Fetch(ctx context.Context, cfg briefing.Config) ([]briefing.ContentItem, error) {
	const op = "feeds.fetch"
	if len(cfg.Feeds) == 0 {
		return nil, briefing.Errorf(briefing.KindEmpty, op, "no feeds configured")
	}

	var (
		items    []briefing.ContentItem
		firstErr error
		seen     = make(map[string]bool)
	)
	for _, feedURL := range cfg.Feeds {
		feedItems, err := s.fetchFeed(ctx, feedURL, cfg.MaxItems(briefing.SourceFeeds))
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if ctx.Err() != nil {
				return nil, err
			}
			continue
		}
		for _, item := range feedItems {
			hash := contentHash(item)
			if seen[hash] {
				continue
			}
			seen[hash] = true
			items = append(items, item)
		}
	}

	if len(items) == 0 {
		if firstErr != nil {
			return nil, firstErr
		}
		return nil, briefing.Errorf(briefing.KindEmpty, op, "feeds returned no entries")
	}
	return items, nil
}

func (s *FeedSource) fetchFeed(ctx context.Context, feedURL string, limit int) ([]briefing.ContentItem, error) {
	op := "feeds.fetch"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, briefing.NewError(briefing.KindParse, op, err)
	}
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")
	req.Header.Set("User-Agent", "you-fm/1.0")

	body, err := do(s.httpClient, req, op)
	if err != nil {
		return nil, err
	}
	return s.ParseFeed(body, feedURL, limit)
}

// ParseFeed maps a feed document to content items, keeping at most limit
// entries in feed order
func (s *FeedSource) ParseFeed(data []byte, feedURL string, limit int) ([]briefing.ContentItem, error) {
	const op = "feeds.parse"

	// gofeed parsers keep per-document state
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, briefing.NewError(briefing.KindParse, op, fmt.Errorf("failed to parse feed %s: %w", feedURL, err))
	}

	title := strings.TrimSpace(feed.Title)
	if title == "" {
		title = feedURL
	}

	var items []briefing.ContentItem
	for _, entry := range feed.Items {
		if limit > 0 && len(items) >= limit {
			break
		}
		name := strings.TrimSpace(entry.Title)
		if name == "" {
			continue
		}

		text := entry.Content
		if strings.TrimSpace(text) == "" {
			text = entry.Description
		}

		published := entry.PublishedParsed
		if published == nil {
			published = entry.UpdatedParsed
		}

		meta := map[string]string{
			briefing.MetaTopic:     title,
			briefing.MetaPublisher: title,
		}
		for _, enc := range entry.Enclosures {
			if strings.HasPrefix(enc.Type, "audio/") {
				meta[briefing.MetaAudioURL] = enc.URL
				break
			}
		}

		items = append(items, briefing.NewContentItem(
			briefing.KindOther,
			briefing.SourceFeeds,
			name,
			CleanText(text),
			coalesce(entry.Link, entry.GUID),
			published,
			meta,
		))
	}
	return items, nil
}

// contentHash identifies an entry by title and link only, so edits to the
// description do not produce duplicates
func contentHash(item briefing.ContentItem) string {
	hash := sha256.Sum256([]byte(item.Title + "|" + item.URL))
	return hex.EncodeToString(hash[:])
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
