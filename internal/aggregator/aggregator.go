package aggregator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/c0ld-w4ter/you-fm/internal/briefing"
	"github.com/c0ld-w4ter/you-fm/internal/observability"
	"github.com/c0ld-w4ter/you-fm/internal/resilience"
	"github.com/c0ld-w4ter/you-fm/internal/sources"
)

// Aggregator fans out to every enabled source and merges the results into
// one bundle. A failing source never fails the aggregation.
type Aggregator struct {
	sources []sources.Source
	retry   *resilience.RetryConfig
	logger  zerolog.Logger
	now     func() time.Time
}

// New creates an aggregator over srcs. A nil retry config uses the default
// fetch policy.
func New(srcs []sources.Source, retry *resilience.RetryConfig, logger zerolog.Logger) *Aggregator {
	if retry == nil {
		retry = resilience.DefaultRetryConfig()
	}
	return &Aggregator{
		sources: srcs,
		retry:   retry,
		logger:  logger.With().Str("component", "aggregator").Logger(),
		now:     time.Now,
	}
}

// WithClock replaces the clock used for CollectedAt
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// Sources returns the names of the configured sources
func (a *Aggregator) Sources() []string {
	names := make([]string, len(a.sources))
	for i, s := range a.sources {
		names[i] = s.Name()
	}
	return names
}

type fetchResult struct {
	items  []briefing.ContentItem
	status briefing.FetchStatus
}

// Aggregate fetches all enabled sources concurrently. The bundle keeps one
// status per fetched source; when ctx is cancelled every status is failed
// and no items are kept.
func (a *Aggregator) Aggregate(ctx context.Context, cfg briefing.Config) *briefing.ContentBundle {
	selected := make([]sources.Source, 0, len(a.sources))
	for _, s := range a.sources {
		if cfg.SourceEnabled(s.Name()) {
			selected = append(selected, s)
		}
	}

	results := make([]fetchResult, len(selected))
	var wg sync.WaitGroup
	for i, s := range selected {
		wg.Add(1)
		go func(i int, s sources.Source) {
			defer wg.Done()
			results[i] = a.fetch(ctx, s, cfg)
		}(i, s)
	}
	wg.Wait()

	statuses := make([]briefing.FetchStatus, len(results))
	perSource := make([][]briefing.ContentItem, len(results))
	cancelled := ctx.Err() != nil
	for i, r := range results {
		statuses[i] = r.status
		if cancelled {
			statuses[i].State = briefing.FetchFailed
			statuses[i].ErrorKind = briefing.KindNetwork
			statuses[i].Detail = "cancelled"
			statuses[i].Items = 0
			continue
		}
		perSource[i] = r.items
	}

	bundle := briefing.NewBundle(a.now(), statuses, perSource)
	a.logger.Info().
		Int("sources", len(selected)).
		Int("items", len(bundle.Items)).
		Bool("cancelled", cancelled).
		Msg("Aggregation complete")
	return bundle
}

func (a *Aggregator) fetch(ctx context.Context, src sources.Source, cfg briefing.Config) fetchResult {
	logger := a.logger.With().Str("source", src.Name()).Logger()
	start := time.Now()

	retry := a.retry.WithHook(func(attempt int, err error, wait time.Duration) {
		logger.Warn().Err(err).Int("attempt", attempt).Dur("backoff", wait).Msg("Source fetch failed, retrying")
	})

	var items []briefing.ContentItem
	attempts, err := resilience.Retry(ctx, func(ctx context.Context) error {
		var fetchErr error
		items, fetchErr = safeFetch(ctx, src, cfg)
		return fetchErr
	}, retry, briefing.IsTransient)

	status := briefing.FetchStatus{
		Source:   src.Name(),
		Kind:     src.Kind(),
		Attempts: attempts,
	}

	if err == nil {
		var excluded int
		items, excluded = ExcludeKeywords(items, cfg.ExcludeKeywords)
		items = LimitPerTopic(items, cfg.MaxItems(src.Name()))
		if excluded > 0 {
			logger.Debug().Int("excluded", excluded).Msg("Items removed by keyword exclusion")
		}
		if len(items) == 0 {
			err = briefing.Errorf(briefing.KindEmpty, src.Name()+".filter", "all %d items excluded by keywords", excluded)
		}
	}

	status.Duration = time.Since(start)
	if err != nil {
		status.ErrorKind = briefing.KindOf(err, briefing.KindNetwork)
		status.Detail = err.Error()
		status.State = briefing.FetchFailed
		if status.ErrorKind == briefing.KindEmpty {
			status.State = briefing.FetchEmpty
		}
		items = nil
		logger.Warn().Err(err).Str("kind", string(status.ErrorKind)).Int("attempts", attempts).Msg("Source produced no content")
	} else {
		status.State = briefing.FetchOK
		status.Items = len(items)
		logger.Debug().Int("items", len(items)).Int("attempts", attempts).Dur("elapsed", status.Duration).Msg("Source fetched")
	}

	observability.RecordSourceFetch(src.Name(), string(status.State), status.Duration)
	return fetchResult{items: items, status: status}
}

// safeFetch turns a panicking source into a parse error
func safeFetch(ctx context.Context, src sources.Source, cfg briefing.Config) (items []briefing.ContentItem, err error) {
	defer func() {
		if r := recover(); r != nil {
			items = nil
			err = briefing.Errorf(briefing.KindParse, src.Name()+".fetch", "panic: %v", r)
		}
	}()
	return src.Fetch(ctx, cfg)
}

// ExcludeKeywords drops items whose title or body contains any keyword,
// ignoring case. It returns the kept items and the number dropped.
func ExcludeKeywords(items []briefing.ContentItem, keywords []string) ([]briefing.ContentItem, int) {
	patterns := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			patterns = append(patterns, k)
		}
	}
	if len(patterns) == 0 {
		return items, 0
	}

	kept := make([]briefing.ContentItem, 0, len(items))
	for _, item := range items {
		if matchesAny(item.Title, patterns) || matchesAny(item.Body, patterns) {
			continue
		}
		kept = append(kept, item)
	}
	return kept, len(items) - len(kept)
}

func matchesAny(value string, patterns []string) bool {
	value = strings.ToLower(value)
	for _, p := range patterns {
		if strings.Contains(value, p) {
			return true
		}
	}
	return false
}

// LimitPerTopic keeps at most limit items per topic, preserving order
func LimitPerTopic(items []briefing.ContentItem, limit int) []briefing.ContentItem {
	if limit <= 0 {
		return items
	}
	counts := make(map[string]int)
	kept := make([]briefing.ContentItem, 0, len(items))
	for _, item := range items {
		topic := item.Topic()
		if counts[topic] >= limit {
			continue
		}
		counts[topic]++
		kept = append(kept, item)
	}
	return kept
}

// Summary renders statuses as "name=state" pairs for logs and CLI output
func Summary(statuses []briefing.FetchStatus) string {
	parts := make([]string, len(statuses))
	for i, st := range statuses {
		parts[i] = fmt.Sprintf("%s=%s", st.Source, st.State)
	}
	return strings.Join(parts, " ")
}
