package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/c0ld-w4ter/you-fm/internal/briefing"
)

// Source fetches one provider's content for a run. Implementations apply
// their own timeout, never retry, and return either items or a
// *briefing.Error.
type Source interface {
	Name() string
	Kind() briefing.SourceKind
	Fetch(ctx context.Context, cfg briefing.Config) ([]briefing.ContentItem, error)
}

// DefaultTimeout bounds one provider call when none is configured
const DefaultTimeout = 10 * time.Second

const maxErrorBody = 1024

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// do sends req and returns the body of a 2xx response. Failures are
// classified into the fetch error taxonomy.
func do(client *http.Client, req *http.Request, op string) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, briefing.NewError(briefing.KindNetwork, op, err)
		}
		return nil, briefing.NewError(briefing.KindNetwork, op, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return payload, statusError(op, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, briefing.NewError(briefing.KindNetwork, op, fmt.Errorf("read body: %w", err))
	}
	return body, nil
}

// statusError maps an HTTP status to an error kind
func statusError(op string, status int, detail string) error {
	err := fmt.Errorf("status %d: %s", status, detail)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return briefing.NewError(briefing.KindAuth, op, err)
	case status == http.StatusTooManyRequests:
		return briefing.NewError(briefing.KindRateLimited, op, err)
	case status >= 500:
		return briefing.NewError(briefing.KindNetwork, op, err)
	default:
		return briefing.NewError(briefing.KindParse, op, err)
	}
}

// CleanText converts an HTML or plain-text fragment into single-spaced text
func CleanText(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return ""
	}
	if strings.ContainsAny(fragment, "<&") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
		if err == nil {
			doc.Find("script, style").Remove()
			fragment = doc.Text()
		}
	}
	return strings.Join(strings.Fields(fragment), " ")
}

// Truncate shortens text to at most limit runes on a word boundary
func Truncate(text string, limit int) string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	cut := string(runes[:limit])
	if i := strings.LastIndexByte(cut, ' '); i > limit/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:-") + "..."
}

func parseTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, "2006-01-02T15:04:05Z0700"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}
