package briefing

import (
	"time"
)

// SourceKind is the provider-neutral category of a content item
type SourceKind string

const (
	KindNews    SourceKind = "news"
	KindWeather SourceKind = "weather"
	KindPodcast SourceKind = "podcast"
	KindOther   SourceKind = "other"
)

// SourceKinds lists every kind in the order it is presented to listeners
var SourceKinds = []SourceKind{KindNews, KindWeather, KindPodcast, KindOther}

// Label returns a human readable section label for the kind
func (k SourceKind) Label() string {
	switch k {
	case KindNews:
		return "News"
	case KindWeather:
		return "Weather"
	case KindPodcast:
		return "Podcasts"
	default:
		return "Other"
	}
}

// Metadata keys set by source clients
const (
	MetaTopic     = "topic"
	MetaPublisher = "publisher"
	MetaAudioURL  = "audio_url"
)

// ContentItem is one normalized unit of fetched content. Items are passed by
// value and the metadata map is copied on construction, so a bundle never
// shares mutable state with the client that produced it.
type ContentItem struct {
	Kind        SourceKind        `json:"source_kind"`
	Source      string            `json:"source"`
	Title       string            `json:"title"`
	Body        string            `json:"body,omitempty"`
	URL         string            `json:"url,omitempty"`
	PublishedAt *time.Time        `json:"published_at,omitempty"`
	Metadata    map[string]string `json:"raw_metadata,omitempty"`
}

// NewContentItem creates an item with a private copy of metadata
func NewContentItem(kind SourceKind, source, title, body, url string, published *time.Time, metadata map[string]string) ContentItem {
	item := ContentItem{
		Kind:   kind,
		Source: source,
		Title:  title,
		Body:   body,
		URL:    url,
	}
	if published != nil {
		t := published.UTC()
		item.PublishedAt = &t
	}
	if len(metadata) > 0 {
		item.Metadata = make(map[string]string, len(metadata))
		for k, v := range metadata {
			item.Metadata[k] = v
		}
	}
	return item
}

// Topic returns the topic the item was fetched under, if any
func (i ContentItem) Topic() string {
	return i.Metadata[MetaTopic]
}

// FetchState records the outcome of one source in a run
type FetchState string

const (
	FetchOK     FetchState = "ok"
	FetchFailed FetchState = "failed"
	FetchEmpty  FetchState = "empty"
)

// FetchStatus is the per-source record kept in a bundle
type FetchStatus struct {
	Source    string        `json:"source"`
	Kind      SourceKind    `json:"source_kind"`
	State     FetchState    `json:"state"`
	ErrorKind ErrorKind     `json:"error_kind,omitempty"`
	Detail    string        `json:"detail,omitempty"`
	Items     int           `json:"items"`
	Attempts  int           `json:"attempts"`
	Duration  time.Duration `json:"duration_ns"`
}

// ContentBundle is the aggregated output of the fetch stage
type ContentBundle struct {
	Items       []ContentItem `json:"items"`
	Statuses    []FetchStatus `json:"statuses"`
	CollectedAt time.Time     `json:"collected_at"`
}

// NewBundle builds a bundle from per-source results, ordering items by kind
// and keeping each source's own order within a kind
func NewBundle(collectedAt time.Time, statuses []FetchStatus, perSource [][]ContentItem) *ContentBundle {
	b := &ContentBundle{
		Statuses:    statuses,
		CollectedAt: collectedAt,
	}
	for _, kind := range SourceKinds {
		for _, items := range perSource {
			for _, item := range items {
				if item.Kind == kind {
					b.Items = append(b.Items, item)
				}
			}
		}
	}
	for _, items := range perSource {
		for _, item := range items {
			if !knownKind(item.Kind) {
				item.Kind = KindOther
				b.Items = append(b.Items, item)
			}
		}
	}
	return b
}

func knownKind(k SourceKind) bool {
	for _, known := range SourceKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ByKind returns the items of one kind in bundle order
func (b *ContentBundle) ByKind(kind SourceKind) []ContentItem {
	var out []ContentItem
	for _, item := range b.Items {
		if item.Kind == kind {
			out = append(out, item)
		}
	}
	return out
}

// Kinds returns the kinds present in the bundle in presentation order
func (b *ContentBundle) Kinds() []SourceKind {
	var out []SourceKind
	for _, kind := range SourceKinds {
		if len(b.ByKind(kind)) > 0 {
			out = append(out, kind)
		}
	}
	return out
}

// IsEmpty reports whether no source produced usable content
func (b *ContentBundle) IsEmpty() bool {
	if b == nil || len(b.Items) == 0 {
		return true
	}
	for _, st := range b.Statuses {
		if st.State == FetchOK && st.Items > 0 {
			return false
		}
	}
	return true
}

// Status returns the fetch status of a source by name
func (b *ContentBundle) Status(source string) (FetchStatus, bool) {
	for _, st := range b.Statuses {
		if st.Source == source {
			return st, true
		}
	}
	return FetchStatus{}, false
}
