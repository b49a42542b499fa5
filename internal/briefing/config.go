package briefing

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Tone controls the delivery style of the script
type Tone string

const (
	ToneProfessional Tone = "professional"
	ToneCasual       Tone = "casual"
	ToneEnergetic    Tone = "energetic"
)

// ContentDepth controls how much of each item the script covers
type ContentDepth string

const (
	DepthHeadlines ContentDepth = "headlines"
	DepthBalanced  ContentDepth = "balanced"
	DepthDetailed  ContentDepth = "detailed"
)

// Destination selects where the delivery stage writes the audio
type Destination string

const (
	DestinationLocal       Destination = "local"
	DestinationObjectStore Destination = "object_store"
)

// Duration limits in minutes
const (
	MinDurationMinutes = 1
	MaxDurationMinutes = 30
)

// Source names used in Config.Sources
const (
	SourceNews     = "news"
	SourceWeather  = "weather"
	SourcePodcasts = "podcasts"
	SourceFeeds    = "feeds"
)

// DefaultMaxItems is the per-topic limit used when a source sets none
const DefaultMaxItems = 3

// Location identifies where weather is reported for
type Location struct {
	City    string `json:"city" yaml:"city"`
	Country string `json:"country" yaml:"country"`
}

// SourceSettings toggles and limits one source
type SourceSettings struct {
	Enabled  bool `json:"enabled" yaml:"enabled"`
	MaxItems int  `json:"max_items" yaml:"max_items"`
}

// Personalization carries optional listener context for the prompt
type Personalization struct {
	Interests            string `json:"specific_interests,omitempty" yaml:"specific_interests"`
	Goal                 string `json:"briefing_goal,omitempty" yaml:"briefing_goal"`
	FollowedEntities     string `json:"followed_entities,omitempty" yaml:"followed_entities"`
	Hobbies              string `json:"hobbies,omitempty" yaml:"hobbies"`
	FavoriteTeamsArtists string `json:"favorite_teams_artists,omitempty" yaml:"favorite_teams_artists"`
	PassionTopics        string `json:"passion_topics,omitempty" yaml:"passion_topics"`
	GreetingPreference   string `json:"greeting_preference,omitempty" yaml:"greeting_preference"`
	DailyRoutine         string `json:"daily_routine_detail,omitempty" yaml:"daily_routine_detail"`
}

// Lines returns the non-empty personalization fields as labeled lines in a
// fixed order
func (p Personalization) Lines() []string {
	fields := []struct{ label, value string }{
		{"Specific interests", p.Interests},
		{"Goal for this briefing", p.Goal},
		{"People and companies followed", p.FollowedEntities},
		{"Hobbies", p.Hobbies},
		{"Favorite teams and artists", p.FavoriteTeamsArtists},
		{"Passion topics", p.PassionTopics},
		{"Greeting preference", p.GreetingPreference},
		{"Daily routine", p.DailyRoutine},
	}
	var lines []string
	for _, f := range fields {
		if v := strings.TrimSpace(f.value); v != "" {
			lines = append(lines, f.label+": "+v)
		}
	}
	return lines
}

// Config is the read-only configuration of a single pipeline run
type Config struct {
	ListenerName    string                    `json:"listener_name" yaml:"listener_name"`
	DurationMinutes int                       `json:"duration_minutes" yaml:"duration_minutes"`
	Tone            Tone                      `json:"tone" yaml:"tone"`
	ContentDepth    ContentDepth              `json:"content_depth" yaml:"content_depth"`
	Voice           string                    `json:"voice" yaml:"voice"`
	VoiceSpeed      float64                   `json:"voice_speed" yaml:"voice_speed"`
	Destination     Destination               `json:"destination" yaml:"destination"`
	Location        Location                  `json:"location" yaml:"location"`
	NewsTopics      []string                  `json:"news_topics" yaml:"news_topics"`
	PodcastShows    []string                  `json:"podcast_shows" yaml:"podcast_shows"`
	Feeds           []string                  `json:"feeds" yaml:"feeds"`
	ExcludeKeywords []string                  `json:"exclude_keywords" yaml:"exclude_keywords"`
	Sources         map[string]SourceSettings `json:"sources" yaml:"sources"`
	Personalization Personalization           `json:"personalization" yaml:"personalization"`
}

// DefaultConfig returns the configuration used when a caller supplies nothing
func DefaultConfig() Config {
	return Config{
		ListenerName:    "Seamus",
		DurationMinutes: 8,
		Tone:            ToneProfessional,
		ContentDepth:    DepthBalanced,
		Voice:           "default",
		VoiceSpeed:      1.0,
		Destination:     DestinationLocal,
		Location:        Location{City: "Denver", Country: "US"},
		NewsTopics:      []string{"technology", "business", "science"},
		Sources: map[string]SourceSettings{
			SourceNews:     {Enabled: true, MaxItems: DefaultMaxItems},
			SourceWeather:  {Enabled: true, MaxItems: 1},
			SourcePodcasts: {Enabled: true, MaxItems: DefaultMaxItems},
			SourceFeeds:    {Enabled: true, MaxItems: DefaultMaxItems},
		},
	}
}

// SourceEnabled reports whether the named source should be fetched. Sources
// without an entry are enabled.
func (c Config) SourceEnabled(name string) bool {
	s, ok := c.Sources[name]
	return !ok || s.Enabled
}

// MaxItems returns the per-topic item limit of the named source
func (c Config) MaxItems(name string) int {
	if s, ok := c.Sources[name]; ok && s.MaxItems > 0 {
		return s.MaxItems
	}
	return DefaultMaxItems
}

// Validate checks every field and reports all problems at once
func (c Config) Validate() error {
	var errs []error

	if c.DurationMinutes < MinDurationMinutes || c.DurationMinutes > MaxDurationMinutes {
		errs = append(errs, fmt.Errorf("duration_minutes must be between %d and %d, got %d",
			MinDurationMinutes, MaxDurationMinutes, c.DurationMinutes))
	}

	switch c.Tone {
	case ToneProfessional, ToneCasual, ToneEnergetic:
	default:
		errs = append(errs, fmt.Errorf("unknown tone %q", c.Tone))
	}

	switch c.ContentDepth {
	case DepthHeadlines, DepthBalanced, DepthDetailed:
	default:
		errs = append(errs, fmt.Errorf("unknown content_depth %q", c.ContentDepth))
	}

	switch c.Destination {
	case DestinationLocal, DestinationObjectStore:
	default:
		errs = append(errs, fmt.Errorf("unknown destination %q", c.Destination))
	}

	if c.VoiceSpeed < 0.5 || c.VoiceSpeed > 2.0 {
		errs = append(errs, fmt.Errorf("voice_speed must be between 0.5 and 2.0, got %.2f", c.VoiceSpeed))
	}

	if strings.TrimSpace(c.Voice) == "" {
		errs = append(errs, errors.New("voice is required"))
	}

	for name, s := range c.Sources {
		if s.MaxItems < 0 {
			errs = append(errs, fmt.Errorf("sources.%s.max_items must not be negative", name))
		}
	}

	if c.SourceEnabled(SourceWeather) && strings.TrimSpace(c.Location.City) == "" {
		errs = append(errs, errors.New("location.city is required when weather is enabled"))
	}

	for _, raw := range c.Feeds {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("feed %q is not an absolute http(s) URL", raw))
		}
	}

	return errors.Join(errs...)
}
