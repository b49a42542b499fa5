package consolidation

import (
	"fmt"
	"strings"

	"github.com/c0ld-w4ter/you-fm/internal/briefing"
)

const dateLayout = "Monday, January 2"

func sectionIntro(kind briefing.SourceKind) string {
	switch kind {
	case briefing.KindNews:
		return "First, the news."
	case briefing.KindWeather:
		return "Now, the weather."
	case briefing.KindPodcast:
		return "New episodes from the shows you follow."
	default:
		return "From your feeds."
	}
}

func headline(item briefing.ContentItem) string {
	title := sentence(item.Title)
	publisher := item.Metadata[briefing.MetaPublisher]
	switch item.Kind {
	case briefing.KindNews:
		if publisher != "" {
			return fmt.Sprintf("From %s: %s", publisher, title)
		}
	case briefing.KindPodcast:
		if publisher != "" {
			return fmt.Sprintf("%s has a new episode: %s", publisher, title)
		}
	case briefing.KindOther:
		if topic := item.Topic(); topic != "" {
			return fmt.Sprintf("From %s: %s", topic, title)
		}
	}
	return title
}

// sentence ensures text ends with terminal punctuation
func sentence(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return text
	}
	switch text[len(text)-1] {
	case '.', '!', '?':
		return text
	}
	return text + "."
}

type segment struct {
	kind     briefing.SourceKind
	headline string
	recap    string
	excerpt  []string // body words available
	used     int      // excerpt words included
}

// FallbackScript assembles a script from item titles and excerpts without
// the AI backend. Its word count never exceeds the budget and, when the
// bundle has enough material, lands within FallbackTolerance below it. The
// result depends only on its arguments.
func FallbackScript(bundle *briefing.ContentBundle, cfg briefing.Config, wpm float64) string {
	if bundle.IsEmpty() {
		return EmptyScript(bundle, cfg)
	}

	budget := WordBudget(cfg.DurationMinutes, wpm)
	opening := fmt.Sprintf("%s Here is your briefing for %s.", greeting(cfg), bundle.CollectedAt.Format(dateLayout))
	closing := signOff(cfg)

	remaining := budget - CountWords(opening) - CountWords(closing)
	if remaining <= 0 {
		return opening + "\n\n" + closing
	}

	// Headlines first, greedily in bundle order; a section intro is only
	// spent when its first headline also fits.
	var (
		segments []*segment
		intros   = make(map[briefing.SourceKind]bool)
	)
	for _, kind := range bundle.Kinds() {
		for _, item := range bundle.ByKind(kind) {
			line := headline(item)
			cost := CountWords(line)
			if !intros[kind] {
				cost += CountWords(sectionIntro(kind))
			}
			if cost == 0 || cost > remaining {
				continue
			}
			remaining -= cost
			intros[kind] = true
			segments = append(segments, &segment{
				kind:     kind,
				headline: line,
				recap:    sentence(item.Title),
				excerpt:  excerptWords(item),
			})
		}
	}

	// Excerpt words are handed out one per segment per round so every
	// included item gets a share of the remaining budget.
	for remaining > 0 {
		progressed := false
		for _, seg := range segments {
			if remaining == 0 {
				break
			}
			if seg.used < len(seg.excerpt) {
				seg.used++
				remaining--
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}

	// Out of material: recap the headlines until nothing more fits
	var recap []string
	const recapIntro = "Once more, the headlines."
	if remaining > CountWords(recapIntro) {
		avail := remaining - CountWords(recapIntro)
		for {
			added := false
			for _, seg := range segments {
				if cost := CountWords(seg.recap); cost > 0 && cost <= avail {
					recap = append(recap, seg.recap)
					avail -= cost
					added = true
				}
			}
			if !added {
				break
			}
		}
		if len(recap) > 0 {
			remaining = avail
		}
	}

	var b strings.Builder
	b.WriteString(opening)
	var current briefing.SourceKind
	for i, seg := range segments {
		if i == 0 || seg.kind != current {
			current = seg.kind
			b.WriteString("\n\n")
			b.WriteString(sectionIntro(seg.kind))
		}
		b.WriteString(" ")
		b.WriteString(seg.headline)
		if seg.used > 0 {
			b.WriteString(" ")
			b.WriteString(sentence(strings.Join(seg.excerpt[:seg.used], " ")))
		}
	}
	if len(recap) > 0 {
		b.WriteString("\n\n")
		b.WriteString(recapIntro)
		b.WriteString(" ")
		b.WriteString(strings.Join(recap, " "))
	}
	b.WriteString("\n\n")
	b.WriteString(closing)
	return b.String()
}

func excerptWords(item briefing.ContentItem) []string {
	words := strings.Fields(item.Body)
	// Bodies that only repeat the title add nothing
	if strings.EqualFold(strings.Join(words, " "), strings.TrimSpace(item.Title)) {
		return nil
	}
	return words
}

// EmptyScript is the short script used when no source produced content
func EmptyScript(bundle *briefing.ContentBundle, cfg briefing.Config) string {
	date := ""
	if bundle != nil && !bundle.CollectedAt.IsZero() {
		date = " for " + bundle.CollectedAt.Format(dateLayout)
	}
	return fmt.Sprintf("%s This is your briefing%s. "+
		"Unfortunately none of your sources returned any content this time, so there is nothing to report. "+
		"Please check your source settings and try again a little later. Have a great day.",
		greeting(cfg), date)
}

// listenerName is the trimmed display name, empty when none is set
func listenerName(cfg briefing.Config) string {
	return strings.TrimSpace(cfg.ListenerName)
}

func greeting(cfg briefing.Config) string {
	if name := listenerName(cfg); name != "" {
		return "Hello " + name + "."
	}
	return "Hello and good morning."
}

func signOff(cfg briefing.Config) string {
	if name := listenerName(cfg); name != "" {
		return "That is all for today, " + name + ". Have a great day."
	}
	return "That is all for today. Have a great day."
}
