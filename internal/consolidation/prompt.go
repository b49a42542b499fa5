package consolidation

import (
	"fmt"
	"strings"

	"github.com/c0ld-w4ter/you-fm/internal/briefing"
	"github.com/c0ld-w4ter/you-fm/internal/sources"
)

// Prompt is one request to the AI backend
type Prompt struct {
	System    string
	User      string
	MaxTokens int
}

const systemPromptTemplate = `You are the host of a personal morning audio briefing. You write the exact words that will be read aloud by a text-to-speech voice.

Rules:
- Output plain narrative prose only. No headings, markdown, bullet points, numbered lists, emoji, URLs or stage directions such as [music] or (pause).
- %s
- The items below come from several sources and may overlap. Merge stories that cover the same event and mention each story once.
- Order stories by importance and recency, not by the order they are listed in.
- Use only facts present in the items. Do not invent details, quotes or numbers.
- Stay close to the word budget. Running long is worse than running slightly short.
- Write numbers, dates and abbreviations the way they should be spoken.`

// systemPrompt renders the rules. Without a listener name the script
// greets and signs off without addressing anyone.
func systemPrompt(named bool) string {
	rule := "Open with a short greeting and close with a short sign-off. The listener has not given a name, so do not address them personally."
	if named {
		rule = "Greet the listener by name at the start and sign off by name at the end."
	}
	return fmt.Sprintf(systemPromptTemplate, rule)
}

// excerptLimit caps the body excerpt per item in characters
func excerptLimit(depth briefing.ContentDepth) int {
	switch depth {
	case briefing.DepthHeadlines:
		return 240
	case briefing.DepthDetailed:
		return 1600
	default:
		return 700
	}
}

func toneGuidance(tone briefing.Tone) string {
	switch tone {
	case briefing.ToneCasual:
		return "Relaxed and conversational, like a friend catching the listener up over coffee."
	case briefing.ToneEnergetic:
		return "Upbeat and lively with brisk pacing and genuine enthusiasm."
	default:
		return "Measured and clear, like a public radio news anchor."
	}
}

func depthGuidance(depth briefing.ContentDepth) string {
	switch depth {
	case briefing.DepthHeadlines:
		return "Cover as many stories as possible in one or two sentences each."
	case briefing.DepthDetailed:
		return "Cover fewer stories in depth, with background and why each one matters."
	default:
		return "Give the key facts and a line of context for each story."
	}
}

// BuildPrompt renders the single batched request for a bundle. The output
// depends only on its arguments.
func BuildPrompt(bundle *briefing.ContentBundle, cfg briefing.Config, wpm float64) Prompt {
	words := WordBudget(cfg.DurationMinutes, wpm)

	var b strings.Builder
	fmt.Fprintf(&b, "Date: %s\n", bundle.CollectedAt.Format("Monday, January 2, 2006"))
	name := listenerName(cfg)
	if name != "" {
		fmt.Fprintf(&b, "Listener: %s\n", name)
	}
	fmt.Fprintf(&b, "Target length: %d minutes, about %d words (speaking rate %.0f words per minute)\n",
		cfg.DurationMinutes, words, wpm)
	fmt.Fprintf(&b, "Tone: %s. %s\n", cfg.Tone, toneGuidance(cfg.Tone))
	fmt.Fprintf(&b, "Depth: %s. %s\n", cfg.ContentDepth, depthGuidance(cfg.ContentDepth))

	if lines := cfg.Personalization.Lines(); len(lines) > 0 {
		b.WriteString("\nAbout the listener:\n")
		for _, line := range lines {
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}

	if len(cfg.ExcludeKeywords) > 0 {
		fmt.Fprintf(&b, "\nDo not discuss these subjects even if they appear below: %s\n",
			strings.Join(cfg.ExcludeKeywords, ", "))
	}

	b.WriteString("\nContent items:\n")
	limit := excerptLimit(cfg.ContentDepth)
	n := 0
	for _, kind := range bundle.Kinds() {
		fmt.Fprintf(&b, "\n%s\n", strings.ToUpper(kind.Label()))
		for _, item := range bundle.ByKind(kind) {
			n++
			fmt.Fprintf(&b, "%d. %s", n, item.Title)
			if attribution := describeItem(item); attribution != "" {
				fmt.Fprintf(&b, " (%s)", attribution)
			}
			b.WriteString("\n")
			if item.Body != "" {
				fmt.Fprintf(&b, "   %s\n", sources.Truncate(item.Body, limit))
			}
		}
	}

	if name != "" {
		fmt.Fprintf(&b, "\nWrite the complete briefing script for %s now, in about %d words.", name, words)
	} else {
		fmt.Fprintf(&b, "\nWrite the complete briefing script now, in about %d words.", words)
	}

	return Prompt{
		System:    systemPrompt(name != ""),
		User:      b.String(),
		MaxTokens: words*3 + 2048,
	}
}

func describeItem(item briefing.ContentItem) string {
	var parts []string
	if topic := item.Topic(); topic != "" && topic != item.Metadata[briefing.MetaPublisher] {
		parts = append(parts, topic)
	}
	if publisher := item.Metadata[briefing.MetaPublisher]; publisher != "" {
		parts = append(parts, publisher)
	}
	if item.PublishedAt != nil {
		parts = append(parts, item.PublishedAt.Format("2006-01-02 15:04 MST"))
	}
	return strings.Join(parts, ", ")
}
