package consolidation

import (
	"regexp"
	"strings"
)

var (
	headingLine    = regexp.MustCompile(`^\s*#{1,6}\s`)
	bulletPrefix   = regexp.MustCompile(`^\s*(?:[-*•+]|\d{1,2}[.)])\s+`)
	boldMarker     = regexp.MustCompile(`\*\*(.+?)\*\*|__(.+?)__`)
	emphasisMarker = regexp.MustCompile(`\*([^*\s][^*]*?)\*|\b_([^_\s][^_]*?)_\b`)
	stageDirection = regexp.MustCompile(`\[[^\]]*\]|\((?i:music|pause|intro|outro|sound|sfx|laughs?|beat)[^)]*\)`)
	ruleLine       = regexp.MustCompile(`^\s*(?:-{3,}|\*{3,}|_{3,})\s*$`)
)

// Sanitize turns model output into plain speakable prose. Heading lines and
// horizontal rules are dropped, emphasis and list markers are removed and
// paragraphs are separated by one blank line.
func Sanitize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.Trim(text, "` \n\t")

	var (
		paragraphs []string
		current    []string
	)
	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, " "))
			current = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		if headingLine.MatchString(line) || ruleLine.MatchString(line) {
			flush()
			continue
		}
		line = bulletPrefix.ReplaceAllString(line, "")
		line = boldMarker.ReplaceAllString(line, "$1$2")
		line = emphasisMarker.ReplaceAllString(line, "$1$2")
		line = stageDirection.ReplaceAllString(line, "")
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	return strings.Join(paragraphs, "\n\n")
}
