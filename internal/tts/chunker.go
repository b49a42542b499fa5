package tts

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SplitScript breaks text into ordered chunks of at most maxChars runes.
// Chunks end on sentence boundaries where possible, then on word boundaries,
// and only split inside a word that is itself longer than maxChars.
func SplitScript(text string, maxChars int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return []string{text}
	}

	var (
		chunks  []string
		current strings.Builder
		size    int
	)
	flush := func() {
		if size > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			size = 0
		}
	}
	add := func(piece string) {
		n := utf8.RuneCountInString(piece)
		if size > 0 && size+1+n > maxChars {
			flush()
		}
		if size > 0 {
			current.WriteByte(' ')
			size++
		}
		current.WriteString(piece)
		size += n
	}

	for _, sentence := range splitSentences(text) {
		if utf8.RuneCountInString(sentence) <= maxChars {
			add(sentence)
			continue
		}
		for _, word := range strings.Fields(sentence) {
			for _, part := range splitRunes(word, maxChars) {
				add(part)
			}
		}
	}
	flush()
	return chunks
}

// splitSentences splits after '.', '!' or '?' (plus any closing quotes or
// brackets) when followed by whitespace. Whitespace is normalized.
func splitSentences(text string) []string {
	var (
		sentences []string
		start     int
	)
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		j := i + 1
		for j < len(runes) && isCloser(runes[j]) {
			j++
		}
		if j < len(runes) && !unicode.IsSpace(runes[j]) {
			continue
		}
		if s := normalize(string(runes[start:j])); s != "" {
			sentences = append(sentences, s)
		}
		start = j
		i = j - 1
	}
	if s := normalize(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’':
		return true
	}
	return isTerminal(r)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func splitRunes(word string, maxChars int) []string {
	runes := []rune(word)
	if len(runes) <= maxChars {
		return []string{word}
	}
	var parts []string
	for len(runes) > maxChars {
		parts = append(parts, string(runes[:maxChars]))
		runes = runes[maxChars:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
