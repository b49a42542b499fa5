package consolidation

import (
	"math"
	"strings"
)

// DefaultWordsPerMinute is the speaking rate used to turn a target duration
// into a word budget when none is configured
const DefaultWordsPerMinute = 150.0

// FallbackTolerance bounds how far below the word budget the deterministic
// script may land
const FallbackTolerance = 0.10

// EffectiveWPM scales the base speaking rate by the configured voice speed
func EffectiveWPM(base, voiceSpeed float64) float64 {
	if base <= 0 {
		base = DefaultWordsPerMinute
	}
	if voiceSpeed <= 0 {
		voiceSpeed = 1.0
	}
	return base * voiceSpeed
}

// WordBudget converts a target duration in minutes into a word count
func WordBudget(minutes int, wpm float64) int {
	return int(math.Round(float64(minutes) * wpm))
}

// EstimateSeconds returns the spoken length of words at wpm
func EstimateSeconds(words int, wpm float64) float64 {
	if wpm <= 0 {
		return 0
	}
	return float64(words) / wpm * 60.0
}

// CountWords counts whitespace separated tokens
func CountWords(text string) int {
	return len(strings.Fields(text))
}
