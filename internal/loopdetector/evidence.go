package loopdetector

import (
	"strings"
	"unicode/utf8"
)

// extractEvidence returns the evidence_snippet for a loop candidate: a
// windowChars-wide, rune-safe window around the earliest intent-phrase
// occurrence in userText, or (if no intent phrase matches) the leading
// windowChars of firstUserMessage.
func extractEvidence(userText, firstUserMessage string, intentPhrases []string, windowChars int) string {
	if windowChars <= 0 {
		windowChars = 200
	}

	if pos, ok := earliestPhraseRuneIndex(userText, intentPhrases); ok {
		return windowAround(userText, pos, windowChars)
	}

	runes := []rune(firstUserMessage)
	if len(runes) <= windowChars {
		return firstUserMessage
	}
	return string(runes[:windowChars])
}

// earliestPhraseRuneIndex finds the earliest (by rune position) occurrence
// of any phrase in text, case-insensitively, and returns its rune index.
func earliestPhraseRuneIndex(text string, phrases []string) (int, bool) {
	lower := strings.ToLower(text)
	bestByte := -1
	for _, phrase := range phrases {
		idx := strings.Index(lower, strings.ToLower(phrase))
		if idx < 0 {
			continue
		}
		if bestByte == -1 || idx < bestByte {
			bestByte = idx
		}
	}
	if bestByte == -1 {
		return 0, false
	}
	return utf8.RuneCountInString(text[:bestByte]), true
}

// windowAround extracts a rune-safe window of width windowChars centered on
// centerRune (a rune index into text), clamped to the text's bounds.
func windowAround(text string, centerRune, windowChars int) string {
	runes := []rune(text)
	if len(runes) <= windowChars {
		return text
	}

	half := windowChars / 2
	start := centerRune - half
	if start < 0 {
		start = 0
	}
	end := start + windowChars
	if end > len(runes) {
		end = len(runes)
		start = end - windowChars
		if start < 0 {
			start = 0
		}
	}
	return string(runes[start:end])
}
