package policy

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const DefaultMaxInputRunes = 1000

type InputDecision struct {
	Accepted bool
	Reason   string
}

// ScreenInput cleans a chat submission before it becomes a turn. Control
// characters are dropped and surrounding whitespace trimmed. Blank input is
// rejected so that it never produces a turn.
func ScreenInput(raw string, maxRunes int) (string, InputDecision) {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxInputRunes
	}
	cleaned := strings.TrimSpace(strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, raw))

	switch {
	case cleaned == "":
		return "", InputDecision{Reason: "empty"}
	case utf8.RuneCountInString(cleaned) > maxRunes:
		return "", InputDecision{Reason: "too_long"}
	}
	return cleaned, InputDecision{Accepted: true}
}
