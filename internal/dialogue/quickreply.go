package dialogue

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// decoration matches emoji and pictographs (So), modifier symbols (Sk), combining
// marks such as variation selectors and keycaps (M), and format characters like ZWJ (Cf).
var decoration = runes.Remove(runes.Predicate(func(r rune) bool {
	return unicode.In(r, unicode.So, unicode.Sk, unicode.M, unicode.Cf)
}))

// QuickReplyToInput turns a chip label into the text that is resubmitted as the
// next user turn: decorative symbols are dropped and whitespace is collapsed.
// Letters, digits, currency signs and punctuation are preserved.
func QuickReplyToInput(label string) string {
	stripped, _, err := transform.String(decoration, label)
	if err != nil {
		stripped = label
	}
	return strings.Join(strings.Fields(stripped), " ")
}

// Normalize is the matching form of user text: decoration stripped, lowercased.
func Normalize(raw string) string {
	return strings.ToLower(QuickReplyToInput(raw))
}
