// Package paste turns free-text order messages and stock report dumps into
// structured records. Parsers never fail: unrecognised input degrades to
// empty fields, and dropped stock lines are reported as diagnostics.
package paste

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// normalise folds compatibility characters (non-breaking spaces, full-width
// colons and digits from chat apps) and unifies line endings.
func normalise(text string) string {
	text = norm.NFKC.String(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// collapse joins whitespace runs, including newlines, into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
