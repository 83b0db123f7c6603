package classroom

import (
	"strings"

	"golang.org/x/text/cases"
)

// SameName reports whether two display names match case-insensitively.
// Uses Unicode case folding so "ALGEBRA" matches "Algebra" and "STRASSE"
// matches "straße". Surrounding whitespace is ignored.
func SameName(a, b string) bool {
	// A Caser is stateful; make one per call.
	fold := cases.Fold()

	return fold.String(strings.TrimSpace(a)) == fold.String(strings.TrimSpace(b))
}
