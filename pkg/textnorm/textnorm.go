// Package textnorm prepares ticket text for storage and builds stable keys
// from free-form labels.
package textnorm

import (
	"strings"
	"unicode"

	"github.com/gosimple/slug"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var lower = cases.Lower(language.Und)

// Normalize lowercases text, drops punctuation and symbols, and collapses
// runs of whitespace into single spaces.
func Normalize(text string) string {
	t := transform.Chain(norm.NFC, runes.Remove(runes.In(unicode.P)), runes.Remove(runes.In(unicode.S)))

	stripped, _, err := transform.String(t, text)
	if err != nil {
		stripped = text
	}

	return strings.Join(strings.Fields(lower.String(stripped)), " ")
}

// Key turns a label such as a team or channel name into a lowercase
// dash-separated identifier. Empty labels map to fallback.
func Key(label string, fallback string) string {
	key := slug.Make(label)
	if key == "" {
		return fallback
	}

	return key
}
