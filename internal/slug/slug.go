// Package slug maps free-form names to URL-safe identifiers and back to
// display labels. Both directions are pure functions; Normalize is
// idempotent so slugs can safely pass through it again.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// asciiFold decomposes characters and strips combining marks so that
// accented letters fold to their ASCII base ("café" -> "cafe").
var asciiFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases text and collapses every run of non-alphanumeric
// characters (spaces, underscores, repeated hyphens, punctuation) into a
// single hyphen, with no leading or trailing hyphen. The result contains
// only lowercase ASCII letters, digits and single hyphens.
func Normalize(text string) string {
	if folded, _, err := transform.String(asciiFold, text); err == nil {
		text = folded
	}
	text = strings.ToLower(text)

	var b strings.Builder
	b.Grow(len(text))
	pendingHyphen := false
	for _, r := range text {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			pendingHyphen = true
			continue
		}
		if pendingHyphen && b.Len() > 0 {
			b.WriteByte('-')
		}
		pendingHyphen = false
		b.WriteRune(r)
	}
	return b.String()
}

// Title turns a slug into a display label: hyphen-separated segments are
// title-cased and joined with spaces. It is not an inverse of Normalize
// (case and word-boundary information is lost in slugs).
func Title(s string) string {
	segments := strings.Split(s, "-")
	caser := cases.Title(language.English)
	for i, seg := range segments {
		segments[i] = caser.String(seg)
	}
	return strings.Join(segments, " ")
}
