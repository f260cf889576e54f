// Package menu parses the navigation definition and realizes it into
// menu trees.
//
// The definition is flat indented text: blank lines separate
// independent menus (say a primary nav and a footer nav), # starts a
// comment, and the leading-space count of a line is its nesting depth.
// Line text is matched, case and punctuation insensitively, against
// tag slugs, the reserved home token and source slugs. Unmatched lines
// become plain text labels.
package menu

import (
	"sort"
	"strings"

	"git.arenberg.net/steen/sitebuilder/internal/slug"
)

// Kind classifies a parsed menu entry.
type Kind string

const (
	KindTag  Kind = "tag"
	KindPage Kind = "page"
	KindText Kind = "text"
)

// HomeToken is the reserved word that aliases to the home listing.
const HomeToken = "home"

// HomeSlug is the identifier the home listing publishes under.
const HomeSlug = "index"

// Entry is one parsed line of the menu definition.
type Entry struct {
	Kind   Kind
	Slug   string
	Label  string
	Indent int
}

// Item is a realized menu node. URL is empty for text entries, which
// render as unlinked labels.
type Item struct {
	URL      string
	Label    string
	Active   bool
	Children []Item
}

// Parse splits raw menu text into sections of classified entries.
// tagSlugs and sourceSlugs are the discovered identifiers; tags win
// over sources when both match.
func Parse(raw string, tagSlugs, sourceSlugs map[string]struct{}) [][]Entry {
	var sections [][]Entry
	var current []Entry

	flush := func() {
		if len(current) > 0 {
			sections = append(sections, current)
			current = nil
		}
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(line, "#") {
			continue
		}
		text := strings.TrimSpace(line)
		if text == "" {
			flush()
			continue
		}

		indent := 0
		for indent < len(line) && line[indent] == ' ' {
			indent++
		}

		current = append(current, classify(text, indent, tagSlugs, sourceSlugs))
	}
	flush()
	return sections
}

func classify(text string, indent int, tagSlugs, sourceSlugs map[string]struct{}) Entry {
	norm := slug.Normalize(text)
	entry := Entry{Slug: norm, Label: text, Indent: indent}

	switch {
	case member(tagSlugs, norm):
		entry.Kind = KindTag
	case norm == HomeToken:
		entry.Kind = KindPage
		entry.Slug = HomeSlug
	case member(sourceSlugs, norm):
		entry.Kind = KindPage
	default:
		entry.Kind = KindText
	}
	return entry
}

func member(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}

// Default returns the synthetic menu used when no menu file exists:
// the home entry followed by one entry per tag, alphabetically.
func Default(tagSlugs []string) [][]Entry {
	sorted := make([]string, len(tagSlugs))
	copy(sorted, tagSlugs)
	sort.Strings(sorted)

	section := []Entry{{Kind: KindPage, Slug: HomeSlug, Label: "Home"}}
	for _, t := range sorted {
		section = append(section, Entry{Kind: KindTag, Slug: t, Label: slug.Title(t)})
	}
	return [][]Entry{section}
}

// BuildForest realizes every section into a tree. activeSlug is the
// normalized identifier of the page being rendered; suffix is the
// configured output suffix appended to linked slugs.
func BuildForest(sections [][]Entry, activeSlug, suffix string) [][]Item {
	forest := make([][]Item, 0, len(sections))
	for _, entries := range sections {
		cursor := 0
		forest = append(forest, buildLevel(entries, &cursor, -1, activeSlug, suffix))
	}
	return forest
}

// buildLevel consumes entries into items of one nesting level. It
// stops at the first entry whose indent does not exceed parentIndent,
// handing control back to the caller. Entries indented more than one
// level past their parent are dropped, never an error.
func buildLevel(entries []Entry, cursor *int, parentIndent int, activeSlug, suffix string) []Item {
	var items []Item
	for *cursor < len(entries) {
		e := entries[*cursor]
		if e.Indent <= parentIndent {
			return items
		}
		if e.Indent > parentIndent+1 {
			*cursor++
			continue
		}

		*cursor++
		item := Item{Label: e.Label}
		if e.Kind != KindText {
			item.URL = e.Slug + suffix
			item.Active = e.Slug == activeSlug
		}
		if *cursor < len(entries) && entries[*cursor].Indent > e.Indent {
			item.Children = buildLevel(entries, cursor, e.Indent, activeSlug, suffix)
		}
		items = append(items, item)
	}
	return items
}
