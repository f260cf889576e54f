package menu

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func set(keys ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

func TestParse_Classification(t *testing.T) {
	raw := "Home\nLinux\nabout\nJust A Heading\n"
	sections := Parse(raw, set("linux"), set("about"))

	require.Len(t, sections, 1)
	entries := sections[0]
	require.Len(t, entries, 4)

	require.Equal(t, KindPage, entries[0].Kind)
	require.Equal(t, HomeSlug, entries[0].Slug)
	require.Equal(t, "Home", entries[0].Label)

	require.Equal(t, KindTag, entries[1].Kind)
	require.Equal(t, "linux", entries[1].Slug)

	require.Equal(t, KindPage, entries[2].Kind)
	require.Equal(t, "about", entries[2].Slug)

	require.Equal(t, KindText, entries[3].Kind)
	require.Equal(t, "Just A Heading", entries[3].Label)
}

func TestParse_TagWinsOverSource(t *testing.T) {
	sections := Parse("news\n", set("news"), set("news"))
	require.Equal(t, KindTag, sections[0][0].Kind)
}

func TestParse_CaseAndPunctuationInsensitive(t *testing.T) {
	sections := Parse("My  Projects\n", set("my-projects"), nil)
	require.Equal(t, KindTag, sections[0][0].Kind)
	require.Equal(t, "my-projects", sections[0][0].Slug)
	require.Equal(t, "My  Projects", sections[0][0].Label)
}

func TestParse_BlankLinesDelimitSections(t *testing.T) {
	raw := "Home\n\nAbout\n\n\nContact\n"
	sections := Parse(raw, nil, set("about", "contact"))

	require.Len(t, sections, 3)
	require.Equal(t, "Home", sections[0][0].Label)
	require.Equal(t, "About", sections[1][0].Label)
	require.Equal(t, "Contact", sections[2][0].Label)
}

func TestParse_CommentsSkippedWithoutBreakingSections(t *testing.T) {
	raw := "Home\n# secondary items\nAbout\n"
	sections := Parse(raw, nil, set("about"))

	require.Len(t, sections, 1)
	require.Len(t, sections[0], 2)
}

func TestParse_IndentIsLeadingSpaceCount(t *testing.T) {
	sections := Parse("top\n sub\n", nil, nil)
	require.Equal(t, 0, sections[0][0].Indent)
	require.Equal(t, 1, sections[0][1].Indent)
}

func TestDefault_HomeThenTagsAlphabetically(t *testing.T) {
	sections := Default([]string{"zsh", "ansible", "linux"})

	require.Len(t, sections, 1)
	entries := sections[0]
	require.Len(t, entries, 4)
	require.Equal(t, HomeSlug, entries[0].Slug)
	require.Equal(t, "ansible", entries[1].Slug)
	require.Equal(t, "linux", entries[2].Slug)
	require.Equal(t, "zsh", entries[3].Slug)
	require.Equal(t, "Ansible", entries[1].Label)
}

func TestBuildForest_Nesting(t *testing.T) {
	entries := []Entry{
		{Kind: KindText, Slug: "topics", Label: "Topics", Indent: 0},
		{Kind: KindTag, Slug: "linux", Label: "Linux", Indent: 1},
		{Kind: KindTag, Slug: "zsh", Label: "Zsh", Indent: 1},
		{Kind: KindPage, Slug: "about", Label: "About", Indent: 0},
	}

	forest := BuildForest([][]Entry{entries}, "", ".html")
	require.Len(t, forest, 1)
	items := forest[0]
	require.Len(t, items, 2)

	topics := items[0]
	require.Equal(t, "Topics", topics.Label)
	require.Empty(t, topics.URL)
	require.Len(t, topics.Children, 2)
	require.Equal(t, "linux.html", topics.Children[0].URL)
	require.Equal(t, "zsh.html", topics.Children[1].URL)

	require.Equal(t, "about.html", items[1].URL)
	require.Empty(t, items[1].Children)
}

func TestBuildForest_SiblingsStaySiblings(t *testing.T) {
	entries := []Entry{
		{Kind: KindPage, Slug: "a", Label: "a", Indent: 0},
		{Kind: KindPage, Slug: "b", Label: "b", Indent: 0},
	}

	items := BuildForest([][]Entry{entries}, "", "")[0]
	require.Len(t, items, 2)
	require.Empty(t, items[0].Children)
}

func TestBuildForest_DedentReturnsToParentLevel(t *testing.T) {
	entries := []Entry{
		{Kind: KindPage, Slug: "a", Label: "a", Indent: 0},
		{Kind: KindPage, Slug: "b", Label: "b", Indent: 1},
		{Kind: KindPage, Slug: "c", Label: "c", Indent: 0},
	}

	items := BuildForest([][]Entry{entries}, "", "")[0]
	require.Len(t, items, 2)
	require.Len(t, items[0].Children, 1)
	require.Equal(t, "b", items[0].Children[0].Label)
	require.Equal(t, "c", items[1].Label)
}

func TestBuildForest_OverIndentedEntriesDropped(t *testing.T) {
	entries := []Entry{
		{Kind: KindPage, Slug: "a", Label: "a", Indent: 0},
		{Kind: KindPage, Slug: "deep", Label: "deep", Indent: 5},
		{Kind: KindPage, Slug: "b", Label: "b", Indent: 1},
	}

	items := BuildForest([][]Entry{entries}, "", "")[0]
	require.Len(t, items, 1)
	require.Len(t, items[0].Children, 1)
	require.Equal(t, "b", items[0].Children[0].Label)
}

func TestBuildForest_TopLevelOverIndentDropped(t *testing.T) {
	entries := []Entry{
		{Kind: KindPage, Slug: "floating", Label: "floating", Indent: 2},
		{Kind: KindPage, Slug: "a", Label: "a", Indent: 0},
	}

	items := BuildForest([][]Entry{entries}, "", "")[0]
	require.Len(t, items, 1)
	require.Equal(t, "a", items[0].Label)
}

func TestBuildForest_ActiveComputedPerPage(t *testing.T) {
	entries := []Entry{
		{Kind: KindPage, Slug: "index", Label: "Home", Indent: 0},
		{Kind: KindTag, Slug: "linux", Label: "Linux", Indent: 0},
		{Kind: KindText, Slug: "linux", Label: "Linux Heading", Indent: 0},
	}
	sections := [][]Entry{entries}

	onLinux := BuildForest(sections, "linux", ".html")[0]
	require.False(t, onLinux[0].Active)
	require.True(t, onLinux[1].Active)
	// Text entries never activate even when slugs coincide.
	require.False(t, onLinux[2].Active)

	onHome := BuildForest(sections, "index", ".html")[0]
	require.True(t, onHome[0].Active)
	require.False(t, onHome[1].Active)
}

func TestBuildForest_EmptySuffix(t *testing.T) {
	entries := []Entry{{Kind: KindPage, Slug: "about", Label: "About", Indent: 0}}
	items := BuildForest([][]Entry{entries}, "", "")[0]
	require.Equal(t, "about", items[0].URL)
}
