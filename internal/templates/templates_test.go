package templates

import (
	"html/template"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.arenberg.net/steen/sitebuilder/internal/menu"
	"git.arenberg.net/steen/sitebuilder/internal/paginate"
)

func testSite() SiteInfo {
	return SiteInfo{
		Title:       "Test Site",
		Description: "A site under test",
		DateFormat:  "2006-01-02",
		HomeURL:     "index.html",
	}
}

func testMenus() [][]menu.Item {
	return [][]menu.Item{{
		{URL: "index.html", Label: "Home", Active: true},
		{URL: "linux.html", Label: "Linux"},
	}}
}

func TestRenderPage_Builtin(t *testing.T) {
	set := Builtin()

	out, err := set.RenderPage(PageData{
		Slug:    "about",
		Title:   "About",
		Content: template.HTML("<h1>About</h1><p>hello</p>"),
		Menus:   testMenus(),
		Site:    testSite(),
	})
	require.NoError(t, err)

	require.Contains(t, out, "<!DOCTYPE html>")
	require.Contains(t, out, "<title>About | Test Site</title>")
	require.Contains(t, out, "<h1>About</h1><p>hello</p>")
	require.Contains(t, out, `<a href="index.html">Test Site</a>`)
	require.Contains(t, out, `<li class="active"><a href="index.html">Home</a></li>`)
	require.Contains(t, out, `<a href="linux.html">Linux</a>`)
}

func TestRenderPage_EmptyTitleUsesSiteTitleOnly(t *testing.T) {
	out, err := Builtin().RenderPage(PageData{Slug: "x", Site: testSite()})
	require.NoError(t, err)
	require.Contains(t, out, "<title>Test Site</title>")
}

func TestRenderPost_DateAndTags(t *testing.T) {
	created := time.Date(2023, 4, 5, 16, 45, 0, 0, time.UTC)

	out, err := Builtin().RenderPost(PostData{
		PageData: PageData{
			Slug:      "hello",
			Title:     "Hello",
			Content:   template.HTML("<p>body</p>"),
			CreatedAt: created,
			HasTime:   true,
			Site:      testSite(),
		},
		Tags: []Link{{URL: "linux.html", Label: "Linux"}},
	})
	require.NoError(t, err)

	require.Contains(t, out, `<time datetime="2023-04-05">2023-04-05</time>`)
	require.Contains(t, out, `<span class="post-time">16:45</span>`)
	require.Contains(t, out, `<a class="tag" href="linux.html">Linux</a>`)
}

func TestRenderPost_CustomDateFormat(t *testing.T) {
	site := testSite()
	site.DateFormat = "02.01.2006"

	out, err := Builtin().RenderPost(PostData{
		PageData: PageData{
			CreatedAt: time.Date(2023, 4, 5, 0, 0, 0, 0, time.UTC),
			Site:      site,
		},
	})
	require.NoError(t, err)
	require.Contains(t, out, ">05.04.2023</time>")
}

func TestRenderList_PreviewsAndPagination(t *testing.T) {
	out, err := Builtin().RenderList(ListData{
		Slug:  "index",
		Title: "",
		Posts: []PostPreview{
			{
				Slug:      "first",
				URL:       "first.html",
				Title:     "First",
				Date:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				Preview:   template.HTML("<p>intro</p>"),
				Truncated: true,
			},
		},
		Links: []paginate.PageLink{
			{Number: 1, URL: "index.html", Current: true},
			{Ellipsis: true},
			{Number: 9, URL: "index-9.html"},
		},
		Menus: testMenus(),
		Site:  testSite(),
	})
	require.NoError(t, err)

	require.Contains(t, out, `<h2><a href="first.html">First</a></h2>`)
	require.Contains(t, out, `<a href="first.html">Read more</a>`)
	require.Contains(t, out, `<span class="current">1</span>`)
	require.Contains(t, out, `<span class="gap">&hellip;</span>`)
	require.Contains(t, out, `<a href="index-9.html">9</a>`)
}

func TestRenderList_EmptyListing(t *testing.T) {
	out, err := Builtin().RenderList(ListData{Slug: "index", Site: testSite()})
	require.NoError(t, err)
	require.Contains(t, out, "Nothing here yet.")
	require.NotContains(t, out, `<nav class="pagination">`)
}

func TestRenderPage_ContentNotEscaped(t *testing.T) {
	out, err := Builtin().RenderPage(PageData{
		Content: template.HTML(`<p><a href="x.html">x</a></p>`),
		Site:    testSite(),
	})
	require.NoError(t, err)
	require.Contains(t, out, `<p><a href="x.html">x</a></p>`)
}

func TestResolve_NoOverridesFile(t *testing.T) {
	set := Resolve(t.TempDir(), nil)
	require.Empty(t, set.Overridden())

	out, err := set.RenderPage(PageData{Site: testSite()})
	require.NoError(t, err)
	require.Contains(t, out, "Served fresh from plain files.")
}

func TestResolve_PartialOverride(t *testing.T) {
	dir := t.TempDir()
	override := `{{ define "footer" }}<footer>custom footer</footer>{{ end }}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, OverrideFile), []byte(override), 0o644))

	set := Resolve(dir, nil)
	require.Equal(t, []string{"footer"}, set.Overridden())

	out, err := set.RenderPage(PageData{Site: testSite()})
	require.NoError(t, err)
	require.Contains(t, out, "<footer>custom footer</footer>")
	require.NotContains(t, out, "Served fresh from plain files.")
	// Everything not overridden stays built-in.
	require.Contains(t, out, `<header class="site-header">`)
}

func TestResolve_OverrideEntryPoint(t *testing.T) {
	dir := t.TempDir()
	override := `{{ define "post" }}<html><body>minimal {{ .Slug }}</body></html>{{ end }}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, OverrideFile), []byte(override), 0o644))

	set := Resolve(dir, nil)

	out, err := set.RenderPost(PostData{PageData: PageData{Slug: "hello", Site: testSite()}})
	require.NoError(t, err)
	require.Equal(t, "<html><body>minimal hello</body></html>", out)
}

func TestResolve_BrokenOverridesFallBack(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, OverrideFile), []byte(`{{ define "footer" }}{{ end`), 0o644))

	set := Resolve(dir, nil)
	require.Empty(t, set.Overridden())

	out, err := set.RenderPage(PageData{Site: testSite()})
	require.NoError(t, err)
	require.Contains(t, out, "Served fresh from plain files.")
}

func TestResolve_MultipleOverridesSorted(t *testing.T) {
	dir := t.TempDir()
	override := `{{ define "top-nav" }}<nav/>{{ end }}{{ define "footer" }}<footer/>{{ end }}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, OverrideFile), []byte(override), 0o644))

	set := Resolve(dir, nil)
	require.Equal(t, []string{"footer", "top-nav"}, set.Overridden())
}
