package site

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.arenberg.net/steen/sitebuilder/internal/config"
	"git.arenberg.net/steen/sitebuilder/internal/content"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Site.Title = "Test Site"
	cfg.Build.ContentDir = filepath.Join(root, "content")
	cfg.Build.CacheDir = filepath.Join(root, "cache")
	cfg.Build.OutputDir = filepath.Join(root, "public")
	cfg.Build.PerPage = 2
	require.NoError(t, os.MkdirAll(cfg.Build.ContentDir, 0o755))
	return cfg
}

// writeAged writes a content file whose mtime lies in the past so
// freshly written cache artifacts are strictly newer.
func writeAged(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))
	return path
}

func readOutput(t *testing.T, cfg *config.Config, name string) string {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(cfg.Build.OutputDir, name))
	require.NoError(t, err)
	return string(raw)
}

func outputExists(cfg *config.Config, name string) bool {
	_, err := os.Stat(filepath.Join(cfg.Build.OutputDir, name))
	return err == nil
}

func writeFivePosts(t *testing.T, cfg *config.Config) {
	t.Helper()
	days := []string{"2024-01-05", "2024-01-04", "2024-01-03", "2024-01-02", "2024-01-01"}
	names := []string{"p1", "p2", "p3", "p4", "p5"}
	for i, name := range names {
		writeAged(t, cfg.Build.ContentDir, name+".md",
			days[i]+"\n\n# Post "+name+"\n\nbody of "+name+"\n")
	}
}

func TestRun_FivePostsThreeListingPages(t *testing.T) {
	cfg := testConfig(t)
	writeFivePosts(t, cfg)

	report, err := NewBuilder(cfg).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, OutcomeSuccess, report.Outcome)
	require.Equal(t, 5, report.Sources)
	require.Equal(t, 5, report.Posts)
	require.Equal(t, 0, report.Pages)
	require.Equal(t, 5, report.Changed)
	require.Equal(t, 3, report.Listings)

	for _, name := range []string{"p1.html", "p5.html", "index.html", "index-2.html", "index-3.html"} {
		require.True(t, outputExists(cfg, name), name)
	}
	require.False(t, outputExists(cfg, "index-4.html"))

	// Newest first: page one carries p1 and p2, the last page p5.
	first := readOutput(t, cfg, "index.html")
	require.Contains(t, first, "Post p1")
	require.Contains(t, first, "Post p2")
	require.NotContains(t, first, "Post p3")
	require.Contains(t, readOutput(t, cfg, "index-3.html"), "Post p5")

	// Full pagination row on every page at three pages total.
	require.Contains(t, first, `href="index-2.html"`)
	require.Contains(t, first, `href="index-3.html"`)
	second := readOutput(t, cfg, "index-2.html")
	require.Contains(t, second, `href="index.html"`)
	require.Contains(t, second, `href="index-3.html"`)
}

func TestRun_SecondPassIsANoop(t *testing.T) {
	cfg := testConfig(t)
	writeFivePosts(t, cfg)
	builder := NewBuilder(cfg)

	_, err := builder.Run(context.Background())
	require.NoError(t, err)

	postInfo, err := os.Stat(filepath.Join(cfg.Build.OutputDir, "p1.html"))
	require.NoError(t, err)
	indexInfo, err := os.Stat(filepath.Join(cfg.Build.OutputDir, "index.html"))
	require.NoError(t, err)

	report, err := builder.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, report.Changed)
	require.Zero(t, report.Posts)
	require.Zero(t, report.Listings)

	after, err := os.Stat(filepath.Join(cfg.Build.OutputDir, "p1.html"))
	require.NoError(t, err)
	require.Equal(t, postInfo.ModTime(), after.ModTime())
	after, err = os.Stat(filepath.Join(cfg.Build.OutputDir, "index.html"))
	require.NoError(t, err)
	require.Equal(t, indexInfo.ModTime(), after.ModTime())
}

func TestRun_ModifiedSourceRegeneratesOnlyItself(t *testing.T) {
	cfg := testConfig(t)
	writeFivePosts(t, cfg)
	builder := NewBuilder(cfg)

	_, err := builder.Run(context.Background())
	require.NoError(t, err)

	untouched, err := os.Stat(filepath.Join(cfg.Build.OutputDir, "p1.html"))
	require.NoError(t, err)

	// Rewriting p2 with a future mtime makes its cache artifact stale.
	p2 := filepath.Join(cfg.Build.ContentDir, "p2.md")
	require.NoError(t, os.WriteFile(p2, []byte("2024-01-04\n\n# Post p2\n\nrewritten body\n"), 0o644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(p2, future, future))

	report, err := builder.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Changed)
	require.Equal(t, 1, report.Posts)
	// A changed member regenerates the whole home listing.
	require.Equal(t, 3, report.Listings)

	require.Contains(t, readOutput(t, cfg, "p2.html"), "rewritten body")

	after, err := os.Stat(filepath.Join(cfg.Build.OutputDir, "p1.html"))
	require.NoError(t, err)
	require.Equal(t, untouched.ModTime(), after.ModTime())
}

func TestRun_ForceRegeneratesEverything(t *testing.T) {
	cfg := testConfig(t)
	writeFivePosts(t, cfg)

	_, err := NewBuilder(cfg).Run(context.Background())
	require.NoError(t, err)

	report, err := NewBuilder(cfg).WithForce(true).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, report.Changed)
	require.Equal(t, 5, report.Posts)
	require.Equal(t, 3, report.Listings)
}

func TestRun_SlugTagCollisionAborts(t *testing.T) {
	cfg := testConfig(t)
	target := writeAged(t, cfg.Build.ContentDir, "linux.md", "2024-01-01\n\n# Linux\n")
	writeAged(t, cfg.Build.ContentDir, "other.md", "2024-01-02\n\n# Other\n")

	tagDir := filepath.Join(cfg.Build.ContentDir, "linux")
	require.NoError(t, os.Mkdir(tagDir, 0o755))
	require.NoError(t, os.Symlink(target, filepath.Join(tagDir, "linux.md")))

	report, err := NewBuilder(cfg).Run(context.Background())
	require.ErrorIs(t, err, content.ErrSlugTagCollision)
	require.Contains(t, err.Error(), "linux.md")
	require.Contains(t, err.Error(), `"linux"`)
	require.Equal(t, OutcomeFailed, report.Outcome)

	// The build aborts before producing any output.
	require.False(t, outputExists(cfg, "linux.html"))
	require.False(t, outputExists(cfg, "index.html"))
}

func TestRun_TagListingsAndTagLinks(t *testing.T) {
	cfg := testConfig(t)
	p1 := writeAged(t, cfg.Build.ContentDir, "p1.md", "2024-01-02\n\n# Post p1\n")
	writeAged(t, cfg.Build.ContentDir, "p2.md", "2024-01-01\n\n# Post p2\n")

	tagDir := filepath.Join(cfg.Build.ContentDir, "linux stuff")
	require.NoError(t, os.Mkdir(tagDir, 0o755))
	require.NoError(t, os.Symlink(p1, filepath.Join(tagDir, "p1.md")))

	report, err := NewBuilder(cfg).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Tags)
	// Home plus the tag listing.
	require.Equal(t, 2, report.Listings)

	tagPage := readOutput(t, cfg, "linux-stuff.html")
	require.Contains(t, tagPage, "Post p1")
	require.NotContains(t, tagPage, "Post p2")

	// The post page links back to its tag.
	require.Contains(t, readOutput(t, cfg, "p1.html"), `<a class="tag" href="linux-stuff.html">Linux Stuff</a>`)

	// The default menu lists home and the tag.
	index := readOutput(t, cfg, "index.html")
	require.Contains(t, index, `href="linux-stuff.html"`)
}

func TestRun_MenuFileDrivesNavigation(t *testing.T) {
	cfg := testConfig(t)
	p1 := writeAged(t, cfg.Build.ContentDir, "p1.md", "2024-01-01\n\n# Post p1\n")
	writeAged(t, cfg.Build.ContentDir, "about.md", "2024-01-02\n\n# About\n")

	tagDir := filepath.Join(cfg.Build.ContentDir, "linux")
	require.NoError(t, os.Mkdir(tagDir, 0o755))
	require.NoError(t, os.Symlink(p1, filepath.Join(tagDir, "p1.md")))

	menuText := "Home\nTopics\n linux\n      too-deep\nabout\n\nAbout\n"
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Build.ContentDir, content.MenuFile), []byte(menuText), 0o644))

	_, err := NewBuilder(cfg).Run(context.Background())
	require.NoError(t, err)

	index := readOutput(t, cfg, "index.html")
	require.Contains(t, index, `<span class="menu-heading">Topics</span>`)
	require.Contains(t, index, `href="linux.html"`)
	require.Contains(t, index, `href="about.html"`)
	require.NotContains(t, index, "too-deep")

	// The home entry is active on the home listing.
	require.Contains(t, index, `<li class="active"><a href="index.html">Home</a></li>`)
}

func TestRun_OverridesShadowBuiltins(t *testing.T) {
	cfg := testConfig(t)
	writeAged(t, cfg.Build.ContentDir, "p1.md", "2024-01-01\n\n# Post p1\n")

	require.NoError(t, os.MkdirAll(cfg.Build.CacheDir, 0o755))
	override := `{{ define "footer" }}<footer>override footer</footer>{{ end }}`
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Build.CacheDir, "overrides.tmpl"), []byte(override), 0o644))

	_, err := NewBuilder(cfg).Run(context.Background())
	require.NoError(t, err)

	index := readOutput(t, cfg, "index.html")
	require.Contains(t, index, "<footer>override footer</footer>")
	require.NotContains(t, index, "Served fresh from plain files.")
}

func TestRun_LinkProcessingAppliedToOutput(t *testing.T) {
	cfg := testConfig(t)
	cfg.Site.BaseURL = "https://example.com"
	writeAged(t, cfg.Build.ContentDir, "p1.md",
		"2024-01-01\n\n# Post p1\n\n[rel](other.html) and [ext](https://other.org/x)\n")

	_, err := NewBuilder(cfg).Run(context.Background())
	require.NoError(t, err)

	page := readOutput(t, cfg, "p1.html")
	require.Contains(t, page, `href="https://example.com/other.html"`)
	require.Contains(t, page, `href="https://other.org/x" class="external" target="_blank" rel="noopener noreferrer"`)
}

func TestRun_EmptyContentStillProducesHome(t *testing.T) {
	cfg := testConfig(t)

	report, err := NewBuilder(cfg).Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, report.Sources)
	require.Equal(t, 1, report.Listings)
	require.Contains(t, readOutput(t, cfg, "index.html"), "Nothing here yet.")
}

func TestRun_PagesWithoutDatesStayOffListings(t *testing.T) {
	cfg := testConfig(t)
	off := false
	cfg.Build.InsertDates = &off
	writeAged(t, cfg.Build.ContentDir, "about.md", "# About\n\nplain page\n")
	writeAged(t, cfg.Build.ContentDir, "post.md", "2024-01-01\n\n# A Post\n")

	report, err := NewBuilder(cfg).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Pages)
	require.Equal(t, 1, report.Posts)

	index := readOutput(t, cfg, "index.html")
	require.Contains(t, index, "A Post")
	require.NotContains(t, index, "plain page")

	// Pages carry no date metadata block.
	require.NotContains(t, readOutput(t, cfg, "about.html"), "post-meta")
}

func TestRun_ReadMoreOnListingOnly(t *testing.T) {
	cfg := testConfig(t)
	writeAged(t, cfg.Build.ContentDir, "p1.md",
		"2024-01-01\n\n# Post p1\n\nintro paragraph\n\n\nrest of the post\n")

	_, err := NewBuilder(cfg).Run(context.Background())
	require.NoError(t, err)

	index := readOutput(t, cfg, "index.html")
	require.Contains(t, index, "intro paragraph")
	require.NotContains(t, index, "rest of the post")
	require.Contains(t, index, `<a href="p1.html">Read more</a>`)

	post := readOutput(t, cfg, "p1.html")
	require.Contains(t, post, "rest of the post")
}

func TestRun_ReportPersistedToCache(t *testing.T) {
	cfg := testConfig(t)
	writeAged(t, cfg.Build.ContentDir, "p1.md", "2024-01-01\n\n# Post p1\n")

	report, err := NewBuilder(cfg).Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, report.ID)

	raw, err := os.ReadFile(filepath.Join(cfg.Build.CacheDir, ReportFile))
	require.NoError(t, err)
	require.Contains(t, string(raw), report.ID)
}

func TestRun_CancelledContextStopsBuild(t *testing.T) {
	cfg := testConfig(t)
	writeFivePosts(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewBuilder(cfg).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, OutcomeFailed, report.Outcome)
}
