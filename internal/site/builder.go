// Package site sequences one build pass: discovery, tag scanning,
// menu parsing, cached rendering, artifact regeneration and listing
// pagination. The pass is synchronous and single-threaded; the
// filesystem is the only shared state, and one build process is
// assumed to own the content, cache and output directories for the
// duration of a pass.
package site

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"git.arenberg.net/steen/sitebuilder/internal/cache"
	"git.arenberg.net/steen/sitebuilder/internal/config"
	"git.arenberg.net/steen/sitebuilder/internal/content"
	"git.arenberg.net/steen/sitebuilder/internal/links"
	"git.arenberg.net/steen/sitebuilder/internal/logfields"
	"git.arenberg.net/steen/sitebuilder/internal/markdown"
	"git.arenberg.net/steen/sitebuilder/internal/menu"
	"git.arenberg.net/steen/sitebuilder/internal/metrics"
	"git.arenberg.net/steen/sitebuilder/internal/paginate"
	"git.arenberg.net/steen/sitebuilder/internal/slug"
	"git.arenberg.net/steen/sitebuilder/internal/templates"
)

// ReportFile is where the last build report is kept, inside the cache
// directory.
const ReportFile = "last-build.json"

// Builder runs build passes for one site.
type Builder struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics metrics.Recorder
	force   bool
}

// NewBuilder returns a Builder over cfg.
func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{
		cfg:     cfg,
		logger:  slog.Default(),
		metrics: metrics.NoopRecorder{},
	}
}

// WithLogger sets a custom logger.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetrics sets the metrics recorder.
func (b *Builder) WithMetrics(rec metrics.Recorder) *Builder {
	b.metrics = rec
	return b
}

// WithForce makes every pass regenerate everything regardless of
// timestamps.
func (b *Builder) WithForce(force bool) *Builder {
	b.force = force
	return b
}

// Run executes one build pass. The returned report is non-nil even on
// failure; err carries the fatal cause.
func (b *Builder) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Stages:    make(map[string]time.Duration),
	}

	err := b.run(ctx, report)

	report.FinishedAt = time.Now()
	report.DurationMS = report.FinishedAt.Sub(report.StartedAt).Milliseconds()
	b.metrics.ObserveBuildDuration(report.FinishedAt.Sub(report.StartedAt))

	if err != nil {
		report.Outcome = OutcomeFailed
		report.Error = err.Error()
		b.metrics.IncBuildOutcome(string(OutcomeFailed))
		b.logger.Error("build failed", logfields.BuildID(report.ID), logfields.Error(err))
		return report, err
	}

	report.Outcome = OutcomeSuccess
	b.metrics.IncBuildOutcome(string(OutcomeSuccess))
	b.metrics.AddArtifacts(metrics.ArtifactPage, report.Pages)
	b.metrics.AddArtifacts(metrics.ArtifactPost, report.Posts)
	b.metrics.AddArtifacts(metrics.ArtifactListing, report.Listings)
	b.metrics.AddChangedSources(report.Changed)

	b.saveReport(report)
	b.logger.Info("build complete",
		logfields.BuildID(report.ID),
		slog.Int("pages", report.Pages),
		slog.Int("posts", report.Posts),
		slog.Int("listings", report.Listings),
		slog.Int("changed", report.Changed),
		logfields.DurationMS(report.FinishedAt.Sub(report.StartedAt)))
	return report, nil
}

func (b *Builder) run(ctx context.Context, report *Report) error {
	build := b.cfg.Build
	suffix := build.Suffix()

	scanner := content.NewScanner(build.ContentDir, build.AutoDate())

	var sources []content.Source
	var groups []content.TagGroup
	err := b.stage(report, "discover", func() error {
		var err error
		if sources, err = scanner.Sources(); err != nil {
			return err
		}
		if groups, err = scanner.Tags(sources); err != nil {
			return err
		}
		return content.Collision(sources, groups)
	})
	if err != nil {
		return err
	}
	report.Sources = len(sources)
	report.Tags = len(groups)

	if err := ctx.Err(); err != nil {
		return err
	}

	sections, err := b.loadMenu(groups, sources)
	if err != nil {
		return err
	}

	set := templates.Resolve(build.CacheDir, b.logger)
	proc, err := links.NewProcessor(b.cfg.Site.BaseURL)
	if err != nil {
		return err
	}

	store := cache.NewStore(build.CacheDir, build.AutoDate()).WithLogger(b.logger)
	changed := make(map[string]bool, len(sources))
	err = b.stage(report, "render", func() error {
		for i := range sources {
			src := &sources[i]
			html, didChange, err := store.Render(src.Path, src.Slug, b.force)
			if err != nil {
				return err
			}
			src.HTML = html
			changed[src.Slug] = didChange
			if didChange {
				report.Changed++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(build.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir %s: %w", build.OutputDir, err)
	}

	info := b.siteInfo(suffix)
	err = b.stage(report, "pages", func() error {
		for i := range sources {
			src := &sources[i]
			wrote, err := b.buildSource(src, sections, set, proc, info, suffix, changed[src.Slug])
			if err != nil {
				return err
			}
			if !wrote {
				continue
			}
			if src.Post {
				report.Posts++
			} else {
				report.Pages++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return b.stage(report, "listings", func() error {
		for _, l := range b.listings(sources, groups) {
			wrote, err := b.buildListing(l, sections, set, proc, info, suffix, changed)
			if err != nil {
				return err
			}
			report.Listings += wrote
		}
		return nil
	})
}

func (b *Builder) stage(report *Report, name string, fn func() error) error {
	begin := time.Now()
	err := fn()
	d := time.Since(begin)
	report.Stages[name] = d
	b.metrics.ObserveStageDuration(name, d)
	if err != nil {
		return err
	}
	b.logger.Debug("stage complete", slog.String("stage", name), logfields.DurationMS(d))
	return nil
}

// loadMenu reads the menu file from the content directory, falling
// back to the synthetic default when it is absent.
func (b *Builder) loadMenu(groups []content.TagGroup, sources []content.Source) ([][]menu.Entry, error) {
	tagSlugs := make(map[string]struct{}, len(groups))
	var tagList []string
	for _, g := range groups {
		tagSlugs[g.Tag.Slug] = struct{}{}
		tagList = append(tagList, g.Tag.Slug)
	}
	sourceSlugs := make(map[string]struct{}, len(sources))
	for i := range sources {
		sourceSlugs[sources[i].Slug] = struct{}{}
	}

	path := filepath.Join(b.cfg.Build.ContentDir, content.MenuFile)
	raw, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read menu file %s: %w", path, err)
		}
		b.logger.Debug("no menu file, using default", logfields.Path(path))
		return menu.Default(tagList), nil
	}
	return menu.Parse(string(raw), tagSlugs, sourceSlugs), nil
}

func (b *Builder) siteInfo(suffix string) templates.SiteInfo {
	return templates.SiteInfo{
		BaseURL:     b.cfg.Site.BaseURL,
		Title:       b.cfg.Site.Title,
		Description: b.cfg.Site.Description,
		DateFormat:  b.cfg.Site.DateFormat,
		HomeURL:     menu.HomeSlug + suffix,
	}
}

// buildSource regenerates one source artifact when its content
// changed, its artifact is missing, or the pass is forced.
func (b *Builder) buildSource(src *content.Source, sections [][]menu.Entry, set *templates.Set, proc *links.Processor, info templates.SiteInfo, suffix string, changed bool) (bool, error) {
	outPath := filepath.Join(b.cfg.Build.OutputDir, src.Slug+suffix)
	if !b.force && !changed && fileExists(outPath) {
		return false, nil
	}

	page := templates.PageData{
		Slug:       src.Slug,
		Title:      displayTitle(src),
		Content:    template.HTML(src.HTML),
		CreatedAt:  src.CreatedAt,
		ModifiedAt: src.ModifiedAt,
		HasTime:    src.HasTime,
		Menus:      menu.BuildForest(sections, src.Slug, suffix),
		Site:       info,
	}

	var rendered string
	var err error
	if src.Post {
		rendered, err = set.RenderPost(templates.PostData{PageData: page, Tags: tagLinks(src.Tags, suffix)})
	} else {
		rendered, err = set.RenderPage(page)
	}
	if err != nil {
		return false, err
	}

	processed, err := proc.Process(rendered)
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(outPath, []byte(processed), 0o644); err != nil {
		return false, fmt.Errorf("write artifact %s: %w", outPath, err)
	}

	b.logger.Debug("wrote artifact", logfields.Slug(src.Slug), logfields.Artifact(outPath))
	return true, nil
}

type listing struct {
	name  string // artifact base name, also the active menu slug
	title string // display title, empty for the home listing
	posts []*content.Source
}

// listings assembles the home listing plus one listing per tag. Posts
// arrive already sorted by creation time descending.
func (b *Builder) listings(sources []content.Source, groups []content.TagGroup) []listing {
	bySlug := make(map[string]*content.Source, len(sources))
	var home []*content.Source
	for i := range sources {
		src := &sources[i]
		bySlug[src.Slug] = src
		if src.Post {
			home = append(home, src)
		}
	}

	all := []listing{{name: menu.HomeSlug, posts: home}}
	for _, g := range groups {
		l := listing{name: g.Tag.Slug, title: g.Tag.Label}
		for _, member := range g.Members {
			if src, ok := bySlug[member]; ok && src.Post {
				l.posts = append(l.posts, src)
			}
		}
		all = append(all, l)
	}
	return all
}

// buildListing writes the listing's pages. Membership shifts move
// posts across page boundaries, so any changed member regenerates
// every page of that listing; untouched listings only fill in missing
// artifacts.
func (b *Builder) buildListing(l listing, sections [][]menu.Entry, set *templates.Set, proc *links.Processor, info templates.SiteInfo, suffix string, changed map[string]bool) (int, error) {
	anyChanged := b.force
	for _, p := range l.posts {
		if changed[p.Slug] {
			anyChanged = true
			break
		}
	}

	pages := paginate.Split(l.posts, b.cfg.Build.PerPage)
	menus := menu.BuildForest(sections, l.name, suffix)
	written := 0

	for i, page := range pages {
		n := i + 1
		outPath := filepath.Join(b.cfg.Build.OutputDir, paginate.PageURL(l.name, n, suffix))
		if !anyChanged && fileExists(outPath) {
			continue
		}

		data := templates.ListData{
			Slug:  l.name,
			Title: l.title,
			Posts: b.previews(page, suffix),
			Links: paginate.Links(l.name, n, len(pages), suffix),
			Menus: menus,
			Site:  info,
		}
		rendered, err := set.RenderList(data)
		if err != nil {
			return written, err
		}
		processed, err := proc.Process(rendered)
		if err != nil {
			return written, err
		}
		if err := os.WriteFile(outPath, []byte(processed), 0o644); err != nil {
			return written, fmt.Errorf("write listing %s: %w", outPath, err)
		}

		written++
		b.logger.Debug("wrote listing page", logfields.Slug(l.name), logfields.Artifact(outPath))
	}
	return written, nil
}

// previews builds the per-page post previews, fresh on every render.
func (b *Builder) previews(posts []*content.Source, suffix string) []templates.PostPreview {
	out := make([]templates.PostPreview, 0, len(posts))
	for _, src := range posts {
		preview, truncated := markdown.SplitPreview(src.HTML)
		out = append(out, templates.PostPreview{
			Slug:      src.Slug,
			URL:       src.Slug + suffix,
			Title:     displayTitle(src),
			Date:      src.CreatedAt,
			HasTime:   src.HasTime,
			Preview:   template.HTML(preview),
			Truncated: truncated,
			Tags:      tagLinks(src.Tags, suffix),
		})
	}
	return out
}

func (b *Builder) saveReport(report *Report) {
	path := filepath.Join(b.cfg.Build.CacheDir, ReportFile)
	if err := os.MkdirAll(b.cfg.Build.CacheDir, 0o755); err != nil {
		b.logger.Warn("cannot keep build report", logfields.Path(path), logfields.Error(err))
		return
	}
	if err := report.Save(path); err != nil {
		b.logger.Warn("cannot keep build report", logfields.Path(path), logfields.Error(err))
	}
}

func displayTitle(src *content.Source) string {
	if src.Title != "" {
		return src.Title
	}
	return slug.Title(src.Slug)
}

func tagLinks(tags []content.Tag, suffix string) []templates.Link {
	if len(tags) == 0 {
		return nil
	}
	out := make([]templates.Link, 0, len(tags))
	for _, t := range tags {
		out = append(out, templates.Link{URL: t.Slug + suffix, Label: t.Label})
	}
	return out
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
