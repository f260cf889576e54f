// Package templates renders pages, posts and listings.
//
// The built-in templates are a set of named definitions: the three
// entry points (page, post, list) plus the auxiliary hooks menu-item,
// head, top-nav, site-header and footer. A site can shadow any subset
// of them by placing an overrides file in the cache directory; every
// name it defines replaces the built-in of the same name, everything
// else keeps the default. Overrides are resolved once per build, a
// missing or broken overrides file is a warning, never an error.
package templates

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"git.arenberg.net/steen/sitebuilder/internal/logfields"
	"git.arenberg.net/steen/sitebuilder/internal/menu"
	"git.arenberg.net/steen/sitebuilder/internal/paginate"
)

// OverrideFile is the overrides file name inside the cache directory.
const OverrideFile = "overrides.tmpl"

// SiteInfo is the site-wide presentation context threaded through
// every render call.
type SiteInfo struct {
	BaseURL     string
	Title       string
	Description string
	DateFormat  string
	HomeURL     string
}

// Link is a resolved hyperlink, used for tag references.
type Link struct {
	URL   string
	Label string
}

// PageData is the rendering contract for a plain page.
type PageData struct {
	Slug       string
	Title      string
	Content    template.HTML
	CreatedAt  time.Time
	ModifiedAt time.Time
	HasTime    bool
	Menus      [][]menu.Item
	Site       SiteInfo
}

// PostData is the rendering contract for a dated post.
type PostData struct {
	PageData
	Tags []Link
}

// PostPreview is one listing entry, rebuilt fresh for every list
// render and never cached.
type PostPreview struct {
	Slug      string
	URL       string
	Title     string
	Date      time.Time
	HasTime   bool
	Preview   template.HTML
	Truncated bool
	Tags      []Link
}

// ListData is the rendering contract for one page of a listing.
type ListData struct {
	Slug  string
	Title string
	Posts []PostPreview
	Links []paginate.PageLink
	Menus [][]menu.Item
	Site  SiteInfo
}

// Set is a resolved template set: built-ins with any user overrides
// already layered on. Resolution happens once, rendering afterwards is
// plain template execution.
type Set struct {
	tmpl       *template.Template
	overridden []string
}

// Resolve parses the built-in templates and layers the overrides file
// from cacheDir on top, when present. Broken overrides are reported
// and skipped.
func Resolve(cacheDir string, logger *slog.Logger) *Set {
	if logger == nil {
		logger = slog.Default()
	}

	set := &Set{tmpl: template.Must(template.New("site").Parse(builtinTemplates))}

	path := filepath.Join(cacheDir, OverrideFile)
	raw, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("overrides file unreadable, using built-in templates",
				logfields.Path(path), logfields.Error(err))
		}
		return set
	}

	// Parse into a scratch tree first so a broken file cannot poison
	// the built-ins.
	scratch, err := template.New("overrides").Parse(string(raw))
	if err != nil {
		logger.Warn("overrides file does not parse, using built-in templates",
			logfields.Path(path), logfields.Error(err))
		return set
	}

	for _, t := range scratch.Templates() {
		if name := t.Name(); name != "overrides" {
			set.overridden = append(set.overridden, name)
		}
	}
	if len(set.overridden) == 0 {
		return set
	}
	sort.Strings(set.overridden)

	if _, err := set.tmpl.Parse(string(raw)); err != nil {
		logger.Warn("applying overrides failed, using built-in templates",
			logfields.Path(path), logfields.Error(err))
		set.overridden = nil
		return set
	}

	logger.Info("template overrides active", slog.Any("names", set.overridden))
	return set
}

// Builtin returns a Set with no overrides applied.
func Builtin() *Set {
	return &Set{tmpl: template.Must(template.New("site").Parse(builtinTemplates))}
}

// Overridden lists the names the overrides file shadowed, sorted.
func (s *Set) Overridden() []string { return s.overridden }

// RenderPage renders a plain page document.
func (s *Set) RenderPage(data PageData) (string, error) {
	return s.execute("page", data)
}

// RenderPost renders a dated post document.
func (s *Set) RenderPost(data PostData) (string, error) {
	return s.execute("post", data)
}

// RenderList renders one page of a listing.
func (s *Set) RenderList(data ListData) (string, error) {
	return s.execute("list", data)
}

func (s *Set) execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
