// Package cache owns the per-source render cache.
//
// Every source file has one HTML artifact in the cache directory,
// named by its slug. An artifact is fresh while its modification time
// is strictly later than the source's; anything else re-renders. The
// filesystem is the only cache state.
package cache

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.arenberg.net/steen/sitebuilder/internal/content"
	"git.arenberg.net/steen/sitebuilder/internal/logfields"
	"git.arenberg.net/steen/sitebuilder/internal/markdown"
)

// Store renders sources into cache artifacts and answers freshness
// questions about them.
type Store struct {
	dir      string
	autoDate bool
	logger   *slog.Logger
}

// NewStore returns a Store over the given cache directory. When
// autoDate is set, sources without a leading date line get one stamped
// in before rendering.
func NewStore(dir string, autoDate bool) *Store {
	return &Store{dir: dir, autoDate: autoDate, logger: slog.Default()}
}

// WithLogger sets a custom logger.
func (s *Store) WithLogger(logger *slog.Logger) *Store {
	s.logger = logger
	return s
}

// Dir returns the cache directory.
func (s *Store) Dir() string { return s.dir }

// ArtifactPath returns the cache artifact path for a slug.
func (s *Store) ArtifactPath(slug string) string {
	return filepath.Join(s.dir, slug+".html")
}

// Fresh reports whether the cache artifact for slug exists and is
// strictly newer than the source at srcPath.
func (s *Store) Fresh(srcPath, slug string) bool {
	srcInfo, err := os.Stat(srcPath)
	if err != nil {
		return false
	}
	artInfo, err := os.Stat(s.ArtifactPath(slug))
	if err != nil {
		return false
	}
	return artInfo.ModTime().After(srcInfo.ModTime())
}

// Render returns the rendered HTML for the source at srcPath. With a
// fresh artifact and force unset it returns the cached content and
// changed=false. Otherwise it renders the source, persists the
// artifact and returns changed=true. Rendering stamps a missing date
// line first (when enabled), strips the date line from the body and
// inserts the read-more marker before conversion.
func (s *Store) Render(srcPath, slug string, force bool) (string, bool, error) {
	artifact := s.ArtifactPath(slug)

	if !force && s.Fresh(srcPath, slug) {
		html, err := os.ReadFile(artifact)
		if err != nil {
			return "", false, fmt.Errorf("read cache artifact %s: %w", artifact, err)
		}
		s.logger.Debug("cache hit", logfields.Slug(slug))
		return string(html), false, nil
	}

	if s.autoDate {
		mutated, err := content.EnsureDateLine(srcPath)
		if err != nil {
			return "", false, err
		}
		if mutated {
			s.logger.Info("stamped date line", logfields.Path(srcPath))
		}
	}

	raw, err := os.ReadFile(srcPath)
	if err != nil {
		return "", false, fmt.Errorf("read source %s: %w", srcPath, err)
	}

	body := content.StripDateLine(raw)
	body = markdown.InsertMoreMarker(body)
	html, err := markdown.Convert(body)
	if err != nil {
		return "", false, fmt.Errorf("convert %s: %w", srcPath, err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", false, fmt.Errorf("create cache dir %s: %w", s.dir, err)
	}
	if err := os.WriteFile(artifact, []byte(html), 0o644); err != nil {
		return "", false, fmt.Errorf("write cache artifact %s: %w", artifact, err)
	}

	s.logger.Debug("rendered source", logfields.Slug(slug), logfields.Artifact(artifact))
	return html, true, nil
}
