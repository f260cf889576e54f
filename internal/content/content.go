// Package content discovers source files and tag directories in the
// content root.
//
// The content root holds source files directly. Every immediate
// subdirectory is a candidate tag: a tag groups the sibling sources it
// links to (symlinks or hardlinks). Tag membership is derived from the
// filesystem on every scan, nothing about tags is persisted elsewhere.
package content

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"git.arenberg.net/steen/sitebuilder/internal/logfields"
	"git.arenberg.net/steen/sitebuilder/internal/markdown"
	"git.arenberg.net/steen/sitebuilder/internal/slug"
)

// MenuFile is the optional navigation definition inside the content root. It
// is never treated as a source file.
const MenuFile = "menu.conf"

var (
	ErrScanFailed       = errors.New("content: scanning content directory failed")
	ErrSlugTagCollision = errors.New("content: source slug collides with tag directory")
)

// Source is one discovered content file.
type Source struct {
	Path       string    // absolute path to the file
	Slug       string    // normalized filename stem, the URL identifier
	Title      string    // first top-level heading, may be empty
	CreatedAt  time.Time // explicit leading date, or file mtime
	HasDate    bool      // an explicit date line was present
	HasTime    bool      // that date line carried a clock time
	ModifiedAt time.Time // file mtime
	Post       bool      // posts appear in listings, plain pages do not
	Tags       []Tag     // populated by Scanner.Tags
	HTML       string    // rendered content, populated by the cache
}

// Tag identifies one tag directory. Name is the literal directory
// name, Slug its normalized form.
type Tag struct {
	Name  string
	Slug  string
	Label string
}

// TagGroup is a tag together with the slugs of its member sources,
// ordered by the members' creation time descending.
type TagGroup struct {
	Tag     Tag
	Members []string
}

// Scanner discovers sources and tags under one content root.
type Scanner struct {
	contentDir string
	autoDate   bool
}

// NewScanner returns a Scanner for contentDir. When autoDate is set,
// every source counts as a post even without an explicit date line,
// mirroring the date auto-insertion done during rendering.
func NewScanner(contentDir string, autoDate bool) *Scanner {
	return &Scanner{contentDir: contentDir, autoDate: autoDate}
}

// Sources scans the content root for source files and returns them
// sorted by creation time descending. Ties keep directory enumeration
// order. Files whose stems normalize to the same slug keep the first
// occurrence only.
func (s *Scanner) Sources() ([]Source, error) {
	entries, err := os.ReadDir(s.contentDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrScanFailed, s.contentDir, err)
	}

	var sources []Source
	seen := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !isSourceFile(entry.Name()) {
			continue
		}

		path := filepath.Join(s.contentDir, entry.Name())
		src, err := s.readSource(path, entry.Name())
		if err != nil {
			return nil, err
		}

		if prev, dup := seen[src.Slug]; dup {
			slog.Warn("duplicate slug, keeping first source",
				logfields.Slug(src.Slug),
				logfields.Path(path),
				slog.String("kept", prev))
			continue
		}
		seen[src.Slug] = path

		sources = append(sources, src)
		slog.Debug("discovered source",
			logfields.Slug(src.Slug),
			logfields.Path(path),
			slog.Bool("post", src.Post))
	}

	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].CreatedAt.After(sources[j].CreatedAt)
	})

	slog.Info("content discovered", logfields.Count(len(sources)))
	return sources, nil
}

func (s *Scanner) readSource(path, name string) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Source{}, fmt.Errorf("stat source %s: %w", path, err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Source{}, fmt.Errorf("read source %s: %w", path, err)
	}

	src := Source{
		Path:       path,
		Slug:       slug.Normalize(stem(name)),
		Title:      markdown.FirstHeading(raw),
		CreatedAt:  info.ModTime(),
		ModifiedAt: info.ModTime(),
		Post:       s.autoDate,
	}
	if when, hasTime, ok := parseDateLine(firstContentLine(raw)); ok {
		src.CreatedAt = when
		src.HasDate = true
		src.HasTime = hasTime
		src.Post = true
	}
	return src, nil
}

// Tags scans the immediate subdirectories of the content root. A
// subdirectory becomes a tag when it contains at least one valid link
// to a sibling source; empty or link-less directories are ignored.
// Each source's Tags field is filled in as a side effect. The returned
// groups are sorted by tag slug.
func (s *Scanner) Tags(sources []Source) ([]TagGroup, error) {
	entries, err := os.ReadDir(s.contentDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrScanFailed, s.contentDir, err)
	}

	bySlug := make(map[string]int, len(sources))
	for i := range sources {
		bySlug[sources[i].Slug] = i
	}

	var groups []TagGroup
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		tag := Tag{
			Name:  entry.Name(),
			Slug:  slug.Normalize(entry.Name()),
			Label: slug.Title(slug.Normalize(entry.Name())),
		}
		members, err := s.tagMembers(filepath.Join(s.contentDir, entry.Name()), bySlug, sources)
		if err != nil {
			return nil, err
		}
		if len(members) == 0 {
			slog.Debug("ignoring tag directory without member links", logfields.Path(entry.Name()))
			continue
		}

		for _, idx := range members {
			sources[idx].Tags = append(sources[idx].Tags, tag)
		}

		group := TagGroup{Tag: tag, Members: make([]string, 0, len(members))}
		sort.SliceStable(members, func(i, j int) bool {
			return sources[members[i]].CreatedAt.After(sources[members[j]].CreatedAt)
		})
		for _, idx := range members {
			group.Members = append(group.Members, sources[idx].Slug)
		}
		groups = append(groups, group)
		slog.Debug("discovered tag", logfields.Tag(tag.Slug), logfields.Count(len(members)))
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Tag.Slug < groups[j].Tag.Slug })
	return groups, nil
}

// tagMembers returns the indexes into sources that the directory links
// to. A member link is a symlink resolving to a sibling source, or a
// hardlink sharing the sibling's inode.
func (s *Scanner) tagMembers(dir string, bySlug map[string]int, sources []Source) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrScanFailed, dir, err)
	}

	var members []int
	seen := make(map[int]struct{})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		idx, ok := s.resolveMember(dir, entry.Name(), bySlug, sources)
		if !ok {
			continue
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		members = append(members, idx)
	}
	return members, nil
}

func (s *Scanner) resolveMember(dir, name string, bySlug map[string]int, sources []Source) (int, bool) {
	linkPath := filepath.Join(dir, name)

	info, err := os.Lstat(linkPath)
	if err != nil {
		slog.Warn("skipping unreadable tag entry", logfields.Path(linkPath), logfields.Error(err))
		return 0, false
	}

	if info.Mode()&os.ModeSymlink != 0 {
		target, err := filepath.EvalSymlinks(linkPath)
		if err != nil {
			slog.Debug("skipping dangling tag link", logfields.Path(linkPath), logfields.Error(err))
			return 0, false
		}
		for i := range sources {
			abs, err := filepath.EvalSymlinks(sources[i].Path)
			if err == nil && abs == target {
				return i, true
			}
		}
		return 0, false
	}

	// Hardlinks carry no target path, so match by name against the
	// sibling with the same inode.
	idx, ok := bySlug[slug.Normalize(stem(name))]
	if !ok {
		return 0, false
	}
	siblingInfo, err := os.Stat(sources[idx].Path)
	if err != nil {
		return 0, false
	}
	linkInfo, err := os.Stat(linkPath)
	if err != nil {
		return 0, false
	}
	if !os.SameFile(siblingInfo, linkInfo) {
		return 0, false
	}
	return idx, true
}

// Collision returns a fatal error when any source slug equals a tag
// slug, since both would claim the same URL. The message carries the
// literal file and directory names so the operator knows what to
// rename.
func Collision(sources []Source, tags []TagGroup) error {
	dirBySlug := make(map[string]string, len(tags))
	for _, g := range tags {
		dirBySlug[g.Tag.Slug] = g.Tag.Name
	}
	for i := range sources {
		if dir, clash := dirBySlug[sources[i].Slug]; clash {
			return fmt.Errorf("%w: source %q vs tag directory %q (both publish as %q)",
				ErrSlugTagCollision, filepath.Base(sources[i].Path), dir, sources[i].Slug)
		}
	}
	return nil
}

func isSourceFile(name string) bool {
	if strings.HasPrefix(name, ".") || name == MenuFile {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown", ".mdown", ".mkd":
		return true
	}
	return false
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
