// Package history keeps past build reports in a SQLite database, one
// row per pass. The store is write-mostly; nothing in the build path
// ever reads it back, it exists for the history command and for
// operators poking at the file directly.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.arenberg.net/steen/sitebuilder/internal/site"
)

// ErrNotFound is returned when a build ID has no recorded report.
var ErrNotFound = errors.New("history: build not found")

// Store is a SQLite-backed build history.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens the history database at path, creating the schema on
// first use. Use ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		sources INTEGER NOT NULL,
		tags INTEGER NOT NULL,
		pages INTEGER NOT NULL,
		posts INTEGER NOT NULL,
		listings INTEGER NOT NULL,
		changed INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		stages TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_builds_started_at ON builds(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

const reportColumns = "id, started_at, finished_at, duration_ms, sources, tags, pages, posts, listings, changed, outcome, error, stages"

// Record stores one finished pass. Recording the same build ID again
// replaces the earlier row.
func (s *Store) Record(ctx context.Context, report *site.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stagesJSON []byte
	if len(report.Stages) > 0 {
		var err error
		stagesJSON, err = json.Marshal(report.Stages)
		if err != nil {
			return fmt.Errorf("marshal stage durations: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO builds (`+reportColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ID, report.StartedAt.Unix(), report.FinishedAt.Unix(), report.DurationMS,
		report.Sources, report.Tags, report.Pages, report.Posts, report.Listings,
		report.Changed, string(report.Outcome), report.Error, stagesJSON,
	)
	if err != nil {
		return fmt.Errorf("insert build: %w", err)
	}
	return nil
}

// Recent returns up to limit reports, newest pass first.
func (s *Store) Recent(ctx context.Context, limit int) ([]site.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+reportColumns+" FROM builds ORDER BY started_at DESC, id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	var reports []site.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return reports, nil
}

// Get returns the report recorded under a build ID.
func (s *Store) Get(ctx context.Context, id string) (*site.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+reportColumns+" FROM builds WHERE id = ?", id)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanReport(row scannable) (site.Report, error) {
	var r site.Report
	var started, finished int64
	var outcome string
	var stagesJSON []byte

	err := row.Scan(&r.ID, &started, &finished, &r.DurationMS,
		&r.Sources, &r.Tags, &r.Pages, &r.Posts, &r.Listings,
		&r.Changed, &outcome, &r.Error, &stagesJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan build: %w", err)
	}

	r.StartedAt = time.Unix(started, 0)
	r.FinishedAt = time.Unix(finished, 0)
	r.Outcome = site.Outcome(outcome)
	if len(stagesJSON) > 0 {
		if err := json.Unmarshal(stagesJSON, &r.Stages); err != nil {
			return r, fmt.Errorf("unmarshal stage durations: %w", err)
		}
	}
	return r, nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
