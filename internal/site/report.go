package site

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Outcome is the final status of a build pass.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// Report summarizes one build pass.
type Report struct {
	ID         string                   `json:"id"`
	StartedAt  time.Time                `json:"started_at"`
	FinishedAt time.Time                `json:"finished_at"`
	DurationMS int64                    `json:"duration_ms"`
	Sources    int                      `json:"sources"`
	Tags       int                      `json:"tags"`
	Pages      int                      `json:"pages"`
	Posts      int                      `json:"posts"`
	Listings   int                      `json:"listings"`
	Changed    int                      `json:"changed"`
	Outcome    Outcome                  `json:"outcome"`
	Error      string                   `json:"error,omitempty"`
	Stages     map[string]time.Duration `json:"stage_durations,omitempty"`
}

// Summary is the one-line console form printed after every pass.
func (r *Report) Summary() string {
	if r.Outcome == OutcomeFailed {
		return fmt.Sprintf("build failed after %dms: %s", r.DurationMS, r.Error)
	}
	return fmt.Sprintf("wrote %d pages, %d posts, %d listing pages; %d of %d sources changed (%dms)",
		r.Pages, r.Posts, r.Listings, r.Changed, r.Sources, r.DurationMS)
}

// Save writes the report as indented JSON.
func (r *Report) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
