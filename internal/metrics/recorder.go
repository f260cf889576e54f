// Package metrics defines the observability hooks for build runs.
package metrics

import "time"

// ArtifactKind labels written artifacts for counters.
type ArtifactKind string

const (
	ArtifactPage    ArtifactKind = "page"
	ArtifactPost    ArtifactKind = "post"
	ArtifactListing ArtifactKind = "listing"
)

// Recorder receives build observations. Implementations may forward
// to Prometheus or drop everything; injection is optional and the
// NoopRecorder is the default.
type Recorder interface {
	ObserveBuildDuration(d time.Duration)
	ObserveStageDuration(stage string, d time.Duration)
	IncBuildOutcome(outcome string) // success|failed
	AddArtifacts(kind ArtifactKind, n int)
	AddChangedSources(n int)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncBuildOutcome(string)                     {}
func (NoopRecorder) AddArtifacts(ArtifactKind, int)             {}
func (NoopRecorder) AddChangedSources(int)                      {}
