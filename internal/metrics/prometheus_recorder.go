package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder on Prometheus metrics.
type PrometheusRecorder struct {
	buildDuration  prom.Histogram
	stageDuration  *prom.HistogramVec
	buildOutcomes  *prom.CounterVec
	artifacts      *prom.CounterVec
	changedSources prom.Counter
}

// NewPrometheusRecorder constructs and registers the build metrics on
// reg, or on a fresh registry when reg is nil.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "sitebuilder",
			Name:      "build_duration_seconds",
			Help:      "Total build pass duration",
			Buckets:   prom.DefBuckets,
		}),
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "sitebuilder",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual build stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		buildOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "sitebuilder",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"}),
		artifacts: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "sitebuilder",
			Name:      "artifacts_written_total",
			Help:      "Output artifacts written, by kind",
		}, []string{"kind"}),
		changedSources: prom.NewCounter(prom.CounterOpts{
			Namespace: "sitebuilder",
			Name:      "changed_sources_total",
			Help:      "Sources whose rendered content changed",
		}),
	}
	reg.MustRegister(pr.buildDuration, pr.stageDuration, pr.buildOutcomes, pr.artifacts, pr.changedSources)
	return pr
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome string) {
	if p == nil {
		return
	}
	p.buildOutcomes.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) AddArtifacts(kind ArtifactKind, n int) {
	if p == nil || n <= 0 {
		return
	}
	p.artifacts.WithLabelValues(string(kind)).Add(float64(n))
}

func (p *PrometheusRecorder) AddChangedSources(n int) {
	if p == nil || n <= 0 {
		return
	}
	p.changedSources.Add(float64(n))
}

// HTTPHandler serves the registry in the Prometheus exposition
// format, for the daemon's /metrics endpoint.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
