// Package daemon keeps a site continuously built: it watches the
// content directory, rebuilds through the normal build path on change,
// and optionally serves the output directory with live reload.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"git.arenberg.net/steen/sitebuilder/internal/config"
	"git.arenberg.net/steen/sitebuilder/internal/logfields"
	"git.arenberg.net/steen/sitebuilder/internal/metrics"
	"git.arenberg.net/steen/sitebuilder/internal/site"
)

const shutdownGrace = 5 * time.Second

// Daemon owns the watch loop and the optional HTTP server.
type Daemon struct {
	cfg            *config.Config
	logger         *slog.Logger
	recorder       metrics.Recorder
	metricsHandler http.Handler
	afterBuild     func(*site.Report)
	serveHTTP      bool

	startTime time.Time
	last      atomic.Pointer[site.Report]
}

// NewDaemon returns a Daemon over cfg. By default it only watches and
// rebuilds; enable the HTTP server with WithHTTP.
func NewDaemon(cfg *config.Config) *Daemon {
	return &Daemon{
		cfg:      cfg,
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
	}
}

// WithLogger sets a custom logger.
func (d *Daemon) WithLogger(logger *slog.Logger) *Daemon {
	d.logger = logger
	return d
}

// WithRecorder sets the metrics recorder passed to every build.
func (d *Daemon) WithRecorder(rec metrics.Recorder) *Daemon {
	d.recorder = rec
	return d
}

// WithMetricsHandler mounts handler at /metrics on the HTTP server.
func (d *Daemon) WithMetricsHandler(h http.Handler) *Daemon {
	d.metricsHandler = h
	return d
}

// WithAfterBuild registers a hook called with every finished report,
// failed passes included.
func (d *Daemon) WithAfterBuild(fn func(*site.Report)) *Daemon {
	d.afterBuild = fn
	return d
}

// WithHTTP enables serving the output directory.
func (d *Daemon) WithHTTP(serve bool) *Daemon {
	d.serveHTTP = serve
	return d
}

// Run builds once, then keeps rebuilding on content changes until ctx
// is cancelled. A failing build never stops the loop; the last good
// output stays served.
func (d *Daemon) Run(ctx context.Context) error {
	if st, err := os.Stat(d.cfg.Build.ContentDir); err != nil || !st.IsDir() {
		return fmt.Errorf("content dir not found: %s", d.cfg.Build.ContentDir)
	}
	d.startTime = time.Now()

	builder := site.NewBuilder(d.cfg).WithLogger(d.logger).WithMetrics(d.recorder)
	// Scheduled passes regenerate everything; the mtime signal alone
	// would make them no-ops.
	forced := site.NewBuilder(d.cfg).WithLogger(d.logger).WithMetrics(d.recorder).WithForce(true)

	var hub *ReloadHub
	if d.serveHTTP && d.cfg.Daemon.LiveReloadEnabled() {
		hub = NewReloadHub(d.logger)
		defer hub.Shutdown()
	}

	d.build(ctx, builder, hub)

	if d.serveHTTP {
		server := newServer(d.cfg.Daemon.Listen, serverOptions{
			outputDir:      d.cfg.Build.OutputDir,
			livereload:     hub != nil,
			hub:            hub,
			metricsHandler: d.metricsHandler,
			status:         d.status,
		}, d.logger)
		if err := server.Start(); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			if err := server.Stop(stopCtx); err != nil {
				d.logger.Warn("http shutdown", logfields.Error(err))
			}
		}()
	}

	w, err := newWatcher(d.cfg.Build.ContentDir, d.cfg.Build.CacheDir, d.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := w.Close(); err != nil {
			d.logger.Warn("watcher close", logfields.Error(err))
		}
	}()
	go w.Run()

	scheduled := make(chan struct{}, 1)
	if interval, err := d.cfg.Daemon.RebuildInterval(); err != nil {
		return err
	} else if interval > 0 {
		sched, err := newScheduler(d.logger)
		if err != nil {
			return err
		}
		err = sched.every(interval, func() {
			select {
			case scheduled <- struct{}{}:
			default:
			}
		})
		if err != nil {
			return err
		}
		sched.start()
		defer sched.stop()
		d.logger.Info("scheduled full rebuilds on", slog.Duration("interval", interval))
	}

	d.logger.Info("watching for changes", logfields.Path(d.cfg.Build.ContentDir))
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("shutting down")
			return nil
		case <-w.Requests():
			d.build(ctx, builder, hub)
		case <-scheduled:
			d.build(ctx, forced, hub)
		}
	}
}

// build runs one pass and fans the result out to the hook and the
// reload hub.
func (d *Daemon) build(ctx context.Context, builder *site.Builder, hub *ReloadHub) {
	report, err := builder.Run(ctx)
	if report != nil {
		d.last.Store(report)
		if d.afterBuild != nil {
			d.afterBuild(report)
		}
	}
	if err != nil {
		d.logger.Error("rebuild failed", logfields.Error(err))
		return
	}
	if hub != nil && report.Pages+report.Posts+report.Listings > 0 {
		hub.Broadcast(report.ID)
	}
}

func (d *Daemon) status() Status {
	st := Status{
		Version:    statusVersion(),
		UptimeSecs: int64(time.Since(d.startTime).Seconds()),
		Watching:   true,
	}
	if r := d.last.Load(); r != nil {
		st.LastBuild = &buildState{
			ID:         r.ID,
			Outcome:    string(r.Outcome),
			FinishedAt: r.FinishedAt,
			DurationMS: r.DurationMS,
			Changed:    r.Changed,
			Error:      r.Error,
		}
	}
	return st
}
