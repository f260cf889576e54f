package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"git.arenberg.net/steen/sitebuilder/internal/logfields"
	"git.arenberg.net/steen/sitebuilder/internal/version"
)

// Server serves the output directory plus the daemon endpoints:
// /healthz, /api/status, the livereload pair and optionally /metrics.
type Server struct {
	listen  string
	handler http.Handler
	logger  *slog.Logger
	srv     *http.Server
}

// serverOptions collects the pieces the mux is assembled from.
type serverOptions struct {
	outputDir      string
	livereload     bool
	hub            *ReloadHub
	metricsHandler http.Handler
	status         func() Status
}

func newServer(listen string, opts serverOptions, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	files := http.Handler(http.FileServer(http.Dir(opts.outputDir)))
	if opts.livereload && opts.hub != nil {
		files = injectReload(files)
		mux.Handle("/livereload", opts.hub)
		mux.HandleFunc("/livereload.js", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
			_, _ = w.Write([]byte(ReloadScript))
		})
	}
	mux.Handle("/", files)

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(opts.status()); err != nil {
			logger.Warn("encode status", logfields.Error(err))
		}
	})
	if opts.metricsHandler != nil {
		mux.Handle("/metrics", opts.metricsHandler)
	}

	return &Server{listen: listen, handler: mux, logger: logger}
}

// Start binds the listen address and serves in the background. Binding
// happens up front so address conflicts fail the startup instead of a
// goroutine log line.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.listen, err)
	}

	s.srv = &http.Server{
		Handler:     s.handler,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", logfields.Error(err))
		}
	}()

	s.logger.Info("serving site", slog.String("addr", s.listen))
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// Status is the /api/status payload.
type Status struct {
	Version    string      `json:"version"`
	UptimeSecs int64       `json:"uptime_seconds"`
	Watching   bool        `json:"watching"`
	LastBuild  *buildState `json:"last_build,omitempty"`
}

type buildState struct {
	ID         string    `json:"id"`
	Outcome    string    `json:"outcome"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMS int64     `json:"duration_ms"`
	Changed    int       `json:"changed"`
	Error      string    `json:"error,omitempty"`
}

func statusVersion() string { return version.Version }
