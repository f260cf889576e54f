package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"git.arenberg.net/steen/sitebuilder/internal/config"
	"git.arenberg.net/steen/sitebuilder/internal/daemon"
	"git.arenberg.net/steen/sitebuilder/internal/deploy"
	"git.arenberg.net/steen/sitebuilder/internal/history"
	"git.arenberg.net/steen/sitebuilder/internal/logfields"
	"git.arenberg.net/steen/sitebuilder/internal/metrics"
	"git.arenberg.net/steen/sitebuilder/internal/notify"
	"git.arenberg.net/steen/sitebuilder/internal/site"
	"git.arenberg.net/steen/sitebuilder/internal/version"

	"github.com/prometheus/client_golang/prometheus"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"sitebuilder.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		Force bool `short:"f" help:"Regenerate everything regardless of timestamps"`
	} `cmd:"" help:"Build the site once"`

	Watch struct{} `cmd:"" help:"Rebuild whenever content changes"`

	Serve struct {
		Listen string `short:"l" help:"Listen address, overrides the configured one"`
	} `cmd:"" help:"Serve the site and rebuild on changes"`

	Deploy struct {
		Message string `short:"m" help:"Commit message"`
	} `cmd:"" help:"Commit the output directory and push it to the configured remote"`

	Init struct {
		Force bool `help:"Overwrite an existing configuration file"`
	} `cmd:"" help:"Write a starter configuration and content skeleton"`

	History struct {
		Limit int `short:"n" help:"Number of builds to show" default:"10"`
	} `cmd:"" help:"Show recent build reports"`

	Version struct{} `cmd:"" help:"Print version information"`
}

func main() {
	ctx := kong.Parse(&CLI)

	level := slog.LevelInfo
	if CLI.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	var err error
	switch ctx.Command() {
	case "build":
		err = runBuild(CLI.Build.Force)
	case "watch":
		err = runDaemon(false, "")
	case "serve":
		err = runDaemon(true, CLI.Serve.Listen)
	case "deploy":
		err = runDeploy(CLI.Deploy.Message)
	case "init":
		err = runInit(CLI.Init.Force)
	case "history":
		err = runHistory(CLI.History.Limit)
	case "version":
		fmt.Printf("sitebuilder %s (%s, built %s)\n", version.Version, version.GitCommit, version.BuildTime)
	}
	if err != nil {
		slog.Error("command failed", logfields.Error(err))
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.LoadOrDefault(CLI.Config, slog.Default())
}

func runBuild(force bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	report, runErr := site.NewBuilder(cfg).WithForce(force).Run(ctx)
	if report != nil {
		recordHistory(ctx, cfg, report)
		publishEvent(cfg, report)
		fmt.Println(report.Summary())
	}
	return runErr
}

func runDaemon(serve bool, listen string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Daemon.Listen = listen
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	d := daemon.NewDaemon(cfg).WithLogger(slog.Default()).WithHTTP(serve)

	if serve && cfg.Daemon.Metrics {
		reg := prometheus.NewRegistry()
		d = d.WithRecorder(metrics.NewPrometheusRecorder(reg)).
			WithMetricsHandler(metrics.HTTPHandler(reg))
	}

	var store *history.Store
	if !cfg.History.Disabled() {
		store = openHistory(cfg)
		if store != nil {
			defer store.Close()
		}
	}
	var publisher *notify.Publisher
	if cfg.Notify.Enabled() {
		publisher, err = notify.Connect(cfg.Notify.URL, cfg.Notify.Subject)
		if err != nil {
			slog.Warn("notifications disabled", logfields.Error(err))
		} else {
			publisher = publisher.WithSite(cfg.Site.Title)
			defer publisher.Close()
		}
	}

	d = d.WithAfterBuild(func(report *site.Report) {
		if store != nil {
			if err := store.Record(context.Background(), report); err != nil {
				slog.Warn("cannot record build", logfields.Error(err))
			}
		}
		if publisher != nil {
			if err := publisher.Publish(report); err != nil {
				slog.Warn("cannot publish build event", logfields.Error(err))
			}
		}
	})

	return d.Run(ctx)
}

func runDeploy(message string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if message == "" {
		message = fmt.Sprintf("site build %s", time.Now().Format("2006-01-02 15:04:05"))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	hash, err := deploy.NewPublisher(cfg.Build.OutputDir, cfg.Deploy).Publish(ctx, message)
	if errors.Is(err, deploy.ErrNoChanges) {
		fmt.Println("nothing to deploy")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("deployed %s\n", hash[:8])
	return nil
}

func runInit(force bool) error {
	if err := config.WriteExample(CLI.Config, force); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", CLI.Config)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return writeSkeleton(cfg)
}

// writeSkeleton seeds the content directory with a first post so a
// fresh site builds to something visible.
func writeSkeleton(cfg *config.Config) error {
	if _, err := os.Stat(cfg.Build.ContentDir); err == nil {
		return nil
	}
	if err := os.MkdirAll(cfg.Build.ContentDir, 0o755); err != nil {
		return fmt.Errorf("create content dir: %w", err)
	}

	welcome := fmt.Sprintf("%s\n\n# Welcome\n\nThis post lives in %s. Edit it, add more files, run `sitebuilder build`.\n",
		time.Now().Format("2006-01-02"), cfg.Build.ContentDir)
	path := filepath.Join(cfg.Build.ContentDir, "welcome.md")
	if err := os.WriteFile(path, []byte(welcome), 0o644); err != nil {
		return fmt.Errorf("write starter post: %w", err)
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func runHistory(limit int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.History.Disabled() {
		return errors.New("build history is disabled in the configuration")
	}

	store, err := history.Open(cfg.History.Resolve(cfg.Build.CacheDir))
	if err != nil {
		return err
	}
	defer store.Close()

	reports, err := store.Recent(context.Background(), limit)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		fmt.Println("no builds recorded")
		return nil
	}

	for _, r := range reports {
		fmt.Printf("%s  %-7s  %3d changed  %5dms  %s\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.Outcome, r.Changed, r.DurationMS, r.ID)
		if r.Error != "" {
			fmt.Printf("    %s\n", r.Error)
		}
	}
	return nil
}

func openHistory(cfg *config.Config) *history.Store {
	path := cfg.History.Resolve(cfg.Build.CacheDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		slog.Warn("cannot create history dir", logfields.Error(err))
		return nil
	}
	store, err := history.Open(path)
	if err != nil {
		slog.Warn("build history disabled", logfields.Error(err))
		return nil
	}
	return store
}

func recordHistory(ctx context.Context, cfg *config.Config, report *site.Report) {
	if cfg.History.Disabled() {
		return
	}
	store := openHistory(cfg)
	if store == nil {
		return
	}
	defer store.Close()
	if err := store.Record(ctx, report); err != nil {
		slog.Warn("cannot record build", logfields.Error(err))
	}
}

func publishEvent(cfg *config.Config, report *site.Report) {
	if !cfg.Notify.Enabled() {
		return
	}
	publisher, err := notify.Connect(cfg.Notify.URL, cfg.Notify.Subject)
	if err != nil {
		slog.Warn("cannot publish build event", logfields.Error(err))
		return
	}
	defer publisher.Close()
	if err := publisher.WithSite(cfg.Site.Title).Publish(report); err != nil {
		slog.Warn("cannot publish build event", logfields.Error(err))
	}
}
