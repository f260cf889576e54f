// Package notify publishes build completion events to NATS so other
// systems (deploy hooks, dashboards, chat bridges) can react to
// finished passes without polling the history store.
package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.arenberg.net/steen/sitebuilder/internal/logfields"
	"git.arenberg.net/steen/sitebuilder/internal/site"
	"git.arenberg.net/steen/sitebuilder/internal/version"
)

const (
	connectTimeout = 5 * time.Second
	flushTimeout   = 2 * time.Second
)

// Event is the payload published after every pass, successful or not.
type Event struct {
	BuildID    string       `json:"build_id"`
	Site       string       `json:"site,omitempty"`
	Outcome    site.Outcome `json:"outcome"`
	Error      string       `json:"error,omitempty"`
	Sources    int          `json:"sources"`
	Pages      int          `json:"pages"`
	Posts      int          `json:"posts"`
	Listings   int          `json:"listings"`
	Changed    int          `json:"changed"`
	DurationMS int64        `json:"duration_ms"`
	FinishedAt time.Time    `json:"finished_at"`
	Version    string       `json:"version,omitempty"`
}

// Publisher sends build events to one NATS subject.
type Publisher struct {
	conn    *nats.Conn
	subject string
	site    string
	logger  *slog.Logger
}

// Connect dials NATS and returns a Publisher bound to subject.
func Connect(url, subject string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("sitebuilder"),
		nats.Timeout(connectTimeout),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS %s: %w", url, err)
	}
	return &Publisher{
		conn:    conn,
		subject: subject,
		logger:  slog.Default(),
	}, nil
}

// WithLogger sets a custom logger.
func (p *Publisher) WithLogger(logger *slog.Logger) *Publisher {
	p.logger = logger
	return p
}

// WithSite attaches a site title to every event.
func (p *Publisher) WithSite(title string) *Publisher {
	p.site = title
	return p
}

// buildEvent maps a report onto the wire payload.
func buildEvent(report *site.Report, siteTitle string) Event {
	return Event{
		BuildID:    report.ID,
		Site:       siteTitle,
		Outcome:    report.Outcome,
		Error:      report.Error,
		Sources:    report.Sources,
		Pages:      report.Pages,
		Posts:      report.Posts,
		Listings:   report.Listings,
		Changed:    report.Changed,
		DurationMS: report.DurationMS,
		FinishedAt: report.FinishedAt,
		Version:    version.Version,
	}
}

// Publish sends the event for one finished pass and flushes it out.
func (p *Publisher) Publish(report *site.Report) error {
	data, err := json.Marshal(buildEvent(report, p.site))
	if err != nil {
		return fmt.Errorf("marshal build event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish build event: %w", err)
	}
	if err := p.conn.FlushTimeout(flushTimeout); err != nil {
		return fmt.Errorf("flush build event: %w", err)
	}

	p.logger.Debug("published build event",
		logfields.BuildID(report.ID),
		slog.String("subject", p.subject))
	return nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn("drain NATS connection", logfields.Error(err))
	}
}
