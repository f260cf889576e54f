package daemon

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.arenberg.net/steen/sitebuilder/internal/logfields"
)

// scheduler wraps gocron for the periodic full-rebuild job.
type scheduler struct {
	inner  gocron.Scheduler
	logger *slog.Logger
}

func newScheduler(logger *slog.Logger) (*scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &scheduler{inner: s, logger: logger}, nil
}

// every runs task on a fixed interval once Start is called.
func (s *scheduler) every(interval time.Duration, task func()) error {
	_, err := s.inner.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithName("scheduled-rebuild"),
	)
	if err != nil {
		return fmt.Errorf("create rebuild job: %w", err)
	}
	return nil
}

func (s *scheduler) start() {
	s.inner.Start()
}

func (s *scheduler) stop() {
	if err := s.inner.Shutdown(); err != nil {
		s.logger.Warn("scheduler shutdown", logfields.Error(err))
	}
}
