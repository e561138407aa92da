package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper runs the registry's eviction pass on a fixed period.
type Sweeper struct {
	logger   *slog.Logger
	registry *Registry
	period   time.Duration
	cron     *cron.Cron
}

func NewSweeper(log *slog.Logger, registry *Registry, period time.Duration) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{
		logger:   log.With(slog.String("component", "sweeper")),
		registry: registry,
		period:   period,
		cron:     cron.New(),
	}
}

func (s *Sweeper) Start() error {
	if s.period <= 0 {
		return fmt.Errorf("sweep period must be positive, got %s", s.period)
	}
	_, err := s.cron.AddFunc("@every "+s.period.String(), func() {
		evicted := s.registry.Sweep(context.Background())
		if evicted > 0 {
			s.logger.Info("sweep finished", slog.Int("evicted", evicted))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	s.cron.Start()
	s.logger.Info("sweep scheduled", slog.Duration("period", s.period))
	return nil
}

// Stop halts scheduling and waits for an in-flight sweep to finish or the
// context to expire.
func (s *Sweeper) Stop(ctx context.Context) error {
	done := s.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
