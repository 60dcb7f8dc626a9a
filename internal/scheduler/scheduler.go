package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Scheduler drives the sweep on a fixed interval. The ticker is owned here,
// not by any framework, so tests exercise Sweep directly with an injected
// clock instead of waiting on wall time.
type Scheduler struct {
	Sweeper  *Sweeper
	Interval time.Duration
}

// Start blocks until ctx is cancelled, sweeping once per interval.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.Interval).Msg("expiry scheduler started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("expiry scheduler stopped")
			return
		case <-ticker.C:
			s.Sweeper.Sweep(ctx)
		}
	}
}
