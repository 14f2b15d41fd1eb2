package grant

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultSweepInterval is how often the sweeper persists derived expiries.
const DefaultSweepInterval = 15 * time.Minute

// Sweeper periodically flips stale active grants to expired in storage.
//
// This is a cosmetic denormalization for listings and reports. Correctness
// never depends on it: every authorization checkpoint derives expiry from
// the grant window itself.
type Sweeper struct {
	repo     Repository
	logger   *slog.Logger
	interval time.Duration

	done chan struct{}
	wg   sync.WaitGroup
}

// NewSweeper creates a sweeper with the given interval (DefaultSweepInterval
// when zero).
func NewSweeper(repo Repository, logger *slog.Logger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		repo:     repo,
		logger:   logger,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop. Stops when ctx is cancelled or Stop is
// called.
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.sweepLoop(ctx)
}

// Stop signals the loop and waits for it to finish.
func (s *Sweeper) Stop() {
	close(s.done)
	s.wg.Wait()
}

func (s *Sweeper) sweepLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.repo.MarkExpiredBefore(ctx, time.Now())
	if err != nil {
		s.logger.Warn("grant expiry sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("grant expiry sweep", "expired", n)
	}
}
