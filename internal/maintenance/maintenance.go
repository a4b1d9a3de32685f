// Package maintenance runs the gateway's periodic housekeeping: sweeping
// expired cache entries and pruning old dispatch history.
package maintenance

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/snipq/snipq/internal/cache"
	"github.com/snipq/snipq/internal/history"
	"github.com/snipq/snipq/internal/log"
)

const defaultInterval = 1 * time.Hour

// Runner owns the housekeeping tick loop.
type Runner struct {
	cache     *cache.Cache // optional
	history   *history.Log // optional
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// Option tunes a Runner.
type Option func(*Runner)

// WithInterval overrides the tick interval.
func WithInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.interval = d
		}
	}
}

// New creates a Runner. Either store may be nil; the corresponding task is
// skipped. retention <= 0 disables history pruning.
func New(c *cache.Cache, hist *history.Log, retention time.Duration, opts ...Option) *Runner {
	r := &Runner{
		cache:     c,
		history:   hist,
		retention: retention,
		interval:  defaultInterval,
		logger:    log.WithComponent("maintenance"),
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start begins the tick loop. It does not block.
func (r *Runner) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.tickLoop(ctx)
}

// Stop gracefully stops the loop.
func (r *Runner) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

func (r *Runner) tickLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.tick(ctx)
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// tick performs a single housekeeping pass.
func (r *Runner) tick(ctx context.Context) {
	if r.cache != nil {
		if removed := r.cache.Sweep(); removed > 0 {
			r.logger.Debug("cache swept", "removed", removed)
		}
	}

	if r.history != nil && r.retention > 0 {
		removed, err := r.history.Prune(ctx, r.retention)
		if err != nil {
			r.logger.Warn("history prune failed", "error", err)
			return
		}
		if removed > 0 {
			r.logger.Debug("history pruned", "removed", removed)
		}
	}
}
