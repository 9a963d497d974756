// Package scheduler triggers the repository sweep once a day at a fixed
// local hour.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Nightly runs fn once per day at the configured hour.
type Nightly struct {
	hour   int
	fn     func(context.Context)
	logger *slog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewNightly creates a scheduler firing at hour (0-23, local time).
func NewNightly(hour int, fn func(context.Context)) *Nightly {
	return &Nightly{
		hour:   hour,
		fn:     fn,
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the scheduler.
func (n *Nightly) WithLogger(logger *slog.Logger) *Nightly {
	n.logger = logger
	return n
}

// Start begins the background trigger task.
func (n *Nightly) Start() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.running {
		return // Already running
	}

	n.ctx, n.cancel = context.WithCancel(context.Background())
	n.running = true

	n.wg.Add(1)
	go n.run()

	n.logger.Info("nightly sync scheduler started", "hour", n.hour)
}

// Stop gracefully stops the scheduler. A sweep already in flight runs to
// completion.
func (n *Nightly) Stop() {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return
	}
	n.cancel()
	n.running = false
	n.mu.Unlock()

	n.wg.Wait()
	n.logger.Info("nightly sync scheduler stopped")
}

// run is the main scheduler loop.
func (n *Nightly) run() {
	defer n.wg.Done()

	for {
		wait := time.Until(nextRun(time.Now(), n.hour))

		select {
		case <-time.After(wait):
			n.logger.Info("starting nightly repository sync")
			n.fn(n.ctx)
		case <-n.ctx.Done():
			return
		}
	}
}

// nextRun returns the next occurrence of hour strictly after now.
func nextRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
