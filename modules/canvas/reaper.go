package canvas

import (
	"context"
	"sync"
	"time"

	"github.com/go-monolith/mono/pkg/types"
)

// Reaper periodically removes rooms that have been empty for longer than the
// retention window.
type Reaper struct {
	registry  *Registry
	interval  time.Duration
	retention time.Duration
	logger    types.Logger

	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

// NewReaper creates a Reaper that sweeps registry every interval.
func NewReaper(registry *Registry, interval, retention time.Duration, logger types.Logger) *Reaper {
	return &Reaper{
		registry:  registry,
		interval:  interval,
		retention: retention,
		logger:    logger,
	}
}

// Start launches the sweep loop.
func (r *Reaper) Start() {
	r.stopChan = make(chan struct{})
	r.doneChan = make(chan struct{})
	go r.run()
	r.logger.Info("Room reaper started",
		"interval", r.interval.String(),
		"retention", r.retention.String())
}

func (r *Reaper) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer close(r.doneChan)

	for {
		select {
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.Sweep(r.registry.now())
		}
	}
}

// Sweep runs one reap pass at now and returns the removed room ids.
func (r *Reaper) Sweep(now time.Time) []string {
	removed := r.registry.Reap(r.retention, now)
	if len(removed) > 0 {
		r.logger.Debug("Reaper sweep finished", "removed", len(removed))
	}
	return removed
}

// Stop ends the sweep loop and waits for it, bounded by ctx.
func (r *Reaper) Stop(ctx context.Context) error {
	if r.stopChan == nil {
		return nil
	}
	r.stopOnce.Do(func() {
		close(r.stopChan)
	})

	select {
	case <-r.doneChan:
		r.logger.Info("Room reaper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
