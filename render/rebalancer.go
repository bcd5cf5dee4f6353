package render

import (
	"context"
	"sync/atomic"
	"time"

	lunaris "github.com/shuntia/lunaris-api"
)

// Rebalancer drives TieredCache.Update. Run is single-flight: a call that
// finds a pass already in progress returns immediately instead of queuing a
// second pass, so the host can trigger it from every frame without piling up
// work.
type Rebalancer struct {
	cache   *TieredCache
	running atomic.Bool
}

// NewRebalancer wraps a cache.
func NewRebalancer(c *TieredCache) *Rebalancer {
	return &Rebalancer{cache: c}
}

// Run executes one rebalance pass unless one is already in flight.
// Reports whether this call performed the pass.
func (r *Rebalancer) Run() (bool, error) {
	if !r.running.CompareAndSwap(false, true) {
		return false, nil
	}
	defer r.running.Store(false)
	return true, r.cache.Update()
}

// Start rebalances on a fixed interval until the context is canceled.
// Pass errors are logged, not fatal; the loop keeps ticking.
func (r *Rebalancer) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := r.Run(); err != nil {
					lunaris.Logger().Error("cache rebalance failed", "error", err)
				}
			}
		}
	}()
}
