// AngelaMos | 2026
// reaper.go

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/carterperez-dev/templates/hotel-backend/internal/user"
)

type ReaperStats struct {
	LastRunAt   *time.Time `json:"lastRunAt,omitempty"`
	LastCleaned int64      `json:"lastCleaned"`
	TotalClean  int64      `json:"totalCleaned"`
	Runs        int64      `json:"runs"`
	Scope       string     `json:"scope"`
}

// Reaper soft-deletes local records that never got linked to an external
// identity once they are older than a grace period.
type Reaper struct {
	store       user.Store
	lease       Lease
	scope       user.OrphanScope
	interval    time.Duration
	gracePeriod time.Duration
	logger      *slog.Logger

	mu    sync.Mutex
	stats ReaperStats
}

type ReaperOptions struct {
	Scope       user.OrphanScope
	Interval    time.Duration
	GracePeriod time.Duration
	// Lease is optional; without one every replica sweeps.
	Lease Lease
}

func NewReaper(store user.Store, opts ReaperOptions, logger *slog.Logger) *Reaper {
	if opts.Scope == "" {
		opts.Scope = user.ScopeAnyUnlinked
	}
	return &Reaper{
		store:       store,
		lease:       opts.Lease,
		scope:       opts.Scope,
		interval:    opts.Interval,
		gracePeriod: opts.GracePeriod,
		logger:      logger,
		stats:       ReaperStats{Scope: string(opts.Scope)},
	}
}

func (r *Reaper) Sweep(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, &ValidationError{
			Fields: map[string]string{"olderThan": "olderThan must be positive"},
		}
	}

	cleaned, err := r.store.MarkOrphanedOlderThan(ctx, olderThan, r.scope)
	if err != nil {
		return 0, fmt.Errorf("sweep orphans: %w", err)
	}

	now := time.Now()
	r.mu.Lock()
	r.stats.LastRunAt = &now
	r.stats.LastCleaned = cleaned
	r.stats.TotalClean += cleaned
	r.stats.Runs++
	r.mu.Unlock()

	if cleaned > 0 {
		r.logger.Info("orphaned users cleaned",
			"count", cleaned,
			"older_than", olderThan,
			"scope", r.scope,
		)
	}

	return cleaned, nil
}

// Run sweeps on every tick until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	if r.interval <= 0 {
		r.logger.Warn("reaper disabled: non-positive interval")
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("orphan reaper started",
		"interval", r.interval,
		"grace_period", r.gracePeriod,
		"scope", r.scope,
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("orphan reaper stopped")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reaper) tick(ctx context.Context) {
	if r.lease != nil {
		held, err := r.lease.Acquire(ctx)
		if err != nil {
			r.logger.Warn("reaper lease unavailable", "error", err)
			return
		}
		if !held {
			return
		}
		defer func() {
			if err := r.lease.Release(context.WithoutCancel(ctx)); err != nil {
				r.logger.Warn("reaper lease release failed", "error", err)
			}
		}()
	}

	if _, err := r.Sweep(ctx, r.gracePeriod); err != nil {
		r.logger.Error("orphan sweep failed", "error", err)
	}
}

func (r *Reaper) Stats() ReaperStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := r.stats
	if stats.LastRunAt != nil {
		t := *stats.LastRunAt
		stats.LastRunAt = &t
	}
	return stats
}
