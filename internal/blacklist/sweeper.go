package blacklist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"authhub.org/internal/obs"
)

const defaultSweepBatch = 1000

// Sweeper removes expired blacklist entries in bounded batches so it never
// competes for long with hot-path Exists/Add traffic.
type Sweeper struct {
	registry Registry
	batch    int64
	now      func() time.Time
}

// NewSweeper constructs a sweeper; batch <= 0 selects the default batch size.
func NewSweeper(registry Registry, batch int64) (*Sweeper, error) {
	if registry == nil {
		return nil, errors.New("blacklist: registry is required")
	}
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	return &Sweeper{registry: registry, batch: batch, now: time.Now}, nil
}

// Sweep removes every entry expired as of now, batch by batch, and returns
// the total removed. A short batch signals the backlog is drained.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	start := s.now()
	cutoff := start.Unix()

	var total int64
	for {
		jtis, err := s.registry.FindExpiredJtis(ctx, cutoff, s.batch)
		if err != nil {
			return total, fmt.Errorf("blacklist: sweep lookup: %w", err)
		}
		if len(jtis) == 0 {
			break
		}
		removed, err := s.registry.RemoveAll(ctx, jtis)
		if err != nil {
			return total, fmt.Errorf("blacklist: sweep removal: %w", err)
		}
		total += removed
		if int64(len(jtis)) < s.batch {
			break
		}
	}

	obs.ObserveSweep(int(total), s.now().Sub(start))
	return total, nil
}

// Run sweeps on the given interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("blacklist: sweep interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			removed, err := s.Sweep(ctx)
			if err != nil {
				obs.Log("error", "blacklist sweep failed", map[string]any{
					"error":   err.Error(),
					"removed": removed,
				})
				continue
			}
			if removed > 0 {
				obs.Log("info", "blacklist sweep complete", map[string]any{
					"removed": removed,
				})
			}
		}
	}
}
