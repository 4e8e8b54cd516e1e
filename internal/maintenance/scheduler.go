// Package maintenance runs periodic thumbnail clean-up. The store never
// deletes thumbnails on its own; this scheduler is the opt-in way to do it.
package maintenance

import (
	"context"
	"time"

	"github.com/gridworm/gridworm/internal/logging"
)

type ThumbnailStore interface {
	ClearOldThumbnails(ctx context.Context, days int) (int, error)
	SweepOrphanThumbnails(ctx context.Context) (int, error)
}

// Result reports one clean-up pass.
type Result struct {
	Expired  int
	Orphaned int
}

type Scheduler struct {
	store         ThumbnailStore
	interval      time.Duration
	retentionDays int
	log           logging.Logger
}

// NewScheduler returns a scheduler running every interval. A non-positive
// interval disables it: Run returns at once.
func NewScheduler(store ThumbnailStore, interval time.Duration, retentionDays int, log logging.Logger) *Scheduler {
	if log == nil {
		log = logging.Nop()
	}
	return &Scheduler{store: store, interval: interval, retentionDays: retentionDays, log: log}
}

func (s *Scheduler) Enabled() bool { return s.interval > 0 }

// Run executes a pass on every tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.log.Warn(ctx, "thumbnail maintenance failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce removes thumbnails older than the retention period, then those
// whose media metadata is gone. An error in the first step skips the second.
func (s *Scheduler) RunOnce(ctx context.Context) (Result, error) {
	var res Result

	n, err := s.store.ClearOldThumbnails(ctx, s.retentionDays)
	if err != nil {
		return res, err
	}
	res.Expired = n

	n, err = s.store.SweepOrphanThumbnails(ctx)
	if err != nil {
		return res, err
	}
	res.Orphaned = n

	s.log.Info(ctx, "thumbnail maintenance done", "expired", res.Expired, "orphaned", res.Orphaned)
	return res, nil
}
