package aggregator

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/analytics"
)

const finalSnapshotTimeout = 5 * time.Second

// StatsSource yields the aggregate to snapshot.
type StatsSource interface {
	Stats() analytics.AggregatedStats
}

// SnapshotStore is the part of Store the Snapshotter writes to.
type SnapshotStore interface {
	Save(ctx context.Context, snap Snapshot) error
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// Snapshotter saves src every Interval and once more when stopped. With a
// positive Retention, each tick also prunes snapshots older than that.
type Snapshotter struct {
	store     SnapshotStore
	src       StatsSource
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

func NewSnapshotter(store SnapshotStore, src StatsSource, interval, retention time.Duration) *Snapshotter {
	return &Snapshotter{
		store:     store,
		src:       src,
		interval:  interval,
		retention: retention,
		now:       time.Now,
		logger:    slog.Default().With("component", "analytics-snapshotter"),
	}
}

// Run blocks until ctx is cancelled.
func (s *Snapshotter) Run(ctx context.Context) {
	s.logger.Info("analytics snapshots scheduled", "interval", s.interval, "retention", s.retention)
	tick := time.NewTicker(s.interval)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			s.tick(ctx)
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalSnapshotTimeout)
			defer cancel()
			if err := s.save(final); err != nil {
				s.logger.Error("final analytics snapshot failed", "error", err)
			}
			return
		}
	}
}

func (s *Snapshotter) tick(ctx context.Context) {
	if err := s.save(ctx); err != nil {
		s.logger.Error("analytics snapshot failed", "error", err)
	}
	if s.retention <= 0 {
		return
	}
	n, err := s.store.Prune(ctx, s.now().Add(-s.retention))
	if err != nil {
		s.logger.Error("analytics snapshot pruning failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("old analytics snapshots pruned", "deleted", n)
	}
}

func (s *Snapshotter) save(ctx context.Context) error {
	stats := s.src.Stats()
	if err := s.store.Save(ctx, Snapshot{CapturedAt: s.now().UTC(), Stats: stats}); err != nil {
		return err
	}
	s.logger.Debug("analytics snapshot saved",
		"total_requests", stats.TotalRequests,
		"movies_ingested", stats.MoviesIngested,
	)
	return nil
}
