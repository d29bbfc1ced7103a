package recommender

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/catalog"
	apperrors "github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/resilience"
)

// EventTracker receives reload outcomes for analytics.
type EventTracker interface {
	Track(eventType analytics.EventType, event any)
}

// Invalidator drops cached results that belong to an older catalog.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Reloader rebuilds the engine from a catalog source and installs it in a
// Holder. Concurrent Reload calls share one rebuild. A failed reload leaves
// the current engine in place.
type Reloader struct {
	source  catalog.Source
	holder  *Holder
	cache   Invalidator
	metrics *metrics.Metrics
	timeout time.Duration
	breaker *resilience.CircuitBreaker
	events  EventTracker
	group   singleflight.Group
	logger  *slog.Logger
}

// ReloaderOption configures optional Reloader collaborators.
type ReloaderOption func(*Reloader)

// WithInvalidator clears cache after every successful swap.
func WithInvalidator(inv Invalidator) ReloaderOption {
	return func(r *Reloader) { r.cache = inv }
}

// WithMetrics records reload outcomes and catalog gauges.
func WithMetrics(m *metrics.Metrics) ReloaderOption {
	return func(r *Reloader) { r.metrics = m }
}

// WithTimeout bounds a single reload.
func WithTimeout(d time.Duration) ReloaderOption {
	return func(r *Reloader) { r.timeout = d }
}

// WithBreaker guards catalog loads with cb so a failing source is not hit
// on every catalog event.
func WithBreaker(cb *resilience.CircuitBreaker) ReloaderOption {
	return func(r *Reloader) { r.breaker = cb }
}

// WithEvents reports every reload that reaches the source.
func WithEvents(t EventTracker) ReloaderOption {
	return func(r *Reloader) { r.events = t }
}

func NewReloader(source catalog.Source, holder *Holder, opts ...ReloaderOption) *Reloader {
	r := &Reloader{
		source: source,
		holder: holder,
		logger: slog.Default().With("component", "reloader", "source", source.Name()),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reload loads the catalog, builds a new engine and swaps it in. When the
// catalog version is unchanged the current engine is kept.
//
// The rebuild runs detached from ctx, bounded by the reloader timeout, so a
// caller that gives up does not cancel it for the others sharing it. A call
// that joins a rebuild whose source read began before the call was made
// waits for it and then reloads again, so the returned engine always
// reflects catalog changes committed before Reload was called.
func (r *Reloader) Reload(ctx context.Context) (*Engine, error) {
	requested := time.Now()
	for {
		ch := r.group.DoChan("reload", func() (any, error) {
			return r.reload(context.WithoutCancel(ctx))
		})
		var res singleflight.Result
		select {
		case res = <-ch:
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for catalog reload: %w", ctx.Err())
		}
		if res.Err != nil {
			return nil, res.Err
		}
		out := res.Val.(reloaded)
		if !out.started.Before(requested) {
			return out.engine, nil
		}
		r.logger.Debug("joined reload read the catalog too early, reloading again")
	}
}

// reloaded is the outcome of one shared rebuild; started is taken before
// the source is read.
type reloaded struct {
	engine  *Engine
	started time.Time
}

func (r *Reloader) reload(ctx context.Context) (reloaded, error) {
	start := time.Now()
	var next *Engine
	err := resilience.WithTimeout(ctx, r.timeout, "catalog reload", func(ctx context.Context) error {
		movies, err := r.load(ctx)
		if err != nil {
			return fmt.Errorf("%w: loading from %s: %v", apperrors.ErrCatalogUnavailable, r.source.Name(), err)
		}
		e, err := New(movies)
		if err != nil {
			return err
		}
		e.loadedAt = start
		next = e
		return nil
	})
	if err != nil {
		r.observe("failure")
		r.track(nil, false, start)
		r.logger.Error("catalog reload failed", "error", err)
		return reloaded{}, err
	}

	if prev := r.holder.Load(); prev != nil && prev.Version() == next.Version() {
		r.observe("unchanged")
		r.track(prev, true, start)
		r.logger.Info("catalog unchanged", "version", next.Version())
		return reloaded{engine: prev, started: start}, nil
	}

	prev := r.holder.Swap(next)
	if r.metrics != nil {
		r.metrics.CatalogMovies.Set(float64(next.Len()))
		r.metrics.IndexVocabularySize.Set(float64(next.VocabularySize()))
		r.metrics.IndexBuildDuration.Observe(next.Stats().BuildDuration.Seconds())
	}
	r.observe("success")
	r.track(next, true, start)

	if r.cache != nil {
		if err := r.cache.Invalidate(ctx); err != nil {
			r.logger.Warn("cache invalidation after reload failed", "error", err)
		}
	}

	attrs := []any{"version", next.Version(), "movies", next.Len(), "duration", time.Since(start)}
	if prev != nil {
		attrs = append(attrs, "previous_version", prev.Version())
	}
	r.logger.Info("catalog reloaded", attrs...)
	return reloaded{engine: next, started: start}, nil
}

func (r *Reloader) load(ctx context.Context) ([]catalog.Movie, error) {
	if r.breaker == nil {
		return r.source.Load(ctx)
	}
	var movies []catalog.Movie
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		movies, err = r.source.Load(ctx)
		return err
	})
	return movies, err
}

func (r *Reloader) track(e *Engine, ok bool, start time.Time) {
	if r.events == nil {
		return
	}
	ev := analytics.ReloadEvent{
		Type:      analytics.EventCatalogReload,
		Success:   ok,
		LatencyMs: time.Since(start).Milliseconds(),
		Timestamp: time.Now().UTC(),
	}
	if e != nil {
		ev.Version = e.Version()
		ev.Movies = e.Len()
	}
	r.events.Track(analytics.EventCatalogReload, ev)
}

func (r *Reloader) observe(status string) {
	if r.metrics != nil {
		r.metrics.CatalogReloadsTotal.WithLabelValues(status).Inc()
	}
}
