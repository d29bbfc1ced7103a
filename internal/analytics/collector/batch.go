// Package collector buffers analytics events and publishes them to Kafka in
// batches. Bulk jobs such as catalog imports use it instead of the
// per-event analytics.Collector.
package collector

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/kafka"
)

// shutdownFlushTimeout bounds the final flush after Start's context ends.
const shutdownFlushTimeout = 5 * time.Second

// Options sizes a Batcher. Zero fields take defaults: Size 100,
// Interval 5s, MaxPending three batches.
type Options struct {
	Size       int
	Interval   time.Duration
	MaxPending int
}

func (o Options) withDefaults() Options {
	if o.Size <= 0 {
		o.Size = 100
	}
	if o.Interval <= 0 {
		o.Interval = 5 * time.Second
	}
	if o.MaxPending < o.Size {
		o.MaxPending = 3 * o.Size
	}
	return o
}

// Batcher publishes a batch once Size events are pending, and on every
// Interval tick once started. Events that cannot be published stay pending;
// past MaxPending the oldest are dropped.
type Batcher struct {
	pub    kafka.Publisher
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	pending []kafka.Event

	// flushing serializes publishes so batches keep their order.
	flushing sync.Mutex
	dropped  atomic.Int64
	done     chan struct{}
}

func NewBatcher(pub kafka.Publisher, opts Options) *Batcher {
	opts = opts.withDefaults()
	return &Batcher{
		pub:     pub,
		opts:    opts,
		logger:  slog.Default().With("component", "analytics-batcher"),
		pending: make([]kafka.Event, 0, opts.Size),
		done:    make(chan struct{}),
	}
}

// Start runs the interval flush loop until ctx ends, then flushes once more
// with a fresh deadline.
func (b *Batcher) Start(ctx context.Context) {
	b.logger.Info("analytics batcher started", "size", b.opts.Size, "interval", b.opts.Interval)
	go func() {
		defer close(b.done)
		tick := time.NewTicker(b.opts.Interval)
		defer tick.Stop()
		for {
			select {
			case <-tick.C:
				_ = b.Flush(ctx)
			case <-ctx.Done():
				final, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownFlushTimeout)
				_ = b.Flush(final)
				cancel()
				return
			}
		}
	}()
}

// Close blocks until the loop started by Start has made its final flush.
func (b *Batcher) Close() {
	<-b.done
}

// Track queues one event, flushing inline when a full batch is pending.
func (b *Batcher) Track(ctx context.Context, key string, value any) {
	b.mu.Lock()
	b.pending = append(b.pending, kafka.Event{Key: key, Value: value})
	full := len(b.pending) >= b.opts.Size
	b.mu.Unlock()
	if full {
		_ = b.Flush(ctx)
	}
}

// Pending reports how many events wait to be published.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Dropped reports how many events were discarded over MaxPending.
func (b *Batcher) Dropped() int64 {
	return b.dropped.Load()
}

// Flush publishes everything pending as one batch.
func (b *Batcher) Flush(ctx context.Context) error {
	b.flushing.Lock()
	defer b.flushing.Unlock()

	b.mu.Lock()
	batch := b.pending
	b.pending = make([]kafka.Event, 0, b.opts.Size)
	b.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	err := b.pub.PublishBatch(ctx, batch)
	if err == nil {
		b.logger.Debug("analytics batch published", "events", len(batch))
		return nil
	}

	b.mu.Lock()
	b.pending = append(batch, b.pending...)
	over := len(b.pending) - b.opts.MaxPending
	if over > 0 {
		b.pending = append(b.pending[:0:0], b.pending[over:]...)
	}
	b.mu.Unlock()

	if over > 0 {
		b.dropped.Add(int64(over))
	}
	b.logger.Error("analytics batch publish failed",
		"events", len(batch), "dropped", max(over, 0), "error", err)
	return err
}
