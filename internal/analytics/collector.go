package analytics

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/kafka"
)

// Collector publishes events asynchronously so request handlers never wait
// on Kafka. Events are dropped when the buffer is full.
type Collector struct {
	publisher kafka.Publisher
	eventCh   chan kafka.Event
	logger    *slog.Logger
	done      chan struct{}
}

func NewCollector(publisher kafka.Publisher, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		publisher: publisher,
		eventCh:   make(chan kafka.Event, bufferSize),
		logger:    slog.Default().With("component", "analytics-collector"),
		done:      make(chan struct{}),
	}
}

// Start launches the publish loop. Close must be called to stop it.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				c.publish(ctx, event)
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

// Track queues an event keyed by its type.
func (c *Collector) Track(eventType EventType, event any) {
	select {
	case c.eventCh <- kafka.Event{Key: string(eventType), Value: event}:
	default:
		c.logger.Warn("analytics event dropped (buffer full)", "type", eventType)
	}
}

// Close stops accepting events and waits for queued ones to be published.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

func (c *Collector) publish(ctx context.Context, event kafka.Event) {
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.logger.Error("failed to publish analytics event", "key", event.Key, "error", err)
	}
}

func (c *Collector) drainRemaining() {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			c.publish(context.Background(), event)
		default:
			return
		}
	}
}
