// Package publisher writes movies to the catalog store and announces the
// change on Kafka so recommenders reload. The store is the source of truth:
// a failed publish is logged, and the next reload picks the change up.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/metrics"
)

// importChunkSize bounds the rows written per transaction during imports.
const importChunkSize = 500

// MovieStore is the write side of the catalog store.
type MovieStore interface {
	Upsert(ctx context.Context, movies ...catalog.Movie) (catalog.UpsertResult, error)
}

// Publisher coordinates catalog writes and event production.
type Publisher struct {
	store     MovieStore
	events    kafka.Publisher
	analytics *collector.Batcher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a Publisher. events, analyticsCollector and m may be nil.
func New(store MovieStore, events kafka.Publisher, analyticsCollector *collector.Batcher, m *metrics.Metrics) *Publisher {
	return &Publisher{
		store:     store,
		events:    events,
		analytics: analyticsCollector,
		metrics:   m,
		logger:    slog.Default().With("component", "publisher"),
	}
}

// Ingest upserts movies and publishes one catalog event for the batch.
func (p *Publisher) Ingest(ctx context.Context, source string, movies ...catalog.Movie) (*ingestion.IngestResponse, error) {
	res, err := p.store.Upsert(ctx, movies...)
	if err != nil {
		return nil, fmt.Errorf("upserting movies: %w", err)
	}
	p.track(ctx, source, movies, res)

	ids := make([]int64, len(movies))
	for i, m := range movies {
		ids[i] = m.ID
	}
	event := ingestion.CatalogEvent{
		EventID:  uuid.NewString(),
		Type:     ingestion.CatalogMoviesUpserted,
		MovieIDs: ids,
		Count:    len(movies),
		Source:   source,
		At:       time.Now().UTC(),
	}
	return &ingestion.IngestResponse{
		Inserted: len(res.Inserted),
		Updated:  len(res.Updated),
		EventID:  event.EventID,
		Status:   p.announce(ctx, event),
	}, nil
}

// Import writes movies in chunks and publishes a single catalog event once
// everything is stored. Records already present are updated in place.
func (p *Publisher) Import(ctx context.Context, source string, movies []catalog.Movie) (*ingestion.IngestResponse, error) {
	resp := &ingestion.IngestResponse{}
	for start := 0; start < len(movies); start += importChunkSize {
		end := min(start+importChunkSize, len(movies))
		chunk := movies[start:end]
		res, err := p.store.Upsert(ctx, chunk...)
		if err != nil {
			return nil, fmt.Errorf("importing movies %d-%d: %w", start, end, err)
		}
		p.track(ctx, source, chunk, res)
		resp.Inserted += len(res.Inserted)
		resp.Updated += len(res.Updated)
		p.logger.Info("import progress", "written", end, "total", len(movies))
	}

	event := ingestion.CatalogEvent{
		EventID: uuid.NewString(),
		Type:    ingestion.CatalogImported,
		Count:   len(movies),
		Source:  source,
		At:      time.Now().UTC(),
	}
	resp.EventID = event.EventID
	resp.Status = p.announce(ctx, event)
	return resp, nil
}

// announce publishes the event and reports the resulting status. Without
// an event publisher the change is only stored.
func (p *Publisher) announce(ctx context.Context, event ingestion.CatalogEvent) string {
	if p.events == nil {
		return "stored"
	}
	if err := p.events.Publish(ctx, kafka.Event{Key: string(event.Type), Value: event}); err != nil {
		p.logger.Error("failed to publish catalog event, recommenders reload on next trigger",
			"event_id", event.EventID,
			"error", err,
		)
		return "stored"
	}
	return "published"
}

// track counts written movies and reports them to analytics.
func (p *Publisher) track(ctx context.Context, source string, movies []catalog.Movie, res catalog.UpsertResult) {
	if p.metrics != nil {
		p.metrics.MoviesIngestedTotal.Add(float64(len(movies)))
	}
	if p.analytics == nil {
		return
	}
	inserted := make(map[int64]bool, len(res.Inserted))
	for _, id := range res.Inserted {
		inserted[id] = true
	}
	now := time.Now().UTC()
	for _, m := range movies {
		p.analytics.Track(ctx, string(analytics.EventMovieIngested), analytics.IngestEvent{
			Type:      analytics.EventMovieIngested,
			MovieID:   m.ID,
			Title:     m.Title,
			Inserted:  inserted[m.ID],
			Source:    source,
			Timestamp: now,
		})
	}
}
