// Package consumer reloads the recommendation engine when the ingestion
// service announces a catalog change on Kafka.
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/recommender"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/kafka"
)

type Reloader interface {
	Reload(ctx context.Context) (*recommender.Engine, error)
}

// CatalogConsumer wraps a Kafka consumer of the catalog-updates topic.
type CatalogConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *CatalogConsumer {
	return &CatalogConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "catalog-consumer"),
	}
}

// Start consumes until ctx is cancelled.
func (cc *CatalogConsumer) Start(ctx context.Context) error {
	cc.logger.Info("catalog consumer starting")
	return cc.consumer.Start(ctx)
}

// HandleMessage returns a handler that rebuilds the engine for each catalog
// event. Events stamped before the current engine's catalog was read are
// already reflected in it and are skipped. Undecodable messages are logged and
// acknowledged; a failed reload is returned so the message is not committed.
func HandleMessage(reloader Reloader, holder *recommender.Holder) kafka.MessageHandler {
	logger := slog.Default().With("component", "catalog-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.CatalogEvent](value)
		if err != nil {
			logger.Error("failed to decode catalog event",
				"error", err,
				"key", string(key),
			)
			return nil
		}

		if current := holder.Load(); current != nil && !event.At.IsZero() && event.At.Before(current.LoadedAt()) {
			logger.Debug("catalog event predates engine, skipping",
				"event_id", event.EventID,
				"loaded_at", current.LoadedAt(),
				"version", current.Version(),
			)
			return nil
		}

		logger.Debug("processing catalog event",
			"event_id", event.EventID,
			"type", event.Type,
			"count", event.Count,
		)
		engine, err := reloader.Reload(ctx)
		if err != nil {
			return fmt.Errorf("reloading for catalog event %s: %w", event.EventID, err)
		}
		logger.Info("engine reloaded from catalog event",
			"event_id", event.EventID,
			"source", event.Source,
			"version", engine.Version(),
			"movies", engine.Len(),
		)
		return nil
	}
}
