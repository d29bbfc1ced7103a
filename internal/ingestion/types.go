// Package ingestion defines the request, response and Kafka event types of
// the catalog ingestion pipeline: movies are validated, upserted into
// Postgres, and announced on the catalog-updates topic so recommenders
// rebuild their engines.
package ingestion

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/catalog"
)

// BatchRequest is the body of the bulk upsert endpoint.
type BatchRequest struct {
	Movies []catalog.Movie `json:"movies"`
}

// IngestResponse reports the outcome of an upsert.
type IngestResponse struct {
	Inserted int    `json:"inserted"`
	Updated  int    `json:"updated"`
	EventID  string `json:"event_id"`
	Status   string `json:"status"`
}

// CatalogEventType names what changed in the catalog.
type CatalogEventType string

const (
	CatalogMoviesUpserted CatalogEventType = "movies_upserted"
	CatalogImported       CatalogEventType = "catalog_imported"
)

// CatalogEvent is published after the catalog store changes.
type CatalogEvent struct {
	EventID  string           `json:"event_id"`
	Type     CatalogEventType `json:"type"`
	MovieIDs []int64          `json:"movie_ids,omitempty"`
	Count    int              `json:"count"`
	Source   string           `json:"source"`
	At       time.Time        `json:"at"`
}
