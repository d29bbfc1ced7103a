// Package analytics tracks how the recommender is used. The recommender and
// ingestion services publish events to Kafka; the analytics service consumes
// them into an in-memory Aggregator and snapshots it to Postgres.
package analytics

import "time"

type EventType string

const (
	EventRecommend     EventType = "recommend"
	EventCatalogReload EventType = "catalog_reload"
	EventMovieIngested EventType = "movie_ingested"
)

// RecommendEvent describes one answered recommendation request.
type RecommendEvent struct {
	Type           EventType `json:"type"`
	Titles         []string  `json:"titles"`
	Limit          int       `json:"limit"`
	Unresolved     []string  `json:"unresolved"`
	Recommended    []string  `json:"recommended"`
	TopScore       float64   `json:"top_score"`
	LatencyMs      int64     `json:"latency_ms"`
	CacheHit       bool      `json:"cache_hit"`
	CatalogVersion string    `json:"catalog_version"`
	Timestamp      time.Time `json:"timestamp"`
	RequestID      string    `json:"request_id"`
}

// ReloadEvent describes one catalog reload attempt.
type ReloadEvent struct {
	Type      EventType `json:"type"`
	Version   string    `json:"version"`
	Movies    int       `json:"movies"`
	Success   bool      `json:"success"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// IngestEvent describes one movie written by the ingestion service.
type IngestEvent struct {
	Type      EventType `json:"type"`
	MovieID   int64     `json:"movie_id"`
	Title     string    `json:"title"`
	Inserted  bool      `json:"inserted"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// envelope reads only the discriminator of an encoded event.
type envelope struct {
	Type EventType `json:"type"`
}
