// Package aggregator persists periodic snapshots of the analytics
// aggregate in PostgreSQL so history survives restarts.
package aggregator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/postgres"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS recommend_analytics_snapshots (
		id          BIGSERIAL PRIMARY KEY,
		data        JSONB NOT NULL,
		captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS recommend_analytics_snapshots_captured_idx
		ON recommend_analytics_snapshots (captured_at DESC)`,
}

// Snapshot is one stored aggregate.
type Snapshot struct {
	CapturedAt time.Time                 `json:"captured_at"`
	Stats      analytics.AggregatedStats `json:"stats"`
}

// HistoryQuery selects snapshots newest first. A zero Since means no lower
// bound.
type HistoryQuery struct {
	Limit int
	Since time.Time
}

// Store reads and writes rows of recommend_analytics_snapshots.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "analytics-store"),
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.db.Migrate(ctx, "analytics_snapshots", schema...)
}

func (s *Store) Save(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap.Stats)
	if err != nil {
		return fmt.Errorf("encoding analytics snapshot: %w", err)
	}
	if _, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO recommend_analytics_snapshots (data, captured_at) VALUES ($1, $2)`,
		data, snap.CapturedAt,
	); err != nil {
		return fmt.Errorf("inserting analytics snapshot: %w", err)
	}
	return nil
}

// Latest returns nil, nil when nothing has been saved yet.
func (s *Store) Latest(ctx context.Context) (*Snapshot, error) {
	snaps, err := s.History(ctx, HistoryQuery{Limit: 1})
	if err != nil || len(snaps) == 0 {
		return nil, err
	}
	return &snaps[0], nil
}

// History returns the snapshots matching q. Rows whose JSON no longer
// decodes are skipped with a warning.
func (s *Store) History(ctx context.Context, q HistoryQuery) ([]Snapshot, error) {
	var since sql.NullTime
	if !q.Since.IsZero() {
		since = sql.NullTime{Time: q.Since, Valid: true}
	}
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT data, captured_at
		 FROM recommend_analytics_snapshots
		 WHERE $1::timestamptz IS NULL OR captured_at >= $1
		 ORDER BY captured_at DESC
		 LIMIT $2`,
		since, q.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying analytics history: %w", err)
	}
	defer rows.Close()

	out := make([]Snapshot, 0, q.Limit)
	for rows.Next() {
		var (
			raw  []byte
			snap Snapshot
		)
		if err := rows.Scan(&raw, &snap.CapturedAt); err != nil {
			return nil, fmt.Errorf("scanning analytics snapshot: %w", err)
		}
		if err := json.Unmarshal(raw, &snap.Stats); err != nil {
			s.logger.Warn("skipping undecodable snapshot", "captured_at", snap.CapturedAt, "error", err)
			continue
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Prune deletes snapshots captured before cutoff and reports how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.DB.ExecContext(ctx,
		`DELETE FROM recommend_analytics_snapshots WHERE captured_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning analytics snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Join(errors.New("pruning analytics snapshots: row count unavailable"), err)
	}
	return n, nil
}
