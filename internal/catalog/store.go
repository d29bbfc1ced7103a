package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	apperrors "github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/postgres"
)

// Store persists the catalog in PostgreSQL. Catalog order is insertion
// order (the seq column); updating a movie keeps its position.
//
//	CREATE TABLE movies (
//	    seq          BIGSERIAL UNIQUE,
//	    id           BIGINT PRIMARY KEY,
//	    title        TEXT NOT NULL,
//	    ...
//	);
type Store struct {
	db      *postgres.Client
	options CleanOptions
	logger  *slog.Logger
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS movies (
		seq          BIGSERIAL UNIQUE,
		id           BIGINT PRIMARY KEY,
		title        TEXT NOT NULL,
		year         TEXT,
		overview     TEXT NOT NULL DEFAULT '',
		genres       TEXT[] NOT NULL DEFAULT '{}',
		director     TEXT,
		cast_members TEXT[] NOT NULL DEFAULT '{}',
		rating       DOUBLE PRECISION NOT NULL DEFAULT 0,
		vote_count   INTEGER NOT NULL DEFAULT 0,
		poster_url   TEXT,
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS movies_title_idx ON movies (title)`,
}

const upsertMovie = `
INSERT INTO movies (id, title, year, overview, genres, director, cast_members, rating, vote_count, poster_url)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	year = EXCLUDED.year,
	overview = EXCLUDED.overview,
	genres = EXCLUDED.genres,
	director = EXCLUDED.director,
	cast_members = EXCLUDED.cast_members,
	rating = EXCLUDED.rating,
	vote_count = EXCLUDED.vote_count,
	poster_url = EXCLUDED.poster_url,
	updated_at = NOW()
RETURNING (xmax = 0)`

const selectMovies = `
SELECT id, title, year, overview, genres, director, cast_members, rating, vote_count, poster_url
FROM movies`

// NewStore creates a Store. opts are applied when the store is used as a
// catalog Source.
func NewStore(db *postgres.Client, opts CleanOptions) *Store {
	return &Store{
		db:      db,
		options: opts,
		logger:  slog.Default().With("component", "catalog-store"),
	}
}

// EnsureSchema creates the movies table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.db.Migrate(ctx, "catalog", schema...)
}

func (s *Store) Name() string {
	return "postgres"
}

// Load returns every movie in catalog order, cleaned with the store options.
func (s *Store) Load(ctx context.Context) ([]Movie, error) {
	rows, err := s.db.DB.QueryContext(ctx, selectMovies+` ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("querying movies: %w", err)
	}
	defer rows.Close()

	movies := make([]Movie, 0, 1024)
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		movies = append(movies, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating movies: %w", err)
	}
	cleaned := Clean(movies, s.options)
	s.logger.Info("catalog loaded from postgres", "records", len(movies), "kept", len(cleaned))
	return cleaned, nil
}

// Get returns one movie by id.
func (s *Store) Get(ctx context.Context, id int64) (*Movie, error) {
	row := s.db.DB.QueryRowContext(ctx, selectMovies+` WHERE id = $1`, id)
	m, err := scanMovie(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrMovieNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpsertResult lists the ids written by Upsert.
type UpsertResult struct {
	Inserted []int64
	Updated  []int64
}

// Upsert validates and writes movies in a single transaction, reporting
// which ids were new and which were updated in place.
func (s *Store) Upsert(ctx context.Context, movies ...Movie) (UpsertResult, error) {
	var res UpsertResult
	for i := range movies {
		if err := ValidateMovie(&movies[i]); err != nil {
			return res, fmt.Errorf("movie id=%d: %w", movies[i].ID, err)
		}
	}
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertMovie)
		if err != nil {
			return fmt.Errorf("preparing upsert: %w", err)
		}
		defer stmt.Close()
		for _, m := range movies {
			var isInsert bool
			err := stmt.QueryRowContext(ctx,
				m.ID, m.Title, nullable(m.Year), m.Overview,
				pq.Array(nonNil(m.Genres)), nullable(m.Director), pq.Array(nonNil(m.Cast)),
				m.Rating, m.VoteCount, nullable(m.PosterURL),
			).Scan(&isInsert)
			if err != nil {
				return fmt.Errorf("upserting movie %d: %w", m.ID, err)
			}
			if isInsert {
				res.Inserted = append(res.Inserted, m.ID)
			} else {
				res.Updated = append(res.Updated, m.ID)
			}
		}
		return nil
	})
	if err != nil {
		return UpsertResult{}, err
	}
	s.logger.Info("movies upserted", "inserted", len(res.Inserted), "updated", len(res.Updated))
	return res, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMovie(row rowScanner) (Movie, error) {
	var (
		m                         Movie
		year, director, posterURL sql.NullString
		genres, cast              []string
	)
	err := row.Scan(&m.ID, &m.Title, &year, &m.Overview,
		pq.Array(&genres), &director, pq.Array(&cast),
		&m.Rating, &m.VoteCount, &posterURL)
	if err != nil {
		if err == sql.ErrNoRows {
			return m, err
		}
		return m, fmt.Errorf("scanning movie: %w", err)
	}
	m.Year = year.String
	m.Director = director.String
	m.PosterURL = posterURL.String
	m.Genres = genres
	m.Cast = cast
	return m, nil
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
