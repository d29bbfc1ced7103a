// Package catalog models the movie catalog consumed by the recommendation
// engine. A Catalog is an immutable, validated snapshot: catalog position is
// the stable integer index used to align the feature index, the similarity
// vectors and the ranked output for the lifetime of one engine.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Movie is one catalog entry. Optional text fields use the empty string for
// "absent"; optional lists use nil or empty slices. The schema only demands
// identity and title; rating and vote count pass through unchecked.
type Movie struct {
	ID        int64    `json:"id" validate:"required"`
	Title     string   `json:"title" validate:"required"`
	Year      string   `json:"year,omitempty"`
	Overview  string   `json:"overview"`
	Genres    []string `json:"genres"`
	Director  string   `json:"director,omitempty"`
	Cast      []string `json:"cast"`
	Rating    float64  `json:"rating"`
	VoteCount int      `json:"vote_count"`
	PosterURL string   `json:"poster_url,omitempty"`
}

// TopCast returns at most n leading cast members.
func (m *Movie) TopCast(n int) []string {
	if len(m.Cast) <= n {
		return m.Cast
	}
	return m.Cast[:n]
}

// clone returns a deep copy so a snapshot never aliases caller slices.
func (m Movie) clone() Movie {
	m.Genres = append([]string(nil), m.Genres...)
	m.Cast = append([]string(nil), m.Cast...)
	return m
}

// Catalog is an ordered, read-only snapshot of movies.
type Catalog struct {
	movies  []Movie
	version string
}

// New validates movies and returns an immutable snapshot of them. It fails
// with an error wrapping ErrSchema when a record is missing its identity or
// title, or when two records share an id. Sparse text fields never fail.
func New(movies []Movie) (*Catalog, error) {
	if err := Validate(movies); err != nil {
		return nil, err
	}
	snapshot := make([]Movie, len(movies))
	for i := range movies {
		snapshot[i] = movies[i].clone()
	}
	version, err := fingerprint(snapshot)
	if err != nil {
		return nil, err
	}
	return &Catalog{movies: snapshot, version: version}, nil
}

// Len returns the number of movies.
func (c *Catalog) Len() int {
	return len(c.movies)
}

// At returns the movie at catalog position i. The returned pointer must be
// treated as read-only.
func (c *Catalog) At(i int) *Movie {
	return &c.movies[i]
}

// Movies returns the backing slice. Callers must not modify it.
func (c *Catalog) Movies() []Movie {
	return c.movies
}

// Version identifies the snapshot content; identical catalogs share a version.
// It is the hex SHA-256 digest of the catalog's JSON encoding.
func (c *Catalog) Version() string {
	return c.version
}

func fingerprint(movies []Movie) (string, error) {
	data, err := json.Marshal(movies)
	if err != nil {
		return "", fmt.Errorf("fingerprinting catalog: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
