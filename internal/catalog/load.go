package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/errors"
)

// Source produces the raw movie list for a catalog snapshot.
type Source interface {
	Load(ctx context.Context) ([]Movie, error)
	Name() string
}

// CleanOptions filters records before a snapshot is built.
type CleanOptions struct {
	// DropIncomplete removes movies with an empty overview or no genres.
	DropIncomplete bool
	// MinVoteCount removes movies with fewer votes. Zero disables it.
	MinVoteCount int
}

// Clean returns the movies that pass opts, preserving order.
func Clean(movies []Movie, opts CleanOptions) []Movie {
	if !opts.DropIncomplete && opts.MinVoteCount <= 0 {
		return movies
	}
	kept := make([]Movie, 0, len(movies))
	for _, m := range movies {
		if opts.DropIncomplete && (strings.TrimSpace(m.Overview) == "" || len(m.Genres) == 0) {
			continue
		}
		if m.VoteCount < opts.MinVoteCount {
			continue
		}
		kept = append(kept, m)
	}
	return kept
}

// Merge appends the movies of extra whose id does not already appear in base.
// The first occurrence of an id wins.
func Merge(base, extra []Movie) []Movie {
	seen := make(map[int64]struct{}, len(base)+len(extra))
	merged := make([]Movie, 0, len(base)+len(extra))
	for _, list := range [][]Movie{base, extra} {
		for _, m := range list {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			merged = append(merged, m)
		}
	}
	return merged
}

// Decode reads a JSON array of movie records. Input that is not an array of
// movie objects is a schema error.
func Decode(r io.Reader) ([]Movie, error) {
	var movies []Movie
	dec := json.NewDecoder(r)
	if err := dec.Decode(&movies); err != nil {
		return nil, fmt.Errorf("%w: decoding movie records: %v", apperrors.ErrSchema, err)
	}
	return movies, nil
}

// FileSource loads a JSON movie cache from disk.
type FileSource struct {
	Path    string
	Options CleanOptions
}

func (s *FileSource) Name() string {
	return "file:" + s.Path
}

func (s *FileSource) Load(ctx context.Context) ([]Movie, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog file: %w", err)
	}
	defer f.Close()
	movies, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.Path, err)
	}
	cleaned := Clean(movies, s.Options)
	slog.Default().With("component", "catalog").Info("catalog file loaded",
		"path", s.Path,
		"records", len(movies),
		"kept", len(cleaned),
	)
	return cleaned, nil
}
