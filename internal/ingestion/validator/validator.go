// Package validator checks client input for the ingestion and recommender
// APIs and returns per-field error details.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/catalog"
)

const (
	maxTitleLength    = 1024
	maxYearLength     = 16
	maxOverviewLength = 16384
	maxBatchSize      = 1000
)

// limits checks the bounds ingestion enforces on top of the catalog schema.
// The engine itself accepts any rating or vote count.
var limits = validator.New()

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		keys = append(keys, field)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, field := range keys {
		parts = append(parts, fmt.Sprintf("%s:%s", field, e.Fields[field]))
	}
	return strings.Join(parts, "; ")
}

// ValidateMovie applies the catalog schema plus ingestion limits.
func ValidateMovie(m *catalog.Movie) error {
	errs := catalog.FieldErrors(m)
	checkVar(errs, "title", m.Title, fmt.Sprintf("max=%d", maxTitleLength),
		fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	checkVar(errs, "year", m.Year, fmt.Sprintf("max=%d", maxYearLength),
		fmt.Sprintf("year must be at most %d characters", maxYearLength))
	checkVar(errs, "rating", m.Rating, "gte=0,lte=10", "rating must be between 0 and 10")
	checkVar(errs, "vote_count", m.VoteCount, "gte=0", "vote_count must not be negative")
	if len(m.Overview) > maxOverviewLength {
		errs["overview"] = fmt.Sprintf("overview must be at most %d characters", maxOverviewLength)
	}
	if blankEntry(m.Genres) {
		errs["genres"] = "genres must not contain blank entries"
	}
	if blankEntry(m.Cast) {
		errs["cast"] = "cast must not contain blank entries"
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// ValidateBatch validates every movie, prefixing field names with the
// movie's position, and rejects repeated ids.
func ValidateBatch(movies []catalog.Movie) error {
	errs := make(map[string]string)
	switch {
	case len(movies) == 0:
		errs["movies"] = "at least one movie is required"
	case len(movies) > maxBatchSize:
		errs["movies"] = fmt.Sprintf("at most %d movies per request", maxBatchSize)
	}
	seen := make(map[int64]int, len(movies))
	for i := range movies {
		if err := ValidateMovie(&movies[i]); err != nil {
			for field, msg := range err.(*ValidationError).Fields {
				errs[fmt.Sprintf("movies[%d].%s", i, field)] = msg
			}
		}
		if first, dup := seen[movies[i].ID]; dup && movies[i].ID != 0 {
			errs[fmt.Sprintf("movies[%d].id", i)] = fmt.Sprintf("duplicates movies[%d].id", first)
		}
		seen[movies[i].ID] = i
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// ValidateSelection checks the liked titles of a recommendation request:
// between one and maxSelections non-blank titles with no repeats.
func ValidateSelection(titles []string, maxSelections int) error {
	errs := make(map[string]string)
	switch {
	case len(titles) == 0:
		errs["titles"] = "select at least one movie"
	case maxSelections > 0 && len(titles) > maxSelections:
		errs["titles"] = fmt.Sprintf("select at most %d movies", maxSelections)
	}
	seen := make(map[string]struct{}, len(titles))
	for i, t := range titles {
		if strings.TrimSpace(t) == "" {
			errs[fmt.Sprintf("titles[%d]", i)] = "title must not be blank"
			continue
		}
		if _, dup := seen[t]; dup {
			errs[fmt.Sprintf("titles[%d]", i)] = "title selected more than once"
		}
		seen[t] = struct{}{}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// checkVar records msg for field when value fails tag, unless the field
// already has an error.
func checkVar(errs map[string]string, field string, value any, tag, msg string) {
	if _, seen := errs[field]; seen {
		return
	}
	if err := limits.Var(value, tag); err != nil {
		errs[field] = msg
	}
}

func blankEntry(items []string) bool {
	for _, s := range items {
		if strings.TrimSpace(s) == "" {
			return true
		}
	}
	return false
}
