// Package recommender is the content-based recommendation engine. An Engine
// is built once per catalog snapshot and is read-only afterwards, so any
// number of goroutines may query it. A new catalog means a new Engine; see
// Holder and Reloader.
package recommender

import (
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/recommender/ranker"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/recommender/scorer"
)

// Recommendation is one ranked movie with its combined score, explanation
// and unweighted component scores.
type Recommendation struct {
	Movie       catalog.Movie    `json:"movie"`
	Score       float64          `json:"similarity_score"`
	Explanation string           `json:"explanation"`
	Components  ranker.Breakdown `json:"components"`
}

// Result is the outcome of one query: the recommendations plus the titles
// that matched no catalog movie.
type Result struct {
	Recommendations []Recommendation `json:"recommendations"`
	Unresolved      []string         `json:"unresolved"`
}

// Engine answers recommendation queries over one catalog snapshot.
type Engine struct {
	catalog   *catalog.Catalog
	index     *index.FeatureIndex
	byTitle   map[string]int
	byID      map[int64]int
	loadedAt  time.Time
	builtAt   time.Time
	buildTime time.Duration
	logger    *slog.Logger
}

// New validates movies and builds an engine over them. It fails with an
// error wrapping errors.ErrSchema when the records cannot form a catalog.
func New(movies []catalog.Movie) (*Engine, error) {
	c, err := catalog.New(movies)
	if err != nil {
		return nil, err
	}
	return NewFromCatalog(c), nil
}

// NewFromCatalog builds the feature index for c.
func NewFromCatalog(c *catalog.Catalog) *Engine {
	start := time.Now()
	idx := index.BuildCatalog(c, index.DefaultOptions)

	e := &Engine{
		catalog:  c,
		index:    idx,
		byTitle:  make(map[string]int, c.Len()),
		byID:     make(map[int64]int, c.Len()),
		loadedAt: start,
		logger:   slog.Default().With("component", "recommender"),
	}
	for i := 0; i < c.Len(); i++ {
		m := c.At(i)
		if _, dup := e.byTitle[m.Title]; !dup {
			e.byTitle[m.Title] = i
		}
		e.byID[m.ID] = i
	}
	e.buildTime = time.Since(start)
	e.builtAt = time.Now()

	e.logger.Info("engine built",
		"version", c.Version(),
		"movies", c.Len(),
		"vocabulary", idx.VocabularySize(),
		"duration", e.buildTime,
	)
	return e
}

// Resolve maps titles to catalog positions by exact match, first catalog
// occurrence winning. Repeated titles resolve once. Titles with no match are
// returned separately in input order.
func (e *Engine) Resolve(titles []string) (positions []int, unresolved []string) {
	seen := make(map[int]struct{}, len(titles))
	for _, t := range titles {
		i, ok := e.byTitle[t]
		if !ok {
			unresolved = append(unresolved, t)
			continue
		}
		if _, dup := seen[i]; dup {
			continue
		}
		seen[i] = struct{}{}
		positions = append(positions, i)
	}
	return positions, unresolved
}

// Recommend returns up to n movies similar to the liked titles, best first.
// Unknown titles are skipped; if none resolve, or n is not positive, the
// result is empty. Only movies with a positive score are returned and the
// liked movies themselves never are.
func (e *Engine) Recommend(titles []string, n int) []Recommendation {
	return e.Query(titles, n).Recommendations
}

// Query is Recommend that also reports unresolved titles.
func (e *Engine) Query(titles []string, n int) Result {
	query, unresolved := e.Resolve(titles)
	res := Result{Recommendations: []Recommendation{}, Unresolved: unresolved}
	if len(query) == 0 || n <= 0 {
		e.logger.Debug("nothing to recommend", "resolved", len(query), "unresolved", len(unresolved), "n", n)
		return res
	}

	components := scorer.Score(e.catalog, e.index, query)
	scores := ranker.Combine(components, ranker.DefaultWeights)
	for _, r := range ranker.Top(scores, query, n) {
		b := ranker.At(components, r.Index)
		res.Recommendations = append(res.Recommendations, Recommendation{
			Movie:       *e.catalog.At(r.Index),
			Score:       r.Score,
			Explanation: ranker.Explain(e.catalog, query, r.Index, b),
			Components:  b,
		})
	}
	e.logger.Debug("recommendations computed",
		"resolved", len(query),
		"unresolved", len(unresolved),
		"returned", len(res.Recommendations),
	)
	return res
}

// Movie returns the movie with the given id.
func (e *Engine) Movie(id int64) (catalog.Movie, bool) {
	i, ok := e.byID[id]
	if !ok {
		return catalog.Movie{}, false
	}
	return *e.catalog.At(i), true
}

// Search lists movies whose title contains q, ignoring case, in catalog
// order. An empty q matches everything. limit <= 0 means no limit.
func (e *Engine) Search(q string, limit int) []catalog.Movie {
	q = strings.ToLower(strings.TrimSpace(q))
	out := make([]catalog.Movie, 0)
	for _, m := range e.catalog.Movies() {
		if limit > 0 && len(out) >= limit {
			break
		}
		if q == "" || strings.Contains(strings.ToLower(m.Title), q) {
			out = append(out, m)
		}
	}
	return out
}

// Version identifies the catalog snapshot the engine was built from.
func (e *Engine) Version() string {
	return e.catalog.Version()
}

// Len returns the catalog size.
func (e *Engine) Len() int {
	return e.catalog.Len()
}

// LoadedAt is when the catalog snapshot behind the engine was read. Catalog
// changes committed before it are reflected in the engine. Engines built
// outside a Reloader report their build start.
func (e *Engine) LoadedAt() time.Time {
	return e.loadedAt
}

// VocabularySize returns the number of terms in the feature index.
func (e *Engine) VocabularySize() int {
	return e.index.VocabularySize()
}

// Stats describes the engine for status endpoints.
type Stats struct {
	Version       string        `json:"version"`
	Movies        int           `json:"movies"`
	Index         index.Stats   `json:"index"`
	LoadedAt      time.Time     `json:"loaded_at"`
	BuiltAt       time.Time     `json:"built_at"`
	BuildDuration time.Duration `json:"build_duration_ns"`
}

func (e *Engine) Stats() Stats {
	return Stats{
		Version:       e.Version(),
		Movies:        e.Len(),
		Index:         e.index.Stats(),
		LoadedAt:      e.loadedAt,
		BuiltAt:       e.builtAt,
		BuildDuration: e.buildTime,
	}
}
