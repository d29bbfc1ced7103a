// Package ranker combines similarity components into a single score, orders
// the catalog by it and explains each pick.
package ranker

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/recommender/scorer"
)

// Weights sets the contribution of each similarity component.
type Weights struct {
	Plot     float64
	Genre    float64
	Director float64
	Cast     float64
}

// DefaultWeights is the fixed weighting used by the engine.
var DefaultWeights = Weights{Plot: 0.40, Genre: 0.30, Director: 0.15, Cast: 0.15}

// Excluded is the score forced onto query movies so they never rank.
const Excluded = -1.0

// Breakdown is the unweighted component scores of one movie.
type Breakdown struct {
	Plot     float64 `json:"plot"`
	Genre    float64 `json:"genre"`
	Director float64 `json:"director"`
	Cast     float64 `json:"cast"`
}

// At extracts the breakdown of catalog position i.
func At(c scorer.Components, i int) Breakdown {
	return Breakdown{
		Plot:     c.Plot[i],
		Genre:    c.Genre[i],
		Director: c.Director[i],
		Cast:     c.Cast[i],
	}
}

// Combine returns the weighted sum of the components at every position.
func Combine(c scorer.Components, w Weights) []float64 {
	scores := make([]float64, len(c.Plot))
	for i := range scores {
		scores[i] = w.Plot*c.Plot[i] + w.Genre*c.Genre[i] + w.Director*c.Director[i] + w.Cast*c.Cast[i]
	}
	return scores
}

// Ranked is one catalog position and its combined score.
type Ranked struct {
	Index int
	Score float64
}

// Top excludes the query positions, orders the rest by descending score with
// ties kept in catalog order, takes the first n and drops any score that is
// not positive. scores is modified in place.
func Top(scores []float64, exclude []int, n int) []Ranked {
	if n <= 0 {
		return nil
	}
	for _, q := range exclude {
		scores[q] = Excluded
	}
	order := make([]Ranked, len(scores))
	for i, s := range scores {
		order[i] = Ranked{Index: i, Score: s}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return order[i].Score > order[j].Score
	})
	if len(order) > n {
		order = order[:n]
	}
	kept := order[:0]
	for _, r := range order {
		if r.Score > 0 {
			kept = append(kept, r)
		}
	}
	return kept
}
