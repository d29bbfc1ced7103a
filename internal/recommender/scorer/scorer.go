// Package scorer computes the per-component similarity of every catalog
// movie to a set of query movies. Each function returns one value per
// catalog position, in [0, 1]. Missing genres, directors or cast contribute
// zero rather than failing.
package scorer

import (
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/indexer/index"
)

// TopCastSize is how many leading cast members take part in cast overlap.
const TopCastSize = 5

// Components holds the four similarity vectors for one query.
type Components struct {
	Plot     []float64
	Genre    []float64
	Director []float64
	Cast     []float64
}

// Score computes all four components over the catalog for the query
// positions.
func Score(c *catalog.Catalog, idx *index.FeatureIndex, query []int) Components {
	return Components{
		Plot:     Plot(idx, query),
		Genre:    Genre(c, query),
		Director: Director(c, query),
		Cast:     Cast(c, query),
	}
}

// Plot is the cosine similarity of each movie's text vector to the query
// vectors, averaged over the query.
func Plot(idx *index.FeatureIndex, query []int) []float64 {
	return idx.CosineAverage(query)
}

// Genre is the Jaccard similarity between the union of the query genres and
// each movie's genre set.
func Genre(c *catalog.Catalog, query []int) []float64 {
	scores := make([]float64, c.Len())
	wanted := make(map[string]struct{})
	for _, q := range query {
		for _, g := range c.At(q).Genres {
			wanted[g] = struct{}{}
		}
	}
	if len(wanted) == 0 {
		return scores
	}
	for i := range scores {
		scores[i] = jaccard(wanted, c.At(i).Genres)
	}
	return scores
}

// Director is 1 for movies whose director exactly matches the director of
// any query movie. An absent director never matches.
func Director(c *catalog.Catalog, query []int) []float64 {
	scores := make([]float64, c.Len())
	directors := make(map[string]struct{}, len(query))
	for _, q := range query {
		if d := c.At(q).Director; d != "" {
			directors[d] = struct{}{}
		}
	}
	if len(directors) == 0 {
		return scores
	}
	for i := range scores {
		d := c.At(i).Director
		if d == "" {
			continue
		}
		if _, ok := directors[d]; ok {
			scores[i] = 1
		}
	}
	return scores
}

// Cast counts how many of each movie's top-billed actors appear among the
// top-billed actors of the query movies, divided by TopCastSize.
func Cast(c *catalog.Catalog, query []int) []float64 {
	scores := make([]float64, c.Len())
	actors := make(map[string]struct{})
	for _, q := range query {
		for _, a := range c.At(q).TopCast(TopCastSize) {
			actors[a] = struct{}{}
		}
	}
	if len(actors) == 0 {
		return scores
	}
	for i := range scores {
		scores[i] = float64(overlap(actors, c.At(i).TopCast(TopCastSize))) / TopCastSize
	}
	return scores
}

// jaccard returns |a ∩ b| / |a ∪ b|, or 0 when either side is empty.
func jaccard(a map[string]struct{}, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := toSet(b)
	inter := 0
	for item := range set {
		if _, ok := a[item]; ok {
			inter++
		}
	}
	union := len(a) + len(set) - inter
	return float64(inter) / float64(union)
}

// overlap counts the distinct items of b that are in a.
func overlap(a map[string]struct{}, b []string) int {
	n := 0
	for item := range toSet(b) {
		if _, ok := a[item]; ok {
			n++
		}
	}
	return n
}

// Overlap returns the items of b, in order and without repeats, that also
// occur in a.
func Overlap(a, b []string) []string {
	set := toSet(a)
	var shared []string
	seen := make(map[string]struct{}, len(b))
	for _, item := range b {
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		if _, ok := set[item]; ok {
			shared = append(shared, item)
		}
	}
	return shared
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}
