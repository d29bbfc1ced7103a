package ranker

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/recommender/scorer"
)

// Clause thresholds, applied to unweighted component scores.
const (
	GenreClauseThreshold    = 0.5
	DirectorClauseThreshold = 0.9
	CastClauseThreshold     = 0.2
	PlotClauseThreshold     = 0.3

	// maxSharedGenres is how many shared genres the genre clause names.
	maxSharedGenres = 2
)

const (
	clauseSimilarActors = "Features similar actors"
	clauseSimilarThemes = "Similar themes and storytelling"
	clauseFallback      = "Strong overall match based on multiple factors"
)

type signal int

const (
	signalPlot signal = iota
	signalGenre
	signalDirector
	signalCast
)

// strongest returns the component with the highest score; earlier
// components win ties in the order plot, genre, director, cast.
func (b Breakdown) strongest() signal {
	best, score := signalPlot, b.Plot
	for _, s := range []struct {
		sig signal
		v   float64
	}{{signalGenre, b.Genre}, {signalDirector, b.Director}, {signalCast, b.Cast}} {
		if s.v > score {
			best, score = s.sig, s.v
		}
	}
	return best
}

// matches records which query movie backs each component.
type matches struct {
	director     *catalog.Movie
	cast         *catalog.Movie
	genre        *catalog.Movie
	sharedGenres []string
}

// findMatches scans the query in order. The last query movie sharing the
// director or any top-billed actor is kept; for genres the first movie with
// the largest overlap is kept.
func findMatches(c *catalog.Catalog, query []int, rec *catalog.Movie) matches {
	var m matches
	recCast := rec.TopCast(scorer.TopCastSize)
	for _, q := range query {
		sel := c.At(q)
		if rec.Director != "" && rec.Director == sel.Director {
			m.director = sel
		}
		if len(scorer.Overlap(sel.TopCast(scorer.TopCastSize), recCast)) > 0 {
			m.cast = sel
		}
		if shared := scorer.Overlap(sel.Genres, rec.Genres); len(shared) > len(m.sharedGenres) {
			m.sharedGenres = shared
			m.genre = sel
		}
	}
	return m
}

// attribute picks the query movie named in the explanation: the one behind
// the strongest component when it has a match, otherwise the first available
// of director, cast and genre matches, otherwise the first query movie.
func (m matches) attribute(strongest signal, first *catalog.Movie) *catalog.Movie {
	switch {
	case strongest == signalDirector && m.director != nil:
		return m.director
	case strongest == signalCast && m.cast != nil:
		return m.cast
	case strongest == signalGenre && m.genre != nil:
		return m.genre
	case m.director != nil:
		return m.director
	case m.cast != nil:
		return m.cast
	case m.genre != nil:
		return m.genre
	default:
		return first
	}
}

// Explain renders why the movie at position rec was recommended for the
// query positions, given its unweighted component scores. query must not be
// empty.
func Explain(c *catalog.Catalog, query []int, rec int, b Breakdown) string {
	movie := c.At(rec)
	m := findMatches(c, query, movie)
	attributed := m.attribute(b.strongest(), c.At(query[0]))

	clauses := make([]string, 0, 4)
	if b.Genre > GenreClauseThreshold && len(m.sharedGenres) > 0 {
		shared := m.sharedGenres
		if len(shared) > maxSharedGenres {
			shared = shared[:maxSharedGenres]
		}
		clauses = append(clauses, "Shares genres: "+strings.Join(shared, ", "))
	}
	if b.Director > DirectorClauseThreshold {
		clauses = append(clauses, "Same director: "+movie.Director)
	}
	if b.Cast > CastClauseThreshold {
		clauses = append(clauses, clauseSimilarActors)
	}
	if b.Plot > PlotClauseThreshold {
		clauses = append(clauses, clauseSimilarThemes)
	}
	if len(clauses) == 0 {
		clauses = append(clauses, clauseFallback)
	}
	return "Because you liked " + attributed.Title + " → " + strings.Join(clauses, "; ")
}
