package index

import (
	"math"
	"sort"
)

// Options controls vocabulary selection.
type Options struct {
	// MaxFeatures caps the vocabulary, keeping the terms with the highest
	// corpus frequency. Zero means no cap.
	MaxFeatures int
	// MinDF drops terms that occur in fewer documents.
	MinDF int
}

// DefaultOptions is the configuration used for movie text.
var DefaultOptions = Options{MaxFeatures: 5000, MinDF: 2}

type termStat struct {
	term string
	df   int
	tf   int
}

// fitVocabulary selects the index terms from per-document term counts and
// returns them in ascending lexical order together with their smoothed idf.
//
// Terms below MinDF are dropped first. When more than MaxFeatures remain the
// ones with the largest total count survive; equal counts prefer the
// lexically smaller term.
func fitVocabulary(counts []map[string]int, opts Options) ([]string, []float64) {
	stats := make(map[string]*termStat)
	for _, doc := range counts {
		for term, n := range doc {
			s, ok := stats[term]
			if !ok {
				s = &termStat{term: term}
				stats[term] = s
			}
			s.df++
			s.tf += n
		}
	}

	kept := make([]*termStat, 0, len(stats))
	for _, s := range stats {
		if s.df >= opts.MinDF {
			kept = append(kept, s)
		}
	}

	if opts.MaxFeatures > 0 && len(kept) > opts.MaxFeatures {
		sort.Slice(kept, func(i, j int) bool {
			if kept[i].tf != kept[j].tf {
				return kept[i].tf > kept[j].tf
			}
			return kept[i].term < kept[j].term
		})
		kept = kept[:opts.MaxFeatures]
	}

	sort.Slice(kept, func(i, j int) bool {
		return kept[i].term < kept[j].term
	})

	n := float64(len(counts))
	terms := make([]string, len(kept))
	idf := make([]float64, len(kept))
	for i, s := range kept {
		terms[i] = s.term
		idf[i] = math.Log((1+n)/(1+float64(s.df))) + 1
	}
	return terms, idf
}
