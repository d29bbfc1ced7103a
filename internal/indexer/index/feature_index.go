// Package index builds the TF-IDF feature index over catalog text and
// answers cosine similarity queries against it. An index is immutable once
// built and safe for concurrent readers.
package index

import (
	"math"
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/indexer/tokenizer"
)

// FeatureIndex holds one L2-normalised TF-IDF vector per document, aligned
// with document position, plus inverted postings for fast scoring.
type FeatureIndex struct {
	terms    []string
	termIDs  map[string]int
	idf      []float64
	vectors  []Vector
	postings []PostingList
}

// Document returns the text indexed for a movie: its overview followed by
// its genre names.
func Document(m *catalog.Movie) string {
	return m.Overview + " " + strings.Join(m.Genres, " ")
}

// BuildCatalog indexes every movie of c in catalog order.
func BuildCatalog(c *catalog.Catalog, opts Options) *FeatureIndex {
	docs := make([]string, c.Len())
	for i := range docs {
		docs[i] = Document(c.At(i))
	}
	return Build(docs, opts)
}

// Build fits a vocabulary over docs and vectorises each of them. Documents
// with no vocabulary terms get a zero vector.
func Build(docs []string, opts Options) *FeatureIndex {
	counts := make([]map[string]int, len(docs))
	for i, text := range docs {
		tf := make(map[string]int)
		for _, term := range tokenizer.Analyze(text) {
			tf[term]++
		}
		counts[i] = tf
	}

	terms, idf := fitVocabulary(counts, opts)
	idx := &FeatureIndex{
		terms:    terms,
		termIDs:  make(map[string]int, len(terms)),
		idf:      idf,
		vectors:  make([]Vector, len(docs)),
		postings: make([]PostingList, len(terms)),
	}
	for id, term := range terms {
		idx.termIDs[term] = id
	}

	for doc, tf := range counts {
		vec := idx.vectorize(tf)
		idx.vectors[doc] = vec
		for k, term := range vec.Terms {
			idx.postings[term] = append(idx.postings[term], Posting{Doc: doc, Weight: vec.Weights[k]})
		}
	}
	return idx
}

func (idx *FeatureIndex) vectorize(tf map[string]int) Vector {
	// Walk term ids in order so the vector comes out sorted.
	ids := make([]int, 0, len(tf))
	for term := range tf {
		if id, ok := idx.termIDs[term]; ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	vec := Vector{Terms: ids, Weights: make([]float64, len(ids))}
	var norm float64
	for k, id := range ids {
		w := float64(tf[idx.terms[id]]) * idx.idf[id]
		vec.Weights[k] = w
		norm += w * w
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for k := range vec.Weights {
			vec.Weights[k] /= norm
		}
	}
	return vec
}

// Len returns the number of indexed documents.
func (idx *FeatureIndex) Len() int {
	return len(idx.vectors)
}

// VocabularySize returns the number of distinct index terms.
func (idx *FeatureIndex) VocabularySize() int {
	return len(idx.terms)
}

// Vector returns the vector of document i. It must be treated as read-only.
func (idx *FeatureIndex) Vector(i int) Vector {
	return idx.vectors[i]
}

// TermID returns the id of term, or false when it is not in the vocabulary.
func (idx *FeatureIndex) TermID(term string) (int, bool) {
	id, ok := idx.termIDs[term]
	return id, ok
}

// Term returns the term with the given id.
func (idx *FeatureIndex) Term(id int) string {
	return idx.terms[id]
}

// Cosine returns the cosine similarity of documents i and j.
func (idx *FeatureIndex) Cosine(i, j int) float64 {
	return clamp(idx.vectors[i].Dot(idx.vectors[j]))
}

// CosineAverage returns, for every document, the mean cosine similarity to
// the query documents. Accumulation order is fixed so repeated calls return
// identical values. An empty query yields all zeros.
func (idx *FeatureIndex) CosineAverage(query []int) []float64 {
	scores := make([]float64, len(idx.vectors))
	if len(query) == 0 {
		return scores
	}
	partial := make([]float64, len(idx.vectors))
	for _, q := range query {
		clear(partial)
		vec := idx.vectors[q]
		for k, term := range vec.Terms {
			wq := vec.Weights[k]
			for _, p := range idx.postings[term] {
				partial[p.Doc] += wq * p.Weight
			}
		}
		for d, s := range partial {
			scores[d] += clamp(s)
		}
	}
	n := float64(len(query))
	for d := range scores {
		scores[d] /= n
	}
	return scores
}

// Stats reports the index dimensions.
func (idx *FeatureIndex) Stats() Stats {
	postings := 0
	for _, pl := range idx.postings {
		postings += len(pl)
	}
	return Stats{
		Documents:  len(idx.vectors),
		Vocabulary: len(idx.terms),
		Postings:   postings,
	}
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
