package index

// Posting records the weight of one term in one document.
type Posting struct {
	Doc    int
	Weight float64
}

// PostingList is ordered by ascending Doc.
type PostingList []Posting

// Vector is a sparse document vector ordered by ascending term id.
type Vector struct {
	Terms   []int
	Weights []float64
}

// Len returns the number of non-zero entries.
func (v Vector) Len() int {
	return len(v.Terms)
}

// Dot returns the inner product of two sparse vectors.
func (v Vector) Dot(o Vector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(v.Terms) && j < len(o.Terms) {
		switch {
		case v.Terms[i] == o.Terms[j]:
			sum += v.Weights[i] * o.Weights[j]
			i++
			j++
		case v.Terms[i] < o.Terms[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Stats summarises a built index.
type Stats struct {
	Documents  int `json:"documents"`
	Vocabulary int `json:"vocabulary"`
	Postings   int `json:"postings"`
}
