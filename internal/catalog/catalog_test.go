package catalog

import (
	"errors"
	"strings"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/errors"
)

func sampleMovies() []Movie {
	return []Movie{
		{ID: 1, Title: "Heat", Overview: "A crew of thieves and a detective.", Genres: []string{"Crime", "Thriller"}, Director: "Michael Mann", Cast: []string{"Al Pacino", "Robert De Niro"}, Rating: 8.2, VoteCount: 5000},
		{ID: 2, Title: "Collateral", Overview: "A cab driver and a hitman.", Genres: []string{"Crime"}, Director: "Michael Mann", Cast: []string{"Tom Cruise"}, Rating: 7.5, VoteCount: 3000},
		{ID: 3, Title: "Sparse"},
	}
}

func TestNewValidCatalog(t *testing.T) {
	c, err := New(sampleMovies())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Len() != 3 {
		t.Fatalf("expected 3 movies, got %d", c.Len())
	}
	if c.At(2).Title != "Sparse" {
		t.Errorf("expected catalog order preserved, got %q at 2", c.At(2).Title)
	}
	if c.Version() == "" {
		t.Error("expected non-empty version")
	}
}

func TestNewRejectsBadRecords(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]Movie) []Movie
	}{
		{"missing id", func(m []Movie) []Movie { m[0].ID = 0; return m }},
		{"missing title", func(m []Movie) []Movie { m[1].Title = ""; return m }},
		{"blank title", func(m []Movie) []Movie { m[1].Title = "   "; return m }},
		{"duplicate id", func(m []Movie) []Movie { m[2].ID = 1; return m }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.mutate(sampleMovies()))
			if !errors.Is(err, apperrors.ErrSchema) {
				t.Fatalf("expected ErrSchema, got %v", err)
			}
		})
	}
}

func TestNewAcceptsPassThroughFields(t *testing.T) {
	movies := sampleMovies()
	movies[0].Rating = 11
	movies[0].VoteCount = -1
	movies[1].Title = strings.Repeat("Long ", 300)
	movies[2].Year = "circa the late nineteen-nineties"
	c, err := New(movies)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Len() != len(movies) {
		t.Errorf("expected %d movies, got %d", len(movies), c.Len())
	}
}

func TestNewCopiesInput(t *testing.T) {
	movies := sampleMovies()
	c, err := New(movies)
	if err != nil {
		t.Fatal(err)
	}
	movies[0].Genres[0] = "Comedy"
	movies[0].Title = "Changed"
	if c.At(0).Genres[0] != "Crime" || c.At(0).Title != "Heat" {
		t.Errorf("catalog aliased caller data: %+v", c.At(0))
	}
}

func TestVersionDeterministic(t *testing.T) {
	a, _ := New(sampleMovies())
	b, _ := New(sampleMovies())
	if a.Version() != b.Version() {
		t.Errorf("expected equal versions, got %s and %s", a.Version(), b.Version())
	}
	changed := sampleMovies()
	changed[1].Overview = "Something else entirely."
	c, _ := New(changed)
	if c.Version() == a.Version() {
		t.Error("expected different version for different content")
	}
	if len(a.Version()) != 64 {
		t.Errorf("expected a full hex SHA-256 digest, got %q", a.Version())
	}
}

func TestEmptyCatalog(t *testing.T) {
	c, err := New(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("expected empty catalog, got %d", c.Len())
	}
}

func TestTopCast(t *testing.T) {
	m := Movie{Cast: []string{"a", "b", "c", "d", "e", "f", "g"}}
	if got := len(m.TopCast(5)); got != 5 {
		t.Errorf("expected 5, got %d", got)
	}
	short := Movie{Cast: []string{"a"}}
	if got := len(short.TopCast(5)); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
	if got := (&Movie{}).TopCast(5); len(got) != 0 {
		t.Errorf("expected empty, got %v", got)
	}
}

func TestFieldErrors(t *testing.T) {
	errs := FieldErrors(&Movie{Rating: 12})
	if _, ok := errs["rating"]; ok {
		t.Errorf("rating is not part of the catalog schema, got %v", errs)
	}
	for _, field := range []string{"id", "title"} {
		if _, ok := errs[field]; !ok {
			t.Errorf("expected error for %s, got %v", field, errs)
		}
	}
	if errs := FieldErrors(&sampleMovies()[0]); len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestClean(t *testing.T) {
	movies := sampleMovies()
	tests := []struct {
		name string
		opts CleanOptions
		want []int64
	}{
		{"no options", CleanOptions{}, []int64{1, 2, 3}},
		{"drop incomplete", CleanOptions{DropIncomplete: true}, []int64{1, 2}},
		{"min votes", CleanOptions{MinVoteCount: 4000}, []int64{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Clean(movies, tt.opts)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d movies, got %d", len(tt.want), len(got))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("position %d: expected id %d, got %d", i, id, got[i].ID)
				}
			}
		})
	}
}

func TestMergeFirstIDWins(t *testing.T) {
	base := []Movie{{ID: 1, Title: "A"}, {ID: 2, Title: "B"}}
	extra := []Movie{{ID: 2, Title: "B2"}, {ID: 3, Title: "C"}}
	got := Merge(base, extra)
	if len(got) != 3 {
		t.Fatalf("expected 3, got %d", len(got))
	}
	if got[1].Title != "B" || got[2].Title != "C" {
		t.Errorf("unexpected merge result: %+v", got)
	}
}

func TestDecode(t *testing.T) {
	movies, err := Decode(strings.NewReader(`[{"id":7,"title":"Alien","genres":["Horror"],"director":null,"cast":["Sigourney Weaver"],"vote_count":10}]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(movies) != 1 || movies[0].Director != "" || movies[0].Cast[0] != "Sigourney Weaver" {
		t.Errorf("unexpected decode: %+v", movies)
	}

	if _, err := Decode(strings.NewReader(`{"id":1}`)); !errors.Is(err, apperrors.ErrSchema) {
		t.Errorf("expected ErrSchema for non-array input, got %v", err)
	}
}
