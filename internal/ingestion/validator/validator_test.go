package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/catalog"
)

func TestValidateMovie(t *testing.T) {
	tests := []struct {
		name   string
		movie  catalog.Movie
		fields []string
	}{
		{"valid", catalog.Movie{ID: 1, Title: "Heat", Genres: []string{"Crime"}}, nil},
		{"missing id and title", catalog.Movie{}, []string{"id", "title"}},
		{"blank genre", catalog.Movie{ID: 1, Title: "Heat", Genres: []string{"Crime", " "}}, []string{"genres"}},
		{"blank cast", catalog.Movie{ID: 1, Title: "Heat", Cast: []string{""}}, []string{"cast"}},
		{"long overview", catalog.Movie{ID: 1, Title: "Heat", Overview: strings.Repeat("x", maxOverviewLength+1)}, []string{"overview"}},
		{"bad rating", catalog.Movie{ID: 1, Title: "Heat", Rating: -1}, []string{"rating"}},
		{"rating above ten", catalog.Movie{ID: 1, Title: "Heat", Rating: 10.5}, []string{"rating"}},
		{"negative votes", catalog.Movie{ID: 1, Title: "Heat", VoteCount: -3}, []string{"vote_count"}},
		{"long title", catalog.Movie{ID: 1, Title: strings.Repeat("t", maxTitleLength+1)}, []string{"title"}},
		{"long year", catalog.Movie{ID: 1, Title: "Heat", Year: strings.Repeat("9", maxYearLength+1)}, []string{"year"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMovie(&tt.movie)
			if len(tt.fields) == 0 {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			for _, f := range tt.fields {
				if _, ok := ve.Fields[f]; !ok {
					t.Errorf("expected error on %s, got %v", f, ve.Fields)
				}
			}
		})
	}
}

func TestValidateBatch(t *testing.T) {
	err := ValidateBatch([]catalog.Movie{{ID: 1, Title: "A"}, {ID: 1, Title: "B"}, {ID: 3}})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, f := range []string{"movies[1].id", "movies[2].title"} {
		if _, ok := ve.Fields[f]; !ok {
			t.Errorf("expected error on %s, got %v", f, ve.Fields)
		}
	}
	if err := ValidateBatch(nil); err == nil {
		t.Error("expected empty batch to fail")
	}
}

func TestValidateSelection(t *testing.T) {
	tests := []struct {
		name   string
		titles []string
		ok     bool
	}{
		{"one title", []string{"Heat"}, true},
		{"at limit", []string{"A", "B", "C"}, true},
		{"empty", nil, false},
		{"over limit", []string{"A", "B", "C", "D"}, false},
		{"duplicate", []string{"A", "A"}, false},
		{"blank", []string{"A", "  "}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSelection(tt.titles, 3)
			if (err == nil) != tt.ok {
				t.Errorf("ValidateSelection(%v) = %v, want ok=%v", tt.titles, err, tt.ok)
			}
		})
	}
}

func TestValidationErrorStable(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"b": "two", "a": "one"}}
	if got := err.Error(); got != "a:one; b:two" {
		t.Errorf("unexpected message %q", got)
	}
}
