package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/errors"
)

type fakeIngester struct {
	got []catalog.Movie
	err error
}

func (f *fakeIngester) Ingest(ctx context.Context, source string, movies ...catalog.Movie) (*ingestion.IngestResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.got = append(f.got, movies...)
	return &ingestion.IngestResponse{Inserted: len(movies), EventID: "evt", Status: "published"}, nil
}

type fakeReader map[int64]catalog.Movie

func (f fakeReader) Get(ctx context.Context, id int64) (*catalog.Movie, error) {
	m, ok := f[id]
	if !ok {
		return nil, apperrors.ErrMovieNotFound
	}
	return &m, nil
}

func newRouter(ing Ingester) http.Handler {
	r := chi.NewRouter()
	New(ing, fakeReader{7: {ID: 7, Title: "Alien"}}).Register(r)
	return r
}

func TestIngest(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		err    error
		status int
	}{
		{"single movie", "/api/v1/movies", `{"id":1,"title":"Heat","genres":["Crime"]}`, nil, http.StatusAccepted},
		{"invalid json", "/api/v1/movies", `{`, nil, http.StatusBadRequest},
		{"missing title", "/api/v1/movies", `{"id":1}`, nil, http.StatusBadRequest},
		{"batch", "/api/v1/movies/batch", `{"movies":[{"id":1,"title":"A"},{"id":2,"title":"B"}]}`, nil, http.StatusAccepted},
		{"batch duplicate ids", "/api/v1/movies/batch", `{"movies":[{"id":1,"title":"A"},{"id":1,"title":"B"}]}`, nil, http.StatusBadRequest},
		{"store unavailable", "/api/v1/movies", `{"id":1,"title":"Heat"}`, apperrors.ErrCatalogUnavailable, http.StatusServiceUnavailable},
		{"store failure", "/api/v1/movies", `{"id":1,"title":"Heat"}`, errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ing := &fakeIngester{err: tt.err}
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			newRouter(ing).ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestIngestValidationFields(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/movies", strings.NewReader(`{"title":"X","rating":42}`))
	newRouter(&fakeIngester{}).ServeHTTP(rec, req)
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{"id", "rating"} {
		if _, ok := body.Fields[f]; !ok {
			t.Errorf("expected field error %s, got %v", f, body.Fields)
		}
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		path   string
		status int
	}{
		{"/api/v1/movies/7", http.StatusOK},
		{"/api/v1/movies/8", http.StatusNotFound},
		{"/api/v1/movies/abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		newRouter(&fakeIngester{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.status {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.status, rec.Code)
		}
	}
}

func TestWriteGuardsSkipReads(t *testing.T) {
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}
	r := chi.NewRouter()
	ing := &fakeIngester{}
	New(ing, fakeReader{7: {ID: 7, Title: "Alien"}}).Register(r, deny)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/movies", strings.NewReader(`{"id":1,"title":"Heat"}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("POST status = %d, want 401", rec.Code)
	}
	if len(ing.got) != 0 {
		t.Errorf("guarded write reached the ingester: %v", ing.got)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/movies/7", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET status = %d, want 200", rec.Code)
	}
}
