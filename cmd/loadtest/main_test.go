package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func fakeRecommender(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/movies":
			_ = json.NewEncoder(w).Encode(map[string]any{"movies": []map[string]any{
				{"title": "Heat"}, {"title": "Heat"}, {"title": "Collateral"},
			}})
		case "/api/v1/recommendations":
			hits.Add(1)
			var body struct {
				Titles []string `json:"titles"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			if len(body.Titles) > 1 {
				_ = json.NewEncoder(w).Encode(map[string]any{"recommendations": []any{}})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"recommendations": []any{map[string]any{"title": "Thief"}}})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCatalogTitlesAndRecommend(t *testing.T) {
	var hits atomic.Int64
	srv := fakeRecommender(t, &hits)

	titles, err := catalogTitles(context.Background(), srv.Client(), srv.URL, 10)
	if err != nil {
		t.Fatalf("catalogTitles() error = %v", err)
	}
	if len(titles) != 2 {
		t.Errorf("titles = %v, want duplicates dropped", titles)
	}

	if o, status := recommend(context.Background(), srv.Client(), srv.URL, []string{"Heat"}, 5); o != outcomeHit || status != http.StatusOK {
		t.Errorf("single title: outcome %v status %d", o, status)
	}
	if o, _ := recommend(context.Background(), srv.Client(), srv.URL, titles, 5); o != outcomeEmpty {
		t.Errorf("pair: outcome %v, want empty", o)
	}
	if o, status := recommend(context.Background(), srv.Client(), srv.URL+"/missing", titles, 5); o != outcomeHTTPError || status != http.StatusNotFound {
		t.Errorf("bad path: outcome %v status %d", o, status)
	}
}

func TestRunStopsAtDuration(t *testing.T) {
	var hits atomic.Int64
	srv := fakeRecommender(t, &hits)

	rec := newRecorder()
	opts := options{
		baseURL:     srv.URL,
		concurrency: 2,
		duration:    50 * time.Millisecond,
		limit:       5,
		rps:         100,
		selections:  selections([]string{"Heat", "Collateral"}),
	}
	run(context.Background(), srv.Client(), opts, rec)

	s := rec.summarize(opts.duration)
	if s.Requests == 0 || s.Requests > hits.Load() {
		t.Errorf("recorded %d requests, server saw %d", s.Requests, hits.Load())
	}
	if s.HTTPErrors != 0 {
		t.Errorf("http errors = %d", s.HTTPErrors)
	}
}
