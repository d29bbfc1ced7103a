package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/kafka"
)

type memPublisher struct {
	mu     sync.Mutex
	events []kafka.Event
}

func (p *memPublisher) Publish(ctx context.Context, event kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *memPublisher) PublishBatch(ctx context.Context, events []kafka.Event) error {
	for _, e := range events {
		p.Publish(ctx, e)
	}
	return nil
}

func encode(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestAggregatorHandleMessage(t *testing.T) {
	agg := NewAggregator()
	ctx := context.Background()
	messages := []any{
		RecommendEvent{Type: EventRecommend, Titles: []string{"Heat"}, Recommended: []string{"Collateral", "Casino"}, TopScore: 0.8, LatencyMs: 4},
		RecommendEvent{Type: EventRecommend, Titles: []string{"Heat", "Nope"}, Unresolved: []string{"Nope"}, Recommended: []string{"Collateral"}, TopScore: 0.6, LatencyMs: 2, CacheHit: true},
		RecommendEvent{Type: EventRecommend, Titles: []string{"Nope"}, Unresolved: []string{"Nope"}, LatencyMs: 1},
		ReloadEvent{Type: EventCatalogReload, Version: "abc", Movies: 10, Success: true},
		ReloadEvent{Type: EventCatalogReload, Success: false},
		IngestEvent{Type: EventMovieIngested, MovieID: 1, Inserted: true},
		IngestEvent{Type: EventMovieIngested, MovieID: 1},
		map[string]string{"type": "unknown"},
	}
	for _, m := range messages {
		if err := agg.HandleMessage(ctx, nil, encode(t, m)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := agg.HandleMessage(ctx, nil, []byte("not json")); err != nil {
		t.Fatalf("bad payload must be skipped, got %v", err)
	}

	s := agg.Stats()
	checks := []struct {
		name string
		got  int64
		want int64
	}{
		{"total", s.TotalRequests, 3},
		{"hits", s.CacheHits, 1},
		{"misses", s.CacheMisses, 2},
		{"empty", s.EmptyResults, 1},
		{"unresolved", s.UnresolvedTitles, 2},
		{"reloads", s.CatalogReloads, 1},
		{"failed reloads", s.FailedCatalogReloads, 1},
		{"ingested", s.MoviesIngested, 1},
		{"updates", s.MoviesIngestedUpdates, 1},
		{"p50", s.P50LatencyMs, 2},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: expected %d, got %d", c.name, c.want, c.got)
		}
	}
	if s.LatestCatalogVersion != "abc" {
		t.Errorf("expected version abc, got %q", s.LatestCatalogVersion)
	}
	if s.AvgTopScore < 0.69 || s.AvgTopScore > 0.71 {
		t.Errorf("expected average top score 0.7, got %f", s.AvgTopScore)
	}
	if s.TopRecommendedTitles[0] != (TitleCount{Title: "Collateral", Count: 2}) {
		t.Errorf("unexpected top recommended %+v", s.TopRecommendedTitles)
	}
	if s.TopLikedTitles[0] != (TitleCount{Title: "Heat", Count: 2}) {
		t.Errorf("unexpected top liked %+v", s.TopLikedTitles)
	}
}

func TestTopNTieOrder(t *testing.T) {
	got := topN(map[string]int64{"b": 1, "a": 1, "c": 3}, 2)
	want := []TitleCount{{"c", 3}, {"a", 1}}
	if got[0] != want[0] || got[1] != want[1] {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestCollectorPublishes(t *testing.T) {
	pub := &memPublisher{}
	c := NewCollector(pub, 10)
	c.Start(context.Background())
	c.Track(EventRecommend, RecommendEvent{Type: EventRecommend, Titles: []string{"Heat"}})
	c.Track(EventCatalogReload, ReloadEvent{Type: EventCatalogReload})
	c.Close()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.events) != 2 {
		t.Fatalf("expected 2 published events, got %d", len(pub.events))
	}
	if pub.events[0].Key != string(EventRecommend) {
		t.Errorf("expected key %q, got %q", EventRecommend, pub.events[0].Key)
	}
}

func TestCollectorDropsWhenFull(t *testing.T) {
	c := NewCollector(&memPublisher{}, 1)
	c.Track(EventRecommend, RecommendEvent{})
	c.Track(EventRecommend, RecommendEvent{})
	if len(c.eventCh) != 1 {
		t.Errorf("expected buffer of 1, got %d", len(c.eventCh))
	}
}

func TestHandlerStats(t *testing.T) {
	agg := NewAggregator()
	agg.RecordRecommend(RecommendEvent{Titles: []string{"Heat"}, Recommended: []string{"Casino"}, LatencyMs: 3, Timestamp: time.Now()})
	rec := httptest.NewRecorder()
	NewHandler(agg).Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats AggregatedStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalRequests != 1 {
		t.Errorf("expected 1 request, got %d", stats.TotalRequests)
	}
}

func TestHandlerTopParam(t *testing.T) {
	agg := NewAggregator()
	for _, title := range []string{"Heat", "Alien", "Up"} {
		agg.RecordRecommend(RecommendEvent{Titles: []string{title}, Timestamp: time.Now()})
	}
	h := NewHandler(agg)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top=2", nil))
	var stats AggregatedStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if len(stats.TopLikedTitles) != 2 || stats.TopLikedTitles[0].Title != "Alien" {
		t.Errorf("top liked = %+v, want 2 entries starting with Alien", stats.TopLikedTitles)
	}

	rec = httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top=0", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("top=0 status = %d, want 400", rec.Code)
	}
}

func TestLatencyWindowIsBounded(t *testing.T) {
	a := NewAggregator()
	for i := 0; i < maxLatencySamples; i++ {
		a.RecordRecommend(RecommendEvent{Type: EventRecommend, LatencyMs: 1000})
	}
	for i := 0; i < maxLatencySamples; i++ {
		a.RecordRecommend(RecommendEvent{Type: EventRecommend, LatencyMs: 5})
	}

	if len(a.latencies) != maxLatencySamples {
		t.Errorf("expected %d samples kept, got %d", maxLatencySamples, len(a.latencies))
	}
	stats := a.Stats()
	if stats.TotalRequests != 2*maxLatencySamples {
		t.Errorf("expected every request counted, got %d", stats.TotalRequests)
	}
	if stats.P99LatencyMs != 5 || stats.AvgLatencyMs != 5 {
		t.Errorf("expected only recent samples in the window, got p99=%d avg=%f", stats.P99LatencyMs, stats.AvgLatencyMs)
	}
}
