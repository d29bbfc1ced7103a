package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/analytics"
)

type memStore struct {
	mu      sync.Mutex
	saved   []Snapshot
	cutoffs []time.Time
	query   HistoryQuery
	err     error
}

func (m *memStore) Save(_ context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, snap)
	return nil
}

func (m *memStore) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cutoffs = append(m.cutoffs, cutoff)
	return 0, nil
}

func (m *memStore) History(_ context.Context, q HistoryQuery) ([]Snapshot, error) {
	m.query = q
	return m.saved, m.err
}

type fixedStats analytics.AggregatedStats

func (f fixedStats) Stats() analytics.AggregatedStats { return analytics.AggregatedStats(f) }

func TestSnapshotterTickSavesAndPrunes(t *testing.T) {
	store := &memStore{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewSnapshotter(store, fixedStats{TotalRequests: 7}, time.Minute, 24*time.Hour)
	s.now = func() time.Time { return now }

	s.tick(context.Background())

	if len(store.saved) != 1 || store.saved[0].Stats.TotalRequests != 7 {
		t.Fatalf("saved = %+v", store.saved)
	}
	if !store.saved[0].CapturedAt.Equal(now) {
		t.Errorf("captured_at = %v, want %v", store.saved[0].CapturedAt, now)
	}
	if len(store.cutoffs) != 1 || !store.cutoffs[0].Equal(now.Add(-24*time.Hour)) {
		t.Errorf("prune cutoffs = %v", store.cutoffs)
	}
}

func TestSnapshotterSavesOnShutdown(t *testing.T) {
	store := &memStore{}
	s := NewSnapshotter(store, fixedStats{}, time.Hour, 0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	if len(store.saved) != 1 {
		t.Errorf("saved %d snapshots on shutdown, want 1", len(store.saved))
	}
	if len(store.cutoffs) != 0 {
		t.Error("pruned with retention disabled")
	}
}

func TestHistoryHandler(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		storeErr  error
		wantCode  int
		wantLimit int
		wantSince bool
	}{
		{"defaults", "/history", nil, http.StatusOK, defaultHistoryLimit, false},
		{"capped", "/history?limit=9000", nil, http.StatusOK, maxHistoryLimit, false},
		{"since", "/history?since=2026-01-02T00:00:00Z", nil, http.StatusOK, defaultHistoryLimit, true},
		{"bad limit", "/history?limit=0", nil, http.StatusBadRequest, 0, false},
		{"bad since", "/history?since=yesterday", nil, http.StatusBadRequest, 0, false},
		{"store down", "/history", errors.New("connection reset"), http.StatusInternalServerError, defaultHistoryLimit, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memStore{err: tt.storeErr, saved: []Snapshot{{Stats: analytics.AggregatedStats{TotalRequests: 3}}}}
			rec := httptest.NewRecorder()
			HistoryHandler(store)(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if store.query.Limit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", store.query.Limit, tt.wantLimit)
			}
			if store.query.Since.IsZero() == tt.wantSince {
				t.Errorf("since = %v, want set=%v", store.query.Since, tt.wantSince)
			}
			if rec.Code == http.StatusOK {
				var body struct {
					Count int `json:"count"`
				}
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body.Count != 1 {
					t.Errorf("body count = %d, err = %v", body.Count, err)
				}
			}
		})
	}
}
