package cache

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/recommender"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/redis"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) GetJSON(ctx context.Context, key string, dst any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[key]
	if !ok {
		return pkgredis.ErrMiss
	}
	return json.Unmarshal(data, dst)
}

func (m *memStore) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
	return nil
}

func (m *memStore) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func sampleResult() *recommender.Result {
	return &recommender.Result{
		Recommendations: []recommender.Recommendation{{
			Movie:       catalog.Movie{ID: 2, Title: "Collateral"},
			Score:       0.61,
			Explanation: "Because you liked Heat → Same director: Michael Mann",
		}},
		Unresolved: []string{},
	}
}

func TestKeyDistinguishesQueries(t *testing.T) {
	base := Key{Version: "v1", Titles: []string{"Heat", "Casino"}, Limit: 5}
	variants := []Key{
		{Version: "v2", Titles: []string{"Heat", "Casino"}, Limit: 5},
		{Version: "v1", Titles: []string{"Casino", "Heat"}, Limit: 5},
		{Version: "v1", Titles: []string{"Heat", "Casino"}, Limit: 6},
		{Version: "v1", Titles: []string{"HeatCasino"}, Limit: 5},
	}
	for _, v := range variants {
		if v.String() == base.String() {
			t.Errorf("expected distinct key for %+v", v)
		}
	}
	if base.String() != (Key{Version: "v1", Titles: []string{"Heat", "Casino"}, Limit: 5}).String() {
		t.Error("expected stable key")
	}
}

func TestGetOrCompute(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	key := Key{Version: "v1", Titles: []string{"Heat"}, Limit: 5}
	calls := 0
	compute := func() (*recommender.Result, error) {
		calls++
		return sampleResult(), nil
	}

	_, hit, err := c.GetOrCompute(context.Background(), key, compute)
	if err != nil || hit {
		t.Fatalf("expected miss without error, hit=%v err=%v", hit, err)
	}
	got, hit, err := c.GetOrCompute(context.Background(), key, compute)
	if err != nil || !hit {
		t.Fatalf("expected hit, hit=%v err=%v", hit, err)
	}
	if calls != 1 {
		t.Errorf("expected compute once, got %d", calls)
	}
	if got.Recommendations[0].Movie.Title != "Collateral" {
		t.Errorf("unexpected cached result %+v", got)
	}
	if hits, misses := c.Stats(); hits != 1 || misses != 1 {
		t.Errorf("expected 1 hit and 1 miss, got %d and %d", hits, misses)
	}
}

func TestGetOrComputeCountsEachCallOnce(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	c := New(newMemStore(), time.Minute, m)
	key := Key{Version: "v1", Titles: []string{"Heat"}, Limit: 5}
	compute := func() (*recommender.Result, error) { return sampleResult(), nil }

	if _, _, err := c.GetOrCompute(context.Background(), key, compute); err != nil {
		t.Fatal(err)
	}
	if hits, misses := c.Stats(); hits != 0 || misses != 1 {
		t.Errorf("after first call expected 0 hits and 1 miss, got %d and %d", hits, misses)
	}
	if got := testutil.ToFloat64(m.CacheMissesTotal); got != 1 {
		t.Errorf("expected miss counter 1, got %f", got)
	}

	failing := Key{Version: "v1", Titles: []string{"Casino"}, Limit: 5}
	_, _, err := c.GetOrCompute(context.Background(), failing, func() (*recommender.Result, error) {
		return nil, errors.New("engine not loaded")
	})
	if err == nil {
		t.Fatal("expected compute error")
	}
	if hits, misses := c.Stats(); hits != 0 || misses != 2 {
		t.Errorf("after failed call expected 0 hits and 2 misses, got %d and %d", hits, misses)
	}
}

func TestGetOrComputeCoalesces(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	key := Key{Version: "v1", Titles: []string{"Heat"}, Limit: 5}
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func() (*recommender.Result, error) {
		calls.Add(1)
		<-release
		return sampleResult(), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := c.GetOrCompute(context.Background(), key, compute); err != nil {
				t.Error(err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	if calls.Load() != 1 {
		t.Errorf("expected a single computation, got %d", calls.Load())
	}
	if hits, misses := c.Stats(); hits+misses != 5 {
		t.Errorf("expected 5 counted lookups, got %d hits and %d misses", hits, misses)
	}
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute, nil)
	key := Key{Version: "v1", Titles: []string{"Heat"}, Limit: 5}
	c.Set(context.Background(), key, sampleResult())
	store.data["other:key"] = []byte("{}")

	if err := c.Invalidate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(context.Background(), key); ok {
		t.Error("expected cache entry removed")
	}
	if _, ok := store.data["other:key"]; !ok {
		t.Error("invalidate must only touch recommendation keys")
	}
}
