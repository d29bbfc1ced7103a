package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/kafka"
)

const (
	topListSize = 10
	// maxLatencySamples bounds the latency window; percentiles cover the
	// most recent samples only.
	maxLatencySamples = 10000
)

type AggregatedStats struct {
	TotalRequests         int64        `json:"total_requests"`
	CacheHits             int64        `json:"cache_hits"`
	CacheMisses           int64        `json:"cache_misses"`
	EmptyResults          int64        `json:"empty_results"`
	UnresolvedTitles      int64        `json:"unresolved_titles"`
	AvgLatencyMs          float64      `json:"avg_latency_ms"`
	P50LatencyMs          int64        `json:"p50_latency_ms"`
	P95LatencyMs          int64        `json:"p95_latency_ms"`
	P99LatencyMs          int64        `json:"p99_latency_ms"`
	AvgTopScore           float64      `json:"avg_top_score"`
	TopLikedTitles        []TitleCount `json:"top_liked_titles"`
	TopRecommendedTitles  []TitleCount `json:"top_recommended_titles"`
	TopUnresolvedTitles   []TitleCount `json:"top_unresolved_titles"`
	RequestsPerMinute     float64      `json:"requests_per_minute"`
	CatalogReloads        int64        `json:"catalog_reloads"`
	FailedCatalogReloads  int64        `json:"failed_catalog_reloads"`
	LatestCatalogVersion  string       `json:"latest_catalog_version,omitempty"`
	MoviesIngested        int64        `json:"movies_ingested"`
	MoviesIngestedUpdates int64        `json:"movies_ingested_updates"`
}

type TitleCount struct {
	Title string `json:"title"`
	Count int64  `json:"count"`
}

// Aggregator folds analytics events into running totals. It is safe for
// concurrent use.
type Aggregator struct {
	mu               sync.RWMutex
	totalRequests    atomic.Int64
	cacheHits        atomic.Int64
	cacheMisses      atomic.Int64
	emptyResults     atomic.Int64
	unresolved       atomic.Int64
	reloads          atomic.Int64
	failedReloads    atomic.Int64
	ingested         atomic.Int64
	ingestedUpdates  atomic.Int64
	latencies        []int64
	latencyNext      int
	topScoreSum      float64
	topScoreCount    int64
	likedCounts      map[string]int64
	recommendCounts  map[string]int64
	unresolvedCounts map[string]int64
	catalogVersion   string
	startTime        time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:        make([]int64, 0, maxLatencySamples),
		likedCounts:      make(map[string]int64),
		recommendCounts:  make(map[string]int64),
		unresolvedCounts: make(map[string]int64),
		startTime:        time.Now(),
		logger:           slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleMessage is the Kafka handler for the analytics topic. Undecodable
// or unknown events are logged and skipped so one bad message cannot stall
// the partition.
func (a *Aggregator) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var env envelope
	if err := json.Unmarshal(value, &env); err != nil {
		a.logger.Error("failed to decode analytics event", "error", err)
		return nil
	}
	switch env.Type {
	case EventRecommend:
		event, err := kafka.DecodeJSON[RecommendEvent](value)
		if err != nil {
			a.logger.Error("failed to decode recommend event", "error", err)
			return nil
		}
		a.RecordRecommend(event)
	case EventCatalogReload:
		event, err := kafka.DecodeJSON[ReloadEvent](value)
		if err != nil {
			a.logger.Error("failed to decode reload event", "error", err)
			return nil
		}
		a.RecordReload(event)
	case EventMovieIngested:
		event, err := kafka.DecodeJSON[IngestEvent](value)
		if err != nil {
			a.logger.Error("failed to decode ingest event", "error", err)
			return nil
		}
		a.RecordIngest(event)
	default:
		a.logger.Warn("unknown analytics event type", "type", env.Type, "key", string(key))
	}
	return nil
}

func (a *Aggregator) RecordRecommend(event RecommendEvent) {
	a.totalRequests.Add(1)
	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	if len(event.Recommended) == 0 {
		a.emptyResults.Add(1)
	}
	a.unresolved.Add(int64(len(event.Unresolved)))

	a.mu.Lock()
	defer a.mu.Unlock()
	a.recordLatency(event.LatencyMs)
	if len(event.Recommended) > 0 {
		a.topScoreSum += event.TopScore
		a.topScoreCount++
	}
	for _, t := range event.Titles {
		a.likedCounts[t]++
	}
	for _, t := range event.Recommended {
		a.recommendCounts[t]++
	}
	for _, t := range event.Unresolved {
		a.unresolvedCounts[t]++
	}
}

// recordLatency appends until the window is full, then overwrites the
// oldest sample. Callers hold a.mu.
func (a *Aggregator) recordLatency(ms int64) {
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, ms)
		return
	}
	a.latencies[a.latencyNext] = ms
	a.latencyNext = (a.latencyNext + 1) % maxLatencySamples
}

func (a *Aggregator) RecordReload(event ReloadEvent) {
	if !event.Success {
		a.failedReloads.Add(1)
		return
	}
	a.reloads.Add(1)
	a.mu.Lock()
	a.catalogVersion = event.Version
	a.mu.Unlock()
}

func (a *Aggregator) RecordIngest(event IngestEvent) {
	if event.Inserted {
		a.ingested.Add(1)
	} else {
		a.ingestedUpdates.Add(1)
	}
}

// Stats returns the aggregate with top-ten title lists.
func (a *Aggregator) Stats() AggregatedStats {
	return a.Snapshot(topListSize)
}

// Snapshot returns the aggregate with title lists cut to top entries.
func (a *Aggregator) Snapshot(top int) AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalRequests:         a.totalRequests.Load(),
		CacheHits:             a.cacheHits.Load(),
		CacheMisses:           a.cacheMisses.Load(),
		EmptyResults:          a.emptyResults.Load(),
		UnresolvedTitles:      a.unresolved.Load(),
		CatalogReloads:        a.reloads.Load(),
		FailedCatalogReloads:  a.failedReloads.Load(),
		LatestCatalogVersion:  a.catalogVersion,
		MoviesIngested:        a.ingested.Load(),
		MoviesIngestedUpdates: a.ingestedUpdates.Load(),
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	if a.topScoreCount > 0 {
		stats.AvgTopScore = a.topScoreSum / float64(a.topScoreCount)
	}
	stats.TopLikedTitles = topN(a.likedCounts, top)
	stats.TopRecommendedTitles = topN(a.recommendCounts, top)
	stats.TopUnresolvedTitles = topN(a.unresolvedCounts, top)
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.RequestsPerMinute = float64(stats.TotalRequests) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count, then title, so equal counts list deterministically.
func topN(counts map[string]int64, n int) []TitleCount {
	result := make([]TitleCount, 0, len(counts))
	for title, count := range counts {
		result = append(result, TitleCount{Title: title, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Title < result[j].Title
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
