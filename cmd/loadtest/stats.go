package main

import (
	"fmt"
	"io"
	"maps"
	"math"
	"slices"
	"sync"
	"time"
)

// outcome classifies one request.
type outcome int

const (
	outcomeHit outcome = iota
	outcomeEmpty
	outcomeHTTPError
	outcomeTransportError
)

// recorder collects per-request results from all workers.
type recorder struct {
	mu        sync.Mutex
	outcomes  [4]int64
	latencies []time.Duration
	codes     map[int]int64
}

func newRecorder() *recorder {
	return &recorder{
		latencies: make([]time.Duration, 0, 1<<14),
		codes:     make(map[int]int64),
	}
}

func (r *recorder) add(o outcome, status int, took time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[o]++
	if o == outcomeTransportError {
		return
	}
	r.latencies = append(r.latencies, took)
	r.codes[status]++
}

// summary is the final report, also emitted as JSON with -json.
type summary struct {
	Requests     int64          `json:"requests"`
	WithResults  int64          `json:"with_results"`
	EmptyResults int64          `json:"empty_results"`
	HTTPErrors   int64          `json:"http_errors"`
	Transport    int64          `json:"transport_errors"`
	Throughput   float64        `json:"requests_per_sec"`
	Latency      latencySummary `json:"latency"`
	StatusCodes  map[int]int64  `json:"status_codes"`
	Elapsed      time.Duration  `json:"elapsed_ns"`
}

type latencySummary struct {
	Min  time.Duration `json:"min_ns"`
	Mean time.Duration `json:"mean_ns"`
	P50  time.Duration `json:"p50_ns"`
	P90  time.Duration `json:"p90_ns"`
	P99  time.Duration `json:"p99_ns"`
	Max  time.Duration `json:"max_ns"`
}

func (r *recorder) summarize(elapsed time.Duration) summary {
	r.mu.Lock()
	lat := slices.Clone(r.latencies)
	s := summary{
		WithResults:  r.outcomes[outcomeHit],
		EmptyResults: r.outcomes[outcomeEmpty],
		HTTPErrors:   r.outcomes[outcomeHTTPError],
		Transport:    r.outcomes[outcomeTransportError],
		StatusCodes:  maps.Clone(r.codes),
		Elapsed:      elapsed,
	}
	r.mu.Unlock()

	s.Requests = s.WithResults + s.EmptyResults + s.HTTPErrors + s.Transport
	if elapsed > 0 {
		s.Throughput = float64(s.Requests) / elapsed.Seconds()
	}
	if len(lat) == 0 {
		return s
	}
	slices.Sort(lat)
	var total time.Duration
	for _, d := range lat {
		total += d
	}
	s.Latency = latencySummary{
		Min:  lat[0],
		Mean: total / time.Duration(len(lat)),
		P50:  nearestRank(lat, 50),
		P90:  nearestRank(lat, 90),
		P99:  nearestRank(lat, 99),
		Max:  lat[len(lat)-1],
	}
	return s
}

// nearestRank returns the p-th percentile of an ascending slice.
func nearestRank(sorted []time.Duration, p float64) time.Duration {
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	return sorted[min(max(rank, 1), len(sorted))-1]
}

func (s summary) print(w io.Writer) {
	fmt.Fprintf(w, "requests        %d in %s (%.1f/s)\n", s.Requests, s.Elapsed.Round(time.Millisecond), s.Throughput)
	fmt.Fprintf(w, "  with results  %d\n", s.WithResults)
	fmt.Fprintf(w, "  empty         %d\n", s.EmptyResults)
	fmt.Fprintf(w, "  http errors   %d\n", s.HTTPErrors)
	fmt.Fprintf(w, "  transport     %d\n", s.Transport)
	if s.Requests > 0 {
		failed := s.HTTPErrors + s.Transport
		fmt.Fprintf(w, "  failure rate  %.2f%%\n", float64(failed)/float64(s.Requests)*100)
	}
	if s.Latency.Max > 0 {
		l := s.Latency
		fmt.Fprintf(w, "latency         min %s  mean %s  p50 %s  p90 %s  p99 %s  max %s\n",
			l.Min, l.Mean, l.P50, l.P90, l.P99, l.Max)
	}
	for _, code := range slices.Sorted(maps.Keys(s.StatusCodes)) {
		fmt.Fprintf(w, "status %d      %d\n", code, s.StatusCodes[code])
	}
}
