// Command loadtest drives the recommender service with concurrent
// recommendation requests and reports throughput and latency percentiles.
//
// Titles are taken from the service's own catalog listing, and each worker
// cycles through selections of one to three of them so the result cache sees
// both repeated and fresh queries.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:8080] [-concurrency 10] [-duration 30s] [-json]
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

type options struct {
	baseURL     string
	concurrency int
	duration    time.Duration
	limit       int
	rps         float64
	selections  [][]string
}

func main() {
	var (
		opts    options
		titles  int
		asJSON  bool
		timeout time.Duration
	)
	flag.StringVar(&opts.baseURL, "url", "http://localhost:8080", "base URL of the recommender service")
	flag.IntVar(&opts.concurrency, "concurrency", 10, "number of concurrent workers")
	flag.DurationVar(&opts.duration, "duration", 30*time.Second, "test duration")
	flag.IntVar(&opts.limit, "limit", 5, "recommendations requested per query")
	flag.Float64Var(&opts.rps, "rps", 0, "overall request rate cap; 0 means as fast as possible")
	flag.IntVar(&titles, "titles", 50, "catalog titles to draw selections from")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "per-request timeout")
	flag.BoolVar(&asJSON, "json", false, "print the summary as JSON")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: opts.concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	pool, err := catalogTitles(ctx, client, opts.baseURL, titles)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loadtest: reading catalog: %v\n", err)
		os.Exit(1)
	}
	if len(pool) == 0 {
		fmt.Fprintln(os.Stderr, "loadtest: catalog is empty")
		os.Exit(1)
	}
	opts.selections = selections(pool)

	if !asJSON {
		fmt.Fprintf(os.Stderr, "loadtest: %s, %d workers for %s, %d selections from %d titles\n",
			opts.baseURL, opts.concurrency, opts.duration, len(opts.selections), len(pool))
	}

	rec := newRecorder()
	start := time.Now()
	run(ctx, client, opts, rec)
	s := rec.summarize(time.Since(start))

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(s)
	} else {
		s.print(os.Stdout)
	}
	if s.Requests == 0 {
		fmt.Fprintln(os.Stderr, "loadtest: no requests completed; is the recommender running?")
		os.Exit(1)
	}
}

func catalogTitles(ctx context.Context, client *http.Client, baseURL string, n int) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/v1/movies?limit=%d", baseURL, n), nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET /api/v1/movies: status %d", resp.StatusCode)
	}
	var listing struct {
		Movies []struct {
			Title string `json:"title"`
		} `json:"movies"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decoding listing: %w", err)
	}
	out := make([]string, 0, len(listing.Movies))
	for _, m := range listing.Movies {
		if !slices.Contains(out, m.Title) {
			out = append(out, m.Title)
		}
	}
	return out, nil
}

// selections returns every single title, then pairs and triples of
// neighbouring titles. A selection never repeats a title.
func selections(titles []string) [][]string {
	var out [][]string
	for size := 1; size <= min(3, len(titles)); size++ {
		for i := 0; i+size <= len(titles); i++ {
			out = append(out, slices.Clone(titles[i:i+size]))
		}
	}
	return out
}

// run fans out opts.concurrency workers until the duration elapses or ctx
// is cancelled. Worker w sends selections w, w+concurrency, and so on.
func run(ctx context.Context, client *http.Client, opts options, rec *recorder) {
	ctx, cancel := context.WithTimeout(ctx, opts.duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.rps), max(1, int(opts.rps)))
	}

	var g errgroup.Group
	for w := range opts.concurrency {
		g.Go(func() error {
			for i := w; limiter.Wait(ctx) == nil; i += opts.concurrency {
				sel := opts.selections[i%len(opts.selections)]
				start := time.Now()
				o, status := recommend(ctx, client, opts.baseURL, sel, opts.limit)
				if ctx.Err() != nil {
					return nil
				}
				rec.add(o, status, time.Since(start))
			}
			return nil
		})
	}
	_ = g.Wait()
}

func recommend(ctx context.Context, client *http.Client, baseURL string, titles []string, limit int) (outcome, int) {
	body, err := json.Marshal(map[string]any{"titles": titles, "limit": limit})
	if err != nil {
		return outcomeTransportError, 0
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/v1/recommendations", bytes.NewReader(body))
	if err != nil {
		return outcomeTransportError, 0
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return outcomeTransportError, 0
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return outcomeHTTPError, resp.StatusCode
	}
	var out struct {
		Recommendations []json.RawMessage `json:"recommendations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return outcomeTransportError, resp.StatusCode
	}
	if len(out.Recommendations) == 0 {
		return outcomeEmpty, resp.StatusCode
	}
	return outcomeHit, resp.StatusCode
}
