// Package cache stores recommendation results in Redis. Keys include the
// catalog version, so results computed against an older snapshot are never
// served after a reload even before they are flushed.
package cache

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/recommender"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/redis"
)

const keyPrefix = "recommend:"

// Store is the subset of the Redis client the cache needs.
type Store interface {
	GetJSON(ctx context.Context, key string, dst any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// ResultCache caches engine query results.
type ResultCache struct {
	store   Store
	ttl     time.Duration
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a ResultCache. m may be nil.
func New(store Store, ttl time.Duration, m *metrics.Metrics) *ResultCache {
	return &ResultCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "result-cache"),
	}
}

// Key identifies one query against one catalog version. Title order is
// significant because it decides explanation attribution.
type Key struct {
	Version string
	Titles  []string
	Limit   int
}

func (k Key) String() string {
	raw := fmt.Sprintf("%s\x00limit=%d", strings.Join(k.Titles, "\x00"), k.Limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%s:%x", keyPrefix, k.Version, hash[:16])
}

// Get returns a cached result.
func (c *ResultCache) Get(ctx context.Context, key Key) (*recommender.Result, bool) {
	result, ok := c.lookup(ctx, key)
	c.account(ok)
	return result, ok
}

// lookup reads key without touching the hit and miss counters.
func (c *ResultCache) lookup(ctx context.Context, key Key) (*recommender.Result, bool) {
	var result recommender.Result
	if err := c.store.GetJSON(ctx, key.String(), &result); err != nil {
		if !errors.Is(err, pkgredis.ErrMiss) {
			c.logger.Error("cache get failed", "key", key.String(), "error", err)
		}
		return nil, false
	}
	c.logger.Debug("cache hit", "key", key.String())
	return &result, true
}

// Set stores a result. Failures are logged and otherwise ignored.
func (c *ResultCache) Set(ctx context.Context, key Key, result *recommender.Result) {
	if err := c.store.SetJSON(ctx, key.String(), result, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key.String(), "error", err)
	}
}

// GetOrCompute returns the cached result for key, or runs compute once for
// all concurrent callers of the same key and caches its output. The boolean
// reports a cache hit. Each call counts as exactly one hit or one miss.
func (c *ResultCache) GetOrCompute(
	ctx context.Context,
	key Key,
	compute func() (*recommender.Result, error),
) (*recommender.Result, bool, error) {
	if result, ok := c.lookup(ctx, key); ok {
		c.account(true)
		return result, true, nil
	}
	val, err, _ := c.group.Do(key.String(), func() (any, error) {
		// A previous flight may have filled the key since the first lookup.
		if result, ok := c.lookup(ctx, key); ok {
			return cached{result: result, hit: true}, nil
		}
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, result)
		return cached{result: result}, nil
	})
	if err != nil {
		c.account(false)
		return nil, false, err
	}
	out := val.(cached)
	c.account(out.hit)
	return out.result, out.hit, nil
}

type cached struct {
	result *recommender.Result
	hit    bool
}

// Invalidate deletes every cached result.
func (c *ResultCache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns hit and miss counts since start.
func (c *ResultCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *ResultCache) account(hit bool) {
	if hit {
		c.hit()
	} else {
		c.miss()
	}
}

func (c *ResultCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *ResultCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
