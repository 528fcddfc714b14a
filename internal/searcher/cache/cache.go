// Package cache memoizes search results in Redis. Keys carry the index
// generation, so a reload never serves results computed from an older
// index; the old generation's keys are also deleted when a reload lands.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/showsearch/showsearch/internal/searcher/executor"
	"github.com/showsearch/showsearch/internal/searcher/parser"
	"github.com/showsearch/showsearch/pkg/metrics"
	pkgredis "github.com/showsearch/showsearch/pkg/redis"
	"github.com/showsearch/showsearch/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "showsearch:q:"

// Store is the subset of *pkgredis.Client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

type Stats struct {
	Hits         int64  `json:"hits"`
	Misses       int64  `json:"misses"`
	Errors       int64  `json:"errors"`
	Invalidated  int64  `json:"invalidated"`
	CircuitState string `json:"circuit_state"`

	Pool *pkgredis.PoolStats `json:"pool,omitempty"`
}

type poolReporter interface {
	PoolStats() pkgredis.PoolStats
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger

	hits        atomic.Int64
	misses      atomic.Int64
	failures    atomic.Int64
	invalidated atomic.Int64
}

// New wraps store. m may be nil.
func New(store Store, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	c := &QueryCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
	c.breaker = resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     15 * time.Second,
		OnStateChange:    c.breakerChanged,
	})
	if m != nil {
		m.CircuitBreakerState.WithLabelValues("redis-cache").Set(float64(resilience.StateClosed))
	}
	return c
}

// Get looks up a cached result. Store failures count as misses.
func (c *QueryCache) Get(ctx context.Context, key string) (*executor.SearchResult, bool) {
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.store.Get(ctx, key)
		if errors.Is(err, pkgredis.ErrMiss) {
			return nil
		}
		return err
	})
	if err != nil {
		c.failures.Add(1)
		c.logger.Warn("cache get failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	if data == nil {
		c.miss()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.failures.Add(1)
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, key string, result *executor.SearchResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.failures.Add(1)
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for plan or computes and stores it.
// Concurrent misses for the same key share one computation. The bool
// reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	generation uint64,
	plan *parser.QueryPlan,
	limit int,
	computeFn func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	key := BuildKey(generation, plan, limit)
	if result, ok := c.Get(ctx, key); ok {
		result.Query = plan.RawQuery
		return result, true, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		// A result from another snapshot would outlive its generation's drop.
		if result.Generation == generation {
			c.Set(ctx, key, result)
		}
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	shared := val.(*executor.SearchResult)
	out := *shared
	out.Query = plan.RawQuery
	return &out, false, nil
}

// Invalidate deletes every cached search result.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.DeletePrefix(ctx, keyPrefix)
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.invalidated.Add(deleted)
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// DropGeneration deletes the results cached for one index generation.
func (c *QueryCache) DropGeneration(ctx context.Context, generation uint64) (int64, error) {
	deleted, err := c.store.DeletePrefix(ctx, fmt.Sprintf("%s%d:", keyPrefix, generation))
	if err != nil {
		return deleted, fmt.Errorf("dropping generation %d: %w", generation, err)
	}
	c.invalidated.Add(deleted)
	c.logger.Debug("generation dropped", "generation", generation, "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() Stats {
	st := Stats{
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Errors:       c.failures.Load(),
		Invalidated:  c.invalidated.Load(),
		CircuitState: c.breaker.State().String(),
	}
	if pr, ok := c.store.(poolReporter); ok {
		ps := pr.PoolStats()
		st.Pool = &ps
	}
	return st
}

// BuildKey derives the cache key from what determines a result: the index
// generation, the page limit and the analysed terms. Queries that differ
// only in case, punctuation, term order or repetition share a key.
func BuildKey(generation uint64, plan *parser.QueryPlan, limit int) string {
	terms := append([]string(nil), plan.Terms...)
	sort.Strings(terms)
	stop := append([]string(nil), plan.Stopwords...)
	sort.Strings(stop)
	raw := fmt.Sprintf("g=%d|limit=%d|terms=%s|stop=%s",
		generation, limit, strings.Join(terms, ","), strings.Join(stop, ","))
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%d:%x", keyPrefix, generation, hash[:16])
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *QueryCache) breakerChanged(name string, from, to resilience.State) {
	if c.metrics != nil {
		c.metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
	}
	if to == resilience.StateOpen {
		c.logger.Warn("cache bypassed until redis recovers")
	}
}
