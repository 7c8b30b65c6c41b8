// Package cache memoizes relevance scores in Redis. Concurrent misses for
// the same key are collapsed with singleflight so a burst of identical
// requests triggers one scoring pass.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/redis"
)

const keyPrefix = "score:"

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Key identifies one score. Query must be the analyzed query rendering
// (WeightedQuery.String) so equivalent texts share an entry.
type Key struct {
	Model    string
	Feedback bool
	Query    string
	DocID    string
}

type ScoreCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a cache over store. m may be nil.
func New(store Store, ttl time.Duration, m *metrics.Metrics) *ScoreCache {
	return &ScoreCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "score-cache"),
	}
}

// Get returns a cached score. Store failures are logged and count as misses.
func (c *ScoreCache) Get(ctx context.Context, key Key) (float64, bool) {
	k := buildKey(key)
	data, err := c.store.Get(ctx, k)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", k, "error", err)
		}
		c.miss()
		return 0, false
	}
	score, err := strconv.ParseFloat(data, 64)
	if err != nil {
		c.logger.Error("cache value corrupt", "key", k, "value", data, "error", err)
		c.miss()
		return 0, false
	}
	c.hit()
	c.logger.Debug("cache hit", "model", key.Model, "docid", key.DocID, "key", k)
	return score, true
}

func (c *ScoreCache) Set(ctx context.Context, key Key, score float64) {
	k := buildKey(key)
	if err := c.store.Set(ctx, k, strconv.FormatFloat(score, 'g', -1, 64), c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", k, "error", err)
	}
}

// GetOrCompute returns the cached score or computes, stores and returns it.
// The boolean reports a cache hit. Compute errors are never cached.
//
// Callers sharing an in-flight computation each wait on their own ctx;
// compute itself runs detached from the first caller's cancellation so one
// abandoned request cannot fail the others.
func (c *ScoreCache) GetOrCompute(ctx context.Context, key Key, compute func(context.Context) (float64, error)) (float64, bool, error) {
	if score, ok := c.Get(ctx, key); ok {
		return score, true, nil
	}
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(buildKey(key), func() (any, error) {
		score, err := compute(shared)
		if err != nil {
			return nil, err
		}
		c.Set(shared, key, score)
		return score, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return 0, false, res.Err
		}
		return res.Val.(float64), false, nil
	case <-ctx.Done():
		return 0, false, ctx.Err()
	}
}

// Invalidate drops every cached score, e.g. after the index is reloaded.
func (c *ScoreCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating score cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *ScoreCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *ScoreCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *ScoreCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func buildKey(k Key) string {
	raw := fmt.Sprintf("%s|rm3=%t|%s|%s", k.Model, k.Feedback, k.Query, k.DocID)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
