package collector

import (
	"context"
	"time"

	"PriceLens/internal/cache"
	"PriceLens/internal/metrics"
	"PriceLens/internal/model"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CachingSource wraps a Source with a bar cache. Concurrent misses for the
// same key share one upstream fetch. Failed fetches are never cached.
type CachingSource struct {
	next    Source
	store   cache.Store
	ttl     time.Duration
	prefix  string
	metrics *metrics.Metrics
	logger  *zap.Logger
	group   singleflight.Group
}

var _ Source = (*CachingSource)(nil)

// CacheOptions tunes a CachingSource.
type CacheOptions struct {
	TTL    time.Duration
	Prefix string
}

func NewCachingSource(next Source, store cache.Store, opts CacheOptions, m *metrics.Metrics, logger *zap.Logger) *CachingSource {
	return &CachingSource{next: next, store: store, ttl: opts.TTL, prefix: opts.Prefix, metrics: m, logger: logger}
}

func (c *CachingSource) Name() string { return c.next.Name() }

func (c *CachingSource) FetchDaily(ctx context.Context, symbol string, r model.DateRange) ([]model.Bar, error) {
	key := cache.Key(c.prefix, c.next.Name(), symbol, r)

	bars, ok, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		c.metrics.CacheResult(metrics.CacheError)
		c.logger.Warn("cache lookup failed", zap.String("key", key), zap.Error(err))
	case ok:
		c.metrics.CacheResult(metrics.CacheHit)
		c.logger.Debug("cache hit", zap.String("key", key))
		return bars, nil
	default:
		c.metrics.CacheResult(metrics.CacheMiss)
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		fetched, err := c.next.FetchDaily(ctx, symbol, r)
		if err != nil {
			return nil, err
		}
		if err := c.store.Set(ctx, key, fetched, c.ttl); err != nil {
			c.logger.Warn("cache store failed", zap.String("key", key), zap.Error(err))
		}
		return fetched, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]model.Bar{}, v.([]model.Bar)...), nil
}
