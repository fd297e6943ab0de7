package cache

import (
	"context"
	"time"

	"github.com/jorseph/tw-stock/internal/contracts"
	"github.com/jorseph/tw-stock/pkg/logger"
	"github.com/jorseph/tw-stock/pkg/redis"
)

// BundleCache keeps whole valuation series in Redis with a long TTL so
// repeat scans inside the window skip the fetch-and-estimate work.
// 估值一季才變一次，七天快取很安全。
type BundleCache struct {
	cache  *redis.Cache
	ttl    time.Duration
	logger *logger.Logger
}

// NewBundleCache creates a valuation bundle cache
func NewBundleCache(cache *redis.Cache, ttl time.Duration, log *logger.Logger) *BundleCache {
	return &BundleCache{
		cache:  cache,
		ttl:    ttl,
		logger: log,
	}
}

// Get returns a cached series, or (nil, false) on miss. Redis trouble is
// a miss, never an error.
func (b *BundleCache) Get(ctx context.Context, stockNo string) (*contracts.ValuationSeries, bool) {
	var series contracts.ValuationSeries
	found, err := b.cache.Get(ctx, redis.ValuationBundleKey(stockNo), &series)
	if err != nil {
		b.logger.WithError(err).WithField("stock_no", stockNo).
			Warn("Bundle cache read failed")
		return nil, false
	}
	if !found {
		return nil, false
	}
	return &series, true
}

// Set stores a series; failures are logged and swallowed
func (b *BundleCache) Set(ctx context.Context, series *contracts.ValuationSeries) {
	if err := b.cache.Set(ctx, redis.ValuationBundleKey(series.StockNo), series, b.ttl); err != nil {
		b.logger.WithError(err).WithField("stock_no", series.StockNo).
			Warn("Bundle cache write failed")
	}
}
