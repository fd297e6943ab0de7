// Package cache holds the restart-surviving price cache used by the scan
// pipeline to avoid refetching quotes inside the TTL window.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jorseph/tw-stock/internal/contracts"
	"github.com/jorseph/tw-stock/pkg/logger"
)

// PriceCache is an in-memory TTL cache of last known prices, persisted
// through a PriceStore at batch boundaries. Reads are concurrent, writes
// serialized; re-caching the same price twice is harmless.
// ⭐ SSOT: 股價快取只在這個 struct
type PriceCache struct {
	mu     sync.RWMutex
	prices map[string]contracts.CachedPrice
	ttl    time.Duration
	store  contracts.PriceStore
	logger *logger.Logger
	now    func() time.Time
}

// New creates a price cache backed by the given store
func New(store contracts.PriceStore, ttl time.Duration, log *logger.Logger) *PriceCache {
	return &PriceCache{
		prices: make(map[string]contracts.CachedPrice),
		ttl:    ttl,
		store:  store,
		logger: log,
		now:    time.Now,
	}
}

// WithClock overrides the time source. 測試用。
func (c *PriceCache) WithClock(now func() time.Time) *PriceCache {
	c.now = now
	return c
}

// Get returns the cached price for a stock. TTL is evaluated lazily on
// read: a stale entry is a miss, not an error, and stays in the map until
// overwritten.
func (c *PriceCache) Get(stockNo string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.prices[stockNo]
	if !ok {
		return 0, false
	}
	if !entry.Fresh(c.now(), c.ttl) {
		return 0, false
	}
	return entry.Price, true
}

// Set stores a price, visible to subsequent readers immediately.
// Persistence lags until the next Save call.
func (c *PriceCache) Set(stockNo string, price float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.prices[stockNo] = contracts.CachedPrice{
		StockNo:    stockNo,
		Price:      price,
		CapturedAt: c.now(),
	}
}

// Len returns the number of entries, fresh or stale
func (c *PriceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.prices)
}

// Load restores the persisted snapshot. A corrupt or missing snapshot
// yields an empty cache: logged, never fatal.
func (c *PriceCache) Load(ctx context.Context) {
	prices, err := c.store.LoadPrices(ctx)
	if err != nil {
		if errors.Is(err, contracts.ErrCacheCorrupt) {
			c.logger.WithError(err).Warn("Price cache corrupt, starting empty")
		} else {
			c.logger.WithError(err).Warn("Price cache load failed, starting empty")
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for stockNo, entry := range prices {
		c.prices[stockNo] = entry
	}

	c.logger.WithField("count", len(prices)).Debug("Price cache loaded")
}

// Save persists the current snapshot. The runner calls this at batch
// boundaries, not per item, to bound I/O.
func (c *PriceCache) Save(ctx context.Context) error {
	c.mu.RLock()
	snapshot := make(map[string]contracts.CachedPrice, len(c.prices))
	for stockNo, entry := range c.prices {
		snapshot[stockNo] = entry
	}
	c.mu.RUnlock()

	if err := c.store.SavePrices(ctx, snapshot); err != nil {
		return err
	}
	return nil
}
