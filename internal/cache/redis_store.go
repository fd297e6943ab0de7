package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/jorseph/tw-stock/internal/contracts"
	"github.com/jorseph/tw-stock/pkg/redis"
)

// RedisPriceStore persists the price book as one JSON blob in Redis.
// 單一 key 就夠：整本價格快取一次讀寫，batch 邊界才落盤。
type RedisPriceStore struct {
	cache *redis.Cache
	ttl   time.Duration
}

// NewRedisPriceStore creates a Redis-backed price store. ttl caps how long
// an orphaned snapshot lives server-side; per-entry freshness is still
// judged by the in-memory cache.
func NewRedisPriceStore(cache *redis.Cache, ttl time.Duration) *RedisPriceStore {
	return &RedisPriceStore{cache: cache, ttl: ttl}
}

// LoadPrices implements contracts.PriceStore
func (s *RedisPriceStore) LoadPrices(ctx context.Context) (map[string]contracts.CachedPrice, error) {
	prices := make(map[string]contracts.CachedPrice)
	found, err := s.cache.Get(ctx, redis.PriceBookKey(), &prices)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrCacheCorrupt, err)
	}
	if !found {
		return map[string]contracts.CachedPrice{}, nil
	}
	return prices, nil
}

// SavePrices implements contracts.PriceStore
func (s *RedisPriceStore) SavePrices(ctx context.Context, prices map[string]contracts.CachedPrice) error {
	return s.cache.Set(ctx, redis.PriceBookKey(), prices, s.ttl)
}
