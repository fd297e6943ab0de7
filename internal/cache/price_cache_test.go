package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jorseph/tw-stock/internal/contracts"
	"github.com/jorseph/tw-stock/pkg/logger"
)

// memStore is an in-memory PriceStore for tests
type memStore struct {
	prices  map[string]contracts.CachedPrice
	loadErr error
	saves   int
}

func (m *memStore) LoadPrices(_ context.Context) (map[string]contracts.CachedPrice, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.prices, nil
}

func (m *memStore) SavePrices(_ context.Context, prices map[string]contracts.CachedPrice) error {
	m.prices = prices
	m.saves++
	return nil
}

func TestPriceCache_SetThenGet(t *testing.T) {
	c := New(&memStore{}, 24*time.Hour, logger.Nop())

	c.Set("2330", 612.0)

	price, ok := c.Get("2330")
	require.True(t, ok)
	assert.Equal(t, 612.0, price)
}

func TestPriceCache_MissOnUnknown(t *testing.T) {
	c := New(&memStore{}, 24*time.Hour, logger.Nop())

	_, ok := c.Get("9999")
	assert.False(t, ok)
}

func TestPriceCache_TTLExpiryIsMissNotError(t *testing.T) {
	now := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	c := New(&memStore{}, 24*time.Hour, logger.Nop()).
		WithClock(func() time.Time { return now })

	c.Set("2330", 612.0)

	// Fresh just inside the TTL
	now = now.Add(24*time.Hour - time.Second)
	_, ok := c.Get("2330")
	assert.True(t, ok)

	// Stale once the TTL elapses, even though the entry is still stored
	now = now.Add(2 * time.Second)
	_, ok = c.Get("2330")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len(), "stale entry stays until overwritten")
}

func TestPriceCache_LoadRestoresSnapshot(t *testing.T) {
	captured := time.Now()
	store := &memStore{prices: map[string]contracts.CachedPrice{
		"2330": {StockNo: "2330", Price: 612, CapturedAt: captured},
	}}

	c := New(store, 24*time.Hour, logger.Nop())
	c.Load(context.Background())

	price, ok := c.Get("2330")
	require.True(t, ok)
	assert.Equal(t, 612.0, price)
}

func TestPriceCache_CorruptStoreYieldsEmptyCache(t *testing.T) {
	store := &memStore{loadErr: contracts.ErrCacheCorrupt}

	c := New(store, 24*time.Hour, logger.Nop())
	c.Load(context.Background()) // must not panic or return an error

	assert.Equal(t, 0, c.Len())
}

func TestPriceCache_LoadErrorIsNotFatal(t *testing.T) {
	store := &memStore{loadErr: errors.New("connection refused")}

	c := New(store, 24*time.Hour, logger.Nop())
	c.Load(context.Background())

	assert.Equal(t, 0, c.Len())
}

func TestPriceCache_SavePersistsSnapshot(t *testing.T) {
	store := &memStore{}
	c := New(store, 24*time.Hour, logger.Nop())

	c.Set("2330", 612.0)
	c.Set("2412", 123.5)
	require.NoError(t, c.Save(context.Background()))

	assert.Equal(t, 1, store.saves)
	assert.Len(t, store.prices, 2)
	assert.Equal(t, 612.0, store.prices["2330"].Price)
}
