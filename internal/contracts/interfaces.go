package contracts

import "context"

// QuoteStore is the pull-based source of ratio history and prices.
// Backed by TWSE remotely or by the local ledger; either way calls have
// per-call latency and may legitimately return nothing.
// ⭐ SSOT: 行情資料存取介面
type QuoteStore interface {
	// History returns all daily ratio observations for a stock, oldest
	// first. Returns ErrDataUnavailable when the stock has none.
	History(ctx context.Context, stockNo string) ([]RatioObservation, error)

	// LatestClose returns the most recent closing price.
	LatestClose(ctx context.Context, stockNo string) (float64, error)
}

// UniverseSource lists the scannable universe in stable order
type UniverseSource interface {
	List(ctx context.Context) ([]Stock, error)
}

// Stock is one listed security
type Stock struct {
	StockNo  string `json:"stock_no"`
	Name     string `json:"name"`
	Industry string `json:"industry"`
	Market   string `json:"market"`
}

// CheckpointStore persists scan progress across restarts
type CheckpointStore interface {
	// LoadProgress returns (nil, nil) when no checkpoint exists.
	LoadProgress(ctx context.Context) (*ScanProgress, error)
	SaveProgress(ctx context.Context, p *ScanProgress) error
	ClearProgress(ctx context.Context) error
}

// PriceStore persists the price cache across restarts
type PriceStore interface {
	// LoadPrices returns an empty map when nothing was persisted.
	LoadPrices(ctx context.Context) (map[string]CachedPrice, error)
	SavePrices(ctx context.Context, prices map[string]CachedPrice) error
}
