package contracts

// TrendDirection describes the ROE direction over the lookback window
type TrendDirection string

const (
	TrendUp   TrendDirection = "up"
	TrendFlat TrendDirection = "flat"
	TrendDown TrendDirection = "down"
)

// RejectReason classifies why a stock was dropped by the screener.
// 第一個不過的條件就回傳，後面不再檢查。
type RejectReason string

const (
	RejectNone             RejectReason = ""
	RejectCoverage         RejectReason = "coverage_insufficient"
	RejectLowROE           RejectReason = "roe_below_minimum"
	RejectUnstableROE      RejectReason = "roe_trend_unstable"
	RejectNoPrice          RejectReason = "price_unavailable"
	RejectNonPositiveScore RejectReason = "score_not_positive"
)

// ScoredCandidate is one screening survivor with its composite score.
// Ephemeral: produced per run, not persisted beyond the run's output.
type ScoredCandidate struct {
	StockNo string  `json:"stock_no"`
	Name    string  `json:"name,omitempty"`
	Price   float64 `json:"price"`

	// Latest-quarter fundamentals
	ROE float64 `json:"roe"`
	EPS float64 `json:"eps"`

	// Fair-price band
	FairLow    float64 `json:"fair_low"`
	FairNormal float64 `json:"fair_normal"`
	FairHigh   float64 `json:"fair_high"`

	// Composite value score, 0..100. Heuristic, not a calibrated model.
	Score float64 `json:"score"`

	// Diagnostics
	PriceToLow    float64        `json:"price_to_low"`    // price / fair_low
	PriceToNormal float64        `json:"price_to_normal"` // price / fair_normal
	ROETrend      TrendDirection `json:"roe_trend"`
	ROEVolatility float64        `json:"roe_volatility"` // (max-min)/min over the window
	Rank          int            `json:"rank,omitempty"`
}
