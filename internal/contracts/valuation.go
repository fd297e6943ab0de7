package contracts

import (
	"fmt"
	"time"
)

// RatioObservation is one daily BWIBBU sample for a stock.
// Immutable once fetched; the quote store is the source of truth.
type RatioObservation struct {
	StockNo   string    `json:"stock_no"`
	TradeDate time.Time `json:"trade_date"`
	PER       float64   `json:"per"` // 本益比, <= 0 means unavailable
	PBR       float64   `json:"pbr"` // 股價淨值比, <= 0 means unavailable
	Close     float64   `json:"close"`
}

// Quarter identifies a calendar fiscal quarter
type Quarter struct {
	Year int `json:"year"`
	Q    int `json:"q"` // 1..4
}

// QuarterOf returns the calendar quarter containing t
func QuarterOf(t time.Time) Quarter {
	return Quarter{
		Year: t.Year(),
		Q:    (int(t.Month())-1)/3 + 1,
	}
}

// Label formats the quarter as "2024Q1"
func (q Quarter) Label() string {
	return fmt.Sprintf("%dQ%d", q.Year, q.Q)
}

// Index returns a monotonically increasing ordinal, one step per quarter
func (q Quarter) Index() int {
	return q.Year*4 + (q.Q - 1)
}

// Prev returns the preceding quarter
func (q Quarter) Prev() Quarter {
	if q.Q == 1 {
		return Quarter{Year: q.Year - 1, Q: 4}
	}
	return Quarter{Year: q.Year, Q: q.Q - 1}
}

// QuarterlyValuationRecord is the derived valuation for one stock-quarter.
// Recomputed fresh on every run, never mutated after creation.
type QuarterlyValuationRecord struct {
	Quarter Quarter `json:"quarter"`

	// Representative ratios across the quarter's valid daily samples
	PERMean   float64 `json:"per_mean"`
	PERLow    float64 `json:"per_low"`  // 5th percentile
	PERHigh   float64 `json:"per_high"` // 95th percentile
	PBRMedian float64 `json:"pbr_median"`
	RefClose  float64 `json:"ref_close"` // close on the newest valid observation date

	// Derived fundamentals
	ROE  float64 `json:"roe"`  // (PBR/PER) × 100
	BVPS float64 `json:"bvps"` // RefClose / PBR
	EPS  float64 `json:"eps"`  // BVPS × ROE / 100

	// Fair-price band: EPS × {PERLow, PERMean, PERHigh}
	FairLow    float64 `json:"fair_low"`
	FairNormal float64 `json:"fair_normal"`
	FairHigh   float64 `json:"fair_high"`

	// Valid is false when any derived field is undefined (zero PER/PBR,
	// EPS <= 0). Invalid records are excluded downstream.
	Valid bool `json:"valid"`
}

// ValuationSeries is a most-recent-quarter-first sequence of records
// for one stock.
type ValuationSeries struct {
	StockNo string                     `json:"stock_no"`
	Name    string                     `json:"name,omitempty"`
	Records []QuarterlyValuationRecord `json:"records"`
}

// Latest returns the most recent record, valid or not
func (s *ValuationSeries) Latest() (QuarterlyValuationRecord, bool) {
	if len(s.Records) == 0 {
		return QuarterlyValuationRecord{}, false
	}
	return s.Records[0], true
}

// ValidStreak returns the leading run of valid records with no quarter
// gap, starting from the most recent record. A gap or invalid record
// before the newest quarter ends the streak; partial use of a broken
// series is not allowed.
func (s *ValuationSeries) ValidStreak() []QuarterlyValuationRecord {
	streak := make([]QuarterlyValuationRecord, 0, len(s.Records))
	for i, rec := range s.Records {
		if !rec.Valid {
			break
		}
		if i > 0 && streak[i-1].Quarter.Prev() != rec.Quarter {
			break
		}
		streak = append(streak, rec)
	}
	return streak
}

// HasCoverage reports whether the series meets the minimum count of
// valid, consecutive quarters ending at the newest quarter.
func (s *ValuationSeries) HasCoverage(minQuarters int) bool {
	return len(s.ValidStreak()) >= minQuarters
}

// CachedPrice is the last known price for a stock
type CachedPrice struct {
	StockNo    string    `json:"stock_no"`
	Price      float64   `json:"price"`
	CapturedAt time.Time `json:"captured_at"`
}

// Fresh reports whether the cached price is still inside its TTL
func (p CachedPrice) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(p.CapturedAt) < ttl
}
