package screening

import (
	"github.com/jorseph/tw-stock/internal/contracts"
	"github.com/jorseph/tw-stock/pkg/config"
	"github.com/jorseph/tw-stock/pkg/logger"
)

// Screener applies the ordered rejection filters and computes the
// composite value score for a stock's quarterly series.
// ⭐ SSOT: 篩選邏輯只在這裡
type Screener struct {
	config Config
	logger *logger.Logger
}

// Config defines screening policy. 歷代 recommend 版本的門檻差異
// (權重 0.6/0.4 對 0.7/0.3、波動上限 20% 對 30%、<= 對 <) 都是設定值。
type Config struct {
	MinQuarters int // minimum consecutive valid quarters (coverage)
	TrendWindow int // quarters inspected for trend/volatility

	MinROE          float64 // latest-quarter ROE floor (%)
	ROEMinInclusive bool    // true: reject ROE <= MinROE; false: reject ROE < MinROE

	VolatilityMax   float64 // (max-min)/min ceiling
	StrictMonotonic bool    // non-decreasing ROE required regardless of volatility

	// Score weights, must sum to 1
	PriceWeight float64
	PERWeight   float64
}

// DefaultConfig is the short-horizon screen
func DefaultConfig() Config {
	return Config{
		MinQuarters:     4,
		TrendWindow:     4,
		MinROE:          15.0,
		ROEMinInclusive: true,
		VolatilityMax:   0.20,
		StrictMonotonic: false,
		PriceWeight:     0.6,
		PERWeight:       0.4,
	}
}

// RelaxedConfig is the long-horizon variant: more history required, but a
// looser volatility ceiling and PER-heavier weights.
func RelaxedConfig() Config {
	return Config{
		MinQuarters:     16,
		TrendWindow:     8,
		MinROE:          15.0,
		ROEMinInclusive: false,
		VolatilityMax:   0.30,
		StrictMonotonic: false,
		PriceWeight:     0.7,
		PERWeight:       0.3,
	}
}

// FromScanConfig builds screening policy from application config
func FromScanConfig(s config.ScanConfig) Config {
	return Config{
		MinQuarters:     s.MinQuarters,
		TrendWindow:     s.MinQuarters,
		MinROE:          s.MinROE,
		ROEMinInclusive: s.ROEMinInclusive,
		VolatilityMax:   s.ROEVolatilityMax,
		StrictMonotonic: s.StrictMonotonic,
		PriceWeight:     s.PriceWeight,
		PERWeight:       s.PERWeight,
	}
}

// NewScreener creates a new screener
func NewScreener(cfg Config, log *logger.Logger) *Screener {
	return &Screener{
		config: cfg,
		logger: log,
	}
}

// Screen evaluates one series against the rejection filters in order and
// returns the first failing reason; on pass it returns a scored candidate.
//
// The score is an intentionally heuristic composite of price discount and
// earnings-multiple discount, not a calibrated financial model.
func (s *Screener) Screen(series *contracts.ValuationSeries, currentPrice float64) (*contracts.ScoredCandidate, contracts.RejectReason) {
	// 1. Coverage: enough valid, gap-free quarters ending at the newest
	streak := series.ValidStreak()
	if len(streak) < s.config.MinQuarters {
		return nil, contracts.RejectCoverage
	}

	// 2. Latest-quarter ROE floor
	latest := streak[0]
	if s.roeBelowMinimum(latest.ROE) {
		return nil, contracts.RejectLowROE
	}

	// 3. Trend/volatility over the lookback window
	window := streak
	if len(window) > s.config.TrendWindow {
		window = window[:s.config.TrendWindow]
	}
	monotonic, volatility := roeTrend(window)
	if s.config.StrictMonotonic && !monotonic {
		return nil, contracts.RejectUnstableROE
	}
	if !monotonic && volatility > s.config.VolatilityMax {
		return nil, contracts.RejectUnstableROE
	}

	// 4. Usable current price
	if currentPrice <= 0 {
		return nil, contracts.RejectNoPrice
	}

	// 5. Positive composite score
	priceDiscount := (latest.FairLow - currentPrice) / latest.FairLow
	perDiscount := 1 / latest.PERMean
	score := (priceDiscount*s.config.PriceWeight + perDiscount*s.config.PERWeight) * 100
	if score <= 0 {
		return nil, contracts.RejectNonPositiveScore
	}
	if score > 100 {
		score = 100
	}

	cand := &contracts.ScoredCandidate{
		StockNo:       series.StockNo,
		Name:          series.Name,
		Price:         currentPrice,
		ROE:           latest.ROE,
		EPS:           latest.EPS,
		FairLow:       latest.FairLow,
		FairNormal:    latest.FairNormal,
		FairHigh:      latest.FairHigh,
		Score:         score,
		PriceToLow:    currentPrice / latest.FairLow,
		PriceToNormal: currentPrice / latest.FairNormal,
		ROETrend:      trendDirection(window),
		ROEVolatility: volatility,
	}

	s.logger.WithFields(map[string]interface{}{
		"stock_no": series.StockNo,
		"score":    score,
		"roe":      latest.ROE,
	}).Debug("Stock passed screening")

	return cand, contracts.RejectNone
}

func (s *Screener) roeBelowMinimum(roe float64) bool {
	if s.config.ROEMinInclusive {
		return roe <= s.config.MinROE
	}
	return roe < s.config.MinROE
}

// roeTrend reports whether ROE is monotonically non-decreasing over time
// and its volatility ratio (max-min)/min. The window is newest-first.
func roeTrend(window []contracts.QuarterlyValuationRecord) (monotonic bool, volatility float64) {
	monotonic = true
	minROE, maxROE := window[0].ROE, window[0].ROE

	for i := 0; i < len(window); i++ {
		roe := window[i].ROE
		if roe < minROE {
			minROE = roe
		}
		if roe > maxROE {
			maxROE = roe
		}
		// newest-first: the older record must not exceed the newer one
		if i > 0 && window[i].ROE > window[i-1].ROE {
			monotonic = false
		}
	}

	if minROE > 0 {
		volatility = (maxROE - minROE) / minROE
	}
	return monotonic, volatility
}

// trendDirection compares the newest ROE against the oldest in the window
func trendDirection(window []contracts.QuarterlyValuationRecord) contracts.TrendDirection {
	newest := window[0].ROE
	oldest := window[len(window)-1].ROE

	switch {
	case newest > oldest:
		return contracts.TrendUp
	case newest < oldest:
		return contracts.TrendDown
	default:
		return contracts.TrendFlat
	}
}
