package screening

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jorseph/tw-stock/internal/contracts"
	"github.com/jorseph/tw-stock/pkg/logger"
)

// seriesFromROE builds a valid, contiguous series with the given ROE
// values, newest quarter first. Other fields are filled so the score step
// has something sensible to work with.
func seriesFromROE(roes ...float64) *contracts.ValuationSeries {
	q := contracts.Quarter{Year: 2024, Q: 4}
	records := make([]contracts.QuarterlyValuationRecord, 0, len(roes))
	for _, roe := range roes {
		records = append(records, contracts.QuarterlyValuationRecord{
			Quarter:    q,
			PERMean:    10,
			PERLow:     8,
			PERHigh:    12,
			PBRMedian:  roe / 10, // keeps ROE = (PBR/PER)×100 consistent
			RefClose:   100,
			ROE:        roe,
			BVPS:       100 / (roe / 10),
			EPS:        10,
			FairLow:    80,
			FairNormal: 100,
			FairHigh:   120,
			Valid:      true,
		})
		q = q.Prev()
	}
	return &contracts.ValuationSeries{StockNo: "2330", Records: records}
}

func newScreener(mutate func(*Config)) *Screener {
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return NewScreener(cfg, logger.Nop())
}

func TestScreen_Pass(t *testing.T) {
	s := newScreener(nil)

	cand, reason := s.Screen(seriesFromROE(20, 19, 18, 17), 60)
	require.Equal(t, contracts.RejectNone, reason)
	require.NotNil(t, cand)

	// priceDiscount = (80-60)/80 = 0.25, perDiscount = 0.1
	// score = (0.25×0.6 + 0.1×0.4) × 100 = 19
	assert.InDelta(t, 19.0, cand.Score, 1e-9)
	assert.InDelta(t, 0.75, cand.PriceToLow, 1e-9)
	assert.InDelta(t, 0.60, cand.PriceToNormal, 1e-9)
	assert.Equal(t, contracts.TrendUp, cand.ROETrend)
}

func TestScreen_CoverageRejection(t *testing.T) {
	s := newScreener(nil)

	// Too few quarters
	_, reason := s.Screen(seriesFromROE(20, 19, 18), 60)
	assert.Equal(t, contracts.RejectCoverage, reason)
}

func TestScreen_GapDisqualifiesEntirely(t *testing.T) {
	// A gap before the most recent quarter always disqualifies, no matter
	// how many total quarters exist.
	series := seriesFromROE(20, 19, 18, 17, 16, 15, 14, 13)
	series.Records = append(series.Records[:1], series.Records[2:]...) // remove 2024Q3

	s := newScreener(nil)
	_, reason := s.Screen(series, 60)
	assert.Equal(t, contracts.RejectCoverage, reason)
}

func TestScreen_InvalidRecordBreaksStreak(t *testing.T) {
	series := seriesFromROE(20, 19, 18, 17, 16)
	series.Records[2].Valid = false

	s := newScreener(nil)
	_, reason := s.Screen(series, 60)
	assert.Equal(t, contracts.RejectCoverage, reason)
}

func TestScreen_ROEFloor(t *testing.T) {
	series := seriesFromROE(15, 15, 15, 15)

	// Inclusive: ROE == floor is rejected
	s := newScreener(nil)
	_, reason := s.Screen(series, 60)
	assert.Equal(t, contracts.RejectLowROE, reason)

	// Strict variant: ROE == floor passes
	s = newScreener(func(c *Config) { c.ROEMinInclusive = false })
	_, reason = s.Screen(series, 60)
	assert.Equal(t, contracts.RejectNone, reason)
}

func TestScreen_MonotonicNeverVolatilityRejected(t *testing.T) {
	// Monotonic non-decreasing ROE must never trip the volatility filter,
	// independent of the configured ceiling.
	for _, ceiling := range []float64{0.0, 0.01, 0.20, 0.30} {
		s := newScreener(func(c *Config) { c.VolatilityMax = ceiling })
		_, reason := s.Screen(seriesFromROE(40, 30, 25, 20), 60)
		assert.NotEqual(t, contracts.RejectUnstableROE, reason,
			"ceiling %.2f", ceiling)
	}
}

func TestScreen_VolatilityRejection(t *testing.T) {
	// Non-monotonic with (max-min)/min = (24-16)/16 = 0.5 > 0.20
	series := seriesFromROE(20, 24, 16, 20)

	s := newScreener(nil)
	_, reason := s.Screen(series, 60)
	assert.Equal(t, contracts.RejectUnstableROE, reason)

	// Looser ceiling lets it through
	s = newScreener(func(c *Config) { c.VolatilityMax = 0.6 })
	_, reason = s.Screen(series, 60)
	assert.Equal(t, contracts.RejectNone, reason)
}

func TestScreen_StrictMonotonicToggle(t *testing.T) {
	// Tiny dip, volatility well under the ceiling
	series := seriesFromROE(20, 20.2, 20, 19.8)

	s := newScreener(nil)
	_, reason := s.Screen(series, 60)
	assert.Equal(t, contracts.RejectNone, reason)

	s = newScreener(func(c *Config) { c.StrictMonotonic = true })
	_, reason = s.Screen(series, 60)
	assert.Equal(t, contracts.RejectUnstableROE, reason)
}

func TestScreen_PriceRejection(t *testing.T) {
	s := newScreener(nil)
	_, reason := s.Screen(seriesFromROE(20, 19, 18, 17), 0)
	assert.Equal(t, contracts.RejectNoPrice, reason)
}

func TestScreen_NonPositiveScoreRejection(t *testing.T) {
	// Price far above the low band makes the composite negative.
	s := newScreener(nil)
	_, reason := s.Screen(seriesFromROE(20, 19, 18, 17), 200)
	assert.Equal(t, contracts.RejectNonPositiveScore, reason)
}

func TestScreen_RejectionOrder(t *testing.T) {
	// Coverage is checked before ROE: a short series with terrible ROE
	// must report coverage, not ROE.
	s := newScreener(nil)
	_, reason := s.Screen(seriesFromROE(1), 0)
	assert.Equal(t, contracts.RejectCoverage, reason)

	// ROE is checked before price.
	_, reason = s.Screen(seriesFromROE(5, 5, 5, 5), 0)
	assert.Equal(t, contracts.RejectLowROE, reason)
}

func TestScreen_ScoreClampedTo100(t *testing.T) {
	s := newScreener(nil)
	series := seriesFromROE(20, 19, 18, 17)
	for i := range series.Records {
		series.Records[i].PERMean = 0.5 // perDiscount = 2.0
	}

	cand, reason := s.Screen(series, 1)
	require.Equal(t, contracts.RejectNone, reason)
	assert.Equal(t, 100.0, cand.Score)
}

func TestConfigVariants(t *testing.T) {
	def := DefaultConfig()
	assert.Equal(t, 0.6, def.PriceWeight)
	assert.Equal(t, 0.4, def.PERWeight)
	assert.Equal(t, 0.20, def.VolatilityMax)
	assert.Equal(t, 4, def.MinQuarters)

	relaxed := RelaxedConfig()
	assert.Equal(t, 0.7, relaxed.PriceWeight)
	assert.Equal(t, 0.3, relaxed.PERWeight)
	assert.Equal(t, 0.30, relaxed.VolatilityMax)
	assert.Equal(t, 16, relaxed.MinQuarters)
}
