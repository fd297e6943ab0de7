package estimator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jorseph/tw-stock/internal/contracts"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func obs(date time.Time, per, pbr, close float64) contracts.RatioObservation {
	return contracts.RatioObservation{
		StockNo:   "2330",
		TradeDate: date,
		PER:       per,
		PBR:       pbr,
		Close:     close,
	}
}

func TestEstimate_SingleQuarter(t *testing.T) {
	// PER [8,10,12,9]: mean 9.75, p5 8.15, p95 11.7 (linear interpolation).
	// PBR median 1.2, reference close 50 on the newest date.
	input := []contracts.RatioObservation{
		obs(day(2024, time.January, 5), 8, 1.1, 48),
		obs(day(2024, time.January, 12), 10, 1.2, 49),
		obs(day(2024, time.February, 3), 12, 1.3, 51),
		obs(day(2024, time.March, 15), 9, 1.2, 50),
	}

	records := Estimate(input)
	require.Len(t, records, 1)

	rec := records[0]
	assert.True(t, rec.Valid)
	assert.Equal(t, contracts.Quarter{Year: 2024, Q: 1}, rec.Quarter)
	assert.InDelta(t, 9.75, rec.PERMean, 1e-9)
	assert.InDelta(t, 8.15, rec.PERLow, 1e-9)
	assert.InDelta(t, 11.7, rec.PERHigh, 1e-9)
	assert.InDelta(t, 1.2, rec.PBRMedian, 1e-9)
	assert.InDelta(t, 50, rec.RefClose, 1e-9)

	// ROE = (1.2/9.75)×100 ≈ 12.31%
	assert.InDelta(t, 12.3077, rec.ROE, 1e-3)
	// BVPS = 50/1.2 ≈ 41.67
	assert.InDelta(t, 41.6667, rec.BVPS, 1e-3)
	// EPS = BVPS × ROE/100 = 50/9.75 ≈ 5.128
	assert.InDelta(t, 5.1282, rec.EPS, 1e-3)

	// Fair band = EPS × {PERLow, PERMean, PERHigh}
	assert.InDelta(t, rec.EPS*8.15, rec.FairLow, 1e-9)
	assert.InDelta(t, 50.0, rec.FairNormal, 1e-3) // EPS × mean = RefClose
	assert.InDelta(t, rec.EPS*11.7, rec.FairHigh, 1e-9)
}

func TestEstimate_ROELaw(t *testing.T) {
	// For plausible inputs, ROE must equal (PBR/PER)×100 exactly.
	input := []contracts.RatioObservation{
		obs(day(2024, time.April, 1), 20, 2.5, 100),
	}

	records := Estimate(input)
	require.Len(t, records, 1)
	assert.Equal(t, 2.5/20*100, records[0].ROE)
}

func TestEstimate_DropsImplausibleSamples(t *testing.T) {
	tests := []struct {
		name string
		per  float64
		pbr  float64
	}{
		{"zero PER", 0, 1.2},
		{"negative PER", -3, 1.2},
		{"PER at upper bound", 100, 1.2},
		{"zero PBR", 10, 0},
		{"PBR at upper bound", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := []contracts.RatioObservation{
				obs(day(2024, time.January, 2), tt.per, tt.pbr, 50),
			}
			assert.Empty(t, Estimate(input))
		})
	}
}

func TestEstimate_DroppedNotClamped(t *testing.T) {
	// An extreme outlier must not distort the percentile band.
	input := []contracts.RatioObservation{
		obs(day(2024, time.January, 2), 10, 1.0, 50),
		obs(day(2024, time.January, 3), 11, 1.0, 50),
		obs(day(2024, time.January, 4), 500, 1.0, 50), // dropped, not clamped to 100
	}

	records := Estimate(input)
	require.Len(t, records, 1)
	assert.InDelta(t, 10.5, records[0].PERMean, 1e-9)
	assert.LessOrEqual(t, records[0].PERHigh, 11.0)
}

func TestEstimate_MostRecentQuarterFirst(t *testing.T) {
	input := []contracts.RatioObservation{
		obs(day(2023, time.November, 1), 10, 1.0, 50),
		obs(day(2024, time.February, 1), 10, 1.0, 50),
		obs(day(2023, time.August, 1), 10, 1.0, 50),
	}

	records := Estimate(input)
	require.Len(t, records, 3)
	assert.Equal(t, contracts.Quarter{Year: 2024, Q: 1}, records[0].Quarter)
	assert.Equal(t, contracts.Quarter{Year: 2023, Q: 4}, records[1].Quarter)
	assert.Equal(t, contracts.Quarter{Year: 2023, Q: 3}, records[2].Quarter)
}

func TestEstimate_Deterministic(t *testing.T) {
	input := []contracts.RatioObservation{
		obs(day(2024, time.January, 5), 8, 1.1, 48),
		obs(day(2024, time.February, 3), 12, 1.3, 51),
		obs(day(2024, time.May, 10), 9, 1.2, 52),
		obs(day(2024, time.June, 20), 11, 1.4, 55),
	}

	first := Estimate(input)
	second := Estimate(input)
	assert.Equal(t, first, second)
}

func TestEstimate_RefCloseAnchorsToNewestObservation(t *testing.T) {
	// Reference close is the close on the newest valid date, not an average.
	input := []contracts.RatioObservation{
		obs(day(2024, time.March, 28), 10, 1.0, 77),
		obs(day(2024, time.January, 2), 10, 1.0, 50),
		obs(day(2024, time.February, 14), 10, 1.0, 60),
	}

	records := Estimate(input)
	require.Len(t, records, 1)
	assert.Equal(t, 77.0, records[0].RefClose)
}

func TestEstimateCurrent(t *testing.T) {
	base := Estimate([]contracts.RatioObservation{
		obs(day(2024, time.January, 5), 10, 1.2, 48),
		obs(day(2024, time.April, 5), 10, 1.2, 50),
		obs(day(2024, time.July, 5), 10, 1.2, 52),
		obs(day(2024, time.October, 5), 10, 1.2, 54),
	})
	require.Len(t, base, 4)

	est, ok := EstimateCurrent(base, 60, 4)
	require.True(t, ok)
	assert.Equal(t, 4, est.Quarters)
	// Constant ratios: avg ROE = 12%, BVPS = 60/1.2 = 50, EPS = 6.
	assert.InDelta(t, 12.0, est.AvgROE, 1e-9)
	assert.InDelta(t, 50.0, est.BVPS, 1e-9)
	assert.InDelta(t, 6.0, est.EPS, 1e-9)
	assert.InDelta(t, 60.0, est.FairNormal, 1e-9)
}

func TestEstimateCurrent_RejectsBadInput(t *testing.T) {
	base := Estimate([]contracts.RatioObservation{
		obs(day(2024, time.January, 5), 10, 1.2, 48),
	})

	_, ok := EstimateCurrent(base, 0, 4)
	assert.False(t, ok, "non-positive price must be rejected")

	_, ok = EstimateCurrent(nil, 50, 4)
	assert.False(t, ok, "empty history must be rejected")
}
