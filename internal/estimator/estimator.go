// Package estimator derives quarterly valuation records from daily
// PER/PBR observations. Every function here is a pure transformation:
// identical inputs always yield identical outputs.
package estimator

import (
	"sort"

	"github.com/jorseph/tw-stock/internal/contracts"
)

// Plausibility bounds for daily samples. Out-of-range values are dropped,
// not clamped; clamping would drag the percentile band toward the bound.
const (
	maxPER = 100.0
	maxPBR = 10.0
)

// Estimate aggregates daily ratio observations into one valuation record
// per calendar quarter, most recent quarter first.
// ⭐ SSOT: 季度估值計算只在這裡
func Estimate(observations []contracts.RatioObservation) []contracts.QuarterlyValuationRecord {
	groups := make(map[contracts.Quarter][]contracts.RatioObservation)
	for _, obs := range observations {
		if !plausible(obs) {
			continue
		}
		q := contracts.QuarterOf(obs.TradeDate)
		groups[q] = append(groups[q], obs)
	}

	quarters := make([]contracts.Quarter, 0, len(groups))
	for q := range groups {
		quarters = append(quarters, q)
	}
	sort.Slice(quarters, func(i, j int) bool {
		return quarters[i].Index() > quarters[j].Index()
	})

	records := make([]contracts.QuarterlyValuationRecord, 0, len(quarters))
	for _, q := range quarters {
		records = append(records, aggregateQuarter(q, groups[q]))
	}

	return records
}

// plausible reports whether a daily sample is usable for aggregation
func plausible(obs contracts.RatioObservation) bool {
	if obs.PER <= 0 || obs.PER >= maxPER {
		return false
	}
	if obs.PBR <= 0 || obs.PBR >= maxPBR {
		return false
	}
	return true
}

// aggregateQuarter computes one valuation record from a quarter's samples
func aggregateQuarter(q contracts.Quarter, samples []contracts.RatioObservation) contracts.QuarterlyValuationRecord {
	pers := make([]float64, 0, len(samples))
	pbrs := make([]float64, 0, len(samples))

	// Reference close anchors BVPS to an actual traded price: the close
	// on the exact date of the newest valid observation in the quarter.
	var refClose float64
	var refDate int64
	for i, s := range samples {
		pers = append(pers, s.PER)
		pbrs = append(pbrs, s.PBR)
		if d := s.TradeDate.Unix(); i == 0 || d > refDate {
			refClose = s.Close
			refDate = d
		}
	}

	rec := contracts.QuarterlyValuationRecord{
		Quarter:   q,
		PERMean:   mean(pers),
		PERLow:    percentile(pers, 5),
		PERHigh:   percentile(pers, 95),
		PBRMedian: median(pbrs),
		RefClose:  refClose,
	}

	if rec.PERMean <= 0 || rec.PBRMedian <= 0 || rec.RefClose <= 0 {
		return rec // Valid stays false
	}

	rec.ROE = rec.PBRMedian / rec.PERMean * 100
	rec.BVPS = rec.RefClose / rec.PBRMedian
	rec.EPS = rec.BVPS * rec.ROE / 100
	if rec.EPS <= 0 {
		return rec
	}

	rec.FairLow = rec.EPS * rec.PERLow
	rec.FairNormal = rec.EPS * rec.PERMean
	rec.FairHigh = rec.EPS * rec.PERHigh
	rec.Valid = true

	return rec
}

// CurrentEstimate is a fair-price band anchored to a live price instead
// of a quarter's reference close.
type CurrentEstimate struct {
	Price      float64 `json:"price"`
	AvgROE     float64 `json:"avg_roe"` // trailing average over the window
	BVPS       float64 `json:"bvps"`
	EPS        float64 `json:"eps"`
	FairLow    float64 `json:"fair_low"`
	FairNormal float64 `json:"fair_normal"`
	FairHigh   float64 `json:"fair_high"`
	Quarters   int     `json:"quarters"` // window actually used
}

// EstimateCurrent derives a band for today from the trailing window of
// valid quarterly records and an externally supplied current price.
// EPS = 平均ROE × (成交價/目前PBR) / 100，band 用視窗平均的 PER 統計。
func EstimateCurrent(records []contracts.QuarterlyValuationRecord, currentPrice float64, window int) (CurrentEstimate, bool) {
	if currentPrice <= 0 || window < 1 {
		return CurrentEstimate{}, false
	}

	used := make([]contracts.QuarterlyValuationRecord, 0, window)
	for _, rec := range records {
		if !rec.Valid {
			continue
		}
		used = append(used, rec)
		if len(used) == window {
			break
		}
	}
	if len(used) == 0 {
		return CurrentEstimate{}, false
	}

	var sumROE, sumLow, sumMean, sumHigh float64
	for _, rec := range used {
		sumROE += rec.ROE
		sumLow += rec.PERLow
		sumMean += rec.PERMean
		sumHigh += rec.PERHigh
	}
	n := float64(len(used))

	latestPBR := used[0].PBRMedian
	if latestPBR <= 0 {
		return CurrentEstimate{}, false
	}

	est := CurrentEstimate{
		Price:    currentPrice,
		AvgROE:   sumROE / n,
		BVPS:     currentPrice / latestPBR,
		Quarters: len(used),
	}
	est.EPS = est.BVPS * est.AvgROE / 100
	if est.EPS <= 0 {
		return CurrentEstimate{}, false
	}

	est.FairLow = est.EPS * (sumLow / n)
	est.FairNormal = est.EPS * (sumMean / n)
	est.FairHigh = est.EPS * (sumHigh / n)

	return est, true
}
