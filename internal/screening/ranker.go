package screening

import (
	"sort"

	"github.com/jorseph/tw-stock/internal/contracts"
	"github.com/jorseph/tw-stock/pkg/logger"
)

// MaxResults caps the recommendation list so the output stays reviewable
const MaxResults = 15

// Ranker orders passing candidates into the final shortlist
// ⭐ SSOT: 排名邏輯只在這裡
type Ranker struct {
	logger *logger.Logger
}

// NewRanker creates a new ranker
func NewRanker(log *logger.Logger) *Ranker {
	return &Ranker{logger: log}
}

// Rank sorts candidates by score descending; equal scores are broken by
// price-to-normal ascending (prefer the stock trading furthest below its
// normal fair price). The sort is stable for reproducibility. n is
// clamped to [1, MaxResults].
func (r *Ranker) Rank(candidates []contracts.ScoredCandidate, n int) []contracts.ScoredCandidate {
	if n < 1 {
		n = 1
	}
	if n > MaxResults {
		n = MaxResults
	}

	ranked := make([]contracts.ScoredCandidate, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].PriceToNormal < ranked[j].PriceToNormal
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	if len(ranked) > 0 {
		r.logger.WithFields(map[string]interface{}{
			"candidates": len(candidates),
			"returned":   len(ranked),
			"top_stock":  ranked[0].StockNo,
			"top_score":  ranked[0].Score,
		}).Info("Ranking completed")
	}

	return ranked
}
