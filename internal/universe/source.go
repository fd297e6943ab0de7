package universe

import (
	"context"
	"sort"

	"github.com/jorseph/tw-stock/internal/contracts"
	"github.com/jorseph/tw-stock/pkg/logger"
)

// Source combines the remote fetcher with the repository: fresh listings
// are persisted, and the stored list serves as fallback when every remote
// source is down. Output order is stable (by stock number).
type Source struct {
	fetcher *Fetcher
	repo    *Repository
	logger  *logger.Logger
}

// NewSource creates a universe source
func NewSource(fetcher *Fetcher, repo *Repository, log *logger.Logger) *Source {
	return &Source{
		fetcher: fetcher,
		repo:    repo,
		logger:  log,
	}
}

// List implements contracts.UniverseSource
func (s *Source) List(ctx context.Context) ([]contracts.Stock, error) {
	stocks, err := s.fetcher.List(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Remote universe fetch failed, using stored list")
		return s.repo.LoadAll(ctx)
	}

	sort.Slice(stocks, func(i, j int) bool {
		return stocks[i].StockNo < stocks[j].StockNo
	})

	if err := s.repo.Save(ctx, stocks); err != nil {
		// 存不進去不影響這次掃描
		s.logger.WithError(err).Warn("Stock list persistence failed")
	}

	s.logger.WithField("count", len(stocks)).Info("Universe refreshed")
	return stocks, nil
}
