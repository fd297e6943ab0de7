package jobs

import (
	"context"
	"fmt"

	"github.com/jorseph/tw-stock/internal/contracts"
	"github.com/jorseph/tw-stock/pkg/logger"
)

// RosterStore reads the previously persisted stock roster
type RosterStore interface {
	LoadAll(ctx context.Context) ([]contracts.Stock, error)
}

// ObservationPruner removes the ratio history of a delisted stock
type ObservationPruner interface {
	DeleteByStock(ctx context.Context, stockNo string) error
}

// UniverseRefreshJob re-pulls the listed-company roster so newly listed
// and delisted stocks are picked up before the daily scan. Stocks that
// dropped off the roster get their observation ledger pruned.
type UniverseRefreshJob struct {
	source contracts.UniverseSource
	roster RosterStore
	pruner ObservationPruner
	logger *logger.Logger
}

// NewUniverseRefreshJob creates a new universe refresh job
func NewUniverseRefreshJob(source contracts.UniverseSource, roster RosterStore, pruner ObservationPruner, log *logger.Logger) *UniverseRefreshJob {
	return &UniverseRefreshJob{
		source: source,
		roster: roster,
		pruner: pruner,
		logger: log,
	}
}

// Name returns the job name
func (j *UniverseRefreshJob) Name() string {
	return "universe_refresh"
}

// Schedule runs at 08:30 Taipei time, before the market opens
func (j *UniverseRefreshJob) Schedule() string {
	return "0 30 8 * * 1-5"
}

// Run refreshes the stock roster and prunes delisted observations
func (j *UniverseRefreshJob) Run(ctx context.Context) error {
	j.logger.Info("Refreshing stock universe")

	before, err := j.roster.LoadAll(ctx)
	if err != nil {
		// 沒舊名單就不做下市清理, 名單照樣更新
		j.logger.WithError(err).Warn("Stored roster unreadable, skipping delisting cleanup")
		before = nil
	}

	stocks, err := j.source.List(ctx)
	if err != nil {
		return fmt.Errorf("universe refresh: %w", err)
	}

	j.pruneDelisted(ctx, before, stocks)

	j.logger.WithField("count", len(stocks)).Info("Stock universe refreshed")
	return nil
}

// pruneDelisted deletes observation history for stocks that were in the
// stored roster but are gone from the fresh one
func (j *UniverseRefreshJob) pruneDelisted(ctx context.Context, before, fresh []contracts.Stock) {
	if len(before) == 0 || len(fresh) == 0 {
		return
	}

	current := make(map[string]bool, len(fresh))
	for _, s := range fresh {
		current[s.StockNo] = true
	}

	for _, s := range before {
		if current[s.StockNo] {
			continue
		}
		if err := j.pruner.DeleteByStock(ctx, s.StockNo); err != nil {
			j.logger.WithError(err).WithField("stock_no", s.StockNo).
				Warn("Delisted observation cleanup failed")
			continue
		}
		j.logger.WithField("stock_no", s.StockNo).Info("Delisted stock pruned")
	}
}
