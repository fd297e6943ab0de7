package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jorseph/tw-stock/internal/contracts"
	"github.com/jorseph/tw-stock/pkg/logger"
)

type fakeSource struct {
	stocks []contracts.Stock
	err    error
}

func (f *fakeSource) List(_ context.Context) ([]contracts.Stock, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.stocks, nil
}

type fakeRoster struct {
	stocks []contracts.Stock
	err    error
}

func (f *fakeRoster) LoadAll(_ context.Context) ([]contracts.Stock, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.stocks, nil
}

type fakePruner struct {
	deleted []string
	fail    map[string]bool
}

func (f *fakePruner) DeleteByStock(_ context.Context, stockNo string) error {
	if f.fail[stockNo] {
		return errors.New("delete failed")
	}
	f.deleted = append(f.deleted, stockNo)
	return nil
}

func roster(codes ...string) []contracts.Stock {
	out := make([]contracts.Stock, 0, len(codes))
	for _, c := range codes {
		out = append(out, contracts.Stock{StockNo: c})
	}
	return out
}

func TestUniverseRefreshJob_PrunesDelistedStocks(t *testing.T) {
	pruner := &fakePruner{}
	job := NewUniverseRefreshJob(
		&fakeSource{stocks: roster("1101", "1103")},
		&fakeRoster{stocks: roster("1101", "1102", "1103")},
		pruner,
		logger.Nop(),
	)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []string{"1102"}, pruner.deleted, "only the stock gone from the fresh roster is pruned")
}

func TestUniverseRefreshJob_RosterLoadFailureSkipsPruning(t *testing.T) {
	pruner := &fakePruner{}
	job := NewUniverseRefreshJob(
		&fakeSource{stocks: roster("1101")},
		&fakeRoster{err: errors.New("db down")},
		pruner,
		logger.Nop(),
	)

	require.NoError(t, job.Run(context.Background()), "refresh still succeeds without the stored roster")
	assert.Empty(t, pruner.deleted)
}

func TestUniverseRefreshJob_EmptyFreshRosterSkipsPruning(t *testing.T) {
	pruner := &fakePruner{}
	job := NewUniverseRefreshJob(
		&fakeSource{},
		&fakeRoster{stocks: roster("1101", "1102")},
		pruner,
		logger.Nop(),
	)

	// 來源回空名單時不能把整個帳本砍光
	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, pruner.deleted)
}

func TestUniverseRefreshJob_PruneFailureDoesNotAbortRefresh(t *testing.T) {
	pruner := &fakePruner{fail: map[string]bool{"1102": true}}
	job := NewUniverseRefreshJob(
		&fakeSource{stocks: roster("1101")},
		&fakeRoster{stocks: roster("1101", "1102", "1103")},
		pruner,
		logger.Nop(),
	)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []string{"1103"}, pruner.deleted)
}

func TestUniverseRefreshJob_SourceFailurePropagates(t *testing.T) {
	job := NewUniverseRefreshJob(
		&fakeSource{err: errors.New("twse unreachable")},
		&fakeRoster{},
		&fakePruner{},
		logger.Nop(),
	)

	assert.Error(t, job.Run(context.Background()))
}
