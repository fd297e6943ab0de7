package quote

import (
	"context"
	"errors"
	"time"

	"github.com/jorseph/tw-stock/internal/contracts"
	"github.com/jorseph/tw-stock/pkg/logger"
)

// RemoteStore implements contracts.QuoteStore against the TWSE endpoints,
// joining BWIBBU ratios with STOCK_DAY closes month by month.
type RemoteStore struct {
	client        *Client
	historyMonths int
	logger        *logger.Logger
	now           func() time.Time
}

// NewRemoteStore creates a remote quote store
func NewRemoteStore(client *Client, historyMonths int, log *logger.Logger) *RemoteStore {
	if historyMonths < 1 {
		historyMonths = 1
	}
	return &RemoteStore{
		client:        client,
		historyMonths: historyMonths,
		logger:        log,
		now:           time.Now,
	}
}

// History implements contracts.QuoteStore. Observations come back oldest
// first. A month with no data is skipped; a run where every month is
// empty returns ErrDataUnavailable.
func (s *RemoteStore) History(ctx context.Context, stockNo string) ([]contracts.RatioObservation, error) {
	now := s.now()
	observations := make([]contracts.RatioObservation, 0, s.historyMonths*20)

	for i := s.historyMonths - 1; i >= 0; i-- {
		month := now.AddDate(0, -i, 0)
		// 以每月一號查詢，TWSE 回整月資料
		month = time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)

		ratios, err := s.client.FetchMonthRatios(ctx, stockNo, month)
		if err != nil {
			if errors.Is(err, contracts.ErrDataUnavailable) {
				continue // 當月沒資料：可能尚未掛牌
			}
			return nil, err
		}

		closes, err := s.client.FetchMonthCloses(ctx, stockNo, month)
		if err != nil {
			if errors.Is(err, contracts.ErrDataUnavailable) {
				continue
			}
			return nil, err
		}

		for _, obs := range ratios {
			obs.Close = closes[obs.TradeDate.Format("2006-01-02")]
			observations = append(observations, obs)
		}
	}

	if len(observations) == 0 {
		return nil, contracts.ErrDataUnavailable
	}
	return observations, nil
}

// LatestClose implements contracts.QuoteStore. Falls back one month when
// the current month has no trading days yet.
func (s *RemoteStore) LatestClose(ctx context.Context, stockNo string) (float64, error) {
	now := s.now()

	for i := 0; i < 2; i++ {
		month := now.AddDate(0, -i, 0)
		month = time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)

		closes, err := s.client.FetchMonthCloses(ctx, stockNo, month)
		if err != nil {
			if errors.Is(err, contracts.ErrDataUnavailable) {
				continue
			}
			return 0, err
		}

		var latestDate string
		var latestClose float64
		for date, close := range closes {
			if date > latestDate {
				latestDate = date
				latestClose = close
			}
		}
		if latestClose > 0 {
			return latestClose, nil
		}
	}

	return 0, contracts.ErrDataUnavailable
}

// ledgerRefreshAfter: ledger data older than this triggers a remote
// refresh instead of serving the stale copy.
const ledgerRefreshAfter = 30 * 24 * time.Hour

// LedgerStore decorates the remote store with the local pgx ledger:
// reads hit the ledger first, remote results are written through.
// ⭐ SSOT: 行情的本地帳本策略只在這裡
type LedgerStore struct {
	repo   *Repository
	remote contracts.QuoteStore
	logger *logger.Logger
	now    func() time.Time
}

// NewLedgerStore creates a ledger-backed quote store
func NewLedgerStore(repo *Repository, remote contracts.QuoteStore, log *logger.Logger) *LedgerStore {
	return &LedgerStore{
		repo:   repo,
		remote: remote,
		logger: log,
		now:    time.Now,
	}
}

// History implements contracts.QuoteStore
func (s *LedgerStore) History(ctx context.Context, stockNo string) ([]contracts.RatioObservation, error) {
	local, err := s.repo.ObservationsByStock(ctx, stockNo)
	if err != nil {
		// 帳本壞掉不擋路，直接走遠端
		s.logger.WithError(err).Warn("Ledger read failed, falling back to remote")
		local = nil
	}

	if len(local) > 0 {
		newest := local[len(local)-1].TradeDate
		if s.now().Sub(newest) < ledgerRefreshAfter {
			return local, nil
		}
	}

	remote, err := s.remote.History(ctx, stockNo)
	if err != nil {
		// 遠端掛了但帳本有舊資料就先用舊的
		if len(local) > 0 {
			s.logger.WithError(err).WithField("stock_no", stockNo).
				Warn("Remote refresh failed, serving stale ledger data")
			return local, nil
		}
		return nil, err
	}

	if err := s.repo.UpsertObservations(ctx, remote); err != nil {
		s.logger.WithError(err).WithField("stock_no", stockNo).
			Warn("Ledger write-through failed")
	}

	return remote, nil
}

// LatestClose implements contracts.QuoteStore. Always remote; the price
// cache in front of this store is what bounds freshness lookups.
func (s *LedgerStore) LatestClose(ctx context.Context, stockNo string) (float64, error) {
	return s.remote.LatestClose(ctx, stockNo)
}
