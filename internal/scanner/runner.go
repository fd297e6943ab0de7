// Package scanner drives the full-universe valuation scan: fetch,
// estimate and screen every stock in bounded-concurrency batches with a
// resumable checkpoint.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jorseph/tw-stock/internal/cache"
	"github.com/jorseph/tw-stock/internal/contracts"
	"github.com/jorseph/tw-stock/internal/estimator"
	"github.com/jorseph/tw-stock/internal/screening"
	"github.com/jorseph/tw-stock/pkg/config"
	"github.com/jorseph/tw-stock/pkg/logger"
)

// SeriesCache is the long-TTL valuation bundle cache seen by the runner
type SeriesCache interface {
	Get(ctx context.Context, stockNo string) (*contracts.ValuationSeries, bool)
	Set(ctx context.Context, series *contracts.ValuationSeries)
}

// noopSeriesCache is used when Redis is disabled
type noopSeriesCache struct{}

func (noopSeriesCache) Get(context.Context, string) (*contracts.ValuationSeries, bool) {
	return nil, false
}
func (noopSeriesCache) Set(context.Context, *contracts.ValuationSeries) {}

// Runner is the batch scan state machine:
// Idle → Running → {Completed | Cancelled | Failed} → Idle.
// 同一時間只允許一個掃描；第二個 start 直接回 busy，不排隊。
// ⭐ SSOT: 掃描流程控制只在這裡
type Runner struct {
	quotes      contracts.QuoteStore
	universe    contracts.UniverseSource
	checkpoints contracts.CheckpointStore
	prices      *cache.PriceCache
	bundles     SeriesCache
	screener    *screening.Screener
	ranker      *screening.Ranker
	cfg         config.ScanConfig
	logger      *logger.Logger

	mu         sync.Mutex
	running    bool
	cancelFlag atomic.Bool
	lastResult *contracts.ScanResult
	progressFn func(contracts.ProgressUpdate)
	completeFn func(*contracts.ScanResult)
	now        func() time.Time
}

// New creates a scan runner
func New(
	quotes contracts.QuoteStore,
	universe contracts.UniverseSource,
	checkpoints contracts.CheckpointStore,
	prices *cache.PriceCache,
	bundles SeriesCache,
	screener *screening.Screener,
	ranker *screening.Ranker,
	cfg config.ScanConfig,
	log *logger.Logger,
) *Runner {
	if bundles == nil {
		bundles = noopSeriesCache{}
	}
	return &Runner{
		quotes:      quotes,
		universe:    universe,
		checkpoints: checkpoints,
		prices:      prices,
		bundles:     bundles,
		screener:    screener,
		ranker:      ranker,
		cfg:         cfg,
		logger:      log.WithField("module", "scanner"),
		now:         time.Now,
	}
}

// WithClock overrides the time source. 測試用。
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// OnProgress registers the batch-boundary progress callback
func (r *Runner) OnProgress(fn func(contracts.ProgressUpdate)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progressFn = fn
}

// OnComplete registers a callback invoked with the terminal result of
// every run, whatever its status
func (r *Runner) OnComplete(fn func(*contracts.ScanResult)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completeFn = fn
}

// Status returns Running while a scan is active, Idle otherwise
func (r *Runner) Status() contracts.ScanStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return contracts.ScanRunning
	}
	return contracts.ScanIdle
}

// LastResult returns the outcome of the most recent run, nil before any
func (r *Runner) LastResult() *contracts.ScanResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastResult
}

// Cancel requests cooperative cancellation. Honored at the next batch
// boundary: in-flight fetches complete first so no partial cache writes
// are left dangling.
func (r *Runner) Cancel() {
	r.cancelFlag.Store(true)
}

// Scan runs a full universe scan and returns the ranked shortlist of at
// most resultCount candidates. Returns ErrScanInProgress when a run is
// already active.
func (r *Runner) Scan(ctx context.Context, resultCount int) (*contracts.ScanResult, error) {
	if !r.tryClaim() {
		return nil, contracts.ErrScanInProgress
	}

	result := r.run(ctx, resultCount)
	r.finish(result)

	if result.Status == contracts.ScanFailed {
		return result, fmt.Errorf("scan failed: %s", result.Err)
	}
	return result, nil
}

// ScanAsync claims the runner synchronously and launches the scan in the
// background. The busy check and the claim are one atomic step, so two
// racing starts cannot both be accepted. Callers follow the run through
// OnProgress, OnComplete or LastResult.
func (r *Runner) ScanAsync(ctx context.Context, resultCount int) error {
	if !r.tryClaim() {
		return contracts.ErrScanInProgress
	}

	go func() {
		result := r.run(ctx, resultCount)
		r.finish(result)
		if result.Status == contracts.ScanFailed {
			r.logger.WithField("error", result.Err).Error("Background scan failed")
		}
	}()

	return nil
}

// tryClaim takes the single running slot, false when already taken
func (r *Runner) tryClaim() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return false
	}
	r.running = true
	r.cancelFlag.Store(false)
	return true
}

// finish releases the slot, records the result and notifies observers
func (r *Runner) finish(result *contracts.ScanResult) {
	r.mu.Lock()
	r.running = false
	r.lastResult = result
	fn := r.completeFn
	r.mu.Unlock()

	if fn != nil {
		fn(result)
	}
}

func (r *Runner) run(ctx context.Context, resultCount int) *contracts.ScanResult {
	startedAt := r.now()
	result := &contracts.ScanResult{
		Status:    contracts.ScanFailed,
		StartedAt: startedAt,
	}

	r.prices.Load(ctx)

	progress, names, err := r.loadOrCreateProgress(ctx)
	if err != nil {
		result.Err = err.Error()
		result.FinishedAt = r.now()
		return result
	}
	result.Total = len(progress.Universe)

	r.logger.WithFields(map[string]interface{}{
		"total":  len(progress.Universe),
		"cursor": progress.Cursor,
	}).Info("Scan started")

	candidates := make([]contracts.ScoredCandidate, 0)
	processed := progress.Cursor
	skipped := 0

	for !progress.Done() {
		// 取消只在 batch 邊界生效
		if r.cancelFlag.Load() {
			result.Status = contracts.ScanCancelled
			result.Candidates = r.ranker.Rank(candidates, resultCount)
			result.Processed = processed
			result.Skipped = skipped
			result.FinishedAt = r.now()
			r.logger.WithField("cursor", progress.Cursor).Info("Scan cancelled")
			return result
		}

		batchStart := progress.Cursor
		batchEnd := batchStart + r.cfg.BatchSize
		if batchEnd > len(progress.Universe) {
			batchEnd = len(progress.Universe)
		}
		batch := progress.Universe[batchStart:batchEnd]

		outcomes := r.processBatch(ctx, batch, names)

		upstreamFailures := 0
		for _, out := range outcomes {
			switch {
			case out.err != nil && contracts.IsUpstreamError(out.err):
				upstreamFailures++
			case out.err != nil:
				skipped++
				r.logger.WithError(out.err).WithField("stock_no", out.stockNo).
					Debug("Stock skipped")
			case out.cand != nil:
				candidates = append(candidates, *out.cand)
			}
		}

		// 整個 batch 都被上游打槍 → 當作上游掛了，存檔後以可重試錯誤收場
		if upstreamFailures == len(batch) && len(batch) > 0 {
			if err := r.checkpoints.SaveProgress(ctx, progress); err != nil {
				r.logger.WithError(err).Error("Checkpoint save failed during escalation")
			}
			result.Err = (&contracts.UpstreamError{Op: "batch", Err: errors.New("all fetches failed")}).Error()
			result.Processed = processed
			result.Skipped = skipped
			result.FinishedAt = r.now()
			r.logger.WithField("cursor", batchStart).Error("Scan failed, upstream unavailable")
			return result
		}

		// 上游部分失敗視為個股軟失敗
		skipped += upstreamFailures
		processed += len(batch)
		progress.Cursor = batchEnd

		if err := r.checkpoints.SaveProgress(ctx, progress); err != nil {
			r.logger.WithError(err).Warn("Checkpoint save failed")
		}
		if err := r.prices.Save(ctx); err != nil {
			r.logger.WithError(err).Warn("Price cache save failed")
		}

		r.emitProgress(contracts.ProgressUpdate{
			Processed: processed,
			Total:     len(progress.Universe),
			Passed:    len(candidates),
		})

		if r.cfg.BatchDelay > 0 && !progress.Done() {
			select {
			case <-ctx.Done():
				result.Err = ctx.Err().Error()
				result.FinishedAt = r.now()
				return result
			case <-time.After(r.cfg.BatchDelay):
			}
		}
	}

	// Completed: clear the checkpoint so the next run starts fresh.
	// Price and bundle caches persist independently.
	if err := r.checkpoints.ClearProgress(ctx); err != nil {
		r.logger.WithError(err).Warn("Checkpoint clear failed")
	}

	result.Status = contracts.ScanCompleted
	result.Candidates = r.ranker.Rank(candidates, resultCount)
	result.Processed = processed
	result.Skipped = skipped
	result.FinishedAt = r.now()

	r.logger.WithFields(map[string]interface{}{
		"processed": processed,
		"passed":    len(candidates),
		"skipped":   skipped,
	}).Info("Scan completed")

	return result
}

// loadOrCreateProgress resumes a fresh checkpoint or pulls a new
// universe. Names are only known when the universe was pulled this run.
func (r *Runner) loadOrCreateProgress(ctx context.Context) (*contracts.ScanProgress, map[string]string, error) {
	progress, err := r.checkpoints.LoadProgress(ctx)
	if err != nil {
		r.logger.WithError(err).Warn("Checkpoint load failed, starting fresh")
		progress = nil
	}

	if progress != nil && !progress.Expired(r.now(), r.cfg.ProgressTTL) && !progress.Done() {
		r.logger.WithField("cursor", progress.Cursor).Info("Resuming scan from checkpoint")
		return progress, map[string]string{}, nil
	}

	stocks, err := r.universe.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("universe pull failed: %w", err)
	}
	if len(stocks) == 0 {
		return nil, nil, fmt.Errorf("universe is empty")
	}

	codes := make([]string, 0, len(stocks))
	names := make(map[string]string, len(stocks))
	for _, s := range stocks {
		codes = append(codes, s.StockNo)
		names[s.StockNo] = s.Name
	}

	progress = &contracts.ScanProgress{
		Universe:  codes,
		Cursor:    0,
		StartedAt: r.now(),
	}
	if err := r.checkpoints.SaveProgress(ctx, progress); err != nil {
		r.logger.WithError(err).Warn("Initial checkpoint save failed")
	}

	return progress, names, nil
}

// stockOutcome is the per-stock result inside one batch
type stockOutcome struct {
	stockNo string
	cand    *contracts.ScoredCandidate
	err     error
}

// processBatch screens one batch with bounded concurrency. Completion
// order within the batch is unspecified; the ranker's final ordering is
// the only guaranteed one.
func (r *Runner) processBatch(ctx context.Context, batch []string, names map[string]string) []stockOutcome {
	outcomes := make([]stockOutcome, len(batch))
	sem := make(chan struct{}, r.cfg.Concurrency)
	var wg sync.WaitGroup

	for i, stockNo := range batch {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, stockNo string) {
			defer wg.Done()
			defer func() { <-sem }()

			cand, err := r.processStock(ctx, stockNo, names[stockNo])
			outcomes[i] = stockOutcome{stockNo: stockNo, cand: cand, err: err}
		}(i, stockNo)
	}

	wg.Wait()
	return outcomes
}

// processStock fetches, estimates and screens a single stock.
// (nil, nil) means screened out, not an error.
func (r *Runner) processStock(ctx context.Context, stockNo, name string) (*contracts.ScoredCandidate, error) {
	stockCtx := ctx
	if r.cfg.StockTimeout > 0 {
		var cancel context.CancelFunc
		stockCtx, cancel = context.WithTimeout(ctx, r.cfg.StockTimeout)
		defer cancel()
	}

	series, found := r.bundles.Get(stockCtx, stockNo)
	if !found {
		observations, err := r.quotes.History(stockCtx, stockNo)
		if err != nil {
			return nil, err
		}
		series = &contracts.ValuationSeries{
			StockNo: stockNo,
			Name:    name,
			Records: estimator.Estimate(observations),
		}
		r.bundles.Set(stockCtx, series)
	}

	price, cached := r.prices.Get(stockNo)
	if !cached {
		fetched, err := r.quotes.LatestClose(stockCtx, stockNo)
		if err != nil {
			return nil, err
		}
		// Write-through: visible to readers now, persisted at the batch
		// boundary.
		r.prices.Set(stockNo, fetched)
		price = fetched
	}

	cand, reason := r.screener.Screen(series, price)
	if reason != contracts.RejectNone {
		r.logger.WithFields(map[string]interface{}{
			"stock_no": stockNo,
			"reason":   string(reason),
		}).Debug("Stock rejected")
		return nil, nil
	}

	if cand.Name == "" {
		cand.Name = name
	}
	return cand, nil
}

func (r *Runner) emitProgress(update contracts.ProgressUpdate) {
	r.mu.Lock()
	fn := r.progressFn
	r.mu.Unlock()

	if fn != nil {
		fn(update)
	}
}
