package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/jorseph/tw-stock/internal/contracts"
	"github.com/jorseph/tw-stock/internal/scanner"
	"github.com/jorseph/tw-stock/pkg/config"
	"github.com/jorseph/tw-stock/pkg/logger"
)

// ScanJob runs the full-universe valuation scan every trading day after
// the TWSE close
// ⭐ SSOT: 每日掃描排程只在這個 Job
type ScanJob struct {
	runner *scanner.Runner
	config config.ScanConfig
	logger *logger.Logger
}

// NewScanJob creates a new daily scan job
func NewScanJob(runner *scanner.Runner, cfg config.ScanConfig, log *logger.Logger) *ScanJob {
	return &ScanJob{
		runner: runner,
		config: cfg,
		logger: log,
	}
}

// Name returns the job name
func (j *ScanJob) Name() string {
	return "daily_scan"
}

// Schedule runs at 15:00 Taipei time, after the 13:30 close and the
// afternoon data publication
func (j *ScanJob) Schedule() string {
	return "0 0 15 * * 1-5"
}

// Run executes the scan
func (j *ScanJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled valuation scan")

	result, err := j.runner.Scan(ctx, j.config.ResultMax)
	if err != nil {
		// 手動掃描還在跑就跳過這輪, 不算失敗也不重試
		if errors.Is(err, contracts.ErrScanInProgress) {
			j.logger.Warn("Scan already in progress, skipping scheduled run")
			return nil
		}
		return fmt.Errorf("scheduled scan: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"processed":  result.Processed,
		"skipped":    result.Skipped,
		"candidates": len(result.Candidates),
	}).Info("Scheduled scan finished")

	return nil
}
