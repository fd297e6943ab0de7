package contracts

import (
	"errors"
	"fmt"
)

// Error taxonomy. Per-stock errors are soft (skip and continue), run-level
// errors checkpoint first and surface as retryable failures. 絕對不要混用。
var (
	// ErrDataUnavailable: no ratio history or no price for one stock.
	// Soft: skip the stock, the run continues.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrScanInProgress: a start request arrived while a run is active.
	// User-facing "busy", no state change, never queued.
	ErrScanInProgress = errors.New("scan already in progress")

	// ErrCacheCorrupt: persisted cache could not be decoded. Recovered by
	// treating the cache as empty; logged, never fatal.
	ErrCacheCorrupt = errors.New("cache corrupt")
)

// UpstreamError marks a run-level data source failure (outage or
// throttling). Escalates: progress is checkpointed at the batch start and
// the run fails retryable.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsUpstreamError reports whether err escalates to a run-level failure
func IsUpstreamError(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
