package contracts

import "time"

// ScanStatus is the state of the batch runner
type ScanStatus string

const (
	ScanIdle      ScanStatus = "idle"
	ScanRunning   ScanStatus = "running"
	ScanCompleted ScanStatus = "completed"
	ScanCancelled ScanStatus = "cancelled"
	ScanFailed    ScanStatus = "failed"
)

// ScanProgress is the persisted checkpoint of a universe scan.
// Cursor 永遠停在 batch 邊界，resume 不會重做已完成的工作。
type ScanProgress struct {
	Universe  []string  `json:"universe"` // stock codes, in scan order
	Cursor    int       `json:"cursor"`   // next unprocessed index
	StartedAt time.Time `json:"started_at"`
}

// Expired reports whether the checkpoint is too old to resume.
// 過期就重抓 universe 從頭開始。
func (p *ScanProgress) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(p.StartedAt) >= ttl
}

// Done reports whether every stock has been processed
func (p *ScanProgress) Done() bool {
	return p.Cursor >= len(p.Universe)
}

// ProgressUpdate is emitted at batch boundaries
type ProgressUpdate struct {
	Processed int `json:"processed"`
	Total     int `json:"total"`
	Passed    int `json:"passed"`
}

// ScanResult is the terminal outcome of one scan run
type ScanResult struct {
	Status     ScanStatus        `json:"status"`
	Candidates []ScoredCandidate `json:"candidates"`
	Processed  int               `json:"processed"`
	Total      int               `json:"total"`
	Skipped    int               `json:"skipped"` // soft failures
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Err        string            `json:"error,omitempty"`
}
