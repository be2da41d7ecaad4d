package model

import "time"

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

// Run status constants.
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Score range labels used by the confidence histogram.
const (
	ScoreRange95to100 = "0.95-1.00"
	ScoreRange90to95  = "0.90-0.95"
	ScoreRange85to90  = "0.85-0.90"
	ScoreRange75to85  = "0.75-0.85"
)

// TierStats counts candidates produced and accepted by one tier.
type TierStats struct {
	Candidates int `json:"candidates"`
	Accepted   int `json:"accepted"`
}

// ReviewStats summarizes the reconciliation of review candidates.
type ReviewStats struct {
	QueueSize int `json:"queue_size"`
	Approved  int `json:"approved"`
	Rejected  int `json:"rejected"`
	Pending   int `json:"pending"`
	Conflicts int `json:"conflicts"`
}

// BlockStats counts blocking and scoring work.
type BlockStats struct {
	Total   int `json:"total"`
	Scored  int `json:"scored"`
	Skipped int `json:"skipped"`
	Resumed int `json:"resumed"`
}

// RunStats is the summary of one pipeline run. On failure it holds whatever
// was computed before the error.
type RunStats struct {
	StartedAt            time.Time                `json:"started_at"`
	FinishedAt           time.Time                `json:"finished_at"`
	ScoreRanges          map[string]int           `json:"score_ranges"`
	Buckets              map[ConfidenceBucket]int `json:"confidence_buckets"`
	ExcludedByReason     map[ExcludeReason]int    `json:"excluded_by_reason"`
	UnmatchedByReason    map[UnmatchReason]int    `json:"unmatched_by_reason"`
	RunID                string                   `json:"run_id"`
	Fingerprint          string                   `json:"fingerprint"`
	Status               RunStatus                `json:"status"`
	Error                string                   `json:"error,omitempty"`
	Blocks               BlockStats               `json:"blocks"`
	Review               ReviewStats              `json:"review"`
	Deterministic        TierStats                `json:"deterministic"`
	Fuzzy                TierStats                `json:"fuzzy"`
	Manual               TierStats                `json:"manual"`
	OwnersTotal          int                      `json:"owners_total"`
	TransactionsTotal    int                      `json:"transactions_total"`
	OwnersClean          int                      `json:"owners_clean"`
	TransactionsClean    int                      `json:"transactions_clean"`
	Matched              int                      `json:"matched"`
	OwnerMatchRate       float64                  `json:"owner_match_rate"`
	TransactionMatchRate float64                  `json:"transaction_match_rate"`
	AverageConfidence    float64                  `json:"average_confidence"`
	DurationSeconds      float64                  `json:"duration_seconds"`
}

// NewRunStats returns stats with all maps allocated.
func NewRunStats(runID string, started time.Time) *RunStats {
	return &RunStats{
		RunID:             runID,
		StartedAt:         started,
		Status:            RunRunning,
		ScoreRanges:       map[string]int{},
		Buckets:           map[ConfidenceBucket]int{},
		ExcludedByReason:  map[ExcludeReason]int{},
		UnmatchedByReason: map[UnmatchReason]int{},
	}
}

// ScoreRangeFor returns the histogram label for a confidence, or "" below 0.75.
func ScoreRangeFor(score float64) string {
	switch {
	case score >= 0.95:
		return ScoreRange95to100
	case score >= 0.90:
		return ScoreRange90to95
	case score >= 0.85:
		return ScoreRange85to90
	case score >= 0.75:
		return ScoreRange75to85
	}
	return ""
}
