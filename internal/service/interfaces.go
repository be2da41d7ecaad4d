// Package service defines the interfaces between the linkage engine and its
// persistence layer.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/unitlink/internal/matching"
	"github.com/Veraticus/unitlink/internal/model"
)

// ImportResult summarizes a decision import.
type ImportResult struct {
	// Applied decisions changed the stored state.
	Applied int
	// Unchanged decisions were older than, or identical to, the stored ones.
	Unchanged int
}

// RunRecord is one entry of the run history.
type RunRecord struct {
	StartedAt   time.Time
	FinishedAt  *time.Time
	Stats       *model.RunStats
	ID          string
	Fingerprint string
	Status      model.RunStatus
	Error       string
}

// DecisionStore persists the review decision log.
type DecisionStore interface {
	UpsertDecisions(ctx context.Context, decisions []model.ReviewDecision) (ImportResult, error)
	ListDecisions(ctx context.Context) ([]model.ReviewDecision, error)
	RejectedPairs(ctx context.Context) (map[model.PairKey]struct{}, error)
	DecisionCounts(ctx context.Context) (map[model.Decision]int, error)
}

// BlockStore keeps finished Tier 2 block results so an interrupted run can
// resume. Results are written once per (run key, block key) and never updated.
type BlockStore interface {
	SaveBlockResult(ctx context.Context, runKey string, result *matching.BlockResult) (bool, error)
	LoadBlockResults(ctx context.Context, runKey string) (map[string]matching.BlockResult, error)
	PruneBlockResults(ctx context.Context, keep string) (int64, error)
}

// RunRecorder keeps the run history.
type RunRecorder interface {
	StartRun(ctx context.Context, id, fingerprint string, startedAt time.Time) error
	FinishRun(ctx context.Context, stats *model.RunStats) error
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// Storage is everything the engine and the CLI need from persistence.
type Storage interface {
	DecisionStore
	BlockStore
	RunRecorder

	Migrate(ctx context.Context) error
	Close() error
}
