// Package engine runs the linkage pipeline: normalization, the deterministic
// and fuzzy tiers, review reconciliation and one-to-one assignment.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/unitlink/internal/common"
	"github.com/Veraticus/unitlink/internal/config"
	"github.com/Veraticus/unitlink/internal/matching"
	"github.com/Veraticus/unitlink/internal/model"
	"github.com/Veraticus/unitlink/internal/normalize"
	"github.com/Veraticus/unitlink/internal/review"
	"github.com/Veraticus/unitlink/internal/service"
)

// Input is one snapshot of both record sets.
type Input struct {
	Owners       *model.RawTable
	Transactions *model.RawTable
}

// Result holds every output of a run.
type Result struct {
	Stats                 *model.RunStats
	Matches               []model.MatchCandidate
	UnmatchedOwners       []model.UnmatchedOwner
	UnmatchedTransactions []model.UnmatchedTransaction
	ReviewQueue           []model.ReviewItem
	Excluded              []model.ExcludedRow
}

// Engine orchestrates a linkage run.
type Engine struct {
	store    service.Storage
	progress Progress
	now      func() time.Time
	norm     *normalize.Normalizer
	cfg      config.MatchingConfig
}

// Option configures an Engine.
type Option func(*Engine)

// WithProgress reports block scoring progress to p.
func WithProgress(p Progress) Option {
	return func(e *Engine) {
		if p != nil {
			e.progress = p
		}
	}
}

// WithClock overrides the time source used for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New validates cfg and builds an Engine. store may be nil, in which case the
// run has no decision log, no resume and no history.
func New(cfg *config.Config, store service.Storage, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	norm, err := normalize.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		store:    store,
		progress: noopProgress{},
		now:      time.Now,
		norm:     norm,
		cfg:      cfg.Matching,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run executes the pipeline over one snapshot. On failure the returned Result
// still carries the statistics gathered so far.
func (e *Engine) Run(ctx context.Context, in Input) (*Result, error) {
	if in.Owners == nil || in.Transactions == nil {
		return nil, fmt.Errorf("both record sets are required: %w", common.ErrEmptyInput)
	}

	stats := model.NewRunStats(uuid.NewString(), e.now())
	res := &Result{Stats: stats}

	if e.store != nil {
		if err := e.store.StartRun(ctx, stats.RunID, "", stats.StartedAt); err != nil {
			return res, fmt.Errorf("failed to record run start: %w", err)
		}
	}

	err := e.run(ctx, in, res)
	e.finish(ctx, stats, err)
	return res, err
}

func (e *Engine) run(ctx context.Context, in Input, res *Result) error {
	stats := res.Stats

	// Mapping problems must surface before any row is touched.
	if err := e.norm.CheckHeaders(in.Owners, in.Transactions); err != nil {
		return err
	}

	owners, ownerExcluded, err := e.norm.Owners(in.Owners)
	if err != nil {
		return err
	}
	txns, txnExcluded, err := e.norm.Transactions(in.Transactions)
	if err != nil {
		return err
	}
	res.Excluded = append(ownerExcluded, txnExcluded...)
	stats.OwnersTotal = len(in.Owners.Rows)
	stats.TransactionsTotal = len(in.Transactions.Rows)
	stats.OwnersClean = len(owners)
	stats.TransactionsClean = len(txns)
	for _, ex := range res.Excluded {
		stats.ExcludedByReason[ex.Reason]++
	}

	rejected, decisions, err := e.loadDecisions(ctx)
	if err != nil {
		return err
	}
	runKey := Fingerprint(owners, txns, e.cfg, rejected)
	stats.Fingerprint = runKey

	slog.Info("Starting linkage run",
		"run_id", stats.RunID,
		"run_key", runKey,
		"owners", len(owners),
		"transactions", len(txns),
		"excluded", len(res.Excluded),
		"rejected_pairs", len(rejected))

	// Tier 1
	det, err := matching.NewDeterministicMatcher(e.cfg.AreaTolerance, e.cfg.Shards, e.cfg.Workers).
		Match(ctx, owners, txns)
	if err != nil {
		return err
	}
	assigner := matching.NewAssigner()
	detAccepted, detDemoted := assigner.Assign(det.Candidates)
	stats.Deterministic = model.TierStats{Candidates: len(det.Candidates), Accepted: len(detAccepted)}

	// Losers of Tier 1 assignment stay eligible for the fuzzy tier.
	residualOwners := unclaimedOwners(owners, assigner)
	residualTxns := unclaimedTransactions(txns, assigner)

	// Tier 2
	blocking := matching.BuildBlocks(residualOwners, residualTxns)
	stats.Blocks.Total = len(blocking.Blocks)
	stats.Blocks.Skipped = skippedBlockKeys(blocking)

	blockResults, err := e.scoreBlocks(ctx, blocking.Blocks, rejected, runKey, stats)
	if err != nil {
		return err
	}

	var (
		fuzzyHigh, reviewCands []model.MatchCandidate
		skippedRejected        int
	)
	for i := range blockResults {
		fuzzyHigh = append(fuzzyHigh, blockResults[i].Accepted...)
		reviewCands = append(reviewCands, blockResults[i].Review...)
		skippedRejected += blockResults[i].Skipped
	}

	// Tier 3
	rec := review.Reconcile(reviewCands, decisions)
	accepted, demoted := assigner.Assign(append(append([]model.MatchCandidate{}, fuzzyHigh...), rec.Approved...))
	for _, c := range accepted {
		switch c.MatchType {
		case model.MatchFuzzy:
			stats.Fuzzy.Accepted++
		case model.MatchManual:
			stats.Manual.Accepted++
		}
	}
	stats.Fuzzy.Candidates = len(fuzzyHigh) + len(reviewCands)
	stats.Manual.Candidates = len(rec.Approved)

	var pending []model.MatchCandidate
	for i := range rec.Pending {
		if !assigner.Touches(&rec.Pending[i]) {
			pending = append(pending, rec.Pending[i])
		}
	}
	stats.Review = model.ReviewStats{
		QueueSize: len(pending),
		Approved:  len(rec.Approved),
		Rejected:  len(rec.Rejected) + skippedRejected,
		Pending:   len(pending),
		Conflicts: rec.Conflicts,
	}

	res.Matches = assigner.Matches()
	ownersByID, txnsByID := indexRecords(owners, txns)
	res.ReviewQueue = reviewItems(pending, ownersByID, txnsByID)

	lost := append(append([]model.MatchCandidate{}, detDemoted...), demoted...)
	res.UnmatchedOwners, res.UnmatchedTransactions = classifyResidual(owners, txns, assigner, blocking, pending, lost)
	summarize(stats, res)

	if e.store != nil {
		if n, err := e.store.PruneBlockResults(ctx, runKey); err != nil {
			slog.Warn("Failed to prune stale block results", "error", err)
		} else if n > 0 {
			slog.Debug("Pruned stale block results", "rows", n)
		}
	}
	return nil
}

func (e *Engine) loadDecisions(ctx context.Context) (map[model.PairKey]struct{}, []model.ReviewDecision, error) {
	if e.store == nil {
		return map[model.PairKey]struct{}{}, nil, nil
	}
	rejected, err := e.store.RejectedPairs(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load rejected pairs: %w", err)
	}
	decisions, err := e.store.ListDecisions(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load review decisions: %w", err)
	}
	return rejected, decisions, nil
}

func (e *Engine) finish(ctx context.Context, stats *model.RunStats, runErr error) {
	stats.FinishedAt = e.now()
	stats.DurationSeconds = stats.FinishedAt.Sub(stats.StartedAt).Seconds()

	switch {
	case runErr == nil:
		stats.Status = model.RunCompleted
	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		stats.Status = model.RunCancelled
		stats.Error = runErr.Error()
	default:
		stats.Status = model.RunFailed
		stats.Error = runErr.Error()
	}

	fields := common.Fields{
		"run_id":   stats.RunID,
		"status":   stats.Status,
		"matched":  stats.Matched,
		"duration": fmt.Sprintf("%.2fs", stats.DurationSeconds),
	}
	if runErr != nil {
		common.LogError(runErr, "Linkage run did not complete", fields)
	} else {
		fields["owner_match_rate"] = stats.OwnerMatchRate
		fields["transaction_match_rate"] = stats.TransactionMatchRate
		fields["review_queue"] = stats.Review.QueueSize
		common.LogInfo("Linkage run complete", fields)
	}

	if e.store == nil {
		return
	}
	// A cancelled context must not prevent the history row from closing.
	if err := e.store.FinishRun(context.WithoutCancel(ctx), stats); err != nil {
		slog.Warn("Failed to record run result", "run_id", stats.RunID, "error", err)
	}
}

func unclaimedOwners(owners []model.OwnerRecord, a *matching.Assigner) []model.OwnerRecord {
	var out []model.OwnerRecord
	for _, o := range owners {
		if !a.OwnerClaimed(o.OwnerID) {
			out = append(out, o)
		}
	}
	return out
}

func unclaimedTransactions(txns []model.TransactionRecord, a *matching.Assigner) []model.TransactionRecord {
	var out []model.TransactionRecord
	for _, t := range txns {
		if !a.TxnClaimed(t.TxnID) {
			out = append(out, t)
		}
	}
	return out
}

// skippedBlockKeys counts project keys present on only one side.
func skippedBlockKeys(b *matching.Blocking) int {
	keys := make(map[string]struct{})
	for _, o := range b.UnblockedOwners {
		keys["o\x1f"+o.ProjectClean] = struct{}{}
	}
	for _, t := range b.UnblockedTransactions {
		keys["t\x1f"+t.ProjectClean] = struct{}{}
	}
	return len(keys)
}

func indexRecords(owners []model.OwnerRecord, txns []model.TransactionRecord) (map[string]*model.OwnerRecord, map[string]*model.TransactionRecord) {
	ob := make(map[string]*model.OwnerRecord, len(owners))
	for i := range owners {
		ob[owners[i].OwnerID] = &owners[i]
	}
	tb := make(map[string]*model.TransactionRecord, len(txns))
	for i := range txns {
		tb[txns[i].TxnID] = &txns[i]
	}
	return ob, tb
}

func reviewItems(pending []model.MatchCandidate, owners map[string]*model.OwnerRecord, txns map[string]*model.TransactionRecord) []model.ReviewItem {
	items := make([]model.ReviewItem, 0, len(pending))
	for _, c := range pending {
		o, ok1 := owners[c.OwnerID]
		t, ok2 := txns[c.TxnID]
		if !ok1 || !ok2 {
			continue
		}
		items = append(items, model.ReviewItem{Owner: *o, Transaction: *t, Candidate: c})
	}
	return items
}
