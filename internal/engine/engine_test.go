package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/unitlink/internal/common"
	"github.com/Veraticus/unitlink/internal/config"
	"github.com/Veraticus/unitlink/internal/model"
	"github.com/Veraticus/unitlink/internal/service"
	"github.com/Veraticus/unitlink/internal/testutil"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Path = ":memory:"
	cfg.Output.Dir = t.TempDir()
	cfg.Matching.Workers = 4
	return cfg
}

func newEngine(t *testing.T, cfg *config.Config, store service.Storage, opts ...Option) *Engine {
	t.Helper()
	e, err := New(cfg, store, opts...)
	require.NoError(t, err)
	return e
}

func input(b *testutil.TableBuilder) Input {
	return Input{Owners: b.Owners(), Transactions: b.Transactions()}
}

func matchedPairs(ms []model.MatchCandidate) map[string]string {
	out := make(map[string]string, len(ms))
	for _, m := range ms {
		out[m.OwnerID] = m.TxnID
	}
	return out
}

func TestRun_EndToEnd(t *testing.T) {
	e := newEngine(t, testConfig(t), nil)

	res, err := e.Run(context.Background(), input(testutil.NewTableBuilder().WithFixture(testutil.FixtureEndToEnd)))
	require.NoError(t, err)

	require.Len(t, res.Matches, 4)
	for _, m := range res.Matches {
		assert.Equal(t, model.BucketHigh, m.Bucket, "pair %s/%s", m.OwnerID, m.TxnID)
		assert.InDelta(t, 1.0, m.Confidence, 1e-9)
	}
	assert.Equal(t, map[string]string{"O1": "T1", "O2": "T2", "O3": "T3", "O4": "T4"}, matchedPairs(res.Matches))

	st := res.Stats
	assert.Equal(t, model.RunCompleted, st.Status)
	assert.InDelta(t, 0.8, st.OwnerMatchRate, 1e-9)
	assert.InDelta(t, 0.6667, st.TransactionMatchRate, 1e-9)
	assert.Equal(t, model.TierStats{Candidates: 1, Accepted: 1}, st.Deterministic)
	assert.Equal(t, 3, st.Fuzzy.Accepted)
	assert.Equal(t, 4, st.Buckets[model.BucketHigh])
	assert.Equal(t, 4, st.ScoreRanges[model.ScoreRange95to100])
	assert.InDelta(t, 1.0, st.AverageConfidence, 1e-9)
	assert.Equal(t, 1, st.Blocks.Total)
	assert.Equal(t, 1, st.Blocks.Scored)
	assert.Equal(t, 2, st.Blocks.Skipped)
	assert.NotEmpty(t, st.Fingerprint)
	assert.NotEmpty(t, st.RunID)

	require.Len(t, res.UnmatchedOwners, 1)
	assert.Equal(t, "O5", res.UnmatchedOwners[0].Owner.OwnerID)
	assert.Equal(t, model.UnmatchedNoBlock, res.UnmatchedOwners[0].Reason)

	reasons := map[string]model.UnmatchReason{}
	for _, u := range res.UnmatchedTransactions {
		reasons[u.Transaction.TxnID] = u.Reason
	}
	assert.Equal(t, map[string]model.UnmatchReason{
		"T5": model.UnmatchedBelowThreshold,
		"T6": model.UnmatchedNoBlock,
	}, reasons)
	assert.Empty(t, res.ReviewQueue)
	assert.Empty(t, res.Excluded)
}

func TestRun_ExcludedRows(t *testing.T) {
	e := newEngine(t, testConfig(t), nil)

	b := testutil.NewTableBuilder().
		WithFixture(testutil.FixtureEndToEnd).
		WithOwner(testutil.OwnerRow{ID: "S1", Project: "Marina Gate", Building: "Tower A", Unit: "101", Area: 100, Role: "seller"}).
		WithTxn(testutil.TxnRow{ID: "T9", Project: "Marina Gate", Building: "Tower Z", Unit: "9"})

	res, err := e.Run(context.Background(), input(b))
	require.NoError(t, err)

	assert.Len(t, res.Matches, 4)
	assert.Equal(t, 6, res.Stats.OwnersTotal)
	assert.Equal(t, 5, res.Stats.OwnersClean)
	assert.Equal(t, 7, res.Stats.TransactionsTotal)
	assert.Equal(t, 6, res.Stats.TransactionsClean)
	assert.Equal(t, 1, res.Stats.ExcludedByReason[model.ExcludedRole])
	assert.Equal(t, 1, res.Stats.ExcludedByReason[model.ExcludedMissing])
	for _, m := range res.Matches {
		assert.NotEqual(t, "S1", m.OwnerID, "a seller must never be matched")
	}
}

func TestRun_OneToOneAcrossTiers(t *testing.T) {
	e := newEngine(t, testConfig(t), nil)

	// Two owners share a composite key; only one can take T1. The loser
	// falls through and is matched by the fuzzy tier to T2.
	b := testutil.NewTableBuilder().
		WithOwner(testutil.OwnerRow{ID: "A", Project: "Bay", Building: "Tower A", Unit: "1", Area: 100}).
		WithOwner(testutil.OwnerRow{ID: "B", Project: "Bay", Building: "Tower A", Unit: "1", Area: 100}).
		WithTxn(testutil.TxnRow{ID: "T1", Project: "Bay", Building: "Tower A", Unit: "1", Area: 100}).
		WithTxn(testutil.TxnRow{ID: "T2", Project: "Bay", Building: "A Tower", Unit: "1", Area: 100})

	res, err := e.Run(context.Background(), input(b))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"A": "T1", "B": "T2"}, matchedPairs(res.Matches))
	assert.Equal(t, model.TierStats{Candidates: 2, Accepted: 1}, res.Stats.Deterministic)

	owners := map[string]struct{}{}
	txns := map[string]struct{}{}
	for _, m := range res.Matches {
		_, dupO := owners[m.OwnerID]
		_, dupT := txns[m.TxnID]
		assert.False(t, dupO || dupT)
		owners[m.OwnerID] = struct{}{}
		txns[m.TxnID] = struct{}{}
	}
}

func TestRun_NumericTxnIDWithoutUnit(t *testing.T) {
	e := newEngine(t, testConfig(t), nil)

	b := testutil.NewTableBuilder().
		WithOwner(testutil.OwnerRow{ID: "O1", Project: "Marina", Building: "Tower A", Unit: "1204", Area: 100}).
		WithTxn(testutil.TxnRow{ID: "1204", Project: "Marina", Building: "Tower A", Area: 100})

	res, err := e.Run(context.Background(), input(b))
	require.NoError(t, err)

	assert.Empty(t, res.Matches)
	assert.Empty(t, res.ReviewQueue)
	assert.Equal(t, model.TierStats{}, res.Stats.Deterministic)
	require.Len(t, res.UnmatchedTransactions, 1)
	assert.Equal(t, "1204", res.UnmatchedTransactions[0].Transaction.TxnID)
	assert.Equal(t, "txn:1204", res.UnmatchedTransactions[0].Transaction.UnitNo)
	assert.Equal(t, model.UnmatchedBelowThreshold, res.UnmatchedTransactions[0].Reason)
}

func TestRun_DeterministicAcrossWorkerCounts(t *testing.T) {
	b := testutil.NewTableBuilder().
		WithFixture(testutil.FixtureEndToEnd).
		WithFixture(testutil.FixtureReview)

	var first *Result
	for _, workers := range []int{1, 3, 8} {
		cfg := testConfig(t)
		cfg.Matching.Workers = workers
		cfg.Matching.Shards = workers
		res, err := newEngine(t, cfg, nil).Run(context.Background(), input(b))
		require.NoError(t, err)
		if first == nil {
			first = res
			continue
		}
		assert.Equal(t, first.Matches, res.Matches, "workers=%d", workers)
		assert.Equal(t, first.ReviewQueue, res.ReviewQueue, "workers=%d", workers)
		assert.Equal(t, first.Stats.Fingerprint, res.Stats.Fingerprint)
	}
}

func TestRun_ReviewRoundTrip(t *testing.T) {
	db := testutil.SetupTestDB(t)
	e := newEngine(t, testConfig(t), db.Storage)
	ctx := context.Background()
	in := input(testutil.NewTableBuilder().WithFixture(testutil.FixtureReview))

	res, err := e.Run(ctx, in)
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
	require.Len(t, res.ReviewQueue, 2)

	queue := map[string]model.ConfidenceBucket{}
	for _, item := range res.ReviewQueue {
		queue[item.Candidate.OwnerID+"/"+item.Candidate.TxnID] = item.Candidate.Bucket
		assert.Equal(t, item.Candidate.OwnerID, item.Owner.OwnerID)
		assert.Equal(t, item.Candidate.TxnID, item.Transaction.TxnID)
	}
	assert.Equal(t, map[string]model.ConfidenceBucket{
		"M1/TM": model.BucketMedium,
		"L1/TL": model.BucketLow,
	}, queue)
	assert.Equal(t, 2, res.Stats.Review.Pending)

	reasons := map[string]model.UnmatchReason{}
	for _, u := range res.UnmatchedOwners {
		reasons[u.Owner.OwnerID] = u.Reason
	}
	assert.Equal(t, model.UnmatchedPendingReview, reasons["M1"])
	assert.Equal(t, model.UnmatchedBelowThreshold, reasons["X1"])

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	db.MustDecide(
		model.ReviewDecision{OwnerID: "M1", TxnID: "TM", Decision: model.DecisionApprove, Reviewer: "qa", Timestamp: at},
		model.ReviewDecision{OwnerID: "L1", TxnID: "TL", Decision: model.DecisionReject, Reviewer: "qa", Timestamp: at},
	)

	res, err = e.Run(ctx, in)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	m := res.Matches[0]
	assert.Equal(t, "M1", m.OwnerID)
	assert.Equal(t, "TM", m.TxnID)
	assert.Equal(t, model.MatchManual, m.MatchType)
	assert.Equal(t, model.BucketMedium, m.Bucket)
	assert.InDelta(t, 0.85, m.Confidence, 1e-9)
	assert.Empty(t, res.ReviewQueue)
	assert.Equal(t, 1, res.Stats.Review.Approved)
	assert.Equal(t, 1, res.Stats.Review.Rejected)
	assert.Equal(t, 1, res.Stats.Manual.Accepted)

	// The rejected pair is never proposed again.
	for _, u := range res.UnmatchedOwners {
		if u.Owner.OwnerID == "L1" {
			assert.Equal(t, model.UnmatchedBelowThreshold, u.Reason)
		}
	}

	// Same inputs and decisions: every block is reused.
	again, err := e.Run(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, res.Matches, again.Matches)
	assert.Equal(t, res.Stats.Fingerprint, again.Stats.Fingerprint)
	assert.Equal(t, 1, again.Stats.Blocks.Resumed)
	assert.Equal(t, 0, again.Stats.Blocks.Scored)

	runs, err := db.Storage.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	for _, r := range runs {
		assert.Equal(t, model.RunCompleted, r.Status)
		require.NotNil(t, r.Stats)
	}
}

func TestRun_ConfigurationErrorBeforeMatching(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testConfig(t)
	cfg.Owners.Columns = map[string]string{
		"project":  "Project Name",
		"building": "building",
		"area":     "area",
		"role":     "role",
	}
	e := newEngine(t, cfg, db.Storage)

	res, err := e.Run(context.Background(), input(testutil.NewTableBuilder().WithFixture(testutil.FixtureEndToEnd)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidConfig))

	var cfgErr *common.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, model.RunFailed, res.Stats.Status)
	assert.Zero(t, res.Stats.OwnersClean)
	assert.Empty(t, res.Matches)

	runs, err := db.Storage.ListRuns(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunFailed, runs[0].Status)
	assert.NotEmpty(t, runs[0].Error)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Matching.Weights.Area = 0.5
	_, err := New(cfg, nil)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

// cancelAfterFirst cancels the run as soon as the first block finishes.
type cancelAfterFirst struct {
	cancel context.CancelFunc
	seen   []string
}

func (p *cancelAfterFirst) Start(int) {}
func (p *cancelAfterFirst) Finish()   {}
func (p *cancelAfterFirst) Advance(key string, _ bool) {
	p.seen = append(p.seen, key)
	p.cancel()
}

func TestRun_CancelBetweenBlocksAndResume(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testConfig(t)
	cfg.Matching.Workers = 1

	b := testutil.NewTableBuilder().
		WithFixture(testutil.FixtureEndToEnd).
		WithFixture(testutil.FixtureReview)
	in := input(b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	progress := &cancelAfterFirst{cancel: cancel}
	e := newEngine(t, cfg, db.Storage, WithProgress(progress))

	res, err := e.Run(ctx, in)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, model.RunCancelled, res.Stats.Status)
	assert.Equal(t, 1, res.Stats.Blocks.Scored)
	assert.Equal(t, 2, res.Stats.Blocks.Total)

	stored, err := db.Storage.LoadBlockResults(context.Background(), res.Stats.Fingerprint)
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	resumed, err := newEngine(t, cfg, db.Storage).Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 1, resumed.Stats.Blocks.Resumed)
	assert.Equal(t, 1, resumed.Stats.Blocks.Scored)
	assert.Len(t, resumed.Matches, 4)

	runs, err := db.Storage.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	statuses := map[model.RunStatus]int{}
	for _, r := range runs {
		statuses[r.Status]++
	}
	assert.Equal(t, map[model.RunStatus]int{model.RunCancelled: 1, model.RunCompleted: 1}, statuses)
}
