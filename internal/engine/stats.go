package engine

import (
	"math"

	"github.com/Veraticus/unitlink/internal/matching"
	"github.com/Veraticus/unitlink/internal/model"
)

// classifyResidual gives every unmatched clean record a reason. A pending
// review wins over a lost assignment, which wins over the blocking outcome.
func classifyResidual(
	owners []model.OwnerRecord,
	txns []model.TransactionRecord,
	a *matching.Assigner,
	blocking *matching.Blocking,
	pending []model.MatchCandidate,
	lost []model.MatchCandidate,
) ([]model.UnmatchedOwner, []model.UnmatchedTransaction) {
	pendingOwners := make(map[string]struct{})
	pendingTxns := make(map[string]struct{})
	for _, c := range pending {
		pendingOwners[c.OwnerID] = struct{}{}
		pendingTxns[c.TxnID] = struct{}{}
	}
	lostOwners := make(map[string]struct{})
	lostTxns := make(map[string]struct{})
	for _, c := range lost {
		lostOwners[c.OwnerID] = struct{}{}
		lostTxns[c.TxnID] = struct{}{}
	}
	unblockedOwners := make(map[string]struct{})
	for _, o := range blocking.UnblockedOwners {
		unblockedOwners[o.OwnerID] = struct{}{}
	}
	unblockedTxns := make(map[string]struct{})
	for _, t := range blocking.UnblockedTransactions {
		unblockedTxns[t.TxnID] = struct{}{}
	}

	reason := func(id string, pend, lost, unblocked map[string]struct{}) model.UnmatchReason {
		if _, ok := pend[id]; ok {
			return model.UnmatchedPendingReview
		}
		if _, ok := lost[id]; ok {
			return model.UnmatchedLostAssignment
		}
		if _, ok := unblocked[id]; ok {
			return model.UnmatchedNoBlock
		}
		return model.UnmatchedBelowThreshold
	}

	var uo []model.UnmatchedOwner
	for _, o := range owners {
		if a.OwnerClaimed(o.OwnerID) {
			continue
		}
		uo = append(uo, model.UnmatchedOwner{Owner: o, Reason: reason(o.OwnerID, pendingOwners, lostOwners, unblockedOwners)})
	}
	var ut []model.UnmatchedTransaction
	for _, t := range txns {
		if a.TxnClaimed(t.TxnID) {
			continue
		}
		ut = append(ut, model.UnmatchedTransaction{Transaction: t, Reason: reason(t.TxnID, pendingTxns, lostTxns, unblockedTxns)})
	}
	return uo, ut
}

// summarize fills the match-derived statistics.
func summarize(stats *model.RunStats, res *Result) {
	stats.Matched = len(res.Matches)
	stats.OwnerMatchRate = rate(stats.Matched, stats.OwnersClean)
	stats.TransactionMatchRate = rate(stats.Matched, stats.TransactionsClean)

	var sum float64
	for _, m := range res.Matches {
		stats.Buckets[m.Bucket]++
		if r := model.ScoreRangeFor(m.Confidence); r != "" {
			stats.ScoreRanges[r]++
		}
		sum += m.Confidence
	}
	if len(res.Matches) > 0 {
		stats.AverageConfidence = round4(sum / float64(len(res.Matches)))
	}

	for _, u := range res.UnmatchedOwners {
		stats.UnmatchedByReason[u.Reason]++
	}
	for _, u := range res.UnmatchedTransactions {
		stats.UnmatchedByReason[u.Reason]++
	}
}

func rate(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return round4(float64(n) / float64(total))
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
