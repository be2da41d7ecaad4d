// Package review folds externally produced review decisions back into the
// candidate set.
package review

import (
	"log/slog"
	"sort"

	"github.com/Veraticus/unitlink/internal/model"
)

// Result is the outcome of one reconciliation pass.
type Result struct {
	// Approved candidates, promoted to manual matches.
	Approved []model.MatchCandidate
	// Pending candidates were skipped or have no decision yet.
	Pending []model.MatchCandidate
	// Rejected pairs must never be proposed again for this snapshot.
	Rejected []model.PairKey
	// Stale decisions name pairs that are not in the review queue.
	Stale     int
	Conflicts int
}

// Resolve collapses a decision log to one decision per pair. The latest
// timestamp wins; on equal timestamps the later log entry wins. Pairs that
// received different verdicts are counted as conflicts.
func Resolve(log []model.ReviewDecision) (map[model.PairKey]model.ReviewDecision, int) {
	resolved := make(map[model.PairKey]model.ReviewDecision, len(log))
	conflicted := make(map[model.PairKey]struct{})

	for _, d := range log {
		key := d.Key()
		prev, ok := resolved[key]
		if !ok {
			resolved[key] = d
			continue
		}
		if prev.Decision != d.Decision {
			conflicted[key] = struct{}{}
		}
		if !d.Timestamp.Before(prev.Timestamp) {
			resolved[key] = d
		}
	}

	keys := make([]model.PairKey, 0, len(conflicted))
	for k := range conflicted {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].OwnerID != keys[j].OwnerID {
			return keys[i].OwnerID < keys[j].OwnerID
		}
		return keys[i].TxnID < keys[j].TxnID
	})
	for _, k := range keys {
		w := resolved[k]
		slog.Warn("Conflicting review decisions, keeping the latest",
			"owner_id", k.OwnerID,
			"txn_id", k.TxnID,
			"decision", w.Decision,
			"reviewer", w.Reviewer,
			"timestamp", w.Timestamp)
	}
	return resolved, len(conflicted)
}

// Reconcile applies the decision log to the review candidates. It is a pure
// function of its inputs, so replaying the same log yields the same result.
func Reconcile(candidates []model.MatchCandidate, log []model.ReviewDecision) Result {
	resolved, conflicts := Resolve(log)
	res := Result{Conflicts: conflicts}

	inQueue := make(map[model.PairKey]struct{}, len(candidates))
	for _, c := range candidates {
		key := c.Key()
		inQueue[key] = struct{}{}

		d, ok := resolved[key]
		switch {
		case ok && d.Decision == model.DecisionApprove:
			promoted := c
			promoted.MatchType = model.MatchManual
			res.Approved = append(res.Approved, promoted)
		case ok && d.Decision == model.DecisionReject:
			res.Rejected = append(res.Rejected, key)
		default:
			res.Pending = append(res.Pending, c)
		}
	}

	for key := range resolved {
		if _, ok := inQueue[key]; !ok {
			res.Stale++
		}
	}
	if res.Stale > 0 {
		slog.Debug("Review decisions without a queued candidate", "count", res.Stale)
	}
	return res
}
