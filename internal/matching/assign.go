package matching

import (
	"sort"

	"github.com/Veraticus/unitlink/internal/model"
)

// SortCandidates orders candidates for greedy assignment: confidence
// descending, then tier priority, then owner_id and txn_id.
func SortCandidates(cands []model.MatchCandidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := &cands[i], &cands[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if pa, pb := a.MatchType.Priority(), b.MatchType.Priority(); pa != pb {
			return pa < pb
		}
		if a.OwnerID != b.OwnerID {
			return a.OwnerID < b.OwnerID
		}
		return a.TxnID < b.TxnID
	})
}

// Assigner enforces one-to-one linkage. Claims persist across Assign calls,
// so later tiers can only take records earlier tiers left free.
type Assigner struct {
	owners  map[string]struct{}
	txns    map[string]struct{}
	matches []model.MatchCandidate
}

// NewAssigner creates an empty Assigner.
func NewAssigner() *Assigner {
	return &Assigner{
		owners: make(map[string]struct{}),
		txns:   make(map[string]struct{}),
	}
}

// Assign greedily accepts candidates whose owner and transaction are both
// unclaimed. Candidates that touch a claimed record are returned as demoted.
func (a *Assigner) Assign(cands []model.MatchCandidate) (accepted, demoted []model.MatchCandidate) {
	sorted := make([]model.MatchCandidate, len(cands))
	copy(sorted, cands)
	SortCandidates(sorted)

	for _, c := range sorted {
		if a.OwnerClaimed(c.OwnerID) || a.TxnClaimed(c.TxnID) {
			demoted = append(demoted, c)
			continue
		}
		a.owners[c.OwnerID] = struct{}{}
		a.txns[c.TxnID] = struct{}{}
		a.matches = append(a.matches, c)
		accepted = append(accepted, c)
	}
	return accepted, demoted
}

// OwnerClaimed reports whether an owner already has a final match.
func (a *Assigner) OwnerClaimed(id string) bool {
	_, ok := a.owners[id]
	return ok
}

// TxnClaimed reports whether a transaction already has a final match.
func (a *Assigner) TxnClaimed(id string) bool {
	_, ok := a.txns[id]
	return ok
}

// Touches reports whether a candidate references any claimed record.
func (a *Assigner) Touches(c *model.MatchCandidate) bool {
	return a.OwnerClaimed(c.OwnerID) || a.TxnClaimed(c.TxnID)
}

// Matches returns every accepted candidate in acceptance order.
func (a *Assigner) Matches() []model.MatchCandidate {
	return a.matches
}
