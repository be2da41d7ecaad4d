package model

import (
	"fmt"
	"strings"
	"time"
)

// Decision is a reviewer's verdict on a candidate pair.
type Decision string

// Decision constants.
const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
	DecisionSkip    Decision = "skip"
)

// ParseDecision accepts the verdict spellings review tools tend to emit.
func ParseDecision(s string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approve", "approved", "accept", "accepted", "yes":
		return DecisionApprove, nil
	case "reject", "rejected", "no":
		return DecisionReject, nil
	case "skip", "skipped", "pending", "":
		return DecisionSkip, nil
	}
	return "", fmt.Errorf("unknown review decision %q", s)
}

// ReviewDecision is one externally produced decision record.
type ReviewDecision struct {
	Timestamp time.Time `json:"timestamp"`
	OwnerID   string    `json:"owner_id"`
	TxnID     string    `json:"txn_id"`
	Decision  Decision  `json:"decision"`
	Reviewer  string    `json:"reviewer"`
}

// Key returns the pair the decision applies to.
func (d *ReviewDecision) Key() PairKey {
	return PairKey{OwnerID: d.OwnerID, TxnID: d.TxnID}
}
