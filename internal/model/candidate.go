package model

// MatchType indicates which tier produced a candidate.
type MatchType string

// Match type constants.
const (
	MatchDeterministic MatchType = "deterministic"
	MatchFuzzy         MatchType = "fuzzy"
	MatchManual        MatchType = "manual"
)

// Priority orders tiers for greedy assignment; lower wins on equal confidence.
func (m MatchType) Priority() int {
	switch m {
	case MatchDeterministic:
		return 0
	case MatchFuzzy:
		return 1
	case MatchManual:
		return 2
	default:
		return 3
	}
}

// ConfidenceBucket is the discrete category derived from a score.
type ConfidenceBucket string

// Confidence bucket constants. BucketNone marks a score below the review floor.
const (
	BucketHigh   ConfidenceBucket = "High"
	BucketMedium ConfidenceBucket = "Medium"
	BucketLow    ConfidenceBucket = "Low"
	BucketNone   ConfidenceBucket = ""
)

// ScoreBreakdown keeps the per-field similarity components behind a confidence.
type ScoreBreakdown struct {
	BuildingSim float64 `json:"building_sim"`
	UnitMatch   float64 `json:"unit_match"`
	AreaScore   float64 `json:"area_score"`
	AreaDiffPct float64 `json:"area_diff_pct"`
}

// PairKey identifies an owner/transaction pair.
type PairKey struct {
	OwnerID string `json:"owner_id"`
	TxnID   string `json:"txn_id"`
}

// MatchCandidate is a proposed owner/transaction link.
type MatchCandidate struct {
	OwnerID    string           `json:"owner_id"`
	TxnID      string           `json:"txn_id"`
	MatchType  MatchType        `json:"match_type"`
	Bucket     ConfidenceBucket `json:"confidence_bucket"`
	Block      string           `json:"block"`
	Breakdown  ScoreBreakdown   `json:"score_breakdown"`
	Confidence float64          `json:"confidence"`
}

// Key returns the candidate's pair key.
func (c *MatchCandidate) Key() PairKey {
	return PairKey{OwnerID: c.OwnerID, TxnID: c.TxnID}
}

// NeedsReview reports whether the candidate belongs in the review queue.
func (c *MatchCandidate) NeedsReview() bool {
	return c.MatchType == MatchFuzzy && (c.Bucket == BucketMedium || c.Bucket == BucketLow)
}
