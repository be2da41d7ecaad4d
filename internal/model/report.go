package model

// RecordSet names one side of the linkage.
type RecordSet string

// Record set constants.
const (
	RecordSetOwners       RecordSet = "owners"
	RecordSetTransactions RecordSet = "transactions"
)

// ExcludeReason is the reason code for a row dropped during normalization.
type ExcludeReason string

// Exclusion reason codes.
const (
	ExcludedRole      ExcludeReason = "excluded_role"
	ExcludedMissing   ExcludeReason = "missing_field"
	ExcludedParse     ExcludeReason = "unparsable_number"
	ExcludedArea      ExcludeReason = "invalid_area"
	ExcludedDuplicate ExcludeReason = "duplicate_key"
)

// ExcludedRow is one entry of the excluded-row report.
type ExcludedRow struct {
	RecordSet RecordSet     `json:"record_set"`
	Key       string        `json:"key,omitempty"`
	Reason    ExcludeReason `json:"reason"`
	Field     string        `json:"field,omitempty"`
	Value     string        `json:"value,omitempty"`
	Detail    string        `json:"detail,omitempty"`
	SourceRow int           `json:"source_row"`
}

// UnmatchReason explains why a clean record has no final match.
type UnmatchReason string

// Unmatched reason codes.
const (
	UnmatchedNoBlock        UnmatchReason = "no_candidate_block"
	UnmatchedBelowThreshold UnmatchReason = "below_threshold"
	UnmatchedPendingReview  UnmatchReason = "pending_review"
	UnmatchedLostAssignment UnmatchReason = "lost_assignment"
)

// UnmatchedOwner is a clean owner with no final match.
type UnmatchedOwner struct {
	Reason UnmatchReason
	Owner  OwnerRecord
}

// UnmatchedTransaction is a clean transaction with no final match.
type UnmatchedTransaction struct {
	Reason      UnmatchReason
	Transaction TransactionRecord
}

// ReviewItem is a pending pair joined with both sides' canonical fields.
type ReviewItem struct {
	Owner       OwnerRecord
	Transaction TransactionRecord
	Candidate   MatchCandidate
}
