// Package storage provides the SQLite persistence layer: the review decision
// log, Tier 2 block results, run history and checkpoints.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/unitlink/internal/matching"
	"github.com/Veraticus/unitlink/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrEmptySlice         = errors.New("slice cannot be empty")
	ErrInvalidDecision    = errors.New("invalid review decision")
	ErrInvalidBlockResult = errors.New("invalid block result")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateDecisions validates a slice of review decisions.
func validateDecisions(decisions []model.ReviewDecision) error {
	if decisions == nil {
		return fmt.Errorf("%w: decisions", ErrNilParameter)
	}
	if len(decisions) == 0 {
		return fmt.Errorf("%w: decisions", ErrEmptySlice)
	}

	for i := range decisions {
		if err := validateDecision(&decisions[i]); err != nil {
			return fmt.Errorf("decision at index %d: %w", i, err)
		}
	}
	return nil
}

// validateDecision validates a single review decision.
func validateDecision(d *model.ReviewDecision) error {
	if d == nil {
		return fmt.Errorf("%w: decision", ErrNilParameter)
	}
	if strings.TrimSpace(d.OwnerID) == "" {
		return fmt.Errorf("%w: missing owner_id", ErrInvalidDecision)
	}
	if strings.TrimSpace(d.TxnID) == "" {
		return fmt.Errorf("%w: missing txn_id", ErrInvalidDecision)
	}
	if d.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidDecision)
	}

	switch d.Decision {
	case model.DecisionApprove, model.DecisionReject, model.DecisionSkip:
		// Valid decision
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDecision, d.Decision)
	}
	return nil
}

// validateBlockResult validates a block result before it is persisted.
func validateBlockResult(res *matching.BlockResult) error {
	if res == nil {
		return fmt.Errorf("%w: block result", ErrNilParameter)
	}
	if strings.TrimSpace(res.Key) == "" {
		return fmt.Errorf("%w: missing block key", ErrInvalidBlockResult)
	}
	for _, c := range append(append([]model.MatchCandidate{}, res.Accepted...), res.Review...) {
		if c.Confidence < 0 || c.Confidence > 1 {
			return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidBlockResult)
		}
		if c.Block != res.Key {
			return fmt.Errorf("%w: candidate %s/%s belongs to block %q", ErrInvalidBlockResult, c.OwnerID, c.TxnID, c.Block)
		}
	}
	return nil
}
