package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Veraticus/unitlink/internal/model"
	"github.com/Veraticus/unitlink/internal/service"
)

// UpsertDecisions imports a decision log. Each pair keeps only its latest
// decision; an older decision never overwrites a newer stored one, so
// importing the same log again changes nothing. Every input row is also
// appended to the audit history.
func (s *SQLiteStorage) UpsertDecisions(ctx context.Context, decisions []model.ReviewDecision) (service.ImportResult, error) {
	var res service.ImportResult
	if err := validateContext(ctx); err != nil {
		return res, err
	}
	if err := validateDecisions(decisions); err != nil {
		return res, err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		upsert, err := tx.PrepareContext(ctx, `
			INSERT INTO review_decisions (owner_id, txn_id, decision, reviewer, decided_at, imported_at)
			VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(owner_id, txn_id) DO UPDATE SET
				decision = excluded.decision,
				reviewer = excluded.reviewer,
				decided_at = excluded.decided_at,
				imported_at = CURRENT_TIMESTAMP
			WHERE excluded.decided_at >= review_decisions.decided_at
				AND (excluded.decision != review_decisions.decision
					OR excluded.decided_at > review_decisions.decided_at
					OR COALESCE(excluded.reviewer, '') != COALESCE(review_decisions.reviewer, ''))
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare decision upsert: %w", err)
		}
		defer func() { _ = upsert.Close() }()

		history, err := tx.PrepareContext(ctx, `
			INSERT INTO review_decision_history (owner_id, txn_id, decision, reviewer, decided_at)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare decision history insert: %w", err)
		}
		defer func() { _ = history.Close() }()

		for _, d := range decisions {
			at := d.Timestamp.UTC().UnixNano()
			result, err := upsert.ExecContext(ctx, d.OwnerID, d.TxnID, string(d.Decision), d.Reviewer, at)
			if err != nil {
				return fmt.Errorf("failed to upsert decision %s/%s: %w", d.OwnerID, d.TxnID, err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to read affected rows: %w", err)
			}
			if n > 0 {
				res.Applied++
			} else {
				res.Unchanged++
			}

			if _, err := history.ExecContext(ctx, d.OwnerID, d.TxnID, string(d.Decision), d.Reviewer, at); err != nil {
				return fmt.Errorf("failed to record decision history: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return service.ImportResult{}, err
	}
	return res, nil
}

// ListDecisions returns the stored decision log, one row per pair.
func (s *SQLiteStorage) ListDecisions(ctx context.Context) ([]model.ReviewDecision, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT owner_id, txn_id, decision, COALESCE(reviewer, ''), decided_at
		FROM review_decisions
		ORDER BY decided_at, owner_id, txn_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var decisions []model.ReviewDecision
	for rows.Next() {
		var (
			d  model.ReviewDecision
			at int64
		)
		if err := rows.Scan(&d.OwnerID, &d.TxnID, &d.Decision, &d.Reviewer, &at); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		d.Timestamp = time.Unix(0, at).UTC()
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// RejectedPairs returns every pair whose current decision is reject.
func (s *SQLiteStorage) RejectedPairs(ctx context.Context) (map[model.PairKey]struct{}, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT owner_id, txn_id FROM review_decisions WHERE decision = ?`,
		string(model.DecisionReject))
	if err != nil {
		return nil, fmt.Errorf("failed to query rejected pairs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	rejected := make(map[model.PairKey]struct{})
	for rows.Next() {
		var k model.PairKey
		if err := rows.Scan(&k.OwnerID, &k.TxnID); err != nil {
			return nil, fmt.Errorf("failed to scan rejected pair: %w", err)
		}
		rejected[k] = struct{}{}
	}
	return rejected, rows.Err()
}

// DecisionCounts returns the number of pairs per current decision.
func (s *SQLiteStorage) DecisionCounts(ctx context.Context) (map[model.Decision]int, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT decision, COUNT(*) FROM review_decisions GROUP BY decision`)
	if err != nil {
		return nil, fmt.Errorf("failed to count decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[model.Decision]int)
	for rows.Next() {
		var (
			d model.Decision
			n int
		)
		if err := rows.Scan(&d, &n); err != nil {
			return nil, fmt.Errorf("failed to scan decision count: %w", err)
		}
		counts[d] = n
	}
	return counts, rows.Err()
}

// DecisionHistoryCount returns how many decisions were ever imported for a pair.
func (s *SQLiteStorage) DecisionHistoryCount(ctx context.Context, key model.PairKey) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM review_decision_history WHERE owner_id = ? AND txn_id = ?`,
		key.OwnerID, key.TxnID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count decision history: %w", err)
	}
	return n, nil
}
