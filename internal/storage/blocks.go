package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Veraticus/unitlink/internal/matching"
)

// SaveBlockResult stores a finished block under (runKey, block key). A block
// already stored for the run is left untouched; the return value reports
// whether this call inserted it.
func (s *SQLiteStorage) SaveBlockResult(ctx context.Context, runKey string, result *matching.BlockResult) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(runKey, "runKey"); err != nil {
		return false, err
	}
	if err := validateBlockResult(result); err != nil {
		return false, err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("failed to encode block result: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO block_results (run_key, block_key, pairs, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_key, block_key) DO NOTHING
	`, runKey, result.Key, result.Pairs, string(payload))
	if err != nil {
		return false, fmt.Errorf("failed to save block result %q: %w", result.Key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// LoadBlockResults returns every stored block of a run keyed by block key.
func (s *SQLiteStorage) LoadBlockResults(ctx context.Context, runKey string) (map[string]matching.BlockResult, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(runKey, "runKey"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT block_key, payload FROM block_results WHERE run_key = ? ORDER BY block_key`, runKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query block results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]matching.BlockResult)
	for rows.Next() {
		var key, payload string
		if err := rows.Scan(&key, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan block result: %w", err)
		}
		var res matching.BlockResult
		if err := json.Unmarshal([]byte(payload), &res); err != nil {
			return nil, fmt.Errorf("failed to decode block result %q: %w", key, err)
		}
		out[key] = res
	}
	return out, rows.Err()
}

// PruneBlockResults deletes stored blocks of every run key except keep.
func (s *SQLiteStorage) PruneBlockResults(ctx context.Context, keep string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM block_results WHERE run_key != ?`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune block results: %w", err)
	}
	return res.RowsAffected()
}
