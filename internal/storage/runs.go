package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Veraticus/unitlink/internal/common"
	"github.com/Veraticus/unitlink/internal/model"
	"github.com/Veraticus/unitlink/internal/service"
)

// StartRun records a run as running.
func (s *SQLiteStorage) StartRun(ctx context.Context, id, fingerprint string, startedAt time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, fingerprint, status, started_at)
		VALUES (?, ?, ?, ?)
	`, id, fingerprint, string(model.RunRunning), startedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	return nil
}

// FinishRun stores the final status and statistics of a run.
func (s *SQLiteStorage) FinishRun(ctx context.Context, stats *model.RunStats) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if stats == nil {
		return fmt.Errorf("%w: stats", ErrNilParameter)
	}

	payload, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to encode run stats: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error = ?, stats = ?, fingerprint = ?, finished_at = ?
		WHERE id = ?
	`, string(stats.Status), stats.Error, string(payload), stats.Fingerprint, stats.FinishedAt.UTC(), stats.RunID)
	if err != nil {
		return fmt.Errorf("failed to record run finish: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", stats.RunID, common.ErrNotFound)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]service.RunRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fingerprint, status, COALESCE(error, ''), stats, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []service.RunRecord
	for rows.Next() {
		var (
			r        service.RunRecord
			stats    sql.NullString
			finished sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.Fingerprint, &r.Status, &r.Error, &stats, &r.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		if stats.Valid && stats.String != "" {
			var st model.RunStats
			if err := json.Unmarshal([]byte(stats.String), &st); err != nil {
				return nil, fmt.Errorf("failed to decode stats of run %s: %w", r.ID, err)
			}
			r.Stats = &st
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
