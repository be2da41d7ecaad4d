package tabular

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Veraticus/unitlink/internal/common"
	"github.com/Veraticus/unitlink/internal/model"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z0700",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts RFC 3339 and "YYYY-MM-DD HH:MM:SS" style stamps.
// Stamps without a zone are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// DecisionLog is the outcome of reading a decision file.
type DecisionLog struct {
	Decisions []model.ReviewDecision
	// Undecided rows have an empty decision cell, as in a returned review
	// queue the reviewer has not finished.
	Undecided int
	// Invalid rows could not be parsed and were dropped.
	Invalid int
}

// ReadDecisions loads a decision log from CSV or Parquet. owner_id, txn_id
// and decision columns are required. Rows without a timestamp get the file's
// modification time.
func ReadDecisions(ctx context.Context, path string) (*DecisionLog, error) {
	t, err := ReadTable(ctx, path)
	if err != nil {
		return nil, err
	}

	col := func(name string) int {
		for i, c := range t.Columns {
			if strings.EqualFold(strings.TrimSpace(c), name) {
				return i
			}
		}
		return -1
	}
	ownerCol, txnCol, decisionCol := col("owner_id"), col("txn_id"), col("decision")
	reviewerCol, tsCol := col("reviewer"), col("timestamp")
	for name, idx := range map[string]int{"owner_id": ownerCol, "txn_id": txnCol, "decision": decisionCol} {
		if idx < 0 {
			return nil, common.NewConfigurationError("decisions", name, fmt.Sprintf("column missing from %s", path))
		}
	}

	var fallback time.Time
	if info, err := os.Stat(path); err == nil {
		fallback = info.ModTime().UTC()
	}

	log := &DecisionLog{}
	for r := range t.Rows {
		cell := func(c int) string { return strings.TrimSpace(t.Cell(r, c)) }
		rowNum := r + 1

		raw := cell(decisionCol)
		if raw == "" {
			log.Undecided++
			continue
		}
		d, err := model.ParseDecision(raw)
		if err != nil {
			log.Invalid++
			slog.Warn("Skipping decision row", "file", path, "row", rowNum, "error", err)
			continue
		}

		rd := model.ReviewDecision{
			OwnerID:   cell(ownerCol),
			TxnID:     cell(txnCol),
			Decision:  d,
			Reviewer:  cell(reviewerCol),
			Timestamp: fallback,
		}
		if rd.OwnerID == "" || rd.TxnID == "" {
			log.Invalid++
			slog.Warn("Skipping decision row", "file", path, "row", rowNum, "error", "missing owner_id or txn_id")
			continue
		}
		if ts := cell(tsCol); ts != "" {
			parsed, err := ParseTimestamp(ts)
			if err != nil {
				log.Invalid++
				slog.Warn("Skipping decision row", "file", path, "row", rowNum, "error", err)
				continue
			}
			rd.Timestamp = parsed
		}
		log.Decisions = append(log.Decisions, rd)
	}

	slog.Info("Read decision log",
		"file", path,
		"decisions", len(log.Decisions),
		"undecided", log.Undecided,
		"invalid", log.Invalid)
	return log, nil
}
