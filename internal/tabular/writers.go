package tabular

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"

	"github.com/Veraticus/unitlink/internal/model"
)

// Output file names inside the output directory.
const (
	MatchesFile               = "matches.parquet"
	UnmatchedOwnersFile       = "unmatched_owners.parquet"
	UnmatchedTransactionsFile = "unmatched_transactions.parquet"
	ReviewQueueFile           = "review_queue.parquet"
	ExcludedRowsFile          = "excluded_rows.parquet"
	RunStatsFile              = "run_stats.json"
)

var (
	str = arrow.BinaryTypes.String
	f64 = arrow.PrimitiveTypes.Float64
	i64 = arrow.PrimitiveTypes.Int64
)

var matchesSchema = arrow.NewSchema([]arrow.Field{
	field("owner_id", str),
	field("txn_id", str),
	field("match_type", str),
	field("confidence", f64),
	field("confidence_bucket", str),
	field("building_sim", f64),
	field("unit_match", f64),
	field("area_score", f64),
	field("area_diff_pct", f64),
	field("block", str),
}, nil)

var unmatchedOwnersSchema = arrow.NewSchema([]arrow.Field{
	field("owner_id", str),
	field("project", str),
	field("project_clean", str),
	field("building", str),
	field("building_clean", str),
	field("unit_no", str),
	field("area", f64),
	field("owner_name", str),
	field("role", str),
	field("source_row", i64),
	field("reason", str),
}, nil)

var unmatchedTransactionsSchema = arrow.NewSchema([]arrow.Field{
	field("txn_id", str),
	field("project", str),
	field("project_clean", str),
	field("building", str),
	field("building_clean", str),
	field("unit_no", str),
	field("area", f64),
	field("buyer_name", str),
	field("txn_date", str),
	field("source_row", i64),
	field("reason", str),
}, nil)

// The review queue carries empty decision and reviewer columns for the
// reviewer to fill; the same file can be imported back as a decision log.
var reviewQueueSchema = arrow.NewSchema([]arrow.Field{
	field("owner_id", str),
	field("txn_id", str),
	field("confidence", f64),
	field("confidence_bucket", str),
	field("building_sim", f64),
	field("unit_match", f64),
	field("area_score", f64),
	field("area_diff_pct", f64),
	field("block", str),
	field("owner_project", str),
	field("owner_building", str),
	field("owner_unit_no", str),
	field("owner_area", f64),
	field("owner_name", str),
	field("txn_project", str),
	field("txn_building", str),
	field("txn_unit_no", str),
	field("txn_area", f64),
	field("buyer_name", str),
	field("txn_date", str),
	field("decision", str),
	field("reviewer", str),
}, nil)

var excludedSchema = arrow.NewSchema([]arrow.Field{
	field("record_set", str),
	field("source_row", i64),
	field("key", str),
	field("reason", str),
	field("field", str),
	field("value", str),
	field("detail", str),
}, nil)

// WriteMatches writes the final match table.
func WriteMatches(path string, matches []model.MatchCandidate) error {
	return writeParquet(path, matchesSchema, func(b *array.RecordBuilder) {
		for _, m := range matches {
			appendString(b, 0, m.OwnerID)
			appendString(b, 1, m.TxnID)
			appendString(b, 2, string(m.MatchType))
			appendFloat(b, 3, m.Confidence)
			appendString(b, 4, string(m.Bucket))
			appendFloat(b, 5, m.Breakdown.BuildingSim)
			appendFloat(b, 6, m.Breakdown.UnitMatch)
			appendFloat(b, 7, m.Breakdown.AreaScore)
			appendFloat(b, 8, m.Breakdown.AreaDiffPct)
			appendString(b, 9, m.Block)
		}
	})
}

// WriteUnmatchedOwners writes owners left without a match.
func WriteUnmatchedOwners(path string, owners []model.UnmatchedOwner) error {
	return writeParquet(path, unmatchedOwnersSchema, func(b *array.RecordBuilder) {
		for _, u := range owners {
			o := u.Owner
			appendString(b, 0, o.OwnerID)
			appendString(b, 1, o.Project)
			appendString(b, 2, o.ProjectClean)
			appendString(b, 3, o.Building)
			appendString(b, 4, o.BuildingClean)
			appendString(b, 5, o.UnitNo)
			appendFloat(b, 6, o.Area)
			appendString(b, 7, o.OwnerName)
			appendString(b, 8, o.Role)
			appendInt(b, 9, o.SourceRow)
			appendString(b, 10, string(u.Reason))
		}
	})
}

// WriteUnmatchedTransactions writes transactions left without a match.
func WriteUnmatchedTransactions(path string, txns []model.UnmatchedTransaction) error {
	return writeParquet(path, unmatchedTransactionsSchema, func(b *array.RecordBuilder) {
		for _, u := range txns {
			t := u.Transaction
			appendString(b, 0, t.TxnID)
			appendString(b, 1, t.Project)
			appendString(b, 2, t.ProjectClean)
			appendString(b, 3, t.Building)
			appendString(b, 4, t.BuildingClean)
			appendString(b, 5, t.UnitNo)
			appendFloat(b, 6, t.Area)
			appendString(b, 7, t.BuyerName)
			appendString(b, 8, t.TxnDate)
			appendInt(b, 9, t.SourceRow)
			appendString(b, 10, string(u.Reason))
		}
	})
}

// WriteReviewQueue writes pending pairs joined with both sides' fields.
func WriteReviewQueue(path string, items []model.ReviewItem) error {
	return writeParquet(path, reviewQueueSchema, func(b *array.RecordBuilder) {
		for _, it := range items {
			c := it.Candidate
			appendString(b, 0, c.OwnerID)
			appendString(b, 1, c.TxnID)
			appendFloat(b, 2, c.Confidence)
			appendString(b, 3, string(c.Bucket))
			appendFloat(b, 4, c.Breakdown.BuildingSim)
			appendFloat(b, 5, c.Breakdown.UnitMatch)
			appendFloat(b, 6, c.Breakdown.AreaScore)
			appendFloat(b, 7, c.Breakdown.AreaDiffPct)
			appendString(b, 8, c.Block)
			appendString(b, 9, it.Owner.Project)
			appendString(b, 10, it.Owner.Building)
			appendString(b, 11, it.Owner.UnitNo)
			appendFloat(b, 12, it.Owner.Area)
			appendString(b, 13, it.Owner.OwnerName)
			appendString(b, 14, it.Transaction.Project)
			appendString(b, 15, it.Transaction.Building)
			appendString(b, 16, it.Transaction.UnitNo)
			appendFloat(b, 17, it.Transaction.Area)
			appendString(b, 18, it.Transaction.BuyerName)
			appendString(b, 19, it.Transaction.TxnDate)
			appendString(b, 20, "")
			appendString(b, 21, "")
		}
	})
}

// WriteExcluded writes the excluded-row report.
func WriteExcluded(path string, rows []model.ExcludedRow) error {
	return writeParquet(path, excludedSchema, func(b *array.RecordBuilder) {
		for _, r := range rows {
			appendString(b, 0, string(r.RecordSet))
			appendInt(b, 1, r.SourceRow)
			appendString(b, 2, r.Key)
			appendString(b, 3, string(r.Reason))
			appendString(b, 4, r.Field)
			appendString(b, 5, r.Value)
			appendString(b, 6, r.Detail)
		}
	})
}

// WriteStats writes the run statistics as indented JSON.
func WriteStats(path string, stats *model.RunStats) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run stats: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return os.Rename(tmpPath, path)
}

// Outputs is everything a run writes.
type Outputs struct {
	Stats                 *model.RunStats
	Matches               []model.MatchCandidate
	UnmatchedOwners       []model.UnmatchedOwner
	UnmatchedTransactions []model.UnmatchedTransaction
	ReviewQueue           []model.ReviewItem
	Excluded              []model.ExcludedRow
}

type outputStep struct {
	write func(string) error
	name  string
}

// WriteAll writes every output into dir and returns the written paths.
// Statistics are written last. A failed run writes only run_stats.json, with
// a non-completed status.
func WriteAll(dir string, out Outputs) ([]string, error) {
	steps := []outputStep{
		{name: MatchesFile, write: func(p string) error { return WriteMatches(p, out.Matches) }},
		{name: UnmatchedOwnersFile, write: func(p string) error { return WriteUnmatchedOwners(p, out.UnmatchedOwners) }},
		{name: UnmatchedTransactionsFile, write: func(p string) error { return WriteUnmatchedTransactions(p, out.UnmatchedTransactions) }},
		{name: ReviewQueueFile, write: func(p string) error { return WriteReviewQueue(p, out.ReviewQueue) }},
		{name: ExcludedRowsFile, write: func(p string) error { return WriteExcluded(p, out.Excluded) }},
	}
	if out.Stats != nil {
		steps = append(steps, outputStep{name: RunStatsFile, write: func(p string) error { return WriteStats(p, out.Stats) }})
	}

	written := make([]string, 0, len(steps))
	for _, s := range steps {
		p := filepath.Join(dir, s.name)
		if err := s.write(p); err != nil {
			return written, err
		}
		written = append(written, p)
	}
	return written, nil
}
