// Package normalize canonicalizes raw owner and transaction tables into
// comparable records and an excluded-row report.
package normalize

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/Veraticus/unitlink/internal/common"
	"github.com/Veraticus/unitlink/internal/config"
	"github.com/Veraticus/unitlink/internal/model"
)

// Options configures a Normalizer.
type Options struct {
	OwnerColumns       ColumnMapping
	TransactionColumns ColumnMapping
	BuyerRoles         []string
	OwnerAreaScale     float64
	TxnAreaScale       float64
}

// Normalizer turns raw tables into clean records. It holds only immutable
// configuration and is safe for concurrent use.
type Normalizer struct {
	ownerCols  ColumnMapping
	txnCols    ColumnMapping
	buyerRoles map[string]struct{}
	ownerScale float64
	txnScale   float64
}

// New validates the column mappings and returns a Normalizer.
func New(opts Options) (*Normalizer, error) {
	if err := OwnerSchema.Validate(opts.OwnerColumns); err != nil {
		return nil, err
	}
	if err := TransactionSchema.Validate(opts.TransactionColumns); err != nil {
		return nil, err
	}
	if len(opts.BuyerRoles) == 0 {
		return nil, common.NewConfigurationError("owners", "buyer_roles", "at least one buyer role is required")
	}

	roles := make(map[string]struct{}, len(opts.BuyerRoles))
	for _, r := range opts.BuyerRoles {
		roles[Text(r)] = struct{}{}
	}

	n := &Normalizer{
		ownerCols:  opts.OwnerColumns,
		txnCols:    opts.TransactionColumns,
		buyerRoles: roles,
		ownerScale: opts.OwnerAreaScale,
		txnScale:   opts.TxnAreaScale,
	}
	if n.ownerScale == 0 {
		n.ownerScale = 1
	}
	if n.txnScale == 0 {
		n.txnScale = 1
	}
	return n, nil
}

// NewFromConfig builds a Normalizer from the run configuration.
func NewFromConfig(cfg *config.Config) (*Normalizer, error) {
	ownerCols, err := MappingFromConfig(OwnerSchema, cfg.Owners.Columns)
	if err != nil {
		return nil, err
	}
	txnCols, err := MappingFromConfig(TransactionSchema, cfg.Transactions.Columns)
	if err != nil {
		return nil, err
	}
	return New(Options{
		OwnerColumns:       ownerCols,
		TransactionColumns: txnCols,
		BuyerRoles:         cfg.Owners.BuyerRoles,
		OwnerAreaScale:     cfg.Owners.AreaMultiplier,
		TxnAreaScale:       cfg.Transactions.AreaMultiplier,
	})
}

// CheckHeaders verifies both tables carry every mapped column. It lets the
// caller fail fast before any row is processed.
func (n *Normalizer) CheckHeaders(owners, txns *model.RawTable) error {
	if _, err := OwnerSchema.resolve(n.ownerCols, owners.Columns); err != nil {
		return err
	}
	if _, err := TransactionSchema.resolve(n.txnCols, txns.Columns); err != nil {
		return err
	}
	return nil
}

// Owners normalizes the owner registry. Only configuration problems are
// returned as errors; bad rows land in the excluded report.
func (n *Normalizer) Owners(t *model.RawTable) ([]model.OwnerRecord, []model.ExcludedRow, error) {
	cols, err := OwnerSchema.resolve(n.ownerCols, t.Columns)
	if err != nil {
		return nil, nil, err
	}

	var (
		clean    = make([]model.OwnerRecord, 0, len(t.Rows))
		excluded []model.ExcludedRow
		seen     = make(map[string]struct{}, len(t.Rows))
	)
	for i := range t.Rows {
		row := i + 1
		exclude := func(reason model.ExcludeReason, f Field, value, detail string) {
			excluded = append(excluded, model.ExcludedRow{
				RecordSet: model.RecordSetOwners,
				SourceRow: row,
				Reason:    reason,
				Field:     string(f),
				Value:     value,
				Detail:    detail,
			})
		}

		role := cols.get(t, i, FieldRole)
		if _, ok := n.buyerRoles[Text(role)]; !ok {
			exclude(model.ExcludedRole, FieldRole, role, "")
			continue
		}

		project := cols.get(t, i, FieldProject)
		building := cols.get(t, i, FieldBuilding)
		if project == "" {
			exclude(model.ExcludedMissing, FieldProject, "", "")
			continue
		}
		if building == "" {
			exclude(model.ExcludedMissing, FieldBuilding, "", "")
			continue
		}

		area, ex := n.area(model.RecordSetOwners, row, cols.get(t, i, FieldArea), n.ownerScale)
		if ex != nil {
			exclude(model.ExcludeReason(ex.Reason), FieldArea, ex.Value, ex.Error())
			continue
		}

		unit := Unit(cols.get(t, i, FieldUnitNo))
		buildingText := building
		if unit == "" {
			if rest, u, ok := SplitBuildingUnit(building); ok {
				buildingText, unit = rest, u
			}
		}

		rec := model.OwnerRecord{
			Project:       project,
			ProjectClean:  Project(project),
			Building:      building,
			BuildingClean: Building(buildingText),
			UnitNo:        unit,
			OwnerName:     cols.get(t, i, FieldOwnerName),
			Role:          Text(role),
			Area:          area,
			SourceRow:     row,
		}
		rec.OwnerID = cols.get(t, i, FieldOwnerID)
		if rec.OwnerID == "" {
			rec.OwnerID = deriveOwnerID(&rec)
		}

		if _, dup := seen[rec.OwnerID]; dup {
			excluded = append(excluded, model.ExcludedRow{
				RecordSet: model.RecordSetOwners,
				SourceRow: row,
				Key:       rec.OwnerID,
				Reason:    model.ExcludedDuplicate,
				Field:     string(FieldOwnerID),
				Value:     rec.OwnerID,
			})
			continue
		}
		seen[rec.OwnerID] = struct{}{}
		clean = append(clean, rec)
	}

	slog.Info("Normalized owners",
		"rows", len(t.Rows),
		"clean", len(clean),
		"excluded", len(excluded))
	return clean, excluded, nil
}

// Transactions normalizes the transaction ledger.
func (n *Normalizer) Transactions(t *model.RawTable) ([]model.TransactionRecord, []model.ExcludedRow, error) {
	cols, err := TransactionSchema.resolve(n.txnCols, t.Columns)
	if err != nil {
		return nil, nil, err
	}

	var (
		clean    = make([]model.TransactionRecord, 0, len(t.Rows))
		excluded []model.ExcludedRow
		seen     = make(map[string]struct{}, len(t.Rows))
	)
	for i := range t.Rows {
		row := i + 1
		txnID := cols.get(t, i, FieldTxnID)
		exclude := func(reason model.ExcludeReason, f Field, value, detail string) {
			excluded = append(excluded, model.ExcludedRow{
				RecordSet: model.RecordSetTransactions,
				SourceRow: row,
				Key:       txnID,
				Reason:    reason,
				Field:     string(f),
				Value:     value,
				Detail:    detail,
			})
		}

		if txnID == "" {
			exclude(model.ExcludedMissing, FieldTxnID, "", "")
			continue
		}
		if _, dup := seen[txnID]; dup {
			exclude(model.ExcludedDuplicate, FieldTxnID, txnID, "")
			continue
		}

		project := cols.get(t, i, FieldProject)
		building := cols.get(t, i, FieldBuilding)
		if project == "" {
			exclude(model.ExcludedMissing, FieldProject, "", "")
			continue
		}
		if building == "" {
			exclude(model.ExcludedMissing, FieldBuilding, "", "")
			continue
		}

		area, ex := n.area(model.RecordSetTransactions, row, cols.get(t, i, FieldArea), n.txnScale)
		if ex != nil {
			exclude(model.ExcludeReason(ex.Reason), FieldArea, ex.Value, ex.Error())
			continue
		}

		rec := model.TransactionRecord{
			TxnID:        txnID,
			Project:      project,
			ProjectClean: Project(project),
			Building:     building,
			BuyerName:    cols.get(t, i, FieldBuyerName),
			Area:         area,
			SourceRow:    row,
		}

		buildingText := building
		rec.UnitNo = Unit(cols.get(t, i, FieldUnitNo))
		if rec.UnitNo == "" {
			if rest, u, ok := SplitBuildingUnit(building); ok {
				buildingText, rec.UnitNo = rest, u
			}
		}
		if rec.UnitNo == "" {
			rec.UnitNo = FallbackUnitPrefix + Text(txnID)
			rec.UnitFromTxnID = true
		}
		rec.BuildingClean = Building(buildingText)

		if raw := cols.get(t, i, FieldTxnDate); raw != "" {
			d, err := Date(raw)
			if err != nil {
				slog.Warn("Could not parse transaction date",
					"txn_id", txnID,
					"value", raw,
					"error", err)
			}
			rec.TxnDate = d
		}

		seen[txnID] = struct{}{}
		clean = append(clean, rec)
	}

	slog.Info("Normalized transactions",
		"rows", len(t.Rows),
		"clean", len(clean),
		"excluded", len(excluded))
	return clean, excluded, nil
}

// area parses and scales an area cell. A non-nil RowParseError means the row
// must be excluded with the carried reason.
func (n *Normalizer) area(set model.RecordSet, row int, raw string, scale float64) (float64, *common.RowParseError) {
	parseErr := func(reason model.ExcludeReason, err error) *common.RowParseError {
		return &common.RowParseError{
			RecordSet: string(set),
			Row:       row,
			Field:     string(FieldArea),
			Value:     raw,
			Reason:    string(reason),
			Err:       err,
		}
	}

	v, err := ParseNumber(raw)
	if errors.Is(err, ErrEmptyNumber) {
		return 0, parseErr(model.ExcludedMissing, err)
	}
	if err != nil {
		return 0, parseErr(model.ExcludedParse, err)
	}
	v *= scale
	if v <= 0 {
		return 0, parseErr(model.ExcludedArea, nil)
	}
	return v, nil
}

// deriveOwnerID builds a stable owner key from the cleaned fields.
func deriveOwnerID(o *model.OwnerRecord) string {
	return strings.Join([]string{o.ProjectClean, o.BuildingClean, o.UnitNo, Text(o.OwnerName)}, "|")
}
