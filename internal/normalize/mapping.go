package normalize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/Veraticus/unitlink/internal/common"
	"github.com/Veraticus/unitlink/internal/model"
)

// Field is a canonical field name.
type Field string

// Canonical fields.
const (
	FieldOwnerID   Field = "owner_id"
	FieldTxnID     Field = "txn_id"
	FieldProject   Field = "project"
	FieldBuilding  Field = "building"
	FieldUnitNo    Field = "unit_no"
	FieldArea      Field = "area"
	FieldOwnerName Field = "owner_name"
	FieldBuyerName Field = "buyer_name"
	FieldRole      Field = "role"
	FieldTxnDate   Field = "txn_date"
)

// ColumnMapping maps a source column name to a canonical field.
type ColumnMapping map[string]Field

// Schema lists the canonical fields of one record set.
type Schema struct {
	RecordSet model.RecordSet
	Required  []Field
	Optional  []Field
}

// OwnerSchema is the canonical owner schema.
var OwnerSchema = Schema{
	RecordSet: model.RecordSetOwners,
	Required:  []Field{FieldProject, FieldBuilding, FieldArea, FieldRole},
	Optional:  []Field{FieldUnitNo, FieldOwnerName, FieldOwnerID},
}

// TransactionSchema is the canonical transaction schema.
var TransactionSchema = Schema{
	RecordSet: model.RecordSetTransactions,
	Required:  []Field{FieldTxnID, FieldProject, FieldBuilding, FieldArea},
	Optional:  []Field{FieldUnitNo, FieldBuyerName, FieldTxnDate},
}

func (s Schema) section() string {
	return string(s.RecordSet) + ".columns"
}

func (s Schema) known(f Field) bool {
	for _, k := range s.Required {
		if k == f {
			return true
		}
	}
	for _, k := range s.Optional {
		if k == f {
			return true
		}
	}
	return false
}

// MappingFromConfig inverts a canonical->source configuration map into a
// ColumnMapping. A source column may feed only one canonical field.
func MappingFromConfig(s Schema, columns map[string]string) (ColumnMapping, error) {
	if len(columns) == 0 {
		return nil, nil
	}
	fields := make([]string, 0, len(columns))
	for f := range columns {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	m := make(ColumnMapping, len(columns))
	for _, f := range fields {
		src := strings.TrimSpace(columns[f])
		if src == "" {
			return nil, common.NewConfigurationError(s.section(), f, "source column is empty")
		}
		if prev, ok := m[src]; ok {
			return nil, common.NewConfigurationError(s.section(), f,
				fmt.Sprintf("source column %q is already mapped to %s", src, prev))
		}
		m[src] = Field(strings.ToLower(strings.TrimSpace(f)))
	}
	return m, nil
}

// Validate checks a mapping against the schema without looking at any data.
// An empty mapping means identity and is always valid.
func (s Schema) Validate(m ColumnMapping) error {
	if len(m) == 0 {
		return nil
	}
	seen := make(map[Field]string, len(m))
	sources := make([]string, 0, len(m))
	for src := range m {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	for _, src := range sources {
		f := m[src]
		if !s.known(f) {
			return common.NewConfigurationError(s.section(), string(f), "unknown canonical field")
		}
		if prev, dup := seen[f]; dup {
			return common.NewConfigurationError(s.section(), string(f),
				fmt.Sprintf("mapped from both %q and %q", prev, src))
		}
		seen[f] = src
	}
	for _, f := range s.Required {
		if _, ok := seen[f]; !ok {
			return common.NewConfigurationError(s.section(), string(f), "required field is not mapped")
		}
	}
	return nil
}

// columns resolves canonical fields to header positions.
type columns map[Field]int

func (c columns) get(t *model.RawTable, row int, f Field) string {
	idx, ok := c[f]
	if !ok {
		return ""
	}
	return strings.TrimSpace(t.Cell(row, idx))
}

func (c columns) has(f Field) bool {
	_, ok := c[f]
	return ok
}

// resolve binds a validated mapping to a table header. With no mapping, header
// columns named after canonical fields are used directly.
func (s Schema) resolve(m ColumnMapping, header []string) (columns, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.TrimSpace(h)] = i
	}

	cols := make(columns)
	if len(m) == 0 {
		lowered := make(map[string]int, len(header))
		for i, h := range header {
			lowered[strings.ToLower(strings.TrimSpace(h))] = i
		}
		for _, f := range append(append([]Field{}, s.Required...), s.Optional...) {
			if i, ok := lowered[string(f)]; ok {
				cols[f] = i
			}
		}
		for _, f := range s.Required {
			if !cols.has(f) {
				return nil, common.NewConfigurationError(s.section(), string(f),
					"required field is not mapped and no column of that name exists"+suggestion(string(f), header))
			}
		}
		return cols, nil
	}

	sources := make([]string, 0, len(m))
	for src := range m {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	for _, src := range sources {
		f := m[src]
		i, ok := pos[strings.TrimSpace(src)]
		if !ok {
			return nil, common.NewConfigurationError(s.section(), string(f),
				fmt.Sprintf("column %q not found in input header", src)+suggestion(src, header))
		}
		cols[f] = i
	}
	return cols, nil
}

// suggestion names the header column closest to name, for error messages.
func suggestion(name string, header []string) string {
	if c := closestColumn(name, header); c != "" {
		return fmt.Sprintf("; did you mean %q?", c)
	}
	return ""
}

// closestColumn returns the header column with the smallest case-insensitive
// edit distance to name, or "" when nothing is within a quarter of its length
// (at least two edits).
func closestColumn(name string, header []string) string {
	target := strings.ToLower(strings.TrimSpace(name))
	limit := max(2, len(target)/4)
	best, bestDist := "", limit+1
	for _, h := range header {
		h = strings.TrimSpace(h)
		if d := levenshtein.ComputeDistance(target, strings.ToLower(h)); d < bestDist {
			best, bestDist = h, d
		}
	}
	return best
}
