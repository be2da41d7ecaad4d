package normalize

import (
	"errors"
	"testing"

	"github.com/Veraticus/unitlink/internal/common"
	"github.com/Veraticus/unitlink/internal/config"
	"github.com/Veraticus/unitlink/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	n, err := NewFromConfig(config.Default())
	require.NoError(t, err)
	return n
}

func TestOwners_FiltersRolesAndReportsBadRows(t *testing.T) {
	n := newDefaultNormalizer(t)
	table := &model.RawTable{
		Name:    "owners",
		Columns: []string{"project", "building", "unit_no", "area", "owner_name", "role"},
		Rows: [][]string{
			{"Dubai Hills", "Tower A", "1204", "100", "Alice", "Buyer"},
			{"Dubai Hills", "Tower A", "1204", "100", "Bob", "Seller"},
			{"Dubai Hills", "Tower B", "7", "abc", "Carol", "buyer"},
			{"Dubai Hills", "Tower B", "8", "-4", "Dan", "buyer"},
			{"", "Tower B", "9", "80", "Eve", "buyer"},
			{"Dubai Hills", "Tower A", "1204", "100", "Alice", "BUYER"},
			{"Dubai Hills", "Tower C Unit 55", "", "1,200", "Frank", "buyer"},
		},
	}

	clean, excluded, err := n.Owners(table)
	require.NoError(t, err)

	require.Len(t, clean, 2)
	assert.Equal(t, "dubai hills|tower a|1204|alice", clean[0].OwnerID)
	assert.Equal(t, "dubai hills", clean[0].ProjectClean)
	assert.Equal(t, 1, clean[0].SourceRow)

	assert.Equal(t, "tower c", clean[1].BuildingClean)
	assert.Equal(t, "0055", clean[1].UnitNo)
	assert.InDelta(t, 1200.0, clean[1].Area, 1e-9)

	reasons := map[int]model.ExcludeReason{}
	for _, ex := range excluded {
		assert.Equal(t, model.RecordSetOwners, ex.RecordSet)
		reasons[ex.SourceRow] = ex.Reason
	}
	assert.Equal(t, map[int]model.ExcludeReason{
		2: model.ExcludedRole,
		3: model.ExcludedParse,
		4: model.ExcludedArea,
		5: model.ExcludedMissing,
		6: model.ExcludedDuplicate,
	}, reasons)

	for _, o := range clean {
		assert.NotEqual(t, "Bob", o.OwnerName, "seller rows must never become clean owners")
	}
}

func TestTransactions_UnitFallbackAndDates(t *testing.T) {
	n := newDefaultNormalizer(t)
	table := &model.RawTable{
		Columns: []string{"txn_id", "project", "building", "unit_no", "area", "buyer_name", "txn_date"},
		Rows: [][]string{
			{"T1", "Dubai Hills", "Tower A", "1204", "101", "Alice", "05-03-2024"},
			{"T2", "Dubai Hills", "Tower B", "", "90", "Bob", "not a date"},
			{"T2", "Dubai Hills", "Tower B", "", "90", "Bob", ""},
			{"", "Dubai Hills", "Tower B", "", "90", "Bob", ""},
			{"T3", "Dubai Hills", "Tower B", "", "", "Bob", ""},
		},
	}

	clean, excluded, err := n.Transactions(table)
	require.NoError(t, err)
	require.Len(t, clean, 2)

	assert.Equal(t, "1204", clean[0].UnitNo)
	assert.False(t, clean[0].UnitFromTxnID)
	assert.Equal(t, "2024-03-05", clean[0].TxnDate)

	assert.Equal(t, "txn:t2", clean[1].UnitNo)
	assert.True(t, clean[1].UnitFromTxnID)
	assert.Empty(t, clean[1].TxnDate)

	require.Len(t, excluded, 3)
	assert.Equal(t, model.ExcludedDuplicate, excluded[0].Reason)
	assert.Equal(t, model.ExcludedMissing, excluded[1].Reason)
	assert.Equal(t, "txn_id", excluded[1].Field)
	assert.Equal(t, model.ExcludedMissing, excluded[2].Reason)
	assert.Equal(t, "area", excluded[2].Field)
	assert.Equal(t, "T3", excluded[2].Key)
}

func TestAreaMultiplier(t *testing.T) {
	n, err := New(Options{BuyerRoles: []string{"buyer"}, OwnerAreaScale: 0.092903})
	require.NoError(t, err)

	clean, _, err := n.Owners(&model.RawTable{
		Columns: []string{"project", "building", "area", "role"},
		Rows:    [][]string{{"P", "Tower A", "1000", "buyer"}},
	})
	require.NoError(t, err)
	require.Len(t, clean, 1)
	assert.InDelta(t, 92.903, clean[0].Area, 1e-9)
}

func TestMappingValidation(t *testing.T) {
	tests := []struct {
		mapping ColumnMapping
		name    string
		field   string
	}{
		{
			name:    "unknown canonical field",
			mapping: ColumnMapping{"Project": FieldProject, "Bldg": FieldBuilding, "Size": FieldArea, "Role": FieldRole, "Colour": Field("colour")},
			field:   "colour",
		},
		{
			name:    "required field unmapped",
			mapping: ColumnMapping{"Project": FieldProject, "Bldg": FieldBuilding, "Size": FieldArea},
			field:   "role",
		},
		{
			name:    "duplicate target",
			mapping: ColumnMapping{"Project": FieldProject, "Bldg": FieldBuilding, "Tower": FieldBuilding, "Size": FieldArea, "Role": FieldRole},
			field:   "building",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Options{OwnerColumns: tt.mapping, BuyerRoles: []string{"buyer"}})
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrInvalidConfig))

			var cfgErr *common.ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestMappedColumnMissingFromHeader(t *testing.T) {
	n, err := New(Options{
		OwnerColumns: ColumnMapping{
			"ProjectNameEn":            FieldProject,
			"BuildingNameEn":           FieldBuilding,
			" Size ":                   FieldArea,
			"ProcedurePartyTypeNameEn": FieldRole,
		},
		BuyerRoles: []string{"buyer"},
	})
	require.NoError(t, err)

	owners := &model.RawTable{Columns: []string{"ProjectNameEn", "BuildingNameEn", "Size"}}
	txns := &model.RawTable{Columns: []string{"txn_id", "project", "building", "area"}}

	err = n.CheckHeaders(owners, txns)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidConfig))
	assert.Contains(t, err.Error(), "ProcedurePartyTypeNameEn")

	owners.Columns = append(owners.Columns, "ProcedurePartyTypeNameEn")
	assert.NoError(t, n.CheckHeaders(owners, txns))
}

func TestMissingColumnSuggestsClosestHeader(t *testing.T) {
	n, err := New(Options{
		OwnerColumns: ColumnMapping{
			"ProjectNameEn":            FieldProject,
			"BuildingNameEn":           FieldBuilding,
			"Size":                     FieldArea,
			"ProcedurePartyTypeNameEn": FieldRole,
		},
		BuyerRoles: []string{"buyer"},
	})
	require.NoError(t, err)

	owners := &model.RawTable{Columns: []string{"ProjectNameEn", "BuildingNameEn", "Size", "ProcedurePartyTypeName"}}
	txns := &model.RawTable{Columns: []string{"txn_id", "project", "building", "area"}}

	err = n.CheckHeaders(owners, txns)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `did you mean "ProcedurePartyTypeName"?`)

	_, _, err = newDefaultNormalizer(t).Transactions(&model.RawTable{Columns: []string{"txn_id", "project", "buildng", "area"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `did you mean "buildng"?`)
}

func TestClosestColumn(t *testing.T) {
	header := []string{" Project Name ", "Size", "Party Type"}
	assert.Equal(t, "Project Name", closestColumn("project_name", header))
	assert.Equal(t, "Size", closestColumn("size", header))
	assert.Empty(t, closestColumn("buyer_name", header))
	assert.Empty(t, closestColumn("area", nil))
}

func TestIdentityMappingRequiresColumns(t *testing.T) {
	n := newDefaultNormalizer(t)
	_, _, err := n.Transactions(&model.RawTable{Columns: []string{"txn_id", "project", "area"}})
	require.Error(t, err)

	var cfgErr *common.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "transactions.columns", cfgErr.Section)
	assert.Equal(t, "building", cfgErr.Field)
}

func TestMappingFromConfig(t *testing.T) {
	m, err := MappingFromConfig(OwnerSchema, map[string]string{
		"project":  "Project Name",
		"building": "Building",
		"area":     "Size",
		"role":     "Party Type",
	})
	require.NoError(t, err)
	assert.Equal(t, FieldProject, m["Project Name"])
	assert.NoError(t, OwnerSchema.Validate(m))

	_, err = MappingFromConfig(OwnerSchema, map[string]string{"project": "Name", "owner_name": "Name"})
	assert.True(t, errors.Is(err, common.ErrInvalidConfig))
}
