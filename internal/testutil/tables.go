package testutil

import (
	"strconv"

	"github.com/Veraticus/unitlink/internal/model"
)

// OwnerColumns is the owner header used by the builders; it maps onto the
// canonical fields without a column mapping.
var OwnerColumns = []string{"owner_id", "project", "building", "unit_no", "area", "owner_name", "role"}

// TransactionColumns is the transaction header used by the builders.
var TransactionColumns = []string{"txn_id", "project", "building", "unit_no", "area", "buyer_name", "txn_date"}

// OwnerRow is one owner line in a test table.
type OwnerRow struct {
	ID       string
	Project  string
	Building string
	Unit     string
	Name     string
	Role     string
	Area     float64
}

// TxnRow is one transaction line in a test table.
type TxnRow struct {
	ID       string
	Project  string
	Building string
	Unit     string
	Buyer    string
	Date     string
	Area     float64
}

// TableBuilder assembles raw owner and transaction tables for tests.
type TableBuilder struct {
	owners []OwnerRow
	txns   []TxnRow
}

// NewTableBuilder returns an empty builder.
func NewTableBuilder() *TableBuilder {
	return &TableBuilder{}
}

// WithOwner adds an owner row. An empty role defaults to buyer.
func (b *TableBuilder) WithOwner(r OwnerRow) *TableBuilder {
	if r.Role == "" {
		r.Role = "buyer"
	}
	b.owners = append(b.owners, r)
	return b
}

// WithTxn adds a transaction row.
func (b *TableBuilder) WithTxn(r TxnRow) *TableBuilder {
	b.txns = append(b.txns, r)
	return b
}

// WithFixture adds every row of a fixture.
func (b *TableBuilder) WithFixture(f Fixture) *TableBuilder {
	for _, o := range f.Owners {
		b.WithOwner(o)
	}
	for _, t := range f.Transactions {
		b.WithTxn(t)
	}
	return b
}

// Owners returns the owner table.
func (b *TableBuilder) Owners() *model.RawTable {
	t := &model.RawTable{Name: "owners", Columns: OwnerColumns}
	for _, o := range b.owners {
		t.Rows = append(t.Rows, []string{o.ID, o.Project, o.Building, o.Unit, formatArea(o.Area), o.Name, o.Role})
	}
	return t
}

// Transactions returns the transaction table.
func (b *TableBuilder) Transactions() *model.RawTable {
	t := &model.RawTable{Name: "transactions", Columns: TransactionColumns}
	for _, r := range b.txns {
		t.Rows = append(t.Rows, []string{r.ID, r.Project, r.Building, r.Unit, formatArea(r.Area), r.Buyer, r.Date})
	}
	return t
}

func formatArea(a float64) string {
	if a == 0 {
		return ""
	}
	return strconv.FormatFloat(a, 'f', -1, 64)
}
