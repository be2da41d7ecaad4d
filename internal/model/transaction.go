package model

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// TransactionRecord is one normalized ledger entry.
type TransactionRecord struct {
	TxnID         string
	Project       string
	ProjectClean  string
	Building      string
	BuildingClean string
	UnitNo        string
	BuyerName     string
	TxnDate       string // YYYY-MM-DD when the source carried a parsable date
	Area          float64
	SourceRow     int
	UnitFromTxnID bool // UnitNo fell back to the transaction ID
}

// CompositeKey returns the exact-match key used by the deterministic tier.
func (t *TransactionRecord) CompositeKey() CompositeKey {
	return CompositeKey{Project: t.ProjectClean, Building: t.BuildingClean, Unit: t.UnitNo}
}

// CompositeKey is the (project, building, unit) triple both record sets share after normalization.
type CompositeKey struct {
	Project  string
	Building string
	Unit     string
}

// Hash returns a 64-bit digest of the key. Equal keys always hash equally; callers
// must still compare keys field by field on a hash hit.
func (k CompositeKey) Hash() uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(k.Project)
	_, _ = d.Write([]byte{0x1f})
	_, _ = d.WriteString(k.Building)
	_, _ = d.Write([]byte{0x1f})
	_, _ = d.WriteString(k.Unit)
	return d.Sum64()
}

func (k CompositeKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Project, k.Building, k.Unit)
}
