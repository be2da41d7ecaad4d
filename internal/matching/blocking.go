package matching

import (
	"sort"

	"github.com/Veraticus/unitlink/internal/model"
)

// Block is one project's share of the residual records. A block carries its
// own records so it can be scored and persisted independently.
type Block struct {
	Key          string
	Owners       []model.OwnerRecord
	Transactions []model.TransactionRecord
}

// Pairs returns the number of comparisons the block needs.
func (b *Block) Pairs() int {
	return len(b.Owners) * len(b.Transactions)
}

// Blocking is the partition of the residual records.
type Blocking struct {
	Blocks []Block
	// Unblocked records have no counterpart sharing their project and are
	// never scored.
	UnblockedOwners       []model.OwnerRecord
	UnblockedTransactions []model.TransactionRecord
}

// BuildBlocks partitions owners and transactions by project_clean. Blocks are
// returned in key order; a key missing on either side yields no block.
func BuildBlocks(owners []model.OwnerRecord, txns []model.TransactionRecord) *Blocking {
	byOwner := make(map[string][]model.OwnerRecord)
	for _, o := range owners {
		byOwner[o.ProjectClean] = append(byOwner[o.ProjectClean], o)
	}
	byTxn := make(map[string][]model.TransactionRecord)
	for _, t := range txns {
		byTxn[t.ProjectClean] = append(byTxn[t.ProjectClean], t)
	}

	keys := make([]string, 0, len(byOwner))
	for k := range byOwner {
		if _, ok := byTxn[k]; ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	res := &Blocking{Blocks: make([]Block, 0, len(keys))}
	for _, k := range keys {
		res.Blocks = append(res.Blocks, Block{Key: k, Owners: byOwner[k], Transactions: byTxn[k]})
	}
	for _, o := range owners {
		if _, ok := byTxn[o.ProjectClean]; !ok {
			res.UnblockedOwners = append(res.UnblockedOwners, o)
		}
	}
	for _, t := range txns {
		if _, ok := byOwner[t.ProjectClean]; !ok {
			res.UnblockedTransactions = append(res.UnblockedTransactions, t)
		}
	}
	return res
}
