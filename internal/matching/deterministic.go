// Package matching implements the deterministic and fuzzy matching tiers,
// project blocking and the greedy one-to-one assignment.
package matching

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/Veraticus/unitlink/internal/model"
	"golang.org/x/sync/errgroup"
)

// areaEpsilon absorbs float noise so that the tolerance boundary is inclusive.
const areaEpsilon = 1e-9

// AreaDiffRatio returns |owner - txn| / owner, or +Inf when the owner area is not positive.
func AreaDiffRatio(ownerArea, txnArea float64) float64 {
	if ownerArea <= 0 {
		return math.Inf(1)
	}
	return math.Abs(ownerArea-txnArea) / ownerArea
}

// AreaWithin reports whether two areas are within the relative tolerance.
func AreaWithin(ownerArea, txnArea, tolerance float64) bool {
	return AreaDiffRatio(ownerArea, txnArea) <= tolerance+areaEpsilon
}

// KeyIndex maps composite-key hashes to owner positions. It is read-only
// once built and safe for concurrent lookups.
type KeyIndex struct {
	hash    func(model.CompositeKey) uint64
	buckets map[uint64][]int
	owners  []model.OwnerRecord
}

// NewKeyIndex builds the index over owners.
func NewKeyIndex(owners []model.OwnerRecord) *KeyIndex {
	return newKeyIndex(owners, model.CompositeKey.Hash)
}

func newKeyIndex(owners []model.OwnerRecord, hash func(model.CompositeKey) uint64) *KeyIndex {
	idx := &KeyIndex{
		hash:    hash,
		buckets: make(map[uint64][]int, len(owners)),
		owners:  owners,
	}
	for i := range owners {
		h := hash(owners[i].CompositeKey())
		idx.buckets[h] = append(idx.buckets[h], i)
	}
	return idx
}

// Lookup returns the positions of owners whose full key equals key. Hash
// hits are always re-checked against the stored key.
func (x *KeyIndex) Lookup(key model.CompositeKey) []int {
	hits := x.buckets[x.hash(key)]
	if len(hits) == 0 {
		return nil
	}
	out := make([]int, 0, len(hits))
	for _, i := range hits {
		if x.owners[i].CompositeKey() == key {
			out = append(out, i)
		}
	}
	return out
}

// DeterministicResult is the Tier 1 output.
type DeterministicResult struct {
	Candidates           []model.MatchCandidate
	ResidualOwners       []model.OwnerRecord
	ResidualTransactions []model.TransactionRecord
}

// DeterministicMatcher joins owners and transactions on the exact composite key.
type DeterministicMatcher struct {
	tolerance float64
	shards    int
	workers   int
}

// NewDeterministicMatcher creates a Tier 1 matcher.
func NewDeterministicMatcher(tolerance float64, shards, workers int) *DeterministicMatcher {
	if shards < 1 {
		shards = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &DeterministicMatcher{tolerance: tolerance, shards: shards, workers: workers}
}

// Match probes every transaction against the owner index. Every pair that
// passes the key and area checks is emitted; uniqueness is left to assignment.
func (m *DeterministicMatcher) Match(ctx context.Context, owners []model.OwnerRecord, txns []model.TransactionRecord) (*DeterministicResult, error) {
	idx := NewKeyIndex(owners)

	shardSize := (len(txns) + m.shards - 1) / m.shards
	if shardSize == 0 {
		shardSize = 1
	}
	var bounds [][2]int
	for start := 0; start < len(txns); start += shardSize {
		bounds = append(bounds, [2]int{start, min(start+shardSize, len(txns))})
	}

	results := make([][]model.MatchCandidate, len(bounds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for s, b := range bounds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[s] = m.probe(idx, txns[b[0]:b[1]])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("deterministic matching: %w", err)
	}

	res := &DeterministicResult{}
	ownerHit := make(map[string]struct{})
	txnHit := make(map[string]struct{})
	for _, shard := range results {
		for _, c := range shard {
			ownerHit[c.OwnerID] = struct{}{}
			txnHit[c.TxnID] = struct{}{}
		}
		res.Candidates = append(res.Candidates, shard...)
	}
	for _, o := range owners {
		if _, ok := ownerHit[o.OwnerID]; !ok {
			res.ResidualOwners = append(res.ResidualOwners, o)
		}
	}
	for _, t := range txns {
		if _, ok := txnHit[t.TxnID]; !ok {
			res.ResidualTransactions = append(res.ResidualTransactions, t)
		}
	}

	slog.Debug("Deterministic tier complete",
		"shards", len(bounds),
		"candidates", len(res.Candidates),
		"residual_owners", len(res.ResidualOwners),
		"residual_transactions", len(res.ResidualTransactions))
	return res, nil
}

func (m *DeterministicMatcher) probe(idx *KeyIndex, txns []model.TransactionRecord) []model.MatchCandidate {
	var out []model.MatchCandidate
	for i := range txns {
		t := &txns[i]
		if t.UnitFromTxnID {
			continue
		}
		for _, oi := range idx.Lookup(t.CompositeKey()) {
			o := &idx.owners[oi]
			if !AreaWithin(o.Area, t.Area, m.tolerance) {
				continue
			}
			out = append(out, model.MatchCandidate{
				OwnerID:    o.OwnerID,
				TxnID:      t.TxnID,
				MatchType:  model.MatchDeterministic,
				Confidence: 1.0,
				Bucket:     model.BucketHigh,
				Block:      o.ProjectClean,
				Breakdown: model.ScoreBreakdown{
					BuildingSim: 1,
					UnitMatch:   1,
					AreaScore:   1,
					AreaDiffPct: round4(AreaDiffRatio(o.Area, t.Area) * 100),
				},
			})
		}
	}
	return out
}
