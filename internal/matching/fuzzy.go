package matching

import (
	"math"
	"sort"

	"github.com/Veraticus/unitlink/internal/config"
	"github.com/Veraticus/unitlink/internal/model"
)

// BlockResult is the Tier 2 output for one block.
type BlockResult struct {
	Key      string                 `json:"key"`
	Accepted []model.MatchCandidate `json:"accepted"`
	Review   []model.MatchCandidate `json:"review"`
	Pairs    int                    `json:"pairs"`
	Skipped  int                    `json:"skipped_rejected"`
}

// FuzzyMatcher scores owner/transaction pairs inside a block.
type FuzzyMatcher struct {
	weights    config.Weights
	thresholds config.Thresholds
	falloff    float64
	topK       int
}

// NewFuzzyMatcher creates a Tier 2 matcher from validated matching settings.
func NewFuzzyMatcher(cfg config.MatchingConfig) *FuzzyMatcher {
	topK := cfg.TopK
	if topK < 1 {
		topK = 1
	}
	return &FuzzyMatcher{
		weights:    cfg.Weights,
		thresholds: cfg.Thresholds,
		falloff:    cfg.AreaFalloff,
		topK:       topK,
	}
}

// Score computes the composite score of one pair, rounded to four decimals.
func (f *FuzzyMatcher) Score(o *model.OwnerRecord, t *model.TransactionRecord) (float64, model.ScoreBreakdown) {
	diff := AreaDiffRatio(o.Area, t.Area)
	bd := model.ScoreBreakdown{
		BuildingSim: round4(TokenSetSimilarity(o.BuildingClean, t.BuildingClean)),
		AreaScore:   round4(math.Max(0, 1-diff/f.falloff)),
		AreaDiffPct: round4(diff * 100),
	}
	if math.IsInf(diff, 0) {
		bd.AreaScore, bd.AreaDiffPct = 0, 100
	}
	if !t.UnitFromTxnID && o.UnitNo != "" && o.UnitNo == t.UnitNo {
		bd.UnitMatch = 1
	}
	return f.Combine(bd), bd
}

// Combine applies the configured weights to a breakdown.
func (f *FuzzyMatcher) Combine(bd model.ScoreBreakdown) float64 {
	return round4(f.weights.Building*bd.BuildingSim + f.weights.Unit*bd.UnitMatch + f.weights.Area*bd.AreaScore)
}

// Bucket maps a score onto the configured confidence buckets.
func (f *FuzzyMatcher) Bucket(score float64) model.ConfidenceBucket {
	switch {
	case score >= f.thresholds.High:
		return model.BucketHigh
	case score >= f.thresholds.Medium:
		return model.BucketMedium
	case score >= f.thresholds.Low:
		return model.BucketLow
	}
	return model.BucketNone
}

// MatchBlock scores every pair in the block except rejected ones. For each
// owner, at most topK candidates at or above the Low threshold survive,
// ordered by score then txn_id.
func (f *FuzzyMatcher) MatchBlock(b *Block, rejected map[model.PairKey]struct{}) BlockResult {
	res := BlockResult{Key: b.Key}
	scored := make([]model.MatchCandidate, 0, len(b.Transactions))

	for oi := range b.Owners {
		o := &b.Owners[oi]
		scored = scored[:0]
		for ti := range b.Transactions {
			t := &b.Transactions[ti]
			if _, skip := rejected[model.PairKey{OwnerID: o.OwnerID, TxnID: t.TxnID}]; skip {
				res.Skipped++
				continue
			}
			res.Pairs++

			score, bd := f.Score(o, t)
			bucket := f.Bucket(score)
			if bucket == model.BucketNone {
				continue
			}
			scored = append(scored, model.MatchCandidate{
				OwnerID:    o.OwnerID,
				TxnID:      t.TxnID,
				MatchType:  model.MatchFuzzy,
				Confidence: score,
				Bucket:     bucket,
				Block:      b.Key,
				Breakdown:  bd,
			})
		}

		sort.SliceStable(scored, func(i, j int) bool {
			if scored[i].Confidence != scored[j].Confidence {
				return scored[i].Confidence > scored[j].Confidence
			}
			return scored[i].TxnID < scored[j].TxnID
		})
		if len(scored) > f.topK {
			scored = scored[:f.topK]
		}
		for _, c := range scored {
			if c.Bucket == model.BucketHigh {
				res.Accepted = append(res.Accepted, c)
			} else {
				res.Review = append(res.Review, c)
			}
		}
	}
	return res
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
