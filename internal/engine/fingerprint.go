package engine

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/Veraticus/unitlink/internal/config"
	"github.com/Veraticus/unitlink/internal/model"
)

// Fingerprint identifies the Tier 2 work of a run: the clean records, the
// scoring configuration and the rejected pairs. Two runs with the same
// fingerprint score every block identically, so stored block results can be
// reused. Worker and shard counts do not change results and are left out.
func Fingerprint(owners []model.OwnerRecord, txns []model.TransactionRecord, cfg config.MatchingConfig, rejected map[model.PairKey]struct{}) string {
	d := xxhash.New()
	field := func(parts ...string) {
		for _, p := range parts {
			_, _ = d.WriteString(p)
			_, _ = d.Write([]byte{0x1f})
		}
		_, _ = d.Write([]byte{0x1e})
	}
	num := func(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }

	field("config",
		num(cfg.Weights.Building), num(cfg.Weights.Unit), num(cfg.Weights.Area),
		num(cfg.Thresholds.High), num(cfg.Thresholds.Medium), num(cfg.Thresholds.Low),
		num(cfg.AreaTolerance), num(cfg.AreaFalloff), strconv.Itoa(cfg.TopK))

	ows := make([]*model.OwnerRecord, len(owners))
	for i := range owners {
		ows[i] = &owners[i]
	}
	sort.Slice(ows, func(i, j int) bool { return ows[i].OwnerID < ows[j].OwnerID })
	for _, o := range ows {
		field("o", o.OwnerID, o.ProjectClean, o.BuildingClean, o.UnitNo, num(o.Area))
	}

	ts := make([]*model.TransactionRecord, len(txns))
	for i := range txns {
		ts[i] = &txns[i]
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].TxnID < ts[j].TxnID })
	for _, t := range ts {
		field("t", t.TxnID, t.ProjectClean, t.BuildingClean, t.UnitNo, num(t.Area))
	}

	keys := make([]model.PairKey, 0, len(rejected))
	for k := range rejected {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].OwnerID != keys[j].OwnerID {
			return keys[i].OwnerID < keys[j].OwnerID
		}
		return keys[i].TxnID < keys[j].TxnID
	})
	for _, k := range keys {
		field("r", k.OwnerID, k.TxnID)
	}

	return fmt.Sprintf("%016x", d.Sum64())
}
