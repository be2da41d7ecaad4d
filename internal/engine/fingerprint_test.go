package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/unitlink/internal/config"
	"github.com/Veraticus/unitlink/internal/model"
)

func TestFingerprint(t *testing.T) {
	owners := []model.OwnerRecord{
		{OwnerID: "O1", ProjectClean: "bay", BuildingClean: "tower a", UnitNo: "0001", Area: 100},
		{OwnerID: "O2", ProjectClean: "bay", BuildingClean: "tower b", UnitNo: "0002", Area: 90},
	}
	txns := []model.TransactionRecord{
		{TxnID: "T1", ProjectClean: "bay", BuildingClean: "tower a", UnitNo: "0001", Area: 100},
	}
	cfg := config.Default().Matching
	base := Fingerprint(owners, txns, cfg, nil)

	t.Run("stable under record order", func(t *testing.T) {
		reversed := []model.OwnerRecord{owners[1], owners[0]}
		assert.Equal(t, base, Fingerprint(reversed, txns, cfg, nil))
	})

	t.Run("ignores worker and shard counts", func(t *testing.T) {
		c := cfg
		c.Workers = 99
		c.Shards = 3
		assert.Equal(t, base, Fingerprint(owners, txns, c, nil))
	})

	t.Run("changes with rejected pairs", func(t *testing.T) {
		rejected := map[model.PairKey]struct{}{{OwnerID: "O2", TxnID: "T1"}: {}}
		assert.NotEqual(t, base, Fingerprint(owners, txns, cfg, rejected))
	})

	t.Run("changes with scoring config", func(t *testing.T) {
		c := cfg
		c.TopK = 5
		assert.NotEqual(t, base, Fingerprint(owners, txns, c, nil))
	})

	t.Run("changes with record content", func(t *testing.T) {
		changed := append([]model.OwnerRecord{}, owners...)
		changed[0].Area = 101
		assert.NotEqual(t, base, Fingerprint(changed, txns, cfg, nil))
	})
}
