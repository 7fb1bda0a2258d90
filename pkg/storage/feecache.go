package storage

import (
	"github.com/santoslabs/ledgercore/pkg/feecache"
	"github.com/santoslabs/ledgercore/pkg/types"
)

// FeeCacheStore persists the current per-asset fee balance — one row per
// asset, overwritten wholesale by SaveSnapshot after each block, restored into a fresh
// feecache.Cache on startup. The by-height ledger of how that balance got
// there lives in FeeHistoryStore; this store only ever holds the latest
// value.
type FeeCacheStore struct{ s *Store }

func (s *Store) FeeCache() FeeCacheStore { return FeeCacheStore{s: s} }

const prefixFeeCache = "fc:"

func feeCacheKey(asset types.AssetId) []byte {
	return joinKey([]byte(prefixFeeCache), beUint64(uint64(asset)))
}

// SaveSnapshot overwrites the persisted balance for every row in rows,
// discarding whatever was previously stored for assets not present in
// rows — callers pass feecache.Cache.Snapshot() wholesale after each
// block.
func (t FeeCacheStore) SaveSnapshot(rows []feecache.Row) error {
	if err := t.s.deleteRange([]byte(prefixFeeCache)); err != nil {
		return err
	}
	for _, r := range rows {
		if err := t.s.set(feeCacheKey(r.Asset), mustEncode(r.Amount)); err != nil {
			return err
		}
	}
	return nil
}

// Load restores every persisted row, the snapshot half of startup's
// "reload state from the latest snapshot" step.
func (t FeeCacheStore) Load() ([]feecache.Row, error) {
	var out []feecache.Row
	err := t.s.scan([]byte(prefixFeeCache), func(key, val []byte) bool {
		id := types.AssetId(beDecodeUint64(key[len(prefixFeeCache):]))
		var amt int64
		if decodeGob(val, &amt) == nil {
			out = append(out, feecache.Row{Asset: id, Amount: amt})
		}
		return true
	})
	return out, err
}
