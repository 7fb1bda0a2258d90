package storage

import (
	"github.com/santoslabs/ledgercore/pkg/engine"
)

// STOListStore persists one engine.DistributionEvent per SendToOwners
// transaction, the Db* analogue of the original protocol's STO list table.
type STOListStore struct{ s *Store }

func (s *Store) STOList() STOListStore { return STOListStore{s: s} }

const prefixSTOList = "sto:"

func stoListKey(block int64, txIndex int) []byte {
	return joinKey([]byte(prefixSTOList), beHeight(block), beUint64(uint64(txIndex)))
}

func (t STOListStore) Append(entry engine.DistributionEvent) error {
	return t.s.set(stoListKey(entry.Block, entry.TxIndex), mustEncode(entry))
}

func (t STOListStore) ForBlock(height int64) ([]engine.DistributionEvent, error) {
	prefix := joinKey([]byte(prefixSTOList), beHeight(height))
	var out []engine.DistributionEvent
	err := t.s.scan(prefix, func(_, val []byte) bool {
		var e engine.DistributionEvent
		if decodeGob(val, &e) == nil {
			out = append(out, e)
		}
		return true
	})
	return out, err
}

func (t STOListStore) DeleteAboveBlock(height int64) error {
	lower := joinKey([]byte(prefixSTOList), beHeight(height+1))
	upper := keyUpperBound([]byte(prefixSTOList))
	return t.s.deleteBounds(lower, upper)
}
