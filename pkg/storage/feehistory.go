package storage

import (
	"github.com/santoslabs/ledgercore/pkg/types"
)

// FeeHistoryKind distinguishes a fee accrual from a distribution drain in
// FeeHistoryStore, so a reorg rewind can tell which direction to undo.
type FeeHistoryKind uint8

const (
	FeeCredit FeeHistoryKind = iota
	FeeDrain
)

// FeeHistoryEntry is one fee-cache mutation: a match-path credit or a
// pipeline distribution drain, journaled so §4.9's "roll back fee cache
// and history" step can reconstruct the pre-reorg balance without
// replaying every block from genesis.
type FeeHistoryEntry struct {
	Asset   types.AssetId
	Amount  int64
	Kind    FeeHistoryKind
	Block   int64
	TxIndex int
}

// FeeHistoryStore persists every FeeHistoryEntry in block order.
type FeeHistoryStore struct{ s *Store }

func (s *Store) FeeHistory() FeeHistoryStore { return FeeHistoryStore{s: s} }

const prefixFeeHistory = "fh:"

func feeHistoryKey(block int64, txIndex, seq int) []byte {
	return joinKey([]byte(prefixFeeHistory), beHeight(block), beUint64(uint64(txIndex)), beUint64(uint64(seq)))
}

func (t FeeHistoryStore) Append(seq int, entry FeeHistoryEntry) error {
	return t.s.set(feeHistoryKey(entry.Block, entry.TxIndex, seq), mustEncode(entry))
}

// ForBlock returns every entry recorded at height, in recording order.
func (t FeeHistoryStore) ForBlock(height int64) ([]FeeHistoryEntry, error) {
	prefix := joinKey([]byte(prefixFeeHistory), beHeight(height))
	var out []FeeHistoryEntry
	err := t.s.scan(prefix, func(_, val []byte) bool {
		var e FeeHistoryEntry
		if decodeGob(val, &e) == nil {
			out = append(out, e)
		}
		return true
	})
	return out, err
}

// RebuildBalance sums every entry at or below height for asset — the
// replay primitive a reorg rewind uses to recompute FeeCacheStore's
// persisted balance after discarding entries above the rewind point,
// instead of trusting the (now stale) snapshot value.
func (t FeeHistoryStore) RebuildBalance(asset types.AssetId, height int64) (int64, error) {
	var total int64
	err := t.s.scan([]byte(prefixFeeHistory), func(key, val []byte) bool {
		rest := key[len(prefixFeeHistory):]
		h := int64(beDecodeUint64(rest[:8]))
		if h > height {
			return true
		}
		var e FeeHistoryEntry
		if decodeGob(val, &e) != nil || e.Asset != asset {
			return true
		}
		switch e.Kind {
		case FeeCredit:
			total += e.Amount
		case FeeDrain:
			total -= e.Amount
		}
		return true
	})
	return total, err
}

// DeleteAboveBlock removes every entry recorded above height.
func (t FeeHistoryStore) DeleteAboveBlock(height int64) error {
	lower := joinKey([]byte(prefixFeeHistory), beHeight(height+1))
	upper := keyUpperBound([]byte(prefixFeeHistory))
	return t.s.deleteBounds(lower, upper)
}
