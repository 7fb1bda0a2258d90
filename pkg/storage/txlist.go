package storage

import (
	"github.com/santoslabs/ledgercore/pkg/engine"
)

// TxListStore persists every dispatched transaction's outcome in block
// order, the Db* analogue of the original protocol's tx list table —
// what on_block_end walks to answer "what happened in this block" and
// what on_reorg rewinds.
type TxListStore struct{ s *Store }

func (s *Store) TxList() TxListStore { return TxListStore{s: s} }

const (
	prefixTxList     = "tx:"
	prefixTxListHash = "txh:"
)

func txListKey(block int64, txIndex int) []byte {
	return joinKey([]byte(prefixTxList), beHeight(block), beUint64(uint64(txIndex)))
}

func txHashKey(hash string) []byte {
	return joinKey([]byte(prefixTxListHash), []byte(hash))
}

// Append records one transaction's outcome at (block, txIndex).
func (t TxListStore) Append(txIndex int, entry engine.TxLogEntry) error {
	val := mustEncode(entry)
	if err := t.s.set(txListKey(entry.Block, txIndex), val); err != nil {
		return err
	}
	return t.s.set(txHashKey(entry.Hash), val)
}

// ForBlock returns every recorded entry for height, in tx-index order.
func (t TxListStore) ForBlock(height int64) ([]engine.TxLogEntry, error) {
	prefix := joinKey([]byte(prefixTxList), beHeight(height))
	var out []engine.TxLogEntry
	err := t.s.scan(prefix, func(_, val []byte) bool {
		var e engine.TxLogEntry
		if decodeGob(val, &e) == nil {
			out = append(out, e)
		}
		return true
	})
	return out, err
}

// ByHash looks up the most recently recorded outcome for a transaction
// hash.
func (t TxListStore) ByHash(hash string) (engine.TxLogEntry, bool, error) {
	val, ok, err := t.s.get(txHashKey(hash))
	if err != nil || !ok {
		return engine.TxLogEntry{}, false, err
	}
	var e engine.TxLogEntry
	if err := decodeGob(val, &e); err != nil {
		return engine.TxLogEntry{}, false, err
	}
	return e, true, nil
}

// DeleteAboveBlock removes every entry recorded for a height strictly
// above height. The by-hash index is left alone deliberately: a rewound
// transaction's last-known outcome is still meaningful history, and
// ByHash is keyed by hash, not by height, so there is nothing to collide
// with once the chain replays that hash at a new height.
func (t TxListStore) DeleteAboveBlock(height int64) error {
	lower := joinKey([]byte(prefixTxList), beHeight(height+1))
	upper := keyUpperBound([]byte(prefixTxList))
	return t.s.deleteBounds(lower, upper)
}
