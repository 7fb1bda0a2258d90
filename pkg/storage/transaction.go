package storage

import (
	"fmt"

	"github.com/santoslabs/ledgercore/pkg/engine"
)

// TransactionRecord is DbTransaction's row: the human-readable
// interpretation of one decoded transaction, independent of DbTxList's
// terser (hash, valid, height, type, new_amount) outcome tuple — this is
// what a wallet or block explorer displays for a given txid.
type TransactionRecord struct {
	Hash    string
	TxIndex int
	Block   int64
	Interp  string
}

// TransactionStore persists one TransactionRecord per processed
// transaction, keyed by hash.
type TransactionStore struct{ s *Store }

func (s *Store) Transactions() TransactionStore { return TransactionStore{s: s} }

const (
	prefixTransaction       = "txn:"
	prefixTransactionHeight = "txnh:"
)

func transactionKey(hash string) []byte {
	return joinKey([]byte(prefixTransaction), []byte(hash))
}

func transactionHeightKey(block int64, txIndex int) []byte {
	return joinKey([]byte(prefixTransactionHeight), beHeight(block), beUint64(uint64(txIndex)))
}

// Interp renders the one-line interpretation string DbTransaction stores
// alongside (hash, index) — the same fields TxLogEntry already carries,
// reformatted for display rather than for programmatic dispatch.
func Interp(entry engine.TxLogEntry) string {
	if entry.Valid {
		if entry.NewAmount != 0 {
			return fmt.Sprintf("type %d: valid, amount %d", entry.Type, entry.NewAmount)
		}
		return fmt.Sprintf("type %d: valid", entry.Type)
	}
	return fmt.Sprintf("type %d: invalid (%s: %s)", entry.Type, entry.Code, entry.Rule)
}

// Save persists one record, keyed both by hash (for get_trade_status-style
// lookups) and by (block, tx_index) (for block enumeration and reorg
// rewind).
func (t TransactionStore) Save(txIndex int, entry engine.TxLogEntry) error {
	rec := TransactionRecord{
		Hash:    entry.Hash,
		TxIndex: txIndex,
		Block:   entry.Block,
		Interp:  Interp(entry),
	}
	val := mustEncode(rec)
	if err := t.s.set(transactionKey(rec.Hash), val); err != nil {
		return err
	}
	return t.s.set(transactionHeightKey(rec.Block, txIndex), val)
}

func (t TransactionStore) ByHash(hash string) (TransactionRecord, bool, error) {
	val, ok, err := t.s.get(transactionKey(hash))
	if err != nil || !ok {
		return TransactionRecord{}, false, err
	}
	var rec TransactionRecord
	if err := decodeGob(val, &rec); err != nil {
		return TransactionRecord{}, false, err
	}
	return rec, true, nil
}

func (t TransactionStore) ForBlock(height int64) ([]TransactionRecord, error) {
	prefix := joinKey([]byte(prefixTransactionHeight), beHeight(height))
	var out []TransactionRecord
	err := t.s.scan(prefix, func(_, val []byte) bool {
		var rec TransactionRecord
		if decodeGob(val, &rec) == nil {
			out = append(out, rec)
		}
		return true
	})
	return out, err
}

// DeleteAboveBlock removes every height-indexed record above height. The
// by-hash index is left alone, same rationale as TxListStore's.
func (t TransactionStore) DeleteAboveBlock(height int64) error {
	lower := joinKey([]byte(prefixTransactionHeight), beHeight(height+1))
	upper := keyUpperBound([]byte(prefixTransactionHeight))
	return t.s.deleteBounds(lower, upper)
}
