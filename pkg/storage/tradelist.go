package storage

import (
	"github.com/santoslabs/ledgercore/pkg/derivbook"
	"github.com/santoslabs/ledgercore/pkg/engine"
	"github.com/santoslabs/ledgercore/pkg/spotbook"
)

// TradeListStore persists every MetaDEx and ContractDEx fill, in block
// order — both Trade types' own doc comments already call out "handed to
// DbTradeList by the caller", which this store is. Values are stored as
// engine.TradeEvent, the same Spot-xor-Contract shape the engine
// accumulates in memory between blocks.
type TradeListStore struct{ s *Store }

func (s *Store) TradeList() TradeListStore { return TradeListStore{s: s} }

const prefixTradeList = "trd:"

func tradeListKey(block int64, txIndex, seq int) []byte {
	return joinKey([]byte(prefixTradeList), beHeight(block), beUint64(uint64(txIndex)), beUint64(uint64(seq)))
}

// AppendSpot records one MetaDEx fill.
func (t TradeListStore) AppendSpot(seq int, tr spotbook.Trade) error {
	ev := engine.TradeEvent{Spot: &tr}
	return t.s.set(tradeListKey(tr.Block, tr.TxIndex, seq), mustEncode(ev))
}

// AppendContract records one ContractDEx fill.
func (t TradeListStore) AppendContract(seq int, tr derivbook.Trade) error {
	ev := engine.TradeEvent{Contract: &tr}
	return t.s.set(tradeListKey(tr.Block, tr.TxIndex, seq), mustEncode(ev))
}

// Append records one event already in engine.TradeEvent form — the path
// the host uses when draining Engine.BlockTrades after a block.
func (t TradeListStore) Append(block int64, txIndex, seq int, ev engine.TradeEvent) error {
	return t.s.set(tradeListKey(block, txIndex, seq), mustEncode(ev))
}

// ForBlock returns every spot and contract fill recorded for height, in
// recording order.
func (t TradeListStore) ForBlock(height int64) (spot []spotbook.Trade, contract []derivbook.Trade, err error) {
	prefix := joinKey([]byte(prefixTradeList), beHeight(height))
	err = t.s.scan(prefix, func(_, val []byte) bool {
		var ev engine.TradeEvent
		if decodeGob(val, &ev) != nil {
			return true
		}
		if ev.Spot != nil {
			spot = append(spot, *ev.Spot)
		}
		if ev.Contract != nil {
			contract = append(contract, *ev.Contract)
		}
		return true
	})
	return spot, contract, err
}

// DeleteAboveBlock removes every fill recorded above height.
func (t TradeListStore) DeleteAboveBlock(height int64) error {
	lower := joinKey([]byte(prefixTradeList), beHeight(height+1))
	upper := keyUpperBound([]byte(prefixTradeList))
	return t.s.deleteBounds(lower, upper)
}
