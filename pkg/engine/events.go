package engine

import (
	"github.com/santoslabs/ledgercore/pkg/derivbook"
	"github.com/santoslabs/ledgercore/pkg/spotbook"
	"github.com/santoslabs/ledgercore/pkg/types"
)

// TradeEvent is one MetaDEx or ContractDEx fill surfaced for the host to
// persist into its TradeListStore — exactly one of Spot/Contract is set.
type TradeEvent struct {
	Spot     *spotbook.Trade
	Contract *derivbook.Trade
}

// DistributionEvent is one SendToOwners transaction's totals, surfaced
// for the host's STOListStore.
type DistributionEvent struct {
	TxHash               types.Hash
	Sender               types.Address
	Property             types.AssetId
	DistributionProperty types.AssetId
	AmountTotal          int64
	RecipientCount       int
	Block                int64
	TxIndex              int
}

// BlockTrades returns every fill recorded during height, in dispatch
// order.
func (e *Engine) BlockTrades(height int64) []TradeEvent {
	e.tallyLock.Lock()
	defer e.tallyLock.Unlock()
	var out []TradeEvent
	for _, t := range e.tradeLog {
		if t.blockOf() == height {
			out = append(out, t)
		}
	}
	return out
}

func (t TradeEvent) blockOf() int64 {
	if t.Spot != nil {
		return t.Spot.Block
	}
	if t.Contract != nil {
		return t.Contract.Block
	}
	return -1
}

// TxIndex returns the originating transaction's index within its block,
// for callers building a storage key out of a drained TradeEvent.
func (t TradeEvent) TxIndex() int {
	if t.Spot != nil {
		return t.Spot.TxIndex
	}
	if t.Contract != nil {
		return t.Contract.TxIndex
	}
	return -1
}

// BlockDistributions returns every SendToOwners event recorded during
// height.
func (e *Engine) BlockDistributions(height int64) []DistributionEvent {
	e.tallyLock.Lock()
	defer e.tallyLock.Unlock()
	var out []DistributionEvent
	for _, d := range e.distLog {
		if d.Block == height {
			out = append(out, d)
		}
	}
	return out
}
