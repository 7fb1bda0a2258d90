package derivbook

import (
	"github.com/santoslabs/ledgercore/pkg/registry"
	"github.com/santoslabs/ledgercore/pkg/tally"
	"github.com/santoslabs/ledgercore/pkg/types"
)

// Cancelled describes one resting order removed by a cancel operation,
// with the collateral it released back to Balance.
type Cancelled struct {
	Order    *Order
	Released int64
}

// releaseAll refunds each removed order's reserved margin from
// ContractMargin back to Balance and reports what was released.
func releaseAll(ledger *tally.Ledger, collateral types.AssetId, removed []*Order) []Cancelled {
	out := make([]Cancelled, 0, len(removed))
	for _, o := range removed {
		if o.ReservedMargin > 0 {
			ledger.Update(o.Sender, collateral, -o.ReservedMargin, tally.ContractMargin)
			ledger.Update(o.Sender, collateral, o.ReservedMargin, tally.Balance)
		}
		out = append(out, Cancelled{Order: o, Released: o.ReservedMargin})
	}
	return out
}

// CancelAtPrice implements ContractDexCancelAtPrice: removes sender's
// resting order(s) for contract on side at exactly price.
func CancelAtPrice(book *Book, ledger *tally.Ledger, prop registry.Property, sender types.Address, side Side, price int64) []Cancelled {
	removed := book.RemoveAllMatching(func(o *Order) bool {
		return o.Sender == sender && o.ContractID == prop.ID && o.Side == side && o.EffectivePrice == price
	})
	return releaseAll(ledger, prop.Contract.CollateralAsset, removed)
}

// CancelContract implements ContractDexCancelContract: removes every
// resting order sender has on contract, on either side.
func CancelContract(book *Book, ledger *tally.Ledger, prop registry.Property, sender types.Address) []Cancelled {
	removed := book.RemoveAllMatching(func(o *Order) bool {
		return o.Sender == sender && o.ContractID == prop.ID
	})
	return releaseAll(ledger, prop.Contract.CollateralAsset, removed)
}

// CancelEcosystem implements ContractDexCancelEcosystem: removes every
// resting order sender has on any contract satisfying isEcosystem.
func CancelEcosystem(book *Book, ledger *tally.Ledger, contracts []registry.Property, sender types.Address, isEcosystem func(types.AssetId) bool) []Cancelled {
	collateralOf := make(map[types.AssetId]types.AssetId, len(contracts))
	for _, p := range contracts {
		if p.Contract != nil {
			collateralOf[p.ID] = p.Contract.CollateralAsset
		}
	}
	removed := book.RemoveAllMatching(func(o *Order) bool {
		return o.Sender == sender && isEcosystem(o.ContractID)
	})
	var out []Cancelled
	for _, o := range removed {
		collateral := collateralOf[o.ContractID]
		out = append(out, releaseAll(ledger, collateral, []*Order{o})...)
	}
	return out
}

// CancelByBlock implements ContractDexCancelByBlock: removes sender's
// resting order(s) whose (block, tx_index) exactly match ref.
func CancelByBlock(book *Book, ledger *tally.Ledger, prop registry.Property, sender types.Address, ref types.BlockRef) []Cancelled {
	removed := book.RemoveAllMatching(func(o *Order) bool {
		return o.Sender == sender && o.ContractID == prop.ID && o.ref().Equal(ref)
	})
	return releaseAll(ledger, prop.Contract.CollateralAsset, removed)
}
