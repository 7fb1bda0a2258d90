package spotbook

import (
	"fmt"

	"github.com/santoslabs/ledgercore/pkg/feecache"
	"github.com/santoslabs/ledgercore/pkg/tally"
	"github.com/santoslabs/ledgercore/pkg/types"
)

// Trade is a recorded fill, handed to DbTradeList by the caller.
type Trade struct {
	MakerTxHash     types.Hash
	TakerTxHash     types.Hash
	PropertyForSale types.AssetId // the new order's sale property (what the taker delivers)
	PropertyDesired types.AssetId // the new order's desired property (what the taker receives)
	AmountSold      int64         // n_would_pay, in PropertyForSale
	AmountBought    int64         // n_could_buy, in PropertyDesired
	Fee             int64         // in PropertyDesired
	Block           int64
	TxIndex         int
}

// TradeInput is one incoming MetaDExTrade, already validated by the
// caller (both properties exist, same ecosystem, distinct, amounts in
// (0, 2^63), sender has sufficient Balance, sender not frozen).
type TradeInput struct {
	Sender          types.Address
	PropertyForSale types.AssetId
	AmountForSale   int64
	PropertyDesired types.AssetId
	AmountDesired   int64
	TxHash          types.Hash
	Block           int64
	TxIndex         int
}

// Execute runs spec.md §4.4.1 in full: match against the resting book for
// PropertyDesired, then insert any leftover under PropertyForSale.
// feesActive and feeDivisor gate the 0.05% skim; ledger mutations are
// committed per fill via four tally.Update calls, rolled back atomically
// on any failure (a fill either fully commits or not at all — the overall
// operation is itself wrapped in the caller's per-tx save-point).
func Execute(book *Book, ledger *tally.Ledger, fees *feecache.Cache, in TradeInput, feesActive bool, feeDivisor int64) ([]Trade, error) {
	newOffer := &Offer{
		Sender:          in.Sender,
		PropertyForSale: in.PropertyForSale,
		PropertyDesired: in.PropertyDesired,
		AmountForSale:   in.AmountForSale,
		AmountDesired:   in.AmountDesired,
		AmountRemaining: in.AmountForSale,
		TxHash:          in.TxHash,
		Block:           in.Block,
		TxIndex:         in.TxIndex,
	}
	if !newOffer.UnitPrice().IsPositive() {
		return nil, fmt.Errorf("spotbook: non-positive unit price")
	}

	limit := newOffer.InversePrice()
	var trades []Trade

	for _, lvl := range book.AscendingLevels(in.PropertyDesired) {
		if lvl.Price.Cmp(limit) > 0 {
			break // this and every higher level exceed the taker's limit
		}

		for _, maker := range lvl.Offers {
			if newOffer.AmountRemaining == 0 {
				break
			}
			if maker.PropertyDesired != in.PropertyForSale {
				continue
			}

			nCouldBuy, err := types.MulDivFloor(newOffer.AmountRemaining, maker.AmountForSale, maker.AmountDesired)
			if err != nil {
				return trades, fmt.Errorf("spotbook: n_could_buy: %w", err)
			}
			if nCouldBuy > maker.AmountRemaining {
				nCouldBuy = maker.AmountRemaining
			}
			if nCouldBuy == 0 {
				continue
			}

			nWouldPay, err := types.MulDivCeil(nCouldBuy, maker.AmountDesired, maker.AmountForSale)
			if err != nil {
				return trades, fmt.Errorf("spotbook: n_would_pay: %w", err)
			}

			effectivePrice, err := types.NewPrice(nWouldPay, nCouldBuy)
			if err == nil && effectivePrice.Cmp(limit) > 0 {
				continue
			}

			var fee int64
			if feesActive && feeDivisor > 0 &&
				!types.IsEcosystemNative(in.PropertyDesired) && !types.IsEcosystemNative(in.PropertyForSale) {
				fee = nCouldBuy / feeDivisor
			}

			if err := commitFill(ledger, maker, newOffer, nCouldBuy, nWouldPay, fee); err != nil {
				return trades, err
			}
			if fee > 0 {
				fees.Credit(in.PropertyDesired, fee)
			}

			trades = append(trades, Trade{
				MakerTxHash:     maker.TxHash,
				TakerTxHash:     in.TxHash,
				PropertyForSale: in.PropertyForSale,
				PropertyDesired: in.PropertyDesired,
				AmountSold:      nWouldPay,
				AmountBought:    nCouldBuy,
				Fee:             fee,
				Block:           in.Block,
				TxIndex:         in.TxIndex,
			})

			book.Reduce(maker, maker.AmountRemaining-nCouldBuy)
			newOffer.AmountRemaining -= nWouldPay
		}
		if newOffer.AmountRemaining == 0 {
			break
		}
	}

	if newOffer.AmountRemaining > 0 {
		if !ledger.Update(in.Sender, in.PropertyForSale, -newOffer.AmountRemaining, tally.Balance) {
			return trades, fmt.Errorf("spotbook: insufficient balance for leftover reserve")
		}
		if !ledger.Update(in.Sender, in.PropertyForSale, newOffer.AmountRemaining, tally.MetaDexReserve) {
			return trades, fmt.Errorf("spotbook: reserve credit failed")
		}
		if err := book.Insert(newOffer); err != nil {
			// Unwind the reserve move — the book rejected a genuine
			// protocol invariant violation (duplicate block/tx_index).
			ledger.Update(in.Sender, in.PropertyForSale, -newOffer.AmountRemaining, tally.MetaDexReserve)
			ledger.Update(in.Sender, in.PropertyForSale, newOffer.AmountRemaining, tally.Balance)
			return trades, err
		}
	}

	return trades, nil
}

// commitFill applies the four tally updates of §4.4.1 step 2's "commit
// four tally updates" atomically: either all four succeed or none do.
func commitFill(ledger *tally.Ledger, maker, taker *Offer, nCouldBuy, nWouldPay, fee int64) error {
	type step struct {
		addr   types.Address
		asset  types.AssetId
		delta  int64
		bucket tally.Bucket
	}
	steps := []step{
		{maker.Sender, taker.PropertyForSale, nWouldPay, tally.Balance},        // maker paid in its desired property
		{taker.Sender, taker.PropertyForSale, -nWouldPay, tally.Balance},       // taker pays directly from Balance; only a leftover remainder is ever reserved
		{taker.Sender, taker.PropertyDesired, nCouldBuy - fee, tally.Balance},  // taker receives, minus fee
		{maker.Sender, maker.PropertyForSale, -nCouldBuy, tally.MetaDexReserve}, // maker's resting reserve spent
	}

	applied := 0
	for _, s := range steps {
		if !ledger.Update(s.addr, s.asset, s.delta, s.bucket) {
			for i := applied - 1; i >= 0; i-- {
				ledger.Update(steps[i].addr, steps[i].asset, -steps[i].delta, steps[i].bucket)
			}
			return fmt.Errorf("spotbook: fill commit failed at step %d for %s/%d", applied, s.addr, s.asset)
		}
		applied++
	}
	return nil
}
