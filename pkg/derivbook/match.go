package derivbook

import (
	"fmt"

	"github.com/santoslabs/ledgercore/pkg/registry"
	"github.com/santoslabs/ledgercore/pkg/tally"
	"github.com/santoslabs/ledgercore/pkg/types"
)

// Trade is one recorded ContractDex fill.
type Trade struct {
	MakerTxHash    types.Hash
	TakerTxHash    types.Hash
	ContractID     types.AssetId
	Amount         int64
	EffectivePrice int64
	Block          int64
	TxIndex        int
	TakerEvents    []SubEvent
	MakerEvents    []SubEvent
}

// TradeInput is one incoming ContractDexTrade, already validated by the
// caller (contract exists, block within its active window,
// effective_price > 0, sender has sufficient collateral Balance for the
// reserve).
type TradeInput struct {
	Sender         types.Address
	ContractID     types.AssetId
	Amount         int64
	EffectivePrice int64
	Leverage       int64
	Side           Side
	TxHash         types.Hash
	Block          int64
	TxIndex        int
}

// Execute implements spec.md §4.5.1: reserve margin, match against the
// opposite ladder within the taker's price bound, net positions on both
// sides via ApplyFill, record VWAP/TWAP, then rest any residual as a
// limit order. Market orders (§4.5.2) call execute directly with
// rest=false so an unfilled remainder is simply left unfilled rather
// than resting at the market-order's momentary reference price.
func Execute(book *Book, ledger *tally.Ledger, stats *ContractStats, prices *EntryPriceStore, prop registry.Property, in TradeInput) ([]Trade, error) {
	return execute(book, ledger, stats, prices, prop, in, true)
}

func execute(book *Book, ledger *tally.Ledger, stats *ContractStats, prices *EntryPriceStore, prop registry.Property, in TradeInput, rest bool) ([]Trade, error) {
	if in.EffectivePrice <= 0 {
		return nil, fmt.Errorf("derivbook: effective_price must be positive")
	}
	if prop.Contract == nil {
		return nil, fmt.Errorf("derivbook: property %d is not a contract", in.ContractID)
	}

	reserve, err := requiredMargin(in.Amount, prop.Contract.MarginRequirementBps, in.Leverage)
	if err != nil {
		return nil, err
	}
	if !ledger.Update(in.Sender, prop.Contract.CollateralAsset, -reserve, tally.Balance) {
		return nil, fmt.Errorf("derivbook: insufficient collateral balance for margin reserve")
	}
	if !ledger.Update(in.Sender, prop.Contract.CollateralAsset, reserve, tally.ContractMargin) {
		ledger.Update(in.Sender, prop.Contract.CollateralAsset, reserve, tally.Balance)
		return nil, fmt.Errorf("derivbook: margin credit failed")
	}

	taker := &Order{
		Sender: in.Sender, ContractID: in.ContractID, Side: in.Side,
		EffectivePrice: in.EffectivePrice, Leverage: in.Leverage,
		AmountRemaining: in.Amount, ReservedMargin: reserve,
		TxHash: in.TxHash, Block: in.Block, TxIndex: in.TxIndex,
	}

	var trades []Trade

	for _, lvl := range book.MatchingLevels(in.ContractID, in.Side) {
		if !priceCompatible(in.Side, in.EffectivePrice, lvl.price) {
			break
		}
		for _, maker := range append([]*Order(nil), lvl.orders...) {
			if taker.AmountRemaining == 0 {
				break
			}
			if maker.Side == in.Side || maker.Sender == in.Sender || maker.AmountRemaining == 0 {
				continue
			}

			n := maker.AmountRemaining
			if taker.AmountRemaining < n {
				n = taker.AmountRemaining
			}
			if n == 0 {
				continue
			}

			takerEvents, _, err := ApplyFill(ledger, prices, taker.Sender, in.ContractID, prop.Contract.CollateralAsset,
				signedDelta(in.Side, n), in.EffectivePrice, prop.Contract.MarginRequirementBps, taker.Leverage)
			if err != nil {
				return trades, err
			}
			makerEvents, _, err := ApplyFill(ledger, prices, maker.Sender, in.ContractID, prop.Contract.CollateralAsset,
				signedDelta(maker.Side, n), in.EffectivePrice, prop.Contract.MarginRequirementBps, maker.Leverage)
			if err != nil {
				return trades, err
			}

			stats.RecordFill(in.ContractID, prop.Contract.NotionalSize, n, in.EffectivePrice)

			trades = append(trades, Trade{
				MakerTxHash: maker.TxHash, TakerTxHash: in.TxHash,
				ContractID: in.ContractID, Amount: n, EffectivePrice: in.EffectivePrice,
				Block: in.Block, TxIndex: in.TxIndex,
				TakerEvents: takerEvents, MakerEvents: makerEvents,
			})

			book.Reduce(maker, maker.AmountRemaining-n)
			taker.AmountRemaining -= n
		}
		if taker.AmountRemaining == 0 {
			break
		}
	}

	filled := in.Amount - taker.AmountRemaining
	if rest && taker.AmountRemaining > 0 {
		if filled > 0 {
			partial, err := requiredMargin(taker.AmountRemaining, prop.Contract.MarginRequirementBps, in.Leverage)
			if err == nil {
				released := reserve - partial
				ledger.Update(in.Sender, prop.Contract.CollateralAsset, -released, tally.ContractMargin)
				ledger.Update(in.Sender, prop.Contract.CollateralAsset, released, tally.Balance)
				taker.ReservedMargin = partial
			}
		}
		book.Insert(taker)
	} else if !rest && taker.AmountRemaining > 0 {
		// Market order: the unfilled remainder never rests, so its
		// margin reserve is released back to Balance.
		unfilledMargin, err := requiredMargin(taker.AmountRemaining, prop.Contract.MarginRequirementBps, in.Leverage)
		if err == nil {
			ledger.Update(in.Sender, prop.Contract.CollateralAsset, -unfilledMargin, tally.ContractMargin)
			ledger.Update(in.Sender, prop.Contract.CollateralAsset, unfilledMargin, tally.Balance)
		}
	}

	return trades, nil
}

// priceCompatible reports whether a resting level at levelPrice is still
// reachable by a new order at newPrice on side: a Buy matches asks while
// newPrice >= levelPrice (levels walked ascending), a Sell matches bids
// while newPrice <= levelPrice (levels walked descending).
func priceCompatible(side Side, newPrice, levelPrice int64) bool {
	if side == Buy {
		return newPrice >= levelPrice
	}
	return newPrice <= levelPrice
}

func signedDelta(side Side, amount int64) int64 {
	if side == Buy {
		return amount
	}
	return -amount
}

// requiredMargin computes amount * margin_requirement_bps / (10000 *
// leverage), per spec.md §4.5.1's "reserve = amount × margin_requirement
// / leverage" with margin_requirement expressed in basis points.
func requiredMargin(amount, marginBps, leverage int64) (int64, error) {
	if leverage <= 0 {
		return 0, fmt.Errorf("derivbook: leverage must be positive")
	}
	return types.MulDivFloor(amount, marginBps, 10000*leverage)
}

// MarketOrder implements ContractDexAddMarketPrice (§4.5.2): repeatedly
// price a limit order at the current best opposite edge and execute,
// until the requested amount is fully filled or the book runs dry.
func MarketOrder(book *Book, ledger *tally.Ledger, stats *ContractStats, prices *EntryPriceStore, prop registry.Property, sender types.Address, contract types.AssetId, amount int64, side Side, leverage int64, txHash types.Hash, block int64, txIndex int) ([]Trade, error) {
	var allTrades []Trade
	remaining := amount

	for remaining > 0 {
		price, ok := book.BestOpposite(contract, side)
		if !ok {
			break
		}
		trades, err := execute(book, ledger, stats, prices, prop, TradeInput{
			Sender: sender, ContractID: contract, Amount: remaining,
			EffectivePrice: price, Leverage: leverage, Side: side,
			TxHash: txHash, Block: block, TxIndex: txIndex,
		}, false)
		if err != nil {
			return allTrades, err
		}
		allTrades = append(allTrades, trades...)

		var filled int64
		for _, t := range trades {
			filled += t.Amount
		}
		if filled == 0 {
			break
		}
		remaining -= filled
	}
	return allTrades, nil
}
