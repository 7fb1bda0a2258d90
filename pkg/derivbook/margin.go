package derivbook

import (
	"sort"

	"github.com/santoslabs/ledgercore/pkg/config"
	"github.com/santoslabs/ledgercore/pkg/registry"
	"github.com/santoslabs/ledgercore/pkg/tally"
	"github.com/santoslabs/ledgercore/pkg/types"
)

// SweepResult records what the sweep did to one position, for the block
// pipeline's event log.
type SweepResult struct {
	Address    types.Address
	ContractID types.AssetId
	Liquidated bool
	Warned     bool
	Trades     []Trade
}

// SweepContract implements spec.md §4.5.4 for a single contract: for
// every address with a position, compute UPNL against the current market
// price, then liquidate or warn as the shortfall dictates. Grounded on
// account.AccountManager.CheckMarginRequirement / CheckLiquidation /
// Liquidate (pkg/app/core/account_manager.go) for the
// shortfall-then-liquidate shape, generalized from a single USD-margined
// position to the tally ledger's signed PositivePosition/NegativePosition
// buckets and a per-contract margin_requirement_bps.
func SweepContract(book *Book, ledger *tally.Ledger, stats *ContractStats, prices *EntryPriceStore, cfg config.Margin, prop registry.Property) []SweepResult {
	if prop.Contract == nil {
		return nil
	}
	marketPrice := stats.LastMarketPrice(prop.ID)
	if marketPrice == 0 {
		return nil
	}

	var results []SweepResult
	for _, addr := range ledger.AddressesForAsset(prop.ID) {
		size := NetSize(ledger, addr, prop.ID)
		if size == 0 {
			continue
		}
		entry := prices.Get(addr, prop.ID)
		initMargin := ledger.Balance(addr, prop.Contract.CollateralAsset, tally.ContractMargin)
		if initMargin == 0 {
			continue
		}

		upnl := (marketPrice - entry) * size
		posMargin, _ := types.MulDivFloor(abs(size), prop.Contract.MarginRequirementBps, 10000)
		ordersMargin := initMargin - posMargin

		shortfallBps := int64(0)
		if upnl < 0 {
			shortfallBps, _ = types.MulDivFloor(-upnl, 10000, initMargin)
		}

		res := SweepResult{Address: addr, ContractID: prop.ID}

		switch {
		case shortfallBps >= cfg.LiquidationFactorBps:
			side := Sell
			if size < 0 {
				side = Buy
			}
			trades, err := MarketOrder(book, ledger, stats, prices, prop, addr, prop.ID, abs(size), side, 1, types.Hash{}, 0, 0)
			if err == nil {
				res.Liquidated = true
				res.Trades = trades
			}
			ledger.Update(addr, prop.ID, -ledger.Balance(addr, prop.ID, tally.LiquidationPrice), tally.LiquidationPrice)

		case shortfallBps >= cfg.WarningFactorBps:
			toCancel := ordersToCancel(book, addr, prop.ID, ordersMargin)
			cancelled := book.RemoveAllMatching(func(o *Order) bool {
				_, ok := toCancel[o.TxHash]
				return ok
			})
			for _, o := range cancelled {
				ledger.Update(addr, prop.Contract.CollateralAsset, -o.ReservedMargin, tally.ContractMargin)
				ledger.Update(addr, prop.Contract.CollateralAsset, o.ReservedMargin, tally.Balance)
			}

			shortfall := posMargin - (initMargin - sumReserved(cancelled))
			if shortfall > 0 {
				drawn := shortfall
				if bal := ledger.Balance(addr, prop.Contract.CollateralAsset, tally.Balance); bal < drawn {
					drawn = bal
				}
				if drawn > 0 {
					ledger.Update(addr, prop.Contract.CollateralAsset, -drawn, tally.Balance)
					ledger.Update(addr, prop.Contract.CollateralAsset, drawn, tally.ContractMargin)
					shortfall -= drawn
				}
			}
			if shortfall > 0 {
				side := Sell
				if size < 0 {
					side = Buy
				}
				reduceBy, _ := types.MulDivFloor(abs(size), shortfall, posMargin+shortfall)
				if reduceBy > 0 {
					trades, err := MarketOrder(book, ledger, stats, prices, prop, addr, prop.ID, reduceBy, side, 1, types.Hash{}, 0, 0)
					if err == nil {
						res.Trades = trades
					}
				}
			}
			res.Warned = true
		}

		if res.Liquidated || res.Warned {
			results = append(results, res)
		}
	}
	return results
}

func sumReserved(orders []*Order) int64 {
	var sum int64
	for _, o := range orders {
		sum += o.ReservedMargin
	}
	return sum
}

// ordersToCancel selects addr's resting orders on contract in FIFO
// (block, tx_index) order, stopping as soon as the running orders_margin
// shortfall is covered — per §4.5.4 "cancel the sender's open orders...
// until orders_margin covers the shortfall or all orders are gone." The
// selection only reads the book (via Snapshot); the caller removes the
// selected set from the book in one RemoveAllMatching pass so every
// cancelled order's margin is released exactly once.
func ordersToCancel(book *Book, addr types.Address, contract types.AssetId, ordersMargin int64) map[types.Hash]struct{} {
	var candidates []*Order
	for _, o := range book.Snapshot() {
		if o.Sender == addr && o.ContractID == contract {
			candidates = append(candidates, o)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ref().Less(candidates[j].ref())
	})

	selected := make(map[types.Hash]struct{}, len(candidates))
	for _, o := range candidates {
		selected[o.TxHash] = struct{}{}
		ordersMargin -= o.ReservedMargin
		if ordersMargin <= 0 {
			break
		}
	}
	return selected
}
