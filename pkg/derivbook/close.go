package derivbook

import (
	"fmt"

	"github.com/santoslabs/ledgercore/pkg/registry"
	"github.com/santoslabs/ledgercore/pkg/tally"
	"github.com/santoslabs/ledgercore/pkg/types"
)

// ClosePosition implements ContractDexClosePosition (§4.5.5): sizes a
// market order to sender's current NetSize on contract and executes it
// against the opposite ladder, fully unwinding the position (or as much
// of it as the book can absorb) and clearing any stale LiquidationPrice
// marker once the position reaches zero.
func ClosePosition(book *Book, ledger *tally.Ledger, stats *ContractStats, prices *EntryPriceStore, prop registry.Property, sender types.Address, txHash types.Hash, block int64, txIndex int) ([]Trade, error) {
	if prop.Contract == nil {
		return nil, fmt.Errorf("derivbook: property %d is not a contract", prop.ID)
	}
	size := NetSize(ledger, sender, prop.ID)
	if size == 0 {
		return nil, nil
	}

	side := Sell
	if size < 0 {
		side = Buy
	}

	trades, err := MarketOrder(book, ledger, stats, prices, prop, sender, prop.ID, abs(size), side, 1, txHash, block, txIndex)
	if err != nil {
		return trades, err
	}

	if NetSize(ledger, sender, prop.ID) == 0 {
		ledger.Update(sender, prop.ID, -ledger.Balance(sender, prop.ID, tally.LiquidationPrice), tally.LiquidationPrice)
	}
	return trades, nil
}
