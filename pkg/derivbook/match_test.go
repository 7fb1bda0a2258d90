package derivbook

import (
	"testing"

	"github.com/santoslabs/ledgercore/pkg/config"
	"github.com/santoslabs/ledgercore/pkg/registry"
	"github.com/santoslabs/ledgercore/pkg/tally"
	"github.com/santoslabs/ledgercore/pkg/types"
)

const (
	usdc     types.AssetId = 10
	contract types.AssetId = 20
)

func fundedLedger() *tally.Ledger {
	l := tally.New()
	l.Update("maker", usdc, 100_000, tally.Balance)
	l.Update("taker", usdc, 100_000, tally.Balance)
	return l
}

func testContract() registry.Property {
	return registry.Property{
		ID: contract, Kind: registry.Contract, Issuer: "issuer",
		Contract: &registry.ContractParams{
			NotionalSize: 1, MarginRequirementBps: 1000, // 10%
			CollateralAsset: usdc, BlocksUntilExpiration: 1000, InitBlock: 1,
		},
	}
}

func TestExecuteOpensOppositePositions(t *testing.T) {
	l := fundedLedger()
	book := New()
	stats := NewContractStats()
	prices := NewEntryPriceStore()
	prop := testContract()

	book.Insert(&Order{
		Sender: "maker", ContractID: contract, Side: Sell,
		EffectivePrice: 100, Leverage: 1, AmountRemaining: 50, ReservedMargin: 500,
		Block: 1, TxIndex: 0,
	})
	l.Update("maker", usdc, -500, tally.Balance)
	l.Update("maker", usdc, 500, tally.ContractMargin)

	trades, err := Execute(book, l, stats, prices, prop, TradeInput{
		Sender: "taker", ContractID: contract, Amount: 50, EffectivePrice: 100,
		Leverage: 1, Side: Buy, TxHash: types.Hash{1}, Block: 2, TxIndex: 0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trades) != 1 || trades[0].Amount != 50 {
		t.Fatalf("got %+v", trades)
	}
	if got := NetSize(l, "taker", contract); got != 50 {
		t.Fatalf("taker net size = %d", got)
	}
	if got := NetSize(l, "maker", contract); got != -50 {
		t.Fatalf("maker net size = %d", got)
	}
	if len(book.Snapshot()) != 0 {
		t.Fatalf("expected maker order fully consumed")
	}
}

func TestExecuteRestsResidualAsLimitOrder(t *testing.T) {
	l := fundedLedger()
	book := New()
	stats := NewContractStats()
	prices := NewEntryPriceStore()
	prop := testContract()

	book.Insert(&Order{
		Sender: "maker", ContractID: contract, Side: Sell,
		EffectivePrice: 100, Leverage: 1, AmountRemaining: 20, ReservedMargin: 200,
		Block: 1, TxIndex: 0,
	})
	l.Update("maker", usdc, -200, tally.Balance)
	l.Update("maker", usdc, 200, tally.ContractMargin)

	trades, err := Execute(book, l, stats, prices, prop, TradeInput{
		Sender: "taker", ContractID: contract, Amount: 50, EffectivePrice: 100,
		Leverage: 1, Side: Buy, TxHash: types.Hash{2}, Block: 2, TxIndex: 0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trades) != 1 || trades[0].Amount != 20 {
		t.Fatalf("got %+v", trades)
	}
	snap := book.Snapshot()
	if len(snap) != 1 || snap[0].Sender != "taker" || snap[0].AmountRemaining != 30 {
		t.Fatalf("expected resting residual of 30 for taker, got %+v", snap)
	}
}

func TestMarketOrderDoesNotRestUnfilled(t *testing.T) {
	l := fundedLedger()
	book := New()
	stats := NewContractStats()
	prices := NewEntryPriceStore()
	prop := testContract()

	book.Insert(&Order{
		Sender: "maker", ContractID: contract, Side: Sell,
		EffectivePrice: 100, Leverage: 1, AmountRemaining: 10, ReservedMargin: 100,
		Block: 1, TxIndex: 0,
	})
	l.Update("maker", usdc, -100, tally.Balance)
	l.Update("maker", usdc, 100, tally.ContractMargin)

	takerBalanceBefore := l.Balance("taker", usdc, tally.Balance)

	trades, err := MarketOrder(book, l, stats, prices, prop, "taker", contract, 50, Buy, 1, types.Hash{3}, 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trades) != 1 || trades[0].Amount != 10 {
		t.Fatalf("got %+v", trades)
	}
	if len(book.Snapshot()) != 0 {
		t.Fatalf("expected no resting order from a market order, got %+v", book.Snapshot())
	}
	// Margin for the unfilled 40 units was reserved then released: net
	// balance change should equal only the margin actually used to open
	// the filled 10 units (10 * 1000bps / 10000 = 1).
	if got := takerBalanceBefore - l.Balance("taker", usdc, tally.Balance); got != 1 {
		t.Fatalf("expected net margin debit of 1, got %d", got)
	}
}

func TestApplyFillRealizesPnLOnClose(t *testing.T) {
	l := tally.New()
	prices := NewEntryPriceStore()
	l.Update("alice", contract, 10, tally.PositivePosition)
	// The margin reserved for 10 units at 1000bps, leverage 1: 10*1000/10000 = 1.
	l.Update("alice", usdc, 1, tally.ContractMargin)
	prices2 := prices
	prices2.set("alice", contract, 100)

	events, realized, err := ApplyFill(l, prices2, "alice", contract, usdc, -10, 110, 1000, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if realized != 100 {
		t.Fatalf("expected realized pnl 100, got %d", realized)
	}
	if len(events) != 1 || events[0].Status != StatusLongNetted {
		t.Fatalf("got %+v", events)
	}
	if got := NetSize(l, "alice", contract); got != 0 {
		t.Fatalf("expected flat position, got %d", got)
	}
	if got := l.Balance("alice", usdc, tally.ContractMargin); got != 0 {
		t.Fatalf("expected margin fully released, got %d", got)
	}
}

func TestSweepContractLiquidatesOnBreach(t *testing.T) {
	l := fundedLedger()
	book := New()
	stats := NewContractStats()
	prices := NewEntryPriceStore()
	prop := testContract()

	book.Insert(&Order{
		Sender: "maker", ContractID: contract, Side: Sell,
		EffectivePrice: 100, Leverage: 1, AmountRemaining: 10, ReservedMargin: 100,
		Block: 1, TxIndex: 0,
	})
	l.Update("maker", usdc, -100, tally.Balance)
	l.Update("maker", usdc, 100, tally.ContractMargin)

	if _, err := Execute(book, l, stats, prices, prop, TradeInput{
		Sender: "taker", ContractID: contract, Amount: 10, EffectivePrice: 100,
		Leverage: 1, Side: Buy, TxHash: types.Hash{4}, Block: 2, TxIndex: 0,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Crash the market far below the taker's long entry to force a breach.
	book.Insert(&Order{
		Sender: "liquidity", ContractID: contract, Side: Buy,
		EffectivePrice: 1, Leverage: 1, AmountRemaining: 1000, ReservedMargin: 0,
		Block: 3, TxIndex: 0,
	})
	stats.RecordFill(contract, 1, 1, 1)

	cfg := config.Default().Margin
	results := SweepContract(book, l, stats, prices, cfg, prop)
	if len(results) != 1 || !results[0].Liquidated || results[0].Address != "taker" {
		t.Fatalf("expected taker liquidated, got %+v", results)
	}
	if got := NetSize(l, "taker", contract); got != 0 {
		t.Fatalf("expected position fully closed, got %d", got)
	}
}

// TestSweepContractWarningDoesNotStrandCancelledMargin covers the
// warning path with three resting orders, where only a prefix of them
// is needed to cover the shortfall. Before the fix, every resting order
// was removed from the book up front but the margin-release loop broke
// early, leaving the last order's ReservedMargin stuck in ContractMargin
// with no order and no position backing it. This asserts every order
// still resting afterwards stays exactly as reserved, and every order
// actually removed from the book has its margin fully released.
func TestSweepContractWarningDoesNotStrandCancelledMargin(t *testing.T) {
	l := fundedLedger()
	book := New()
	stats := NewContractStats()
	prices := NewEntryPriceStore()
	prop := testContract()
	prop.Contract.MarginRequirementBps = 10000 // 100%, to keep numbers small

	l.Update("taker", contract, 15, tally.PositivePosition)
	l.Update("taker", usdc, -35, tally.Balance)
	l.Update("taker", usdc, 35, tally.ContractMargin)
	balanceBefore := l.Balance("taker", usdc, tally.Balance)
	prices.set("taker", contract, 100)
	stats.RecordFill(contract, 1, 99, 99)

	orders := []*Order{
		{Sender: "taker", ContractID: contract, Side: Sell, EffectivePrice: 99, Leverage: 1, AmountRemaining: 1, ReservedMargin: 10, Block: 1, TxIndex: 0, TxHash: types.Hash{10}},
		{Sender: "taker", ContractID: contract, Side: Sell, EffectivePrice: 99, Leverage: 1, AmountRemaining: 1, ReservedMargin: 10, Block: 1, TxIndex: 1, TxHash: types.Hash{11}},
		{Sender: "taker", ContractID: contract, Side: Sell, EffectivePrice: 99, Leverage: 1, AmountRemaining: 1, ReservedMargin: 10, Block: 1, TxIndex: 2, TxHash: types.Hash{12}},
	}
	for _, o := range orders {
		book.Insert(o)
	}

	cfg := config.Default().Margin
	results := SweepContract(book, l, stats, prices, cfg, prop)
	if len(results) != 1 || !results[0].Warned || results[0].Liquidated {
		t.Fatalf("expected taker warned (not liquidated), got %+v", results)
	}

	snap := book.Snapshot()
	if len(snap) != 1 || snap[0].TxHash != (types.Hash{12}) {
		t.Fatalf("expected only the third order still resting, got %+v", snap)
	}
	if got := snap[0].ReservedMargin; got != 10 {
		t.Fatalf("resting order's reserved margin must be untouched, got %d", got)
	}

	// Two orders (20 total) were cancelled; ContractMargin must drop by
	// exactly that amount — no more (stranded) and no less (leaked).
	if got := l.Balance("taker", usdc, tally.ContractMargin); got != 15 {
		t.Fatalf("expected ContractMargin of 15 (35 - 20 released), got %d", got)
	}
	if got := l.Balance("taker", usdc, tally.Balance) - balanceBefore; got != 20 {
		t.Fatalf("expected the released margin credited back to Balance, got delta %d", got)
	}
}
