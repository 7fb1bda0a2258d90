package spotbook

import (
	"testing"

	"github.com/santoslabs/ledgercore/pkg/feecache"
	"github.com/santoslabs/ledgercore/pkg/tally"
	"github.com/santoslabs/ledgercore/pkg/types"
)

const (
	propA types.AssetId = 10
	propB types.AssetId = 20
)

func fundedLedger() *tally.Ledger {
	l := tally.New()
	l.Update("maker", propA, 1000, tally.MetaDexReserve)
	l.Update("taker", propB, 1000, tally.Balance)
	return l
}

func TestExecuteFullFillNoResidual(t *testing.T) {
	l := fundedLedger()
	book := New()
	fees := feecache.New()

	maker := &Offer{
		Sender: "maker", PropertyForSale: propA, PropertyDesired: propB,
		AmountForSale: 100, AmountDesired: 100, AmountRemaining: 100,
		Block: 1, TxIndex: 0,
	}
	if err := book.Insert(maker); err != nil {
		t.Fatalf("insert maker: %v", err)
	}

	trades, err := Execute(book, l, fees, TradeInput{
		Sender: "taker", PropertyForSale: propB, AmountForSale: 100,
		PropertyDesired: propA, AmountDesired: 100,
		TxHash: types.Hash{1}, Block: 2, TxIndex: 0,
	}, false, 2000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if got := l.Balance("taker", propA, tally.Balance); got != 100 {
		t.Fatalf("taker propA balance = %d", got)
	}
	if got := l.Balance("maker", propB, tally.Balance); got != 100 {
		t.Fatalf("maker propB balance = %d", got)
	}
	if got := l.Balance("maker", propA, tally.MetaDexReserve); got != 900 {
		t.Fatalf("maker propA reserve = %d", got)
	}
	if len(book.Snapshot()) != 0 {
		t.Fatalf("expected maker offer fully consumed")
	}
}

func TestExecuteLeavesResidualReserved(t *testing.T) {
	l := fundedLedger()
	l.Update("taker", propB, 500, tally.Balance) // total 1500 available
	book := New()
	fees := feecache.New()

	maker := &Offer{
		Sender: "maker", PropertyForSale: propA, PropertyDesired: propB,
		AmountForSale: 100, AmountDesired: 100, AmountRemaining: 100,
		Block: 1, TxIndex: 0,
	}
	book.Insert(maker)

	trades, err := Execute(book, l, fees, TradeInput{
		Sender: "taker", PropertyForSale: propB, AmountForSale: 300,
		PropertyDesired: propA, AmountDesired: 300,
		TxHash: types.Hash{2}, Block: 3, TxIndex: 0,
	}, false, 2000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trades) != 1 || trades[0].AmountBought != 100 {
		t.Fatalf("got %+v", trades)
	}
	if got := l.Balance("taker", propB, tally.MetaDexReserve); got != 200 {
		t.Fatalf("expected 200 left over reserved, got %d", got)
	}
	snap := book.Snapshot()
	if len(snap) != 1 || snap[0].PropertyForSale != propB || snap[0].AmountRemaining != 200 {
		t.Fatalf("expected leftover offer of 200 under propB, got %+v", snap)
	}
}

func TestExecuteAppliesFeeWhenActive(t *testing.T) {
	l := fundedLedger()
	l.Update("maker", propA, 9000, tally.MetaDexReserve) // 10000 total
	l.Update("taker", propB, 3000, tally.Balance)        // 4000 total
	book := New()
	fees := feecache.New()

	// Use non-ecosystem-native ids (> ReservedAssetIdCeiling, already true here).
	maker := &Offer{
		Sender: "maker", PropertyForSale: propA, PropertyDesired: propB,
		AmountForSale: 10000, AmountDesired: 10000, AmountRemaining: 10000,
		Block: 1, TxIndex: 0,
	}
	book.Insert(maker)

	_, err := Execute(book, l, fees, TradeInput{
		Sender: "taker", PropertyForSale: propB, AmountForSale: 4000,
		PropertyDesired: propA, AmountDesired: 4000,
		TxHash: types.Hash{3}, Block: 2, TxIndex: 0,
	}, true, 2000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := fees.Balance(propA); got != 4000/2000 {
		t.Fatalf("expected fee %d, got %d", 4000/2000, got)
	}
}
