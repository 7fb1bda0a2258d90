package channel

import (
	"testing"

	"github.com/santoslabs/ledgercore/pkg/derivbook"
	"github.com/santoslabs/ledgercore/pkg/feecache"
	"github.com/santoslabs/ledgercore/pkg/registry"
	"github.com/santoslabs/ledgercore/pkg/tally"
	"github.com/santoslabs/ledgercore/pkg/types"
)

const (
	p types.Address = "P"
	q types.Address = "Q"
	m types.Address = "M"

	asset5 types.AssetId = 5
	asset7 types.AssetId = 7
)

func TestCommitAndWithdrawal(t *testing.T) {
	l := tally.New()
	l.Update(p, asset5, 1000, tally.Balance)
	r := New()

	if err := r.CreateChannel(m, p, q, 1000, 1); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := r.CommitChannel(l, m, p, asset5, 100); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if got := l.Balance(p, asset5, tally.ChannelReserve); got != 100 {
		t.Fatalf("reserve = %d", got)
	}

	if err := r.WithdrawalFromChannel(m, p, asset5, 40, 10, 7); err != nil {
		t.Fatalf("withdrawal: %v", err)
	}
	if finalized := r.FinalizeMatured(l, 16); len(finalized) != 0 {
		t.Fatalf("expected no maturity yet, got %+v", finalized)
	}
	finalized := r.FinalizeMatured(l, 17)
	if len(finalized) != 1 || finalized[0].Amount != 40 {
		t.Fatalf("expected withdrawal to finalize, got %+v", finalized)
	}
	if got := l.Balance(p, asset5, tally.ChannelReserve); got != 60 {
		t.Fatalf("reserve after withdrawal = %d", got)
	}
	if got := l.Balance(p, asset5, tally.Balance); got != 940 {
		t.Fatalf("balance after withdrawal = %d", got)
	}
}

func TestInstantTradeMatchesE5(t *testing.T) {
	l := tally.New()
	l.Update(p, asset5, 100, tally.Balance)
	l.Update(q, asset7, 200, tally.Balance)
	r := New()
	r.CreateChannel(m, p, q, 1000, 1)
	r.CommitChannel(l, m, p, asset5, 100)
	r.CommitChannel(l, m, q, asset7, 200)

	if err := r.InstantTrade(l, m, p, asset5, 40, asset7, 80, 5, 144); err != nil {
		t.Fatalf("instant trade: %v", err)
	}

	if got := l.Balance(q, asset5, tally.Balance); got != 40 {
		t.Fatalf("Q.Balance(5) = %d", got)
	}
	if got := l.Balance(p, asset7, tally.Balance); got != 80 {
		t.Fatalf("P.Balance(7) = %d", got)
	}
	if got := l.Balance(p, asset5, tally.ChannelReserve); got != 60 {
		t.Fatalf("P.ChannelReserve(5) = %d", got)
	}
	if got := l.Balance(q, asset7, tally.ChannelReserve); got != 120 {
		t.Fatalf("Q.ChannelReserve(7) = %d", got)
	}

	c, _ := r.Get(m)
	if c.LastExchangeBlock != 5 {
		t.Fatalf("expected last_exchange_block bumped to 5, got %d", c.LastExchangeBlock)
	}
}

func TestInstantTradeRejectsAfterExpiry(t *testing.T) {
	l := tally.New()
	l.Update(p, asset5, 100, tally.Balance)
	l.Update(q, asset7, 200, tally.Balance)
	r := New()
	r.CreateChannel(m, p, q, 10, 1)
	r.CommitChannel(l, m, p, asset5, 100)
	r.CommitChannel(l, m, q, asset7, 200)

	if err := r.InstantTrade(l, m, p, asset5, 40, asset7, 80, 50, 144); err == nil {
		t.Fatal("expected expired-channel rejection")
	}
}

const usdc types.AssetId = 10
const contractID types.AssetId = 20

func TestContractInstantTradeSkimsFeeAndOpensPositions(t *testing.T) {
	l := tally.New()
	l.Update(p, usdc, 1000, tally.ChannelReserve)
	l.Update(q, usdc, 1000, tally.ChannelReserve)
	prices := derivbook.NewEntryPriceStore()
	fees := feecache.New()

	prop := registry.Property{
		ID: contractID, Kind: registry.Contract, Issuer: "issuer",
		Contract: &registry.ContractParams{
			NotionalSize: 1, MarginRequirementBps: 1000, CollateralAsset: usdc,
			BlocksUntilExpiration: 1000, InitBlock: 1,
		},
	}

	// Reserve per side: 2000*1000/10000 = 200; fee per side: 200*50/10000 = 1.
	if err := ContractInstantTrade(l, prices, fees, prop, p, q, 2000, 100, 1, 50, 125); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := derivbook.NetSize(l, p, contractID); got != 2000 {
		t.Fatalf("P net size = %d", got)
	}
	if got := derivbook.NetSize(l, q, contractID); got != -2000 {
		t.Fatalf("Q net size = %d", got)
	}
	if got := fees.Balance(usdc); got == 0 {
		t.Fatalf("expected non-zero fee accrued")
	}
}
