package engine

import (
	"testing"

	"github.com/santoslabs/ledgercore/pkg/config"
	"github.com/santoslabs/ledgercore/pkg/decoder"
	"github.com/santoslabs/ledgercore/pkg/registry"
	"github.com/santoslabs/ledgercore/pkg/tally"
	"github.com/santoslabs/ledgercore/pkg/types"
	"github.com/santoslabs/ledgercore/pkg/wire"
)

func TestSendToOwnersDistributesProRataAndKeepsRoundingLeftover(t *testing.T) {
	e := New(config.Default(), nil)
	token, err := e.Registry.Create(registry.Property{Ecosystem: types.EcosystemMain, Kind: registry.Fixed, Divisible: true, Issuer: "issuer", Name: "Payout", NumTokens: 1000})
	if err != nil {
		t.Fatalf("create payout property: %v", err)
	}
	holders, err := e.Registry.Create(registry.Property{Ecosystem: types.EcosystemMain, Kind: registry.Fixed, Divisible: true, Issuer: "issuer", Name: "Holders", NumTokens: 1000})
	if err != nil {
		t.Fatalf("create holder property: %v", err)
	}

	e.Tally.Update("sender", token, 1000, tally.Balance)
	e.Tally.Update("a", holders, 300, tally.Balance)
	e.Tally.Update("b", holders, 700, tally.Balance)

	tx := decoder.DecodedTx{
		Hash: types.Hash{0x01}, Block: 1, Sender: "sender",
		Header: wire.Header{Type: wire.SendToOwners},
		Msg: wire.MsgSendToOwners{
			Property: wire.AssetId(token), Amount: 100,
			HasDistribution: true, DistributionProperty: wire.AssetId(holders),
		},
	}
	if herr := e.Dispatch(tx); herr != nil {
		t.Fatalf("send to owners: %v", herr)
	}

	if got := e.GetBalance("a", token); got != 30 {
		t.Fatalf("a's share = %d, want 30 (300/1000 of 100)", got)
	}
	if got := e.GetBalance("b", token); got != 70 {
		t.Fatalf("b's share = %d, want 70 (700/1000 of 100)", got)
	}
	if got := e.GetBalance("sender", token); got != 900 {
		t.Fatalf("sender balance = %d, want 900 (1000 - 100 distributed)", got)
	}

	dists := e.BlockDistributions(1)
	if len(dists) != 1 || dists[0].RecipientCount != 2 || dists[0].AmountTotal != 100 {
		t.Fatalf("unexpected distribution event: %+v", dists)
	}
}

func TestSendToOwnersNoHoldersIsNotFound(t *testing.T) {
	e := New(config.Default(), nil)
	token, err := e.Registry.Create(registry.Property{Ecosystem: types.EcosystemMain, Kind: registry.Fixed, Divisible: true, Issuer: "issuer", Name: "Orphan", NumTokens: 1000})
	if err != nil {
		t.Fatalf("create property: %v", err)
	}
	e.Tally.Update("sender", token, 1000, tally.Balance)

	tx := decoder.DecodedTx{
		Hash: types.Hash{0x02}, Block: 1, Sender: "sender",
		Header: wire.Header{Type: wire.SendToOwners},
		Msg: wire.MsgSendToOwners{
			Property: wire.AssetId(token), Amount: 100,
			HasDistribution: true, DistributionProperty: 9999,
		},
	}
	herr := e.Dispatch(tx)
	if herr == nil || herr.Code != NotFound {
		t.Fatalf("expected NotFound distributing against an unheld property, got %v", herr)
	}
}

func TestSendAllSweepsEveryPropertyInEcosystem(t *testing.T) {
	e := New(config.Default(), nil)
	a, _ := e.Registry.Create(registry.Property{Ecosystem: types.EcosystemMain, Kind: registry.Fixed, Divisible: true, Issuer: "issuer", Name: "A", NumTokens: 1000})
	b, _ := e.Registry.Create(registry.Property{Ecosystem: types.EcosystemMain, Kind: registry.Fixed, Divisible: true, Issuer: "issuer", Name: "B", NumTokens: 1000})
	e.Tally.Update("alice", a, 100, tally.Balance)
	e.Tally.Update("alice", b, 50, tally.Balance)

	tx := decoder.DecodedTx{
		Hash: types.Hash{0x03}, Block: 1, Sender: "alice", Reference: "bob",
		Header: wire.Header{Type: wire.SendAll},
		Msg:    wire.MsgSendAll{Ecosystem: uint8(types.EcosystemMain)},
	}
	if herr := e.Dispatch(tx); herr != nil {
		t.Fatalf("send all: %v", herr)
	}
	if got := e.GetBalance("bob", a); got != 100 {
		t.Fatalf("bob A balance = %d, want 100", got)
	}
	if got := e.GetBalance("bob", b); got != 50 {
		t.Fatalf("bob B balance = %d, want 50", got)
	}
	if got := e.GetBalance("alice", a); got != 0 {
		t.Fatalf("alice A balance = %d, want 0", got)
	}
}

func TestSendAllSkipsFrozenProperty(t *testing.T) {
	e := New(config.Default(), nil)
	a, _ := e.Registry.Create(registry.Property{Ecosystem: types.EcosystemMain, Kind: registry.Fixed, Divisible: true, Issuer: "issuer", Name: "Frozen", NumTokens: 1000})
	e.Tally.Update("alice", a, 100, tally.Balance)
	e.Tally.SetFrozen("alice", a, true)

	tx := decoder.DecodedTx{
		Hash: types.Hash{0x04}, Block: 1, Sender: "alice", Reference: "bob",
		Header: wire.Header{Type: wire.SendAll},
		Msg:    wire.MsgSendAll{Ecosystem: uint8(types.EcosystemMain)},
	}
	herr := e.Dispatch(tx)
	if herr == nil || herr.Code != InsufficientFunds {
		t.Fatalf("expected InsufficientFunds when every holding is frozen, got %v", herr)
	}
}
