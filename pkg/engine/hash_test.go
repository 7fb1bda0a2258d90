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

func TestConsensusHashDeterministicAcrossIndependentReplays(t *testing.T) {
	build := func() *Engine {
		e := New(config.Default(), nil)
		id, err := e.Registry.Create(registry.Property{
			Ecosystem: types.EcosystemMain, Kind: registry.Fixed, Divisible: true,
			Issuer: "issuer", Name: "HashToken", NumTokens: 1000,
		})
		if err != nil {
			t.Fatalf("create property: %v", err)
		}
		e.Tally.Update("alice", id, 1000, tally.Balance)
		tx := decoder.DecodedTx{
			Hash: types.Hash{0x01}, Block: 1, Sender: "alice", Reference: "bob",
			Header: wire.Header{Type: wire.SimpleSend},
			Msg:    wire.MsgSimpleSend{Property: wire.AssetId(id), Amount: 250},
		}
		if herr := e.Dispatch(tx); herr != nil {
			t.Fatalf("dispatch: %v", herr)
		}
		return e
	}

	a := build().ConsensusHash()
	b := build().ConsensusHash()
	if a != b {
		t.Fatalf("two independent replays of the same history diverged: %x != %x", a, b)
	}
}

func TestConsensusHashChangesWithState(t *testing.T) {
	e := New(config.Default(), nil)
	id, err := e.Registry.Create(registry.Property{
		Ecosystem: types.EcosystemMain, Kind: registry.Fixed, Divisible: true,
		Issuer: "issuer", Name: "HashToken2", NumTokens: 1000,
	})
	if err != nil {
		t.Fatalf("create property: %v", err)
	}
	e.Tally.Update("alice", id, 1000, tally.Balance)
	before := e.ConsensusHash()

	tx := decoder.DecodedTx{
		Hash: types.Hash{0x02}, Block: 1, Sender: "alice", Reference: "bob",
		Header: wire.Header{Type: wire.SimpleSend},
		Msg:    wire.MsgSimpleSend{Property: wire.AssetId(id), Amount: 1},
	}
	if herr := e.Dispatch(tx); herr != nil {
		t.Fatalf("dispatch: %v", herr)
	}
	after := e.ConsensusHash()

	if before == after {
		t.Fatalf("expected the hash to change after a balance-moving transaction")
	}
}

func TestGetConsensusHashOnlyServesLiveHeight(t *testing.T) {
	e := New(config.Default(), nil)
	e.OnBlockBegin(5)
	if _, ok := e.GetConsensusHash(5); !ok {
		t.Fatalf("expected the live height to be servable")
	}
	if _, ok := e.GetConsensusHash(4); ok {
		t.Fatalf("expected a historical height to be refused without a persisted checkpoint")
	}
}
