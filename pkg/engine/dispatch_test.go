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

func TestSimpleSendRejectsNonPositiveAmount(t *testing.T) {
	e := New(config.Default(), nil)
	tx := decoder.DecodedTx{
		Hash: types.Hash{0x01}, Block: 1, Sender: "alice", Reference: "bob",
		Header: wire.Header{Type: wire.SimpleSend},
		Msg:    wire.MsgSimpleSend{Property: 1, Amount: 0},
	}
	if herr := e.Dispatch(tx); herr == nil || herr.Code != BadParameter {
		t.Fatalf("expected BadParameter for a zero amount, got %v", herr)
	}
}

func TestSimpleSendRejectsUnknownProperty(t *testing.T) {
	e := New(config.Default(), nil)
	tx := decoder.DecodedTx{
		Hash: types.Hash{0x02}, Block: 1, Sender: "alice", Reference: "bob",
		Header: wire.Header{Type: wire.SimpleSend},
		Msg:    wire.MsgSimpleSend{Property: 9999, Amount: 10},
	}
	if herr := e.Dispatch(tx); herr == nil || herr.Code != NotFound {
		t.Fatalf("expected NotFound for an unregistered property, got %v", herr)
	}
}

func TestSimpleSendAllowsEcosystemNativeWithoutRegistration(t *testing.T) {
	e := New(config.Default(), nil)
	e.Tally.Update("alice", types.AssetMainEcosystem, 100, tally.Balance)
	tx := decoder.DecodedTx{
		Hash: types.Hash{0x03}, Block: 1, Sender: "alice", Reference: "bob",
		Header: wire.Header{Type: wire.SimpleSend},
		Msg:    wire.MsgSimpleSend{Property: wire.AssetId(types.AssetMainEcosystem), Amount: 40},
	}
	if herr := e.Dispatch(tx); herr != nil {
		t.Fatalf("send of the ecosystem-native asset: %v", herr)
	}
	if got := e.GetBalance("bob", types.AssetMainEcosystem); got != 40 {
		t.Fatalf("bob balance = %d, want 40", got)
	}
}

func TestTradeOfferAcceptOfferAndDExPaymentSettle(t *testing.T) {
	e := New(config.Default(), nil)
	prop, err := e.Registry.Create(registry.Property{Ecosystem: types.EcosystemMain, Kind: registry.Fixed, Divisible: true, Issuer: "issuer", Name: "Classic", NumTokens: 1000})
	if err != nil {
		t.Fatalf("create property: %v", err)
	}
	e.Tally.Update("maker", prop, 1000, tally.Balance)

	offer := decoder.DecodedTx{
		Hash: types.Hash{0x10}, Block: 1, Sender: "maker",
		Header: wire.Header{Type: wire.TradeOffer},
		Msg:    wire.MsgTradeOffer{Property: wire.AssetId(prop), Amount: 100, AmountDesired: 500_000, MinFee: 0},
	}
	if herr := e.Dispatch(offer); herr != nil {
		t.Fatalf("trade offer: %v", herr)
	}
	if got := e.Tally.Balance("maker", prop, tally.SellOfferReserve); got != 100 {
		t.Fatalf("maker SellOfferReserve = %d, want 100", got)
	}

	accept := decoder.DecodedTx{
		Hash: types.Hash{0x11}, Block: 2, Sender: "taker", Reference: "maker",
		Header: wire.Header{Type: wire.AcceptOffer},
		Msg:    wire.MsgAcceptOffer{Property: wire.AssetId(prop), Amount: 100},
	}
	if herr := e.Dispatch(accept); herr != nil {
		t.Fatalf("accept offer: %v", herr)
	}
	if got := e.Tally.Balance("maker", prop, tally.AcceptReserve); got != 100 {
		t.Fatalf("maker AcceptReserve = %d, want 100", got)
	}
	if got := e.Tally.Balance("maker", prop, tally.SellOfferReserve); got != 0 {
		t.Fatalf("maker SellOfferReserve after full accept = %d, want 0", got)
	}

	payment := decoder.DecodedTx{
		Hash: types.Hash{0x12}, Block: 3, Sender: "taker", Reference: "maker",
		ReferenceValue: 500_000,
		Header:         wire.Header{Type: wire.DExPayment},
		Msg:            struct{}{},
	}
	if herr := e.Dispatch(payment); herr != nil {
		t.Fatalf("dex payment settlement: %v", herr)
	}
	if got := e.GetBalance("taker", prop); got != 100 {
		t.Fatalf("taker balance after settlement = %d, want 100", got)
	}
	if got := e.Tally.Balance("maker", prop, tally.AcceptReserve); got != 0 {
		t.Fatalf("maker AcceptReserve after settlement = %d, want 0", got)
	}
}

func TestAcceptOfferWithNoRestingOfferIsNotFound(t *testing.T) {
	e := New(config.Default(), nil)
	tx := decoder.DecodedTx{
		Hash: types.Hash{0x20}, Block: 1, Sender: "taker", Reference: "maker",
		Header: wire.Header{Type: wire.AcceptOffer},
		Msg:    wire.MsgAcceptOffer{Property: 1, Amount: 10},
	}
	if herr := e.Dispatch(tx); herr == nil || herr.Code != NotFound {
		t.Fatalf("expected NotFound accepting a nonexistent offer, got %v", herr)
	}
}

func TestDeactivationOfMetaDExShutsDownEveryOffer(t *testing.T) {
	e := New(config.Default(), nil)
	propA, err := e.Registry.Create(registry.Property{Ecosystem: types.EcosystemMain, Kind: registry.Fixed, Divisible: true, Issuer: "issuer", Name: "A", NumTokens: 1000})
	if err != nil {
		t.Fatalf("create propA: %v", err)
	}
	propB, err := e.Registry.Create(registry.Property{Ecosystem: types.EcosystemMain, Kind: registry.Fixed, Divisible: true, Issuer: "issuer", Name: "B", NumTokens: 1000})
	if err != nil {
		t.Fatalf("create propB: %v", err)
	}
	e.Tally.Update("maker", propA, 100, tally.Balance)

	rest := decoder.DecodedTx{
		Hash: types.Hash{0x20}, Block: 1, Sender: "maker",
		Header: wire.Header{Type: wire.MetaDExTrade},
		Msg:    wire.MsgMetaDExTrade{Property: wire.AssetId(propA), Amount: 100, DesiredProperty: wire.AssetId(propB), DesiredAmount: 500},
	}
	if herr := e.Dispatch(rest); herr != nil {
		t.Fatalf("place resting offer: %v", herr)
	}
	if got := e.Tally.Balance("maker", propA, tally.MetaDexReserve); got != 100 {
		t.Fatalf("maker propA reserve before shutdown = %d, want 100", got)
	}

	deactivate := decoder.DecodedTx{
		Hash: types.Hash{0x21}, Block: 2, Sender: "admin",
		Header: wire.Header{Type: wire.Deactivation},
		Msg:    wire.MsgDeactivation{FeatureID: featureMetaDEx},
	}
	if herr := e.Dispatch(deactivate); herr != nil {
		t.Fatalf("deactivate MetaDEx: %v", herr)
	}

	if len(e.SpotBook.Snapshot()) != 0 {
		t.Fatalf("expected every resting offer removed after MetaDEx shutdown")
	}
	if got := e.Tally.Balance("maker", propA, tally.MetaDexReserve); got != 0 {
		t.Fatalf("maker propA reserve after shutdown = %d, want 0", got)
	}
	if got := e.Tally.Balance("maker", propA, tally.Balance); got != 100 {
		t.Fatalf("maker propA balance after shutdown = %d, want 100 (reserve released back)", got)
	}
}

func TestDeactivationOfTradeAllPairsKeepsEcosystemNativeOffers(t *testing.T) {
	e := New(config.Default(), nil)
	foreign, err := e.Registry.Create(registry.Property{Ecosystem: types.EcosystemMain, Kind: registry.Fixed, Divisible: true, Issuer: "issuer", Name: "F", NumTokens: 1000})
	if err != nil {
		t.Fatalf("create foreign: %v", err)
	}
	e.Tally.Update("maker", types.AssetMainEcosystem, 100, tally.Balance)

	rest := decoder.DecodedTx{
		Hash: types.Hash{0x22}, Block: 1, Sender: "maker",
		Header: wire.Header{Type: wire.MetaDExTrade},
		Msg:    wire.MsgMetaDExTrade{Property: wire.AssetId(types.AssetMainEcosystem), Amount: 100, DesiredProperty: wire.AssetId(foreign), DesiredAmount: 50},
	}
	if herr := e.Dispatch(rest); herr != nil {
		t.Fatalf("place resting offer: %v", herr)
	}

	deactivate := decoder.DecodedTx{
		Hash: types.Hash{0x23}, Block: 2, Sender: "admin",
		Header: wire.Header{Type: wire.Deactivation},
		Msg:    wire.MsgDeactivation{FeatureID: featureTradeAllPairs},
	}
	if herr := e.Dispatch(deactivate); herr != nil {
		t.Fatalf("deactivate trade-all-pairs: %v", herr)
	}

	if len(e.SpotBook.Snapshot()) != 1 {
		t.Fatalf("expected the ecosystem-native-paired offer to survive trade-all-pairs shutdown")
	}
}

func TestUpdateIdRegistrationIsANoOp(t *testing.T) {
	e := New(config.Default(), nil)
	tx := decoder.DecodedTx{
		Hash: types.Hash{0x30}, Block: 1, Sender: "alice",
		Header: wire.Header{Type: wire.UpdateIdRegistration},
		Msg:    struct{}{},
	}
	if herr := e.Dispatch(tx); herr != nil {
		t.Fatalf("expected id registration to be accepted as a no-op, got %v", herr)
	}
}
