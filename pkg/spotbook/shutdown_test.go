package spotbook

import (
	"testing"

	"github.com/santoslabs/ledgercore/pkg/types"
)

const (
	propNative  types.AssetId = 1
	propForeign types.AssetId = 30
	propOther   types.AssetId = 31
)

func isEcosystemNativeForTest(id types.AssetId) bool {
	return types.IsEcosystemNative(id)
}

func offerAt(sender types.Address, forSale, desired types.AssetId, amount int64, block int64) *Offer {
	return &Offer{
		Sender: sender, PropertyForSale: forSale, PropertyDesired: desired,
		AmountForSale: amount, AmountDesired: amount, AmountRemaining: amount,
		Block: block,
	}
}

func TestShutdownRemovesEveryOffer(t *testing.T) {
	book := New()
	if err := book.Insert(offerAt("maker1", propA, propB, 100, 1)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := book.Insert(offerAt("maker2", propB, propA, 50, 2)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	removed := book.Shutdown()
	if len(removed) != 2 {
		t.Fatalf("expected 2 removed offers, got %d", len(removed))
	}
	if len(book.Snapshot()) != 0 {
		t.Fatalf("expected book empty after Shutdown")
	}
}

func TestShutdownAllPairKeepsEcosystemNativePairs(t *testing.T) {
	book := New()
	// propNative is ecosystem-native; this offer must survive.
	if err := book.Insert(offerAt("maker1", propNative, propForeign, 100, 1)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	// Neither side is ecosystem-native; this offer must be removed.
	if err := book.Insert(offerAt("maker2", propForeign, propOther, 75, 2)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	removed := book.ShutdownAllPair(isEcosystemNativeForTest)
	if len(removed) != 1 {
		t.Fatalf("expected 1 removed offer, got %d", len(removed))
	}
	if removed[0].Sender != "maker2" {
		t.Fatalf("expected maker2's offer removed, got %s", removed[0].Sender)
	}

	remaining := book.Snapshot()
	if len(remaining) != 1 || remaining[0].Sender != "maker1" {
		t.Fatalf("expected maker1's ecosystem-native-paired offer to survive, got %+v", remaining)
	}
}
