package storage

import (
	"testing"

	"github.com/santoslabs/ledgercore/pkg/derivbook"
	"github.com/santoslabs/ledgercore/pkg/engine"
	"github.com/santoslabs/ledgercore/pkg/feecache"
	"github.com/santoslabs/ledgercore/pkg/registry"
	"github.com/santoslabs/ledgercore/pkg/spotbook"
	"github.com/santoslabs/ledgercore/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSpInfoSaveLoadAndRewind(t *testing.T) {
	s := openTestStore(t)
	sp := s.SpInfo()

	propA := registry.Property{ID: 3, Ecosystem: 1, Issuer: types.Address("alice"), Name: "acme"}
	propB := registry.Property{ID: 4, Ecosystem: 1, Issuer: types.Address("bob"), Name: "widget"}
	if err := sp.Save(10, propA); err != nil {
		t.Fatalf("save a: %v", err)
	}
	if err := sp.Save(20, propB); err != nil {
		t.Fatalf("save b: %v", err)
	}

	got, ok, err := sp.Load(3)
	if err != nil || !ok {
		t.Fatalf("load 3: ok=%v err=%v", ok, err)
	}
	if got.Name != "acme" {
		t.Fatalf("got %+v", got)
	}

	all, err := sp.List()
	if err != nil || len(all) != 2 {
		t.Fatalf("list: %v %d", err, len(all))
	}

	if err := sp.DeleteAboveBlock(10); err != nil {
		t.Fatalf("rewind: %v", err)
	}
	if _, ok, _ := sp.Load(4); ok {
		t.Fatal("expected property created at height 20 to be gone after rewind to 10")
	}
	if _, ok, _ := sp.Load(3); !ok {
		t.Fatal("expected property created at height 10 to survive rewind to 10")
	}
}

func TestTxListAppendAndRewind(t *testing.T) {
	s := openTestStore(t)
	tx := s.TxList()

	e1 := engine.TxLogEntry{Hash: "h1", Valid: true, Block: 5, Type: 0}
	e2 := engine.TxLogEntry{Hash: "h2", Valid: true, Block: 6, Type: 0}
	e3 := engine.TxLogEntry{Hash: "h3", Valid: false, Block: 7, Type: 0, Code: engine.Malformed}
	if err := tx.Append(0, e1); err != nil {
		t.Fatal(err)
	}
	if err := tx.Append(0, e2); err != nil {
		t.Fatal(err)
	}
	if err := tx.Append(0, e3); err != nil {
		t.Fatal(err)
	}

	got, err := tx.ForBlock(6)
	if err != nil || len(got) != 1 || got[0].Hash != "h2" {
		t.Fatalf("forblock 6: %+v %v", got, err)
	}

	byHash, ok, err := tx.ByHash("h3")
	if err != nil || !ok || byHash.Block != 7 {
		t.Fatalf("byhash h3: %+v ok=%v err=%v", byHash, ok, err)
	}

	if err := tx.DeleteAboveBlock(6); err != nil {
		t.Fatalf("rewind: %v", err)
	}
	if got, _ := tx.ForBlock(7); len(got) != 0 {
		t.Fatalf("expected block 7 entries gone, got %+v", got)
	}
	if got, _ := tx.ForBlock(6); len(got) != 1 {
		t.Fatalf("expected block 6 entries to survive, got %+v", got)
	}
	if _, ok, _ := tx.ByHash("h3"); !ok {
		t.Fatal("by-hash index is not height-bounded and should survive a rewind")
	}
}

func TestTradeListSpotAndContract(t *testing.T) {
	s := openTestStore(t)
	tl := s.TradeList()

	spotTrade := spotbook.Trade{PropertyForSale: 1, PropertyDesired: 2, AmountSold: 100, AmountBought: 50, Block: 9, TxIndex: 0}
	contractTrade := derivbook.Trade{ContractID: 7, Amount: 10, EffectivePrice: 100, Block: 9, TxIndex: 1}

	if err := tl.AppendSpot(0, spotTrade); err != nil {
		t.Fatal(err)
	}
	if err := tl.AppendContract(0, contractTrade); err != nil {
		t.Fatal(err)
	}

	spot, contract, err := tl.ForBlock(9)
	if err != nil {
		t.Fatal(err)
	}
	if len(spot) != 1 || len(contract) != 1 {
		t.Fatalf("expected one of each, got spot=%d contract=%d", len(spot), len(contract))
	}
	if spot[0].AmountSold != 100 || contract[0].ContractID != 7 {
		t.Fatalf("unexpected values: %+v %+v", spot[0], contract[0])
	}

	if err := tl.DeleteAboveBlock(8); err != nil {
		t.Fatal(err)
	}
	spot, contract, err = tl.ForBlock(9)
	if err != nil || len(spot) != 0 || len(contract) != 0 {
		t.Fatalf("expected both gone after rewind below 9, got spot=%d contract=%d err=%v", len(spot), len(contract), err)
	}
}

func TestSTOListRoundTrip(t *testing.T) {
	s := openTestStore(t)
	sto := s.STOList()

	ev := engine.DistributionEvent{
		TxHash: types.Hash{1, 2, 3}, Sender: types.Address("alice"),
		Property: 5, DistributionProperty: 5, AmountTotal: 1000, RecipientCount: 3,
		Block: 12, TxIndex: 2,
	}
	if err := sto.Append(ev); err != nil {
		t.Fatal(err)
	}
	got, err := sto.ForBlock(12)
	if err != nil || len(got) != 1 || got[0].AmountTotal != 1000 {
		t.Fatalf("got %+v err=%v", got, err)
	}
}

func TestFeeCacheSnapshotRoundTrip(t *testing.T) {
	s := openTestStore(t)
	fc := s.FeeCache()

	rows := []feecache.Row{{Asset: 1, Amount: 500}, {Asset: 2, Amount: 250}}
	if err := fc.SaveSnapshot(rows); err != nil {
		t.Fatal(err)
	}
	got, err := fc.Load()
	if err != nil || len(got) != 2 {
		t.Fatalf("got %+v err=%v", got, err)
	}

	if err := fc.SaveSnapshot([]feecache.Row{{Asset: 1, Amount: 600}}); err != nil {
		t.Fatal(err)
	}
	got, err = fc.Load()
	if err != nil || len(got) != 1 || got[0].Amount != 600 {
		t.Fatalf("expected snapshot to fully replace prior rows, got %+v err=%v", got, err)
	}
}

func TestFeeHistoryRebuildBalance(t *testing.T) {
	s := openTestStore(t)
	fh := s.FeeHistory()

	entries := []FeeHistoryEntry{
		{Asset: 1, Amount: 100, Kind: FeeCredit, Block: 1, TxIndex: 0},
		{Asset: 1, Amount: 50, Kind: FeeCredit, Block: 2, TxIndex: 0},
		{Asset: 1, Amount: 30, Kind: FeeDrain, Block: 3, TxIndex: 0},
		{Asset: 1, Amount: 1000, Kind: FeeCredit, Block: 5, TxIndex: 0},
	}
	for i, e := range entries {
		if err := fh.Append(0, e); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	bal, err := fh.RebuildBalance(1, 3)
	if err != nil || bal != 120 {
		t.Fatalf("rebuild at height 3: got %d err=%v", bal, err)
	}

	if err := fh.DeleteAboveBlock(3); err != nil {
		t.Fatal(err)
	}
	bal, err = fh.RebuildBalance(1, 10)
	if err != nil || bal != 120 {
		t.Fatalf("expected the block-5 credit to be gone after rewind, got %d err=%v", bal, err)
	}
}

func TestTransactionStoreInterp(t *testing.T) {
	s := openTestStore(t)
	txn := s.Transactions()

	valid := engine.TxLogEntry{Hash: "abc", Valid: true, Block: 4, Type: 3, NewAmount: 42}
	invalid := engine.TxLogEntry{Hash: "def", Valid: false, Block: 4, Type: 9, Code: engine.BadParameter, Rule: "amount must be positive"}

	if err := txn.Save(0, valid); err != nil {
		t.Fatal(err)
	}
	if err := txn.Save(1, invalid); err != nil {
		t.Fatal(err)
	}

	rec, ok, err := txn.ByHash("abc")
	if err != nil || !ok || rec.Interp == "" {
		t.Fatalf("got %+v ok=%v err=%v", rec, ok, err)
	}

	rows, err := txn.ForBlock(4)
	if err != nil || len(rows) != 2 {
		t.Fatalf("forblock: %+v err=%v", rows, err)
	}

	if err := txn.DeleteAboveBlock(3); err != nil {
		t.Fatal(err)
	}
	if rows, _ := txn.ForBlock(4); len(rows) != 0 {
		t.Fatalf("expected block 4 records gone after rewind to 3, got %+v", rows)
	}
	if _, ok, _ := txn.ByHash("abc"); !ok {
		t.Fatal("by-hash index should survive a height-bounded rewind")
	}
}
