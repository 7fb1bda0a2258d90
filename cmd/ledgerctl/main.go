// Command ledgerctl is a small query client against a ledgerd data
// directory, mirroring the teacher's cmd/sign-order split of "one
// long-running process, one small client utility". It opens the same
// Pebble directory ledgerd writes and calls the Db* stores' Go methods
// directly — per spec.md §6.6, the RPC layer that would serialize these
// over a wire protocol is out of scope, so this is the in-process
// smoke-test surface instead.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/santoslabs/ledgercore/pkg/storage"
	"github.com/santoslabs/ledgercore/pkg/types"
)

func main() {
	dataDir := flag.String("data", "data/ledgerd", "Pebble data directory written by ledgerd")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	store, err := storage.Open(*dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", *dataDir, err)
		os.Exit(1)
	}
	defer store.Close()

	cmd, rest := args[0], args[1:]
	var runErr error
	switch cmd {
	case "tx":
		runErr = cmdTx(store, rest)
	case "block":
		runErr = cmdBlock(store, rest)
	case "properties":
		runErr = cmdProperties(store)
	case "property":
		runErr = cmdProperty(store, rest)
	case "fees":
		runErr = cmdFees(store)
	default:
		usage()
		os.Exit(2)
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: ledgerctl [-data dir] <command> [args]

commands:
  tx <hash>            show the recorded outcome and interpretation for a tx hash
  block <height>        list every tx outcome recorded at a height
  properties            list every persisted property
  property <id>          show one property by asset id
  fees                  list the current fee-cache balances`)
}

func cmdTx(store *storage.Store, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("tx: expected exactly one hash argument")
	}
	hash := args[0]

	entry, ok, err := store.TxList().ByHash(hash)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("tx %s: not found", hash)
	}
	fmt.Printf("hash=%s valid=%t block=%d type=%d new_amount=%d code=%s\n",
		entry.Hash, entry.Valid, entry.Block, entry.Type, entry.NewAmount, entry.Code)

	rec, ok, err := store.Transactions().ByHash(hash)
	if err != nil {
		return err
	}
	if ok {
		fmt.Printf("interp: %s\n", rec.Interp)
	}
	return nil
}

func cmdBlock(store *storage.Store, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("block: expected exactly one height argument")
	}
	height, err := parseInt64(args[0])
	if err != nil {
		return err
	}
	entries, err := store.TxList().ForBlock(height)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s valid=%t type=%d new_amount=%d\n", e.Hash, e.Valid, e.Type, e.NewAmount)
	}
	return nil
}

func cmdProperties(store *storage.Store) error {
	props, err := store.SpInfo().List()
	if err != nil {
		return err
	}
	for _, p := range props {
		fmt.Printf("id=%d ecosystem=%d name=%q issuer=%s divisible=%t\n", p.ID, p.Ecosystem, p.Name, p.Issuer, p.Divisible)
	}
	return nil
}

func cmdProperty(store *storage.Store, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("property: expected exactly one id argument")
	}
	id, err := parseInt64(args[0])
	if err != nil {
		return err
	}
	prop, ok, err := store.SpInfo().Load(types.AssetId(id))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("property %d: not found", id)
	}
	fmt.Printf("%+v\n", prop)
	return nil
}

func cmdFees(store *storage.Store) error {
	rows, err := store.FeeCache().Load()
	if err != nil {
		return err
	}
	for _, r := range rows {
		fmt.Printf("asset=%d amount=%d\n", r.Asset, r.Amount)
	}
	return nil
}

func parseInt64(s string) (int64, error) {
	var n int64
	_, err := fmt.Sscanf(s, "%d", &n)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q: %w", s, err)
	}
	return n, nil
}
