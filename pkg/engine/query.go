package engine

import (
	"sort"

	"github.com/santoslabs/ledgercore/pkg/channel"
	"github.com/santoslabs/ledgercore/pkg/derivbook"
	"github.com/santoslabs/ledgercore/pkg/registry"
	"github.com/santoslabs/ledgercore/pkg/spotbook"
	"github.com/santoslabs/ledgercore/pkg/tally"
	"github.com/santoslabs/ledgercore/pkg/types"
)

// GetBalance returns the address's raw Balance bucket for asset — the
// spendable amount before any reservation is subtracted.
func (e *Engine) GetBalance(addr types.Address, asset types.AssetId) int64 {
	e.tallyLock.Lock()
	defer e.tallyLock.Unlock()
	return e.Tally.Balance(addr, asset, tally.Balance)
}

// GetReservedBalance sums every non-Balance bucket for (addr, asset) — the
// portion committed to resting orders, margin, channels, or vesting.
func (e *Engine) GetReservedBalance(addr types.Address, asset types.AssetId) int64 {
	e.tallyLock.Lock()
	defer e.tallyLock.Unlock()
	var sum int64
	e.Tally.ForEachAsset(addr, func(a types.AssetId, row tally.Buckets) {
		if a != asset {
			return
		}
		for b, v := range row {
			if tally.Bucket(b) == tally.Balance {
				continue
			}
			sum += v
		}
	})
	return sum
}

// GetAvailableBalance is GetBalance minus whatever of it is frozen; a
// frozen (address, asset) pair cannot spend its Balance bucket at all; spec.md
// §4.2 treats that as zero available rather than a negative reservation.
func (e *Engine) GetAvailableBalance(addr types.Address, asset types.AssetId) int64 {
	e.tallyLock.Lock()
	defer e.tallyLock.Unlock()
	if e.Tally.IsFrozen(addr, asset) {
		return 0
	}
	return e.Tally.Balance(addr, asset, tally.Balance)
}

// GetProperty looks up one asset's registry metadata.
func (e *Engine) GetProperty(id types.AssetId) (registry.Property, bool) {
	e.tallyLock.Lock()
	defer e.tallyLock.Unlock()
	return e.Registry.Get(id)
}

// ListProperties returns every registered property sorted by id.
func (e *Engine) ListProperties() []registry.Property {
	e.tallyLock.Lock()
	defer e.tallyLock.Unlock()
	return e.Registry.Snapshot()
}

// GetMetaDexOrders returns every resting spot order that sells property,
// nearest price first.
func (e *Engine) GetMetaDexOrders(property types.AssetId) []*spotbook.Offer {
	e.tallyLock.Lock()
	defer e.tallyLock.Unlock()
	var out []*spotbook.Offer
	for _, o := range e.SpotBook.Snapshot() {
		if o.PropertyForSale == property {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UnitPrice().Less(out[j].UnitPrice())
	})
	return out
}

// GetContractBook returns every resting derivatives order for contract.
func (e *Engine) GetContractBook(contract types.AssetId) []*derivbook.Order {
	e.tallyLock.Lock()
	defer e.tallyLock.Unlock()
	var out []*derivbook.Order
	for _, o := range e.DerivBook.Snapshot() {
		if o.ContractID == contract {
			out = append(out, o)
		}
	}
	return out
}

// GetTradeStatus reports the single most recent dispatch outcome recorded
// for txHash, if any. Ledgers with repeated hashes (shouldn't occur) return
// the latest entry processed.
func (e *Engine) GetTradeStatus(txHash string) (TxLogEntry, bool) {
	e.tallyLock.Lock()
	defer e.tallyLock.Unlock()
	for i := len(e.txLog) - 1; i >= 0; i-- {
		if e.txLog[i].Hash == txHash {
			return e.txLog[i], true
		}
	}
	return TxLogEntry{}, false
}

// GetChannel looks up one payment channel by its multisig address.
func (e *Engine) GetChannel(multisig types.Address) (channel.Channel, bool) {
	e.tallyLock.Lock()
	defer e.tallyLock.Unlock()
	return e.Channels.Get(multisig)
}

// ListPendingWithdrawals returns every withdrawal queued against multisig
// that has not yet matured, sorted by deadline block.
func (e *Engine) ListPendingWithdrawals(multisig types.Address) []channel.PendingWithdrawal {
	e.tallyLock.Lock()
	defer e.tallyLock.Unlock()
	var out []channel.PendingWithdrawal
	for _, w := range e.pendingWithdrawalsLocked() {
		if w.Multisig == multisig {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeadlineBlock < out[j].DeadlineBlock })
	return out
}

func (e *Engine) pendingWithdrawalsLocked() []channel.PendingWithdrawal {
	return e.Channels.Pending()
}

// GetConsensusHash reports the hash as of the engine's current height. A
// query for any height other than the live one requires replaying from a
// persisted checkpoint, which is cmd/ledgerd's responsibility, not the
// engine's.
func (e *Engine) GetConsensusHash(height int64) ([32]byte, bool) {
	e.tallyLock.Lock()
	defer e.tallyLock.Unlock()
	if height != e.height {
		return [32]byte{}, false
	}
	return e.consensusHashLocked(), true
}
