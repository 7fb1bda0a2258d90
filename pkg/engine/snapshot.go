package engine

import (
	"sort"

	"github.com/santoslabs/ledgercore/pkg/activation"
	"github.com/santoslabs/ledgercore/pkg/channel"
	"github.com/santoslabs/ledgercore/pkg/derivbook"
	"github.com/santoslabs/ledgercore/pkg/feecache"
	"github.com/santoslabs/ledgercore/pkg/registry"
	"github.com/santoslabs/ledgercore/pkg/spotbook"
	"github.com/santoslabs/ledgercore/pkg/tally"
	"github.com/santoslabs/ledgercore/pkg/types"
)

// maxSnapshotHistory bounds how many trailing in-memory snapshots Reorg
// can rewind to directly. A disconnect deeper than this falls back to
// truncating the in-memory logs without reverting sub-ledger state (see
// Reorg) — in practice a host notices a fork within a handful of blocks,
// and a disconnect this deep is expected to arrive as a freeze-nuke
// instead.
const maxSnapshotHistory = 512

// crowdsaleRow is one (issuer, property) pair from activeCrowdsales, for
// snapshotting.
type crowdsaleRow struct {
	Issuer types.Address
	ID     types.AssetId
}

// Snapshot captures every piece of Engine-owned mutable state wholesale.
// It is the engine-level counterpart each sub-package's own Restore doc
// comment already refers to as engine.ImportSnapshot: tally.Ledger,
// registry.Registry, channel.Registry, and activation.Set were all
// written with this type in mind before it existed. Grounded on spec.md
// §6.5/§4.8's "a snapshot captures everything needed to reconstruct the
// canonical serialization" plus the extra non-consensus state
// (EntryPriceStore, ContractStats, activeCrowdsales) needed to resume
// forward processing with identical behavior, not just an identical hash.
type Snapshot struct {
	Height    int64
	WaterLine int64

	Tally       []tally.Row
	FrozenPairs []struct {
		Address types.Address
		Asset   types.AssetId
	}

	SpotOffers  []*spotbook.Offer
	DerivOrders []*derivbook.Order

	Properties []registry.Property

	Channels    []channel.Channel
	Withdrawals []channel.PendingWithdrawal

	ScheduledFeatures []activation.Record
	ActiveFeatures    []activation.Record
	Alerts            []activation.Alert

	Fees []feecache.Row

	EntryPrices []derivbook.PriceRow
	Stats       []derivbook.StatsRow

	crowdsales []crowdsaleRow
}

// exportSnapshotLocked captures the engine's full state at its current
// height. Callers must hold tallyLock.
func (e *Engine) exportSnapshotLocked() Snapshot {
	crowdsales := make([]crowdsaleRow, 0, len(e.activeCrowdsales))
	for issuer, id := range e.activeCrowdsales {
		crowdsales = append(crowdsales, crowdsaleRow{Issuer: issuer, ID: id})
	}
	sort.Slice(crowdsales, func(i, j int) bool { return crowdsales[i].Issuer < crowdsales[j].Issuer })

	return Snapshot{
		Height:            e.height,
		WaterLine:         e.waterLine,
		Tally:             e.Tally.Snapshot(),
		FrozenPairs:       e.Tally.FrozenPairs(),
		SpotOffers:        e.SpotBook.Snapshot(),
		DerivOrders:       e.DerivBook.Snapshot(),
		Properties:        e.Registry.Snapshot(),
		Channels:          e.Channels.Snapshot(),
		Withdrawals:       e.Channels.Pending(),
		ScheduledFeatures: e.Activations.Scheduled(),
		ActiveFeatures:    e.Activations.ActiveFeatures(),
		Alerts:            e.Activations.Alerts(),
		Fees:              e.Fees.Snapshot(),
		EntryPrices:       e.Prices.Snapshot(),
		Stats:             e.Stats.Snapshot(),
		crowdsales:        crowdsales,
	}
}

// importSnapshotLocked replaces every sub-ledger wholesale from snap.
// Callers must hold tallyLock.
func (e *Engine) importSnapshotLocked(snap Snapshot) {
	e.Tally.Restore(snap.Tally, snap.FrozenPairs)
	e.SpotBook.Restore(snap.SpotOffers)
	e.DerivBook.Restore(snap.DerivOrders)
	e.Registry.Restore(snap.Properties)
	e.Channels.Restore(snap.Channels, snap.Withdrawals)
	e.Activations.Restore(snap.ScheduledFeatures, snap.ActiveFeatures, snap.Alerts)
	e.Fees.Restore(snap.Fees)
	e.Prices.Restore(snap.EntryPrices)
	e.Stats.Restore(snap.Stats)

	e.activeCrowdsales = make(map[types.Address]types.AssetId, len(snap.crowdsales))
	for _, row := range snap.crowdsales {
		e.activeCrowdsales[row.Issuer] = row.ID
	}

	e.height = snap.Height
	e.waterLine = snap.WaterLine
}

// recordSnapshotLocked retains a snapshot for height, evicting the
// oldest retained entry once history grows past maxSnapshotHistory.
// Callers must hold tallyLock.
func (e *Engine) recordSnapshotLocked(height int64) {
	if e.history == nil {
		e.history = make(map[int64]Snapshot)
	}
	e.history[height] = e.exportSnapshotLocked()
	delete(e.history, height-maxSnapshotHistory)
}
