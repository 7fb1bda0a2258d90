package engine

type ReorgPolicy int

const (
	// ReorgRewind is the default: revert to the retained snapshot taken at
	// rewindTo (when one exists) and truncate logs above it; the host then
	// replays blocks after rewindTo forward from the new chain.
	ReorgRewind ReorgPolicy = iota
	// ReorgFreezeNuke is spec.md §4.9's freeze-reorg special case: a
	// reorg that crosses a block containing a Freeze/Unfreeze
	// transaction cannot be safely rewound by undoing tally deltas alone
	// (the frozen-set membership at intermediate heights is not
	// journaled). Reorg returns this policy without rewinding any ledger
	// state; the host then calls Reset and reparses from genesis.
	ReorgFreezeNuke
)

// Reorg implements spec.md §4.9: the host detected a base-chain
// disconnect and calls Reorg with the height to rewind to (freezeTxSeen
// reports whether any Freeze/Unfreeze transaction was processed at a
// height > rewindTo, which the host computes by scanning its own
// DbTxList before calling Reorg, since only it retains transaction-type
// history past the in-memory log's lifetime).
//
// For an ordinary rewind, Reorg restores Tally, SpotBook, DerivBook,
// Registry, Channels, Activations, Fees, and the market-data
// accumulators from the most recent retained snapshot at rewindTo (see
// Snapshot, recorded by OnBlockEnd every block), then truncates the
// in-memory tx/trade/distribution logs to match. If no snapshot that
// far back is retained (the disconnect is deeper than
// maxSnapshotHistory), sub-ledger state cannot be reverted in memory;
// the engine still rolls its height/water-line back so OnTx's replay
// guard (§4.7 step 2) takes over, but the host must treat this as a
// freeze-nuke-equivalent resync.
func (e *Engine) Reorg(rewindTo int64, freezeTxSeen bool) ReorgPolicy {
	e.tallyLock.Lock()
	defer e.tallyLock.Unlock()

	if freezeTxSeen {
		e.reorgFlagged = true
		e.reorgMaxH = e.height
		return ReorgFreezeNuke
	}

	if snap, ok := e.history[rewindTo]; ok {
		e.importSnapshotLocked(snap)
	} else {
		if e.waterLine > rewindTo {
			e.waterLine = rewindTo
		}
		if e.height > rewindTo {
			e.height = rewindTo
		}
	}

	kept := e.txLog[:0]
	for _, t := range e.txLog {
		if t.Block <= rewindTo {
			kept = append(kept, t)
		}
	}
	e.txLog = kept

	keptTrades := e.tradeLog[:0]
	for _, t := range e.tradeLog {
		if t.blockOf() <= rewindTo {
			keptTrades = append(keptTrades, t)
		}
	}
	e.tradeLog = keptTrades

	keptDist := e.distLog[:0]
	for _, d := range e.distLog {
		if d.Block <= rewindTo {
			keptDist = append(keptDist, d)
		}
	}
	e.distLog = keptDist

	// The abandoned fork's snapshots are no longer reachable from any
	// height the engine will process again.
	for h := range e.history {
		if h > rewindTo {
			delete(e.history, h)
		}
	}

	return ReorgRewind
}

// Reset discards every sub-ledger and rebuilds the engine from scratch —
// the in-memory counterpart to the freeze-reorg "nuke and reparse from
// genesis" policy. The host is responsible for replaying every block
// from height 1 afterward.
func (e *Engine) Reset() {
	e.tallyLock.Lock()
	defer e.tallyLock.Unlock()
	fresh := New(e.cfg, e.chainView)
	e.Tally = fresh.Tally
	e.Registry = fresh.Registry
	e.SpotBook = fresh.SpotBook
	e.DerivBook = fresh.DerivBook
	e.Channels = fresh.Channels
	e.Fees = fresh.Fees
	e.Stats = fresh.Stats
	e.Prices = fresh.Prices
	e.Activations = fresh.Activations
	e.classic = fresh.classic
	e.height = 0
	e.waterLine = 0
	e.reorgFlagged = false
	e.reorgMaxH = 0
	e.txLog = nil
	e.tradeLog = nil
	e.distLog = nil
	e.activeCrowdsales = nil
	e.history = nil
}
