package engine

import (
	"errors"

	"github.com/santoslabs/ledgercore/pkg/chainview"
	"github.com/santoslabs/ledgercore/pkg/decoder"
	"github.com/santoslabs/ledgercore/pkg/derivbook"
)

// BlockResult is what OnBlockEnd returns for one block: its height, the
// block's tx log entries and the consensus hash, for the host to log or
// feed to Db*. The engine does not fill in Activations, Withdrawals or
// SweepResults; they stay zero.
type BlockResult struct {
	Height       int64
	Activations  int
	Withdrawals  int
	SweepResults int
	TxResults    []TxLogEntry
	Hash         [32]byte
}

// OnBlockBegin implements spec.md §4.7's pre-block phase: promote due
// activations, finalize matured withdrawals, then sweep every contract's
// margin. Grounded on the teacher's App.BeginBlock for the
// "run maintenance before any tx of the block is processed" ordering.
func (e *Engine) OnBlockBegin(height int64) {
	e.tallyLock.Lock()
	defer e.tallyLock.Unlock()

	e.height = height
	e.Activations.ApplyDue(height)
	e.Channels.FinalizeMatured(e.Tally, height)

	for _, prop := range e.Registry.ListContracts() {
		derivbook.SweepContract(e.DerivBook, e.Tally, e.Stats, e.Prices, e.cfg.Margin, prop)
	}
}

// OnTx decodes one base-chain transaction and dispatches it. A
// transaction with no marker output is not a protocol transaction and is
// skipped without a log entry; any other decode failure (missing input,
// malformed payload) is recorded as an invalid Malformed entry rather
// than propagated.
func (e *Engine) OnTx(tx chainview.Tx, txIndex int, blockTime int64) {
	e.tallyLock.Lock()
	ignore := e.height < e.waterLine
	e.tallyLock.Unlock()
	if ignore {
		return
	}

	decoded, err := decoder.Decode(e.chainView, e.cfg.Wire, tx, e.height, txIndex, blockTime)
	if errors.Is(err, decoder.ErrNoMarker) {
		return
	}
	if err != nil {
		e.tallyLock.Lock()
		e.txLog = append(e.txLog, TxLogEntry{Hash: tx.Hash.String(), Valid: false, Block: e.height, Code: Malformed, Rule: err.Error()})
		e.tallyLock.Unlock()
		return
	}
	e.Dispatch(decoded)
}

// OnBlockEnd implements spec.md §4.7's post-block phase: age out expired
// alerts, close each contract's TWAP accumulator for the block, and emit
// the consensus hash. It then advances the water line and records the
// in-memory snapshot that Reorg rewinds to. Writing the Db* stores is left
// to the caller (cmd/ledgerd), which owns the handles; neither this
// function nor cmd/ledgerd compares the hash against
// cfg.Persistence.Checkpoints.
func (e *Engine) OnBlockEnd(height int64) BlockResult {
	e.tallyLock.Lock()
	defer e.tallyLock.Unlock()

	e.Activations.AgeAlerts(height)
	for _, prop := range e.Registry.ListContracts() {
		e.Stats.CloseBlock(prop.ID)
	}

	res := BlockResult{Height: height, TxResults: e.blockTxLog(height), Hash: e.consensusHashLocked()}
	e.waterLine = height
	e.recordSnapshotLocked(height)
	return res
}

// blockTxLog returns the portion of txLog recorded for height, in
// processing order.
func (e *Engine) blockTxLog(height int64) []TxLogEntry {
	var out []TxLogEntry
	for _, t := range e.txLog {
		if t.Block == height {
			out = append(out, t)
		}
	}
	return out
}

// WaterLine returns the highest block height fully processed and
// persisted, per spec.md's "water-line block" glossary entry.
func (e *Engine) WaterLine() int64 { return e.waterLine }
