// Package derivbook implements the ContractDEx derivatives book: two-sided
// price-level matching, margin reserve/release, VWAP/TWAP accumulators,
// margin-sweep liquidation, and oracle-contract transitions. Grounded on
// the teacher's core.OrderBook (bid/ask matching loop shape) and
// account.AccountManager.UpdatePosition (VWAP entry price + realized PnL
// on close/flip), generalized from a single USD-margined symbol to
// per-contract-id positions backed by the tally ledger's
// PositivePosition/NegativePosition/ContractMargin/LiquidationPrice
// buckets.
package derivbook

import (
	"github.com/santoslabs/ledgercore/pkg/tally"
	"github.com/santoslabs/ledgercore/pkg/types"
)

type posKey struct {
	addr types.Address
	id   types.AssetId
}

// EntryPriceStore tracks the VWAP entry price per (address, contract_id)
// position. The signed position size itself lives in the tally ledger's
// PositivePosition/NegativePosition buckets; this store holds the one
// extra field — entry price — the bucket model has no room for.
type EntryPriceStore struct {
	prices map[posKey]int64
}

func NewEntryPriceStore() *EntryPriceStore {
	return &EntryPriceStore{prices: make(map[posKey]int64)}
}

func (s *EntryPriceStore) Get(addr types.Address, contract types.AssetId) int64 {
	return s.prices[posKey{addr, contract}]
}

func (s *EntryPriceStore) set(addr types.Address, contract types.AssetId, price int64) {
	if price == 0 {
		delete(s.prices, posKey{addr, contract})
		return
	}
	s.prices[posKey{addr, contract}] = price
}

// PriceRow is one (address, contract) entry price, for snapshotting.
type PriceRow struct {
	Address    types.Address
	ContractID types.AssetId
	Price      int64
}

// Snapshot returns every tracked entry price. Not part of §4.8's
// consensus hash (entry price is derived market data, not ledger
// state), but carried through engine snapshots so a reorg rewind
// restores the VWAP entry prices margin sweeps depend on.
func (s *EntryPriceStore) Snapshot() []PriceRow {
	out := make([]PriceRow, 0, len(s.prices))
	for k, price := range s.prices {
		out = append(out, PriceRow{Address: k.addr, ContractID: k.id, Price: price})
	}
	return out
}

// Restore replaces every entry price wholesale from a previously taken
// Snapshot.
func (s *EntryPriceStore) Restore(rows []PriceRow) {
	s.prices = make(map[posKey]int64, len(rows))
	for _, r := range rows {
		s.prices[posKey{r.Address, r.ContractID}] = r.Price
	}
}

// NetSize returns PositivePosition - NegativePosition, the signed size
// the teacher's Position.Size field represents directly.
func NetSize(ledger *tally.Ledger, addr types.Address, contract types.AssetId) int64 {
	return ledger.Balance(addr, contract, tally.PositivePosition) - ledger.Balance(addr, contract, tally.NegativePosition)
}

// SubEvent names one named position transition, per spec.md §4.5.1 step
// 2's status-string set. ApplyFill emits up to two per party per fill —
// a close/netting event followed by an open event when a fill flips the
// side — which covers every case the spec's up-to-four ceiling describes
// for a single counterparty pair (two sub-events per side, two sides).
type SubEvent struct {
	Status string
	Amount int64
	Lives  int64 // surviving position size after this sub-event
}

const (
	StatusOpenLong             = "OpenLongPosition"
	StatusOpenShort            = "OpenShortPosition"
	StatusLongIncreased        = "LongPosIncreased"
	StatusShortIncreased       = "ShortPosIncreased"
	StatusLongNetted           = "LongPosNetted"
	StatusLongNettedPartly     = "LongPosNettedPartly"
	StatusShortNetted          = "ShortPosNetted"
	StatusShortNettedPartly    = "ShortPosNettedPartly"
	StatusOpenLongByShortNet   = "OpenLongPosByShortPosNetted"
	StatusOpenShortByLongNet   = "OpenShortPosByLongPosNetted"
)

// ApplyFill nets signed delta (positive = buy/long, negative = sell/
// short) against addr's existing position in contract at fillPrice,
// updating the tally buckets and entry-price store and returning the
// realized PnL credited/debited to Balance, mirroring
// AccountManager.UpdatePosition's same-direction-VWAP /
// opposite-direction-realize-then-flip branches.
func ApplyFill(ledger *tally.Ledger, prices *EntryPriceStore, addr types.Address, contract, collateral types.AssetId, delta, fillPrice int64, marginBps, leverage int64) ([]SubEvent, int64, error) {
	oldSize := NetSize(ledger, addr, contract)
	newSize := oldSize + delta
	entry := prices.Get(addr, contract)

	var events []SubEvent
	var realized int64

	sameDirection := (oldSize >= 0 && newSize >= 0) || (oldSize <= 0 && newSize <= 0)

	switch {
	case newSize == 0 && oldSize != 0:
		realized = (fillPrice - entry) * oldSize
		if err := closeBucket(ledger, addr, contract, oldSize); err != nil {
			return nil, 0, err
		}
		releaseClosedMargin(ledger, addr, collateral, abs(oldSize), marginBps, leverage)
		prices.set(addr, contract, 0)
		events = append(events, SubEvent{Status: nettedStatus(oldSize, true), Amount: abs(oldSize), Lives: 0})

	case sameDirection:
		if oldSize == 0 {
			prices.set(addr, contract, fillPrice)
		} else {
			absOld, absDelta, absNew := abs(oldSize), abs(delta), abs(newSize)
			prices.set(addr, contract, (entry*absOld+fillPrice*absDelta)/absNew)
		}
		if err := openOrAddBucket(ledger, addr, contract, delta); err != nil {
			return nil, 0, err
		}
		status := openOrIncreaseStatus(oldSize, delta)
		events = append(events, SubEvent{Status: status, Amount: abs(delta), Lives: newSize})

	default:
		// Opposite direction: reduce, possibly flip through zero.
		absOld, absDelta := abs(oldSize), abs(delta)
		closedSize := absOld
		if absDelta < absOld {
			closedSize = absDelta
		}
		realized = (fillPrice - entry) * closedSize
		if oldSize < 0 {
			realized = -realized
		}
		if err := closeBucket(ledger, addr, contract, signOf(oldSize)*closedSize); err != nil {
			return nil, 0, err
		}
		releaseClosedMargin(ledger, addr, collateral, closedSize, marginBps, leverage)
		events = append(events, SubEvent{Status: nettedStatus(oldSize, closedSize == absOld), Amount: closedSize, Lives: newSize})

		flipped := (oldSize > 0 && newSize < 0) || (oldSize < 0 && newSize > 0)
		if flipped {
			prices.set(addr, contract, fillPrice)
			remainder := newSize
			if err := openOrAddBucket(ledger, addr, contract, remainder); err != nil {
				return nil, 0, err
			}
			events = append(events, SubEvent{Status: openByNetStatus(oldSize), Amount: abs(remainder), Lives: newSize})
		} else if newSize == 0 {
			prices.set(addr, contract, 0)
		}
	}

	if realized != 0 {
		ledger.Update(addr, collateral, realized, tally.Balance)
	}
	return events, realized, nil
}

// releaseClosedMargin returns the share of ContractMargin held against
// closedAmount units of position back to Balance, at the rate the closing
// fill's own order reserved margin (amount * marginBps / (10000 *
// leverage)) — the same formula requiredMargin uses, so the release
// exactly unwinds what an equivalently-sized opening order would have
// locked. leverage <= 0 releases nothing; CloseOracle settles with
// leverage 1. When ContractMargin holds less than the computed release,
// Ledger.Update refuses the debit and Balance is not credited.
func releaseClosedMargin(ledger *tally.Ledger, addr types.Address, collateral types.AssetId, closedAmount, marginBps, leverage int64) {
	if closedAmount <= 0 || marginBps <= 0 || leverage <= 0 {
		return
	}
	released, err := types.MulDivFloor(closedAmount, marginBps, 10000*leverage)
	if err != nil || released <= 0 {
		return
	}
	if !ledger.Update(addr, collateral, -released, tally.ContractMargin) {
		return
	}
	ledger.Update(addr, collateral, released, tally.Balance)
}

func closeBucket(ledger *tally.Ledger, addr types.Address, contract types.AssetId, closedSigned int64) error {
	// closedSigned > 0 reduces PositivePosition (closing a long); < 0
	// reduces NegativePosition (closing a short).
	if closedSigned > 0 {
		ledger.Update(addr, contract, -closedSigned, tally.PositivePosition)
	} else if closedSigned < 0 {
		ledger.Update(addr, contract, closedSigned, tally.NegativePosition)
	}
	return nil
}

func openOrAddBucket(ledger *tally.Ledger, addr types.Address, contract types.AssetId, signedDelta int64) error {
	if signedDelta > 0 {
		ledger.Update(addr, contract, signedDelta, tally.PositivePosition)
	} else if signedDelta < 0 {
		ledger.Update(addr, contract, -signedDelta, tally.NegativePosition)
	}
	return nil
}

func nettedStatus(oldSize int64, fullyClosed bool) string {
	if oldSize > 0 {
		if fullyClosed {
			return StatusLongNetted
		}
		return StatusLongNettedPartly
	}
	if fullyClosed {
		return StatusShortNetted
	}
	return StatusShortNettedPartly
}

func openByNetStatus(oldSize int64) string {
	if oldSize > 0 {
		return StatusOpenShortByLongNet
	}
	return StatusOpenLongByShortNet
}

func openOrIncreaseStatus(oldSize, delta int64) string {
	if oldSize == 0 {
		if delta > 0 {
			return StatusOpenLong
		}
		return StatusOpenShort
	}
	if delta > 0 {
		return StatusLongIncreased
	}
	return StatusShortIncreased
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func signOf(v int64) int64 {
	if v < 0 {
		return -1
	}
	return 1
}
