package derivbook

import (
	"sort"
	"sync"

	"github.com/santoslabs/ledgercore/pkg/types"
)

// VWAPWindow is the number of trailing fills kept for the rolling VWAP,
// mirroring spec.md §4.5.1 step 3's "volume_to_vwap" truncation.
const VWAPWindow = 256

// Stats holds the per-contract market-data accumulators: VWAP tail sums,
// the in-progress block's TWAP sample buffer, the TWAP history, and the
// last traded price. There is no teacher analogue for rolling VWAP/TWAP —
// the teacher's Market type carries only static parameters — so this is
// built fresh from spec.md §4.5.1 steps 3-5.
type Stats struct {
	mu sync.Mutex

	amountTimesPrice []int64 // trailing window, oldest first
	volume           []int64

	twapBuffer []int64 // resets every block
	twapHistory []int64

	lastMarketPrice int64
}

type ContractStats struct {
	mu       sync.Mutex
	byContract map[types.AssetId]*Stats
}

func NewContractStats() *ContractStats {
	return &ContractStats{byContract: make(map[types.AssetId]*Stats)}
}

func (cs *ContractStats) get(id types.AssetId) *Stats {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	s, ok := cs.byContract[id]
	if !ok {
		s = &Stats{}
		cs.byContract[id] = s
	}
	return s
}

// RecordFill appends one fill's contribution to the rolling VWAP window
// and the current block's TWAP sample buffer, and updates the last
// market price.
func (cs *ContractStats) RecordFill(id types.AssetId, notionalSize, nCouldBuy, effectivePrice int64) {
	s := cs.get(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	volume := notionalSize * nCouldBuy
	s.amountTimesPrice = append(s.amountTimesPrice, effectivePrice*volume)
	s.volume = append(s.volume, volume)
	if len(s.amountTimesPrice) > VWAPWindow {
		over := len(s.amountTimesPrice) - VWAPWindow
		s.amountTimesPrice = s.amountTimesPrice[over:]
		s.volume = s.volume[over:]
	}

	s.twapBuffer = append(s.twapBuffer, effectivePrice)
	s.lastMarketPrice = effectivePrice
}

// VWAP returns the rolling volume-weighted average price over the
// trailing window, or (0, false) if no fills have been recorded.
func (cs *ContractStats) VWAP(id types.AssetId) (int64, bool) {
	s := cs.get(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	var sumPV, sumV int64
	for i := range s.volume {
		sumPV += s.amountTimesPrice[i]
		sumV += s.volume[i]
	}
	if sumV == 0 {
		return 0, false
	}
	return sumPV / sumV, true
}

// CloseBlock reduces the in-progress TWAP buffer via
// (first+min+max+last)/4 and appends the result to history, per
// spec.md §4.5.1 step 4.
func (cs *ContractStats) CloseBlock(id types.AssetId) {
	s := cs.get(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.twapBuffer) == 0 {
		return
	}
	first, last := s.twapBuffer[0], s.twapBuffer[len(s.twapBuffer)-1]
	min, max := first, first
	for _, v := range s.twapBuffer {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	s.twapHistory = append(s.twapHistory, (first+min+max+last)/4)
	s.twapBuffer = nil
}

func (cs *ContractStats) LastMarketPrice(id types.AssetId) int64 {
	s := cs.get(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMarketPrice
}

func (cs *ContractStats) TWAPHistory(id types.AssetId) []int64 {
	s := cs.get(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, len(s.twapHistory))
	copy(out, s.twapHistory)
	return out
}

// StatsRow is one contract's accumulator state, for snapshotting.
type StatsRow struct {
	ContractID      types.AssetId
	AmountTimesPrice []int64
	Volume           []int64
	TWAPBuffer       []int64
	TWAPHistory      []int64
	LastMarketPrice  int64
}

// Snapshot returns every contract's accumulator state, sorted by
// contract id. Not part of §4.8's consensus hash — VWAP/TWAP are
// derived market data, not ledger state — but carried through engine
// snapshots so a reorg rewind restores the same rolling windows a
// forward replay would have produced.
func (cs *ContractStats) Snapshot() []StatsRow {
	cs.mu.Lock()
	ids := make([]types.AssetId, 0, len(cs.byContract))
	for id := range cs.byContract {
		ids = append(ids, id)
	}
	cs.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]StatsRow, 0, len(ids))
	for _, id := range ids {
		s := cs.get(id)
		s.mu.Lock()
		row := StatsRow{
			ContractID:       id,
			AmountTimesPrice: append([]int64(nil), s.amountTimesPrice...),
			Volume:           append([]int64(nil), s.volume...),
			TWAPBuffer:       append([]int64(nil), s.twapBuffer...),
			TWAPHistory:      append([]int64(nil), s.twapHistory...),
			LastMarketPrice:  s.lastMarketPrice,
		}
		s.mu.Unlock()
		out = append(out, row)
	}
	return out
}

// Restore replaces every contract's accumulator state wholesale from a
// previously taken Snapshot.
func (cs *ContractStats) Restore(rows []StatsRow) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.byContract = make(map[types.AssetId]*Stats, len(rows))
	for _, row := range rows {
		cs.byContract[row.ContractID] = &Stats{
			amountTimesPrice: append([]int64(nil), row.AmountTimesPrice...),
			volume:           append([]int64(nil), row.Volume...),
			twapBuffer:       append([]int64(nil), row.TWAPBuffer...),
			twapHistory:      append([]int64(nil), row.TWAPHistory...),
			lastMarketPrice:  row.LastMarketPrice,
		}
	}
}
