package tally

import (
	"fmt"
	"sort"
	"sync"

	"github.com/santoslabs/ledgercore/pkg/types"
)

type key struct {
	addr  types.Address
	asset types.AssetId
}

// Ledger is the thread-safe (address, asset) -> Buckets map, generalized
// from the teacher's AccountManager (map[common.Address]*Account guarded by
// a single sync.RWMutex, in-place mutation under the lock).
type Ledger struct {
	mu     sync.RWMutex
	rows   map[key]*Buckets
	frozen map[key]bool
}

func New() *Ledger {
	return &Ledger{
		rows:   make(map[key]*Buckets),
		frozen: make(map[key]bool),
	}
}

// Update applies delta to (address, asset, bucket). It fails — returning
// false with no mutation — if delta is zero, bucket is invalid, the result
// would go negative, or the pair is frozen and the update would decrease
// Balance. Failure here is a programming-invariant violation: handlers must
// never submit an update that overdraws.
func (l *Ledger) Update(addr types.Address, asset types.AssetId, delta int64, bucket Bucket) bool {
	if delta == 0 || !bucket.valid() {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	k := key{addr, asset}
	if bucket == Balance && delta < 0 && l.frozen[k] {
		return false
	}

	row, ok := l.rows[k]
	if !ok {
		if delta < 0 {
			return false
		}
		row = &Buckets{}
		l.rows[k] = row
	}

	next := row[bucket] + delta
	if next < 0 {
		return false
	}
	row[bucket] = next
	return true
}

// Move transfers amount from one bucket to another on the same
// (address, asset) pair as two opposite updates; both must succeed or
// neither applies. Handlers compose cross-address moves out of two Move/
// Update calls under their own save-point (see engine.saveState).
func (l *Ledger) Move(addr types.Address, asset types.AssetId, amount int64, from, to Bucket) error {
	if amount <= 0 {
		return fmt.Errorf("tally: move amount must be positive, got %d", amount)
	}
	if !l.Update(addr, asset, -amount, from) {
		return fmt.Errorf("tally: insufficient %s balance for %s/%d to move %d", from, addr, asset, amount)
	}
	if !l.Update(addr, asset, amount, to) {
		// Should be unreachable (credits never fail), but unwind defensively.
		l.Update(addr, asset, amount, from)
		return fmt.Errorf("tally: credit to %s failed for %s/%d", to, addr, asset)
	}
	return nil
}

// Move2 transfers amount from one address's bucket to another address's
// same bucket for the same asset — the cross-address counterpart to
// Move, used by the channel sub-ledger's Transfer and InstantTrade.
func (l *Ledger) Move2(from, to types.Address, asset types.AssetId, amount int64, bucket Bucket) error {
	if amount <= 0 {
		return fmt.Errorf("tally: move amount must be positive, got %d", amount)
	}
	if !l.Update(from, asset, -amount, bucket) {
		return fmt.Errorf("tally: insufficient %s balance for %s/%d to move %d", bucket, from, asset, amount)
	}
	if !l.Update(to, asset, amount, bucket) {
		l.Update(from, asset, amount, bucket)
		return fmt.Errorf("tally: credit to %s failed for asset %d", to, asset)
	}
	return nil
}

// Balance returns the current value of one bucket.
func (l *Ledger) Balance(addr types.Address, asset types.AssetId, bucket Bucket) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	row, ok := l.rows[key{addr, asset}]
	if !ok || !bucket.valid() {
		return 0
	}
	return row[bucket]
}

// TotalForAsset sums every bucket of every address holding asset, and
// counts the number of addresses with a non-zero row — used for Managed
// property conservation checks and fee-distribution thresholds.
func (l *Ledger) TotalForAsset(asset types.AssetId) (sum int64, ownerCount int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for k, row := range l.rows {
		if k.asset != asset {
			continue
		}
		var rowSum int64
		for _, v := range row {
			rowSum += v
		}
		if rowSum == 0 {
			continue
		}
		sum += rowSum
		ownerCount++
	}
	return sum, ownerCount
}

// AddressesForAsset returns every address with at least one non-zero
// bucket for asset, sorted ascending — used by the margin sweep to
// iterate positions in address order (§4.5.4).
func (l *Ledger) AddressesForAsset(asset types.AssetId) []types.Address {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []types.Address
	for k, row := range l.rows {
		if k.asset != asset {
			continue
		}
		var sum int64
		for _, v := range row {
			sum += v
		}
		if sum == 0 {
			continue
		}
		out = append(out, k.addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ForEachAsset iterates the non-zero assets of an address in deterministic
// (ascending asset id) order.
func (l *Ledger) ForEachAsset(addr types.Address, f func(asset types.AssetId, row Buckets)) {
	l.mu.RLock()
	var assets []types.AssetId
	rows := make(map[types.AssetId]Buckets)
	for k, row := range l.rows {
		if k.addr != addr {
			continue
		}
		var rowSum int64
		for _, v := range row {
			rowSum += v
		}
		if rowSum == 0 {
			continue
		}
		assets = append(assets, k.asset)
		rows[k.asset] = *row
	}
	l.mu.RUnlock()

	sort.Slice(assets, func(i, j int) bool { return assets[i] < assets[j] })
	for _, a := range assets {
		f(a, rows[a])
	}
}

// SetFrozen sets or clears the freeze bit for (address, asset). While
// frozen, every Balance-decreasing Update for the pair is refused unless
// the caller is the unfreeze action itself (which calls SetFrozen(false)).
func (l *Ledger) SetFrozen(addr types.Address, asset types.AssetId, frozen bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := key{addr, asset}
	if frozen {
		l.frozen[k] = true
	} else {
		delete(l.frozen, k)
	}
}

func (l *Ledger) IsFrozen(addr types.Address, asset types.AssetId) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.frozen[key{addr, asset}]
}

// Snapshot returns every non-zero row sorted by (asset, address), the
// order the consensus hash requires (§4.8).
type Row struct {
	Address types.Address
	Asset   types.AssetId
	Buckets Buckets
}

func (l *Ledger) Snapshot() []Row {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rows := make([]Row, 0, len(l.rows))
	for k, b := range l.rows {
		var sum int64
		for _, v := range b {
			sum += v
		}
		if sum == 0 {
			continue
		}
		rows = append(rows, Row{Address: k.addr, Asset: k.asset, Buckets: *b})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Asset != rows[j].Asset {
			return rows[i].Asset < rows[j].Asset
		}
		return rows[i].Address < rows[j].Address
	})
	return rows
}

// Restore replaces every row and frozen pair wholesale — the tally half
// of engine.ImportSnapshot, used on startup reload and on a §4.9 reorg
// rewind. Unlike Update, Restore trusts its input outright: rows already
// passed through Snapshot's non-zero filter once.
func (l *Ledger) Restore(rows []Row, frozen []struct {
	Address types.Address
	Asset   types.AssetId
}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rows = make(map[key]*Buckets, len(rows))
	for _, r := range rows {
		b := r.Buckets
		l.rows[key{r.Address, r.Asset}] = &b
	}

	l.frozen = make(map[key]bool, len(frozen))
	for _, fp := range frozen {
		l.frozen[key{fp.Address, fp.Asset}] = true
	}
}

// FrozenPairs returns every frozen (address, asset) pair sorted by
// (asset, address) for the consensus hash.
func (l *Ledger) FrozenPairs() []struct {
	Address types.Address
	Asset   types.AssetId
} {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]struct {
		Address types.Address
		Asset   types.AssetId
	}, 0, len(l.frozen))
	for k := range l.frozen {
		out = append(out, struct {
			Address types.Address
			Asset   types.AssetId
		}{k.addr, k.asset})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Asset != out[j].Asset {
			return out[i].Asset < out[j].Asset
		}
		return out[i].Address < out[j].Address
	})
	return out
}
