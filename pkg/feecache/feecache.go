// Package feecache implements the per-asset fee accumulator (spec.md
// "fee cache"), written only by the spot book match path and the channel
// fee path. The engine reads it for the consensus hash and snapshots; no
// fee distribution runs, so nothing drains it.
package feecache

import (
	"sort"
	"sync"

	"github.com/santoslabs/ledgercore/pkg/types"
)

type Cache struct {
	mu   sync.RWMutex
	rows map[types.AssetId]int64
}

func New() *Cache {
	return &Cache{rows: make(map[types.AssetId]int64)}
}

// Credit adds amount (must be non-negative) to the asset's accumulated
// fee balance.
func (c *Cache) Credit(asset types.AssetId, amount int64) {
	if amount <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows[asset] += amount
}

func (c *Cache) Balance(asset types.AssetId) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rows[asset]
}

// Drain zeroes out and returns the accumulated fee for asset.
func (c *Cache) Drain(asset types.AssetId) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	amt := c.rows[asset]
	delete(c.rows, asset)
	return amt
}

type Row struct {
	Asset  types.AssetId
	Amount int64
}

// Snapshot returns every non-zero row sorted by asset, per §4.8's
// consensus-hash field ordering for the fee cache.
func (c *Cache) Snapshot() []Row {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Row, 0, len(c.rows))
	for asset, amt := range c.rows {
		if amt == 0 {
			continue
		}
		out = append(out, Row{Asset: asset, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out
}

// Restore replaces the cache's contents wholesale from a previously
// taken Snapshot — the load half of §6.5's snapshot round trip.
func (c *Cache) Restore(rows []Row) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = make(map[types.AssetId]int64, len(rows))
	for _, r := range rows {
		c.rows[r.Asset] = r.Amount
	}
}
