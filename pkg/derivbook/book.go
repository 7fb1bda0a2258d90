package derivbook

import (
	"sort"
	"sync"

	"github.com/santoslabs/ledgercore/pkg/types"
)

type Side uint8

const (
	Buy Side = iota
	Sell
)

// Order is one resting ContractDex order.
type Order struct {
	Sender          types.Address
	ContractID      types.AssetId
	Side            Side
	EffectivePrice  int64
	Leverage        int64
	AmountRemaining int64
	ReservedMargin  int64
	TxHash          types.Hash
	Block           int64
	TxIndex         int
}

func (o *Order) ref() types.BlockRef { return types.BlockRef{Block: o.Block, TxIndex: o.TxIndex} }

type priceLevel struct {
	price  int64
	orders []*Order
}

// contractBook holds the bid and ask ladders for one contract, each kept
// ascending by price internally; Buy-side matching walks asks ascending,
// Sell-side matching walks bids descending (iterate in reverse).
type contractBook struct {
	bids []*priceLevel
	asks []*priceLevel
}

type Book struct {
	mu   sync.Mutex
	byContract map[types.AssetId]*contractBook
}

func New() *Book {
	return &Book{byContract: make(map[types.AssetId]*contractBook)}
}

func (b *Book) contract(id types.AssetId) *contractBook {
	cb, ok := b.byContract[id]
	if !ok {
		cb = &contractBook{}
		b.byContract[id] = cb
	}
	return cb
}

func ladderFor(cb *contractBook, side Side) *[]*priceLevel {
	if side == Buy {
		return &cb.bids
	}
	return &cb.asks
}

// oppositeLadder returns the resting side a new order of the given side
// matches against: a Buy matches resting asks, a Sell matches resting bids.
func oppositeLadder(cb *contractBook, side Side) *[]*priceLevel {
	if side == Buy {
		return &cb.asks
	}
	return &cb.bids
}

func findLevel(levels []*priceLevel, price int64) (*priceLevel, int) {
	idx := sort.Search(len(levels), func(i int) bool { return levels[i].price >= price })
	if idx < len(levels) && levels[idx].price == price {
		return levels[idx], idx
	}
	return nil, idx
}

// Insert rests o in the book on its own side at its own price.
func (b *Book) Insert(o *Order) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cb := b.contract(o.ContractID)
	ladder := ladderFor(cb, o.Side)
	lvl, idx := findLevel(*ladder, o.EffectivePrice)
	if lvl == nil {
		lvl = &priceLevel{price: o.EffectivePrice}
		*ladder = append(*ladder, nil)
		copy((*ladder)[idx+1:], (*ladder)[idx:])
		(*ladder)[idx] = lvl
	}
	lvl.orders = append(lvl.orders, o)
	sort.Slice(lvl.orders, func(i, j int) bool { return lvl.orders[i].ref().Less(lvl.orders[j].ref()) })
}

// MatchingLevels returns the opposite-side levels for side's incoming
// order, in the traversal order matching requires: ascending for a Buy
// (walks asks cheapest-first), descending for a Sell (walks bids
// richest-first).
func (b *Book) MatchingLevels(contract types.AssetId, side Side) []*priceLevel {
	b.mu.Lock()
	defer b.mu.Unlock()

	cb, ok := b.byContract[contract]
	if !ok {
		return nil
	}
	src := *oppositeLadder(cb, side)
	out := make([]*priceLevel, len(src))
	copy(out, src)
	if side == Sell {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// Reduce shrinks o's AmountRemaining, removing it from the book when it
// reaches zero.
func (b *Book) Reduce(o *Order, newRemaining int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if newRemaining > 0 {
		o.AmountRemaining = newRemaining
		return
	}
	cb, ok := b.byContract[o.ContractID]
	if !ok {
		return
	}
	ladder := ladderFor(cb, o.Side)
	for li, lvl := range *ladder {
		for oi, existing := range lvl.orders {
			if existing == o {
				lvl.orders = append(lvl.orders[:oi], lvl.orders[oi+1:]...)
				if len(lvl.orders) == 0 {
					*ladder = append((*ladder)[:li], (*ladder)[li+1:]...)
				}
				return
			}
		}
	}
}

// RemoveAllMatching removes every resting order for which match returns true,
// returning the removed orders — the shared primitive behind every
// cancel variant (§4.5.3).
func (b *Book) RemoveAllMatching(match func(*Order) bool) []*Order {
	b.mu.Lock()
	defer b.mu.Unlock()

	var removed []*Order
	for _, cb := range b.byContract {
		for _, ladder := range []*[]*priceLevel{&cb.bids, &cb.asks} {
			for li := len(*ladder) - 1; li >= 0; li-- {
				lvl := (*ladder)[li]
				for oi := len(lvl.orders) - 1; oi >= 0; oi-- {
					o := lvl.orders[oi]
					if match(o) {
						removed = append(removed, o)
						lvl.orders = append(lvl.orders[:oi], lvl.orders[oi+1:]...)
					}
				}
				if len(lvl.orders) == 0 {
					*ladder = append((*ladder)[:li], (*ladder)[li+1:]...)
				}
			}
		}
	}
	return removed
}

// BestOpposite returns the best resting price on the side opposite to
// side for contract — lowest ask for a Buy, highest bid for a Sell — used
// by market orders (§4.5.2).
func (b *Book) BestOpposite(contract types.AssetId, side Side) (int64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cb, ok := b.byContract[contract]
	if !ok {
		return 0, false
	}
	ladder := *oppositeLadder(cb, side)
	if len(ladder) == 0 {
		return 0, false
	}
	if side == Buy {
		return ladder[0].price, true // asks ascending: index 0 is cheapest
	}
	return ladder[len(ladder)-1].price, true // bids ascending: last is richest
}

// Restore replaces every resting order wholesale from a previously taken
// Snapshot — the load half of §6.5's snapshot round trip, used when the
// engine reloads state from a persisted snapshot at startup or during a
// reorg rewind (§4.9).
func (b *Book) Restore(orders []*Order) {
	b.mu.Lock()
	b.byContract = make(map[types.AssetId]*contractBook)
	b.mu.Unlock()
	for _, o := range orders {
		b.Insert(o)
	}
}

// Snapshot returns every resting order sorted by (contract_id, side,
// effective price ascending on both sides, block, tx_index) for the
// consensus hash.
func (b *Book) Snapshot() []*Order {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []*Order
	for _, cb := range b.byContract {
		for _, ladder := range [][]*priceLevel{cb.bids, cb.asks} {
			for _, lvl := range ladder {
				out = append(out, lvl.orders...)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, c := out[i], out[j]
		if a.ContractID != c.ContractID {
			return a.ContractID < c.ContractID
		}
		if a.Side != c.Side {
			return a.Side < c.Side
		}
		if a.EffectivePrice != c.EffectivePrice {
			return a.EffectivePrice < c.EffectivePrice
		}
		return a.ref().Less(c.ref())
	})
	return out
}
