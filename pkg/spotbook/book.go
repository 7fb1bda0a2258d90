package spotbook

import (
	"fmt"
	"sort"
	"sync"

	"github.com/santoslabs/ledgercore/pkg/types"
)

// level groups every offer resting at the same exact unit price.
type level struct {
	price  types.Price
	offers []*Offer
}

// propertyBook is the set of price levels for everything offered *for
// sale* in one property, sorted ascending by price.
type propertyBook struct {
	levels []*level
}

// Book is the full MetaDEx: one propertyBook per property-for-sale,
// mutex-guarded like the teacher's OrderBook.
type Book struct {
	mu  sync.Mutex
	byProperty map[types.AssetId]*propertyBook
}

func New() *Book {
	return &Book{byProperty: make(map[types.AssetId]*propertyBook)}
}

// findLevel returns the level at exactly price within pb, and the index
// at which a new level would be inserted to keep pb.levels ascending.
func (pb *propertyBook) findLevel(price types.Price) (*level, int) {
	idx := sort.Search(len(pb.levels), func(i int) bool {
		return !pb.levels[i].price.Less(price)
	})
	if idx < len(pb.levels) && pb.levels[idx].price.Equal(price) {
		return pb.levels[idx], idx
	}
	return nil, idx
}

// insert adds o to the book keyed by o.PropertyForSale. Duplicate
// (block, tx_index) collisions within the same property are a protocol
// invariant violation (§4.4.1 step 3) and are rejected.
func (b *Book) insert(o *Offer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	pb, ok := b.byProperty[o.PropertyForSale]
	if !ok {
		pb = &propertyBook{}
		b.byProperty[o.PropertyForSale] = pb
	}

	for _, lvl := range pb.levels {
		for _, existing := range lvl.offers {
			if existing.Block == o.Block && existing.TxIndex == o.TxIndex {
				return fmt.Errorf("spotbook: duplicate (block, tx_index) = (%d, %d)", o.Block, o.TxIndex)
			}
		}
	}

	price := o.UnitPrice()
	lvl, idx := pb.findLevel(price)
	if lvl == nil {
		lvl = &level{price: price}
		pb.levels = append(pb.levels, nil)
		copy(pb.levels[idx+1:], pb.levels[idx:])
		pb.levels[idx] = lvl
	}
	lvl.offers = append(lvl.offers, o)
	sortOffersByRef(lvl.offers)
	return nil
}

func sortOffersByRef(offers []*Offer) {
	sort.Slice(offers, func(i, j int) bool { return offers[i].ref().Less(offers[j].ref()) })
}

// removeAt deletes the offer at (levelIdx, offerIdx) within pb, pruning
// the level if it becomes empty.
func (pb *propertyBook) removeAt(levelIdx, offerIdx int) {
	lvl := pb.levels[levelIdx]
	lvl.offers = append(lvl.offers[:offerIdx], lvl.offers[offerIdx+1:]...)
	if len(lvl.offers) == 0 {
		pb.levels = append(pb.levels[:levelIdx], pb.levels[levelIdx+1:]...)
	}
}

// AscendingLevels returns a snapshot of the price levels for
// property-for-sale, ascending, for iteration by the matching engine.
// Offers are returned by pointer so the caller may mutate AmountRemaining
// or request removal via CancelOffer.
func (b *Book) AscendingLevels(property types.AssetId) []struct {
	Price  types.Price
	Offers []*Offer
} {
	b.mu.Lock()
	defer b.mu.Unlock()

	pb, ok := b.byProperty[property]
	if !ok {
		return nil
	}
	out := make([]struct {
		Price  types.Price
		Offers []*Offer
	}, 0, len(pb.levels))
	for _, lvl := range pb.levels {
		offers := make([]*Offer, len(lvl.offers))
		copy(offers, lvl.offers)
		out = append(out, struct {
			Price  types.Price
			Offers []*Offer
		}{Price: lvl.price, Offers: offers})
	}
	return out
}

// Reduce sets o's AmountRemaining to newRemaining, removing it from the
// book entirely if newRemaining reaches zero.
func (b *Book) Reduce(o *Offer, newRemaining int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if newRemaining > 0 {
		o.AmountRemaining = newRemaining
		return
	}
	pb, ok := b.byProperty[o.PropertyForSale]
	if !ok {
		return
	}
	for li, lvl := range pb.levels {
		for oi, existing := range lvl.offers {
			if existing == o {
				pb.removeAt(li, oi)
				return
			}
		}
	}
}

// Insert is the public entry point used for leftover-offer insertion
// (§4.4.1 step 3).
func (b *Book) Insert(o *Offer) error {
	return b.insert(o)
}

// CancelAtPrice removes the resting offer(s) matching sender, property
// pair and exact original amounts (wire type 26).
func (b *Book) CancelAtPrice(sender types.Address, forSale, desired types.AssetId, amountForSale, amountDesired int64) []*Offer {
	b.mu.Lock()
	defer b.mu.Unlock()

	pb, ok := b.byProperty[forSale]
	if !ok {
		return nil
	}
	var removed []*Offer
	for li := len(pb.levels) - 1; li >= 0; li-- {
		lvl := pb.levels[li]
		for oi := len(lvl.offers) - 1; oi >= 0; oi-- {
			o := lvl.offers[oi]
			if o.Sender == sender && o.PropertyDesired == desired &&
				o.AmountForSale == amountForSale && o.AmountDesired == amountDesired {
				removed = append(removed, o)
				pb.removeAt(li, oi)
			}
		}
	}
	return removed
}

// CancelPair removes every resting offer from sender selling forSale for
// desired (wire type 27).
func (b *Book) CancelPair(sender types.Address, forSale, desired types.AssetId) []*Offer {
	b.mu.Lock()
	defer b.mu.Unlock()

	pb, ok := b.byProperty[forSale]
	if !ok {
		return nil
	}
	var removed []*Offer
	for li := len(pb.levels) - 1; li >= 0; li-- {
		lvl := pb.levels[li]
		for oi := len(lvl.offers) - 1; oi >= 0; oi-- {
			o := lvl.offers[oi]
			if o.Sender == sender && o.PropertyDesired == desired {
				removed = append(removed, o)
				pb.removeAt(li, oi)
			}
		}
	}
	return removed
}

// CancelEcosystem removes every resting offer from sender whose
// for-sale property belongs to ecosystem (wire type 28). isEcosystem
// classifies a property id into the requested ecosystem.
func (b *Book) CancelEcosystem(sender types.Address, isEcosystem func(types.AssetId) bool) []*Offer {
	b.mu.Lock()
	defer b.mu.Unlock()

	var removed []*Offer
	for _, pb := range b.byProperty {
		for li := len(pb.levels) - 1; li >= 0; li-- {
			lvl := pb.levels[li]
			for oi := len(lvl.offers) - 1; oi >= 0; oi-- {
				o := lvl.offers[oi]
				if o.Sender == sender && isEcosystem(o.PropertyForSale) {
					removed = append(removed, o)
					pb.removeAt(li, oi)
				}
			}
		}
	}
	return removed
}

// Shutdown removes every resting offer in the book, per spec.md §4.4.2's
// full-shutdown variant, used when the MetaDEx feature itself
// deactivates. Grounded on
// _examples/original_source/src/omnicore/mdex.cpp:751
// (MetaDEx_SHUTDOWN), which scans every property's book unconditionally.
func (b *Book) Shutdown() []*Offer {
	b.mu.Lock()
	defer b.mu.Unlock()

	var removed []*Offer
	for _, pb := range b.byProperty {
		for _, lvl := range pb.levels {
			removed = append(removed, lvl.offers...)
		}
	}
	b.byProperty = make(map[types.AssetId]*propertyBook)
	return removed
}

// ShutdownAllPair removes every resting offer whose pair excludes
// ecosystem-native tokens on both sides, per spec.md §4.4.2's shutdown
// variant used when the "trade-all-pairs" feature deactivates.
// isEcosystemNative classifies a property id as ecosystem-native (e.g.
// OMN/TOMN). Grounded on
// _examples/original_source/src/omnicore/mdex.cpp:726
// (MetaDEx_SHUTDOWN_ALLPAIR), which keeps an offer only when at least
// one side of the pair is ecosystem-native.
func (b *Book) ShutdownAllPair(isEcosystemNative func(types.AssetId) bool) []*Offer {
	b.mu.Lock()
	defer b.mu.Unlock()

	var removed []*Offer
	for _, pb := range b.byProperty {
		for li := len(pb.levels) - 1; li >= 0; li-- {
			lvl := pb.levels[li]
			for oi := len(lvl.offers) - 1; oi >= 0; oi-- {
				o := lvl.offers[oi]
				if isEcosystemNative(o.PropertyForSale) || isEcosystemNative(o.PropertyDesired) {
					continue
				}
				removed = append(removed, o)
				pb.removeAt(li, oi)
			}
		}
	}
	return removed
}

// Restore replaces every resting offer wholesale from a previously taken
// Snapshot — the load half of §6.5's snapshot round trip, used when the
// engine reloads state from a persisted snapshot at startup or during a
// reorg rewind (§4.9). Offers are re-inserted one at a time through the
// normal insert path so levels and per-level FIFO order come out
// identical to a book that received them via ordinary matching.
func (b *Book) Restore(offers []*Offer) {
	b.mu.Lock()
	b.byProperty = make(map[types.AssetId]*propertyBook)
	b.mu.Unlock()
	for _, o := range offers {
		_ = b.insert(o)
	}
}

// Snapshot returns every resting offer sorted by (property_for_sale,
// unit_price, block, tx_index), the order the consensus hash requires.
func (b *Book) Snapshot() []*Offer {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []*Offer
	for _, pb := range b.byProperty {
		for _, lvl := range pb.levels {
			out = append(out, lvl.offers...)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, c := out[i], out[j]
		if a.PropertyForSale != c.PropertyForSale {
			return a.PropertyForSale < c.PropertyForSale
		}
		if cmp := a.UnitPrice().Cmp(c.UnitPrice()); cmp != 0 {
			return cmp < 0
		}
		return a.ref().Less(c.ref())
	})
	return out
}
