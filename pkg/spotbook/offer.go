// Package spotbook implements the MetaDEx spot order book: per-property
// price-level offer maps, price-time FIFO matching, and leftover
// insertion. Grounded on the teacher's core.OrderBook
// (pkg/app/core/orderbook.go) — bids/asks keyed maps guarded by a mutex,
// ascending/descending level scans, best-price tracking — generalized
// from a single bid/ask pair per market to one book per property keyed by
// the property being sold, since spec.md §4.4 has no long/short sides,
// only "offering A for B".
package spotbook

import "github.com/santoslabs/ledgercore/pkg/types"

// Offer is one resting MetaDEx order. UnitPrice is fixed at insertion
// time (AmountDesired/AmountForSale of the *original* amounts) and never
// recomputed as AmountRemaining shrinks — partial fills consume
// AmountRemaining at the original rate.
type Offer struct {
	Sender          types.Address
	PropertyForSale types.AssetId
	PropertyDesired types.AssetId
	AmountForSale   int64
	AmountDesired   int64
	AmountRemaining int64
	TxHash          types.Hash
	Block           int64
	TxIndex         int
}

// UnitPrice is AmountDesired/AmountForSale — what the offer wants per
// unit of what it is selling.
func (o *Offer) UnitPrice() types.Price {
	p, _ := types.NewPrice(o.AmountDesired, o.AmountForSale)
	return p
}

// InversePrice is AmountForSale/AmountDesired — the maximum this offer
// would accept per unit of what it wants, used as the taker's limit when
// this offer is the new (incoming) order.
func (o *Offer) InversePrice() types.Price {
	return o.UnitPrice().Inverse()
}

func (o *Offer) ref() types.BlockRef { return types.BlockRef{Block: o.Block, TxIndex: o.TxIndex} }
