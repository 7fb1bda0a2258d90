package engine

import (
	"sync"

	"github.com/santoslabs/ledgercore/pkg/tally"
	"github.com/santoslabs/ledgercore/pkg/types"
)

// sellOffer is one resting classic-DEx sell offer (TradeOffer, type 20),
// distinct from a MetaDEx offer: it reserves SellOfferReserve rather than
// MetaDexReserve and settles against a base-chain payment rather than
// another token, per spec.md §4.3 step 5's "DEx payment" sentinel.
type sellOffer struct {
	Sender          types.Address
	Property        types.AssetId
	AmountForSale   int64
	AmountRemaining int64
	AmountDesired   int64 // native-coin price for the full original amount
	MinFee          int64
	Block           int64
	TxIndex         int
}

// acceptance is one outstanding AcceptOffer against a sellOffer: it
// reserves a slice of the offer for one taker pending a matching
// base-chain payment.
type acceptance struct {
	Offer    *sellOffer
	Accepter types.Address
	Amount   int64
}

// classicDEx holds resting TradeOffer sell offers keyed by (sender,
// property) — the original DEx permits only one resting offer per pair —
// plus the outstanding AcceptOffer reservations against them. Grounded on
// the teacher's core.OrderBook for the "reserve a slice of a resting
// order for one taker" shape, adapted from price-level matching (which
// this sub-protocol does not use — AcceptOffer always targets the single
// standing offer) to a simple per-pair registry.
type classicDEx struct {
	mu          sync.Mutex
	offers      map[types.Address]map[types.AssetId]*sellOffer
	acceptances []*acceptance
}

func newClassicDEx() *classicDEx {
	return &classicDEx{offers: make(map[types.Address]map[types.AssetId]*sellOffer)}
}

// tradeOffer implements TradeOffer (type 20): reserves amountForSale from
// sender's Balance into SellOfferReserve and records the offer. A zero
// amountForSale cancels any existing offer, releasing its unreserved
// remainder back to Balance.
func (d *classicDEx) tradeOffer(ledger *tally.Ledger, sender types.Address, property types.AssetId, amountForSale, amountDesired, minFee int64, block int64, txIndex int) *HandlerError {
	d.mu.Lock()
	defer d.mu.Unlock()

	byProp, ok := d.offers[sender]
	if !ok {
		byProp = make(map[types.AssetId]*sellOffer)
		d.offers[sender] = byProp
	}

	if existing, ok := byProp[property]; ok {
		if existing.AmountRemaining > 0 {
			ledger.Update(sender, property, -existing.AmountRemaining, tally.SellOfferReserve)
			ledger.Update(sender, property, existing.AmountRemaining, tally.Balance)
		}
		delete(byProp, property)
	}

	if amountForSale == 0 {
		return nil
	}
	if amountForSale < 0 || amountDesired < 0 {
		return errf(BadParameter, "trade offer amounts must be non-negative")
	}
	if !ledger.Update(sender, property, -amountForSale, tally.Balance) {
		return errf(InsufficientFunds, "insufficient balance to offer %d of %d for sale", amountForSale, property)
	}
	ledger.Update(sender, property, amountForSale, tally.SellOfferReserve)

	byProp[property] = &sellOffer{
		Sender: sender, Property: property,
		AmountForSale: amountForSale, AmountRemaining: amountForSale,
		AmountDesired: amountDesired, MinFee: minFee,
		Block: block, TxIndex: txIndex,
	}
	return nil
}

// acceptOffer implements AcceptOffer (type 22): reserves amount of
// maker's resting SellOfferReserve into the maker's AcceptReserve on
// behalf of accepter, who is expected to follow up with a base-chain
// payment settled by a later DExPayment transaction.
func (d *classicDEx) acceptOffer(ledger *tally.Ledger, accepter, maker types.Address, property types.AssetId, amount int64) *HandlerError {
	d.mu.Lock()
	defer d.mu.Unlock()

	byProp, ok := d.offers[maker]
	if !ok {
		return errf(NotFound, "no resting offer from %s for property %d", maker, property)
	}
	offer, ok := byProp[property]
	if !ok || offer.AmountRemaining < amount {
		return errf(InsufficientFunds, "offer from %s for property %d cannot cover %d", maker, property, amount)
	}
	if !ledger.Update(maker, property, -amount, tally.SellOfferReserve) {
		return errf(Fatal, "sell offer reserve accounting corrupted for %s/%d", maker, property)
	}
	ledger.Update(maker, property, amount, tally.AcceptReserve)
	offer.AmountRemaining -= amount
	if offer.AmountRemaining == 0 {
		delete(byProp, property)
	}

	d.acceptances = append(d.acceptances, &acceptance{Offer: offer, Accepter: accepter, Amount: amount})
	return nil
}

// settlePayment implements the §4.3 step 5 "DEx payment" sentinel:
// scans the sender's outstanding acceptances against maker and, once a
// base-chain payment of at least the pro-rated native-coin price
// arrives, releases the matching AcceptReserve to the payer's Balance.
// payment is the native-coin value the caller has already resolved from
// the settling transaction's outputs to maker's address.
func (d *classicDEx) settlePayment(ledger *tally.Ledger, payer, maker types.Address, payment int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, a := range d.acceptances {
		if a.Accepter != payer || a.Offer.Sender != maker {
			continue
		}
		owed := a.Offer.AmountDesired
		if a.Offer.AmountForSale > 0 {
			owed, _ = proRata(a.Amount, a.Offer.AmountDesired, a.Offer.AmountForSale)
		}
		if payment < owed {
			continue
		}
		if ledger.Update(maker, a.Offer.Property, -a.Amount, tally.AcceptReserve) {
			ledger.Update(payer, a.Offer.Property, a.Amount, tally.Balance)
		}
		d.acceptances = append(d.acceptances[:i], d.acceptances[i+1:]...)
		return
	}
}

func proRata(part, whole, base int64) (int64, error) {
	if base == 0 {
		return 0, nil
	}
	return part * whole / base, nil
}
