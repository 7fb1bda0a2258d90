package engine

import (
	"github.com/santoslabs/ledgercore/pkg/decoder"
	"github.com/santoslabs/ledgercore/pkg/registry"
	"github.com/santoslabs/ledgercore/pkg/tally"
	"github.com/santoslabs/ledgercore/pkg/types"
	"github.com/santoslabs/ledgercore/pkg/wire"
)

// handleSendToOwners distributes amount of property from sender's Balance
// pro-rata across every address holding a non-zero balance of
// distributionProperty (or property itself, pre-v1 wire format). A holder
// whose pro-rata share rounds to zero receives nothing; the remainder from
// integer-division loss stays with the sender rather than being reissued,
// matching the teacher's fee-skim rounding convention of favoring the
// payer over manufacturing new supply.
func (e *Engine) handleSendToOwners(tx decoder.DecodedTx, m wire.MsgSendToOwners) *HandlerError {
	if m.Amount <= 0 {
		return errf(BadParameter, "send-to-owners amount must be positive")
	}
	distProp := types.AssetId(m.Property)
	if m.HasDistribution {
		distProp = types.AssetId(m.DistributionProperty)
	}

	total, _ := e.Tally.TotalForAsset(distProp)
	if total <= 0 {
		return errf(NotFound, "no holders of distribution property %d", distProp)
	}

	if !e.Tally.Update(tx.Sender, types.AssetId(m.Property), -m.Amount, tally.Balance) {
		return errf(InsufficientFunds, "insufficient balance to distribute %d of %d", m.Amount, m.Property)
	}

	var distributed int64
	var recipients int
	for _, addr := range e.Tally.AddressesForAsset(distProp) {
		if addr == tx.Sender && distProp == types.AssetId(m.Property) {
			continue
		}
		share := e.Tally.Balance(addr, distProp, tally.Balance)
		if share <= 0 {
			continue
		}
		portion := share * m.Amount / total
		if portion <= 0 {
			continue
		}
		e.Tally.Update(addr, types.AssetId(m.Property), portion, tally.Balance)
		distributed += portion
		recipients++
	}

	if leftover := m.Amount - distributed; leftover > 0 {
		e.Tally.Update(tx.Sender, types.AssetId(m.Property), leftover, tally.Balance)
	}

	e.distLog = append(e.distLog, DistributionEvent{
		TxHash:               tx.Hash,
		Sender:               tx.Sender,
		Property:             types.AssetId(m.Property),
		DistributionProperty: distProp,
		AmountTotal:          distributed,
		RecipientCount:       recipients,
		Block:                tx.Block,
		TxIndex:              tx.TxIndex,
	})
	return nil
}

// handleSendAll sweeps every spendable Balance the sender holds across
// every property in the named ecosystem to the reference address — the
// wallet "send everything" convenience transaction. Properties whose
// (sender, property) pair is frozen are skipped rather than failing the
// whole transaction.
func (e *Engine) handleSendAll(tx decoder.DecodedTx, m wire.MsgSendAll) *HandlerError {
	eco := types.Ecosystem(m.Ecosystem)
	moved := 0
	for _, prop := range e.Registry.Snapshot() {
		if prop.Ecosystem != eco {
			continue
		}
		amt := e.Tally.Balance(tx.Sender, prop.ID, tally.Balance)
		if amt <= 0 {
			continue
		}
		if e.Tally.IsFrozen(tx.Sender, prop.ID) {
			continue
		}
		if e.Tally.Update(tx.Sender, prop.ID, -amt, tally.Balance) {
			e.Tally.Update(tx.Reference, prop.ID, amt, tally.Balance)
			moved++
		}
	}
	if moved == 0 {
		return errf(InsufficientFunds, "no spendable balance in ecosystem %d", m.Ecosystem)
	}
	return nil
}

// handleSendVesting moves amount of a Vesting-marked property from
// sender's Balance to the reference address, the same mechanics as a
// plain send — the Vesting marker only affects how the issuer originally
// allocated the property (Unvested bucket accounting happens at issuance,
// not at send time), which this transaction does not touch.
func (e *Engine) handleSendVesting(tx decoder.DecodedTx, m wire.MsgSendVesting) *HandlerError {
	if m.Amount <= 0 {
		return errf(BadParameter, "vesting send amount must be positive")
	}
	if !e.Tally.Update(tx.Sender, types.AssetId(m.Property), -m.Amount, tally.Balance) {
		return errf(InsufficientFunds, "insufficient balance to send %d of %d", m.Amount, m.Property)
	}
	e.Tally.Update(tx.Reference, types.AssetId(m.Property), m.Amount, tally.Balance)
	return nil
}

// handleIssuanceCrowdsale registers a Crowdsale property. The wire format
// and registry carry the crowdsale's terms (desired property, rate,
// deadline, bonus schedule) but spec.md gives no contribution-crediting
// formula for tokens purchased during an active window — only the
// Conflict error for "duplicate active crowdsale" is named — so this
// handler covers creation and the one-active-crowdsale-per-issuer
// invariant; per-contribution crediting is left unimplemented rather than
// guessed.
func (e *Engine) handleIssuanceCrowdsale(tx decoder.DecodedTx, m wire.MsgIssuanceCrowdsale) *HandlerError {
	if e.hasActiveCrowdsale(tx.Sender) {
		return errf(Conflict, "issuer %s already has an active crowdsale", tx.Sender)
	}
	prop := registry.Property{
		Ecosystem:     types.Ecosystem(m.Ecosystem),
		Kind:          registry.Crowdsale,
		Divisible:     true,
		Issuer:        tx.Sender,
		CreationBlock: tx.Hash,
	}
	id, err := e.Registry.Create(prop)
	if err != nil {
		return errf(BadParameter, "%v", err)
	}
	e.markActiveCrowdsale(tx.Sender, id)
	return nil
}

func (e *Engine) hasActiveCrowdsale(issuer types.Address) bool {
	_, ok := e.activeCrowdsales[issuer]
	return ok
}

func (e *Engine) markActiveCrowdsale(issuer types.Address, id types.AssetId) {
	if e.activeCrowdsales == nil {
		e.activeCrowdsales = make(map[types.Address]types.AssetId)
	}
	e.activeCrowdsales[issuer] = id
}

// handleIdRegistration accepts NewIdRegistration/UpdateIdRegistration as a
// valid no-op. Identity/KYC metadata registration has no effect on any
// tally bucket, order book, or channel — it is out of this engine's
// balance-accounting scope, but a well-formed registration transaction is
// not an error either.
func (e *Engine) handleIdRegistration(tx decoder.DecodedTx) *HandlerError {
	return nil
}
