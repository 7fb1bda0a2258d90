package channel

import (
	"fmt"

	"github.com/santoslabs/ledgercore/pkg/derivbook"
	"github.com/santoslabs/ledgercore/pkg/feecache"
	"github.com/santoslabs/ledgercore/pkg/registry"
	"github.com/santoslabs/ledgercore/pkg/tally"
	"github.com/santoslabs/ledgercore/pkg/types"
)

// InstantTrade implements §4.6 InstantTrade: a direct two-party swap
// settled entirely out of the two parties' own ChannelReserve/Balance
// buckets, with no book involvement. sender trades amountA of assetA for
// amountB of assetB with the channel's other party. Rejected if the
// channel has already expired (currentBlock > ExpiryBlock), matching the
// "their commitments must still be live" reading of §4.6.
//
// When one side names the base-chain native coin (types.AssetNativeCoin)
// only the token side is moved here — the caller settles the native-coin
// leg as an ordinary base-chain payment, per spec.md's explicit carve-out.
func (r *Registry) InstantTrade(ledger *tally.Ledger, multisig, sender types.Address, assetA types.AssetId, amountA int64, assetB types.AssetId, amountB int64, currentBlock, dayBlocks int64) error {
	if amountA <= 0 || amountB <= 0 {
		return fmt.Errorf("channel: instant trade amounts must be positive")
	}

	r.mu.Lock()
	c, ok := r.channels[multisig]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("channel: unknown channel %s", multisig)
	}
	counterparty, err := c.otherParty(sender)
	if err != nil {
		return err
	}
	if currentBlock > c.ExpiryBlock {
		return fmt.Errorf("channel: %s has expired at block %d", multisig, c.ExpiryBlock)
	}

	if assetA != types.AssetNativeCoin {
		if err := moveReserveToBalance(ledger, sender, counterparty, assetA, amountA); err != nil {
			return err
		}
	}
	if assetB != types.AssetNativeCoin {
		if err := moveReserveToBalance(ledger, counterparty, sender, assetB, amountB); err != nil {
			return err
		}
	}

	r.mu.Lock()
	bump := currentBlock - c.LastExchangeBlock
	if bump > dayBlocks {
		bump = dayBlocks
	}
	if bump > 0 {
		c.ExpiryBlock += bump
	}
	c.LastExchangeBlock = currentBlock
	r.mu.Unlock()
	return nil
}

// ContractInstantTrade implements §4.6 ContractInstantTrade: a two-party
// replay of a derivatives fill settled directly out of channel reserves,
// with no order book involvement. Both parties must hold sufficient
// ChannelReserve in the contract's collateral asset to cover their own
// margin reserve; a flat per-side fee (oracleBps for OracleContract
// properties, contractBps otherwise) is skimmed to the fee cache before
// the position update.
func ContractInstantTrade(ledger *tally.Ledger, prices *derivbook.EntryPriceStore, fees *feecache.Cache, prop registry.Property, partyLong, partyShort types.Address, amount, effectivePrice, leverage int64, contractBps, oracleBps int64) error {
	if prop.Contract == nil {
		return fmt.Errorf("channel: property %d is not a contract", prop.ID)
	}
	if amount <= 0 || effectivePrice <= 0 {
		return fmt.Errorf("channel: amount and effective_price must be positive")
	}

	marginBps := prop.Contract.MarginRequirementBps
	collateral := prop.Contract.CollateralAsset

	feeBps := contractBps
	if prop.Kind == registry.OracleContract {
		feeBps = oracleBps
	}

	reserveLong, err := types.MulDivFloor(amount, marginBps, 10000*leverage)
	if err != nil {
		return err
	}
	reserveShort := reserveLong

	feeLong, err := types.MulDivFloor(reserveLong, feeBps, 10000)
	if err != nil {
		return err
	}
	feeShort, err := types.MulDivFloor(reserveShort, feeBps, 10000)
	if err != nil {
		return err
	}

	if !ledger.Update(partyLong, collateral, -reserveLong, tally.ChannelReserve) {
		return fmt.Errorf("channel: %s has insufficient channel reserve", partyLong)
	}
	if !ledger.Update(partyShort, collateral, -reserveShort, tally.ChannelReserve) {
		ledger.Update(partyLong, collateral, reserveLong, tally.ChannelReserve)
		return fmt.Errorf("channel: %s has insufficient channel reserve", partyShort)
	}

	if feeLong > 0 {
		fees.Credit(collateral, feeLong)
	}
	if feeShort > 0 {
		fees.Credit(collateral, feeShort)
	}
	ledger.Update(partyLong, collateral, reserveLong-feeLong, tally.ContractMargin)
	ledger.Update(partyShort, collateral, reserveShort-feeShort, tally.ContractMargin)

	if _, _, err := derivbook.ApplyFill(ledger, prices, partyLong, prop.ID, collateral, amount, effectivePrice, marginBps, leverage); err != nil {
		return err
	}
	if _, _, err := derivbook.ApplyFill(ledger, prices, partyShort, prop.ID, collateral, -amount, effectivePrice, marginBps, leverage); err != nil {
		return err
	}
	return nil
}
