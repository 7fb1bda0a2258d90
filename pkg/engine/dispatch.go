package engine

import (
	"github.com/santoslabs/ledgercore/pkg/channel"
	"github.com/santoslabs/ledgercore/pkg/decoder"
	"github.com/santoslabs/ledgercore/pkg/derivbook"
	"github.com/santoslabs/ledgercore/pkg/registry"
	"github.com/santoslabs/ledgercore/pkg/spotbook"
	"github.com/santoslabs/ledgercore/pkg/tally"
	"github.com/santoslabs/ledgercore/pkg/types"
	"github.com/santoslabs/ledgercore/pkg/wire"
)

// Dispatch implements on_tx's step 4 (§4.7): routes a decoded transaction
// to its handler under the single tallyLock, and appends the resulting
// TxLogEntry to the in-memory DbTxList stand-in regardless of outcome —
// failed handlers are recorded, not discarded, mirroring the teacher's
// FinalizeBlock per-tx result accumulation.
func (e *Engine) Dispatch(tx decoder.DecodedTx) *HandlerError {
	e.tallyLock.Lock()
	defer e.tallyLock.Unlock()

	e.height = tx.Block
	herr := e.dispatchLocked(tx)

	entry := TxLogEntry{
		Hash:  tx.Hash.String(),
		Valid: herr == nil,
		Block: tx.Block,
		Type:  int(tx.Header.Type),
	}
	if herr != nil {
		entry.Code = herr.Code
		entry.Rule = herr.Rule
	}
	e.txLog = append(e.txLog, entry)
	return herr
}

func (e *Engine) dispatchLocked(tx decoder.DecodedTx) *HandlerError {
	switch m := tx.Msg.(type) {
	case wire.MsgSimpleSend:
		return e.handleSimpleSend(tx, m)
	case wire.MsgSendToOwners:
		return e.handleSendToOwners(tx, m)
	case wire.MsgSendAll:
		return e.handleSendAll(tx, m)
	case wire.MsgSendVesting:
		return e.handleSendVesting(tx, m)
	case wire.MsgIssuanceCrowdsale:
		return e.handleIssuanceCrowdsale(tx, m)
	case wire.MsgNewIdRegistration:
		return e.handleIdRegistration(tx)
	case wire.MsgTradeOffer:
		return e.handleTradeOffer(tx, m)
	case wire.MsgAcceptOffer:
		return e.handleAcceptOffer(tx, m)
	case wire.MsgMetaDExTrade:
		return e.handleMetaDExTrade(tx, m)
	case wire.MsgMetaDExCancelAtPrice:
		return e.handleMetaDExCancelAtPrice(tx, m)
	case wire.MsgMetaDExCancelPair:
		return e.handleMetaDExCancelPair(tx, m)
	case wire.MsgMetaDExCancelEcosystem:
		return e.handleMetaDExCancelEcosystem(tx, m)
	case wire.MsgCreateContract:
		return e.handleCreateContract(tx, m, registry.Contract)
	case wire.MsgCreateOracleContract:
		return e.handleCreateContract(tx, m.MsgCreateContract, registry.OracleContract)
	case wire.MsgContractDexTrade:
		return e.handleContractDexTrade(tx, m)
	case wire.MsgContractDexCancelEcosystem:
		return e.handleContractCancelEcosystem(tx, m)
	case wire.MsgContractDexCancelContract:
		return e.handleContractCancelContract(tx, m)
	case wire.MsgContractDexCancelByBlock:
		return e.handleContractCancelByBlock(tx, m)
	case wire.MsgSetOracle:
		return e.handleSetOracle(tx, m)
	case wire.MsgChangeOracleRef:
		return e.handleChangeOracleRef(tx, m)
	case wire.MsgOracleBackup:
		return e.handleOracleBackup(tx, m)
	case wire.MsgCloseOracle:
		return e.handleCloseOracle(tx, m)
	case wire.MsgIssuanceFixed:
		return e.handleIssuanceFixed(tx, m)
	case wire.MsgIssuanceManaged:
		return e.handleIssuanceManaged(tx, m)
	case wire.MsgGrantRevoke:
		return e.handleGrantRevoke(tx, m, tx.Header.Type == wire.Grant)
	case wire.MsgCreateChannel:
		return e.handleCreateChannel(tx, m)
	case wire.MsgCommitChannel:
		return e.handleCommitChannel(tx, m)
	case wire.MsgWithdrawalFromChannel:
		return e.handleWithdrawalFromChannel(tx, m)
	case wire.MsgInstantTrade:
		return e.handleInstantTrade(tx, m)
	case wire.MsgTransfer:
		return e.handleTransfer(tx, m)
	case wire.MsgContractInstant:
		return e.handleContractInstant(tx, m)
	case wire.MsgFreeze:
		return e.handleFreeze(tx, m, tx.Header.Type != wire.Unfreeze)
	case wire.MsgActivation:
		return e.handleActivation(tx, m)
	case wire.MsgDeactivation:
		return e.handleDeactivation(tx, m)
	case wire.MsgAlert:
		return e.handleAlert(tx, m)
	case struct{}:
		return e.handlePayloadlessType(tx)
	case nil:
		return errf(Malformed, "empty payload")
	default:
		return errf(Malformed, "unrecognized message type %T", m)
	}
}

// handlePayloadlessType covers the wire types that parse to an empty
// struct{} (UpdateIdRegistration, DExPayment) — both carry no op-return
// payload, so the header type alone decides the handler.
func (e *Engine) handlePayloadlessType(tx decoder.DecodedTx) *HandlerError {
	switch tx.Header.Type {
	case wire.DExPayment:
		e.classic.settlePayment(e.Tally, tx.Sender, tx.Reference, tx.ReferenceValue)
		return nil
	default:
		return e.handleIdRegistration(tx)
	}
}

func (e *Engine) handleSimpleSend(tx decoder.DecodedTx, m wire.MsgSimpleSend) *HandlerError {
	if m.Amount <= 0 {
		return errf(BadParameter, "simple send amount must be positive")
	}
	if !e.Registry.Exists(types.AssetId(m.Property)) && !types.IsEcosystemNative(types.AssetId(m.Property)) {
		return errf(NotFound, "unknown property %d", m.Property)
	}
	if !e.Tally.Update(tx.Sender, types.AssetId(m.Property), -m.Amount, tally.Balance) {
		return errf(InsufficientFunds, "insufficient balance to send %d of %d", m.Amount, m.Property)
	}
	e.Tally.Update(tx.Reference, types.AssetId(m.Property), m.Amount, tally.Balance)
	return nil
}

func (e *Engine) handleTradeOffer(tx decoder.DecodedTx, m wire.MsgTradeOffer) *HandlerError {
	return e.classic.tradeOffer(e.Tally, tx.Sender, types.AssetId(m.Property), m.Amount, m.AmountDesired, m.MinFee, tx.Block, tx.TxIndex)
}

func (e *Engine) handleAcceptOffer(tx decoder.DecodedTx, m wire.MsgAcceptOffer) *HandlerError {
	return e.classic.acceptOffer(e.Tally, tx.Sender, tx.Reference, types.AssetId(m.Property), m.Amount)
}

func (e *Engine) mustProperty(id types.AssetId) (registry.Property, *HandlerError) {
	p, ok := e.Registry.Get(id)
	if !ok {
		return registry.Property{}, errf(NotFound, "unknown property %d", id)
	}
	return p, nil
}

func (e *Engine) handleMetaDExTrade(tx decoder.DecodedTx, m wire.MsgMetaDExTrade) *HandlerError {
	if types.AssetId(m.Property) == types.AssetId(m.DesiredProperty) {
		return errf(BadParameter, "cannot trade a property against itself")
	}
	if types.EcosystemOf(types.AssetId(m.Property)) != types.EcosystemOf(types.AssetId(m.DesiredProperty)) {
		return errf(BadParameter, "cross-ecosystem MetaDEx trades are not permitted")
	}
	if m.Amount <= 0 || m.DesiredAmount <= 0 {
		return errf(BadParameter, "metadex trade amounts must be positive")
	}
	trades, err := spotbook.Execute(e.SpotBook, e.Tally, e.Fees, spotbook.TradeInput{
		Sender: tx.Sender, PropertyForSale: types.AssetId(m.Property), AmountForSale: m.Amount,
		PropertyDesired: types.AssetId(m.DesiredProperty), AmountDesired: m.DesiredAmount,
		TxHash: tx.Hash, Block: tx.Block, TxIndex: tx.TxIndex,
	}, true, e.cfg.Fees.MetaDexFeeDivisor)
	if err != nil {
		return errf(InsufficientFunds, "%v", err)
	}
	for i := range trades {
		e.tradeLog = append(e.tradeLog, TradeEvent{Spot: &trades[i]})
	}
	return nil
}

func (e *Engine) handleMetaDExCancelAtPrice(tx decoder.DecodedTx, m wire.MsgMetaDExCancelAtPrice) *HandlerError {
	e.SpotBook.CancelAtPrice(tx.Sender, types.AssetId(m.Property), types.AssetId(m.DesiredProperty), m.Amount, m.DesiredAmount)
	return nil
}

func (e *Engine) handleMetaDExCancelPair(tx decoder.DecodedTx, m wire.MsgMetaDExCancelPair) *HandlerError {
	e.SpotBook.CancelPair(tx.Sender, types.AssetId(m.Property), types.AssetId(m.DesiredProperty))
	return nil
}

func (e *Engine) handleMetaDExCancelEcosystem(tx decoder.DecodedTx, m wire.MsgMetaDExCancelEcosystem) *HandlerError {
	eco := types.Ecosystem(m.Ecosystem)
	e.SpotBook.CancelEcosystem(tx.Sender, func(id types.AssetId) bool { return types.EcosystemOf(id) == eco })
	return nil
}

func (e *Engine) handleCreateContract(tx decoder.DecodedTx, m wire.MsgCreateContract, kind registry.Kind) *HandlerError {
	prop := registry.Property{
		Ecosystem:     types.Ecosystem(m.Ecosystem),
		Kind:          kind,
		Divisible:     true,
		Issuer:        tx.Sender,
		Name:          m.Name,
		CreationBlock: tx.Hash,
		Contract: &registry.ContractParams{
			NotionalSize:          int64(m.NotionalSize),
			MarginRequirementBps:  int64(m.MarginRequirement),
			CollateralAsset:       types.AssetId(m.Collateral),
			BlocksUntilExpiration: int64(m.BlocksUntilExp),
			InitBlock:             tx.Block,
		},
	}
	if _, err := e.Registry.Create(prop); err != nil {
		return errf(BadParameter, "%v", err)
	}
	return nil
}

func (e *Engine) handleContractDexTrade(tx decoder.DecodedTx, m wire.MsgContractDexTrade) *HandlerError {
	prop, ok := e.Registry.ContractByName(m.Name)
	if !ok {
		return errf(NotFound, "unknown contract %q", m.Name)
	}
	contractID := prop.ID
	if m.Amount <= 0 || m.EffectivePrice == 0 {
		return errf(BadParameter, "contract trade amount and price must be positive")
	}
	side := derivbook.Buy
	if m.TradingAction == 1 {
		side = derivbook.Sell
	}
	trades, err := derivbook.Execute(e.DerivBook, e.Tally, e.Stats, e.Prices, prop, derivbook.TradeInput{
		Sender: tx.Sender, ContractID: contractID, Amount: m.Amount,
		EffectivePrice: int64(m.EffectivePrice), Leverage: int64(m.Leverage), Side: side,
		TxHash: tx.Hash, Block: tx.Block, TxIndex: tx.TxIndex,
	})
	if err != nil {
		return errf(InsufficientFunds, "%v", err)
	}
	for i := range trades {
		e.tradeLog = append(e.tradeLog, TradeEvent{Contract: &trades[i]})
	}
	return nil
}

func (e *Engine) handleContractCancelEcosystem(tx decoder.DecodedTx, m wire.MsgContractDexCancelEcosystem) *HandlerError {
	eco := types.Ecosystem(m.Ecosystem)
	derivbook.CancelEcosystem(e.DerivBook, e.Tally, e.Registry.ListContracts(), tx.Sender, func(id types.AssetId) bool { return types.EcosystemOf(id) == eco })
	return nil
}

func (e *Engine) handleContractCancelContract(tx decoder.DecodedTx, m wire.MsgContractDexCancelContract) *HandlerError {
	if !m.HasContractID {
		return errf(BadParameter, "cancel-contract requires a contract id")
	}
	prop, herr := e.mustProperty(types.AssetId(m.ContractID))
	if herr != nil {
		return herr
	}
	derivbook.CancelContract(e.DerivBook, e.Tally, prop, tx.Sender)
	return nil
}

func (e *Engine) handleContractCancelByBlock(tx decoder.DecodedTx, m wire.MsgContractDexCancelByBlock) *HandlerError {
	ref := types.BlockRef{Block: int64(m.Block), TxIndex: int(m.Idx)}
	for _, prop := range e.Registry.ListContracts() {
		derivbook.CancelByBlock(e.DerivBook, e.Tally, prop, tx.Sender, ref)
	}
	return nil
}

func (e *Engine) handleSetOracle(tx decoder.DecodedTx, m wire.MsgSetOracle) *HandlerError {
	if err := derivbook.SetOracle(e.Registry, types.AssetId(m.Property), tx.Sender, m.OracleHigh, m.OracleLow, tx.Block); err != nil {
		return errf(NotPermitted, "%v", err)
	}
	return nil
}

func (e *Engine) handleChangeOracleRef(tx decoder.DecodedTx, m wire.MsgChangeOracleRef) *HandlerError {
	if err := derivbook.ChangeOracleRef(e.Registry, types.AssetId(m.ContractID), tx.Sender, tx.Reference, tx.Hash); err != nil {
		return errf(NotPermitted, "%v", err)
	}
	return nil
}

func (e *Engine) handleOracleBackup(tx decoder.DecodedTx, m wire.MsgOracleBackup) *HandlerError {
	if err := derivbook.OracleBackup(e.Registry, types.AssetId(m.ContractID), tx.Sender, tx.Hash); err != nil {
		return errf(NotPermitted, "%v", err)
	}
	return nil
}

func (e *Engine) handleCloseOracle(tx decoder.DecodedTx, m wire.MsgCloseOracle) *HandlerError {
	prop, herr := e.mustProperty(types.AssetId(m.ContractID))
	if herr != nil {
		return herr
	}
	if _, err := derivbook.CloseOracle(e.DerivBook, e.Tally, e.Prices, prop, tx.Sender); err != nil {
		return errf(NotPermitted, "%v", err)
	}
	return nil
}

func (e *Engine) handleIssuanceFixed(tx decoder.DecodedTx, m wire.MsgIssuanceFixed) *HandlerError {
	prop := registry.Property{
		Ecosystem: types.Ecosystem(m.Ecosystem), Kind: registry.Fixed, Divisible: true,
		Issuer: tx.Sender, CreationBlock: tx.Hash, NumTokens: m.Amount,
	}
	id, err := e.Registry.Create(prop)
	if err != nil {
		return errf(BadParameter, "%v", err)
	}
	e.Tally.Update(tx.Sender, id, m.Amount, tally.Balance)
	return nil
}

func (e *Engine) handleIssuanceManaged(tx decoder.DecodedTx, m wire.MsgIssuanceManaged) *HandlerError {
	prop := registry.Property{
		Ecosystem: types.Ecosystem(m.Ecosystem), Kind: registry.Managed, Divisible: true,
		Issuer: tx.Sender, CreationBlock: tx.Hash,
	}
	if _, err := e.Registry.Create(prop); err != nil {
		return errf(BadParameter, "%v", err)
	}
	return nil
}

func (e *Engine) handleGrantRevoke(tx decoder.DecodedTx, m wire.MsgGrantRevoke, grant bool) *HandlerError {
	prop, herr := e.mustProperty(types.AssetId(m.Property))
	if herr != nil {
		return herr
	}
	if prop.Issuer != tx.Sender {
		return errf(NotPermitted, "only the issuer may grant or revoke")
	}
	if m.Amount <= 0 {
		return errf(BadParameter, "grant/revoke amount must be positive")
	}
	if grant {
		if err := e.Registry.GrantTokens(prop.ID, m.Amount); err != nil {
			return errf(BadParameter, "%v", err)
		}
		e.Tally.Update(tx.Reference, prop.ID, m.Amount, tally.Balance)
		return nil
	}
	if err := e.Registry.RevokeTokens(prop.ID, m.Amount); err != nil {
		return errf(InsufficientFunds, "%v", err)
	}
	if !e.Tally.Update(tx.Sender, prop.ID, -m.Amount, tally.Balance) {
		e.Registry.GrantTokens(prop.ID, m.Amount)
		return errf(InsufficientFunds, "insufficient balance to revoke")
	}
	return nil
}

func (e *Engine) handleCreateChannel(tx decoder.DecodedTx, m wire.MsgCreateChannel) *HandlerError {
	multisig := types.Address(m.Address)
	if err := e.Channels.CreateChannel(multisig, tx.Sender, tx.Reference, int64(m.ExpiryBlocks), tx.Block); err != nil {
		return errf(Conflict, "%v", err)
	}
	return nil
}

func (e *Engine) channelMultisig(tx decoder.DecodedTx) types.Address {
	return tx.Reference
}

func (e *Engine) handleCommitChannel(tx decoder.DecodedTx, m wire.MsgCommitChannel) *HandlerError {
	if err := e.Channels.CommitChannel(e.Tally, e.channelMultisig(tx), tx.Sender, types.AssetId(m.Property), m.Amount); err != nil {
		return errf(InsufficientFunds, "%v", err)
	}
	return nil
}

func (e *Engine) handleWithdrawalFromChannel(tx decoder.DecodedTx, m wire.MsgWithdrawalFromChannel) *HandlerError {
	if err := e.Channels.WithdrawalFromChannel(e.channelMultisig(tx), tx.Sender, types.AssetId(m.Property), m.Amount, tx.Block, e.cfg.Channel.WithdrawalDeadlineBlocks); err != nil {
		return errf(BadParameter, "%v", err)
	}
	return nil
}

func (e *Engine) handleInstantTrade(tx decoder.DecodedTx, m wire.MsgInstantTrade) *HandlerError {
	if err := e.Channels.InstantTrade(e.Tally, e.channelMultisig(tx), tx.Sender, types.AssetId(m.Property), m.Amount, types.AssetId(m.Desired), m.DesiredAmount, tx.Block, e.cfg.Channel.DayBlocks); err != nil {
		return errf(BadParameter, "%v", err)
	}
	return nil
}

func (e *Engine) handleTransfer(tx decoder.DecodedTx, m wire.MsgTransfer) *HandlerError {
	if err := e.Channels.Transfer(e.Tally, e.channelMultisig(tx), tx.Sender, tx.Reference, types.AssetId(m.Property), m.Amount); err != nil {
		return errf(BadParameter, "%v", err)
	}
	return nil
}

func (e *Engine) handleContractInstant(tx decoder.DecodedTx, m wire.MsgContractInstant) *HandlerError {
	prop, herr := e.mustProperty(types.AssetId(m.Property))
	if herr != nil {
		return herr
	}
	partyLong, partyShort := tx.Sender, tx.Reference
	if m.Action == 1 {
		partyLong, partyShort = partyShort, partyLong
	}
	err := channel.ContractInstantTrade(e.Tally, e.Prices, e.Fees, prop, partyLong, partyShort,
		m.Amount, int64(m.Price), int64(m.Leverage), e.cfg.Fees.ContractInstantTradeBps, e.cfg.Fees.OracleInstantTradeBps)
	if err != nil {
		return errf(InsufficientFunds, "%v", err)
	}
	return nil
}

func (e *Engine) handleFreeze(tx decoder.DecodedTx, m wire.MsgFreeze, freeze bool) *HandlerError {
	prop, herr := e.mustProperty(types.AssetId(m.Property))
	if herr != nil {
		return herr
	}
	if prop.Issuer != tx.Sender {
		return errf(NotPermitted, "only the issuer may freeze or unfreeze")
	}
	e.Tally.SetFrozen(tx.Reference, types.AssetId(m.Property), freeze)
	return nil
}

func (e *Engine) handleActivation(tx decoder.DecodedTx, m wire.MsgActivation) *HandlerError {
	e.Activations.ScheduleActivation(m.FeatureID, int64(m.ActivationBlock), m.MinClientVersion)
	return nil
}

// featureMetaDEx and featureTradeAllPairs are the Omni Layer protocol's
// feature ids for the MetaDEx itself and the "trade all pairs" relief
// valve, per _examples/original_source/src/omnicore/tx.cpp:3141-3145.
const (
	featureMetaDEx       uint16 = 2
	featureTradeAllPairs uint16 = 8
)

func (e *Engine) handleDeactivation(tx decoder.DecodedTx, m wire.MsgDeactivation) *HandlerError {
	e.Activations.Deactivate(m.FeatureID)

	switch m.FeatureID {
	case featureMetaDEx:
		e.releaseSpotOffers(e.SpotBook.Shutdown())
	case featureTradeAllPairs:
		e.releaseSpotOffers(e.SpotBook.ShutdownAllPair(types.IsEcosystemNative))
	}
	return nil
}

// releaseSpotOffers moves each removed offer's still-reserved amount
// from MetaDexReserve back to Balance, per spec.md §4.4.2's "every
// removal is accompanied by... a MetaDexReserve to Balance transfer,"
// grounded on mdex.cpp:736-737's update_tally_map pair around
// MetaDEx_SHUTDOWN*.
func (e *Engine) releaseSpotOffers(offers []*spotbook.Offer) {
	for _, o := range offers {
		e.Tally.Update(o.Sender, o.PropertyForSale, -o.AmountRemaining, tally.MetaDexReserve)
		e.Tally.Update(o.Sender, o.PropertyForSale, o.AmountRemaining, tally.Balance)
	}
}

func (e *Engine) handleAlert(tx decoder.DecodedTx, m wire.MsgAlert) *HandlerError {
	e.Activations.RecordAlert(string(tx.Sender), m.AlertType, m.AlertExpiry, m.AlertText)
	return nil
}
