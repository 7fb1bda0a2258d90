package wire

import "fmt"

// Parse reads the version/type header and dispatches to the matching
// per-type structural parser. The returned value is one of the Msg*
// structs above; callers type-switch on it. Every parser enforces its own
// minimum length via RequireAtLeast before extracting fields, per
// spec.md §4.3 step 6.
func Parse(payload []byte) (Header, any, error) {
	r := NewReader(payload)
	hdr := Header{Version: r.U16(), Type: MsgType(r.U16())}
	if err := r.Err(); err != nil {
		return hdr, nil, fmt.Errorf("wire: truncated header: %w", err)
	}

	msg, err := parseBody(hdr, r)
	if err != nil {
		return hdr, nil, err
	}
	return hdr, msg, nil
}

func parseBody(hdr Header, r *Reader) (any, error) {
	switch hdr.Type {
	case SimpleSend:
		r.RequireAtLeast(12)
		m := MsgSimpleSend{Property: r.U32(), Amount: r.I64()}
		return m, r.ErrorWithContext(uint16(hdr.Type))

	case SendToOwners:
		r.RequireAtLeast(12)
		m := MsgSendToOwners{Property: r.U32(), Amount: r.I64()}
		if hdr.Version >= 1 && r.HasMore() {
			m.DistributionProperty = r.U32()
			m.HasDistribution = true
		}
		return m, r.ErrorWithContext(uint16(hdr.Type))

	case SendAll:
		r.RequireAtLeast(1)
		return MsgSendAll{Ecosystem: r.U8()}, r.ErrorWithContext(uint16(hdr.Type))

	case SendVesting:
		r.RequireAtLeast(12)
		m := MsgSendVesting{Property: r.U32(), Amount: r.I64()}
		return m, r.ErrorWithContext(uint16(hdr.Type))

	case TradeOffer:
		r.RequireAtLeast(21)
		m := MsgTradeOffer{
			Property:      r.U32(),
			Amount:        r.I64(),
			AmountDesired: r.I64(),
			TimeLimit:     r.U8(),
			MinFee:        r.I64(),
		}
		if hdr.Version >= 1 && r.HasMore() {
			m.Subaction = r.U8()
			m.HasSubaction = true
		}
		return m, r.ErrorWithContext(uint16(hdr.Type))

	case AcceptOffer:
		r.RequireAtLeast(12)
		return MsgAcceptOffer{Property: r.U32(), Amount: r.I64()}, r.ErrorWithContext(uint16(hdr.Type))

	case MetaDExTrade:
		r.RequireAtLeast(20)
		m := MsgMetaDExTrade{
			Property:        r.U32(),
			Amount:          r.I64(),
			DesiredProperty: r.U32(),
			DesiredAmount:   r.I64(),
		}
		return m, r.ErrorWithContext(uint16(hdr.Type))

	case MetaDExCancelAtPrice:
		r.RequireAtLeast(20)
		m := MsgMetaDExCancelAtPrice{
			Property:        r.U32(),
			Amount:          r.I64(),
			DesiredProperty: r.U32(),
			DesiredAmount:   r.I64(),
		}
		return m, r.ErrorWithContext(uint16(hdr.Type))

	case MetaDExCancelPair:
		r.RequireAtLeast(8)
		return MsgMetaDExCancelPair{Property: r.U32(), DesiredProperty: r.U32()}, r.ErrorWithContext(uint16(hdr.Type))

	case MetaDExCancelEcosystem:
		r.RequireAtLeast(1)
		return MsgMetaDExCancelEcosystem{Ecosystem: r.U8()}, r.ErrorWithContext(uint16(hdr.Type))

	case ContractDexTrade:
		r.RequireAtLeast(25)
		m := MsgContractDexTrade{
			Amount:         r.I64(),
			EffectivePrice: r.U64(),
			Leverage:       r.U64(),
			TradingAction:  r.U8(),
		}
		m.Name = r.CString()
		return m, r.ErrorWithContext(uint16(hdr.Type))

	case ContractDexCancelEcosystem:
		r.RequireAtLeast(1)
		return MsgContractDexCancelEcosystem{Ecosystem: r.U8()}, r.ErrorWithContext(uint16(hdr.Type))

	case ContractDexCancelContract:
		r.RequireAtLeast(1)
		m := MsgContractDexCancelContract{Ecosystem: r.U8()}
		if r.HasMore() {
			m.ContractID = r.U32()
			m.HasContractID = true
		}
		return m, r.ErrorWithContext(uint16(hdr.Type))

	case ContractDexCancelByBlock:
		r.RequireAtLeast(2)
		return MsgContractDexCancelByBlock{Block: r.U8(), Idx: r.U8()}, r.ErrorWithContext(uint16(hdr.Type))

	case CreateContract:
		r.RequireAtLeast(17)
		m := MsgCreateContract{
			Ecosystem:         r.U8(),
			BlocksUntilExp:    r.U32(),
			NotionalSize:      r.U32(),
			Collateral:        r.U32(),
			MarginRequirement: r.U32(),
		}
		m.Name = r.CString()
		return m, r.ErrorWithContext(uint16(hdr.Type))

	case IssuanceFixed:
		r.RequireAtLeast(15)
		m := parseIssuanceFixed(r)
		return m, r.ErrorWithContext(uint16(hdr.Type))

	case IssuanceCrowdsale:
		r.RequireAtLeast(15)
		base := parseIssuanceFixed(r)
		m := MsgIssuanceCrowdsale{MsgIssuanceFixed: base}
		r.RequireAtLeast(21)
		m.Desired = r.U32()
		m.Rate = r.I64()
		m.Deadline = r.I64()
		m.EarlyBonus = r.U8()
		m.Percentage = r.U8()
		return m, r.ErrorWithContext(uint16(hdr.Type))

	case IssuanceManaged:
		r.RequireAtLeast(7)
		return parseIssuanceManaged(r), r.ErrorWithContext(uint16(hdr.Type))

	case Grant, Revoke:
		r.RequireAtLeast(12)
		m := MsgGrantRevoke{Property: r.U32(), Amount: r.I64()}
		m.Memo = r.CString()
		return m, r.ErrorWithContext(uint16(hdr.Type))

	case CreateOracleContract:
		r.RequireAtLeast(17)
		m := MsgCreateOracleContract{MsgCreateContract: MsgCreateContract{
			Ecosystem:         r.U8(),
			BlocksUntilExp:    r.U32(),
			NotionalSize:      r.U32(),
			Collateral:        r.U32(),
			MarginRequirement: r.U32(),
		}}
		m.Name = r.CString()
		return m, r.ErrorWithContext(uint16(hdr.Type))

	case ChangeOracleRef:
		r.RequireAtLeast(4)
		return MsgChangeOracleRef{ContractID: r.U32()}, r.ErrorWithContext(uint16(hdr.Type))

	case SetOracle:
		r.RequireAtLeast(20)
		return MsgSetOracle{OracleHigh: r.U64(), OracleLow: r.U64(), Property: r.U32()}, r.ErrorWithContext(uint16(hdr.Type))

	case OracleBackup:
		r.RequireAtLeast(4)
		return MsgOracleBackup{ContractID: r.U32()}, r.ErrorWithContext(uint16(hdr.Type))

	case CloseOracle:
		r.RequireAtLeast(4)
		return MsgCloseOracle{ContractID: r.U32()}, r.ErrorWithContext(uint16(hdr.Type))

	case CommitChannel:
		r.RequireAtLeast(12)
		return MsgCommitChannel{Property: r.U32(), Amount: r.I64()}, r.ErrorWithContext(uint16(hdr.Type))

	case WithdrawalFromChannel:
		r.RequireAtLeast(12)
		return MsgWithdrawalFromChannel{Property: r.U32(), Amount: r.I64()}, r.ErrorWithContext(uint16(hdr.Type))

	case InstantTrade:
		r.RequireAtLeast(25)
		m := MsgInstantTrade{
			Property: r.U32(),
			Amount:   r.I64(),
			Expiry:   r.U8(),
			Desired:  r.U32(),
		}
		m.DesiredAmount = r.I64()
		return m, r.ErrorWithContext(uint16(hdr.Type))

	case Transfer:
		r.RequireAtLeast(12)
		return MsgTransfer{Property: r.U32(), Amount: r.I64()}, r.ErrorWithContext(uint16(hdr.Type))

	case CreateChannel:
		r.RequireAtLeast(1)
		m := MsgCreateChannel{ExpiryBlocks: r.U8()}
		m.Address = r.CString()
		return m, r.ErrorWithContext(uint16(hdr.Type))

	case ContractInstant:
		r.RequireAtLeast(37)
		m := MsgContractInstant{
			Property: r.U32(),
			Amount:   r.I64(),
			Expiry:   r.U8(),
			Price:    r.U64(),
			Action:   r.U64(),
			Leverage: r.U64(),
		}
		return m, r.ErrorWithContext(uint16(hdr.Type))

	case NewIdRegistration:
		r.RequireAtLeast(4)
		m := MsgNewIdRegistration{Tokens: r.U8(), Ltc: r.U8(), Natives: r.U8(), Oracles: r.U8()}
		m.Website = r.CString()
		m.Company = r.CString()
		return m, r.ErrorWithContext(uint16(hdr.Type))

	case UpdateIdRegistration, DExPayment:
		return struct{}{}, nil

	case Freeze, Unfreeze:
		r.RequireAtLeast(33)
		m := MsgFreeze{Property: r.U32(), Amount: r.I64(), AddressVersion: r.U8()}
		m.AddressHash160 = r.Bytes20()
		return m, r.ErrorWithContext(uint16(hdr.Type))

	case Deactivation:
		r.RequireAtLeast(2)
		return MsgDeactivation{FeatureID: r.U16()}, r.ErrorWithContext(uint16(hdr.Type))

	case Activation:
		r.RequireAtLeast(2)
		m := MsgActivation{FeatureID: r.U16()}
		if r.HasMore() {
			r.RequireAtLeast(8)
			m.ActivationBlock = r.U32()
			m.MinClientVersion = r.U32()
			m.HasSchedule = true
		}
		return m, r.ErrorWithContext(uint16(hdr.Type))

	case Alert:
		r.RequireAtLeast(6)
		m := MsgAlert{AlertType: r.U16(), AlertExpiry: r.U32()}
		m.AlertText = r.CString()
		return m, r.ErrorWithContext(uint16(hdr.Type))

	default:
		return nil, fmt.Errorf("wire: unknown payload type %d", hdr.Type)
	}
}

func parseIssuanceFixed(r *Reader) MsgIssuanceFixed {
	m := MsgIssuanceFixed{
		Ecosystem: r.U8(),
		Type:      r.U16(),
		PrevID:    r.U32(),
	}
	m.Category = r.CString()
	m.Subcat = r.CString()
	m.Name = r.CString()
	m.URL = r.CString()
	m.Data = r.CString()
	m.Amount = r.I64()
	return m
}

func parseIssuanceManaged(r *Reader) MsgIssuanceManaged {
	m := MsgIssuanceManaged{
		Ecosystem: r.U8(),
		Type:      r.U16(),
		PrevID:    r.U32(),
	}
	m.Category = r.CString()
	m.Subcat = r.CString()
	m.Name = r.CString()
	m.URL = r.CString()
	m.Data = r.CString()
	return m
}
