package derivbook

import (
	"fmt"

	"github.com/santoslabs/ledgercore/pkg/registry"
	"github.com/santoslabs/ledgercore/pkg/tally"
	"github.com/santoslabs/ledgercore/pkg/types"
)

// SetOracle implements OP_SET_ORACLE (§4.5.6): only the property's issuer
// may publish a fresh high/low quote on an OracleContract property.
func SetOracle(reg *registry.Registry, id types.AssetId, sender types.Address, high, low uint64, atBlock int64) error {
	prop, ok := reg.Get(id)
	if !ok {
		return fmt.Errorf("derivbook: unknown property %d", id)
	}
	if prop.Kind != registry.OracleContract {
		return fmt.Errorf("derivbook: property %d is not an oracle contract", id)
	}
	if prop.Issuer != sender {
		return fmt.Errorf("derivbook: only the issuer may set the oracle price")
	}
	if high < low {
		return fmt.Errorf("derivbook: oracle high must be >= low")
	}
	return reg.UpdateOracle(id, high, low, atBlock)
}

// ChangeOracleRef implements OP_CHANGE_ORACLE_REF: transfers issuance of
// an OracleContract property to a new address, mirroring UpdateIssuer but
// restricted to oracle contracts and gated on the current issuer.
func ChangeOracleRef(reg *registry.Registry, id types.AssetId, sender, newIssuer types.Address, atBlock types.Hash) error {
	prop, ok := reg.Get(id)
	if !ok {
		return fmt.Errorf("derivbook: unknown property %d", id)
	}
	if prop.Kind != registry.OracleContract {
		return fmt.Errorf("derivbook: property %d is not an oracle contract", id)
	}
	if prop.Issuer != sender {
		return fmt.Errorf("derivbook: only the issuer may change the oracle reference")
	}
	return reg.UpdateIssuer(id, newIssuer, atBlock)
}

// OracleBackup implements OP_ORACLE_BACKUP: only the contract_params'
// backup_address may take over as issuer, used when the original issuer
// goes dark.
func OracleBackup(reg *registry.Registry, id types.AssetId, sender types.Address, atBlock types.Hash) error {
	prop, ok := reg.Get(id)
	if !ok {
		return fmt.Errorf("derivbook: unknown property %d", id)
	}
	if prop.Kind != registry.OracleContract || prop.Contract == nil {
		return fmt.Errorf("derivbook: property %d is not an oracle contract", id)
	}
	if prop.Contract.BackupAddress != sender {
		return fmt.Errorf("derivbook: sender is not the registered backup address")
	}
	return reg.UpdateIssuer(id, sender, atBlock)
}

// CloseOracle implements OP_CLOSE_ORACLE: cancels every resting order and
// closes every open position on an OracleContract at its last published
// high/low midpoint, used when the issuer retires the market. Settlement
// price is (OracleHigh+OracleLow)/2 per spec.md §4.5.6.
func CloseOracle(book *Book, ledger *tally.Ledger, prices *EntryPriceStore, prop registry.Property, sender types.Address) ([]Cancelled, error) {
	if prop.Kind != registry.OracleContract || prop.Contract == nil {
		return nil, fmt.Errorf("derivbook: property %d is not an oracle contract", prop.ID)
	}
	if prop.Issuer != sender {
		return nil, fmt.Errorf("derivbook: only the issuer may close the oracle contract")
	}

	removed := book.RemoveAllMatching(func(o *Order) bool { return o.ContractID == prop.ID })
	cancelled := releaseAll(ledger, prop.Contract.CollateralAsset, removed)

	settlePrice := int64((prop.Contract.OracleHigh + prop.Contract.OracleLow) / 2)
	for _, addr := range ledger.AddressesForAsset(prop.ID) {
		size := NetSize(ledger, addr, prop.ID)
		if size == 0 {
			continue
		}
		// Positions may have been built from fills at different leverages;
		// leverage=1 is the release formula's most conservative (largest)
		// value, so ContractMargin never goes negative — Ledger.Update
		// simply refuses whatever exceeds what is actually reserved.
		ApplyFill(ledger, prices, addr, prop.ID, prop.Contract.CollateralAsset, -size, settlePrice, prop.Contract.MarginRequirementBps, 1)
	}
	return cancelled, nil
}
