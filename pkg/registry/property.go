// Package registry implements the property (asset) metadata store:
// divisibility, issuer, and — for contract properties — the parameters
// consumed by the derivatives book. Grounded on the teacher's
// market.Market / market.MarketRegistry, generalized from "trading venue
// config" to "asset metadata" and extended with the property-kind variants
// spec.md requires.
package registry

import (
	"fmt"

	"github.com/santoslabs/ledgercore/pkg/types"
)

// Kind is the tagged variant of a property. Using a tagged struct rather
// than an inheritance hierarchy, per design-note §9 ("Polymorphism").
type Kind int

const (
	Fixed Kind = iota
	Managed
	Crowdsale
	Contract
	OracleContract
	Pegged
	Vesting
)

func (k Kind) String() string {
	switch k {
	case Fixed:
		return "Fixed"
	case Managed:
		return "Managed"
	case Crowdsale:
		return "Crowdsale"
	case Contract:
		return "Contract"
	case OracleContract:
		return "OracleContract"
	case Pegged:
		return "Pegged"
	case Vesting:
		return "Vesting"
	default:
		return "Unknown"
	}
}

// ContractParams holds the parameters unique to Contract/OracleContract
// properties, generalized from the teacher's Market basis-point/leverage
// fields.
type ContractParams struct {
	NotionalSize         int64
	MarginRequirementBps int64 // basis points, e.g. 200 = 2%
	CollateralAsset      types.AssetId
	BlocksUntilExpiration int64
	InitBlock            int64
	OracleHigh           uint64
	OracleLow            uint64
	OracleLastUpdate     int64
	BackupAddress        types.Address
}

// Property is one registry entry.
type Property struct {
	ID               types.AssetId
	Ecosystem        types.Ecosystem
	Kind             Kind
	Divisible        bool
	Issuer           types.Address
	Name             string
	CreationBlock    types.Hash
	UpdateBlock      types.Hash
	NumTokens        int64 // Fixed only
	VestingMarker    bool  // Vesting attribute
	Contract         *ContractParams
}

// Validate checks the creation-time invariants of a property.
func (p *Property) Validate() error {
	if p.Issuer == "" {
		return fmt.Errorf("registry: issuer cannot be empty")
	}
	if p.Kind == Fixed && p.NumTokens <= 0 {
		return fmt.Errorf("registry: fixed property must specify a positive num_tokens")
	}
	if (p.Kind == Contract || p.Kind == OracleContract) && p.Contract == nil {
		return fmt.Errorf("registry: contract property requires contract_params")
	}
	if p.Contract != nil {
		if p.Contract.NotionalSize <= 0 {
			return fmt.Errorf("registry: notional_size must be positive")
		}
		if p.Contract.MarginRequirementBps <= 0 {
			return fmt.Errorf("registry: margin_requirement must be positive")
		}
		if p.Contract.BlocksUntilExpiration <= 0 {
			return fmt.Errorf("registry: blocks_until_expiration must be positive")
		}
	}
	return nil
}

// IsContract reports whether the property participates in the derivatives
// book.
func (p *Property) IsContract() bool {
	return p.Kind == Contract || p.Kind == OracleContract
}

// SupportsGrantRevoke reports whether the property is Managed (the only
// kind that allows grant/revoke of supply).
func (p *Property) SupportsGrantRevoke() bool {
	return p.Kind == Managed
}
