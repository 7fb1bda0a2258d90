package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/santoslabs/ledgercore/pkg/types"
)

// Registry is the thread-safe property store, generalized from the
// teacher's MarketRegistry (RWMutex map[string]*Market keyed by symbol) to
// a map keyed by asset id with per-ecosystem monotone id allocation.
type Registry struct {
	mu       sync.RWMutex
	props    map[types.AssetId]*Property
	nextMain int64
	nextTest int64
}

func New() *Registry {
	return &Registry{
		props:    make(map[types.AssetId]*Property),
		nextMain: int64(types.ReservedAssetIdCeiling),
		nextTest: 1<<31 + int64(types.ReservedAssetIdCeiling),
	}
}

// PeekNextId returns the id that would be assigned to the next property
// created in ecosystem, without consuming it.
func (r *Registry) PeekNextId(eco types.Ecosystem) (types.AssetId, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch eco {
	case types.EcosystemMain:
		return types.AssetId(r.nextMain), nil
	case types.EcosystemTest:
		return types.AssetId(r.nextTest), nil
	default:
		return 0, fmt.Errorf("registry: unknown ecosystem %d", eco)
	}
}

// Create validates entry, assigns it the next id for its ecosystem, and
// inserts it. Ids are monotone per ecosystem and never reused, including
// after a property is later closed (oracle contracts) — closure is a
// status change, not a deletion.
func (r *Registry) Create(entry Property) (types.AssetId, error) {
	if err := entry.Validate(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var id types.AssetId
	switch entry.Ecosystem {
	case types.EcosystemMain:
		id = types.AssetId(r.nextMain)
		r.nextMain++
	case types.EcosystemTest:
		id = types.AssetId(r.nextTest)
		r.nextTest++
	default:
		return 0, fmt.Errorf("registry: unknown ecosystem %d", entry.Ecosystem)
	}

	entry.ID = id
	r.props[id] = &entry
	return id, nil
}

// ContractByName finds the contract/oracle-contract property whose Name
// matches, the lookup ContractDexTrade uses (wire type 29 addresses
// contracts by name rather than by id).
func (r *Registry) ContractByName(name string) (Property, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.props {
		if p.IsContract() && p.Name == name {
			return *p, true
		}
	}
	return Property{}, false
}

// Get returns a copy of the property with the given id.
func (r *Registry) Get(id types.AssetId) (Property, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.props[id]
	if !ok {
		return Property{}, false
	}
	return *p, true
}

// Exists reports whether id names a property already created.
func (r *Registry) Exists(id types.AssetId) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.props[id]
	return ok
}

// UpdateIssuer changes the issuer of an existing property — the one
// metadata field spec.md §3 permits to change post-creation outside of
// the oracle-contract fields.
func (r *Registry) UpdateIssuer(id types.AssetId, newIssuer types.Address, updateBlock types.Hash) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.props[id]
	if !ok {
		return fmt.Errorf("registry: unknown property %d", id)
	}
	p.Issuer = newIssuer
	p.UpdateBlock = updateBlock
	return nil
}

// UpdateOracle applies a fresh high/low quote to an OracleContract
// property. Any other kind rejects the update; oracle fields are the only
// contract_params allowed to change after creation.
func (r *Registry) UpdateOracle(id types.AssetId, high, low uint64, atBlock int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.props[id]
	if !ok {
		return fmt.Errorf("registry: unknown property %d", id)
	}
	if p.Kind != OracleContract || p.Contract == nil {
		return fmt.Errorf("registry: property %d is not an oracle contract", id)
	}
	p.Contract.OracleHigh = high
	p.Contract.OracleLow = low
	p.Contract.OracleLastUpdate = atBlock
	return nil
}

// GrantTokens increases NumTokens for a Managed property. Caller is
// responsible for crediting the matching tally bucket in the same
// handler transaction.
func (r *Registry) GrantTokens(id types.AssetId, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("registry: grant amount must be positive")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.props[id]
	if !ok {
		return fmt.Errorf("registry: unknown property %d", id)
	}
	if !p.SupportsGrantRevoke() {
		return fmt.Errorf("registry: property %d is not managed", id)
	}
	p.NumTokens += amount
	return nil
}

// RevokeTokens decreases NumTokens for a Managed property; refuses to go
// negative.
func (r *Registry) RevokeTokens(id types.AssetId, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("registry: revoke amount must be positive")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.props[id]
	if !ok {
		return fmt.Errorf("registry: unknown property %d", id)
	}
	if !p.SupportsGrantRevoke() {
		return fmt.Errorf("registry: property %d is not managed", id)
	}
	if p.NumTokens < amount {
		return fmt.Errorf("registry: revoke %d exceeds outstanding %d", amount, p.NumTokens)
	}
	p.NumTokens -= amount
	return nil
}

// ListContracts returns every Contract/OracleContract property sorted by
// id, used by the derivatives book to enumerate markets at startup.
func (r *Registry) ListContracts() []Property {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Property
	for _, p := range r.props {
		if p.IsContract() {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Restore replaces every property wholesale at its original id — the
// registry half of engine.ImportSnapshot — and re-seeds the per-ecosystem
// next-id counters past the highest restored id in each ecosystem, so a
// property created after the reload never collides with a restored one.
func (r *Registry) Restore(props []Property) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.props = make(map[types.AssetId]*Property, len(props))
	nextMain := int64(types.ReservedAssetIdCeiling)
	nextTest := int64(1<<31) + int64(types.ReservedAssetIdCeiling)
	for i := range props {
		p := props[i]
		r.props[p.ID] = &p
		switch types.EcosystemOf(p.ID) {
		case types.EcosystemMain:
			if next := int64(p.ID) + 1; next > nextMain {
				nextMain = next
			}
		case types.EcosystemTest:
			if next := int64(p.ID) + 1; next > nextTest {
				nextTest = next
			}
		}
	}
	r.nextMain = nextMain
	r.nextTest = nextTest
}

// Snapshot returns every property sorted by id, for the consensus hash.
func (r *Registry) Snapshot() []Property {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Property, 0, len(r.props))
	for _, p := range r.props {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
