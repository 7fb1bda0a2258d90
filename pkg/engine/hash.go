package engine

import (
	"crypto/sha256"
	"encoding/binary"
	"hash"
)

// ConsensusHash returns the SHA-256 consensus hash of live state at the
// engine's current height (§4.8): a canonical big-endian serialization of
// every non-zero tally row, every resting spot and contract offer, every
// registry property, every open channel, the active activation set, the
// frozen-pair set, and the fee cache — each sorted into the field order
// §4.8 specifies. Grounded on the teacher's perp.App.computeStateHash for
// the "feed a running sha256.Hash with fixed-width fields, no reflection"
// shape, generalized from one order book's levels to every sub-ledger
// this engine owns.
func (e *Engine) ConsensusHash() [32]byte {
	e.tallyLock.Lock()
	defer e.tallyLock.Unlock()
	return e.consensusHashLocked()
}

func (e *Engine) consensusHashLocked() [32]byte {
	h := sha256.New()

	for _, row := range e.Tally.Snapshot() {
		writeUint64(h, uint64(row.Asset))
		writeString(h, string(row.Address))
		for _, v := range row.Buckets {
			writeInt64(h, v)
		}
	}

	for _, o := range e.SpotBook.Snapshot() {
		writeUint64(h, uint64(o.PropertyForSale))
		writeUint64(h, uint64(o.PropertyDesired))
		writeInt64(h, o.AmountForSale)
		writeInt64(h, o.AmountDesired)
		writeInt64(h, o.AmountRemaining)
		writeInt64(h, o.Block)
		writeUint64(h, uint64(o.TxIndex))
		writeString(h, string(o.Sender))
	}

	for _, o := range e.DerivBook.Snapshot() {
		writeUint64(h, uint64(o.ContractID))
		writeUint64(h, uint64(o.Side))
		writeInt64(h, o.EffectivePrice)
		writeInt64(h, o.AmountRemaining)
		writeInt64(h, o.Leverage)
		writeInt64(h, o.Block)
		writeUint64(h, uint64(o.TxIndex))
		writeString(h, string(o.Sender))
	}

	for _, p := range e.Registry.Snapshot() {
		writeUint64(h, uint64(p.ID))
		writeUint64(h, uint64(p.Kind))
		writeString(h, string(p.Issuer))
		writeString(h, p.Name)
		writeInt64(h, p.NumTokens)
		if p.Contract != nil {
			writeInt64(h, p.Contract.NotionalSize)
			writeInt64(h, p.Contract.MarginRequirementBps)
			writeUint64(h, uint64(p.Contract.CollateralAsset))
			writeUint64(h, p.Contract.OracleHigh)
			writeUint64(h, p.Contract.OracleLow)
		}
	}

	for _, c := range e.Channels.Snapshot() {
		writeString(h, string(c.MultisigAddress))
		writeString(h, string(c.PartyA))
		writeString(h, string(c.PartyB))
		writeInt64(h, c.ExpiryBlock)
		writeInt64(h, c.LastExchangeBlock)
	}

	for _, rec := range e.Activations.ActiveFeatures() {
		writeUint64(h, uint64(rec.FeatureID))
		writeInt64(h, rec.ActivationBlock)
	}

	for _, fp := range e.Tally.FrozenPairs() {
		writeUint64(h, uint64(fp.Asset))
		writeString(h, string(fp.Address))
	}

	for _, row := range e.Fees.Snapshot() {
		writeUint64(h, uint64(row.Asset))
		writeInt64(h, row.Amount)
	}

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func writeUint64(h hash.Hash, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}

func writeInt64(h hash.Hash, v int64) {
	writeUint64(h, uint64(v))
}

func writeString(h hash.Hash, s string) {
	writeUint64(h, uint64(len(s)))
	h.Write([]byte(s))
}
