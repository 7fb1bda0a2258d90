package storage

import (
	"github.com/santoslabs/ledgercore/pkg/registry"
	"github.com/santoslabs/ledgercore/pkg/types"
)

// SpInfoStore persists registry.Property by asset id, the Db* analogue of
// the original protocol's "SP" (smart property) table.
type SpInfoStore struct{ s *Store }

func (s *Store) SpInfo() SpInfoStore { return SpInfoStore{s: s} }

const (
	prefixSpInfo       = "sp:"
	prefixSpInfoHeight = "sph:"
)

func spInfoKey(id types.AssetId) []byte {
	return joinKey([]byte(prefixSpInfo), beUint64(uint64(id)))
}

func spInfoHeightKey(height int64, id types.AssetId) []byte {
	return joinKey([]byte(prefixSpInfoHeight), beHeight(height), beUint64(uint64(id)))
}

// Save persists prop, recording height so a later reorg below height can
// remove it via DeleteAboveBlock.
func (t SpInfoStore) Save(height int64, prop registry.Property) error {
	if err := t.s.set(spInfoKey(prop.ID), mustEncode(prop)); err != nil {
		return err
	}
	return t.s.set(spInfoHeightKey(height, prop.ID), nil)
}

func (t SpInfoStore) Load(id types.AssetId) (registry.Property, bool, error) {
	val, ok, err := t.s.get(spInfoKey(id))
	if err != nil || !ok {
		return registry.Property{}, false, err
	}
	var p registry.Property
	if err := decodeGob(val, &p); err != nil {
		return registry.Property{}, false, err
	}
	return p, true, nil
}

// List returns every persisted property, ascending by id.
func (t SpInfoStore) List() ([]registry.Property, error) {
	var out []registry.Property
	err := t.s.scan([]byte(prefixSpInfo), func(_, val []byte) bool {
		var p registry.Property
		if decodeGob(val, &p) == nil {
			out = append(out, p)
		}
		return true
	})
	return out, err
}

// DeleteAboveBlock removes every property first persisted strictly above
// height, the SpInfo half of §4.9's reorg rewind.
func (t SpInfoStore) DeleteAboveBlock(height int64) error {
	var indexKeys [][]byte
	var ids []types.AssetId
	err := t.s.scan([]byte(prefixSpInfoHeight), func(key, _ []byte) bool {
		rest := key[len(prefixSpInfoHeight):]
		h := int64(beDecodeUint64(rest[:8]))
		if h <= height {
			return true
		}
		id := types.AssetId(beDecodeUint64(rest[8:]))
		indexKeys = append(indexKeys, append([]byte(nil), key...))
		ids = append(ids, id)
		return true
	})
	if err != nil {
		return err
	}
	for i, id := range ids {
		if err := t.s.delete(indexKeys[i]); err != nil {
			return err
		}
		if err := t.s.delete(spInfoKey(id)); err != nil {
			return err
		}
	}
	return nil
}
