package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
)

// encodeGob/decodeGob are the teacher's own value codec
// (storage.encodeGob/decodeGob), reused unchanged — every stored value
// here is a plain Go struct, the same shape gob already handles for the
// teacher's Block/Certificate values.
func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}

// beHeight zero-extends height into an 8-byte big-endian key component so
// lexicographic key order matches numeric block order — the same trick
// the teacher's tradeKey uses with a zero-padded decimal timestamp, done
// here with fixed-width binary instead of a formatted string.
func beHeight(height int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(height))
	return b[:]
}

func beUint64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

func beDecodeUint64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// keyUpperBound returns the exclusive upper bound for a prefix scan,
// identical to the teacher's storage.keyUpperBound.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	for i := len(bound) - 1; i >= 0; i-- {
		bound[i]++
		if bound[i] != 0 {
			return bound
		}
	}
	return append(bound, 0xff)
}

func joinKey(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func mustEncode(v any) []byte {
	b, err := encodeGob(v)
	if err != nil {
		panic(fmt.Errorf("storage: encode: %w", err))
	}
	return b
}
