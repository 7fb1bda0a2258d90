// Package decoder classifies a base-chain transaction, extracts its
// marker-prefixed payload, and parses it into a DecodedTx. Grounded on
// the teacher's transaction.ParseTransaction (pkg/app/core/transaction/
// types.go) for the overall "parse then validate, wrap errors with
// context" shape, generalized from the teacher's JSON SignedTransaction
// envelope to spec.md §4.3's binary-payload-over-a-base-chain-tx model.
package decoder

import (
	"errors"
	"fmt"

	"github.com/santoslabs/ledgercore/pkg/chainview"
	"github.com/santoslabs/ledgercore/pkg/config"
	"github.com/santoslabs/ledgercore/pkg/types"
	"github.com/santoslabs/ledgercore/pkg/wire"
)

// ErrNoMarker means no output carried the marker prefix — not a protocol
// transaction, silently skipped by the block pipeline.
var ErrNoMarker = errors.New("decoder: no marker-prefixed output")

// ErrMissingInput means the first input's previous output could not be
// resolved through ChainView; the single tx aborts, the block continues.
var ErrMissingInput = errors.New("decoder: missing input")

// DecodedTx is the decoder's pure output — no ledger writes, fed directly
// to handler dispatch.
type DecodedTx struct {
	Hash      types.Hash
	Block     int64
	TxIndex   int
	BlockTime int64
	Sender    types.Address
	Reference types.Address
	FeePaid   int64
	// ReferenceValue sums every output paid to Reference in the base
	// chain's native coin — the actual settlement amount for a DExPayment,
	// which carries no payload of its own (§4.3's marker-only sentinel).
	ReferenceValue int64
	Header         wire.Header
	Msg            any
}

// Decode implements spec.md §4.3 steps 1-6.
func Decode(cv chainview.ChainView, cfg config.Wire, tx chainview.Tx, blockHeight int64, txIndex int, blockTime int64) (DecodedTx, error) {
	payload, err := extractPayload(cfg, tx)
	if err != nil {
		return DecodedTx{}, err
	}

	sender, err := resolveSender(cv, tx)
	if err != nil {
		return DecodedTx{}, err
	}

	reference := resolveReference(tx, sender)

	fee := feePaid(cv, tx)

	hdr, msg, err := wire.Parse(payload)
	if err != nil {
		return DecodedTx{}, fmt.Errorf("decoder: %w", err)
	}

	return DecodedTx{
		Hash:           tx.Hash,
		Block:          blockHeight,
		TxIndex:        txIndex,
		BlockTime:      blockTime,
		Sender:         sender,
		Reference:      reference,
		FeePaid:        fee,
		ReferenceValue: referenceValue(tx, reference),
		Header:         hdr,
		Msg:            msg,
	}, nil
}

// referenceValue sums every standard output paid to addr.
func referenceValue(tx chainview.Tx, addr types.Address) int64 {
	var sum int64
	for _, o := range tx.Outputs {
		if !o.IsNullData && o.Address == addr {
			sum += o.Value
		}
	}
	return sum
}

// extractPayload scans outputs for the marker prefix and concatenates the
// push-data bodies of every marker-prefixed null-data output, in output
// order, trimmed to the hard cap.
func extractPayload(cfg config.Wire, tx chainview.Tx) ([]byte, error) {
	marker := []byte(cfg.MarkerBytes)
	var payload []byte
	found := false

	for _, out := range tx.Outputs {
		if !out.IsNullData || len(out.Data) < len(marker) {
			continue
		}
		if string(out.Data[:len(marker)]) != string(marker) {
			continue
		}
		found = true
		payload = append(payload, out.Data[len(marker):]...)
	}

	if !found {
		return nil, ErrNoMarker
	}

	cap := cfg.MaxPackets * cfg.PacketSize
	if cap > 0 && len(payload) > cap {
		payload = payload[:cap]
	}
	return payload, nil
}

// resolveSender follows the first input's previous output through
// ChainView to find its destination address.
func resolveSender(cv chainview.ChainView, tx chainview.Tx) (types.Address, error) {
	if len(tx.Inputs) == 0 {
		return "", ErrMissingInput
	}
	in := tx.Inputs[0]
	prevTx, ok := cv.GetTx(in.PrevTxHash)
	if !ok || in.PrevIndex < 0 || in.PrevIndex >= len(prevTx.Outputs) {
		return "", ErrMissingInput
	}
	out := prevTx.Outputs[in.PrevIndex]
	if out.IsNullData || out.Address == "" {
		return "", ErrMissingInput
	}
	return out.Address, nil
}

// resolveReference finds the last non-sender standard-output address;
// falls back to sender if none exists.
func resolveReference(tx chainview.Tx, sender types.Address) types.Address {
	for i := len(tx.Outputs) - 1; i >= 0; i-- {
		out := tx.Outputs[i]
		if out.IsNullData || out.Address == "" || out.Address == sender {
			continue
		}
		return out.Address
	}
	return sender
}

// feePaid sums input values (resolved through their previous outputs)
// minus output values. Unresolvable inputs contribute zero rather than
// aborting decode — only sender resolution is fee-blocking per §4.3.
func feePaid(cv chainview.ChainView, tx chainview.Tx) int64 {
	var in, out int64
	for _, i := range tx.Inputs {
		prevTx, ok := cv.GetTx(i.PrevTxHash)
		if !ok || i.PrevIndex < 0 || i.PrevIndex >= len(prevTx.Outputs) {
			continue
		}
		in += prevTx.Outputs[i.PrevIndex].Value
	}
	for _, o := range tx.Outputs {
		out += o.Value
	}
	return in - out
}
