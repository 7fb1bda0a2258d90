package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santoslabs/ledgercore/pkg/chainview"
	"github.com/santoslabs/ledgercore/pkg/types"
)

// fixtureOutput is one JSON-encoded chainview.TxOutput. Address is plain
// text (this engine never decodes base-chain script bytes); DataHex carries
// a null-data output's push bytes, hex-encoded for JSON transport.
type fixtureOutput struct {
	Value      int64  `json:"value"`
	Address    string `json:"address,omitempty"`
	IsNullData bool   `json:"is_null_data,omitempty"`
	DataHex    string `json:"data_hex,omitempty"`
}

type fixtureInput struct {
	PrevTxHash string `json:"prev_tx_hash"`
	PrevIndex  int    `json:"prev_index"`
}

type fixtureTx struct {
	Hash    string          `json:"hash"`
	Inputs  []fixtureInput  `json:"inputs"`
	Outputs []fixtureOutput `json:"outputs"`
}

type fixtureBlock struct {
	Height int64       `json:"height"`
	Time   int64       `json:"time"`
	Hash   string      `json:"hash"`
	Txs    []fixtureTx `json:"txs"`
}

// fixtureFile is the devnet tx feed: a handful of pre-funding transactions
// (so block txs have something to spend, the way a real wallet's prior
// coin selection would) followed by the blocks to replay in order.
type fixtureFile struct {
	Prefund []fixtureTx    `json:"prefund"`
	Blocks  []fixtureBlock `json:"blocks"`
}

func loadFixtures(path string) (*fixtureFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures %s: %w", path, err)
	}
	var f fixtureFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures %s: %w", path, err)
	}
	return &f, nil
}

func (tx fixtureTx) toChainViewTx() (chainview.Tx, error) {
	hash, err := types.HashFromHex(tx.Hash)
	if err != nil {
		return chainview.Tx{}, err
	}
	out := chainview.Tx{Hash: hash}
	for _, in := range tx.Inputs {
		prev, err := types.HashFromHex(in.PrevTxHash)
		if err != nil {
			return chainview.Tx{}, err
		}
		out.Inputs = append(out.Inputs, chainview.TxInput{PrevTxHash: prev, PrevIndex: in.PrevIndex})
	}
	for _, o := range tx.Outputs {
		var data []byte
		if o.DataHex != "" {
			data, err = hex.DecodeString(o.DataHex)
			if err != nil {
				return chainview.Tx{}, fmt.Errorf("tx %s: decode output data: %w", tx.Hash, err)
			}
		}
		out.Outputs = append(out.Outputs, chainview.TxOutput{
			Value:      o.Value,
			Address:    types.Address(o.Address),
			IsNullData: o.IsNullData,
			Data:       data,
		})
	}
	return out, nil
}

// populateChainView loads every prefund and block transaction into cv so
// the decoder's sender-resolution lookups (which walk tx.Inputs[0]
// .PrevTxHash back through ChainView.GetTx) succeed, and records each
// block's hash/time.
func populateChainView(cv *chainview.Fake, f *fixtureFile) error {
	for _, tx := range f.Prefund {
		cvtx, err := tx.toChainViewTx()
		if err != nil {
			return fmt.Errorf("prefund: %w", err)
		}
		cv.PutTx(cvtx)
	}
	for _, blk := range f.Blocks {
		hash, err := types.HashFromHex(blk.Hash)
		if err != nil {
			return fmt.Errorf("block %d: %w", blk.Height, err)
		}
		cv.PutBlock(blk.Height, hash, blk.Time)
		for _, tx := range blk.Txs {
			cvtx, err := tx.toChainViewTx()
			if err != nil {
				return fmt.Errorf("block %d: %w", blk.Height, err)
			}
			cv.PutTx(cvtx)
		}
	}
	return nil
}
