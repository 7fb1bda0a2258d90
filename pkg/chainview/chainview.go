// Package chainview defines the base-chain read interface the engine
// consumes and an in-memory fake for tests/devnet, grounded on the
// teacher's consensus.BlockStore interface (a small consumed-not-owned
// read/write surface over external chain state).
package chainview

import (
	"fmt"
	"sync"

	"github.com/santoslabs/ledgercore/pkg/types"
)

type Network uint8

const (
	MainNet Network = iota
	TestNet
	RegTest
)

// TxOutput is one output of a base-chain transaction. IsNullData marks a
// data-carrier (OP_RETURN-equivalent) output; Data holds its push bytes.
// Address is the empty string for null-data outputs.
type TxOutput struct {
	Value      int64
	Address    types.Address
	IsNullData bool
	Data       []byte
}

// TxInput references a previous output by (hash, index); resolving its
// address requires a second ChainView.GetTx lookup on PrevTxHash.
type TxInput struct {
	PrevTxHash types.Hash
	PrevIndex  int
}

type Tx struct {
	Hash    types.Hash
	Inputs  []TxInput
	Outputs []TxOutput
}

// ChainView is the read-only base-chain surface the decoder and block
// pipeline consume. Implementations are expected to be backed by the
// host's own indexed chain state; the engine never writes through it.
type ChainView interface {
	GetBlockHash(height int64) (types.Hash, bool)
	GetBlockTime(height int64) (int64, bool)
	GetTx(hash types.Hash) (Tx, bool)
	Height() int64
	Network() Network
}

// Fake is an in-memory ChainView for tests and the devnet driver.
type Fake struct {
	mu         sync.RWMutex
	network    Network
	blockHash  map[int64]types.Hash
	blockTime  map[int64]int64
	txs        map[types.Hash]Tx
	height     int64
}

func NewFake(network Network) *Fake {
	return &Fake{
		network:   network,
		blockHash: make(map[int64]types.Hash),
		blockTime: make(map[int64]int64),
		txs:       make(map[types.Hash]Tx),
	}
}

func (f *Fake) PutBlock(height int64, hash types.Hash, blockTime int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockHash[height] = hash
	f.blockTime[height] = blockTime
	if height > f.height {
		f.height = height
	}
}

func (f *Fake) PutTx(tx Tx) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs[tx.Hash] = tx
}

func (f *Fake) GetBlockHash(height int64) (types.Hash, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	h, ok := f.blockHash[height]
	return h, ok
}

func (f *Fake) GetBlockTime(height int64) (int64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	t, ok := f.blockTime[height]
	return t, ok
}

func (f *Fake) GetTx(hash types.Hash) (Tx, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	tx, ok := f.txs[hash]
	return tx, ok
}

func (f *Fake) Height() int64 { return f.height }

func (f *Fake) Network() Network { return f.network }

func (n Network) String() string {
	switch n {
	case MainNet:
		return "MainNet"
	case TestNet:
		return "TestNet"
	case RegTest:
		return "RegTest"
	default:
		return fmt.Sprintf("Network(%d)", n)
	}
}
