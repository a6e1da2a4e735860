package inmemory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/wire"
	"github.com/bitvmbridge/bridged/internal/core/ports"
)

// BitcoinRpc is an in-memory chain double for tests: outputs, height and
// feerate are set explicitly, broadcasts are recorded.
type BitcoinRpc struct {
	lock    sync.RWMutex
	utxos   map[string]ports.TxOutStatus
	height  uint32
	feeRate uint64
	txs     []*wire.MsgTx
}

func NewBitcoinRpc() *BitcoinRpc {
	return &BitcoinRpc{
		utxos:   make(map[string]ports.TxOutStatus),
		height:  100,
		feeRate: 1,
	}
}

func utxoKey(txid string, vout uint32) string {
	return fmt.Sprintf("%s:%d", txid, vout)
}

// SetTxOut installs or replaces the status of an output.
func (b *BitcoinRpc) SetTxOut(txid string, vout uint32, status ports.TxOutStatus) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.utxos[utxoKey(txid, vout)] = status
}

// SetBlockHeight moves the fake tip.
func (b *BitcoinRpc) SetBlockHeight(height uint32) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.height = height
}

// Broadcasted returns every transaction submitted so far.
func (b *BitcoinRpc) Broadcasted() []*wire.MsgTx {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return append([]*wire.MsgTx{}, b.txs...)
}

func (b *BitcoinRpc) GetTxOut(
	_ context.Context, txid string, vout uint32,
) (*ports.TxOutStatus, error) {
	b.lock.RLock()
	defer b.lock.RUnlock()
	status, ok := b.utxos[utxoKey(txid, vout)]
	if !ok {
		return &ports.TxOutStatus{Spent: true}, nil
	}
	return &status, nil
}

func (b *BitcoinRpc) GetBlockHeight(_ context.Context) (uint32, error) {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.height, nil
}

func (b *BitcoinRpc) GetBlockHash(_ context.Context, height uint32) (string, error) {
	sum := sha256.Sum256([]byte{byte(height), byte(height >> 8), byte(height >> 16), byte(height >> 24)})
	return hex.EncodeToString(sum[:]), nil
}

func (b *BitcoinRpc) EstimateFee(_ context.Context) (uint64, error) {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.feeRate, nil
}

func (b *BitcoinRpc) BroadcastTx(
	_ context.Context, tx *wire.MsgTx,
) (string, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.txs = append(b.txs, tx)
	return tx.TxHash().String(), nil
}
