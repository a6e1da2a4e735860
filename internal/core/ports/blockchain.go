package ports

import (
	"context"

	"github.com/btcsuite/btcd/wire"
)

// TxOutStatus is the chain view of one transaction output.
type TxOutStatus struct {
	// Spent is true when the output is missing from the UTXO set.
	Spent         bool
	Confirmations int64
	// Value in satoshis.
	Value    int64
	PkScript []byte
}

// BitcoinRpc is the capability contract towards a Bitcoin node or indexer.
// One implementation talks to a live node, another is an in-memory double
// for tests.
type BitcoinRpc interface {
	// GetTxOut returns the status of an output, with Spent set when the
	// output does not exist in the UTXO set.
	GetTxOut(ctx context.Context, txid string, vout uint32) (*TxOutStatus, error)
	GetBlockHeight(ctx context.Context) (uint32, error)
	GetBlockHash(ctx context.Context, height uint32) (string, error)
	// EstimateFee returns a feerate in sat/vB.
	EstimateFee(ctx context.Context) (uint64, error)
	// BroadcastTx submits a transaction and returns its txid.
	BroadcastTx(ctx context.Context, tx *wire.MsgTx) (string, error)
}
