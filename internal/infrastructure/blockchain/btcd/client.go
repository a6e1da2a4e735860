package btcd

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	"github.com/bitvmbridge/bridged/internal/core/ports"
)

// client is the live implementation of ports.BitcoinRpc over the JSON-RPC
// interface of a bitcoind/btcd node. The underlying rpcclient is not
// context-aware, ctx is accepted to satisfy the port.
type client struct {
	rpc *rpcclient.Client
}

func NewBitcoinRpc(host, user, pass string) (ports.BitcoinRpc, error) {
	rpc, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         host,
		User:         user,
		Pass:         pass,
		HTTPPostMode: true,
		DisableTLS:   true,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bitcoin rpc: %s", err)
	}
	return &client{rpc: rpc}, nil
}

func (c *client) GetTxOut(
	_ context.Context, txid string, vout uint32,
) (*ports.TxOutStatus, error) {
	hash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return nil, fmt.Errorf("invalid txid %q: %s", txid, err)
	}
	res, err := c.rpc.GetTxOut(hash, vout, true)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return &ports.TxOutStatus{Spent: true}, nil
	}

	value, err := btcutil.NewAmount(res.Value)
	if err != nil {
		return nil, err
	}
	pkScript, err := hex.DecodeString(res.ScriptPubKey.Hex)
	if err != nil {
		return nil, fmt.Errorf("invalid utxo script: %s", err)
	}
	return &ports.TxOutStatus{
		Confirmations: res.Confirmations,
		Value:         int64(value),
		PkScript:      pkScript,
	}, nil
}

func (c *client) GetBlockHeight(_ context.Context) (uint32, error) {
	count, err := c.rpc.GetBlockCount()
	if err != nil {
		return 0, err
	}
	return uint32(count), nil
}

func (c *client) GetBlockHash(_ context.Context, height uint32) (string, error) {
	hash, err := c.rpc.GetBlockHash(int64(height))
	if err != nil {
		return "", err
	}
	return hash.String(), nil
}

func (c *client) EstimateFee(_ context.Context) (uint64, error) {
	mode := btcjson.EstimateModeConservative
	res, err := c.rpc.EstimateSmartFee(1, &mode)
	if err != nil {
		return 0, err
	}
	if res.FeeRate == nil {
		return 0, fmt.Errorf("fee estimation unavailable")
	}
	feeRate, err := btcutil.NewAmount(*res.FeeRate)
	if err != nil {
		return 0, err
	}
	// BTC/kvB to sat/vB.
	satPerVByte := uint64(feeRate) / 1000
	if satPerVByte == 0 {
		satPerVByte = 1
	}
	return satPerVByte, nil
}

func (c *client) BroadcastTx(
	_ context.Context, tx *wire.MsgTx,
) (string, error) {
	hash, err := c.rpc.SendRawTransaction(tx, false)
	if err != nil {
		return "", err
	}
	return hash.String(), nil
}
