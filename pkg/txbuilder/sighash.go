package txbuilder

import (
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// TapscriptSighash computes the BIP-341 script-path sighash of input idx,
// committing to the given leaf script. prevOuts must list the previous
// output of every input in input order.
func TapscriptSighash(
	tx *wire.MsgTx, idx int, prevOuts []*wire.TxOut, leafScript []byte,
) ([]byte, error) {
	if len(prevOuts) != len(tx.TxIn) {
		return nil, fmt.Errorf(
			"got %d prev outs for %d inputs", len(prevOuts), len(tx.TxIn),
		)
	}
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, in := range tx.TxIn {
		fetcher.AddPrevOut(in.PreviousOutPoint, prevOuts[i])
	}
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	return txscript.CalcTapscriptSignaturehash(
		sigHashes, txscript.SigHashDefault, tx, idx, fetcher,
		txscript.NewBaseTapLeaf(leafScript),
	)
}

// KeySpendSighash computes the BIP-341 key-path sighash of input idx.
func KeySpendSighash(
	tx *wire.MsgTx, idx int, prevOuts []*wire.TxOut,
) ([]byte, error) {
	if len(prevOuts) != len(tx.TxIn) {
		return nil, fmt.Errorf(
			"got %d prev outs for %d inputs", len(prevOuts), len(tx.TxIn),
		)
	}
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, in := range tx.TxIn {
		fetcher.AddPrevOut(in.PreviousOutPoint, prevOuts[i])
	}
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	return txscript.CalcTaprootSignatureHash(
		sigHashes, txscript.SigHashDefault, tx, idx, fetcher,
	)
}
