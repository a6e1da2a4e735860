package script

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
)

// MultisigAll returns a tapscript that requires a signature from every key in
// pks: a CHECKSIG/CHECKSIGADD chain terminated by <n> NUMEQUAL. Key order is
// part of the script identity, callers must pass a stable ordering.
func MultisigAll(pks []*btcec.PublicKey) ([]byte, error) {
	builder := txscript.NewScriptBuilder()
	for i, pk := range pks {
		builder.AddData(schnorr.SerializePubKey(pk))
		if i == 0 {
			builder.AddOp(txscript.OP_CHECKSIG)
		} else {
			builder.AddOp(txscript.OP_CHECKSIGADD)
		}
	}
	builder.AddInt64(int64(len(pks)))
	builder.AddOp(txscript.OP_NUMEQUAL)
	return builder.Script()
}

// TwoOfTwo is the operator-plus-one-verifier variant of MultisigAll.
func TwoOfTwo(operator, verifier *btcec.PublicKey) ([]byte, error) {
	return MultisigAll([]*btcec.PublicKey{operator, verifier})
}

// Checksig returns the single-key tapscript <pk> CHECKSIG.
func Checksig(pk *btcec.PublicKey) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddData(schnorr.SerializePubKey(pk)).
		AddOp(txscript.OP_CHECKSIG).
		Script()
}

// RelativeTimelock returns a tapscript spendable by pk after the input has
// aged the given number of blocks: <blocks> CSV DROP <pk> CHECKSIG.
func RelativeTimelock(pk *btcec.PublicKey, blocks uint16) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddInt64(int64(blocks)).
		AddOp(txscript.OP_CHECKSEQUENCEVERIFY).
		AddOp(txscript.OP_DROP).
		AddData(schnorr.SerializePubKey(pk)).
		AddOp(txscript.OP_CHECKSIG).
		Script()
}

// AbsoluteTimelock returns a tapscript spendable by pk from the given block
// height: <height> CLTV DROP <pk> CHECKSIG.
func AbsoluteTimelock(pk *btcec.PublicKey, height uint32) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddInt64(int64(height)).
		AddOp(txscript.OP_CHECKLOCKTIMEVERIFY).
		AddOp(txscript.OP_DROP).
		AddData(schnorr.SerializePubKey(pk)).
		AddOp(txscript.OP_CHECKSIG).
		Script()
}

// PreimageReveal returns the connector-leaf tapscript
// SHA256 <hash> EQUAL, spendable by whoever knows the 32-byte preimage.
func PreimageReveal(hash [32]byte) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_SHA256).
		AddData(hash[:]).
		AddOp(txscript.OP_EQUAL).
		Script()
}

// AnyoneCanSpend is the fixed OP_TRUE script used for anchor outputs.
func AnyoneCanSpend() []byte {
	return []byte{txscript.OP_TRUE}
}

// WithInscription appends an unexecuted OP_FALSE OP_IF ... OP_ENDIF envelope
// carrying the given data chunks to base, so the same leaf both commits to
// the data and keeps base as its spending condition. Chunks are limited to
// the standard push size.
func WithInscription(base []byte, chunks [][]byte) ([]byte, error) {
	builder := txscript.NewScriptBuilder().
		AddOp(txscript.OP_FALSE).
		AddOp(txscript.OP_IF)
	for _, chunk := range chunks {
		if len(chunk) > txscript.MaxScriptElementSize {
			return nil, fmt.Errorf(
				"inscription chunk of %d bytes exceeds max element size", len(chunk),
			)
		}
		builder.AddData(chunk)
	}
	builder.AddOp(txscript.OP_ENDIF)

	envelope, err := builder.Script()
	if err != nil {
		return nil, err
	}
	script := make([]byte, 0, len(base)+len(envelope))
	script = append(script, base...)
	return append(script, envelope...), nil
}
