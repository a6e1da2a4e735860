package musig

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcec/v2/schnorr/musig2"
)

const (
	// PubNonceSize is the serialized size of a public nonce pair.
	PubNonceSize = musig2.PubNonceSize
	// SecNonceSize is the serialized size of a secret nonce pair.
	SecNonceSize = musig2.SecNonceSize
	// PartialSigSize is the serialized size of a partial signature scalar.
	PartialSigSize = 32
)

// NoncePair draws a fresh secret/public nonce pair bound to the signer's
// public key. Callers must persist the result before releasing the public
// half: regenerating a nonce for the same signing slot breaks MuSig2.
func NoncePair(signerPk *btcec.PublicKey) (*musig2.Nonces, error) {
	return musig2.GenNonces(musig2.WithPublicKey(signerPk))
}

// AggregateNonces folds every party's public nonce into the combined nonce
// used by all partial signatures.
func AggregateNonces(pubNonces [][]byte) ([]byte, error) {
	fixed := make([][musig2.PubNonceSize]byte, 0, len(pubNonces))
	for _, nonce := range pubNonces {
		if len(nonce) != musig2.PubNonceSize {
			return nil, fmt.Errorf("invalid public nonce length %d", len(nonce))
		}
		var buf [musig2.PubNonceSize]byte
		copy(buf[:], nonce)
		fixed = append(fixed, buf)
	}
	combined, err := musig2.AggregateNonces(fixed)
	if err != nil {
		return nil, err
	}
	return combined[:], nil
}

// AggregateKey returns the plain aggregated public key of the signer set.
// The set's configured order is the aggregation order for every party.
func AggregateKey(signers []*btcec.PublicKey) (*btcec.PublicKey, error) {
	agg, _, _, err := musig2.AggregateKeys(signers, false)
	if err != nil {
		return nil, err
	}
	return agg.FinalKey, nil
}

// PartialSign computes this signer's 32-byte partial signature over msg. The
// result is deterministic given the same inputs, so idempotent retries return
// identical values.
func PartialSign(
	secNonce []byte,
	prvKey *btcec.PrivateKey,
	combinedNonce []byte,
	signers []*btcec.PublicKey,
	msg [32]byte,
) (*musig2.PartialSignature, []byte, error) {
	if len(secNonce) != musig2.SecNonceSize {
		return nil, nil, fmt.Errorf("invalid secret nonce length %d", len(secNonce))
	}
	if len(combinedNonce) != musig2.PubNonceSize {
		return nil, nil, fmt.Errorf(
			"invalid combined nonce length %d", len(combinedNonce),
		)
	}

	var sec [musig2.SecNonceSize]byte
	copy(sec[:], secNonce)
	var combined [musig2.PubNonceSize]byte
	copy(combined[:], combinedNonce)

	partial, err := musig2.Sign(sec, prvKey, combined, signers, msg)
	if err != nil {
		return nil, nil, err
	}

	var encoded [PartialSigSize]byte
	partial.S.PutBytes(&encoded)
	return partial, encoded[:], nil
}

// CombinePartialSigs sums the partial signatures into the final BIP-340
// signature for the aggregated key.
func CombinePartialSigs(partials []*musig2.PartialSignature) (*schnorr.Signature, error) {
	if len(partials) == 0 {
		return nil, fmt.Errorf("no partial signatures to combine")
	}
	return musig2.CombineSigs(partials[0].R, partials), nil
}
