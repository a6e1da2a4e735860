package actor

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/bitvmbridge/bridged/pkg/txbuilder"
)

// Actor wraps a signing keypair and network parameters. The key is loaded
// once at startup and never mutated.
type Actor struct {
	prvKey  *btcec.PrivateKey
	PubKey  *btcec.PublicKey
	Address *btcutil.AddressTaproot

	net *chaincfg.Params
}

// New builds an actor around an existing private key. The address is the
// key-path-only P2TR output of the tweaked public key.
func New(prvKey *btcec.PrivateKey, net *chaincfg.Params) (*Actor, error) {
	outputKey := txscript.ComputeTaprootKeyNoScript(prvKey.PubKey())
	addr, err := btcutil.NewAddressTaproot(schnorr.SerializePubKey(outputKey), net)
	if err != nil {
		return nil, fmt.Errorf("failed to derive actor address: %s", err)
	}
	return &Actor{
		prvKey:  prvKey,
		PubKey:  prvKey.PubKey(),
		Address: addr,
		net:     net,
	}, nil
}

// FromHex builds an actor from a 32-byte hex-encoded secret key.
func FromHex(secKeyHex string, net *chaincfg.Params) (*Actor, error) {
	buf, err := hex.DecodeString(secKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid secret key: %s", err)
	}
	if len(buf) != btcec.PrivKeyBytesLen {
		return nil, fmt.Errorf("invalid secret key length %d", len(buf))
	}
	prvKey, _ := btcec.PrivKeyFromBytes(buf)
	return New(prvKey, net)
}

// PrivateKey exposes the raw key for MuSig2 partial signing.
func (a *Actor) PrivateKey() *btcec.PrivateKey {
	return a.prvKey
}

// SignDigest produces a plain BIP-340 signature over a precomputed digest.
func (a *Actor) SignDigest(digest []byte) (*schnorr.Signature, error) {
	return schnorr.Sign(a.prvKey, digest)
}

// VerifyDigest checks a BIP-340 signature over digest against pk.
func VerifyDigest(sig []byte, digest []byte, pk *btcec.PublicKey) error {
	parsed, err := schnorr.ParseSignature(sig)
	if err != nil {
		return fmt.Errorf("malformed signature: %s", err)
	}
	if !parsed.Verify(digest, pk) {
		return fmt.Errorf("signature does not verify")
	}
	return nil
}

// SignTapscriptSpend signs the script-path spend of input idx committing to
// the given leaf script.
func (a *Actor) SignTapscriptSpend(
	tx *wire.MsgTx, idx int, prevOuts []*wire.TxOut, leafScript []byte,
) (*schnorr.Signature, error) {
	digest, err := txbuilder.TapscriptSighash(tx, idx, prevOuts, leafScript)
	if err != nil {
		return nil, err
	}
	return schnorr.Sign(a.prvKey, digest)
}

// SignKeySpend signs the key-path spend of input idx with the taproot-tweaked
// key. merkleRoot is nil for key-path-only outputs.
func (a *Actor) SignKeySpend(
	tx *wire.MsgTx, idx int, prevOuts []*wire.TxOut, merkleRoot []byte,
) (*schnorr.Signature, error) {
	digest, err := txbuilder.KeySpendSighash(tx, idx, prevOuts)
	if err != nil {
		return nil, err
	}
	tweaked := txscript.TweakTaprootPrivKey(*a.prvKey, merkleRoot)
	return schnorr.Sign(tweaked, digest)
}
