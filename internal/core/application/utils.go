package application

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/bitvmbridge/bridged/internal/core/domain"
)

func outpointToWire(o domain.Outpoint) (wire.OutPoint, error) {
	hash, err := chainhash.NewHashFromStr(o.Txid)
	if err != nil {
		return wire.OutPoint{}, fmt.Errorf("invalid txid %q: %s", o.Txid, err)
	}
	return wire.OutPoint{Hash: *hash, Index: o.VOut}, nil
}

// userKeyFromAddress extracts the x-only key of a taproot recovery address,
// rejecting addresses of other types or networks.
func userKeyFromAddress(
	addr string, net *chaincfg.Params,
) (*btcec.PublicKey, error) {
	decoded, err := btcutil.DecodeAddress(addr, net)
	if err != nil {
		return nil, fmt.Errorf("invalid recovery address: %s", err)
	}
	taproot, ok := decoded.(*btcutil.AddressTaproot)
	if !ok {
		return nil, fmt.Errorf("recovery address is not taproot")
	}
	if !taproot.IsForNet(net) {
		return nil, fmt.Errorf("recovery address is for the wrong network")
	}
	return schnorr.ParsePubKey(taproot.WitnessProgram())
}

func parseXOnlyKey(pkHex string) (*btcec.PublicKey, error) {
	buf, err := hex.DecodeString(pkHex)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %s", err)
	}
	return schnorr.ParsePubKey(buf)
}

// kickoffDigest binds a kickoff UTXO to its deposit:
// sha256(deposit txid || deposit vout || kickoff txid || kickoff vout), with
// big-endian vouts.
func kickoffDigest(deposit, kickoff domain.Outpoint) ([32]byte, error) {
	var digest [32]byte
	depositHash, err := chainhash.NewHashFromStr(deposit.Txid)
	if err != nil {
		return digest, fmt.Errorf("invalid deposit txid: %s", err)
	}
	kickoffHash, err := chainhash.NewHashFromStr(kickoff.Txid)
	if err != nil {
		return digest, fmt.Errorf("invalid kickoff txid: %s", err)
	}

	h := sha256.New()
	h.Write(depositHash[:])
	if err := binary.Write(h, binary.BigEndian, deposit.VOut); err != nil {
		return digest, err
	}
	h.Write(kickoffHash[:])
	if err := binary.Write(h, binary.BigEndian, kickoff.VOut); err != nil {
		return digest, err
	}
	copy(digest[:], h.Sum(nil))
	return digest, nil
}

// sameKickoffBatch reports whether the submitted outpoints match the stored
// batch, in order.
func sameKickoffBatch(stored []domain.Kickoff, submitted []domain.Outpoint) bool {
	if len(stored) != len(submitted) {
		return false
	}
	for i, kickoff := range stored {
		if kickoff.Outpoint != submitted[i] {
			return false
		}
	}
	return true
}

func kickoffTxids(kickoffs []domain.Kickoff) ([]chainhash.Hash, error) {
	txids := make([]chainhash.Hash, 0, len(kickoffs))
	for _, k := range kickoffs {
		hash, err := chainhash.NewHashFromStr(k.Outpoint.Txid)
		if err != nil {
			return nil, fmt.Errorf("invalid kickoff txid: %s", err)
		}
		txids = append(txids, *hash)
	}
	return txids, nil
}

func pubNonces(nonces []domain.NonceSet) [][]byte {
	out := make([][]byte, 0, len(nonces))
	for _, n := range nonces {
		out = append(out, n.PubNonce)
	}
	return out
}

func encodedSigs(sigs []domain.PartialSig) [][]byte {
	out := make([][]byte, 0, len(sigs))
	for _, s := range sigs {
		out = append(out, s.Sig)
	}
	return out
}
