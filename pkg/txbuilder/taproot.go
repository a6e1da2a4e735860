package txbuilder

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/bits"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// ErrNoLeaves is returned when a taproot tree is requested for an empty
// script list.
var ErrNoLeaves = errors.New("taproot tree requires at least one script leaf")

// unspendableKeyHex is the BIP-341 nothing-up-my-sleeve point. Every address
// in the protocol commits to it as internal key so no key-path spend exists
// and all parties derive identical addresses offline.
const unspendableKeyHex = "50929b74c1a04954b78b4b6035e97a5e078a5a0f28ec96d547bfee9ace803ac0"

var unspendableKey = func() *btcec.PublicKey {
	buf, err := hex.DecodeString(unspendableKeyHex)
	if err != nil {
		panic(err)
	}
	key, err := schnorr.ParsePubKey(buf)
	if err != nil {
		panic(err)
	}
	return key
}()

// UnspendableKey returns the shared provably-unspendable internal key.
func UnspendableKey() *btcec.PublicKey {
	return unspendableKey
}

// SpendInfo carries everything needed to later spend one of the script paths
// of a taproot output built by TaprootAddress.
type SpendInfo struct {
	InternalKey *btcec.PublicKey
	OutputKey   *btcec.PublicKey
	MerkleRoot  chainhash.Hash
	Leaves      []txscript.TapLeaf

	proofs [][]byte
}

// PkScript returns the v1 witness program paying to the tweaked output key.
func (s *SpendInfo) PkScript() ([]byte, error) {
	return txscript.PayToTaprootScript(s.OutputKey)
}

// ControlBlock returns the control block revealing the leaf at the given
// index, with the inclusion proof recorded during tree construction.
func (s *SpendInfo) ControlBlock(leaf int) (*txscript.ControlBlock, error) {
	if leaf < 0 || leaf >= len(s.Leaves) {
		return nil, fmt.Errorf("leaf index %d out of range [0, %d)", leaf, len(s.Leaves))
	}
	return &txscript.ControlBlock{
		InternalKey: s.InternalKey,
		OutputKeyYIsOdd: s.OutputKey.SerializeCompressed()[0] ==
			secp256k1.PubKeyFormatCompressedOdd,
		LeafVersion:    txscript.BaseLeafVersion,
		InclusionProof: s.proofs[leaf],
	}, nil
}

// LeafDepths returns the depth assigned to each of n leaves: with
// m = ceil(log2 n) and k = 2^m - n, the first k leaves sit at depth m-1 and
// the remaining ones at depth m. This is the minimum-depth balanced tree, so
// witness sizes stay even across spend paths.
func LeafDepths(n int) []int {
	m := ceilLog2(n)
	k := (1 << m) - n
	depths := make([]int, n)
	for i := range depths {
		if i < k {
			depths[i] = m - 1
		} else {
			depths[i] = m
		}
	}
	return depths
}

func ceilLog2(n int) int {
	return bits.Len(uint(n - 1))
}

// TaprootAddress builds the taproot output committing to the given ordered
// script leaves and the shared unspendable internal key. The result is a pure
// function of its inputs: every participant reconstructs the same address and
// merkle root without exchanging transaction data.
func TaprootAddress(
	leaves [][]byte, net *chaincfg.Params,
) (*btcutil.AddressTaproot, *SpendInfo, error) {
	n := len(leaves)
	if n == 0 {
		return nil, nil, ErrNoLeaves
	}

	depths := LeafDepths(n)
	proofs := make([][]byte, n)

	type subtree struct {
		node   txscript.TapNode
		depth  int
		leaves []int
	}

	// Leaves arrive in non-decreasing depth order, so adjacent equal-depth
	// subtrees can be merged greedily until a single root remains.
	var stack []subtree
	for i, leafScript := range leaves {
		cur := subtree{
			node:   txscript.NewBaseTapLeaf(leafScript),
			depth:  depths[i],
			leaves: []int{i},
		}
		for len(stack) > 0 && stack[len(stack)-1].depth == cur.depth {
			left := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			leftHash, rightHash := left.node.TapHash(), cur.node.TapHash()
			for _, idx := range left.leaves {
				proofs[idx] = append(proofs[idx], rightHash[:]...)
			}
			for _, idx := range cur.leaves {
				proofs[idx] = append(proofs[idx], leftHash[:]...)
			}

			cur = subtree{
				node:   txscript.NewTapBranch(left.node, cur.node),
				depth:  cur.depth - 1,
				leaves: append(left.leaves, cur.leaves...),
			}
		}
		stack = append(stack, cur)
	}
	if len(stack) != 1 || stack[0].depth != 0 {
		return nil, nil, fmt.Errorf("taproot tree did not reduce to a single root")
	}

	root := stack[0].node.TapHash()
	outputKey := txscript.ComputeTaprootOutputKey(unspendableKey, root[:])

	addr, err := btcutil.NewAddressTaproot(schnorr.SerializePubKey(outputKey), net)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode taproot address: %s", err)
	}

	tapLeaves := make([]txscript.TapLeaf, n)
	for i, leafScript := range leaves {
		tapLeaves[i] = txscript.NewBaseTapLeaf(leafScript)
	}

	return addr, &SpendInfo{
		InternalKey: unspendableKey,
		OutputKey:   outputKey,
		MerkleRoot:  root,
		Leaves:      tapLeaves,
		proofs:      proofs,
	}, nil
}
