package txbuilder

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/bitvmbridge/bridged/pkg/script"
)

// CalcTreeAmount is the value a connector node at the given remaining depth
// must carry so every descendant leaf ends at exactly dust and every split
// transaction pays exactly fee: (dust+fee)*2^depth - fee.
func CalcTreeAmount(depth uint32, dust, fee btcutil.Amount) btcutil.Amount {
	return (dust+fee)*(1<<depth) - fee
}

// ConnectorTree is the per-period binary tree of claim UTXOs, laid out as an
// arena indexed by (level, index). Level 0 holds the root outpoint, level d
// the 2^d leaves. Txs[i][j] spends Outpoints[i][j] into its two children.
type ConnectorTree struct {
	Depth     uint32
	Outpoints [][]wire.OutPoint
	Txs       [][]*wire.MsgTx
}

// Leaves returns the outpoints at the deepest level.
func (t *ConnectorTree) Leaves() []wire.OutPoint {
	return t.Outpoints[t.Depth]
}

// numTreeNodes is 2^(depth+1) - 1, the length of the level-order hash list.
func numTreeNodes(depth uint32) int {
	return (1 << (depth + 1)) - 1
}

// ConnectorNodeAddress is Taproot(operator CSV leaf, preimage leaf): the
// operator claims the node by revealing the committed preimage, otherwise
// after the timelock any verifier reclaims it on the dispute path.
func (b *TransactionBuilder) ConnectorNodeAddress(
	operatorPk *btcec.PublicKey, hash [32]byte,
) (*SpendInfo, error) {
	timelock, err := script.RelativeTimelock(operatorPk, OperatorTakesAfter)
	if err != nil {
		return nil, err
	}
	preimage, err := script.PreimageReveal(hash)
	if err != nil {
		return nil, err
	}
	_, spend, err := TaprootAddress([][]byte{timelock, preimage}, b.net)
	if err != nil {
		return nil, err
	}
	return spend, nil
}

// ConnectorTreeTx splits one node UTXO into its two children. remaining is
// the depth left below the children, so each child carries
// CalcTreeAmount(remaining, dust, fee) and the split pays exactly fee.
func (b *TransactionBuilder) ConnectorTreeTx(
	node wire.OutPoint,
	leftPkScript, rightPkScript []byte,
	remaining uint32, dust, fee btcutil.Amount,
) *wire.MsgTx {
	childValue := CalcTreeAmount(remaining, dust, fee)
	return b.NewTx(
		b.TxInsWithSequence(OperatorTakesAfter, node),
		b.TxOuts(
			[]btcutil.Amount{childValue, childValue},
			[][]byte{leftPkScript, rightPkScript},
		),
	)
}

// BuildConnectorTree lays out the full tree below the funded root outpoint.
// hashes is the level-order list of per-node commitment hashes and must hold
// exactly 2^(depth+1)-1 entries; node (level, index) commits to
// hashes[2^level-1+index]. Depth 0 yields a single-node tree with no
// transactions.
func (b *TransactionBuilder) BuildConnectorTree(
	operatorPk *btcec.PublicKey,
	root wire.OutPoint,
	depth uint32,
	hashes [][32]byte,
	dust, fee btcutil.Amount,
) (*ConnectorTree, error) {
	if len(hashes) != numTreeNodes(depth) {
		return nil, fmt.Errorf(
			"connector tree of depth %d needs %d hashes, got %d",
			depth, numTreeNodes(depth), len(hashes),
		)
	}

	tree := &ConnectorTree{
		Depth:     depth,
		Outpoints: make([][]wire.OutPoint, depth+1),
		Txs:       make([][]*wire.MsgTx, depth),
	}
	tree.Outpoints[0] = []wire.OutPoint{root}

	for level := uint32(0); level < depth; level++ {
		width := 1 << level
		tree.Outpoints[level+1] = make([]wire.OutPoint, 0, 2*width)
		tree.Txs[level] = make([]*wire.MsgTx, 0, width)

		childBase := (1 << (level + 1)) - 1
		for idx := 0; idx < width; idx++ {
			leftSpend, err := b.ConnectorNodeAddress(
				operatorPk, hashes[childBase+2*idx],
			)
			if err != nil {
				return nil, err
			}
			leftPkScript, err := leftSpend.PkScript()
			if err != nil {
				return nil, err
			}
			rightSpend, err := b.ConnectorNodeAddress(
				operatorPk, hashes[childBase+2*idx+1],
			)
			if err != nil {
				return nil, err
			}
			rightPkScript, err := rightSpend.PkScript()
			if err != nil {
				return nil, err
			}

			tx := b.ConnectorTreeTx(
				tree.Outpoints[level][idx],
				leftPkScript, rightPkScript,
				depth-level-1, dust, fee,
			)
			txid := tx.TxHash()
			tree.Txs[level] = append(tree.Txs[level], tx)
			tree.Outpoints[level+1] = append(
				tree.Outpoints[level+1],
				wire.OutPoint{Hash: txid, Index: 0},
				wire.OutPoint{Hash: txid, Index: 1},
			)
		}
	}
	return tree, nil
}
