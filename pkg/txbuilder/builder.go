package txbuilder

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/bitvmbridge/bridged/pkg/script"
)

const (
	// BridgeAmount is the fixed peg-in denomination in satoshis.
	BridgeAmount = btcutil.Amount(100_000_000)
	// DustLimit is the value of every anchor output and of each connector
	// tree leaf.
	DustLimit = btcutil.Amount(330)
	// MinRelayFee is the flat fee budgeted by the move transactions.
	MinRelayFee = btcutil.Amount(500)
	// MinKickoffValue is the smallest kickoff UTXO accepted from the
	// operator.
	MinKickoffValue = btcutil.Amount(100_000)
	// UserTakesAfter is the CSV delay after which a depositor can reclaim a
	// deposit the verifiers never moved.
	UserTakesAfter = uint16(200)
	// OperatorTakesAfter is the CSV delay on connector tree nodes and on the
	// operator take holding output.
	OperatorTakesAfter = uint16(144)
	// NumNonces is the number of MuSig2 nonce pairs generated per deposit:
	// slots 0 and 1 are reserved for the move commit and reveal transactions,
	// slot i+2 co-signs the operator take chain of kickoff i.
	NumNonces = 10
)

// rbfSequence opts every non-timelocked input into replace-by-fee.
const rbfSequence = wire.MaxTxInSequenceNum - 2

// TransactionBuilder rebuilds the canonical protocol transactions for a fixed
// verifier set. All builders are pure: same inputs, same bytes, on every
// participant.
type TransactionBuilder struct {
	verifiers []*btcec.PublicKey
	net       *chaincfg.Params
}

func NewTransactionBuilder(
	verifiers []*btcec.PublicKey, net *chaincfg.Params,
) *TransactionBuilder {
	return &TransactionBuilder{verifiers: verifiers, net: net}
}

// VerifierScript is the N-of-N leaf shared by the deposit, commit and bridge
// addresses.
func (b *TransactionBuilder) VerifierScript() ([]byte, error) {
	return script.MultisigAll(b.verifiers)
}

// DepositAddress is Taproot(N-of-N, user CSV refund). The refund leaf lets
// the depositor reclaim the UTXO if the verifiers never sign the move.
func (b *TransactionBuilder) DepositAddress(
	userPk *btcec.PublicKey,
) (*btcutil.AddressTaproot, *SpendInfo, error) {
	multisig, err := b.VerifierScript()
	if err != nil {
		return nil, nil, err
	}
	refund, err := script.RelativeTimelock(userPk, UserTakesAfter)
	if err != nil {
		return nil, nil, err
	}
	return TaprootAddress([][]byte{multisig, refund}, b.net)
}

// BridgeAddress is Taproot(N-of-N): the custody address holding moved
// deposits until a withdrawal or an operator take spends them.
func (b *TransactionBuilder) BridgeAddress() (*btcutil.AddressTaproot, *SpendInfo, error) {
	multisig, err := b.VerifierScript()
	if err != nil {
		return nil, nil, err
	}
	return TaprootAddress([][]byte{multisig}, b.net)
}

// NewTx assembles a version-2, zero-locktime transaction.
func (b *TransactionBuilder) NewTx(ins []*wire.TxIn, outs []*wire.TxOut) *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	for _, in := range ins {
		tx.AddTxIn(in)
	}
	for _, out := range outs {
		tx.AddTxOut(out)
	}
	return tx
}

// TxIns returns RBF-signaling inputs for the given outpoints.
func (b *TransactionBuilder) TxIns(outpoints ...wire.OutPoint) []*wire.TxIn {
	ins := make([]*wire.TxIn, 0, len(outpoints))
	for _, op := range outpoints {
		in := wire.NewTxIn(&op, nil, nil)
		in.Sequence = rbfSequence
		ins = append(ins, in)
	}
	return ins
}

// TxInsWithSequence returns inputs whose sequence encodes a relative
// block-count timelock, for spends of CSV-gated leaves.
func (b *TransactionBuilder) TxInsWithSequence(
	blocks uint16, outpoints ...wire.OutPoint,
) []*wire.TxIn {
	ins := make([]*wire.TxIn, 0, len(outpoints))
	for _, op := range outpoints {
		in := wire.NewTxIn(&op, nil, nil)
		in.Sequence = uint32(blocks)
		ins = append(ins, in)
	}
	return ins
}

// TxOuts pairs amounts with output scripts.
func (b *TransactionBuilder) TxOuts(
	amounts []btcutil.Amount, pkScripts [][]byte,
) []*wire.TxOut {
	outs := make([]*wire.TxOut, 0, len(amounts))
	for i, amount := range amounts {
		outs = append(outs, wire.NewTxOut(int64(amount), pkScripts[i]))
	}
	return outs
}

// AnchorOutput is the anyone-can-spend dust output appended to every protocol
// transaction so it stays relayable and fee-bumpable via CPFP.
func (b *TransactionBuilder) AnchorOutput() *wire.TxOut {
	return wire.NewTxOut(int64(DustLimit), script.AnyoneCanSpend())
}

// MoveCommitValue is the value of the move commit output.
func MoveCommitValue() btcutil.Amount {
	return BridgeAmount - MinRelayFee - DustLimit
}

// BridgeValue is the value of the bridge UTXO created by the move reveal
// transaction.
func BridgeValue() btcutil.Amount {
	return MoveCommitValue() - MinRelayFee - DustLimit
}

// MoveTxs is the two-step move of a deposit into bridge custody. The commit
// output's tree holds the N-of-N leaf plus an inscription leaf binding the
// move to the operator's kickoff txids; the reveal spend publishes that
// binding on chain.
type MoveTxs struct {
	CommitTx *wire.MsgTx
	RevealTx *wire.MsgTx
	// CommitSpend describes the commit output's script tree. Leaf 0 is the
	// N-of-N multisig, leaf 1 the inscription.
	CommitSpend *SpendInfo
}

// MoveTxs builds the commit and reveal transactions moving the deposit UTXO
// to the bridge address.
func (b *TransactionBuilder) MoveTxs(
	deposit wire.OutPoint, kickoffTxids []chainhash.Hash,
) (*MoveTxs, error) {
	multisig, err := b.VerifierScript()
	if err != nil {
		return nil, err
	}

	chunks := make([][]byte, 0, len(kickoffTxids))
	for _, txid := range kickoffTxids {
		txid := txid
		chunks = append(chunks, txid[:])
	}
	inscription, err := script.WithInscription(multisig, chunks)
	if err != nil {
		return nil, err
	}

	_, commitSpend, err := TaprootAddress([][]byte{multisig, inscription}, b.net)
	if err != nil {
		return nil, err
	}
	commitPkScript, err := commitSpend.PkScript()
	if err != nil {
		return nil, err
	}

	commitTx := b.NewTx(
		b.TxIns(deposit),
		append(
			b.TxOuts([]btcutil.Amount{MoveCommitValue()}, [][]byte{commitPkScript}),
			b.AnchorOutput(),
		),
	)

	_, bridgeSpend, err := b.BridgeAddress()
	if err != nil {
		return nil, err
	}
	bridgePkScript, err := bridgeSpend.PkScript()
	if err != nil {
		return nil, err
	}

	revealTx := b.NewTx(
		b.TxIns(wire.OutPoint{Hash: commitTx.TxHash(), Index: 0}),
		append(
			b.TxOuts([]btcutil.Amount{BridgeValue()}, [][]byte{bridgePkScript}),
			b.AnchorOutput(),
		),
	)

	return &MoveTxs{
		CommitTx:    commitTx,
		RevealTx:    revealTx,
		CommitSpend: commitSpend,
	}, nil
}

// OperatorTakeChain is the two-step payout reimbursing the operator for a
// paid-out withdrawal: the kickoff spend parks the kickoff UTXO behind
// Taproot(N-of-N, operator CSV), then the take transaction sweeps the bridge
// UTXO together with that holding output to the operator. Both transactions
// are zero-fee, their anchors carry the fee via CPFP.
type OperatorTakeChain struct {
	KickoffSpendTx *wire.MsgTx
	TakeTx         *wire.MsgTx
	// TakePrevOuts are the previous outputs of TakeTx's inputs in input
	// order: the bridge UTXO, then the holding output.
	TakePrevOuts []*wire.TxOut
}

// OperatorTakeChain rebuilds the payout chain for one registered kickoff.
func (b *TransactionBuilder) OperatorTakeChain(
	operatorPk *btcec.PublicKey,
	bridgeOut wire.OutPoint, bridgeValue btcutil.Amount,
	kickoffOut wire.OutPoint, kickoffValue btcutil.Amount,
) (*OperatorTakeChain, error) {
	if kickoffValue < MinKickoffValue {
		return nil, fmt.Errorf(
			"kickoff value %d below minimum %d", kickoffValue, MinKickoffValue,
		)
	}

	multisig, err := b.VerifierScript()
	if err != nil {
		return nil, err
	}
	operatorTake, err := script.RelativeTimelock(operatorPk, OperatorTakesAfter)
	if err != nil {
		return nil, err
	}
	_, holdingSpend, err := TaprootAddress([][]byte{multisig, operatorTake}, b.net)
	if err != nil {
		return nil, err
	}
	holdingPkScript, err := holdingSpend.PkScript()
	if err != nil {
		return nil, err
	}

	holdingValue := kickoffValue - DustLimit
	kickoffSpendTx := b.NewTx(
		b.TxIns(kickoffOut),
		append(
			b.TxOuts([]btcutil.Amount{holdingValue}, [][]byte{holdingPkScript}),
			b.AnchorOutput(),
		),
	)

	operatorPkScript, err := txscript.PayToTaprootScript(
		txscript.ComputeTaprootKeyNoScript(operatorPk),
	)
	if err != nil {
		return nil, err
	}

	holdingOut := wire.OutPoint{Hash: kickoffSpendTx.TxHash(), Index: 0}
	takeValue := bridgeValue + holdingValue - DustLimit
	takeTx := b.NewTx(
		b.TxIns(bridgeOut, holdingOut),
		append(
			b.TxOuts([]btcutil.Amount{takeValue}, [][]byte{operatorPkScript}),
			b.AnchorOutput(),
		),
	)

	_, bridgeSpend, err := b.BridgeAddress()
	if err != nil {
		return nil, err
	}
	bridgePkScript, err := bridgeSpend.PkScript()
	if err != nil {
		return nil, err
	}

	return &OperatorTakeChain{
		KickoffSpendTx: kickoffSpendTx,
		TakeTx:         takeTx,
		TakePrevOuts: []*wire.TxOut{
			wire.NewTxOut(int64(bridgeValue), bridgePkScript),
			kickoffSpendTx.TxOut[0],
		},
	}, nil
}

// WithdrawalTx pays a bridge UTXO out to the user's destination script,
// keeping an anchor and budgeting the flat relay fee.
func (b *TransactionBuilder) WithdrawalTx(
	bridgeFund wire.OutPoint, bridgeValue btcutil.Amount, destPkScript []byte,
) (*wire.MsgTx, error) {
	payout := bridgeValue - MinRelayFee - DustLimit
	if payout <= DustLimit {
		return nil, fmt.Errorf(
			"bridge value %d cannot cover fee and dust", bridgeValue,
		)
	}
	return b.NewTx(
		b.TxIns(bridgeFund),
		append(
			b.TxOuts([]btcutil.Amount{payout}, [][]byte{destPkScript}),
			b.AnchorOutput(),
		),
	), nil
}

// InscriptionTxs is the operator-side commit/reveal pair publishing a batch
// of connector preimages on chain.
type InscriptionTxs struct {
	CommitTx *wire.MsgTx
	RevealTx *wire.MsgTx
	// RevealSpend describes the commit output tree whose single leaf is the
	// inscription script.
	RevealSpend *SpendInfo
}

// InscriptionTxs builds the preimage-publication pair: the commit transaction
// funds an output committing to the data, the reveal transaction spends it
// back to the publisher exposing the inscription in its witness.
func (b *TransactionBuilder) InscriptionTxs(
	publisherPk *btcec.PublicKey,
	funding wire.OutPoint, fundingValue btcutil.Amount,
	preimages [][]byte,
) (*InscriptionTxs, error) {
	base, err := script.Checksig(publisherPk)
	if err != nil {
		return nil, err
	}
	inscription, err := script.WithInscription(base, preimages)
	if err != nil {
		return nil, err
	}
	_, revealSpend, err := TaprootAddress([][]byte{inscription}, b.net)
	if err != nil {
		return nil, err
	}
	commitPkScript, err := revealSpend.PkScript()
	if err != nil {
		return nil, err
	}

	commitValue := 2 * DustLimit
	if fundingValue < commitValue+MinRelayFee {
		return nil, fmt.Errorf(
			"funding value %d cannot cover inscription commit", fundingValue,
		)
	}
	commitTx := b.NewTx(
		b.TxIns(funding),
		b.TxOuts([]btcutil.Amount{commitValue}, [][]byte{commitPkScript}),
	)

	publisherPkScript, err := txscript.PayToTaprootScript(
		txscript.ComputeTaprootKeyNoScript(publisherPk),
	)
	if err != nil {
		return nil, err
	}
	revealTx := b.NewTx(
		b.TxIns(wire.OutPoint{Hash: commitTx.TxHash(), Index: 0}),
		b.TxOuts([]btcutil.Amount{DustLimit}, [][]byte{publisherPkScript}),
	)

	return &InscriptionTxs{
		CommitTx:    commitTx,
		RevealTx:    revealTx,
		RevealSpend: revealSpend,
	}, nil
}
