package actor_test

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/bitvmbridge/bridged/pkg/actor"
	"github.com/bitvmbridge/bridged/pkg/script"
	"github.com/bitvmbridge/bridged/pkg/txbuilder"
	"github.com/stretchr/testify/require"
)

func TestFromHex(t *testing.T) {
	prv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	a, err := actor.FromHex(
		hex.EncodeToString(prv.Serialize()), &chaincfg.RegressionNetParams,
	)
	require.NoError(t, err)
	require.Equal(t, prv.PubKey(), a.PubKey)
	require.NotEmpty(t, a.Address.String())

	_, err = actor.FromHex("zz", &chaincfg.RegressionNetParams)
	require.Error(t, err)
	_, err = actor.FromHex("deadbeef", &chaincfg.RegressionNetParams)
	require.Error(t, err)
}

func TestSignDigestRoundTrip(t *testing.T) {
	prv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	a, err := actor.New(prv, &chaincfg.RegressionNetParams)
	require.NoError(t, err)

	digest := chainhash.HashB([]byte("claim commitment"))
	sig, err := a.SignDigest(digest)
	require.NoError(t, err)

	require.NoError(t, actor.VerifyDigest(sig.Serialize(), digest, a.PubKey))

	other, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	require.Error(t, actor.VerifyDigest(sig.Serialize(), digest, other.PubKey()))
}

func TestSignTapscriptSpend(t *testing.T) {
	prv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	a, err := actor.New(prv, &chaincfg.RegressionNetParams)
	require.NoError(t, err)

	leaf, err := script.Checksig(a.PubKey)
	require.NoError(t, err)
	_, spend, err := txbuilder.TaprootAddress(
		[][]byte{leaf}, &chaincfg.RegressionNetParams,
	)
	require.NoError(t, err)
	pkScript, err := spend.PkScript()
	require.NoError(t, err)

	prevOut := wire.NewTxOut(10_000, pkScript)
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: chainhash.Hash{0x01}}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(9_000, pkScript))

	sig, err := a.SignTapscriptSpend(tx, 0, []*wire.TxOut{prevOut}, leaf)
	require.NoError(t, err)

	digest, err := txbuilder.TapscriptSighash(tx, 0, []*wire.TxOut{prevOut}, leaf)
	require.NoError(t, err)
	require.True(t, sig.Verify(digest, a.PubKey))

	// A different leaf binds to a different digest.
	otherLeaf, err := script.RelativeTimelock(a.PubKey, 10)
	require.NoError(t, err)
	otherDigest, err := txbuilder.TapscriptSighash(
		tx, 0, []*wire.TxOut{prevOut}, otherLeaf,
	)
	require.NoError(t, err)
	require.False(t, sig.Verify(otherDigest, a.PubKey))
}

func TestSignKeySpend(t *testing.T) {
	prv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	a, err := actor.New(prv, &chaincfg.RegressionNetParams)
	require.NoError(t, err)

	outputKey := txscript.ComputeTaprootKeyNoScript(a.PubKey)
	pkScript, err := txscript.PayToTaprootScript(outputKey)
	require.NoError(t, err)

	prevOut := wire.NewTxOut(10_000, pkScript)
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: chainhash.Hash{0x02}}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(9_000, pkScript))

	sig, err := a.SignKeySpend(tx, 0, []*wire.TxOut{prevOut}, nil)
	require.NoError(t, err)

	digest, err := txbuilder.KeySpendSighash(tx, 0, []*wire.TxOut{prevOut})
	require.NoError(t, err)
	require.True(t, sig.Verify(digest, outputKey))
}
