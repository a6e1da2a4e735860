package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/bitvmbridge/bridged/internal/core/domain"
	"github.com/bitvmbridge/bridged/internal/core/ports"
	"github.com/bitvmbridge/bridged/internal/infrastructure/blockchain/inmemory"
	badgerdb "github.com/bitvmbridge/bridged/internal/infrastructure/db/badger"
	"github.com/bitvmbridge/bridged/pkg/actor"
	"github.com/bitvmbridge/bridged/pkg/musig"
	"github.com/bitvmbridge/bridged/pkg/txbuilder"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	svc      Service
	repos    ports.RepoManager
	chain    *inmemory.BitcoinRpc
	signer   *actor.Actor
	operator *actor.Actor

	verifierPrvs []*btcec.PrivateKey
	verifierPks  []*btcec.PublicKey
	builder      *txbuilder.TransactionBuilder
	userPk       *btcec.PublicKey
	recoveryAddr string
	net          *chaincfg.Params
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	net := &chaincfg.RegressionNetParams

	prvs := make([]*btcec.PrivateKey, 0, 3)
	pks := make([]*btcec.PublicKey, 0, 3)
	for i := 0; i < 3; i++ {
		prv, err := btcec.NewPrivateKey()
		require.NoError(t, err)
		prvs = append(prvs, prv)
		pks = append(pks, prv.PubKey())
	}

	signer, err := actor.New(prvs[0], net)
	require.NoError(t, err)

	operatorPrv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	operator, err := actor.New(operatorPrv, net)
	require.NoError(t, err)

	userPrv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	userPk := userPrv.PubKey()
	recoveryAddr, err := btcutil.NewAddressTaproot(
		schnorr.SerializePubKey(userPk), net,
	)
	require.NoError(t, err)

	repos, err := badgerdb.NewRepoManager("", nil)
	require.NoError(t, err)
	t.Cleanup(repos.Close)

	chain := inmemory.NewBitcoinRpc()

	svc, err := NewService(signer, pks, operator.PubKey, repos, chain, net, 1)
	require.NoError(t, err)

	return &testEnv{
		svc:          svc,
		repos:        repos,
		chain:        chain,
		signer:       signer,
		operator:     operator,
		verifierPrvs: prvs,
		verifierPks:  pks,
		builder:      txbuilder.NewTransactionBuilder(pks, net),
		userPk:       userPk,
		recoveryAddr: recoveryAddr.String(),
		net:          net,
	}
}

func testTxid(seed byte) string {
	sum := sha256.Sum256([]byte{seed})
	hash, _ := chainhash.NewHash(sum[:])
	return hash.String()
}

// fundDeposit installs a valid deposit UTXO in the chain double and returns
// its outpoint.
func (e *testEnv) fundDeposit(t *testing.T, seed byte) domain.Outpoint {
	t.Helper()
	_, spend, err := e.builder.DepositAddress(e.userPk)
	require.NoError(t, err)
	pkScript, err := spend.PkScript()
	require.NoError(t, err)

	outpoint := domain.Outpoint{Txid: testTxid(seed), VOut: 0}
	e.chain.SetTxOut(outpoint.Txid, outpoint.VOut, ports.TxOutStatus{
		Confirmations: 6,
		Value:         int64(txbuilder.BridgeAmount),
		PkScript:      pkScript,
	})
	return outpoint
}

// fundKickoffs installs numKickoffs operator-funded UTXOs and returns their
// outpoints together with the operator's commitment signatures.
func (e *testEnv) fundKickoffs(
	t *testing.T, deposit domain.Outpoint, numKickoffs int,
) ([]domain.Outpoint, [][]byte) {
	t.Helper()
	outpoints := make([]domain.Outpoint, 0, numKickoffs)
	sigs := make([][]byte, 0, numKickoffs)
	for i := 0; i < numKickoffs; i++ {
		outpoint := domain.Outpoint{Txid: testTxid(0x40 + byte(i)), VOut: 0}
		e.chain.SetTxOut(outpoint.Txid, outpoint.VOut, ports.TxOutStatus{
			Confirmations: 3,
			Value:         int64(txbuilder.MinKickoffValue),
		})

		digest, err := kickoffDigest(deposit, outpoint)
		require.NoError(t, err)
		sig, err := e.operator.SignDigest(digest[:])
		require.NoError(t, err)

		outpoints = append(outpoints, outpoint)
		sigs = append(sigs, sig.Serialize())
	}
	return outpoints, sigs
}

// aggregateWithPeers simulates the two other verifiers contributing nonces
// and returns one aggregated nonce per signing slot.
func (e *testEnv) aggregateWithPeers(
	t *testing.T, myPubNonces [][]byte,
) [][]byte {
	t.Helper()
	aggNonces := make([][]byte, 0, len(myPubNonces))
	for _, pubNonce := range myPubNonces {
		all := [][]byte{pubNonce}
		for _, pk := range e.verifierPks[1:] {
			pair, err := musig.NoncePair(pk)
			require.NoError(t, err)
			all = append(all, pair.PubNonce[:])
		}
		agg, err := musig.AggregateNonces(all)
		require.NoError(t, err)
		aggNonces = append(aggNonces, agg)
	}
	return aggNonces
}

func TestNewServiceRejectsForeignSigner(t *testing.T) {
	env := newTestEnv(t)

	outsiderPrv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	outsider, err := actor.New(outsiderPrv, env.net)
	require.NoError(t, err)

	_, err = NewService(
		outsider, env.verifierPks, env.operator.PubKey,
		env.repos, env.chain, env.net, 1,
	)
	require.ErrorIs(t, err, domain.ErrPublicKeyNotFound)
}

func TestNewDepositReturnsSameNoncesOnRepeat(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	deposit := env.fundDeposit(t, 0x01)

	req := NewDepositRequest{
		DepositOutpoint: deposit,
		RecoveryAddress: env.recoveryAddr,
		DestinationID:   "dest-1",
	}
	first, err := env.svc.NewDeposit(ctx, req)
	require.NoError(t, err)
	require.Len(t, first, txbuilder.NumNonces)
	for _, nonce := range first {
		require.Len(t, nonce, musig.PubNonceSize)
	}

	second, err := env.svc.NewDeposit(ctx, req)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestNewDepositRejectsBadUtxo(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("missing or spent", func(t *testing.T) {
		_, err := env.svc.NewDeposit(ctx, NewDepositRequest{
			DepositOutpoint: domain.Outpoint{Txid: testTxid(0x02), VOut: 0},
			RecoveryAddress: env.recoveryAddr,
		})
		require.ErrorIs(t, err, domain.ErrInvalidDepositUtxo)
	})

	t.Run("wrong amount", func(t *testing.T) {
		deposit := env.fundDeposit(t, 0x03)
		env.chain.SetTxOut(deposit.Txid, deposit.VOut, ports.TxOutStatus{
			Confirmations: 6,
			Value:         int64(txbuilder.BridgeAmount) - 1,
		})
		_, err := env.svc.NewDeposit(ctx, NewDepositRequest{
			DepositOutpoint: deposit,
			RecoveryAddress: env.recoveryAddr,
		})
		require.ErrorIs(t, err, domain.ErrInvalidDepositUtxo)
	})

	t.Run("unconfirmed", func(t *testing.T) {
		deposit := env.fundDeposit(t, 0x04)
		env.chain.SetTxOut(deposit.Txid, deposit.VOut, ports.TxOutStatus{
			Confirmations: 0,
			Value:         int64(txbuilder.BridgeAmount),
		})
		_, err := env.svc.NewDeposit(ctx, NewDepositRequest{
			DepositOutpoint: deposit,
			RecoveryAddress: env.recoveryAddr,
		})
		require.ErrorIs(t, err, domain.ErrInvalidDepositUtxo)
	})

	t.Run("wrong script", func(t *testing.T) {
		outpoint := domain.Outpoint{Txid: testTxid(0x05), VOut: 0}
		env.chain.SetTxOut(outpoint.Txid, outpoint.VOut, ports.TxOutStatus{
			Confirmations: 6,
			Value:         int64(txbuilder.BridgeAmount),
			PkScript:      []byte{0x51},
		})
		_, err := env.svc.NewDeposit(ctx, NewDepositRequest{
			DepositOutpoint: outpoint,
			RecoveryAddress: env.recoveryAddr,
		})
		require.ErrorIs(t, err, domain.ErrInvalidDepositUtxo)
	})
}

func TestOperatorKickoffsValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	deposit := env.fundDeposit(t, 0x10)

	pubNonces, err := env.svc.NewDeposit(ctx, NewDepositRequest{
		DepositOutpoint: deposit,
		RecoveryAddress: env.recoveryAddr,
	})
	require.NoError(t, err)
	aggNonces := env.aggregateWithPeers(t, pubNonces)
	kickoffs, operatorSigs := env.fundKickoffs(t, deposit, 2)

	t.Run("signature count mismatch", func(t *testing.T) {
		err := env.svc.OperatorKickoffsGenerated(ctx, KickoffsRequest{
			DepositOutpoint:  deposit,
			KickoffOutpoints: kickoffs,
			OperatorSigs:     operatorSigs[:1],
			AggNonces:        aggNonces,
		})
		require.ErrorIs(t, err, domain.ErrInvalidKickoffUtxo)
	})

	t.Run("missing aggregated nonces", func(t *testing.T) {
		err := env.svc.OperatorKickoffsGenerated(ctx, KickoffsRequest{
			DepositOutpoint:  deposit,
			KickoffOutpoints: kickoffs,
			OperatorSigs:     operatorSigs,
			AggNonces:        aggNonces[:3],
		})
		require.ErrorIs(t, err, domain.ErrAggNonceMissing)
	})

	t.Run("kickoff below minimum value", func(t *testing.T) {
		env.chain.SetTxOut(kickoffs[1].Txid, kickoffs[1].VOut, ports.TxOutStatus{
			Confirmations: 3,
			Value:         int64(txbuilder.MinKickoffValue) - 1,
		})
		err := env.svc.OperatorKickoffsGenerated(ctx, KickoffsRequest{
			DepositOutpoint:  deposit,
			KickoffOutpoints: kickoffs,
			OperatorSigs:     operatorSigs,
			AggNonces:        aggNonces,
		})
		require.ErrorIs(t, err, domain.ErrInvalidKickoffUtxo)

		env.chain.SetTxOut(kickoffs[1].Txid, kickoffs[1].VOut, ports.TxOutStatus{
			Confirmations: 3,
			Value:         int64(txbuilder.MinKickoffValue),
		})
	})

	t.Run("bad operator signature", func(t *testing.T) {
		forged, err := env.signer.SignDigest(make([]byte, 32))
		require.NoError(t, err)
		err = env.svc.OperatorKickoffsGenerated(ctx, KickoffsRequest{
			DepositOutpoint:  deposit,
			KickoffOutpoints: kickoffs,
			OperatorSigs:     [][]byte{operatorSigs[0], forged.Serialize()},
			AggNonces:        aggNonces,
		})
		require.ErrorIs(t, err, domain.ErrSignatureVerificationFailed)
	})

	t.Run("valid batch is idempotent", func(t *testing.T) {
		req := KickoffsRequest{
			DepositOutpoint:  deposit,
			KickoffOutpoints: kickoffs,
			OperatorSigs:     operatorSigs,
			AggNonces:        aggNonces,
		}
		require.NoError(t, env.svc.OperatorKickoffsGenerated(ctx, req))
		require.NoError(t, env.svc.OperatorKickoffsGenerated(ctx, req))
	})

	t.Run("deposit cannot bind a second batch", func(t *testing.T) {
		otherOutpoints := make([]domain.Outpoint, 0, 2)
		otherSigs := make([][]byte, 0, 2)
		for i := 0; i < 2; i++ {
			outpoint := domain.Outpoint{Txid: testTxid(0x60 + byte(i)), VOut: 0}
			env.chain.SetTxOut(outpoint.Txid, outpoint.VOut, ports.TxOutStatus{
				Confirmations: 3,
				Value:         int64(txbuilder.MinKickoffValue),
			})
			digest, err := kickoffDigest(deposit, outpoint)
			require.NoError(t, err)
			sig, err := env.operator.SignDigest(digest[:])
			require.NoError(t, err)
			otherOutpoints = append(otherOutpoints, outpoint)
			otherSigs = append(otherSigs, sig.Serialize())
		}

		err := env.svc.OperatorKickoffsGenerated(ctx, KickoffsRequest{
			DepositOutpoint:  deposit,
			KickoffOutpoints: otherOutpoints,
			OperatorSigs:     otherSigs,
			AggNonces:        aggNonces,
		})
		require.ErrorIs(t, err, domain.ErrInvalidKickoffUtxo)

		stored, err := env.repos.Kickoffs().GetByDeposit(ctx, deposit)
		require.NoError(t, err)
		require.Len(t, stored, len(kickoffs))
		for i, kickoff := range stored {
			require.Equal(t, kickoffs[i], kickoff.Outpoint)
		}
	})
}

func TestSigningRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	deposit := env.fundDeposit(t, 0x20)

	pubNonces, err := env.svc.NewDeposit(ctx, NewDepositRequest{
		DepositOutpoint: deposit,
		RecoveryAddress: env.recoveryAddr,
		DestinationID:   "dest-roundtrip",
	})
	require.NoError(t, err)

	aggNonces := env.aggregateWithPeers(t, pubNonces)
	kickoffs, operatorSigs := env.fundKickoffs(t, deposit, 2)

	require.NoError(t, env.svc.OperatorKickoffsGenerated(ctx, KickoffsRequest{
		DepositOutpoint:  deposit,
		KickoffOutpoints: kickoffs,
		OperatorSigs:     operatorSigs,
		AggNonces:        aggNonces,
	}))

	// Burn signatures are acknowledged by count only, the chain rebuild does
	// the real validation.
	burnSigs := [][]byte{make([]byte, 64), make([]byte, 64)}
	takeSigs, err := env.svc.BurnTxsSigned(ctx, BurnTxsRequest{
		DepositOutpoint: deposit,
		BurnSigs:        burnSigs,
	})
	require.NoError(t, err)
	require.Len(t, takeSigs, 2)
	for _, sig := range takeSigs {
		require.Len(t, sig, musig.PartialSigSize)
	}

	// Repeat returns the cached signatures without a fresh signing round.
	again, err := env.svc.BurnTxsSigned(ctx, BurnTxsRequest{
		DepositOutpoint: deposit,
		BurnSigs:        burnSigs,
	})
	require.NoError(t, err)
	require.Equal(t, takeSigs, again)

	// Rebuild the take transactions the way the operator would and sign them.
	depositOut, err := outpointToWire(deposit)
	require.NoError(t, err)
	txids := make([]chainhash.Hash, 0, len(kickoffs))
	for _, k := range kickoffs {
		hash, err := chainhash.NewHashFromStr(k.Txid)
		require.NoError(t, err)
		txids = append(txids, *hash)
	}
	move, err := env.builder.MoveTxs(depositOut, txids)
	require.NoError(t, err)
	bridgeOut := wire.OutPoint{Hash: move.RevealTx.TxHash(), Index: 0}

	multisig, err := env.builder.VerifierScript()
	require.NoError(t, err)

	operatorTakeSigs := make([][]byte, 0, len(kickoffs))
	for _, kickoff := range kickoffs {
		kickoffOut, err := outpointToWire(kickoff)
		require.NoError(t, err)
		chain, err := env.builder.OperatorTakeChain(
			env.operator.PubKey,
			bridgeOut, txbuilder.BridgeValue(),
			kickoffOut, txbuilder.MinKickoffValue,
		)
		require.NoError(t, err)
		sig, err := env.operator.SignTapscriptSpend(
			chain.TakeTx, 0, chain.TakePrevOuts, multisig,
		)
		require.NoError(t, err)
		operatorTakeSigs = append(operatorTakeSigs, sig.Serialize())
	}

	moveSigs, err := env.svc.OperatorTakeTxsSigned(ctx, TakeTxsRequest{
		DepositOutpoint:  deposit,
		OperatorTakeSigs: operatorTakeSigs,
	})
	require.NoError(t, err)
	require.Len(t, moveSigs.MoveCommit, musig.PartialSigSize)
	require.Len(t, moveSigs.MoveReveal, musig.PartialSigSize)

	t.Run("tampered take signature is rejected", func(t *testing.T) {
		tampered := append([][]byte{}, operatorTakeSigs...)
		tampered[0] = tampered[1]
		_, err := env.svc.OperatorTakeTxsSigned(ctx, TakeTxsRequest{
			DepositOutpoint:  deposit,
			OperatorTakeSigs: tampered,
		})
		require.ErrorIs(t, err, domain.ErrSignatureVerificationFailed)
	})
}

func TestNewWithdrawalDirect(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, bridgeSpend, err := env.builder.BridgeAddress()
	require.NoError(t, err)
	bridgePkScript, err := bridgeSpend.PkScript()
	require.NoError(t, err)

	fundTxid := testTxid(0x30)
	env.chain.SetTxOut(fundTxid, 0, ports.TxOutStatus{
		Confirmations: 6,
		Value:         int64(txbuilder.BridgeValue()),
		PkScript:      bridgePkScript,
	})

	req := WithdrawalRequest{
		Index:              7,
		BridgeFundTxid:     fundTxid,
		DestinationAddress: env.signer.Address.String(),
	}
	sig, err := env.svc.NewWithdrawalDirect(ctx, req)
	require.NoError(t, err)
	require.Len(t, sig, 64)

	// The signature must verify over the withdrawal sighash this verifier
	// computed.
	destAddr, err := btcutil.DecodeAddress(req.DestinationAddress, env.net)
	require.NoError(t, err)
	destScript, err := txscript.PayToAddrScript(destAddr)
	require.NoError(t, err)
	bridgeFund, err := outpointToWire(domain.Outpoint{Txid: fundTxid})
	require.NoError(t, err)
	tx, err := env.builder.WithdrawalTx(
		bridgeFund, txbuilder.BridgeValue(), destScript,
	)
	require.NoError(t, err)
	multisig, err := env.builder.VerifierScript()
	require.NoError(t, err)
	digest, err := txbuilder.TapscriptSighash(
		tx, 0,
		[]*wire.TxOut{wire.NewTxOut(int64(txbuilder.BridgeValue()), bridgePkScript)},
		multisig,
	)
	require.NoError(t, err)
	require.NoError(t, actor.VerifyDigest(sig, digest, env.signer.PubKey))

	t.Run("same claim returns same signature", func(t *testing.T) {
		again, err := env.svc.NewWithdrawalDirect(ctx, req)
		require.NoError(t, err)
		require.Equal(t, sig, again)
	})

	t.Run("index cannot bind a second txid", func(t *testing.T) {
		otherTxid := testTxid(0x31)
		env.chain.SetTxOut(otherTxid, 0, ports.TxOutStatus{
			Confirmations: 6,
			Value:         int64(txbuilder.BridgeValue()),
			PkScript:      bridgePkScript,
		})
		_, err := env.svc.NewWithdrawalDirect(ctx, WithdrawalRequest{
			Index:              7,
			BridgeFundTxid:     otherTxid,
			DestinationAddress: env.signer.Address.String(),
		})
		require.ErrorIs(t, err, domain.ErrAlreadySpentWithdrawal)
	})

	t.Run("spent bridge fund is rejected", func(t *testing.T) {
		spentTxid := testTxid(0x32)
		_, err := env.svc.NewWithdrawalDirect(ctx, WithdrawalRequest{
			Index:              8,
			BridgeFundTxid:     spentTxid,
			DestinationAddress: env.signer.Address.String(),
		})
		require.ErrorIs(t, err, domain.ErrInvalidDepositUtxo)
	})
}

func TestDepositAddressPreview(t *testing.T) {
	env := newTestEnv(t)

	userPkHex := hex.EncodeToString(schnorr.SerializePubKey(env.userPk))
	addr, err := env.svc.DepositAddress(userPkHex)
	require.NoError(t, err)

	expected, _, err := env.builder.DepositAddress(env.userPk)
	require.NoError(t, err)
	require.Equal(t, expected.String(), addr)

	_, err = env.svc.DepositAddress("not-hex")
	require.Error(t, err)
}
