package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/bitvmbridge/bridged/internal/core/domain"
	"github.com/bitvmbridge/bridged/internal/core/ports"
	"github.com/bitvmbridge/bridged/pkg/actor"
	"github.com/bitvmbridge/bridged/pkg/musig"
	"github.com/bitvmbridge/bridged/pkg/txbuilder"
	log "github.com/sirupsen/logrus"
)

// Service is the verifier side of the bridge protocol: it re-derives the
// operator's transactions, validates what the operator claims, and releases
// partial signatures step by step.
type Service interface {
	NewDeposit(ctx context.Context, req NewDepositRequest) ([][]byte, error)
	OperatorKickoffsGenerated(ctx context.Context, req KickoffsRequest) error
	BurnTxsSigned(ctx context.Context, req BurnTxsRequest) ([][]byte, error)
	OperatorTakeTxsSigned(ctx context.Context, req TakeTxsRequest) (*MoveSigs, error)
	NewWithdrawalDirect(ctx context.Context, req WithdrawalRequest) ([]byte, error)
	DepositAddress(userPkHex string) (string, error)
}

type service struct {
	signer      *actor.Actor
	verifierPks []*btcec.PublicKey
	operatorPk  *btcec.PublicKey
	builder     *txbuilder.TransactionBuilder
	repoManager ports.RepoManager
	btcRpc      ports.BitcoinRpc
	net         *chaincfg.Params

	confirmationThreshold int64
}

// NewService wires the verifier. It fails when the signer's key is not part
// of the configured verifier set: a verifier signing outside the set would
// produce partial signatures nobody can aggregate.
func NewService(
	signer *actor.Actor,
	verifierPks []*btcec.PublicKey,
	operatorPk *btcec.PublicKey,
	repoManager ports.RepoManager,
	btcRpc ports.BitcoinRpc,
	net *chaincfg.Params,
	confirmationThreshold int64,
) (Service, error) {
	signerKey := schnorr.SerializePubKey(signer.PubKey)
	found := false
	for _, pk := range verifierPks {
		if bytes.Equal(signerKey, schnorr.SerializePubKey(pk)) {
			found = true
			break
		}
	}
	if !found {
		return nil, domain.ErrPublicKeyNotFound
	}

	return &service{
		signer:                signer,
		verifierPks:           verifierPks,
		operatorPk:            operatorPk,
		builder:               txbuilder.NewTransactionBuilder(verifierPks, net),
		repoManager:           repoManager,
		btcRpc:                btcRpc,
		net:                   net,
		confirmationThreshold: confirmationThreshold,
	}, nil
}

// DepositAddress derives the deposit address for a user's x-only key, so
// wallets can preview where to send the peg-in.
func (s *service) DepositAddress(userPkHex string) (string, error) {
	userPk, err := parseXOnlyKey(userPkHex)
	if err != nil {
		return "", err
	}
	addr, _, err := s.builder.DepositAddress(userPk)
	if err != nil {
		return "", err
	}
	return addr.String(), nil
}

func (s *service) NewDeposit(
	ctx context.Context, req NewDepositRequest,
) ([][]byte, error) {
	userPk, err := userKeyFromAddress(req.RecoveryAddress, s.net)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidDepositUtxo, err)
	}

	// Repeated calls for a known deposit return the cached public nonces,
	// never regenerate.
	if _, err := s.repoManager.Deposits().Get(ctx, req.DepositOutpoint); err == nil {
		nonces, err := s.repoManager.Nonces().GetByDeposit(ctx, req.DepositOutpoint)
		if err != nil {
			return nil, err
		}
		return pubNonces(nonces), nil
	} else if !errors.Is(err, domain.ErrDepositInfoNotFound) {
		return nil, err
	}

	if err := s.checkDepositUtxo(ctx, req.DepositOutpoint, userPk); err != nil {
		return nil, err
	}

	nonceSets := make([]domain.NonceSet, 0, txbuilder.NumNonces)
	for i := 0; i < txbuilder.NumNonces; i++ {
		pair, err := musig.NoncePair(s.signer.PubKey)
		if err != nil {
			return nil, fmt.Errorf("failed to generate nonce pair: %s", err)
		}
		nonceSets = append(nonceSets, domain.NonceSet{
			DepositOutpoint: req.DepositOutpoint,
			Index:           uint32(i),
			PubNonce:        pair.PubNonce[:],
			SecNonce:        pair.SecNonce[:],
		})
	}

	deposit := domain.Deposit{
		Outpoint:        req.DepositOutpoint,
		RecoveryAddress: req.RecoveryAddress,
		DestinationID:   req.DestinationID,
		CreatedAt:       time.Now().Unix(),
	}
	if err := s.repoManager.Transaction(ctx, func(ctx context.Context) error {
		if err := s.repoManager.Deposits().Add(ctx, deposit); err != nil {
			return err
		}
		return s.repoManager.Nonces().AddAll(ctx, nonceSets)
	}); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Lost the race against a concurrent request, read back the
			// first writer's nonces.
			stored, err := s.repoManager.Nonces().GetByDeposit(ctx, req.DepositOutpoint)
			if err != nil {
				return nil, err
			}
			return pubNonces(stored), nil
		}
		return nil, err
	}

	log.Debugf("registered deposit %s", req.DepositOutpoint)
	return pubNonces(nonceSets), nil
}

func (s *service) checkDepositUtxo(
	ctx context.Context, outpoint domain.Outpoint, userPk *btcec.PublicKey,
) error {
	status, err := s.btcRpc.GetTxOut(ctx, outpoint.Txid, outpoint.VOut)
	if err != nil {
		return fmt.Errorf("failed to fetch deposit utxo: %s", err)
	}
	if status.Spent {
		return fmt.Errorf("%w: utxo %s is spent or missing", domain.ErrInvalidDepositUtxo, outpoint)
	}
	if status.Confirmations < s.confirmationThreshold {
		return fmt.Errorf(
			"%w: %d of %d confirmations",
			domain.ErrInvalidDepositUtxo, status.Confirmations, s.confirmationThreshold,
		)
	}
	if status.Value != int64(txbuilder.BridgeAmount) {
		return fmt.Errorf(
			"%w: utxo pays %d, expected %d",
			domain.ErrInvalidDepositUtxo, status.Value, txbuilder.BridgeAmount,
		)
	}

	_, depositSpend, err := s.builder.DepositAddress(userPk)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrTaprootBuildFailed, err)
	}
	pkScript, err := depositSpend.PkScript()
	if err != nil {
		return err
	}
	if !bytes.Equal(status.PkScript, pkScript) {
		return fmt.Errorf("%w: utxo pays an unexpected script", domain.ErrInvalidDepositUtxo)
	}
	return nil
}

func (s *service) OperatorKickoffsGenerated(
	ctx context.Context, req KickoffsRequest,
) error {
	deposit, err := s.repoManager.Deposits().Get(ctx, req.DepositOutpoint)
	if err != nil {
		return err
	}

	if len(req.KickoffOutpoints) == 0 ||
		len(req.KickoffOutpoints) > txbuilder.NumNonces-2 {
		return fmt.Errorf(
			"%w: got %d kickoffs", domain.ErrInvalidKickoffUtxo, len(req.KickoffOutpoints),
		)
	}
	if len(req.OperatorSigs) != len(req.KickoffOutpoints) {
		return fmt.Errorf(
			"%w: %d signatures for %d kickoffs",
			domain.ErrInvalidKickoffUtxo, len(req.OperatorSigs), len(req.KickoffOutpoints),
		)
	}
	if len(req.AggNonces) != txbuilder.NumNonces {
		return fmt.Errorf(
			"%w: got %d aggregated nonces, need %d",
			domain.ErrAggNonceMissing, len(req.AggNonces), txbuilder.NumNonces,
		)
	}

	// Validate the whole batch before persisting anything: one bad kickoff
	// rejects the batch.
	kickoffs := make([]domain.Kickoff, 0, len(req.KickoffOutpoints))
	for i, outpoint := range req.KickoffOutpoints {
		status, err := s.btcRpc.GetTxOut(ctx, outpoint.Txid, outpoint.VOut)
		if err != nil {
			return fmt.Errorf("failed to fetch kickoff utxo: %s", err)
		}
		if status.Spent {
			return fmt.Errorf(
				"%w: utxo %s is spent or missing", domain.ErrInvalidKickoffUtxo, outpoint,
			)
		}
		if status.Value < int64(txbuilder.MinKickoffValue) {
			return fmt.Errorf(
				"%w: utxo %s pays %d, minimum is %d",
				domain.ErrInvalidKickoffUtxo, outpoint, status.Value,
				txbuilder.MinKickoffValue,
			)
		}

		digest, err := kickoffDigest(deposit.Outpoint, outpoint)
		if err != nil {
			return fmt.Errorf("%w: %s", domain.ErrInvalidKickoffUtxo, err)
		}
		if err := actor.VerifyDigest(
			req.OperatorSigs[i], digest[:], s.operatorPk,
		); err != nil {
			return fmt.Errorf("%w: kickoff %d: %s", domain.ErrSignatureVerificationFailed, i, err)
		}

		kickoffs = append(kickoffs, domain.Kickoff{
			DepositOutpoint: deposit.Outpoint,
			Index:           uint32(i),
			Outpoint:        outpoint,
			Amount:          uint64(status.Value),
		})
	}

	if err := s.repoManager.Transaction(ctx, func(ctx context.Context) error {
		if err := s.repoManager.Kickoffs().AddAll(ctx, kickoffs); err != nil {
			return err
		}
		return s.repoManager.Nonces().SetAggNonces(
			ctx, deposit.Outpoint, req.AggNonces,
		)
	}); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Lost the race or a retry: success only if the submitted batch
			// matches the one the first writer registered.
			stored, err := s.repoManager.Kickoffs().GetByDeposit(ctx, deposit.Outpoint)
			if err != nil {
				return err
			}
			if !sameKickoffBatch(stored, req.KickoffOutpoints) {
				return fmt.Errorf(
					"%w: deposit %s is bound to a different kickoff batch",
					domain.ErrInvalidKickoffUtxo, deposit.Outpoint,
				)
			}
			log.Debugf("kickoffs for deposit %s already registered", deposit.Outpoint)
			return nil
		}
		return err
	}

	log.Debugf(
		"registered %d kickoffs for deposit %s", len(kickoffs), deposit.Outpoint,
	)
	return nil
}

func (s *service) BurnTxsSigned(
	ctx context.Context, req BurnTxsRequest,
) ([][]byte, error) {
	deposit, err := s.repoManager.Deposits().Get(ctx, req.DepositOutpoint)
	if err != nil {
		return nil, err
	}
	kickoffs, err := s.repoManager.Kickoffs().GetByDeposit(ctx, deposit.Outpoint)
	if err != nil {
		return nil, err
	}
	if len(req.BurnSigs) != len(kickoffs) {
		return nil, fmt.Errorf(
			"%w: %d burn signatures for %d kickoffs",
			domain.ErrInvalidKickoffUtxo, len(req.BurnSigs), len(kickoffs),
		)
	}

	cached, err := s.repoManager.PartialSigs().GetByRole(
		ctx, deposit.Outpoint, domain.RoleOperatorTake,
	)
	if err != nil {
		return nil, err
	}
	if len(cached) == len(kickoffs) {
		return encodedSigs(cached), nil
	}

	_, bridgeOut, _, err := s.rebuildMove(deposit, kickoffs)
	if err != nil {
		return nil, err
	}
	multisig, err := s.builder.VerifierScript()
	if err != nil {
		return nil, err
	}

	partials := make([]domain.PartialSig, 0, len(kickoffs))
	for i, kickoff := range kickoffs {
		kickoffOut, err := outpointToWire(kickoff.Outpoint)
		if err != nil {
			return nil, err
		}
		chain, err := s.builder.OperatorTakeChain(
			s.operatorPk,
			bridgeOut, txbuilder.BridgeValue(),
			kickoffOut, btcutil.Amount(kickoff.Amount),
		)
		if err != nil {
			return nil, err
		}

		encoded, err := s.partialSign(
			ctx, deposit.Outpoint, uint32(i)+2,
			chain.TakeTx, 0, chain.TakePrevOuts, multisig,
		)
		if err != nil {
			return nil, err
		}
		partials = append(partials, domain.PartialSig{
			DepositOutpoint: deposit.Outpoint,
			Role:            domain.RoleOperatorTake,
			Index:           uint32(i),
			Sig:             encoded,
		})
	}

	if err := s.repoManager.Transaction(ctx, func(ctx context.Context) error {
		for _, partial := range partials {
			if err := s.repoManager.PartialSigs().Upsert(ctx, partial); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	log.Debugf(
		"signed %d operator take txs for deposit %s", len(partials), deposit.Outpoint,
	)
	return encodedSigs(partials), nil
}

func (s *service) OperatorTakeTxsSigned(
	ctx context.Context, req TakeTxsRequest,
) (*MoveSigs, error) {
	deposit, err := s.repoManager.Deposits().Get(ctx, req.DepositOutpoint)
	if err != nil {
		return nil, err
	}
	kickoffs, err := s.repoManager.Kickoffs().GetByDeposit(ctx, deposit.Outpoint)
	if err != nil {
		return nil, err
	}
	if len(req.OperatorTakeSigs) != len(kickoffs) {
		return nil, fmt.Errorf(
			"%w: %d signatures for %d kickoffs",
			domain.ErrSignatureVerificationFailed, len(req.OperatorTakeSigs), len(kickoffs),
		)
	}

	move, bridgeOut, depositPrevOut, err := s.rebuildMove(deposit, kickoffs)
	if err != nil {
		return nil, err
	}
	multisig, err := s.builder.VerifierScript()
	if err != nil {
		return nil, err
	}

	// The operator's take signatures must verify against the exact
	// transactions this verifier rebuilds.
	for i, kickoff := range kickoffs {
		kickoffOut, err := outpointToWire(kickoff.Outpoint)
		if err != nil {
			return nil, err
		}
		chain, err := s.builder.OperatorTakeChain(
			s.operatorPk,
			bridgeOut, txbuilder.BridgeValue(),
			kickoffOut, btcutil.Amount(kickoff.Amount),
		)
		if err != nil {
			return nil, err
		}
		digest, err := txbuilder.TapscriptSighash(
			chain.TakeTx, 0, chain.TakePrevOuts, multisig,
		)
		if err != nil {
			return nil, err
		}
		if err := actor.VerifyDigest(
			req.OperatorTakeSigs[i], digest, s.operatorPk,
		); err != nil {
			return nil, fmt.Errorf(
				"%w: take tx %d: %s", domain.ErrSignatureVerificationFailed, i, err,
			)
		}
	}

	commitSig, err := s.partialSign(
		ctx, deposit.Outpoint, 0,
		move.CommitTx, 0, []*wire.TxOut{depositPrevOut}, multisig,
	)
	if err != nil {
		return nil, err
	}
	revealSig, err := s.partialSign(
		ctx, deposit.Outpoint, 1,
		move.RevealTx, 0, []*wire.TxOut{move.CommitTx.TxOut[0]}, multisig,
	)
	if err != nil {
		return nil, err
	}

	if err := s.repoManager.Transaction(ctx, func(ctx context.Context) error {
		if err := s.repoManager.PartialSigs().Upsert(ctx, domain.PartialSig{
			DepositOutpoint: deposit.Outpoint,
			Role:            domain.RoleMoveCommit,
			Sig:             commitSig,
		}); err != nil {
			return err
		}
		return s.repoManager.PartialSigs().Upsert(ctx, domain.PartialSig{
			DepositOutpoint: deposit.Outpoint,
			Role:            domain.RoleMoveReveal,
			Sig:             revealSig,
		})
	}); err != nil {
		return nil, err
	}

	log.Debugf("signed move txs for deposit %s", deposit.Outpoint)
	return &MoveSigs{MoveCommit: commitSig, MoveReveal: revealSig}, nil
}

func (s *service) NewWithdrawalDirect(
	ctx context.Context, req WithdrawalRequest,
) ([]byte, error) {
	existing, err := s.repoManager.WithdrawalSigs().Get(ctx, req.Index)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.BridgeFundTxid == req.BridgeFundTxid {
			return existing.Sig, nil
		}
		return nil, fmt.Errorf(
			"%w: index %d is bound to txid %s",
			domain.ErrAlreadySpentWithdrawal, req.Index, existing.BridgeFundTxid,
		)
	}

	status, err := s.btcRpc.GetTxOut(ctx, req.BridgeFundTxid, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bridge fund utxo: %s", err)
	}
	if status.Spent {
		return nil, fmt.Errorf(
			"%w: bridge fund utxo %s:0 is spent or missing",
			domain.ErrInvalidDepositUtxo, req.BridgeFundTxid,
		)
	}

	destAddr, err := btcutil.DecodeAddress(req.DestinationAddress, s.net)
	if err != nil {
		return nil, fmt.Errorf("invalid destination address: %s", err)
	}
	destScript, err := txscript.PayToAddrScript(destAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid destination address: %s", err)
	}

	bridgeFund, err := outpointToWire(domain.Outpoint{Txid: req.BridgeFundTxid})
	if err != nil {
		return nil, err
	}
	tx, err := s.builder.WithdrawalTx(
		bridgeFund, btcutil.Amount(status.Value), destScript,
	)
	if err != nil {
		return nil, err
	}

	multisig, err := s.builder.VerifierScript()
	if err != nil {
		return nil, err
	}
	_, bridgeSpend, err := s.builder.BridgeAddress()
	if err != nil {
		return nil, err
	}
	bridgePkScript, err := bridgeSpend.PkScript()
	if err != nil {
		return nil, err
	}

	digest, err := txbuilder.TapscriptSighash(
		tx, 0, []*wire.TxOut{wire.NewTxOut(status.Value, bridgePkScript)}, multisig,
	)
	if err != nil {
		return nil, err
	}
	sig, err := s.signer.SignDigest(digest)
	if err != nil {
		return nil, fmt.Errorf("failed to sign withdrawal: %s", err)
	}

	record := domain.WithdrawalSig{
		Index:              req.Index,
		BridgeFundTxid:     req.BridgeFundTxid,
		DestinationAddress: req.DestinationAddress,
		Sig:                sig.Serialize(),
	}
	if err := s.repoManager.WithdrawalSigs().Add(ctx, record); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Concurrent claim won the index, apply the same binding rule.
			winner, err := s.repoManager.WithdrawalSigs().Get(ctx, req.Index)
			if err != nil {
				return nil, err
			}
			if winner != nil && winner.BridgeFundTxid == req.BridgeFundTxid {
				return winner.Sig, nil
			}
			return nil, fmt.Errorf(
				"%w: index %d", domain.ErrAlreadySpentWithdrawal, req.Index,
			)
		}
		return nil, err
	}

	log.Debugf("signed withdrawal %d for txid %s", req.Index, req.BridgeFundTxid)
	return record.Sig, nil
}

// rebuildMove reconstructs the move commit/reveal pair of a deposit and
// returns the bridge outpoint it creates plus the deposit's previous output.
func (s *service) rebuildMove(
	deposit *domain.Deposit, kickoffs []domain.Kickoff,
) (*txbuilder.MoveTxs, wire.OutPoint, *wire.TxOut, error) {
	userPk, err := userKeyFromAddress(deposit.RecoveryAddress, s.net)
	if err != nil {
		return nil, wire.OutPoint{}, nil, fmt.Errorf(
			"%w: %s", domain.ErrInvalidDepositUtxo, err,
		)
	}
	depositOut, err := outpointToWire(deposit.Outpoint)
	if err != nil {
		return nil, wire.OutPoint{}, nil, err
	}
	txids, err := kickoffTxids(kickoffs)
	if err != nil {
		return nil, wire.OutPoint{}, nil, err
	}

	move, err := s.builder.MoveTxs(depositOut, txids)
	if err != nil {
		return nil, wire.OutPoint{}, nil, err
	}

	_, depositSpend, err := s.builder.DepositAddress(userPk)
	if err != nil {
		return nil, wire.OutPoint{}, nil, err
	}
	depositPkScript, err := depositSpend.PkScript()
	if err != nil {
		return nil, wire.OutPoint{}, nil, err
	}

	bridgeOut := wire.OutPoint{Hash: move.RevealTx.TxHash(), Index: 0}
	depositPrevOut := wire.NewTxOut(int64(txbuilder.BridgeAmount), depositPkScript)
	return move, bridgeOut, depositPrevOut, nil
}

// partialSign computes this verifier's partial signature for one signing
// slot over the script-path sighash of the given input.
func (s *service) partialSign(
	ctx context.Context,
	deposit domain.Outpoint, slot uint32,
	tx *wire.MsgTx, idx int, prevOuts []*wire.TxOut, leafScript []byte,
) ([]byte, error) {
	nonce, err := s.repoManager.Nonces().Get(ctx, deposit, slot)
	if err != nil {
		return nil, err
	}
	if len(nonce.AggNonce) == 0 {
		return nil, fmt.Errorf(
			"%w: slot %d of deposit %s", domain.ErrAggNonceMissing, slot, deposit,
		)
	}

	digest, err := txbuilder.TapscriptSighash(tx, idx, prevOuts, leafScript)
	if err != nil {
		return nil, err
	}
	var msg [32]byte
	copy(msg[:], digest)

	_, encoded, err := musig.PartialSign(
		nonce.SecNonce, s.signer.PrivateKey(), nonce.AggNonce, s.verifierPks, msg,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute partial signature: %s", err)
	}
	return encoded, nil
}
