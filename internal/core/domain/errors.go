package domain

import "errors"

var (
	// ErrInvalidDepositUtxo means the deposit UTXO is unconfirmed, spent,
	// pays the wrong amount or the wrong script, or the recovery address
	// does not match the configured network.
	ErrInvalidDepositUtxo = errors.New("invalid deposit utxo")
	// ErrPublicKeyNotFound means the signer key is not part of the
	// configured verifier set. Fatal at startup.
	ErrPublicKeyNotFound = errors.New("signer public key not in verifier set")
	// ErrInvalidKickoffUtxo covers kickoff count mismatches and kickoff
	// UTXOs below the minimum claim value.
	ErrInvalidKickoffUtxo = errors.New("invalid kickoff utxo")
	// ErrNoncesNotFound means a signing step was requested before the nonce
	// round for that slot completed.
	ErrNoncesNotFound = errors.New("nonces not found")
	// ErrAggNonceMissing means the peer-aggregated nonce for a slot was
	// never delivered.
	ErrAggNonceMissing = errors.New("aggregated nonce missing")
	// ErrDepositInfoNotFound means no deposit is registered for the
	// requested outpoint.
	ErrDepositInfoNotFound = errors.New("deposit info not found")
	// ErrKickoffOutpointsNotFound means take-signing was requested before
	// kickoff registration.
	ErrKickoffOutpointsNotFound = errors.New("kickoff outpoints not found")
	// ErrSignatureVerificationFailed means a supplied signature does not
	// validate against the expected key and message.
	ErrSignatureVerificationFailed = errors.New("signature verification failed")
	// ErrAlreadySpentWithdrawal means a withdrawal index is already bound to
	// a different bridge fund txid.
	ErrAlreadySpentWithdrawal = errors.New("withdrawal already spent")
	// ErrTaprootBuildFailed means an address derivation was attempted with
	// an empty or invalid leaf set.
	ErrTaprootBuildFailed = errors.New("taproot build failed")
	// ErrAlreadyExists is returned by repositories on insert of an existing
	// key; callers must read back the first writer's value.
	ErrAlreadyExists = errors.New("record already exists")
)
