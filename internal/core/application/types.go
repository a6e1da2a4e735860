package application

import "github.com/bitvmbridge/bridged/internal/core/domain"

// NewDepositRequest registers a user's deposit UTXO with this verifier.
type NewDepositRequest struct {
	DepositOutpoint domain.Outpoint
	// RecoveryAddress is the user's taproot address; its key gates the
	// timelocked refund leaf of the deposit address.
	RecoveryAddress string
	// DestinationID is the rollup-side peg-in destination, carried opaquely.
	DestinationID string
}

// KickoffsRequest delivers the operator's claim-funding UTXOs for a deposit,
// its signatures over the kickoff commitment digests, and the
// peer-aggregated nonces for every signing slot.
type KickoffsRequest struct {
	DepositOutpoint  domain.Outpoint
	KickoffOutpoints []domain.Outpoint
	// OperatorSigs[i] is a BIP-340 signature over the commitment digest of
	// KickoffOutpoints[i].
	OperatorSigs [][]byte
	// AggNonces holds one 66-byte aggregated nonce per signing slot.
	AggNonces [][]byte
}

// BurnTxsRequest asks for the operator-take partial signatures once the burn
// transactions are signed. BurnSigs[i] is the operator's signature over the
// burn of kickoff i.
type BurnTxsRequest struct {
	DepositOutpoint domain.Outpoint
	BurnSigs        [][]byte
}

// TakeTxsRequest delivers the operator's signatures over its take
// transactions and asks for the move partial signatures in exchange.
type TakeTxsRequest struct {
	DepositOutpoint  domain.Outpoint
	OperatorTakeSigs [][]byte
}

// MoveSigs is the pair of partial signatures releasing the move of a deposit
// into bridge custody.
type MoveSigs struct {
	MoveCommit []byte
	MoveReveal []byte
}

// WithdrawalRequest asks this verifier to sign the payout of a withdrawal.
type WithdrawalRequest struct {
	Index              uint32
	BridgeFundTxid     string
	DestinationAddress string
}
