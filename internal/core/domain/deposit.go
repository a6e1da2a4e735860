package domain

// Deposit is a user's locked UTXO and its recovery path. Immutable once
// nonces exist, never deleted.
type Deposit struct {
	Outpoint        Outpoint
	RecoveryAddress string
	// DestinationID is the peg-in destination identifier on the rollup
	// side, carried opaquely.
	DestinationID string
	CreatedAt     int64
}
