package domain

import "context"

type WithdrawalSigRepository interface {
	// Add binds a withdrawal index to a bridge fund txid and signature,
	// failing with ErrAlreadyExists if the index is already bound.
	Add(ctx context.Context, sig WithdrawalSig) error
	// Get returns the signature bound to the index, or nil when the index
	// is unclaimed.
	Get(ctx context.Context, index uint32) (*WithdrawalSig, error)
	Close()
}
