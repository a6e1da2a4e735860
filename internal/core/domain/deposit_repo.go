package domain

import "context"

type DepositRepository interface {
	// Add persists a new deposit, failing with ErrAlreadyExists if the
	// outpoint is already registered.
	Add(ctx context.Context, deposit Deposit) error
	// Get returns the deposit for the outpoint, or ErrDepositInfoNotFound.
	Get(ctx context.Context, outpoint Outpoint) (*Deposit, error)
	Close()
}
