package domain

import (
	"context"
	"fmt"
)

func nonceKey(deposit Outpoint, index uint32) string {
	return fmt.Sprintf("%s/%d", deposit, index)
}

type NonceRepository interface {
	// AddAll persists a freshly generated batch of nonce sets, failing with
	// ErrAlreadyExists if any slot was already written. Write-once: a slot
	// is never overwritten.
	AddAll(ctx context.Context, nonces []NonceSet) error
	// GetByDeposit returns all nonce sets of a deposit ordered by slot
	// index, or ErrNoncesNotFound when none exist.
	GetByDeposit(ctx context.Context, deposit Outpoint) ([]NonceSet, error)
	// Get returns the nonce set of one slot, or ErrNoncesNotFound.
	Get(ctx context.Context, deposit Outpoint, index uint32) (*NonceSet, error)
	// SetAggNonces stores the peer-aggregated nonces slot by slot, starting
	// at slot 0.
	SetAggNonces(ctx context.Context, deposit Outpoint, aggNonces [][]byte) error
	Close()
}
