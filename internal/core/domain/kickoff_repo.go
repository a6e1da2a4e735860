package domain

import (
	"context"
	"fmt"
)

func kickoffKey(deposit Outpoint, index uint32) string {
	return fmt.Sprintf("%s/%d", deposit, index)
}

type KickoffRepository interface {
	// AddAll persists the validated kickoff batch of a deposit, failing
	// with ErrAlreadyExists if the batch was already registered.
	AddAll(ctx context.Context, kickoffs []Kickoff) error
	// GetByDeposit returns the kickoffs of a deposit ordered by index, or
	// ErrKickoffOutpointsNotFound when none exist.
	GetByDeposit(ctx context.Context, deposit Outpoint) ([]Kickoff, error)
	Close()
}
