package ports

import (
	"context"

	"github.com/bitvmbridge/bridged/internal/core/domain"
)

// RepoManager aggregates the per-entity repositories over one shared
// transactional store.
type RepoManager interface {
	Deposits() domain.DepositRepository
	Nonces() domain.NonceRepository
	Kickoffs() domain.KickoffRepository
	PartialSigs() domain.PartialSigRepository
	WithdrawalSigs() domain.WithdrawalSigRepository
	// Transaction runs fn inside a single store transaction: every
	// repository call made through the ctx passed to fn is atomic with the
	// others, and nothing is committed if fn returns an error.
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
	Close()
}
