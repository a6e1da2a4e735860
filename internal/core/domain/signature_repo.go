package domain

import (
	"context"
	"fmt"
)

func partialSigKey(deposit Outpoint, role string, index uint32) string {
	return fmt.Sprintf("%s/%s/%d", deposit, role, index)
}

type PartialSigRepository interface {
	// Upsert stores a partial signature. Partial signatures are
	// deterministic for fixed nonce and message, so overwrites are
	// idempotent.
	Upsert(ctx context.Context, sig PartialSig) error
	// GetByRole returns all partial signatures of a deposit for one role,
	// ordered by index.
	GetByRole(ctx context.Context, deposit Outpoint, role string) ([]PartialSig, error)
	Close()
}
