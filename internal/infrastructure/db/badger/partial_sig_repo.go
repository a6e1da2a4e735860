package badgerdb

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/bitvmbridge/bridged/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

type partialSigDTO struct {
	domain.PartialSig
	DepositKey string `badgerhold:"index"`
	UpdatedAt  int64
}

type partialSigRepository struct {
	store *badgerhold.Store
}

func (r *partialSigRepository) Upsert(
	ctx context.Context, sig domain.PartialSig,
) error {
	dto := partialSigDTO{
		PartialSig: sig,
		DepositKey: sig.DepositOutpoint.String(),
		UpdatedAt:  time.Now().Unix(),
	}
	return retry(func() error {
		if tx, ok := txFromContext(ctx); ok {
			return r.store.TxUpsert(tx, sig.Key(), &dto)
		}
		return r.store.Upsert(sig.Key(), &dto)
	})
}

func (r *partialSigRepository) GetByRole(
	ctx context.Context, deposit domain.Outpoint, role string,
) ([]domain.PartialSig, error) {
	query := badgerhold.Where("DepositKey").Eq(deposit.String()).
		And("Role").Eq(role)

	var dtos []partialSigDTO
	var err error
	if tx, ok := txFromContext(ctx); ok {
		err = r.store.TxFind(tx, &dtos, query)
	} else {
		err = r.store.Find(&dtos, query)
	}
	if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return nil, err
	}

	sort.Slice(dtos, func(i, j int) bool {
		return dtos[i].Index < dtos[j].Index
	})
	sigs := make([]domain.PartialSig, 0, len(dtos))
	for _, dto := range dtos {
		sigs = append(sigs, dto.PartialSig)
	}
	return sigs, nil
}

func (r *partialSigRepository) Close() {}
