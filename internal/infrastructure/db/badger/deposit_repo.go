package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitvmbridge/bridged/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

type depositDTO struct {
	domain.Deposit
	UpdatedAt int64
}

type depositRepository struct {
	store *badgerhold.Store
}

func (r *depositRepository) Add(ctx context.Context, deposit domain.Deposit) error {
	dto := depositDTO{Deposit: deposit, UpdatedAt: time.Now().Unix()}
	key := deposit.Outpoint.String()

	err := retry(func() error {
		if tx, ok := txFromContext(ctx); ok {
			return r.store.TxInsert(tx, key, &dto)
		}
		return r.store.Insert(key, &dto)
	})
	if errors.Is(err, badgerhold.ErrKeyExists) {
		return fmt.Errorf("%w: deposit %s", domain.ErrAlreadyExists, key)
	}
	return err
}

func (r *depositRepository) Get(
	ctx context.Context, outpoint domain.Outpoint,
) (*domain.Deposit, error) {
	var dto depositDTO
	var err error
	if tx, ok := txFromContext(ctx); ok {
		err = r.store.TxGet(tx, outpoint.String(), &dto)
	} else {
		err = r.store.Get(outpoint.String(), &dto)
	}
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, fmt.Errorf(
			"%w: deposit %s", domain.ErrDepositInfoNotFound, outpoint,
		)
	}
	if err != nil {
		return nil, err
	}
	return &dto.Deposit, nil
}

func (r *depositRepository) Close() {}
