package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bitvmbridge/bridged/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

type withdrawalSigDTO struct {
	domain.WithdrawalSig
	UpdatedAt int64
}

type withdrawalSigRepository struct {
	store *badgerhold.Store
}

func withdrawalKey(index uint32) string {
	return strconv.FormatUint(uint64(index), 10)
}

func (r *withdrawalSigRepository) Add(
	ctx context.Context, sig domain.WithdrawalSig,
) error {
	dto := withdrawalSigDTO{WithdrawalSig: sig, UpdatedAt: time.Now().Unix()}
	key := withdrawalKey(sig.Index)

	err := retry(func() error {
		if tx, ok := txFromContext(ctx); ok {
			return r.store.TxInsert(tx, key, &dto)
		}
		return r.store.Insert(key, &dto)
	})
	if errors.Is(err, badgerhold.ErrKeyExists) {
		return fmt.Errorf(
			"%w: withdrawal %d", domain.ErrAlreadyExists, sig.Index,
		)
	}
	return err
}

func (r *withdrawalSigRepository) Get(
	ctx context.Context, index uint32,
) (*domain.WithdrawalSig, error) {
	var dto withdrawalSigDTO
	var err error
	if tx, ok := txFromContext(ctx); ok {
		err = r.store.TxGet(tx, withdrawalKey(index), &dto)
	} else {
		err = r.store.Get(withdrawalKey(index), &dto)
	}
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &dto.WithdrawalSig, nil
}

func (r *withdrawalSigRepository) Close() {}
