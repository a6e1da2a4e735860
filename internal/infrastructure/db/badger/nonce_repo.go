package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bitvmbridge/bridged/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

type nonceDTO struct {
	domain.NonceSet
	DepositKey string `badgerhold:"index"`
	UpdatedAt  int64
}

type nonceRepository struct {
	store *badgerhold.Store
}

func (r *nonceRepository) AddAll(
	ctx context.Context, nonces []domain.NonceSet,
) error {
	now := time.Now().Unix()
	for _, nonce := range nonces {
		dto := nonceDTO{
			NonceSet:   nonce,
			DepositKey: nonce.DepositOutpoint.String(),
			UpdatedAt:  now,
		}
		err := retry(func() error {
			if tx, ok := txFromContext(ctx); ok {
				return r.store.TxInsert(tx, nonce.Key(), &dto)
			}
			return r.store.Insert(nonce.Key(), &dto)
		})
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return fmt.Errorf(
				"%w: nonce slot %d of deposit %s",
				domain.ErrAlreadyExists, nonce.Index, nonce.DepositOutpoint,
			)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *nonceRepository) GetByDeposit(
	ctx context.Context, deposit domain.Outpoint,
) ([]domain.NonceSet, error) {
	query := badgerhold.Where("DepositKey").Eq(deposit.String())

	var dtos []nonceDTO
	var err error
	if tx, ok := txFromContext(ctx); ok {
		err = r.store.TxFind(tx, &dtos, query)
	} else {
		err = r.store.Find(&dtos, query)
	}
	if err != nil {
		return nil, err
	}
	if len(dtos) == 0 {
		return nil, fmt.Errorf(
			"%w: deposit %s", domain.ErrNoncesNotFound, deposit,
		)
	}

	sort.Slice(dtos, func(i, j int) bool {
		return dtos[i].Index < dtos[j].Index
	})
	nonces := make([]domain.NonceSet, 0, len(dtos))
	for _, dto := range dtos {
		nonces = append(nonces, dto.NonceSet)
	}
	return nonces, nil
}

func (r *nonceRepository) Get(
	ctx context.Context, deposit domain.Outpoint, index uint32,
) (*domain.NonceSet, error) {
	key := domain.NonceSet{DepositOutpoint: deposit, Index: index}.Key()

	var dto nonceDTO
	var err error
	if tx, ok := txFromContext(ctx); ok {
		err = r.store.TxGet(tx, key, &dto)
	} else {
		err = r.store.Get(key, &dto)
	}
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, fmt.Errorf(
			"%w: slot %d of deposit %s", domain.ErrNoncesNotFound, index, deposit,
		)
	}
	if err != nil {
		return nil, err
	}
	return &dto.NonceSet, nil
}

func (r *nonceRepository) SetAggNonces(
	ctx context.Context, deposit domain.Outpoint, aggNonces [][]byte,
) error {
	now := time.Now().Unix()
	for i, aggNonce := range aggNonces {
		key := domain.NonceSet{
			DepositOutpoint: deposit, Index: uint32(i),
		}.Key()

		err := retry(func() error {
			var dto nonceDTO
			if tx, ok := txFromContext(ctx); ok {
				if err := r.store.TxGet(tx, key, &dto); err != nil {
					return err
				}
				dto.AggNonce = aggNonce
				dto.UpdatedAt = now
				return r.store.TxUpdate(tx, key, &dto)
			}
			if err := r.store.Get(key, &dto); err != nil {
				return err
			}
			dto.AggNonce = aggNonce
			dto.UpdatedAt = now
			return r.store.Update(key, &dto)
		})
		if errors.Is(err, badgerhold.ErrNotFound) {
			return fmt.Errorf(
				"%w: slot %d of deposit %s", domain.ErrNoncesNotFound, i, deposit,
			)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *nonceRepository) Close() {}
