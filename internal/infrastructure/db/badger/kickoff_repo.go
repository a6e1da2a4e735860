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

type kickoffDTO struct {
	domain.Kickoff
	DepositKey string `badgerhold:"index"`
	UpdatedAt  int64
}

type kickoffRepository struct {
	store *badgerhold.Store
}

func (r *kickoffRepository) AddAll(
	ctx context.Context, kickoffs []domain.Kickoff,
) error {
	now := time.Now().Unix()
	for _, kickoff := range kickoffs {
		dto := kickoffDTO{
			Kickoff:    kickoff,
			DepositKey: kickoff.DepositOutpoint.String(),
			UpdatedAt:  now,
		}
		err := retry(func() error {
			if tx, ok := txFromContext(ctx); ok {
				return r.store.TxInsert(tx, kickoff.Key(), &dto)
			}
			return r.store.Insert(kickoff.Key(), &dto)
		})
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return fmt.Errorf(
				"%w: kickoff %d of deposit %s",
				domain.ErrAlreadyExists, kickoff.Index, kickoff.DepositOutpoint,
			)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *kickoffRepository) GetByDeposit(
	ctx context.Context, deposit domain.Outpoint,
) ([]domain.Kickoff, error) {
	query := badgerhold.Where("DepositKey").Eq(deposit.String())

	var dtos []kickoffDTO
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
			"%w: deposit %s", domain.ErrKickoffOutpointsNotFound, deposit,
		)
	}

	sort.Slice(dtos, func(i, j int) bool {
		return dtos[i].Index < dtos[j].Index
	})
	kickoffs := make([]domain.Kickoff, 0, len(dtos))
	for _, dto := range dtos {
		kickoffs = append(kickoffs, dto.Kickoff)
	}
	return kickoffs, nil
}

func (r *kickoffRepository) Close() {}
