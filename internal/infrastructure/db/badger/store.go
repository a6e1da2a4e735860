package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/bitvmbridge/bridged/internal/core/domain"
	"github.com/bitvmbridge/bridged/internal/core/ports"
	"github.com/timshannon/badgerhold/v4"
)

const (
	storeDir   = "bridged-store"
	maxRetries = 5
)

// NewRepoManager opens one shared badger store and wires every repository on
// top of it, so multi-entity transitions commit atomically. Expects the base
// directory (empty for an in-memory store) and a badger logger as config
// args.
func NewRepoManager(config ...interface{}) (ports.RepoManager, error) {
	if len(config) != 2 {
		return nil, fmt.Errorf("invalid config, expected base dir and logger")
	}
	baseDir, ok := config[0].(string)
	if !ok {
		return nil, fmt.Errorf("invalid base directory")
	}
	var logger badger.Logger
	if config[1] != nil {
		logger, ok = config[1].(badger.Logger)
		if !ok {
			return nil, fmt.Errorf("invalid logger")
		}
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, storeDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %s", err)
	}

	return &repoManager{
		store:          store,
		deposits:       &depositRepository{store},
		nonces:         &nonceRepository{store},
		kickoffs:       &kickoffRepository{store},
		partialSigs:    &partialSigRepository{store},
		withdrawalSigs: &withdrawalSigRepository{store},
	}, nil
}

type repoManager struct {
	store *badgerhold.Store

	deposits       domain.DepositRepository
	nonces         domain.NonceRepository
	kickoffs       domain.KickoffRepository
	partialSigs    domain.PartialSigRepository
	withdrawalSigs domain.WithdrawalSigRepository
}

func (m *repoManager) Deposits() domain.DepositRepository {
	return m.deposits
}

func (m *repoManager) Nonces() domain.NonceRepository {
	return m.nonces
}

func (m *repoManager) Kickoffs() domain.KickoffRepository {
	return m.kickoffs
}

func (m *repoManager) PartialSigs() domain.PartialSigRepository {
	return m.partialSigs
}

func (m *repoManager) WithdrawalSigs() domain.WithdrawalSigRepository {
	return m.withdrawalSigs
}

// Transaction runs fn inside one badger update transaction, propagated to
// the repositories through the context. Conflicts are retried, so fn must be
// side-effect free apart from its repository writes.
func (m *repoManager) Transaction(
	ctx context.Context, fn func(ctx context.Context) error,
) error {
	return retry(func() error {
		return m.store.Badger().Update(func(tx *badger.Txn) error {
			// nolint:all
			return fn(context.WithValue(ctx, "tx", tx))
		})
	})
}

func (m *repoManager) Close() {
	// nolint:all
	m.store.Close()
}

func createDB(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	return badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
}

func retry(fn func() error) error {
	attempts := 0
	for {
		err := fn()
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		attempts++
		if attempts >= maxRetries {
			return fmt.Errorf("transaction conflict after %d retries: %s", attempts, err)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func txFromContext(ctx context.Context) (*badger.Txn, bool) {
	tx, ok := ctx.Value("tx").(*badger.Txn)
	return tx, ok
}
