package db

import (
	"fmt"

	"github.com/bitvmbridge/bridged/internal/core/ports"
	badgerdb "github.com/bitvmbridge/bridged/internal/infrastructure/db/badger"
)

var (
	supportedStores = map[string]func(...interface{}) (ports.RepoManager, error){
		"badger": badgerdb.NewRepoManager,
	}
)

// ServiceConfig selects and configures the persistence backend.
type ServiceConfig struct {
	DataStoreType   string
	DataStoreConfig []interface{}
}

// NewService opens the configured store and returns the repo manager bound
// to it.
func NewService(config ServiceConfig) (ports.RepoManager, error) {
	factory, ok := supportedStores[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("unsupported data store type %q", config.DataStoreType)
	}
	repoManager, err := factory(config.DataStoreConfig...)
	if err != nil {
		return nil, fmt.Errorf("failed to open data store: %s", err)
	}
	return repoManager, nil
}
