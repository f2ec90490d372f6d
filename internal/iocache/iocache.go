package iocache

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/traelabs/trae/internal/contract"
	"github.com/traelabs/trae/schema"
)

// StoreConfig selects the persistent stores of one process.
// An empty backend disables the corresponding store.
type StoreConfig struct {
	Root           string
	CacheBackend   schema.DatabaseBackend
	CacheDBConnect string
	RunsBackend    schema.DatabaseBackend
	RunsDBConnect  string
}

// StoreConfigFrom derives the store selection from a validated config.
func StoreConfigFrom(cfg *contract.Config) StoreConfig {
	return StoreConfig{
		Root:           cfg.RootPath,
		CacheBackend:   cfg.CacheBackend,
		CacheDBConnect: cfg.CacheDBConnect,
		RunsBackend:    cfg.RunsBackend,
		RunsDBConnect:  cfg.RunsDBConnect,
	}
}

// StoreManager owns the cache store and the run store.
type StoreManager struct {
	sync.RWMutex // Protects the store pointers during close
	cache        contract.CacheStore
	runs         contract.RunStore
	closeOnce    sync.Once
}

var _ contract.CacheManager = &StoreManager{} // Compile-time check

// OpenStores opens every configured store. On failure nothing is left open.
func OpenStores(cfg StoreConfig) (*StoreManager, error) {
	mgr := &StoreManager{}

	switch cfg.CacheBackend {
	case "", schema.NoneBackend:
	case schema.FileBackend:
		store, err := NewFileCacheStore(contract.GetCacheDir(cfg.Root))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize file cache: %w", err)
		}
		mgr.cache = store
	default:
		store, err := NewCacheStore(CacheTableName, cfg.CacheBackend, cfg.CacheDBConnect)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize cache store: %w", err)
		}
		mgr.cache = store
	}

	if cfg.RunsBackend != "" && cfg.RunsBackend != schema.NoneBackend {
		store, err := NewRunStore(cfg.RunsBackend, cfg.RunsDBConnect)
		if err != nil {
			_ = mgr.Close()
			return nil, fmt.Errorf("failed to initialize run store: %w", err)
		}
		mgr.runs = store
	}
	return mgr, nil
}

// GetCacheStore returns the cache store, or nil when caching is not persisted.
func (mgr *StoreManager) GetCacheStore() contract.CacheStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.cache
}

// GetRunStore returns the run store, or nil when run history is disabled.
func (mgr *StoreManager) GetRunStore() contract.RunStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.runs
}

// Close closes every open store. It is safe to call more than once.
func (mgr *StoreManager) Close() error {
	var err error
	mgr.closeOnce.Do(func() {
		mgr.Lock()
		defer mgr.Unlock()
		if mgr.cache != nil {
			err = errors.Join(err, mgr.cache.Close())
			mgr.cache = nil
		}
		if mgr.runs != nil {
			err = errors.Join(err, mgr.runs.Close())
			mgr.runs = nil
		}
	})
	return err
}

// ClearCache removes every persisted cache entry of the backend.
// For the file backend it deletes the cache directory under root.
// For SQLite, it deletes the database file.
// For MySQL/PostgreSQL, it drops the table.
func ClearCache(root string, backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.FileBackend:
		return (&FileCacheStore{dir: contract.GetCacheDir(root)}).Clear()
	case schema.SQLiteBackend:
		return removeDBFile(connStr, contract.GetCacheDBFilePath())
	case schema.MySQLBackend, schema.PostgreSQLBackend:
		return dropTables(backend, connStr, CacheTableName)
	case schema.NoneBackend, "":
		return nil
	default:
		return fmt.Errorf("unsupported cache backend for clearing: %s", backend)
	}
}

// ClearRuns removes all run history of the backend.
func ClearRuns(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend:
		return removeDBFile(connStr, contract.GetRunsDBFilePath())
	case schema.MySQLBackend, schema.PostgreSQLBackend:
		// The migrate bookkeeping table goes too so a later migrate starts clean.
		return dropTables(backend, connStr, IssuesTable, RunsTable, "schema_migrations")
	case schema.NoneBackend, "":
		return nil
	default:
		return fmt.Errorf("unsupported runs backend for clearing: %s", backend)
	}
}

func removeDBFile(path, defaultPath string) error {
	if path == "" {
		path = defaultPath
	}
	// Remove the file; ignore if it doesn't exist
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove SQLite database file %s: %w", path, err)
	}
	return nil
}
