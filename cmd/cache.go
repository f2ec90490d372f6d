package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/traelabs/trae/internal/contract"
	"github.com/traelabs/trae/internal/iocache"
	"github.com/traelabs/trae/schema"
)

// cacheSetup loads minimal configuration needed for cache operations.
// This is used by commands that need cache access without full shared setup.
func cacheSetup(args []string) error {
	if err := loadConfigFile(); err != nil {
		return err
	}

	// Get cache-related config values
	backend := schema.DatabaseBackend(viper.GetString("cache-backend"))
	connStr := viper.GetString("cache-db-connect")
	if backend == "" {
		backend = schema.FileBackend
	}

	// Basic validation for database backends
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return err
	}

	// The file backend lives under the analyzed root
	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return contract.NewError(contract.EnvironmentFatal, "resolve root", root, err)
	}

	cfg.RootPath = absRoot
	cfg.CacheBackend = backend
	cfg.CacheDBConnect = connStr
	cfg.Options.CacheTTL = time.Duration(viper.GetInt("cache-ttl-seconds")) * time.Second

	return nil
}

// cacheSetupWrapper wraps cacheSetup to provide PreRunE for cache commands.
func cacheSetupWrapper(_ *cobra.Command, args []string) error {
	return cacheSetup(args)
}

// openCacheStore opens only the cache store selected by cacheSetup.
func openCacheStore() (contract.CacheStore, func(), error) {
	mgr, err := iocache.OpenStores(iocache.StoreConfig{
		Root:           cfg.RootPath,
		CacheBackend:   cfg.CacheBackend,
		CacheDBConnect: cfg.CacheDBConnect,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	store := mgr.GetCacheStore()
	if store == nil {
		_ = mgr.Close()
		return nil, nil, fmt.Errorf("the %s cache backend does not persist entries", cfg.CacheBackend)
	}
	return store, func() { _ = mgr.Close() }, nil
}

// cacheCmd focused on cache management.
//
// Note: Cache subcommands use minimal initialization (cacheSetup) instead of
// the full sharedSetup used by analysis commands.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the fingerprint cache (improves performance)",
	Long: `Manage the fingerprint cache that speeds up repeated analyses.

trae caches the analysis result of every file under a fingerprint of its
content, so unchanged files are never analyzed twice under the same detectors.

Supported backends: file (default, under .trae/cache), SQLite, MySQL,
PostgreSQL, or None (in-memory)

Subcommands:
  status - Show cache statistics and connection info
  clear  - Remove all cached data
  sweep  - Remove entries older than the cache TTL

Examples:
  # Check cache status
  trae cache status

  # Drop expired entries from a shared MySQL cache
  TRAE_CACHE_BACKEND=mysql TRAE_CACHE_DB_CONNECT="..." trae cache sweep`,
}

// cacheClearCmd clears the cache.
var cacheClearCmd = &cobra.Command{
	Use:   "clear [root]",
	Short: "Remove all cached analysis results",
	Long: `Delete all cached analysis results from the configured backend.

Use this when:
- Cache may be stale or corrupted
- Testing performance without cache

For file: Deletes .trae/cache under the root
For SQLite: Deletes the database file
For MySQL/PostgreSQL: Drops the cache table

Examples:
  # Clear the file cache of the current directory
  trae cache clear

  # Clear the SQLite cache
  trae cache clear --cache-backend sqlite`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: cacheSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ClearCache(cfg.RootPath, cfg.CacheBackend, cfg.CacheDBConnect); err != nil {
			contract.LogFatal("Failed to clear cache", err)
		}
		fmt.Println("Cache cleared successfully.")
	},
}

// cacheStatusCmd shows cache status.
var cacheStatusCmd = &cobra.Command{
	Use:   "status [root]",
	Short: "Display cache statistics and connection details",
	Long: `Show detailed information about the fingerprint cache.

Displays:
- Backend type and connection status
- Total number of cached entries
- Last and oldest cache entry timestamps
- Cache size

Examples:
  # Check cache status
  trae cache status`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: cacheSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		store, closeFn, err := openCacheStore()
		if err != nil {
			contract.LogFatal("Failed to open cache", err)
		}
		defer closeFn()

		status, err := store.GetStatus()
		if err != nil {
			contract.LogFatal("Failed to get cache status", err)
		}
		iocache.PrintCacheStatus(os.Stdout, status)
	},
}

// cacheSweepCmd evicts expired entries.
var cacheSweepCmd = &cobra.Command{
	Use:   "sweep [root]",
	Short: "Remove cache entries older than the cache TTL",
	Long: `Evict every cache entry written more than --cache-ttl-seconds ago.

Expired entries are already ignored by analysis; sweeping reclaims their space.
A TTL of 0 means entries never expire, so nothing is removed.

Examples:
  # Evict entries older than an hour
  trae cache sweep --cache-ttl-seconds 3600`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: cacheSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if cfg.Options.CacheTTL <= 0 {
			fmt.Println("Cache TTL is disabled; nothing to sweep.")
			return
		}
		store, closeFn, err := openCacheStore()
		if err != nil {
			contract.LogFatal("Failed to open cache", err)
		}
		defer closeFn()

		before := time.Now().Add(-cfg.Options.CacheTTL).Unix()
		removed, err := store.Prune(before)
		if err != nil {
			contract.LogFatal("Failed to sweep cache", err)
		}
		fmt.Printf("Removed %d expired cache entries.\n", removed)
	},
}
