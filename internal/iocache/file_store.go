package iocache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/traelabs/trae/internal/contract"
	"github.com/traelabs/trae/schema"
)

// fileEnvelope is the on-disk form of one cache entry.
type fileEnvelope struct {
	Fingerprint string          `json:"fingerprint"`
	Version     string          `json:"version"`
	WrittenAt   int64           `json:"written_at"`
	Result      json.RawMessage `json:"result"`
}

// FileCacheStore keeps cache entries as JSON files under a directory,
// sharded by the first two characters of the key.
type FileCacheStore struct {
	dir string
}

var _ contract.CacheStore = &FileCacheStore{} // Compile-time check

// NewFileCacheStore creates the cache directory if needed.
func NewFileCacheStore(dir string) (*FileCacheStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, contract.NewError(contract.IoError, "create cache dir", dir, err)
	}
	return &FileCacheStore{dir: dir}, nil
}

// Dir returns the root directory of the store.
func (s *FileCacheStore) Dir() string { return s.dir }

func (s *FileCacheStore) path(key string) (string, error) {
	if len(key) < 3 || strings.ContainsAny(key, `/\.`) {
		return "", fmt.Errorf("invalid cache key %q", key)
	}
	return filepath.Join(s.dir, key[:2], key+".json"), nil
}

// Get reads an entry. A missing entry returns fs.ErrNotExist and a malformed
// one a CacheCorruption error.
func (s *FileCacheStore) Get(key string) ([]byte, string, int64, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, "", 0, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, "", 0, err
	}
	var env fileEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, "", 0, contract.NewError(contract.CacheCorruption, "decode cache entry", p, err)
	}
	if env.Fingerprint != key || len(env.Result) == 0 {
		return nil, "", 0, contract.NewError(contract.CacheCorruption, "decode cache entry", p, errors.New("fingerprint mismatch"))
	}
	return env.Result, env.Version, env.WrittenAt, nil
}

// Set writes an entry through a temporary file so readers never see a partial write.
func (s *FileCacheStore) Set(key string, value []byte, version string, timestamp int64) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if !json.Valid(value) {
		return contract.NewError(contract.EncodingError, "encode cache entry", p, errors.New("value is not JSON"))
	}
	data, err := json.MarshalIndent(fileEnvelope{
		Fingerprint: key,
		Version:     version,
		WrittenAt:   timestamp,
		Result:      value,
	}, "", "  ")
	if err != nil {
		return contract.NewError(contract.EncodingError, "encode cache entry", p, err)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return contract.NewError(contract.IoError, "create cache shard", p, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".entry-*")
	if err != nil {
		return contract.NewError(contract.IoError, "write cache entry", p, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return contract.NewError(contract.IoError, "write cache entry", p, err)
	}
	if err := tmp.Close(); err != nil {
		return contract.NewError(contract.IoError, "write cache entry", p, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return contract.NewError(contract.IoError, "write cache entry", p, err)
	}
	return nil
}

// Delete removes an entry. Missing entries are not an error.
func (s *FileCacheStore) Delete(key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return contract.NewError(contract.IoError, "delete cache entry", p, err)
	}
	return nil
}

// walk visits every entry file with its decoded envelope. Undecodable
// files are passed with a nil envelope.
func (s *FileCacheStore) walk(fn func(path string, env *fileEnvelope, info fs.FileInfo) error) error {
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		var env *fileEnvelope
		if data, err := os.ReadFile(path); err == nil {
			var decoded fileEnvelope
			if json.Unmarshal(data, &decoded) == nil {
				env = &decoded
			}
		}
		return fn(path, env, info)
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Prune removes entries written before the given unix timestamp along with
// any entry that no longer decodes.
func (s *FileCacheStore) Prune(before int64) (int, error) {
	removed := 0
	err := s.walk(func(path string, env *fileEnvelope, _ fs.FileInfo) error {
		if env != nil && env.WrittenAt >= before {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return contract.NewError(contract.IoError, "prune cache entry", path, err)
		}
		removed++
		return nil
	})
	return removed, err
}

// GetStatus summarizes the entries on disk.
func (s *FileCacheStore) GetStatus() (schema.CacheStatus, error) {
	status := schema.CacheStatus{Backend: string(schema.FileBackend), Connected: true}
	var oldest, newest int64
	err := s.walk(func(_ string, env *fileEnvelope, info fs.FileInfo) error {
		status.TableSizeBytes += info.Size()
		if env == nil {
			return nil
		}
		status.TotalEntries++
		if oldest == 0 || env.WrittenAt < oldest {
			oldest = env.WrittenAt
		}
		if env.WrittenAt > newest {
			newest = env.WrittenAt
		}
		return nil
	})
	if err != nil {
		return status, fmt.Errorf("failed to scan cache dir: %w", err)
	}
	if status.TotalEntries > 0 {
		status.OldestEntryTime = time.Unix(oldest, 0)
		status.LastEntryTime = time.Unix(newest, 0)
	}
	return status, nil
}

// Clear removes the whole cache directory.
func (s *FileCacheStore) Clear() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return contract.NewError(contract.IoError, "clear cache", s.dir, err)
	}
	return nil
}

// Close is a no-op for the file store.
func (s *FileCacheStore) Close() error { return nil }
