package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/starford/zennote/internal/storage"
)

// openedStore is the configured storage backend plus what it needs released.
type openedStore struct {
	provider storage.Provider
	// fs is set for the file backend, which is the only one that can be watched.
	fs    *storage.FS
	close func() error
}

func (s *openedStore) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

func openStore(cfg StorageConfig) (*openedStore, error) {
	switch cfg.Driver {
	case DriverFS:
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		fs, err := storage.NewFS(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		return &openedStore{provider: fs, fs: fs}, nil

	case DriverSQLite:
		if dir := filepath.Dir(cfg.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
		db, err := storage.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		return &openedStore{provider: db, close: db.Close}, nil

	case DriverMemory:
		return &openedStore{provider: storage.NewMemory()}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
