package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/starford/zennote/internal/checksum"
)

const fileExt = ".json"

var keyRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// FS implements Provider with one JSON file per key under a root directory.
type FS struct {
	root string // absolute path to data directory

	mu      sync.Mutex
	written map[string]string // key -> checksum of our last write
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs, written: make(map[string]string)}, nil
}

// Root returns the absolute data directory.
func (f *FS) Root() string { return f.root }

// keyPath maps a key to its file, rejecting anything that is not a plain name.
func (f *FS) keyPath(key string) (string, error) {
	if !keyRe.MatchString(key) {
		return "", fmt.Errorf("storage: invalid key %q", key)
	}
	return filepath.Join(f.root, key+fileExt), nil
}

// KeyForPath returns the key stored at abs, if abs is a data file of this provider.
func (f *FS) KeyForPath(abs string) (string, bool) {
	if filepath.Dir(abs) != f.root {
		return "", false
	}
	name := filepath.Base(abs)
	if !strings.HasSuffix(name, fileExt) {
		return "", false
	}
	key := strings.TrimSuffix(name, fileExt)
	if !keyRe.MatchString(key) {
		return "", false
	}
	return key, true
}

// Get reads the value stored under key.
func (f *FS) Get(_ context.Context, key string) ([]byte, error) {
	p, err := f.keyPath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: read %s: %w", key, err)
	}
	return data, nil
}

// Set atomically writes value: tmp file → fsync → rename.
func (f *FS) Set(_ context.Context, key string, value []byte) error {
	p, err := f.keyPath(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.root, ".zennote-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(value); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}

	// Record before rename so a watcher racing the rename sees it.
	f.mu.Lock()
	f.written[key] = checksum.Sum(value)
	f.mu.Unlock()

	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Remove deletes the file for key.
func (f *FS) Remove(_ context.Context, key string) error {
	p, err := f.keyPath(key)
	if err != nil {
		return err
	}
	f.mu.Lock()
	delete(f.written, key)
	f.mu.Unlock()
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: remove %s: %w", key, err)
	}
	return nil
}

// Clear removes every listed key.
func (f *FS) Clear(ctx context.Context, keys ...string) error {
	var errs []error
	for _, k := range keys {
		if err := f.Remove(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OwnWrite reports whether data equals the last value this process wrote to key.
func (f *FS) OwnWrite(key string, data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	cs, ok := f.written[key]
	return ok && cs == checksum.Sum(data)
}
