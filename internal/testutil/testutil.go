// Package testutil provides shared test helpers for setting up stores and engines.
package testutil

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/starford/zennote/internal/backup"
	"github.com/starford/zennote/internal/notebook"
	"github.com/starford/zennote/internal/persist"
	"github.com/starford/zennote/internal/storage"
)

// Logger returns a logger that only reports errors.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestStore creates a temporary directory with an FS storage provider.
func TestStore(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// TestEngine creates a hydrated engine over an in-memory store. Writes are
// debounced by an hour so tests decide when to Flush.
func TestEngine(t *testing.T, opts ...notebook.Option) (*notebook.Engine, *storage.Memory) {
	t.Helper()
	mem := storage.NewMemory()
	coord := persist.NewCoordinator(mem, time.Hour, Logger())
	t.Cleanup(coord.CancelAll)
	eng := notebook.New(mem, coord, append([]notebook.Option{notebook.WithLogger(Logger())}, opts...)...)
	if err := eng.Hydrate(context.Background()); err != nil {
		t.Fatal(err)
	}
	return eng, mem
}

// TestBackup creates a backup coordinator sharing the engine's store.
func TestBackup(store storage.Provider, eng *notebook.Engine) *backup.Coordinator {
	return backup.NewCoordinator(store, Logger(), eng.Now)
}
