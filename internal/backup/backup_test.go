package backup

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/starford/zennote/internal/storage"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestCoordinator(store storage.Provider) *Coordinator {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewCoordinator(store, logger, func() time.Time { return fixedNow })
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	c := newTestCoordinator(mem)

	original := map[string]string{
		storage.KeyNotes:    `[{"id":"n1","content":"keep me"}]`,
		storage.KeyTags:     `[{"id":"t1","name":"a","noteCount":1,"order":0}]`,
		storage.KeySettings: `{"theme":"light","backupPath":"","importExportHistory":[]}`,
	}
	for k, v := range original {
		_ = mem.Set(ctx, k, []byte(v))
	}

	if r := c.Create(ctx); !r.OK() || r.CreatedAt == nil || !r.CreatedAt.Equal(fixedNow) {
		t.Fatalf("create = %+v", r)
	}

	for k := range original {
		_ = mem.Set(ctx, k, []byte(`[]`))
	}

	if r := c.Restore(ctx); !r.OK() {
		t.Fatalf("restore = %+v", r)
	}
	for k, want := range original {
		got, err := mem.Get(ctx, k)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != want {
			t.Errorf("%s = %s, want %s", k, got, want)
		}
	}
}

func TestRestore_NoBackup(t *testing.T) {
	c := newTestCoordinator(storage.NewMemory())
	r := c.Restore(context.Background())
	if r.Status != StatusNoBackup || r.Message == "" {
		t.Errorf("restore = %+v", r)
	}
}

func TestRestore_SkipsAbsentCollections(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	c := newTestCoordinator(mem)
	_ = mem.Set(ctx, storage.KeyNotes, []byte(`[]`))
	c.Create(ctx)

	_ = mem.Set(ctx, storage.KeyTags, []byte(`[{"id":"later"}]`))
	if r := c.Restore(ctx); !r.OK() {
		t.Fatal(r)
	}
	got, _ := mem.Get(ctx, storage.KeyTags)
	if string(got) != `[{"id":"later"}]` {
		t.Errorf("tags overwritten with %s", got)
	}
}

func TestCreate_OverwritesPrevious(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	c := newTestCoordinator(mem)
	c.Create(ctx)
	c.now = func() time.Time { return fixedNow.Add(time.Hour) }
	c.Create(ctx)

	info := c.Info(ctx)
	if info == nil || !info.Equal(fixedNow.Add(time.Hour)) {
		t.Errorf("info = %v", info)
	}
}

func TestInfo(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	c := newTestCoordinator(mem)
	if c.Info(ctx) != nil {
		t.Error("no backup should give nil")
	}
	_ = mem.Set(ctx, storage.KeyBackup, []byte(`garbage`))
	if c.Info(ctx) != nil {
		t.Error("unreadable backup should give nil")
	}
}

type brokenStore struct{ storage.Provider }

func (brokenStore) Get(context.Context, string) ([]byte, error) { return nil, errors.New("io error") }
func (brokenStore) Set(context.Context, string, []byte) error   { return errors.New("io error") }

func TestFailuresAreReported(t *testing.T) {
	c := newTestCoordinator(brokenStore{storage.NewMemory()})
	if r := c.Create(context.Background()); r.Status != StatusFailed || r.Message == "" {
		t.Errorf("create = %+v", r)
	}
	if r := c.Restore(context.Background()); r.Status != StatusFailed {
		t.Errorf("restore = %+v", r)
	}
}
