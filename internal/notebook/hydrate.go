package notebook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/starford/zennote/internal/models"
	"github.com/starford/zennote/internal/storage"
	"github.com/starford/zennote/internal/tagsync"
)

// HydrateNotes loads the note collection. A missing or unreadable blob yields
// an empty collection.
func (e *Engine) HydrateNotes(ctx context.Context) {
	var notes []models.Note
	if err := e.load(ctx, storage.KeyNotes, &notes); err != nil {
		notes = nil
	}
	if notes == nil {
		notes = []models.Note{}
	}
	for i := range notes {
		if notes[i].Tags == nil {
			notes[i].Tags = []string{}
		}
		if notes[i].Images == nil {
			notes[i].Images = []models.NoteImage{}
		}
	}
	e.mu.Lock()
	e.notes = notes
	e.mu.Unlock()
}

// HydrateTags loads the tag index. A missing or unreadable blob yields an empty index.
func (e *Engine) HydrateTags(ctx context.Context) {
	var tags []models.Tag
	if err := e.load(ctx, storage.KeyTags, &tags); err != nil || tags == nil {
		tags = []models.Tag{}
	}
	e.mu.Lock()
	e.tags = tags
	e.mu.Unlock()
}

// HydrateSettings loads the settings. Fields absent from the stored object keep
// their defaults; a missing or unreadable blob yields the defaults.
func (e *Engine) HydrateSettings(ctx context.Context) {
	s := models.DefaultSettings()
	if err := e.load(ctx, storage.KeySettings, &s); err != nil {
		s = models.DefaultSettings()
	}
	if s.ImportExportHistory == nil {
		s.ImportExportHistory = []string{}
	}
	e.mu.Lock()
	e.settings = s
	e.mu.Unlock()
}

// Hydrate loads all three collections concurrently, reconciles the tag index
// against the loaded notes and marks the engine ready.
// Storage failures never fail hydration; only ctx cancellation does.
func (e *Engine) Hydrate(ctx context.Context) error {
	if err := e.loadAll(ctx); err != nil {
		return err
	}
	e.finishHydrate()
	return nil
}

func (e *Engine) loadAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { e.HydrateNotes(gctx); return nil })
	g.Go(func() error { e.HydrateTags(gctx); return nil })
	g.Go(func() error { e.HydrateSettings(gctx); return nil })
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("hydrate: %w", err)
	}
	return nil
}

// finishHydrate repairs counts that drifted while the notes and tags blobs were
// written independently or edited outside the process.
func (e *Engine) finishHydrate() {
	e.mu.Lock()
	tags, changed := tagsync.Sync(e.notes, e.tags)
	if changed {
		e.tags = tags
		e.persist.ScheduleTags(e.encodeTags)
	}
	notes, ntags := len(e.notes), len(e.tags)
	e.mu.Unlock()
	e.logger.Info("notebook hydrated",
		slog.Int("notes", notes), slog.Int("tags", ntags), slog.Bool("tags_reconciled", changed))

	e.ready.Store(true)
	e.emit(Event{Kind: Reloaded})
}

// Reload discards pending writes and hydrates again from storage. It is used
// after storage was changed underneath the engine, e.g. by an external edit.
func (e *Engine) Reload(ctx context.Context) error {
	return e.ReplaceStorage(ctx, nil)
}

// ReplaceStorage runs replace with persistence suspended and then hydrates from
// storage. Pending writes are discarded and writes already running finish
// before replace starts, so nothing encoded from the previous state lands on
// top of what replace wrote. When replace reports false storage is taken as
// unchanged and nothing is reloaded. A nil replace only reloads.
func (e *Engine) ReplaceStorage(ctx context.Context, replace func(context.Context) bool) error {
	e.persist.Suspend()
	ok := replace == nil || replace(ctx)
	var err error
	if ok {
		err = e.loadAll(ctx)
	}
	e.persist.Resume()
	if !ok || err != nil {
		return err
	}
	e.finishHydrate()
	return nil
}

// Reset discards pending writes, removes the three collections from storage
// and returns memory to empty collections and default settings. The backup
// snapshot is kept.
func (e *Engine) Reset(ctx context.Context) error {
	e.persist.Suspend()

	e.mu.Lock()
	e.notes = []models.Note{}
	e.tags = []models.Tag{}
	e.settings = models.DefaultSettings()
	e.mu.Unlock()

	err := e.store.Clear(ctx, storage.KeyNotes, storage.KeyTags, storage.KeySettings)
	e.persist.Resume()
	e.emit(Event{Kind: Reloaded})
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

func (e *Engine) load(ctx context.Context, key string, dst any) error {
	data, err := e.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			e.logger.Warn("hydrate: read failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		e.logger.Warn("hydrate: decode failed", slog.String("key", key), slog.String("error", err.Error()))
		return err
	}
	return nil
}
