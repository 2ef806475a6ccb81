// Package notebook owns the in-memory note, tag and settings collections.
//
// Every note mutation reconciles the tag index through tagsync and requests a
// debounced write of each touched collection. Reads always observe the latest
// mutation; durable storage lags by the debounce window.
package notebook

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/zennote/internal/models"
	"github.com/starford/zennote/internal/persist"
	"github.com/starford/zennote/internal/storage"
	"github.com/starford/zennote/internal/tagsync"
)

// EventKind names a change observed by subscribers.
type EventKind string

// Event kinds.
const (
	NoteCreated     EventKind = "note.created"
	NoteUpdated     EventKind = "note.updated"
	NoteDeleted     EventKind = "note.deleted"
	TagsUpdated     EventKind = "tags.updated"
	SettingsUpdated EventKind = "settings.updated"
	Reloaded        EventKind = "store.reloaded"
)

// Event describes a committed change. NoteID is empty for collection-wide events.
type Event struct {
	Kind   EventKind
	NoteID string
}

// Engine is the single owner of the three collections.
type Engine struct {
	mu       sync.RWMutex
	notes    []models.Note
	tags     []models.Tag
	settings models.AppSettings

	store   storage.Provider
	persist *persist.Coordinator
	logger  *slog.Logger
	now     func() time.Time
	notify  func(Event)
	ready   atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithNotifier registers fn to receive events after each committed change.
// fn is called without the engine lock held.
func WithNotifier(fn func(Event)) Option {
	return func(e *Engine) { e.notify = fn }
}

// New creates an engine with empty collections and default settings.
// Call Hydrate before serving mutations.
func New(store storage.Provider, coord *persist.Coordinator, opts ...Option) *Engine {
	e := &Engine{
		notes:    []models.Note{},
		tags:     []models.Tag{},
		settings: models.DefaultSettings(),
		store:    store,
		persist:  coord,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Ready reports whether hydration has completed.
func (e *Engine) Ready() bool { return e.ready.Load() }

// Flush writes every pending collection immediately.
func (e *Engine) Flush() { e.persist.Flush() }

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time { return e.now() }

func (e *Engine) nowMillis() int64 { return e.now().UnixMilli() }

func (e *Engine) emit(events ...Event) {
	if e.notify == nil {
		return
	}
	for _, ev := range events {
		e.notify(ev)
	}
}

// syncLocked reconciles tags against notes and schedules writes. The caller
// holds e.mu for writing.
func (e *Engine) syncLocked() (tagsChanged bool) {
	tags, changed := tagsync.Sync(e.notes, e.tags)
	e.persist.ScheduleNotes(e.encodeNotes)
	if changed {
		e.tags = tags
		e.persist.ScheduleTags(e.encodeTags)
	}
	return changed
}

// commitNotes runs mutate under the write lock. A nil result means nothing
// changed; otherwise tags are reconciled, writes are scheduled and the returned
// events are emitted, followed by TagsUpdated when the index changed.
func (e *Engine) commitNotes(mutate func() []Event) bool {
	e.mu.Lock()
	events := mutate()
	if events == nil {
		e.mu.Unlock()
		return false
	}
	if e.syncLocked() {
		events = append(events, Event{Kind: TagsUpdated})
	}
	e.mu.Unlock()

	e.emit(events...)
	return true
}

func (e *Engine) encodeNotes() ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return json.Marshal(e.notes)
}

func (e *Engine) encodeTags() ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return json.Marshal(e.tags)
}

func (e *Engine) encodeSettings() ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return json.Marshal(e.settings)
}

func (e *Engine) indexOf(id string) int {
	for i := range e.notes {
		if e.notes[i].ID == id {
			return i
		}
	}
	return -1
}
