package persist

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/zennote/internal/storage"
)

// DefaultDelay is the quiet period before a collection is written.
const DefaultDelay = 300 * time.Millisecond

// Encoder produces the full serialized collection at write time.
type Encoder func() ([]byte, error)

// Coordinator schedules debounced full-collection writes to a storage provider.
// Write failures are logged and dropped; nothing waits on a write.
type Coordinator struct {
	store  storage.Provider
	sched  *Scheduler
	delay  time.Duration
	logger *slog.Logger
}

// NewCoordinator creates a coordinator writing to store after delay.
// A non-positive delay falls back to DefaultDelay.
func NewCoordinator(store storage.Provider, delay time.Duration, logger *slog.Logger) *Coordinator {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:  store,
		sched:  NewScheduler(),
		delay:  delay,
		logger: logger,
	}
}

// Schedule requests a write of key using encode, replacing any pending write for key.
func (c *Coordinator) Schedule(key string, encode Encoder) {
	c.sched.Schedule(key, func() { c.write(key, encode) }, c.delay)
}

// ScheduleNotes requests a debounced write of the note collection.
func (c *Coordinator) ScheduleNotes(encode Encoder) { c.Schedule(storage.KeyNotes, encode) }

// ScheduleTags requests a debounced write of the tag collection.
func (c *Coordinator) ScheduleTags(encode Encoder) { c.Schedule(storage.KeyTags, encode) }

// ScheduleSettings requests a debounced write of the settings object.
func (c *Coordinator) ScheduleSettings(encode Encoder) { c.Schedule(storage.KeySettings, encode) }

// Pending reports whether a write for key is waiting.
func (c *Coordinator) Pending(key string) bool {
	return c.sched.Pending(key)
}

// CancelAll discards every pending write.
func (c *Coordinator) CancelAll() {
	c.sched.CancelAll()
}

// Suspend discards pending writes, ignores new requests until Resume and
// waits for writes already in progress.
func (c *Coordinator) Suspend() {
	c.sched.Suspend()
}

// Resume accepts write requests again.
func (c *Coordinator) Resume() {
	c.sched.Resume()
}

// Flush performs every pending write immediately.
func (c *Coordinator) Flush() {
	c.sched.Flush()
}

func (c *Coordinator) write(key string, encode Encoder) {
	data, err := encode()
	if err != nil {
		c.logger.Warn("persist: encode failed", slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	if err := c.store.Set(context.Background(), key, data); err != nil {
		c.logger.Warn("persist: write failed", slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	c.logger.Debug("persist: wrote", slog.String("key", key), slog.Int("bytes", len(data)))
}
