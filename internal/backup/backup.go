// Package backup keeps a single snapshot of the durable collections.
//
// Backup and restore work on the raw stored blobs only; they never touch the
// in-memory engine. Callers reload the engine after a successful restore.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/zennote/internal/apperr"
	"github.com/starford/zennote/internal/models"
	"github.com/starford/zennote/internal/storage"
)

// Status is the outcome of a backup operation.
type Status string

// Outcomes.
const (
	StatusOK       Status = "ok"
	StatusNoBackup Status = "no_backup"
	StatusFailed   Status = "failed"
)

// Result reports an outcome with a user-facing message. Failures are reported
// here instead of returned as errors.
type Result struct {
	Status    Status     `json:"status"`
	Message   string     `json:"message"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool { return r.Status == StatusOK }

// Coordinator creates, restores and describes the backup snapshot.
type Coordinator struct {
	store  storage.Provider
	logger *slog.Logger
	now    func() time.Time
}

// NewCoordinator creates a backup coordinator over store. A nil now uses time.Now.
func NewCoordinator(store storage.Provider, logger *slog.Logger, now func() time.Time) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Coordinator{store: store, logger: logger, now: now}
}

// Create snapshots the three stored collections, replacing any previous backup.
func (c *Coordinator) Create(ctx context.Context) Result {
	snap := models.BackupSnapshot{
		Version:   models.BackupVersion,
		CreatedAt: c.now().UTC(),
	}
	for key, dst := range map[string]*json.RawMessage{
		storage.KeyNotes:    &snap.Notes,
		storage.KeyTags:     &snap.Tags,
		storage.KeySettings: &snap.Settings,
	} {
		data, err := c.store.Get(ctx, key)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			continue
		case err != nil:
			return c.fail("create", "could not read stored data, please try again", fmt.Errorf("read %s: %w", key, err))
		}
		if !json.Valid(data) {
			return c.fail("create", "stored data is corrupt and cannot be backed up", fmt.Errorf("%s is not valid JSON", key))
		}
		*dst = json.RawMessage(data)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return c.fail("create", "could not encode backup", err)
	}
	if err := c.store.Set(ctx, storage.KeyBackup, data); err != nil {
		return c.fail("create", "could not write backup, please try again", err)
	}
	c.logger.Info("backup created", slog.Int("bytes", len(data)))
	return Result{Status: StatusOK, Message: "backup created", CreatedAt: &snap.CreatedAt}
}

// Restore writes every collection present in the snapshot back to its key.
// Collections that were absent when the snapshot was taken are left alone.
func (c *Coordinator) Restore(ctx context.Context) Result {
	snap, err := c.load(ctx)
	if errors.Is(err, apperr.ErrNoBackup) {
		return Result{Status: StatusNoBackup, Message: "no backup found to restore"}
	}
	if err != nil {
		return c.fail("restore", "could not read backup, please try again", err)
	}

	for key, raw := range map[string]json.RawMessage{
		storage.KeyNotes:    snap.Notes,
		storage.KeyTags:     snap.Tags,
		storage.KeySettings: snap.Settings,
	} {
		if isNull(raw) {
			continue
		}
		if err := c.store.Set(ctx, key, raw); err != nil {
			return c.fail("restore", "could not restore backup, please try again", fmt.Errorf("write %s: %w", key, err))
		}
	}
	c.logger.Info("backup restored", slog.String("created_at", snap.CreatedAt.Format(time.RFC3339)))
	return Result{Status: StatusOK, Message: "backup restored", CreatedAt: &snap.CreatedAt}
}

// Info returns the creation time of the current backup, or nil when there is
// none or it cannot be read.
func (c *Coordinator) Info(ctx context.Context) *time.Time {
	snap, err := c.load(ctx)
	if err != nil {
		return nil
	}
	return &snap.CreatedAt
}

func (c *Coordinator) load(ctx context.Context) (models.BackupSnapshot, error) {
	var snap models.BackupSnapshot
	data, err := c.store.Get(ctx, storage.KeyBackup)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && len(bytes.TrimSpace(data)) == 0) {
		return snap, apperr.ErrNoBackup
	}
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("decode backup: %w", err)
	}
	return snap, nil
}

func (c *Coordinator) fail(op, msg string, err error) Result {
	c.logger.Warn("backup "+op+" failed", slog.String("error", err.Error()))
	return Result{Status: StatusFailed, Message: msg}
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}
