package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeCallback is called once per key after an external modification settles.
type ChangeCallback func(key string)

const watchSettle = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the provider root and reports keys whose
// files were changed by something other than this process, until ctx is
// cancelled. Bursts of events are coalesced: cb fires watchSettle after the
// last event, once per changed key.
func Watch(ctx context.Context, store *FS, logger *slog.Logger, cb ChangeCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(store.Root()); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", store.Root()))

	pending := make(map[string]struct{})
	var settleTimer *time.Timer
	var settleCh <-chan time.Time

	scheduleSettle := func() {
		if settleTimer == nil {
			settleTimer = time.NewTimer(watchSettle)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(watchSettle)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-settleCh:
			for key := range pending {
				if !externalChange(store, key) {
					logger.Debug("watcher: own write ignored", slog.String("key", key))
					continue
				}
				logger.Debug("watcher: external change", slog.String("key", key))
				if cb != nil {
					cb(key)
				}
			}
			clear(pending)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			key, ok := store.KeyForPath(ev.Name)
			if !ok {
				continue
			}
			pending[key] = struct{}{}
			scheduleSettle()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// externalChange compares the file on disk with the last value this process wrote.
func externalChange(store *FS, key string) bool {
	data, err := store.Get(context.Background(), key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Removal is external unless we removed it ourselves, which
			// also forgets the checksum.
			store.mu.Lock()
			_, tracked := store.written[key]
			store.mu.Unlock()
			return tracked
		}
		return false
	}
	return !store.OwnWrite(key, data)
}
