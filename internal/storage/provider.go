// Package storage defines the durable key-value abstraction and its backends.
package storage

import (
	"context"
	"errors"
)

// Logical keys used by ZenNote.
const (
	KeyNotes    = "notes"
	KeyTags     = "tags"
	KeySettings = "settings"
	KeyBackup   = "backup"
)

// CollectionKeys are the keys holding the three primary collections.
var CollectionKeys = []string{KeyNotes, KeyTags, KeySettings}

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("storage: key not found")

// Provider is the interface for durable key-value operations.
type Provider interface {
	// Get returns the stored bytes for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
	// Clear removes every listed key.
	Clear(ctx context.Context, keys ...string) error
}
