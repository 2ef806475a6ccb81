// Package apperr holds the sentinel errors shared across ZenNote packages.
package apperr

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrNoBackup   = errors.New("no backup")
	ErrConflict   = errors.New("already exists")
)
