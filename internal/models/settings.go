package models

import (
	"encoding/json"
	"time"
)

// ThemeMode selects the presentation theme.
type ThemeMode string

// Theme modes.
const (
	ThemeLight  ThemeMode = "light"
	ThemeDark   ThemeMode = "dark"
	ThemeSystem ThemeMode = "system"
)

// Valid reports whether t is a known theme mode.
func (t ThemeMode) Valid() bool {
	switch t {
	case ThemeLight, ThemeDark, ThemeSystem:
		return true
	}
	return false
}

// AppSettings is the process-wide settings singleton.
type AppSettings struct {
	Theme               ThemeMode `json:"theme"`
	BackupPath          string    `json:"backupPath"`
	ImportExportHistory []string  `json:"importExportHistory"`
}

// DefaultSettings returns the settings used before anything was persisted.
func DefaultSettings() AppSettings {
	return AppSettings{
		Theme:               ThemeDark,
		BackupPath:          "",
		ImportExportHistory: []string{},
	}
}

// Clone returns a deep copy of s.
func (s AppSettings) Clone() AppSettings {
	out := s
	out.ImportExportHistory = append([]string{}, s.ImportExportHistory...)
	return out
}

// BackupVersion is the current backup snapshot format version.
const BackupVersion = 1

// BackupSnapshot is a point-in-time copy of the three durable blobs.
// A nil collection means the key was absent when the snapshot was taken.
type BackupSnapshot struct {
	Version   int             `json:"version"`
	CreatedAt time.Time       `json:"createdAt"`
	Notes     json.RawMessage `json:"notes"`
	Tags      json.RawMessage `json:"tags"`
	Settings  json.RawMessage `json:"settings"`
}
