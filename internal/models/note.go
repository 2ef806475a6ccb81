// Package models defines the domain types for ZenNote.
package models

import "github.com/google/uuid"

// RecycleGraceDays is the number of days a soft-deleted note stays restorable.
const RecycleGraceDays = 14

// NoteImage is a reference to an image attached to a note.
type NoteImage struct {
	ID     string `json:"id"`
	NoteID string `json:"noteId"`
	URI    string `json:"uri"`
	Order  int    `json:"order"`
}

// Note is a user-authored unit of content.
// Timestamps are milliseconds since the Unix epoch.
type Note struct {
	ID                string      `json:"id"`
	Content           string      `json:"content"`
	Tags              []string    `json:"tags"`
	Images            []NoteImage `json:"images"`
	CreatedAt         int64       `json:"createdAt"`
	UpdatedAt         int64       `json:"updatedAt"`
	DeletedAt         *int64      `json:"deletedAt,omitempty"`
	InRecycleBin      bool        `json:"inRecycleBin"`
	RecycleRemainDays *int        `json:"recycleRemainDays,omitempty"`
	IsPinned          bool        `json:"isPinned,omitempty"`
}

// Clone returns a deep copy of n so callers can never alias engine state.
func (n Note) Clone() Note {
	out := n
	if n.Tags != nil {
		out.Tags = append([]string(nil), n.Tags...)
	}
	if n.Images != nil {
		out.Images = append([]NoteImage(nil), n.Images...)
	}
	if n.DeletedAt != nil {
		v := *n.DeletedAt
		out.DeletedAt = &v
	}
	if n.RecycleRemainDays != nil {
		v := *n.RecycleRemainDays
		out.RecycleRemainDays = &v
	}
	return out
}

// HasImages reports whether the note carries at least one image.
func (n Note) HasImages() bool {
	return len(n.Images) > 0
}

// CloneNotes deep-copies a note slice.
func CloneNotes(notes []Note) []Note {
	out := make([]Note, len(notes))
	for i, n := range notes {
		out[i] = n.Clone()
	}
	return out
}

// NewID returns a fresh identifier with the given prefix, e.g. "note-<uuid>".
func NewID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
