package api

import (
	"time"

	"github.com/starford/zennote/internal/models"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Content string   `json:"content" example:"Buy oat milk" validate:"required"`
	Tags    []string `json:"tags" example:"errands,home"`
}

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []models.Note `json:"notes" validate:"required"`
	Total int           `json:"total" example:"42" validate:"required"`
}

// ClearRecycleBinResponse reports how many notes were removed.
type ClearRecycleBinResponse struct {
	Removed int `json:"removed" example:"3" validate:"required"`
}

// AddImageRequest is the JSON body for attaching an image by reference.
type AddImageRequest struct {
	URI string `json:"uri" example:"file:///photos/cat.jpg" validate:"required"`
}

// TagListResponse wraps tag listings.
type TagListResponse struct {
	Tags []models.Tag `json:"tags" validate:"required"`
}

// CreateTagRequest is the request body for creating a tag.
type CreateTagRequest struct {
	Name string `json:"name" example:"travel" validate:"required"`
}

// ReorderTagsRequest lists tag ids in their new order.
type ReorderTagsRequest struct {
	IDs []string `json:"ids" validate:"required"`
}

// ThemeRequest is the request body for changing the theme.
type ThemeRequest struct {
	Theme models.ThemeMode `json:"theme" example:"dark" validate:"required"`
}

// BackupInfoResponse reports when the current backup was taken.
type BackupInfoResponse struct {
	CreatedAt *time.Time `json:"createdAt"`
}

// ImportResponse summarizes a Markdown import.
type ImportResponse struct {
	Parsed   int           `json:"parsed" example:"5" validate:"required"`
	Imported int           `json:"imported" example:"4" validate:"required"`
	Notes    []models.Note `json:"notes" validate:"required"`
}
