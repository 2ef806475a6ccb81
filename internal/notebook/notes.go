package notebook

import (
	"fmt"
	"strings"

	"github.com/starford/zennote/internal/apperr"
	"github.com/starford/zennote/internal/models"
)

// MaxImages is the number of images a single note can carry.
const MaxImages = 10

// NotePatch carries the fields UpdateNote merges. Nil fields are left as is.
type NotePatch struct {
	Content  *string             `json:"content,omitempty"`
	Tags     *[]string           `json:"tags,omitempty"`
	Images   *[]models.NoteImage `json:"images,omitempty"`
	IsPinned *bool               `json:"isPinned,omitempty"`
}

// NewNote builds a note stamped with the current time. It does not validate
// content; callers reject blank content before saving.
func (e *Engine) NewNote(content string, tags []string) models.Note {
	now := e.nowMillis()
	if tags == nil {
		tags = []string{}
	}
	return models.Note{
		ID:        models.NewID("note"),
		Content:   content,
		Tags:      append([]string(nil), tags...),
		Images:    []models.NoteImage{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddNote inserts note at the head of the collection.
func (e *Engine) AddNote(note models.Note) {
	n := note.Clone()
	e.commitNotes(func() []Event {
		e.notes = append([]models.Note{n}, e.notes...)
		return []Event{{Kind: NoteCreated, NoteID: n.ID}}
	})
}

// UpdateNote merges p into the note and stamps UpdatedAt. Unknown ids are ignored;
// the result reports whether the note existed.
func (e *Engine) UpdateNote(id string, p NotePatch) bool {
	return e.commitNotes(func() []Event {
		i := e.indexOf(id)
		if i < 0 {
			return nil
		}
		n := &e.notes[i]
		if p.Content != nil {
			n.Content = *p.Content
		}
		if p.Tags != nil {
			n.Tags = append([]string{}, (*p.Tags)...)
		}
		if p.Images != nil {
			n.Images = normalizeImages(id, *p.Images)
		}
		if p.IsPinned != nil {
			n.IsPinned = *p.IsPinned
		}
		n.UpdatedAt = e.nowMillis()
		return []Event{{Kind: NoteUpdated, NoteID: id}}
	})
}

// MoveToRecycleBin soft-deletes the note and starts its grace period.
func (e *Engine) MoveToRecycleBin(id string) bool {
	return e.commitNotes(func() []Event {
		i := e.indexOf(id)
		if i < 0 {
			return nil
		}
		now := e.nowMillis()
		days := models.RecycleGraceDays
		e.notes[i].InRecycleBin = true
		e.notes[i].DeletedAt = &now
		e.notes[i].RecycleRemainDays = &days
		return []Event{{Kind: NoteUpdated, NoteID: id}}
	})
}

// RestoreFromRecycleBin returns a soft-deleted note to the live collection.
func (e *Engine) RestoreFromRecycleBin(id string) bool {
	return e.commitNotes(func() []Event {
		i := e.indexOf(id)
		if i < 0 {
			return nil
		}
		e.notes[i].InRecycleBin = false
		e.notes[i].DeletedAt = nil
		e.notes[i].RecycleRemainDays = nil
		return []Event{{Kind: NoteUpdated, NoteID: id}}
	})
}

// DeleteNote removes the note permanently, recycled or not.
func (e *Engine) DeleteNote(id string) bool {
	return e.commitNotes(func() []Event {
		i := e.indexOf(id)
		if i < 0 {
			return nil
		}
		e.notes = append(e.notes[:i:i], e.notes[i+1:]...)
		return []Event{{Kind: NoteDeleted, NoteID: id}}
	})
}

// ClearRecycleBin permanently removes every recycled note and returns how many
// were removed.
func (e *Engine) ClearRecycleBin() int {
	removed := 0
	e.commitNotes(func() []Event {
		var events []Event
		kept := make([]models.Note, 0, len(e.notes))
		for _, n := range e.notes {
			if n.InRecycleBin {
				events = append(events, Event{Kind: NoteDeleted, NoteID: n.ID})
				continue
			}
			kept = append(kept, n)
		}
		removed = len(events)
		if removed == 0 {
			return nil
		}
		e.notes = kept
		return events
	})
	return removed
}

// TogglePin flips the pinned flag without touching UpdatedAt.
func (e *Engine) TogglePin(id string) bool {
	return e.commitNotes(func() []Event {
		i := e.indexOf(id)
		if i < 0 {
			return nil
		}
		e.notes[i].IsPinned = !e.notes[i].IsPinned
		return []Event{{Kind: NoteUpdated, NoteID: id}}
	})
}

// AddImage appends an image reference to the note.
func (e *Engine) AddImage(noteID, uri string) (models.NoteImage, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return models.NoteImage{}, fmt.Errorf("image uri is required: %w", apperr.ErrValidation)
	}
	var (
		img models.NoteImage
		err error
	)
	e.commitNotes(func() []Event {
		i := e.indexOf(noteID)
		if i < 0 {
			err = fmt.Errorf("note %s: %w", noteID, apperr.ErrNotFound)
			return nil
		}
		n := &e.notes[i]
		if len(n.Images) >= MaxImages {
			err = fmt.Errorf("note %s already has %d images: %w", noteID, MaxImages, apperr.ErrValidation)
			return nil
		}
		img = models.NoteImage{
			ID:     models.NewID("img"),
			NoteID: noteID,
			URI:    uri,
			Order:  len(n.Images),
		}
		n.Images = append(append([]models.NoteImage{}, n.Images...), img)
		n.UpdatedAt = e.nowMillis()
		return []Event{{Kind: NoteUpdated, NoteID: noteID}}
	})
	return img, err
}

// RemoveImage drops an image and renumbers the rest from zero.
func (e *Engine) RemoveImage(noteID, imageID string) error {
	var err error
	e.commitNotes(func() []Event {
		i := e.indexOf(noteID)
		if i < 0 {
			err = fmt.Errorf("note %s: %w", noteID, apperr.ErrNotFound)
			return nil
		}
		n := &e.notes[i]
		kept := make([]models.NoteImage, 0, len(n.Images))
		for _, img := range n.Images {
			if img.ID != imageID {
				kept = append(kept, img)
			}
		}
		if len(kept) == len(n.Images) {
			err = fmt.Errorf("image %s: %w", imageID, apperr.ErrNotFound)
			return nil
		}
		n.Images = normalizeImages(noteID, kept)
		n.UpdatedAt = e.nowMillis()
		return []Event{{Kind: NoteUpdated, NoteID: noteID}}
	})
	return err
}

// Notes returns a copy of the whole collection, recycled notes included, with
// RecycleRemainDays recomputed.
func (e *Engine) Notes() []models.Note {
	e.mu.RLock()
	out := models.CloneNotes(e.notes)
	e.mu.RUnlock()
	return refreshRecycleDays(out, e.nowMillis())
}

// Note returns a copy of a single note.
func (e *Engine) Note(id string) (models.Note, error) {
	e.mu.RLock()
	i := e.indexOf(id)
	if i < 0 {
		e.mu.RUnlock()
		return models.Note{}, fmt.Errorf("note %s: %w", id, apperr.ErrNotFound)
	}
	n := e.notes[i].Clone()
	e.mu.RUnlock()
	return refreshRecycleDays([]models.Note{n}, e.nowMillis())[0], nil
}

// SortedNotes returns the live notes in list order.
func (e *Engine) SortedNotes() []models.Note {
	return SortedNotes(e.Notes())
}

// RecycleBinNotes returns the recycled notes in bin order.
func (e *Engine) RecycleBinNotes() []models.Note {
	return RecycleBinNotes(e.Notes(), e.nowMillis())
}

// normalizeImages assigns ownership and a dense 0-based order in slice order.
func normalizeImages(noteID string, images []models.NoteImage) []models.NoteImage {
	out := make([]models.NoteImage, len(images))
	for i, img := range images {
		if img.ID == "" {
			img.ID = models.NewID("img")
		}
		img.NoteID = noteID
		img.Order = i
		out[i] = img
	}
	return out
}
