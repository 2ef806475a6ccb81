package notebook

import (
	"fmt"
	"slices"
	"strings"

	"github.com/starford/zennote/internal/apperr"
	"github.com/starford/zennote/internal/models"
	"github.com/starford/zennote/internal/tagsync"
)

// TagPatch carries the user-editable tag fields. Nil fields are left as is.
type TagPatch struct {
	Name  *string `json:"name,omitempty"`
	Order *int    `json:"order,omitempty"`
}

// Tags returns a copy of the tag index in its stored order.
func (e *Engine) Tags() []models.Tag {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return models.CloneTags(e.tags)
}

// TagNames returns the name of every tag in stored order.
func (e *Engine) TagNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, len(e.tags))
	for i, t := range e.tags {
		names[i] = t.Name
	}
	return names
}

// NormalizeTagName trims whitespace and leading '#' characters.
func NormalizeTagName(name string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(name), "#"))
}

// AddTag creates a tag explicitly. Names are unique case-insensitively. The
// initial count reflects current live references; a tag nothing references is
// pruned by the next note mutation.
func (e *Engine) AddTag(name string) (models.Tag, error) {
	name = NormalizeTagName(name)
	if name == "" {
		return models.Tag{}, fmt.Errorf("tag name is required: %w", apperr.ErrValidation)
	}

	e.mu.Lock()
	if e.tagIndexFold(name) >= 0 {
		e.mu.Unlock()
		return models.Tag{}, fmt.Errorf("tag %q: %w", name, apperr.ErrConflict)
	}
	t := e.appendTagLocked(name)
	e.mu.Unlock()

	e.emit(Event{Kind: TagsUpdated})
	return t, nil
}

// EnsureTags creates a tag for every name with no case-insensitive match and
// returns the created tags. It is called before a note referencing names is
// saved; counts are settled by the reconciliation that follows the save.
func (e *Engine) EnsureTags(names []string) []models.Tag {
	var created []models.Tag
	e.mu.Lock()
	for _, raw := range names {
		name := NormalizeTagName(raw)
		if name == "" || e.tagIndexFold(name) >= 0 {
			continue
		}
		created = append(created, e.appendTagLocked(name))
	}
	e.mu.Unlock()

	if len(created) > 0 {
		e.emit(Event{Kind: TagsUpdated})
	}
	return created
}

// UpdateTag applies p to the tag. A rename is carried into every note that
// references the old name so the tag keeps its references. NoteCount is never
// editable.
func (e *Engine) UpdateTag(id string, p TagPatch) (models.Tag, error) {
	var events []Event
	e.mu.Lock()
	i := e.tagIndex(id)
	if i < 0 {
		e.mu.Unlock()
		return models.Tag{}, fmt.Errorf("tag %s: %w", id, apperr.ErrNotFound)
	}
	if p.Name != nil {
		name := NormalizeTagName(*p.Name)
		if name == "" {
			e.mu.Unlock()
			return models.Tag{}, fmt.Errorf("tag name is required: %w", apperr.ErrValidation)
		}
		if j := e.tagIndexFold(name); j >= 0 && j != i {
			e.mu.Unlock()
			return models.Tag{}, fmt.Errorf("tag %q: %w", name, apperr.ErrConflict)
		}
		if old := e.tags[i].Name; old != name {
			e.tags[i].Name = name
			events = e.renameInNotesLocked(old, name)
		}
	}
	if p.Order != nil {
		e.tags[i].Order = *p.Order
	}
	t := e.tags[i]
	if len(events) > 0 {
		e.syncLocked()
		if j := e.tagIndex(id); j >= 0 {
			t = e.tags[j]
		}
	}
	e.persist.ScheduleTags(e.encodeTags)
	e.mu.Unlock()

	e.emit(append(events, Event{Kind: TagsUpdated})...)
	return t, nil
}

// renameInNotesLocked replaces old with name in every note's tag list.
func (e *Engine) renameInNotesLocked(old, name string) []Event {
	var events []Event
	for i := range e.notes {
		if !slices.Contains(e.notes[i].Tags, old) {
			continue
		}
		tags := append([]string{}, e.notes[i].Tags...)
		for j := range tags {
			if tags[j] == old {
				tags[j] = name
			}
		}
		e.notes[i].Tags = tags
		events = append(events, Event{Kind: NoteUpdated, NoteID: e.notes[i].ID})
	}
	return events
}

// DeleteTag removes the tag record. Notes keep the name in their tag lists.
func (e *Engine) DeleteTag(id string) bool {
	e.mu.Lock()
	i := e.tagIndex(id)
	if i < 0 {
		e.mu.Unlock()
		return false
	}
	e.tags = append(e.tags[:i:i], e.tags[i+1:]...)
	e.persist.ScheduleTags(e.encodeTags)
	e.mu.Unlock()

	e.emit(Event{Kind: TagsUpdated})
	return true
}

// ReorderTags rearranges the index to follow ids and renumbers Order from zero.
// Tags missing from ids keep their relative order after the listed ones.
func (e *Engine) ReorderTags(ids []string) []models.Tag {
	e.mu.Lock()
	rank := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, dup := rank[id]; !dup {
			rank[id] = i
		}
	}
	pos := func(t models.Tag) int {
		if r, ok := rank[t.ID]; ok {
			return r
		}
		return len(ids)
	}
	next := models.CloneTags(e.tags)
	slices.SortStableFunc(next, func(a, b models.Tag) int { return pos(a) - pos(b) })
	for i := range next {
		next[i].Order = i
	}
	e.tags = next
	e.persist.ScheduleTags(e.encodeTags)
	out := models.CloneTags(next)
	e.mu.Unlock()

	e.emit(Event{Kind: TagsUpdated})
	return out
}

// appendTagLocked adds a new tag at the end of the index and schedules a write.
func (e *Engine) appendTagLocked(name string) models.Tag {
	t := models.Tag{
		ID:        models.NewID("tag"),
		Name:      name,
		NoteCount: tagsync.CountFor(e.notes, name),
		Order:     len(e.tags),
	}
	e.tags = append(slices.Clip(e.tags), t)
	e.persist.ScheduleTags(e.encodeTags)
	return t
}

func (e *Engine) tagIndex(id string) int {
	return slices.IndexFunc(e.tags, func(t models.Tag) bool { return t.ID == id })
}

func (e *Engine) tagIndexFold(name string) int {
	return slices.IndexFunc(e.tags, func(t models.Tag) bool { return strings.EqualFold(t.Name, name) })
}
