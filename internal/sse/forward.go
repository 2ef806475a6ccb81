package sse

import "github.com/starford/zennote/internal/notebook"

// Forward relays a notebook change to connected clients. It is meant to be
// registered with notebook.WithNotifier.
func (b *Broker) Forward(ev notebook.Event) {
	switch ev.Kind {
	case notebook.NoteCreated, notebook.NoteUpdated, notebook.NoteDeleted:
		b.PublishNoteEvent(string(ev.Kind), ev.NoteID)
	case notebook.TagsUpdated:
		b.PublishTagsUpdated()
	case notebook.SettingsUpdated:
		b.Publish(Event{Type: TypeSettingsUpdated, Data: map[string]string{}})
	case notebook.Reloaded:
		b.Publish(Event{Type: TypeReloaded, Data: map[string]string{}})
	}
}
