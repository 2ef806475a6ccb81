// Package tagsync keeps the tag index consistent with the notes that reference it.
//
// Notes carry tag names as free-form strings rather than foreign keys. After
// every note mutation the index is reconciled: each tag's NoteCount is set to
// the number of live (non-recycled) references, and tags left with no live
// reference are dropped. Reconciliation never creates tags.
package tagsync

import "github.com/starford/zennote/internal/models"

// Count returns the number of live references per tag name. A note listing
// the same name twice contributes two references.
func Count(notes []models.Note) map[string]int {
	counts := make(map[string]int)
	for _, n := range notes {
		if n.InRecycleBin {
			continue
		}
		for _, name := range n.Tags {
			counts[name]++
		}
	}
	return counts
}

// CountFor returns the live reference count of a single tag name.
func CountFor(notes []models.Note, name string) int {
	c := 0
	for _, n := range notes {
		if n.InRecycleBin {
			continue
		}
		for _, t := range n.Tags {
			if t == name {
				c++
			}
		}
	}
	return c
}

// Sync reconciles tags against notes and returns the resulting index.
// changed reports whether any tag was removed or had its count updated.
// The input slice is not modified.
func Sync(notes []models.Note, tags []models.Tag) (out []models.Tag, changed bool) {
	counts := Count(notes)
	out = make([]models.Tag, 0, len(tags))
	for _, t := range tags {
		c := counts[t.Name]
		if c == 0 {
			changed = true
			continue
		}
		if t.NoteCount != c {
			t.NoteCount = c
			changed = true
		}
		out = append(out, t)
	}
	return out, changed
}
