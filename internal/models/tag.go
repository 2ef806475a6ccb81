package models

// Tag is a named grouping with a live reference count.
// NoteCount is owned by the tag synchronizer.
type Tag struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	NoteCount int    `json:"noteCount"`
	Order     int    `json:"order"`
}

// CloneTags copies a tag slice.
func CloneTags(tags []Tag) []Tag {
	if tags == nil {
		return nil
	}
	return append([]Tag(nil), tags...)
}
