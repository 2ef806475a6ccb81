// Package search derives filtered views over the live note collection.
package search

import (
	"slices"
	"strings"

	"github.com/starford/zennote/internal/models"
)

// LogicMode combines tag and keyword criteria.
type LogicMode string

// Logic modes.
const (
	And LogicMode = "AND"
	Or  LogicMode = "OR"
)

// ParseLogicMode accepts "and"/"or" in any case and defaults to And.
func ParseLogicMode(s string) LogicMode {
	if strings.EqualFold(strings.TrimSpace(s), string(Or)) {
		return Or
	}
	return And
}

// Filter narrows a search. Zero values disable a stage.
type Filter struct {
	Query     string    `json:"query"`
	Tags      []string  `json:"tags"`
	LogicMode LogicMode `json:"logicMode"`
	DateFrom  *int64    `json:"dateFrom,omitempty"`
	DateTo    *int64    `json:"dateTo,omitempty"`
	HasImages bool      `json:"hasImages,omitempty"`
}

// Search applies f to notes and returns matching live notes, pinned first and
// then most recently updated first. notes is not modified.
func Search(notes []models.Note, f Filter) []models.Note {
	out := make([]models.Note, 0, len(notes))
	for _, n := range notes {
		if n.InRecycleBin {
			continue
		}
		out = append(out, n)
	}

	if len(f.Tags) > 0 {
		selected := lowerAll(f.Tags)
		out = slices.DeleteFunc(out, func(n models.Note) bool {
			return !matchTags(lowerAll(n.Tags), selected, f.LogicMode)
		})
	}

	if f.DateFrom != nil {
		from := *f.DateFrom
		out = slices.DeleteFunc(out, func(n models.Note) bool { return n.CreatedAt < from })
	}
	if f.DateTo != nil {
		to := *f.DateTo
		out = slices.DeleteFunc(out, func(n models.Note) bool { return n.CreatedAt > to })
	}

	if f.HasImages {
		out = slices.DeleteFunc(out, func(n models.Note) bool { return !n.HasImages() })
	}

	if keywords := strings.Fields(strings.ToLower(f.Query)); len(keywords) > 0 {
		out = slices.DeleteFunc(out, func(n models.Note) bool {
			haystack := strings.ToLower(n.Content + " " + strings.Join(n.Tags, " "))
			return !matchKeywords(haystack, keywords, f.LogicMode)
		})
	}

	slices.SortStableFunc(out, func(a, b models.Note) int {
		if a.IsPinned != b.IsPinned {
			if a.IsPinned {
				return -1
			}
			return 1
		}
		switch {
		case a.UpdatedAt > b.UpdatedAt:
			return -1
		case a.UpdatedAt < b.UpdatedAt:
			return 1
		}
		return 0
	})
	return out
}

// matchTags reports whether the note's tags satisfy the selection. A selected
// tag matches when any note tag contains it as a substring.
func matchTags(noteTags, selected []string, mode LogicMode) bool {
	hit := func(sel string) bool {
		return slices.ContainsFunc(noteTags, func(nt string) bool {
			return strings.Contains(nt, sel)
		})
	}
	if mode == Or {
		return slices.ContainsFunc(selected, hit)
	}
	for _, sel := range selected {
		if !hit(sel) {
			return false
		}
	}
	return true
}

func matchKeywords(haystack string, keywords []string, mode LogicMode) bool {
	if mode == Or {
		return slices.ContainsFunc(keywords, func(kw string) bool {
			return strings.Contains(haystack, kw)
		})
	}
	for _, kw := range keywords {
		if !strings.Contains(haystack, kw) {
			return false
		}
	}
	return true
}

// Tags filters tag names by case-insensitive substring. A blank query returns
// every name.
func Tags(allNames []string, query string) []string {
	if strings.TrimSpace(query) == "" {
		return allNames
	}
	q := strings.ToLower(query)
	var out []string
	for _, name := range allNames {
		if strings.Contains(strings.ToLower(name), q) {
			out = append(out, name)
		}
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
