package notebook

import (
	"slices"
	"time"

	"github.com/starford/zennote/internal/models"
)

const dayMillis = int64(24 * time.Hour / time.Millisecond)

// CalcRecycleRemainDays returns the whole days left before a note deleted at
// deletedAt expires, never below zero. Both arguments are epoch milliseconds.
func CalcRecycleRemainDays(deletedAt, now int64) int {
	elapsed := floorDiv(now-deletedAt, dayMillis)
	return int(max(0, int64(models.RecycleGraceDays)-elapsed))
}

// SortedNotes returns the live notes, pinned first and then newest first by
// CreatedAt. Equal keys keep their input order.
func SortedNotes(notes []models.Note) []models.Note {
	out := make([]models.Note, 0, len(notes))
	for _, n := range notes {
		if !n.InRecycleBin {
			out = append(out, n)
		}
	}
	slices.SortStableFunc(out, func(a, b models.Note) int {
		if a.IsPinned != b.IsPinned {
			if a.IsPinned {
				return -1
			}
			return 1
		}
		return cmpDesc(a.CreatedAt, b.CreatedAt)
	})
	return out
}

// RecycleBinNotes returns the recycled notes with RecycleRemainDays recomputed
// for now, most recently deleted first. A recycled note without DeletedAt gets
// the full grace period.
func RecycleBinNotes(notes []models.Note, now int64) []models.Note {
	var out []models.Note
	for _, n := range notes {
		if n.InRecycleBin {
			out = append(out, n.Clone())
		}
	}
	out = refreshRecycleDays(out, now)
	slices.SortStableFunc(out, func(a, b models.Note) int {
		return cmpDesc(deref(a.DeletedAt), deref(b.DeletedAt))
	})
	if out == nil {
		out = []models.Note{}
	}
	return out
}

// Activity counts live notes per day over a trailing window of whole weeks.
type Activity struct {
	// Weeks runs oldest to newest; each week holds seven daily counts, oldest first.
	Weeks [][]int `json:"weeks"`
	Max   int     `json:"max"`
	Total int     `json:"total"`
}

// ActivityHeatmap buckets live notes by creation day (UTC) for the weeks ending at now.
func ActivityHeatmap(notes []models.Note, now int64, weeks int) Activity {
	if weeks <= 0 {
		weeks = 13
	}
	perDay := make(map[int64]int)
	total := 0
	for _, n := range notes {
		if n.InRecycleBin {
			continue
		}
		perDay[floorDiv(n.CreatedAt, dayMillis)]++
		total++
	}

	act := Activity{Weeks: make([][]int, 0, weeks), Max: 1, Total: total}
	weekMillis := 7 * dayMillis
	for w := weeks - 1; w >= 0; w-- {
		week := make([]int, 0, 7)
		for d := 6; d >= 0; d-- {
			start := now - int64(w)*weekMillis - int64(d)*dayMillis
			c := perDay[floorDiv(start, dayMillis)]
			act.Max = max(act.Max, c)
			week = append(week, c)
		}
		act.Weeks = append(act.Weeks, week)
	}
	return act
}

// refreshRecycleDays recomputes RecycleRemainDays in place for recycled notes.
func refreshRecycleDays(notes []models.Note, now int64) []models.Note {
	for i := range notes {
		if !notes[i].InRecycleBin {
			continue
		}
		days := models.RecycleGraceDays
		if notes[i].DeletedAt != nil {
			days = CalcRecycleRemainDays(*notes[i].DeletedAt, now)
		}
		notes[i].RecycleRemainDays = &days
	}
	return notes
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func cmpDesc(a, b int64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	}
	return 0
}

func deref(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
