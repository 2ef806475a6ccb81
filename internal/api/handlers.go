package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/zennote/internal/apperr"
	"github.com/starford/zennote/internal/backup"
	"github.com/starford/zennote/internal/notebook"
	"github.com/starford/zennote/internal/search"
)

// Handler holds API route handlers.
type Handler struct {
	eng    *notebook.Engine
	backup *backup.Coordinator
}

// NewHandler creates a new Handler.
func NewHandler(eng *notebook.Engine, bk *backup.Coordinator) *Handler {
	return &Handler{eng: eng, backup: bk}
}

func (h *Handler) writeNote(w http.ResponseWriter, status int, id string) {
	note, err := h.eng.Note(id)
	if err != nil {
		writeError(w, "read note", err)
		return
	}
	writeJSON(w, status, note)
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List live notes, pinned first then newest first
//	@Tags			notes
//	@Produce		json
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, _ *http.Request) {
	notes := h.eng.SortedNotes()
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: len(notes)})
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a single note by id
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	models.Note
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	h.writeNote(w, http.StatusOK, chi.URLParam(r, "id"))
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "create note", err)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, "create note", fmt.Errorf("content is required: %w", apperr.ErrValidation))
		return
	}
	tags := normalizeTags(req.Tags)
	h.eng.EnsureTags(tags)
	note := h.eng.NewNote(req.Content, tags)
	h.eng.AddNote(note)
	h.writeNote(w, http.StatusCreated, note.ID)
}

// UpdateNote handles PATCH /api/notes/{id}.
//
//	@Summary		Merge fields into a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Note id"
//	@Param			body	body		notebook.NotePatch	true	"Fields to change"
//	@Success		200		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [patch]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch notebook.NotePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, "update note", err)
		return
	}
	if patch.Content != nil && strings.TrimSpace(*patch.Content) == "" {
		writeError(w, "update note", fmt.Errorf("content must not be blank: %w", apperr.ErrValidation))
		return
	}
	if _, err := h.eng.Note(id); err != nil {
		writeError(w, "update note", err)
		return
	}
	if patch.Tags != nil {
		tags := normalizeTags(*patch.Tags)
		patch.Tags = &tags
		h.eng.EnsureTags(tags)
	}
	if !h.eng.UpdateNote(id, patch) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	h.writeNote(w, http.StatusOK, id)
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary		Permanently delete a note
//	@Tags			notes
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Note deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	if !h.eng.DeleteNote(chi.URLParam(r, "id")) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TogglePin handles POST /api/notes/{id}/pin.
//
//	@Summary		Toggle whether a note is pinned
//	@Tags			notes
//	@Produce		json
//	@Param			id	path	string	true	"Note id"
//	@Success		200	{object}	models.Note
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/pin [post]
func (h *Handler) TogglePin(w http.ResponseWriter, r *http.Request) {
	h.noteAction(w, chi.URLParam(r, "id"), h.eng.TogglePin)
}

// RecycleNote handles POST /api/notes/{id}/recycle.
//
//	@Summary		Move a note to the recycle bin
//	@Tags			recycle-bin
//	@Produce		json
//	@Param			id	path	string	true	"Note id"
//	@Success		200	{object}	models.Note
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/recycle [post]
func (h *Handler) RecycleNote(w http.ResponseWriter, r *http.Request) {
	h.noteAction(w, chi.URLParam(r, "id"), h.eng.MoveToRecycleBin)
}

// RestoreNote handles POST /api/notes/{id}/restore.
//
//	@Summary		Restore a note from the recycle bin
//	@Tags			recycle-bin
//	@Produce		json
//	@Param			id	path	string	true	"Note id"
//	@Success		200	{object}	models.Note
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/restore [post]
func (h *Handler) RestoreNote(w http.ResponseWriter, r *http.Request) {
	h.noteAction(w, chi.URLParam(r, "id"), h.eng.RestoreFromRecycleBin)
}

func (h *Handler) noteAction(w http.ResponseWriter, id string, action func(string) bool) {
	if !action(id) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	h.writeNote(w, http.StatusOK, id)
}

// ListRecycleBin handles GET /api/recycle-bin.
//
//	@Summary		List recycled notes with remaining days, most recently deleted first
//	@Tags			recycle-bin
//	@Produce		json
//	@Success		200	{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/recycle-bin [get]
func (h *Handler) ListRecycleBin(w http.ResponseWriter, _ *http.Request) {
	notes := h.eng.RecycleBinNotes()
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: len(notes)})
}

// ClearRecycleBin handles DELETE /api/recycle-bin.
//
//	@Summary		Permanently delete every recycled note
//	@Tags			recycle-bin
//	@Produce		json
//	@Success		200	{object}	ClearRecycleBinResponse
//	@Security		BearerAuth
//	@Router			/recycle-bin [delete]
func (h *Handler) ClearRecycleBin(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ClearRecycleBinResponse{Removed: h.eng.ClearRecycleBin()})
}

// Search handles GET /api/search.
//
//	@Summary		Filter live notes by keywords, tags, date range and images
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	false	"Whitespace separated keywords"
//	@Param			tags	query		string	false	"Comma separated tag fragments"
//	@Param			mode	query		string	false	"Logic mode"	Enums(AND, OR)
//	@Param			from	query		int		false	"Earliest createdAt (ms, inclusive)"
//	@Param			to		query		int		false	"Latest createdAt (ms, inclusive)"
//	@Param			images	query		bool	false	"Only notes with images"
//	@Success		200		{object}	NoteListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := search.Filter{
		Query:     q.Get("q"),
		Tags:      splitList(q.Get("tags")),
		LogicMode: search.ParseLogicMode(q.Get("mode")),
	}
	var err error
	if f.DateFrom, err = parseMillis(q.Get("from")); err != nil {
		writeError(w, "search", err)
		return
	}
	if f.DateTo, err = parseMillis(q.Get("to")); err != nil {
		writeError(w, "search", err)
		return
	}
	if v := q.Get("images"); v != "" {
		if f.HasImages, err = strconv.ParseBool(v); err != nil {
			writeError(w, "search", fmt.Errorf("images must be a boolean: %w", apperr.ErrValidation))
			return
		}
	}

	notes := search.Search(h.eng.Notes(), f)
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: len(notes)})
}

// Activity handles GET /api/stats/activity.
//
//	@Summary		Count notes created per day for the activity heatmap
//	@Tags			stats
//	@Produce		json
//	@Param			weeks	query	int	false	"Number of weeks, at most 104"
//	@Success		200	{object}	notebook.Activity
//	@Security		BearerAuth
//	@Router			/stats/activity [get]
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	weeks, _ := strconv.Atoi(r.URL.Query().Get("weeks"))
	if weeks > 104 {
		weeks = 104
	}
	writeJSON(w, http.StatusOK, notebook.ActivityHeatmap(h.eng.Notes(), h.eng.Now().UnixMilli(), weeks))
}

func parseMillis(v string) (*int64, error) {
	if v == "" {
		return nil, nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp %q: %w", v, apperr.ErrValidation)
	}
	return &ms, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeTags strips '#' prefixes and blanks and drops exact duplicates.
func normalizeTags(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		t = notebook.NormalizeTagName(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
