package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/starford/zennote/internal/apperr"
	"github.com/starford/zennote/internal/backup"
	"github.com/starford/zennote/internal/exchange"
	"github.com/starford/zennote/internal/models"
	"github.com/starford/zennote/internal/notebook"
)

// GetSettings handles GET /api/settings.
//
//	@Summary		Get the settings
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	models.AppSettings
//	@Security		BearerAuth
//	@Router			/settings [get]
func (h *Handler) GetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.eng.Settings())
}

// UpdateSettings handles PATCH /api/settings.
//
//	@Summary		Merge fields into the settings
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			body	body		notebook.SettingsPatch	true	"Fields to change"
//	@Success		200		{object}	models.AppSettings
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/settings [patch]
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch notebook.SettingsPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, "update settings", err)
		return
	}
	if err := h.eng.UpdateSettings(patch); err != nil {
		writeError(w, "update settings", err)
		return
	}
	writeJSON(w, http.StatusOK, h.eng.Settings())
}

// SetTheme handles PUT /api/settings/theme.
//
//	@Summary		Set the theme
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			body	body	ThemeRequest	true	"Theme"
//	@Success		200	{object}	models.AppSettings
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/settings/theme [put]
func (h *Handler) SetTheme(w http.ResponseWriter, r *http.Request) {
	var req ThemeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "set theme", err)
		return
	}
	if err := h.eng.SetTheme(req.Theme); err != nil {
		writeError(w, "set theme", err)
		return
	}
	writeJSON(w, http.StatusOK, h.eng.Settings())
}

// BackupInfo handles GET /api/backup.
//
//	@Summary		Report when the current backup was taken
//	@Tags			backup
//	@Produce		json
//	@Success		200	{object}	BackupInfoResponse
//	@Security		BearerAuth
//	@Router			/backup [get]
func (h *Handler) BackupInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, BackupInfoResponse{CreatedAt: h.backup.Info(r.Context())})
}

// CreateBackup handles POST /api/backup.
//
//	@Summary		Snapshot the stored collections, replacing any previous backup
//	@Tags			backup
//	@Produce		json
//	@Success		200	{object}	backup.Result
//	@Failure		500	{object}	backup.Result
//	@Security		BearerAuth
//	@Router			/backup [post]
func (h *Handler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	// Pending writes go out first so the snapshot matches what clients see.
	h.eng.Flush()
	res := h.backup.Create(r.Context())
	writeJSON(w, backupStatus(res), res)
}

// RestoreBackup handles POST /api/backup/restore.
//
//	@Summary		Restore the backup and reload the notebook
//	@Tags			backup
//	@Produce		json
//	@Success		200	{object}	backup.Result
//	@Failure		404	{object}	backup.Result
//	@Failure		500	{object}	backup.Result
//	@Security		BearerAuth
//	@Router			/backup/restore [post]
func (h *Handler) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	var res backup.Result
	err := h.eng.ReplaceStorage(r.Context(), func(ctx context.Context) bool {
		res = h.backup.Restore(ctx)
		return res.OK()
	})
	if err != nil {
		writeError(w, "reload after restore", err)
		return
	}
	writeJSON(w, backupStatus(res), res)
}

func backupStatus(res backup.Result) int {
	switch res.Status {
	case backup.StatusOK:
		return http.StatusOK
	case backup.StatusNoBackup:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Export handles GET /api/export and returns the live notes as one Markdown document.
//
//	@Summary		Export live notes as Markdown
//	@Tags			exchange
//	@Produce		plain
//	@Success		200	{string}	string	"Markdown document"
//	@Security		BearerAuth
//	@Router			/export [get]
func (h *Handler) Export(w http.ResponseWriter, _ *http.Request) {
	notes := h.eng.SortedNotes()
	now := h.eng.Now()
	doc := exchange.NotesToMarkdown(notes, now)
	h.eng.RecordHistory(fmt.Sprintf("export %d notes at %s", len(notes), now.UTC().Format(time.RFC3339)))

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="zennote-%s.md"`, now.UTC().Format("20060102-150405")))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, doc)
}

// Import handles POST /api/import. The body is a Markdown document; notes whose
// content already exists are skipped.
//
//	@Summary		Import notes from Markdown
//	@Tags			exchange
//	@Accept			plain
//	@Produce		json
//	@Success		200	{object}	ImportResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/import [post]
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, "import", fmt.Errorf("failed to read body: %w", apperr.ErrValidation))
		return
	}
	doc := exchange.ReadDocument(data)
	if strings.TrimSpace(doc) == "" {
		writeError(w, "import", fmt.Errorf("document is empty: %w", apperr.ErrValidation))
		return
	}

	drafts := exchange.ParseMarkdown(doc)
	fresh := exchange.Deduplicate(h.eng.Notes(), drafts)
	resp := ImportResponse{Parsed: len(drafts), Imported: len(fresh), Notes: []models.Note{}}
	for _, d := range fresh {
		h.eng.EnsureTags(d.Tags)
		n := h.eng.NewNote(d.Content, d.Tags)
		h.eng.AddNote(n)
		resp.Notes = append(resp.Notes, n)
	}
	h.eng.RecordHistory(fmt.Sprintf("import %d of %d notes at %s",
		len(fresh), len(drafts), h.eng.Now().UTC().Format(time.RFC3339)))
	slog.Info("notes imported", slog.Int("parsed", len(drafts)), slog.Int("imported", len(fresh)))
	writeJSON(w, http.StatusOK, resp)
}

// Reset handles POST /api/reset. It clears notes, tags and settings; the
// backup is kept.
//
//	@Summary		Clear notes, tags and settings
//	@Tags			settings
//	@Success		204	"Notebook cleared"
//	@Failure		500	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/reset [post]
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.eng.Reset(r.Context()); err != nil {
		writeError(w, "reset", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
