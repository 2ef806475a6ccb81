package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/zennote/internal/backup"
	"github.com/starford/zennote/internal/notebook"
)

// RouterConfig holds the optional parts of the API surface.
type RouterConfig struct {
	// AuthEnabled controls whether Bearer token auth is enforced.
	AuthEnabled bool
	Token       string
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler
	// ImagesDir stores uploaded image files. Empty disables uploads.
	ImagesDir string
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(eng *notebook.Engine, bk *backup.Coordinator, cfg RouterConfig) chi.Router {
	h := NewHandler(eng, bk)
	ih := NewImageHandler(eng, cfg.ImagesDir)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))

	// SSE endpoint (protected by same auth middleware, served while loading).
	if cfg.Events != nil {
		r.Get("/events", cfg.Events.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(ReadyMiddleware(eng.Ready))

		// Notes.
		r.Get("/notes", h.ListNotes)
		r.Post("/notes", h.CreateNote)
		r.Get("/notes/{id}", h.GetNote)
		r.Patch("/notes/{id}", h.UpdateNote)
		r.Delete("/notes/{id}", h.DeleteNote)
		r.Post("/notes/{id}/pin", h.TogglePin)
		r.Post("/notes/{id}/recycle", h.RecycleNote)
		r.Post("/notes/{id}/restore", h.RestoreNote)

		// Images.
		r.Post("/notes/{id}/images", ih.Add)
		r.Delete("/notes/{id}/images/{imageID}", ih.Remove)
		r.Get("/images/{filename}", ih.ServeFile)

		// Recycle bin.
		r.Get("/recycle-bin", h.ListRecycleBin)
		r.Delete("/recycle-bin", h.ClearRecycleBin)

		// Search and stats.
		r.Get("/search", h.Search)
		r.Get("/stats/activity", h.Activity)

		// Tags.
		r.Get("/tags", h.ListTags)
		r.Post("/tags", h.CreateTag)
		r.Put("/tags/order", h.ReorderTags)
		r.Patch("/tags/{id}", h.UpdateTag)
		r.Delete("/tags/{id}", h.DeleteTag)

		// Settings.
		r.Get("/settings", h.GetSettings)
		r.Patch("/settings", h.UpdateSettings)
		r.Put("/settings/theme", h.SetTheme)

		// Backup, exchange and reset.
		r.Get("/backup", h.BackupInfo)
		r.Post("/backup", h.CreateBackup)
		r.Post("/backup/restore", h.RestoreBackup)
		r.Get("/export", h.Export)
		r.Post("/import", h.Import)
		r.Post("/reset", h.Reset)
	})

	return r
}
