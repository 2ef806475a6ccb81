package api

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/starford/zennote/internal/apperr"
	"github.com/starford/zennote/internal/notebook"
)

const maxUploadBytes = 20 << 20 // 20 MB

// imageURLPrefix is where uploaded files are served from, relative to the API mount.
const imageURLPrefix = "/api/images/"

// ImageHandler attaches images to notes and serves uploaded image files.
type ImageHandler struct {
	eng *notebook.Engine
	dir string
}

// NewImageHandler creates a handler storing uploads under dir. An empty dir
// disables uploads; attaching by URI still works.
func NewImageHandler(eng *notebook.Engine, dir string) *ImageHandler {
	return &ImageHandler{eng: eng, dir: dir}
}

// safeName validates that the filename is a plain name (no path separators,
// no traversal) and returns the absolute path under the images dir.
func (h *ImageHandler) safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	abs := filepath.Join(h.dir, cleaned)
	if !strings.HasPrefix(abs, filepath.Clean(h.dir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes images directory")
	}
	return abs, nil
}

// Add handles POST /api/notes/{id}/images.
//
// A JSON body {"uri": "..."} attaches an existing image by reference. A
// multipart body with a "file" field stores the upload and attaches its URL.
//
//	@Summary		Attach an image to a note
//	@Tags			images
//	@Accept			json,mpfd
//	@Produce		json
//	@Param			id		path		string			true	"Note id"
//	@Param			body	body		AddImageRequest	false	"Image reference"
//	@Param			file	formData	file			false	"Image file"
//	@Success		201		{object}	models.NoteImage
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/images [post]
func (h *ImageHandler) Add(w http.ResponseWriter, r *http.Request) {
	noteID := chi.URLParam(r, "id")
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		h.upload(w, r, noteID)
		return
	}

	var req AddImageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "add image", err)
		return
	}
	img, err := h.eng.AddImage(noteID, req.URI)
	if err != nil {
		writeError(w, "add image", err)
		return
	}
	writeJSON(w, http.StatusCreated, img)
}

func (h *ImageHandler) upload(w http.ResponseWriter, r *http.Request, noteID string) {
	if h.dir == "" {
		writeError(w, "upload image", fmt.Errorf("uploads are disabled: %w", apperr.ErrValidation))
		return
	}
	// Fail before touching the disk when the note cannot take the image.
	if note, err := h.eng.Note(noteID); err != nil {
		writeError(w, "upload image", err)
		return
	} else if len(note.Images) >= notebook.MaxImages {
		writeError(w, "upload image", fmt.Errorf("a note holds at most %d images: %w", notebook.MaxImages, apperr.ErrValidation))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	name := uuid.NewString() + strings.ToLower(filepath.Ext(header.Filename))
	abs, err := h.safeName(name)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		writeError(w, "upload image", fmt.Errorf("create images dir: %w", err))
		return
	}
	dst, err := os.Create(abs)
	if err != nil {
		writeError(w, "upload image", fmt.Errorf("create file: %w", err))
		return
	}
	_, err = io.Copy(dst, file)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(abs)
		writeError(w, "upload image", fmt.Errorf("write file: %w", err))
		return
	}

	img, err := h.eng.AddImage(noteID, imageURLPrefix+name)
	if err != nil {
		_ = os.Remove(abs)
		writeError(w, "upload image", err)
		return
	}
	writeJSON(w, http.StatusCreated, img)
}

// Remove handles DELETE /api/notes/{id}/images/{imageID}. Uploaded files stay
// on disk; other notes or exports may still reference them.
//
//	@Summary		Remove an image from a note
//	@Tags			images
//	@Param			id	path	string	true	"Note id"
//	@Param			imageID	path	string	true	"Image id"
//	@Success		204	"Image removed"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/images/{imageID} [delete]
func (h *ImageHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if err := h.eng.RemoveImage(chi.URLParam(r, "id"), chi.URLParam(r, "imageID")); err != nil {
		writeError(w, "remove image", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ServeFile handles GET /api/images/{filename}.
//
//	@Summary		Serve an uploaded image file
//	@Tags			images
//	@Produce		octet-stream
//	@Param			filename	path	string	true	"Stored file name"
//	@Success		200	{file}	binary
//	@Failure		400	{string}	string
//	@Failure		404	{string}	string
//	@Security		BearerAuth
//	@Router			/images/{filename} [get]
func (h *ImageHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	if h.dir == "" {
		http.NotFound(w, r)
		return
	}
	abs, err := h.safeName(chi.URLParam(r, "filename"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, statErr := os.Stat(abs); os.IsNotExist(statErr) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, abs)
}
