package api

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/starford/zennote/internal/models"
	"github.com/starford/zennote/internal/notebook"
	"github.com/starford/zennote/internal/search"
)

// ListTags handles GET /api/tags.
//
//	@Summary		List tags, optionally filtered by a name fragment
//	@Tags			tags
//	@Produce		json
//	@Param			q	query		string	false	"Case-insensitive name fragment"
//	@Success		200	{object}	TagListResponse
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags := h.eng.Tags()
	if q := r.URL.Query().Get("q"); q != "" {
		names := make([]string, len(tags))
		for i, t := range tags {
			names[i] = t.Name
		}
		keep := search.Tags(names, q)
		tags = slices.DeleteFunc(tags, func(t models.Tag) bool { return !slices.Contains(keep, t.Name) })
	}
	if tags == nil {
		tags = []models.Tag{}
	}
	writeJSON(w, http.StatusOK, TagListResponse{Tags: tags})
}

// CreateTag handles POST /api/tags.
//
//	@Summary		Create a tag
//	@Tags			tags
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateTagRequest	true	"Tag to create"
//	@Success		201		{object}	models.Tag
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tags [post]
func (h *Handler) CreateTag(w http.ResponseWriter, r *http.Request) {
	var req CreateTagRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "create tag", err)
		return
	}
	tag, err := h.eng.AddTag(req.Name)
	if err != nil {
		writeError(w, "create tag", err)
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

// UpdateTag handles PATCH /api/tags/{id}.
//
//	@Summary		Rename or reorder a tag
//	@Tags			tags
//	@Accept			json
//	@Produce		json
//	@Param			id	path	string	true	"Tag id"
//	@Param			body	body	notebook.TagPatch	true	"Fields to change"
//	@Success		200	{object}	models.Tag
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tags/{id} [patch]
func (h *Handler) UpdateTag(w http.ResponseWriter, r *http.Request) {
	var patch notebook.TagPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, "update tag", err)
		return
	}
	tag, err := h.eng.UpdateTag(chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, "update tag", err)
		return
	}
	writeJSON(w, http.StatusOK, tag)
}

// DeleteTag handles DELETE /api/tags/{id}.
//
//	@Summary		Delete a tag record
//	@Tags			tags
//	@Param			id	path	string	true	"Tag id"
//	@Success		204	"Tag deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tags/{id} [delete]
func (h *Handler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	if !h.eng.DeleteTag(chi.URLParam(r, "id")) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReorderTags handles PUT /api/tags/order.
//
//	@Summary		Reorder tags by id
//	@Tags			tags
//	@Accept			json
//	@Produce		json
//	@Param			body	body	ReorderTagsRequest	true	"Tag ids in the new order"
//	@Success		200	{object}	TagListResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tags/order [put]
func (h *Handler) ReorderTags(w http.ResponseWriter, r *http.Request) {
	var req ReorderTagsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "reorder tags", err)
		return
	}
	writeJSON(w, http.StatusOK, TagListResponse{Tags: h.eng.ReorderTags(req.IDs)})
}
