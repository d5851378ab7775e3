package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/plated-app/plated-api/internal/application/post"
	"github.com/plated-app/plated-api/internal/domain"
)

// PostHandler handles feed post endpoints.
type PostHandler struct {
	svc post.Service
}

func NewPostHandler(svc post.Service) *PostHandler { return &PostHandler{svc: svc} }

func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req domain.CreatePostRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := h.svc.Create(r.Context(), userID, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	posts, err := h.svc.List(r.Context(), queryInt(r, "limit", 0), queryInt(r, "offset", 0))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
