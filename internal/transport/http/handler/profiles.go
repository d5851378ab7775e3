package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/plated-app/plated-api/internal/application/profile"
	"github.com/plated-app/plated-api/internal/domain"
)

// ProfileHandler handles profile registration and lookups.
type ProfileHandler struct {
	svc profile.Service
}

func NewProfileHandler(svc profile.Service) *ProfileHandler { return &ProfileHandler{svc: svc} }

// Create registers the caller's profile.
func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req domain.CreateProfileRequest
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

func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Me(r.Context(), userID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Summary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Availability answers ?username=&license_plate=&email= lookups made while
// the user fills in the registration form.
func (h *ProfileHandler) Availability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a, err := h.svc.Availability(r.Context(), q.Get("username"), q.Get("license_plate"), q.Get("email"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
