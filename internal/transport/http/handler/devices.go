package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/plated-app/plated-api/internal/application/device"
	"github.com/plated-app/plated-api/internal/domain"
)

// DeviceHandler handles push device endpoints.
type DeviceHandler struct {
	svc device.Service
}

func NewDeviceHandler(svc device.Service) *DeviceHandler { return &DeviceHandler{svc: svc} }

// NotificationSettings is the body of the notifications toggle.
type NotificationSettings struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req domain.RegisterDeviceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	d, err := h.svc.Register(r.Context(), userID, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	devices, err := h.svc.List(r.Context(), userID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

func (h *DeviceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "device deleted"})
}

func (h *DeviceHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	enabled, err := h.svc.NotificationsEnabled(r.Context(), userID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NotificationSettings{Enabled: &enabled})
}

func (h *DeviceHandler) SetNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var body NotificationSettings
	if !decodeBody(w, r, &body) {
		return
	}
	if err := h.svc.SetNotificationsEnabled(r.Context(), userID, *body.Enabled); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}
