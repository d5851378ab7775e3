package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/plated-app/plated-api/internal/application/verification"
	"github.com/plated-app/plated-api/internal/domain"
	"github.com/plated-app/plated-api/internal/imaging"
	"github.com/plated-app/plated-api/internal/transport/http/middleware"
)

// maxUploadBytes bounds a raw photo before compression.
const maxUploadBytes = 15 << 20

// VerificationHandler handles the ownership verification flow.
type VerificationHandler struct {
	svc verification.Service
}

func NewVerificationHandler(svc verification.Service) *VerificationHandler {
	return &VerificationHandler{svc: svc}
}

// CodeEnvelope wraps a freshly generated verification code.
type CodeEnvelope struct {
	Code string `json:"code"`
}

// UpdateStatusRequest is the admin review body.
type UpdateStatusRequest struct {
	Status domain.VerificationStatus `json:"status" validate:"required,oneof=not_verified pending verified rejected"`
}

type imageUploadRequest struct {
	Image string `json:"image" validate:"required"`
}

func (h *VerificationHandler) GetInfo(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	info, err := h.svc.GetInfo(r.Context(), userID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *VerificationHandler) GenerateCode(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	code, err := h.svc.GenerateCode(r.Context(), userID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CodeEnvelope{Code: code})
}

func (h *VerificationHandler) GetImages(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	images, err := h.svc.GetImages(r.Context(), userID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, images)
}

// UploadImage accepts either a multipart form with a "photo" file or a JSON
// body carrying a data URI.
func (h *VerificationHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	imageType := domain.ImageType(chi.URLParam(r, "type"))
	if !imageType.Valid() {
		writeError(w, http.StatusBadRequest, "unknown image type")
		return
	}

	var (
		data []byte
		mime string
		err  error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		data, mime, err = readPhoto(w, r)
	} else {
		data, mime, err = readDataURI(w, r)
	}
	if errors.Is(err, domain.ErrPayloadTooLarge) {
		httpError(w, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	img, err := h.svc.UploadImage(r.Context(), userID, imageType, data, mime)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, img)
}

func readPhoto(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, "", errInvalidForm
	}
	f, header, err := r.FormFile("photo")
	if err != nil {
		return nil, "", errMissingPhoto
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", errInvalidForm
	}
	mime := header.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = imaging.MimeTypeFromExtension(header.Filename)
	}
	return data, mime, nil
}

func readDataURI(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	var body imageUploadRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", fmt.Errorf("photo: %w", domain.ErrPayloadTooLarge)
		}
		return nil, "", errInvalidBody
	}
	if body.Image == "" {
		return nil, "", errInvalidBody
	}
	data, mime, err := imaging.DecodeDataURI(body.Image)
	if err != nil {
		return nil, "", err
	}
	return data, mime, nil
}

func (h *VerificationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Submit(r.Context(), userID); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "verification submitted"})
}

// Reset is the admin endpoint returning a user's record to not_verified.
func (h *VerificationHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Reset(r.Context(), chi.URLParam(r, "userID")); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "verification reset"})
}

// UpdateStatus is the admin review endpoint.
func (h *VerificationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req UpdateStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.svc.UpdateStatus(r.Context(), chi.URLParam(r, "userID"), req.Status, claims.UserID); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "status updated"})
}

func (h *VerificationHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.CheckExpired(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
