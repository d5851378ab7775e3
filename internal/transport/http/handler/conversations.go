package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/plated-app/plated-api/internal/application/conversation"
	"github.com/plated-app/plated-api/internal/domain"
)

// ConversationHandler handles direct-message endpoints.
type ConversationHandler struct {
	svc conversation.Service
}

func NewConversationHandler(svc conversation.Service) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

// Create opens a conversation with another user. Repeated calls return the
// same conversation.
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req domain.CreateConversationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := h.svc.Create(r.Context(), userID, req.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	conversations, err := h.svc.ListForUser(r.Context(), userID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conversations)
}

func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := h.authorize(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	c, ok := h.authorize(w, r)
	if !ok {
		return
	}
	messages, err := h.svc.Messages(r.Context(), c.ConversationID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *ConversationHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req domain.SendMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	m, err := h.svc.Send(r.Context(), chi.URLParam(r, "id"), userID, req.Content)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *ConversationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	c, ok := h.authorize(w, r)
	if !ok {
		return
	}
	userID, _ := callerID(w, r)
	n, err := h.svc.MarkAsRead(r.Context(), c.ConversationID, userID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CountEnvelope{Count: n})
}

func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	c, ok := h.authorize(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), c.ConversationID); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "conversation deleted"})
}

// authorize loads the conversation in the URL and checks that the caller takes
// part in it.
func (h *ConversationHandler) authorize(w http.ResponseWriter, r *http.Request) (*domain.Conversation, bool) {
	userID, ok := callerID(w, r)
	if !ok {
		return nil, false
	}
	c, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return nil, false
	}
	if !c.HasParticipant(userID) {
		writeError(w, http.StatusForbidden, "not a participant of this conversation")
		return nil, false
	}
	return c, true
}
