package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/plated-app/plated-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func conversationBetween(id string, users ...string) *domain.Conversation {
	c := &domain.Conversation{ConversationID: id}
	for _, u := range users {
		c.Participants = append(c.Participants, domain.Participant{ConversationID: id, UserID: u})
	}
	return c
}

func TestConversation_Create(t *testing.T) {
	svc := &mockConversationSvc{}
	svc.On("Create", mock.Anything, "u1", "u2").Return(conversationBetween("c1", "u1", "u2"), nil)
	h := NewConversationHandler(svc)

	rr := httptest.NewRecorder()
	h.Create(rr, authedReq(http.MethodPost, "/v1/conversations", "u1", "user", `{"user_id":"u2"}`))

	assert.Equal(t, http.StatusOK, rr.Code)
	var c domain.Conversation
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&c))
	assert.Equal(t, "c1", c.ConversationID)
}

func TestConversation_Create_MissingUser(t *testing.T) {
	svc := &mockConversationSvc{}
	h := NewConversationHandler(svc)

	rr := httptest.NewRecorder()
	h.Create(rr, authedReq(http.MethodPost, "/v1/conversations", "u1", "user", `{}`))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestConversation_Messages_NonParticipant(t *testing.T) {
	svc := &mockConversationSvc{}
	svc.On("Get", mock.Anything, "c1").Return(conversationBetween("c1", "u1", "u2"), nil)
	h := NewConversationHandler(svc)

	req := authedReq(http.MethodGet, "/v1/conversations/c1/messages", "u3", "user", "")
	rr := httptest.NewRecorder()
	h.Messages(rr, withURLParams(req, "id", "c1"))

	assert.Equal(t, http.StatusForbidden, rr.Code)
	svc.AssertNotCalled(t, "Messages", mock.Anything, mock.Anything)
}

func TestConversation_Messages(t *testing.T) {
	svc := &mockConversationSvc{}
	svc.On("Get", mock.Anything, "c1").Return(conversationBetween("c1", "u1", "u2"), nil)
	svc.On("Messages", mock.Anything, "c1").Return([]domain.Message{
		{MessageID: "m1", Content: "hi"},
		{MessageID: "m2", Content: "there"},
	}, nil)
	h := NewConversationHandler(svc)

	req := authedReq(http.MethodGet, "/v1/conversations/c1/messages", "u2", "user", "")
	rr := httptest.NewRecorder()
	h.Messages(rr, withURLParams(req, "id", "c1"))

	assert.Equal(t, http.StatusOK, rr.Code)
	var msgs []domain.Message
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&msgs))
	assert.Len(t, msgs, 2)
}

func TestConversation_Get_NotFound(t *testing.T) {
	svc := &mockConversationSvc{}
	svc.On("Get", mock.Anything, "nope").Return(nil, fmt.Errorf("conversation nope: %w", domain.ErrNotFound))
	h := NewConversationHandler(svc)

	req := authedReq(http.MethodGet, "/v1/conversations/nope", "u1", "user", "")
	rr := httptest.NewRecorder()
	h.Get(rr, withURLParams(req, "id", "nope"))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestConversation_Send(t *testing.T) {
	svc := &mockConversationSvc{}
	svc.On("Send", mock.Anything, "c1", "u1", "hello").Return(&domain.Message{MessageID: "m1", Content: "hello"}, nil)
	h := NewConversationHandler(svc)

	req := authedReq(http.MethodPost, "/v1/conversations/c1/messages", "u1", "user", `{"content":"hello"}`)
	rr := httptest.NewRecorder()
	h.Send(rr, withURLParams(req, "id", "c1"))

	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestConversation_Send_TooLong(t *testing.T) {
	svc := &mockConversationSvc{}
	h := NewConversationHandler(svc)

	body := `{"content":"` + strings.Repeat("x", 4001) + `"}`
	req := authedReq(http.MethodPost, "/v1/conversations/c1/messages", "u1", "user", body)
	rr := httptest.NewRecorder()
	h.Send(rr, withURLParams(req, "id", "c1"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConversation_MarkAsRead(t *testing.T) {
	svc := &mockConversationSvc{}
	svc.On("Get", mock.Anything, "c1").Return(conversationBetween("c1", "u1", "u2"), nil)
	svc.On("MarkAsRead", mock.Anything, "c1", "u1").Return(3, nil)
	h := NewConversationHandler(svc)

	req := authedReq(http.MethodPost, "/v1/conversations/c1/read", "u1", "user", "")
	rr := httptest.NewRecorder()
	h.MarkAsRead(rr, withURLParams(req, "id", "c1"))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"count":3}`, rr.Body.String())
}

func TestConversation_Delete(t *testing.T) {
	svc := &mockConversationSvc{}
	svc.On("Get", mock.Anything, "c1").Return(conversationBetween("c1", "u1", "u2"), nil)
	svc.On("Delete", mock.Anything, "c1").Return(nil)
	h := NewConversationHandler(svc)

	req := authedReq(http.MethodDelete, "/v1/conversations/c1", "u2", "user", "")
	rr := httptest.NewRecorder()
	h.Delete(rr, withURLParams(req, "id", "c1"))

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}
