package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/plated-app/plated-api/internal/application/verification"
	"github.com/plated-app/plated-api/internal/domain"
	jwtinfra "github.com/plated-app/plated-api/internal/infrastructure/jwt"
	"github.com/plated-app/plated-api/internal/transport/http/middleware"
	"github.com/stretchr/testify/mock"
)

// --- service mocks ---

type mockVerificationSvc struct{ mock.Mock }

func (m *mockVerificationSvc) GetInfo(ctx context.Context, userID string) (*domain.VerificationInfo, error) {
	args := m.Called(ctx, userID)
	if v, _ := args.Get(0).(*domain.VerificationInfo); v != nil {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockVerificationSvc) GenerateCode(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}
func (m *mockVerificationSvc) UploadImage(ctx context.Context, userID string, imageType domain.ImageType, data []byte, mime string) (*domain.VerificationImage, error) {
	args := m.Called(ctx, userID, imageType, data, mime)
	if v, _ := args.Get(0).(*domain.VerificationImage); v != nil {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockVerificationSvc) GetImages(ctx context.Context, userID string) ([]domain.VerificationImage, error) {
	args := m.Called(ctx, userID)
	v, _ := args.Get(0).([]domain.VerificationImage)
	return v, args.Error(1)
}
func (m *mockVerificationSvc) Submit(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}
func (m *mockVerificationSvc) UpdateStatus(ctx context.Context, userID string, status domain.VerificationStatus, reviewerID string) error {
	return m.Called(ctx, userID, status, reviewerID).Error(0)
}
func (m *mockVerificationSvc) Reset(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}
func (m *mockVerificationSvc) CheckExpired(ctx context.Context) (*verification.SweepResult, error) {
	args := m.Called(ctx)
	if v, _ := args.Get(0).(*verification.SweepResult); v != nil {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockConversationSvc struct{ mock.Mock }

func (m *mockConversationSvc) Create(ctx context.Context, userA, userB string) (*domain.Conversation, error) {
	args := m.Called(ctx, userA, userB)
	if c, _ := args.Get(0).(*domain.Conversation); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockConversationSvc) FindExisting(ctx context.Context, userA, userB string) (*domain.Conversation, error) {
	args := m.Called(ctx, userA, userB)
	if c, _ := args.Get(0).(*domain.Conversation); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockConversationSvc) Get(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	args := m.Called(ctx, conversationID)
	if c, _ := args.Get(0).(*domain.Conversation); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockConversationSvc) ListForUser(ctx context.Context, userID string) ([]domain.Conversation, error) {
	args := m.Called(ctx, userID)
	v, _ := args.Get(0).([]domain.Conversation)
	return v, args.Error(1)
}
func (m *mockConversationSvc) Messages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	args := m.Called(ctx, conversationID)
	v, _ := args.Get(0).([]domain.Message)
	return v, args.Error(1)
}
func (m *mockConversationSvc) Send(ctx context.Context, conversationID, senderID, content string) (*domain.Message, error) {
	args := m.Called(ctx, conversationID, senderID, content)
	if v, _ := args.Get(0).(*domain.Message); v != nil {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockConversationSvc) MarkAsRead(ctx context.Context, conversationID, userID string) (int, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Int(0), args.Error(1)
}
func (m *mockConversationSvc) Participants(ctx context.Context, conversationID string) ([]domain.Participant, error) {
	args := m.Called(ctx, conversationID)
	v, _ := args.Get(0).([]domain.Participant)
	return v, args.Error(1)
}
func (m *mockConversationSvc) Delete(ctx context.Context, conversationID string) error {
	return m.Called(ctx, conversationID).Error(0)
}

type mockNotificationSvc struct{ mock.Mock }

func (m *mockNotificationSvc) Create(ctx context.Context, userID string, kind domain.NotificationType, content string, relatedID *string, metadata map[string]string) (*domain.Notification, error) {
	args := m.Called(ctx, userID, kind, content, relatedID, metadata)
	if v, _ := args.Get(0).(*domain.Notification); v != nil {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockNotificationSvc) ListUnread(ctx context.Context, userID string) ([]domain.Notification, error) {
	args := m.Called(ctx, userID)
	v, _ := args.Get(0).([]domain.Notification)
	return v, args.Error(1)
}
func (m *mockNotificationSvc) ListAll(ctx context.Context, userID string) ([]domain.Notification, error) {
	args := m.Called(ctx, userID)
	v, _ := args.Get(0).([]domain.Notification)
	return v, args.Error(1)
}
func (m *mockNotificationSvc) MarkAsRead(ctx context.Context, notificationID, userID string) (*domain.Notification, error) {
	args := m.Called(ctx, notificationID, userID)
	if v, _ := args.Get(0).(*domain.Notification); v != nil {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockNotificationSvc) MarkAllAsRead(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}
func (m *mockNotificationSvc) Delete(ctx context.Context, notificationID, userID string) error {
	return m.Called(ctx, notificationID, userID).Error(0)
}
func (m *mockNotificationSvc) DeleteAll(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type mockDeviceSvc struct{ mock.Mock }

func (m *mockDeviceSvc) Register(ctx context.Context, userID string, req domain.RegisterDeviceRequest) (*domain.Device, error) {
	args := m.Called(ctx, userID, req)
	if v, _ := args.Get(0).(*domain.Device); v != nil {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockDeviceSvc) List(ctx context.Context, userID string) ([]domain.Device, error) {
	args := m.Called(ctx, userID)
	v, _ := args.Get(0).([]domain.Device)
	return v, args.Error(1)
}
func (m *mockDeviceSvc) Delete(ctx context.Context, deviceID, userID string) error {
	return m.Called(ctx, deviceID, userID).Error(0)
}
func (m *mockDeviceSvc) SetNotificationsEnabled(ctx context.Context, userID string, enabled bool) error {
	return m.Called(ctx, userID, enabled).Error(0)
}
func (m *mockDeviceSvc) NotificationsEnabled(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

type mockPostSvc struct{ mock.Mock }

func (m *mockPostSvc) Create(ctx context.Context, authorID string, req domain.CreatePostRequest) (*domain.Post, error) {
	args := m.Called(ctx, authorID, req)
	if v, _ := args.Get(0).(*domain.Post); v != nil {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockPostSvc) Get(ctx context.Context, postID string) (*domain.Post, error) {
	args := m.Called(ctx, postID)
	if v, _ := args.Get(0).(*domain.Post); v != nil {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockPostSvc) List(ctx context.Context, limit, offset int) ([]domain.Post, error) {
	args := m.Called(ctx, limit, offset)
	v, _ := args.Get(0).([]domain.Post)
	return v, args.Error(1)
}

type mockProfileSvc struct{ mock.Mock }

func (m *mockProfileSvc) Create(ctx context.Context, userID string, req domain.CreateProfileRequest) (*domain.Profile, error) {
	args := m.Called(ctx, userID, req)
	if v, _ := args.Get(0).(*domain.Profile); v != nil {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockProfileSvc) Me(ctx context.Context, userID string) (*domain.Profile, error) {
	args := m.Called(ctx, userID)
	if v, _ := args.Get(0).(*domain.Profile); v != nil {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockProfileSvc) Summary(ctx context.Context, userID string) (*domain.ProfileSummary, error) {
	args := m.Called(ctx, userID)
	if v, _ := args.Get(0).(*domain.ProfileSummary); v != nil {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockProfileSvc) Availability(ctx context.Context, username, licensePlate, email string) (*domain.Availability, error) {
	args := m.Called(ctx, username, licensePlate, email)
	if v, _ := args.Get(0).(*domain.Availability); v != nil {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockProfileSvc) CheckActive(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

// --- helpers ---

// authedReq builds a request carrying claims for userID, as Auth would.
func authedReq(method, target, userID, role, body string) *http.Request {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	claims := &jwtinfra.Claims{UserID: userID, Role: role}
	return r.WithContext(middleware.WithClaims(r.Context(), claims))
}

// withURLParams injects chi URL params into the request context.
func withURLParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
