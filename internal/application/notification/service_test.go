package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/plated-app/plated-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockNotificationStore struct{ mock.Mock }

func (m *mockNotificationStore) Put(ctx context.Context, n *domain.Notification) error {
	return m.Called(ctx, n).Error(0)
}
func (m *mockNotificationStore) Get(ctx context.Context, notificationID string) (*domain.Notification, error) {
	args := m.Called(ctx, notificationID)
	if n, _ := args.Get(0).(*domain.Notification); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockNotificationStore) ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error) {
	args := m.Called(ctx, userID, unreadOnly)
	ns, _ := args.Get(0).([]domain.Notification)
	return ns, args.Error(1)
}
func (m *mockNotificationStore) MarkAsRead(ctx context.Context, notificationID string) error {
	return m.Called(ctx, notificationID).Error(0)
}
func (m *mockNotificationStore) MarkAllAsRead(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}
func (m *mockNotificationStore) Delete(ctx context.Context, notificationID string) error {
	return m.Called(ctx, notificationID).Error(0)
}
func (m *mockNotificationStore) DeleteAllForUser(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type mockDeviceStore struct{ mock.Mock }

func (m *mockDeviceStore) ListByUser(ctx context.Context, userID string) ([]domain.Device, error) {
	args := m.Called(ctx, userID)
	ds, _ := args.Get(0).([]domain.Device)
	return ds, args.Error(1)
}

type mockPush struct{ mock.Mock }

func (m *mockPush) Publish(ctx context.Context, endpointARN, title, body string, data map[string]string) error {
	return m.Called(ctx, endpointARN, title, body, data).Error(0)
}

func strPtr(s string) *string { return &s }

// --- Create ---

func TestCreate_StoresAndPushesToEnabledDevices(t *testing.T) {
	repo := &mockNotificationStore{}
	devices := &mockDeviceStore{}
	push := &mockPush{}

	repo.On("Put", mock.Anything, mock.MatchedBy(func(n *domain.Notification) bool {
		return n.UserID == "u1" && n.Type == domain.NotificationVerificationApproved && !n.Read && n.NotificationID != ""
	})).Return(nil)
	devices.On("ListByUser", mock.Anything, "u1").Return([]domain.Device{
		{DeviceID: "d1", Enable: true, EndpointARN: strPtr("arn:1")},
		{DeviceID: "d2", Enable: false, EndpointARN: strPtr("arn:2")},
		{DeviceID: "d3", Enable: true},
	}, nil)
	push.On("Publish", mock.Anything, "arn:1", "Verification approved!", "Your plate is verified", mock.MatchedBy(func(d map[string]string) bool {
		return d["type"] == "verification_approved" && d["related_id"] == "u1"
	})).Return(nil)

	svc := NewService(ServiceDeps{Repo: repo, Devices: devices, Push: push})
	n, err := svc.Create(context.Background(), "u1", domain.NotificationVerificationApproved, "Your plate is verified", strPtr("u1"), nil)

	require.NoError(t, err)
	assert.Equal(t, "Your plate is verified", n.Content)
	push.AssertNumberOfCalls(t, "Publish", 1)
	repo.AssertExpectations(t)
	devices.AssertExpectations(t)
}

func TestCreate_PushFailureIsNotReturned(t *testing.T) {
	repo := &mockNotificationStore{}
	devices := &mockDeviceStore{}
	push := &mockPush{}

	repo.On("Put", mock.Anything, mock.Anything).Return(nil)
	devices.On("ListByUser", mock.Anything, "u1").Return([]domain.Device{
		{DeviceID: "d1", Enable: true, EndpointARN: strPtr("arn:1")},
	}, nil)
	push.On("Publish", mock.Anything, "arn:1", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("endpoint disabled"))

	svc := NewService(ServiceDeps{Repo: repo, Devices: devices, Push: push})
	_, err := svc.Create(context.Background(), "u1", domain.NotificationNewMessage, "hi", nil, nil)

	assert.NoError(t, err)
}

func TestCreate_StoreFailure(t *testing.T) {
	repo := &mockNotificationStore{}
	repo.On("Put", mock.Anything, mock.Anything).Return(errors.New("throttled"))

	svc := NewService(ServiceDeps{Repo: repo})
	_, err := svc.Create(context.Background(), "u1", domain.NotificationNewMessage, "hi", nil, nil)

	assert.Error(t, err)
}

func TestCreate_WithoutPushSender(t *testing.T) {
	repo := &mockNotificationStore{}
	repo.On("Put", mock.Anything, mock.Anything).Return(nil)

	svc := NewService(ServiceDeps{Repo: repo})
	_, err := svc.Create(context.Background(), "u1", domain.NotificationNewComment, "nice", nil, map[string]string{"post_id": "p1"})

	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

// --- ownership ---

func TestMarkAsRead_NotOwner(t *testing.T) {
	repo := &mockNotificationStore{}
	repo.On("Get", mock.Anything, "n1").Return(&domain.Notification{NotificationID: "n1", UserID: "other"}, nil)

	svc := NewService(ServiceDeps{Repo: repo})
	_, err := svc.MarkAsRead(context.Background(), "n1", "u1")

	assert.True(t, errors.Is(err, domain.ErrForbidden))
	repo.AssertNotCalled(t, "MarkAsRead", mock.Anything, mock.Anything)
}

func TestMarkAsRead_Owner(t *testing.T) {
	repo := &mockNotificationStore{}
	repo.On("Get", mock.Anything, "n1").Return(&domain.Notification{NotificationID: "n1", UserID: "u1"}, nil)
	repo.On("MarkAsRead", mock.Anything, "n1").Return(nil)

	svc := NewService(ServiceDeps{Repo: repo})
	n, err := svc.MarkAsRead(context.Background(), "n1", "u1")

	require.NoError(t, err)
	assert.True(t, n.Read)
}

func TestDelete_NotFound(t *testing.T) {
	repo := &mockNotificationStore{}
	repo.On("Get", mock.Anything, "n1").Return(nil, domain.ErrNotFound)

	svc := NewService(ServiceDeps{Repo: repo})
	err := svc.Delete(context.Background(), "n1", "u1")

	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestListUnread_UsesUnreadFilter(t *testing.T) {
	repo := &mockNotificationStore{}
	repo.On("ListByUser", mock.Anything, "u1", true).Return([]domain.Notification{{NotificationID: "n1"}}, nil)

	svc := NewService(ServiceDeps{Repo: repo})
	ns, err := svc.ListUnread(context.Background(), "u1")

	require.NoError(t, err)
	assert.Len(t, ns, 1)
}
