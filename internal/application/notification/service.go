package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/plated-app/plated-api/internal/domain"
	"github.com/plated-app/plated-api/internal/metrics"
	"github.com/plated-app/plated-api/internal/pkg/id"
)

type Service interface {
	// Create stores a notification and pushes it to the user's enabled
	// devices. Push failures are logged and never returned.
	Create(ctx context.Context, userID string, kind domain.NotificationType, content string, relatedID *string, metadata map[string]string) (*domain.Notification, error)
	ListUnread(ctx context.Context, userID string) ([]domain.Notification, error)
	ListAll(ctx context.Context, userID string) ([]domain.Notification, error)
	MarkAsRead(ctx context.Context, notificationID, userID string) (*domain.Notification, error)
	MarkAllAsRead(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, notificationID, userID string) error
	DeleteAll(ctx context.Context, userID string) error
}

type notificationStore interface {
	Put(ctx context.Context, n *domain.Notification) error
	Get(ctx context.Context, notificationID string) (*domain.Notification, error)
	ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error)
	MarkAsRead(ctx context.Context, notificationID string) error
	MarkAllAsRead(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, notificationID string) error
	DeleteAllForUser(ctx context.Context, userID string) error
}

type deviceStore interface {
	ListByUser(ctx context.Context, userID string) ([]domain.Device, error)
}

type pushSender interface {
	Publish(ctx context.Context, endpointARN, title, body string, data map[string]string) error
}

type service struct {
	repo    notificationStore
	devices deviceStore
	push    pushSender
	metrics *metrics.Metrics
	now     func() time.Time
}

type ServiceDeps struct {
	Repo    notificationStore
	Devices deviceStore
	// Push may be nil, in which case notifications are stored only.
	Push    pushSender
	Metrics *metrics.Metrics
	Now     func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:    deps.Repo,
		devices: deps.Devices,
		push:    deps.Push,
		metrics: deps.Metrics,
		now:     now,
	}
}

func (s *service) Create(ctx context.Context, userID string, kind domain.NotificationType, content string, relatedID *string, metadata map[string]string) (*domain.Notification, error) {
	n := &domain.Notification{
		NotificationID: id.New(),
		UserID:         userID,
		Type:           kind,
		Content:        content,
		RelatedID:      relatedID,
		Metadata:       metadata,
		CreatedAt:      s.now(),
	}
	if err := s.repo.Put(ctx, n); err != nil {
		slog.Error("create notification", "user_id", userID, "type", kind, "err", err)
		return nil, fmt.Errorf("create notification: %w", err)
	}
	s.metrics.NotificationCreated(string(kind))
	s.dispatch(ctx, n)
	return n, nil
}

func (s *service) dispatch(ctx context.Context, n *domain.Notification) {
	if s.push == nil || s.devices == nil {
		return
	}
	devices, err := s.devices.ListByUser(ctx, n.UserID)
	if err != nil {
		slog.Warn("list devices for push", "user_id", n.UserID, "err", err)
		return
	}
	data := map[string]string{
		"type":            string(n.Type),
		"notification_id": n.NotificationID,
	}
	if n.RelatedID != nil {
		data["related_id"] = *n.RelatedID
	}
	for k, v := range n.Metadata {
		if _, taken := data[k]; !taken {
			data[k] = v
		}
	}
	for _, d := range devices {
		if !d.Enable || d.EndpointARN == nil || *d.EndpointARN == "" {
			continue
		}
		err := s.push.Publish(ctx, *d.EndpointARN, n.Type.Title(), n.Content, data)
		s.metrics.Push(err == nil)
		if err != nil {
			slog.Warn("push dispatch failed", "device_id", d.DeviceID, "err", err)
		}
	}
}

func (s *service) ListUnread(ctx context.Context, userID string) ([]domain.Notification, error) {
	return s.repo.ListByUser(ctx, userID, true)
}

func (s *service) ListAll(ctx context.Context, userID string) ([]domain.Notification, error) {
	return s.repo.ListByUser(ctx, userID, false)
}

func (s *service) MarkAsRead(ctx context.Context, notificationID, userID string) (*domain.Notification, error) {
	n, err := s.owned(ctx, notificationID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.MarkAsRead(ctx, notificationID); err != nil {
		return nil, err
	}
	n.Read = true
	return n, nil
}

func (s *service) MarkAllAsRead(ctx context.Context, userID string) (int, error) {
	return s.repo.MarkAllAsRead(ctx, userID)
}

func (s *service) Delete(ctx context.Context, notificationID, userID string) error {
	if _, err := s.owned(ctx, notificationID, userID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, notificationID)
}

func (s *service) DeleteAll(ctx context.Context, userID string) error {
	return s.repo.DeleteAllForUser(ctx, userID)
}

func (s *service) owned(ctx context.Context, notificationID, userID string) (*domain.Notification, error) {
	n, err := s.repo.Get(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n.UserID != userID {
		return nil, fmt.Errorf("forbidden: %w", domain.ErrForbidden)
	}
	return n, nil
}
