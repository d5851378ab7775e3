package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/plated-app/plated-api/internal/domain"
	snsinfra "github.com/plated-app/plated-api/internal/infrastructure/sns"
	"github.com/plated-app/plated-api/internal/pkg/id"
)

type Service interface {
	// Register stores a push token for the user. Registering the same token
	// again updates the existing device.
	Register(ctx context.Context, userID string, req domain.RegisterDeviceRequest) (*domain.Device, error)
	List(ctx context.Context, userID string) ([]domain.Device, error)
	Delete(ctx context.Context, deviceID, userID string) error
	SetNotificationsEnabled(ctx context.Context, userID string, enabled bool) error
	// NotificationsEnabled reports the user's toggle. Users without devices
	// count as enabled.
	NotificationsEnabled(ctx context.Context, userID string) (bool, error)
}

type deviceStore interface {
	Put(ctx context.Context, d *domain.Device) error
	Get(ctx context.Context, deviceID string) (*domain.Device, error)
	GetByToken(ctx context.Context, token string) (*domain.Device, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Device, error)
	SetEnabled(ctx context.Context, deviceID string, enabled bool) error
	Delete(ctx context.Context, deviceID string) error
}

type endpointRegistry interface {
	CreateEndpoint(ctx context.Context, token string) (string, error)
	DeleteEndpoint(ctx context.Context, endpointARN string) error
}

type service struct {
	repo      deviceStore
	endpoints endpointRegistry
	now       func() time.Time
}

// NewService creates the device service. endpoints may be nil when push is
// not configured.
func NewService(repo deviceStore, endpoints endpointRegistry) Service {
	return &service{repo: repo, endpoints: endpoints, now: func() time.Time { return time.Now().UTC() }}
}

func (s *service) Register(ctx context.Context, userID string, req domain.RegisterDeviceRequest) (*domain.Device, error) {
	enabled, err := s.NotificationsEnabled(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, fmt.Errorf("notifications are disabled: %w", domain.ErrForbidden)
	}

	at := s.now()
	d, err := s.repo.GetByToken(ctx, req.Token)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		d = &domain.Device{DeviceID: id.New(), CreatedAt: at}
	case err != nil:
		return nil, err
	}
	// A token moves with the installation, so it is reassigned when another
	// user signs in on the same phone.
	token := req.Token
	d.UserID = userID
	d.Token = &token
	d.Platform = req.Platform
	d.Enable = true
	d.UpdatedAt = at
	if d.EndpointARN == nil {
		d.EndpointARN = s.createEndpoint(ctx, req.Token)
	}
	if err := s.repo.Put(ctx, d); err != nil {
		slog.Error("register device", "user_id", userID, "err", err)
		return nil, fmt.Errorf("register device: %w", err)
	}
	return d, nil
}

func (s *service) createEndpoint(ctx context.Context, token string) *string {
	if s.endpoints == nil {
		return nil
	}
	arn, err := s.endpoints.CreateEndpoint(ctx, token)
	if errors.Is(err, snsinfra.ErrPushDisabled) {
		return nil
	}
	if err != nil {
		slog.Warn("create push endpoint", "err", err)
		return nil
	}
	return &arn
}

func (s *service) List(ctx context.Context, userID string) ([]domain.Device, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) Delete(ctx context.Context, deviceID, userID string) error {
	d, err := s.repo.Get(ctx, deviceID)
	if err != nil {
		return err
	}
	if d.UserID != userID {
		return fmt.Errorf("forbidden: %w", domain.ErrForbidden)
	}
	if d.EndpointARN != nil && s.endpoints != nil {
		if err := s.endpoints.DeleteEndpoint(ctx, *d.EndpointARN); err != nil {
			slog.Warn("delete push endpoint", "device_id", deviceID, "err", err)
		}
	}
	return s.repo.Delete(ctx, deviceID)
}

func (s *service) SetNotificationsEnabled(ctx context.Context, userID string, enabled bool) error {
	devices, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, d := range devices {
		if !enabled && d.EndpointARN != nil && s.endpoints != nil {
			if err := s.endpoints.DeleteEndpoint(ctx, *d.EndpointARN); err != nil {
				slog.Warn("delete push endpoint", "device_id", d.DeviceID, "err", err)
			}
		}
		if err := s.repo.SetEnabled(ctx, d.DeviceID, enabled); err != nil {
			slog.Error("toggle notifications", "device_id", d.DeviceID, "err", err)
			return fmt.Errorf("toggle notifications: %w", err)
		}
	}
	return nil
}

func (s *service) NotificationsEnabled(ctx context.Context, userID string) (bool, error) {
	devices, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return false, err
	}
	if len(devices) == 0 {
		return true, nil
	}
	for _, d := range devices {
		if d.Enable {
			return true, nil
		}
	}
	return false, nil
}
