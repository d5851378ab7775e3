package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/plated-app/plated-api/internal/domain"
	"golang.org/x/sync/errgroup"
)

type Service interface {
	// Create registers the caller's profile. Username, license plate and
	// e-mail must not belong to another profile.
	Create(ctx context.Context, userID string, req domain.CreateProfileRequest) (*domain.Profile, error)
	// Me returns the caller's own profile.
	Me(ctx context.Context, userID string) (*domain.Profile, error)
	// Summary returns the public view of another user's profile.
	Summary(ctx context.Context, userID string) (*domain.ProfileSummary, error)
	Availability(ctx context.Context, username, licensePlate, email string) (*domain.Availability, error)
	// CheckActive fails with ErrForbidden when the user's profile has been
	// disabled. Users without a profile yet pass.
	CheckActive(ctx context.Context, userID string) error
}

type profileStore interface {
	Create(ctx context.Context, p *domain.Profile) error
	Get(ctx context.Context, userID string) (*domain.Profile, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	LicensePlateTaken(ctx context.Context, plate string) (bool, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
}

type service struct {
	repo profileStore
	now  func() time.Time
}

type ServiceDeps struct {
	Profiles profileStore
	Now      func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{repo: deps.Profiles, now: now}
}

func (s *service) Create(ctx context.Context, userID string, req domain.CreateProfileRequest) (*domain.Profile, error) {
	username := strings.TrimSpace(req.Username)
	plate := strings.ToUpper(strings.TrimSpace(req.LicensePlate))
	if domain.NormalizeUsername(username) == "" {
		return nil, fmt.Errorf("username is required: %w", domain.ErrBadRequest)
	}
	if len(domain.NormalizeLicensePlate(plate)) < 2 {
		return nil, fmt.Errorf("license plate is too short: %w", domain.ErrBadRequest)
	}
	at := s.now()
	p := &domain.Profile{
		UserID:             userID,
		Username:           username,
		LicensePlate:       plate,
		Email:              domain.NormalizeEmail(req.Email),
		VerificationStatus: domain.StatusNotVerified,
		Enable:             1,
		CreatedAt:          at,
		UpdatedAt:          at,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		slog.Error("create profile", "user_id", userID, "err", err)
		return nil, fmt.Errorf("create profile: %w", err)
	}
	slog.Info("profile created", "user_id", userID)
	return p, nil
}

func (s *service) Me(ctx context.Context, userID string) (*domain.Profile, error) {
	p, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p.Disabled() {
		return nil, fmt.Errorf("profile %s disabled: %w", userID, domain.ErrForbidden)
	}
	return p, nil
}

func (s *service) Summary(ctx context.Context, userID string) (*domain.ProfileSummary, error) {
	p, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p.Disabled() {
		return nil, fmt.Errorf("profile %s: %w", userID, domain.ErrNotFound)
	}
	summary := domain.Summary(p)
	return &summary, nil
}

// Availability checks the non-empty values concurrently.
func (s *service) Availability(ctx context.Context, username, licensePlate, email string) (*domain.Availability, error) {
	res := &domain.Availability{}
	g, gctx := errgroup.WithContext(ctx)
	asked := false
	check := func(value string, taken func(context.Context, string) (bool, error), dst **bool) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		asked = true
		g.Go(func() error {
			used, err := taken(gctx, value)
			if err != nil {
				return err
			}
			free := !used
			*dst = &free
			return nil
		})
	}
	check(username, s.repo.UsernameTaken, &res.Username)
	check(licensePlate, s.repo.LicensePlateTaken, &res.LicensePlate)
	check(email, s.repo.EmailTaken, &res.Email)
	if !asked {
		return nil, fmt.Errorf("username, license_plate or email is required: %w", domain.ErrBadRequest)
	}
	if err := g.Wait(); err != nil {
		slog.Error("profile availability", "err", err)
		return nil, err
	}
	return res, nil
}

func (s *service) CheckActive(ctx context.Context, userID string) error {
	p, err := s.repo.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if p.Disabled() {
		return fmt.Errorf("profile %s disabled: %w", userID, domain.ErrForbidden)
	}
	return nil
}
