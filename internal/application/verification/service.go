package verification

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/plated-app/plated-api/internal/domain"
	"github.com/plated-app/plated-api/internal/imaging"
	"github.com/plated-app/plated-api/internal/metrics"
	"github.com/plated-app/plated-api/internal/pkg/code"
	"github.com/plated-app/plated-api/internal/pkg/id"
)

type Service interface {
	GetInfo(ctx context.Context, userID string) (*domain.VerificationInfo, error)
	GenerateCode(ctx context.Context, userID string) (string, error)
	// UploadImage compresses data and stores it for (user, type), replacing
	// an earlier upload of the same type. The photo goes to object storage;
	// it is kept inline only when storage fails and it fits in an item.
	UploadImage(ctx context.Context, userID string, imageType domain.ImageType, data []byte, mime string) (*domain.VerificationImage, error)
	GetImages(ctx context.Context, userID string) ([]domain.VerificationImage, error)
	Submit(ctx context.Context, userID string) error
	UpdateStatus(ctx context.Context, userID string, status domain.VerificationStatus, reviewerID string) error
	Reset(ctx context.Context, userID string) error
	// CheckExpired disables unverified profiles past their deadline and warns
	// those close to it.
	CheckExpired(ctx context.Context) (*SweepResult, error)
}

// SweepResult reports what CheckExpired did.
type SweepResult struct {
	Disabled int `json:"disabled"`
	Warned   int `json:"warned"`
}

type profileStore interface {
	Get(ctx context.Context, userID string) (*domain.Profile, error)
	SetCode(ctx context.Context, userID, code string, generatedAt time.Time, expiresAt *time.Time) error
	Submit(ctx context.Context, userID string, at time.Time) error
	SetStatus(ctx context.Context, userID string, status domain.VerificationStatus, reviewerID string, at time.Time, from []domain.VerificationStatus) error
	Reset(ctx context.Context, userID string) error
	ListUnverified(ctx context.Context) ([]domain.Profile, error)
	SoftDelete(ctx context.Context, userID string, at time.Time) error
	MarkWarned(ctx context.Context, userID string, at time.Time) error
}

type imageStore interface {
	Get(ctx context.Context, userID string, imageType domain.ImageType) (*domain.VerificationImage, error)
	Upsert(ctx context.Context, img *domain.VerificationImage) (*domain.VerificationImage, error)
	ListByUser(ctx context.Context, userID string) ([]domain.VerificationImage, error)
	DeleteByUser(ctx context.Context, userID string) error
}

// ObjectStore is implemented by the S3 and MinIO stores.
type ObjectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

type imageCompressor interface {
	Compress(data []byte, fallbackMime string, quality float64) (string, error)
}

type notifier interface {
	Create(ctx context.Context, userID string, kind domain.NotificationType, content string, relatedID *string, metadata map[string]string) (*domain.Notification, error)
}

type service struct {
	profiles      profileStore
	images        imageStore
	storage       ObjectStore
	pipeline      imageCompressor
	notifications notifier
	metrics       *metrics.Metrics
	quality       float64
	maxMB         float64
	window        time.Duration
	warning       time.Duration
	now           func() time.Time
	newCode       func() (string, error)
}

type ServiceDeps struct {
	Profiles      profileStore
	Images        imageStore
	Storage       ObjectStore
	Pipeline      imageCompressor
	Notifications notifier
	Metrics       *metrics.Metrics
	Quality       float64
	MaxMB         float64
	// Window is how long a user has from the first code to get verified.
	Window time.Duration
	// Warning is how long before the deadline the expiry warning is sent.
	Warning time.Duration
	Now     func() time.Time
	NewCode func() (string, error)
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		profiles:      deps.Profiles,
		images:        deps.Images,
		storage:       deps.Storage,
		pipeline:      deps.Pipeline,
		notifications: deps.Notifications,
		metrics:       deps.Metrics,
		quality:       deps.Quality,
		maxMB:         deps.MaxMB,
		window:        deps.Window,
		warning:       deps.Warning,
		now:           deps.Now,
		newCode:       deps.NewCode,
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newCode == nil {
		s.newCode = code.New
	}
	if s.quality == 0 {
		s.quality = 0.7
	}
	if s.maxMB == 0 {
		s.maxMB = 1
	}
	if s.window == 0 {
		s.window = 14 * 24 * time.Hour
	}
	if s.warning == 0 {
		s.warning = 3 * 24 * time.Hour
	}
	return s
}

// activeProfile loads the caller's profile and refuses disabled accounts.
func (s *service) activeProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p.Disabled() {
		return nil, fmt.Errorf("profile %s disabled: %w", userID, domain.ErrForbidden)
	}
	return p, nil
}

func (s *service) GetInfo(ctx context.Context, userID string) (*domain.VerificationInfo, error) {
	p, err := s.activeProfile(ctx, userID)
	if err != nil {
		slog.Error("get verification info", "user_id", userID, "err", err)
		return nil, err
	}
	return &domain.VerificationInfo{
		Code:        p.VerificationCode,
		Status:      p.Status(),
		GeneratedAt: p.VerificationGeneratedAt,
		ExpiresAt:   p.VerificationExpiresAt,
		SubmittedAt: p.VerificationSubmittedAt,
		ReviewedAt:  p.VerificationReviewedAt,
		DaysLeft:    domain.DaysLeft(p.VerificationExpiresAt, s.now()),
	}, nil
}

func (s *service) GenerateCode(ctx context.Context, userID string) (string, error) {
	p, err := s.activeProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	if p.Status().Locked() {
		return "", fmt.Errorf("generate code while %s: %w", p.Status(), domain.ErrInvalidTransition)
	}
	c, err := s.newCode()
	if err != nil {
		return "", err
	}
	at := s.now()
	var expiresAt *time.Time
	if p.VerificationExpiresAt == nil {
		exp := at.Add(s.window)
		expiresAt = &exp
	}
	if err := s.profiles.SetCode(ctx, userID, c, at, expiresAt); err != nil {
		slog.Error("store verification code", "user_id", userID, "err", err)
		return "", fmt.Errorf("store verification code: %w", err)
	}
	return c, nil
}

func (s *service) UploadImage(ctx context.Context, userID string, imageType domain.ImageType, data []byte, mime string) (*domain.VerificationImage, error) {
	if !imageType.Valid() {
		return nil, fmt.Errorf("unknown image type %q: %w", imageType, domain.ErrBadRequest)
	}
	p, err := s.activeProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p.Status().Locked() {
		return nil, fmt.Errorf("upload image while %s: %w", p.Status(), domain.ErrInvalidTransition)
	}
	uri, err := s.pipeline.Compress(data, mime, s.quality)
	if err != nil {
		if errors.Is(err, imaging.ErrEncodeFailed) {
			return nil, fmt.Errorf("encode image: %w", domain.ErrBadRequest)
		}
		return nil, err
	}
	if imaging.IsBase64TooLarge(uri, s.maxMB) {
		return nil, fmt.Errorf("verification image: %w", domain.ErrPayloadTooLarge)
	}
	prev, err := s.images.Get(ctx, userID, imageType)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("load verification image: %w", err)
	}
	at := s.now()
	img := &domain.VerificationImage{
		ImageID:   id.New(),
		UserID:    userID,
		ImageType: imageType,
		CreatedAt: at,
		UpdatedAt: at,
	}
	if err := s.place(ctx, img, uri); err != nil {
		return nil, err
	}
	stored, err := s.images.Upsert(ctx, img)
	if err != nil {
		slog.Error("store verification image", "user_id", userID, "type", imageType, "err", err)
		s.deleteObject(ctx, img.ImageKey)
		return nil, fmt.Errorf("store verification image: %w", err)
	}
	if prev != nil && prev.ImageKey != img.ImageKey {
		s.deleteObject(ctx, prev.ImageKey)
	}
	return stored, nil
}

// place uploads the photo and records its URL and key on img. The data URI is
// kept inline only if there is no store or the upload failed, and only when
// it fits in a DynamoDB item.
func (s *service) place(ctx context.Context, img *domain.VerificationImage, uri string) error {
	var err error
	if s.storage != nil {
		data, contentType, decErr := imaging.DecodeDataURI(uri)
		if decErr != nil {
			return fmt.Errorf("verification image: %v: %w", decErr, domain.ErrBadRequest)
		}
		key := objectKey(img.UserID, img.ImageType, contentType)
		url, upErr := s.storage.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), contentType)
		if upErr == nil {
			img.ImageURL = url
			img.ImageKey = key
			s.metrics.ImageUpload("bucket")
			return nil
		}
		err = upErr
	}
	if !imaging.FitsInline(uri) {
		slog.Error("verification image upload failed", "user_id", img.UserID, "bytes", len(uri), "err", err)
		return fmt.Errorf("verification image cannot be stored inline: %w", domain.ErrPayloadTooLarge)
	}
	if err != nil {
		slog.Warn("verification image upload failed, storing inline", "user_id", img.UserID, "err", err)
	}
	img.ImageBase64 = uri
	s.metrics.ImageUpload("inline")
	return nil
}

func objectKey(userID string, imageType domain.ImageType, contentType string) string {
	return fmt.Sprintf("verification/%s/%s/%s%s",
		userID, imageType, uuid.New().String(), imaging.ExtensionForMime(contentType))
}

func (s *service) deleteObject(ctx context.Context, key string) {
	if key == "" || s.storage == nil {
		return
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		slog.Warn("delete verification object", "key", key, "err", err)
	}
}

func (s *service) GetImages(ctx context.Context, userID string) ([]domain.VerificationImage, error) {
	return s.images.ListByUser(ctx, userID)
}

func (s *service) Submit(ctx context.Context, userID string) error {
	p, err := s.activeProfile(ctx, userID)
	if err != nil {
		return err
	}
	if !p.Status().CanSubmit() {
		return fmt.Errorf("submit while %s: %w", p.Status(), domain.ErrInvalidTransition)
	}
	images, err := s.images.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list verification images: %w", err)
	}
	have := make(map[domain.ImageType]bool, len(images))
	for _, img := range images {
		have[img.ImageType] = true
	}
	for _, t := range domain.RequiredImageTypes {
		if !have[t] {
			return fmt.Errorf("%s image missing: %w", t, domain.ErrMissingImages)
		}
	}
	if err := s.profiles.Submit(ctx, userID, s.now()); err != nil {
		slog.Error("submit verification", "user_id", userID, "err", err)
		return fmt.Errorf("submit verification: %w", err)
	}
	s.metrics.Transition(string(domain.StatusPending))
	s.notify(ctx, userID, domain.NotificationVerificationSubmitted, domain.StatusPending,
		"Your verification has been submitted and is being reviewed.")
	return nil
}

func (s *service) UpdateStatus(ctx context.Context, userID string, status domain.VerificationStatus, reviewerID string) error {
	if !status.Valid() {
		return fmt.Errorf("unknown status %q: %w", status, domain.ErrBadRequest)
	}
	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !p.Status().CanReview(status) {
		return fmt.Errorf("%s -> %s: %w", p.Status(), status, domain.ErrInvalidTransition)
	}
	var from []domain.VerificationStatus
	if status == domain.StatusVerified || status == domain.StatusRejected {
		from = []domain.VerificationStatus{domain.StatusPending}
	}
	if err := s.profiles.SetStatus(ctx, userID, status, reviewerID, s.now(), from); err != nil {
		slog.Error("update verification status", "user_id", userID, "status", status, "err", err)
		return fmt.Errorf("update verification status: %w", err)
	}
	s.metrics.Transition(string(status))

	switch status {
	case domain.StatusVerified:
		s.notify(ctx, userID, domain.NotificationVerificationApproved, status,
			"Your license plate has been verified.")
	case domain.StatusRejected:
		s.notify(ctx, userID, domain.NotificationVerificationRejected, status,
			"Your verification was rejected. Please upload new photos and try again.")
	default:
		s.notify(ctx, userID, domain.NotificationVerificationStatusUpdate, status,
			fmt.Sprintf("Your verification status changed to %s.", status))
	}
	return nil
}

func (s *service) Reset(ctx context.Context, userID string) error {
	if err := s.profiles.Reset(ctx, userID); err != nil {
		slog.Error("reset verification", "user_id", userID, "err", err)
		return fmt.Errorf("reset verification: %w", err)
	}
	s.metrics.Transition(string(domain.StatusNotVerified))
	images, err := s.images.ListByUser(ctx, userID)
	if err != nil {
		slog.Warn("list verification images", "user_id", userID, "err", err)
	}
	if err := s.images.DeleteByUser(ctx, userID); err != nil {
		slog.Warn("delete verification images", "user_id", userID, "err", err)
		return nil
	}
	for _, img := range images {
		s.deleteObject(ctx, img.ImageKey)
	}
	return nil
}

func (s *service) CheckExpired(ctx context.Context) (*SweepResult, error) {
	profiles, err := s.profiles.ListUnverified(ctx)
	if err != nil {
		return nil, fmt.Errorf("list unverified profiles: %w", err)
	}
	now := s.now()
	res := &SweepResult{}
	for _, p := range profiles {
		if p.VerificationExpiresAt == nil || p.Status() == domain.StatusVerified {
			continue
		}
		left := p.VerificationExpiresAt.Sub(now)
		switch {
		case left <= 0:
			if err := s.profiles.SoftDelete(ctx, p.UserID, now); err != nil {
				slog.Error("disable expired profile", "user_id", p.UserID, "err", err)
				continue
			}
			res.Disabled++
		case left <= s.warning && p.ExpiryWarnedAt == nil:
			days := domain.DaysLeft(p.VerificationExpiresAt, now)
			s.notify(ctx, p.UserID, domain.NotificationVerificationExpiry, p.Status(),
				fmt.Sprintf("Your account will be disabled in %d days unless your plate is verified.", *days))
			if err := s.profiles.MarkWarned(ctx, p.UserID, now); err != nil {
				slog.Warn("mark expiry warned", "user_id", p.UserID, "err", err)
			}
			res.Warned++
		}
	}
	slog.Info("verification sweep done", "disabled", res.Disabled, "warned", res.Warned)
	return res, nil
}

// notify creates the notification for a completed transition. Failures are
// logged; the transition itself has already been stored.
func (s *service) notify(ctx context.Context, userID string, kind domain.NotificationType, status domain.VerificationStatus, content string) {
	related := userID
	metadata := map[string]string{"status": string(status)}
	if _, err := s.notifications.Create(ctx, userID, kind, content, &related, metadata); err != nil {
		slog.Error("verification notification", "user_id", userID, "type", kind, "err", err)
	}
}
