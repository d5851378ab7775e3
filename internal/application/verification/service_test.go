package verification

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/plated-app/plated-api/internal/domain"
	"github.com/plated-app/plated-api/internal/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockProfileStore struct{ mock.Mock }

func (m *mockProfileStore) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	args := m.Called(ctx, userID)
	if p, _ := args.Get(0).(*domain.Profile); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockProfileStore) SetCode(ctx context.Context, userID, code string, generatedAt time.Time, expiresAt *time.Time) error {
	return m.Called(ctx, userID, code, generatedAt, expiresAt).Error(0)
}
func (m *mockProfileStore) Submit(ctx context.Context, userID string, at time.Time) error {
	return m.Called(ctx, userID, at).Error(0)
}
func (m *mockProfileStore) SetStatus(ctx context.Context, userID string, status domain.VerificationStatus, reviewerID string, at time.Time, from []domain.VerificationStatus) error {
	return m.Called(ctx, userID, status, reviewerID, at, from).Error(0)
}
func (m *mockProfileStore) Reset(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}
func (m *mockProfileStore) ListUnverified(ctx context.Context) ([]domain.Profile, error) {
	args := m.Called(ctx)
	ps, _ := args.Get(0).([]domain.Profile)
	return ps, args.Error(1)
}
func (m *mockProfileStore) SoftDelete(ctx context.Context, userID string, at time.Time) error {
	return m.Called(ctx, userID, at).Error(0)
}
func (m *mockProfileStore) MarkWarned(ctx context.Context, userID string, at time.Time) error {
	return m.Called(ctx, userID, at).Error(0)
}

type mockImageStore struct{ mock.Mock }

func (m *mockImageStore) Get(ctx context.Context, userID string, imageType domain.ImageType) (*domain.VerificationImage, error) {
	args := m.Called(ctx, userID, imageType)
	if img, _ := args.Get(0).(*domain.VerificationImage); img != nil {
		return img, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockImageStore) Upsert(ctx context.Context, img *domain.VerificationImage) (*domain.VerificationImage, error) {
	args := m.Called(ctx, img)
	if out, _ := args.Get(0).(*domain.VerificationImage); out != nil {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockImageStore) ListByUser(ctx context.Context, userID string) ([]domain.VerificationImage, error) {
	args := m.Called(ctx, userID)
	imgs, _ := args.Get(0).([]domain.VerificationImage)
	return imgs, args.Error(1)
}
func (m *mockImageStore) DeleteByUser(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type mockObjectStore struct{ mock.Mock }

func (m *mockObjectStore) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	args := m.Called(ctx, key, r, size, contentType)
	return args.String(0), args.Error(1)
}
func (m *mockObjectStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type mockCompressor struct{ mock.Mock }

func (m *mockCompressor) Compress(data []byte, fallbackMime string, quality float64) (string, error) {
	args := m.Called(data, fallbackMime, quality)
	return args.String(0), args.Error(1)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Create(ctx context.Context, userID string, kind domain.NotificationType, content string, relatedID *string, metadata map[string]string) (*domain.Notification, error) {
	args := m.Called(ctx, userID, kind, content, relatedID, metadata)
	if n, _ := args.Get(0).(*domain.Notification); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- helpers ---

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	profiles *mockProfileStore
	images   *mockImageStore
	storage  *mockObjectStore
	pipeline *mockCompressor
	notifier *mockNotifier
	svc      Service
}

func newFixture() *fixture {
	f := &fixture{
		profiles: &mockProfileStore{},
		images:   &mockImageStore{},
		storage:  &mockObjectStore{},
		pipeline: &mockCompressor{},
		notifier: &mockNotifier{},
	}
	f.svc = NewService(f.deps())
	return f
}

func (f *fixture) deps() ServiceDeps {
	return ServiceDeps{
		Profiles:      f.profiles,
		Images:        f.images,
		Storage:       f.storage,
		Pipeline:      f.pipeline,
		Notifications: f.notifier,
		Quality:       0.7,
		MaxMB:         1,
		Window:        14 * 24 * time.Hour,
		Warning:       3 * 24 * time.Hour,
		Now:           func() time.Time { return fixedNow },
		NewCode:       func() (string, error) { return "K7PM2Q", nil },
	}
}

// withoutStorage rebuilds the service with no object store configured.
func (f *fixture) withoutStorage() *fixture {
	d := f.deps()
	d.Storage = nil
	f.svc = NewService(d)
	return f
}

// bigJPEG is a data URI of about 500 KB: inside the 1 MB ceiling but too big
// for a DynamoDB item.
var bigJPEG = "data:image/jpeg;base64," + strings.Repeat("QUFB", 500*1024/4)

func profile(status domain.VerificationStatus) *domain.Profile {
	return &domain.Profile{UserID: "u1", VerificationStatus: status, Enable: 1}
}

func bothImages() []domain.VerificationImage {
	return []domain.VerificationImage{
		{UserID: "u1", ImageType: domain.ImageLicensePlate},
		{UserID: "u1", ImageType: domain.ImageDashboard},
	}
}

// --- GetInfo ---

func TestGetInfo_DaysLeft(t *testing.T) {
	f := newFixture()
	exp := fixedNow.Add(3 * 24 * time.Hour)
	p := profile(domain.StatusNotVerified)
	p.VerificationCode = "ABC234"
	p.VerificationExpiresAt = &exp
	f.profiles.On("Get", mock.Anything, "u1").Return(p, nil)

	info, err := f.svc.GetInfo(context.Background(), "u1")

	require.NoError(t, err)
	assert.Equal(t, "ABC234", info.Code)
	require.NotNil(t, info.DaysLeft)
	assert.Contains(t, []int{2, 3}, *info.DaysLeft)
}

func TestGetInfo_EmptyStatusIsNotVerified(t *testing.T) {
	f := newFixture()
	f.profiles.On("Get", mock.Anything, "u1").Return(profile(""), nil)

	info, err := f.svc.GetInfo(context.Background(), "u1")

	require.NoError(t, err)
	assert.Equal(t, domain.StatusNotVerified, info.Status)
	assert.Nil(t, info.DaysLeft)
}

func TestGetInfo_DisabledProfile(t *testing.T) {
	f := newFixture()
	deleted := fixedNow.Add(-time.Hour)
	p := profile(domain.StatusNotVerified)
	p.Enable = 0
	p.DeletedAt = &deleted
	f.profiles.On("Get", mock.Anything, "u1").Return(p, nil)

	_, err := f.svc.GetInfo(context.Background(), "u1")

	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestGetInfo_NotFound(t *testing.T) {
	f := newFixture()
	f.profiles.On("Get", mock.Anything, "u1").Return(nil, domain.ErrNotFound)

	_, err := f.svc.GetInfo(context.Background(), "u1")

	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

// --- GenerateCode ---

func TestGenerateCode_FirstCodeSetsDeadline(t *testing.T) {
	f := newFixture()
	f.profiles.On("Get", mock.Anything, "u1").Return(profile(domain.StatusNotVerified), nil)
	wantExp := fixedNow.Add(14 * 24 * time.Hour)
	f.profiles.On("SetCode", mock.Anything, "u1", "K7PM2Q", fixedNow, mock.MatchedBy(func(exp *time.Time) bool {
		return exp != nil && exp.Equal(wantExp)
	})).Return(nil)

	c, err := f.svc.GenerateCode(context.Background(), "u1")

	require.NoError(t, err)
	assert.Equal(t, "K7PM2Q", c)
	f.profiles.AssertExpectations(t)
}

func TestGenerateCode_RegenerateKeepsDeadline(t *testing.T) {
	f := newFixture()
	exp := fixedNow.Add(5 * 24 * time.Hour)
	p := profile(domain.StatusRejected)
	p.VerificationExpiresAt = &exp
	f.profiles.On("Get", mock.Anything, "u1").Return(p, nil)
	f.profiles.On("SetCode", mock.Anything, "u1", "K7PM2Q", fixedNow, (*time.Time)(nil)).Return(nil)

	_, err := f.svc.GenerateCode(context.Background(), "u1")

	require.NoError(t, err)
	f.profiles.AssertExpectations(t)
}

func TestGenerateCode_LockedStates(t *testing.T) {
	for _, st := range []domain.VerificationStatus{domain.StatusPending, domain.StatusVerified} {
		t.Run(string(st), func(t *testing.T) {
			f := newFixture()
			f.profiles.On("Get", mock.Anything, "u1").Return(profile(st), nil)

			_, err := f.svc.GenerateCode(context.Background(), "u1")

			assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
			f.profiles.AssertNotCalled(t, "SetCode", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

// --- UploadImage ---

func TestUploadImage_StoresObjectReference(t *testing.T) {
	f := newFixture()
	f.profiles.On("Get", mock.Anything, "u1").Return(profile(domain.StatusNotVerified), nil)
	f.pipeline.On("Compress", []byte("raw"), "image/png", 0.7).Return("data:image/jpeg;base64,AAAA", nil)
	f.images.On("Get", mock.Anything, "u1", domain.ImageDashboard).Return(nil, domain.ErrNotFound)
	f.storage.On("Upload", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "verification/u1/dashboard/") && strings.HasSuffix(key, ".jpg")
	}), mock.Anything, int64(3), "image/jpeg").Return("https://cdn.example/verification-images/x.jpg", nil)
	stored := &domain.VerificationImage{ImageID: "i1", UserID: "u1", ImageType: domain.ImageDashboard, ImageURL: "https://cdn.example/verification-images/x.jpg"}
	f.images.On("Upsert", mock.Anything, mock.MatchedBy(func(img *domain.VerificationImage) bool {
		return img.UserID == "u1" && img.ImageType == domain.ImageDashboard &&
			img.ImageURL == "https://cdn.example/verification-images/x.jpg" && img.ImageKey != "" && img.ImageBase64 == ""
	})).Return(stored, nil)

	img, err := f.svc.UploadImage(context.Background(), "u1", domain.ImageDashboard, []byte("raw"), "image/png")

	require.NoError(t, err)
	assert.Equal(t, "i1", img.ImageID)
	f.storage.AssertExpectations(t)
}

func TestUploadImage_LargePayloadGoesToStorage(t *testing.T) {
	f := newFixture()
	f.profiles.On("Get", mock.Anything, "u1").Return(profile(domain.StatusNotVerified), nil)
	f.pipeline.On("Compress", mock.Anything, mock.Anything, mock.Anything).Return(bigJPEG, nil)
	f.images.On("Get", mock.Anything, "u1", domain.ImageLicensePlate).Return(nil, domain.ErrNotFound)
	f.storage.On("Upload", mock.Anything, mock.Anything, mock.Anything, int64(3*500*1024/4), "image/jpeg").
		Return("https://cdn.example/verification-images/big.jpg", nil)
	f.images.On("Upsert", mock.Anything, mock.MatchedBy(func(img *domain.VerificationImage) bool {
		return img.ImageBase64 == "" && img.ImageURL != ""
	})).Return(&domain.VerificationImage{ImageID: "i1"}, nil)

	_, err := f.svc.UploadImage(context.Background(), "u1", domain.ImageLicensePlate, []byte("raw"), "image/jpeg")

	require.NoError(t, err)
	f.images.AssertExpectations(t)
}

func TestUploadImage_UploadFailureRejectsPayloadTooBigForItem(t *testing.T) {
	f := newFixture()
	f.profiles.On("Get", mock.Anything, "u1").Return(profile(domain.StatusNotVerified), nil)
	f.pipeline.On("Compress", mock.Anything, mock.Anything, mock.Anything).Return(bigJPEG, nil)
	f.images.On("Get", mock.Anything, "u1", domain.ImageLicensePlate).Return(nil, domain.ErrNotFound)
	f.storage.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("bucket missing"))

	_, err := f.svc.UploadImage(context.Background(), "u1", domain.ImageLicensePlate, []byte("raw"), "image/jpeg")

	assert.True(t, errors.Is(err, domain.ErrPayloadTooLarge))
	f.images.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestUploadImage_WithoutStorageSmallPayloadStaysInline(t *testing.T) {
	f := newFixture().withoutStorage()
	f.profiles.On("Get", mock.Anything, "u1").Return(profile(domain.StatusNotVerified), nil)
	f.pipeline.On("Compress", mock.Anything, mock.Anything, mock.Anything).Return("data:image/jpeg;base64,AAAA", nil)
	f.images.On("Get", mock.Anything, "u1", domain.ImageDashboard).Return(nil, domain.ErrNotFound)
	f.images.On("Upsert", mock.Anything, mock.MatchedBy(func(img *domain.VerificationImage) bool {
		return img.ImageBase64 == "data:image/jpeg;base64,AAAA" && img.ImageURL == "" && img.ImageKey == ""
	})).Return(&domain.VerificationImage{ImageID: "i1"}, nil)

	_, err := f.svc.UploadImage(context.Background(), "u1", domain.ImageDashboard, []byte("raw"), "image/jpeg")

	require.NoError(t, err)
	f.images.AssertExpectations(t)
}

func TestUploadImage_WithoutStorageLargePayloadRejected(t *testing.T) {
	f := newFixture().withoutStorage()
	f.profiles.On("Get", mock.Anything, "u1").Return(profile(domain.StatusNotVerified), nil)
	f.pipeline.On("Compress", mock.Anything, mock.Anything, mock.Anything).Return(bigJPEG, nil)
	f.images.On("Get", mock.Anything, "u1", domain.ImageDashboard).Return(nil, domain.ErrNotFound)

	_, err := f.svc.UploadImage(context.Background(), "u1", domain.ImageDashboard, []byte("raw"), "image/jpeg")

	assert.True(t, errors.Is(err, domain.ErrPayloadTooLarge))
	f.images.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestUploadImage_ReplacementDeletesPreviousObject(t *testing.T) {
	f := newFixture()
	f.profiles.On("Get", mock.Anything, "u1").Return(profile(domain.StatusRejected), nil)
	f.pipeline.On("Compress", mock.Anything, mock.Anything, mock.Anything).Return("data:image/jpeg;base64,U0VD", nil)
	f.images.On("Get", mock.Anything, "u1", domain.ImageDashboard).
		Return(&domain.VerificationImage{ImageID: "i1", ImageKey: "verification/u1/dashboard/old.jpg"}, nil)
	var newKey string
	f.storage.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, "image/jpeg").Run(func(args mock.Arguments) {
		newKey = args.String(1)
	}).Return("https://cdn.example/verification-images/new.jpg", nil)
	f.images.On("Upsert", mock.Anything, mock.Anything).Return(&domain.VerificationImage{ImageID: "i1"}, nil)
	f.storage.On("Delete", mock.Anything, "verification/u1/dashboard/old.jpg").Return(nil)

	img, err := f.svc.UploadImage(context.Background(), "u1", domain.ImageDashboard, []byte("second"), "image/jpeg")

	require.NoError(t, err)
	assert.Equal(t, "i1", img.ImageID)
	assert.NotEqual(t, "verification/u1/dashboard/old.jpg", newKey)
	f.storage.AssertExpectations(t)
}

func TestUploadImage_StoreFailureDeletesUploadedObject(t *testing.T) {
	f := newFixture()
	f.profiles.On("Get", mock.Anything, "u1").Return(profile(domain.StatusNotVerified), nil)
	f.pipeline.On("Compress", mock.Anything, mock.Anything, mock.Anything).Return("data:image/jpeg;base64,AAAA", nil)
	f.images.On("Get", mock.Anything, "u1", domain.ImageDashboard).Return(nil, domain.ErrNotFound)
	f.storage.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("https://cdn.example/verification-images/x.jpg", nil)
	f.images.On("Upsert", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))
	f.storage.On("Delete", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "verification/u1/dashboard/")
	})).Return(nil)

	_, err := f.svc.UploadImage(context.Background(), "u1", domain.ImageDashboard, []byte("raw"), "image/jpeg")

	require.Error(t, err)
	f.storage.AssertNumberOfCalls(t, "Delete", 1)
}

func TestUploadImage_UnknownType(t *testing.T) {
	f := newFixture()

	_, err := f.svc.UploadImage(context.Background(), "u1", "selfie", []byte("raw"), "image/jpeg")

	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestUploadImage_DisabledProfile(t *testing.T) {
	f := newFixture()
	p := profile(domain.StatusNotVerified)
	p.Enable = 0
	f.profiles.On("Get", mock.Anything, "u1").Return(p, nil)

	_, err := f.svc.UploadImage(context.Background(), "u1", domain.ImageLicensePlate, []byte("raw"), "image/jpeg")

	assert.True(t, errors.Is(err, domain.ErrForbidden))
	f.pipeline.AssertNotCalled(t, "Compress", mock.Anything, mock.Anything, mock.Anything)
}

func TestUploadImage_LockedWhilePending(t *testing.T) {
	f := newFixture()
	f.profiles.On("Get", mock.Anything, "u1").Return(profile(domain.StatusPending), nil)

	_, err := f.svc.UploadImage(context.Background(), "u1", domain.ImageLicensePlate, []byte("raw"), "image/jpeg")

	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
	f.pipeline.AssertNotCalled(t, "Compress", mock.Anything, mock.Anything, mock.Anything)
}

func TestUploadImage_TooLarge(t *testing.T) {
	f := newFixture()
	f.profiles.On("Get", mock.Anything, "u1").Return(profile(domain.StatusNotVerified), nil)
	f.pipeline.On("Compress", mock.Anything, mock.Anything, mock.Anything).
		Return(strings.Repeat("a", 1024*1024+1), nil)

	_, err := f.svc.UploadImage(context.Background(), "u1", domain.ImageLicensePlate, []byte("raw"), "image/jpeg")

	assert.True(t, errors.Is(err, domain.ErrPayloadTooLarge))
	f.images.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestUploadImage_EncodeFailed(t *testing.T) {
	f := newFixture()
	f.profiles.On("Get", mock.Anything, "u1").Return(profile(domain.StatusNotVerified), nil)
	f.pipeline.On("Compress", mock.Anything, mock.Anything, mock.Anything).Return("", imaging.ErrEncodeFailed)

	_, err := f.svc.UploadImage(context.Background(), "u1", domain.ImageLicensePlate, nil, "image/jpeg")

	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

// --- Submit ---

func TestSubmit_MissingImage(t *testing.T) {
	f := newFixture()
	f.profiles.On("Get", mock.Anything, "u1").Return(profile(domain.StatusNotVerified), nil)
	f.images.On("ListByUser", mock.Anything, "u1").Return([]domain.VerificationImage{
		{UserID: "u1", ImageType: domain.ImageLicensePlate},
	}, nil)

	err := f.svc.Submit(context.Background(), "u1")

	assert.True(t, errors.Is(err, domain.ErrMissingImages))
	f.profiles.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmit_FromRejected(t *testing.T) {
	f := newFixture()
	f.profiles.On("Get", mock.Anything, "u1").Return(profile(domain.StatusRejected), nil)
	f.images.On("ListByUser", mock.Anything, "u1").Return(bothImages(), nil)
	f.profiles.On("Submit", mock.Anything, "u1", fixedNow).Return(nil)
	f.notifier.On("Create", mock.Anything, "u1", domain.NotificationVerificationSubmitted, mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.Notification{}, nil).Once()

	err := f.svc.Submit(context.Background(), "u1")

	require.NoError(t, err)
	f.notifier.AssertExpectations(t)
}

func TestSubmit_AlreadyPending(t *testing.T) {
	f := newFixture()
	f.profiles.On("Get", mock.Anything, "u1").Return(profile(domain.StatusPending), nil)

	err := f.svc.Submit(context.Background(), "u1")

	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
}

func TestSubmit_LostRace(t *testing.T) {
	f := newFixture()
	f.profiles.On("Get", mock.Anything, "u1").Return(profile(domain.StatusNotVerified), nil)
	f.images.On("ListByUser", mock.Anything, "u1").Return(bothImages(), nil)
	f.profiles.On("Submit", mock.Anything, "u1", fixedNow).Return(domain.ErrInvalidTransition)

	err := f.svc.Submit(context.Background(), "u1")

	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
	f.notifier.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// --- UpdateStatus ---

func TestUpdateStatus_ApproveCreatesOneNotification(t *testing.T) {
	f := newFixture()
	f.profiles.On("Get", mock.Anything, "u1").Return(profile(domain.StatusPending), nil)
	f.profiles.On("SetStatus", mock.Anything, "u1", domain.StatusVerified, "admin1", fixedNow,
		[]domain.VerificationStatus{domain.StatusPending}).Return(nil)
	f.notifier.On("Create", mock.Anything, "u1", domain.NotificationVerificationApproved, mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.Notification{}, nil)

	err := f.svc.UpdateStatus(context.Background(), "u1", domain.StatusVerified, "admin1")

	require.NoError(t, err)
	f.notifier.AssertNumberOfCalls(t, "Create", 1)
}

func TestUpdateStatus_NotificationCarriesStatus(t *testing.T) {
	f := newFixture()
	f.profiles.On("Get", mock.Anything, "u1").Return(profile(domain.StatusPending), nil)
	f.profiles.On("SetStatus", mock.Anything, "u1", domain.StatusRejected, "admin1", fixedNow, mock.Anything).Return(nil)
	related := "u1"
	f.notifier.On("Create", mock.Anything, "u1", domain.NotificationVerificationRejected, mock.Anything, &related,
		map[string]string{"status": "rejected"}).Return(&domain.Notification{}, nil)

	require.NoError(t, f.svc.UpdateStatus(context.Background(), "u1", domain.StatusRejected, "admin1"))
	f.notifier.AssertExpectations(t)
}

func TestUpdateStatus_Reject(t *testing.T) {
	f := newFixture()
	f.profiles.On("Get", mock.Anything, "u1").Return(profile(domain.StatusPending), nil)
	f.profiles.On("SetStatus", mock.Anything, "u1", domain.StatusRejected, "", fixedNow, mock.Anything).Return(nil)
	f.notifier.On("Create", mock.Anything, "u1", domain.NotificationVerificationRejected, mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.Notification{}, nil)

	require.NoError(t, f.svc.UpdateStatus(context.Background(), "u1", domain.StatusRejected, ""))
	f.notifier.AssertExpectations(t)
}

func TestUpdateStatus_ApproveRequiresPending(t *testing.T) {
	f := newFixture()
	f.profiles.On("Get", mock.Anything, "u1").Return(profile(domain.StatusNotVerified), nil)

	err := f.svc.UpdateStatus(context.Background(), "u1", domain.StatusVerified, "admin1")

	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
	f.notifier.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateStatus_OverrideSendsGenericUpdate(t *testing.T) {
	f := newFixture()
	f.profiles.On("Get", mock.Anything, "u1").Return(profile(domain.StatusVerified), nil)
	f.profiles.On("SetStatus", mock.Anything, "u1", domain.StatusNotVerified, "admin1", fixedNow,
		[]domain.VerificationStatus(nil)).Return(nil)
	f.notifier.On("Create", mock.Anything, "u1", domain.NotificationVerificationStatusUpdate, mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.Notification{}, nil)

	require.NoError(t, f.svc.UpdateStatus(context.Background(), "u1", domain.StatusNotVerified, "admin1"))
	f.notifier.AssertExpectations(t)
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	f := newFixture()

	err := f.svc.UpdateStatus(context.Background(), "u1", "approved", "admin1")

	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestUpdateStatus_NotificationFailureIsLogged(t *testing.T) {
	f := newFixture()
	f.profiles.On("Get", mock.Anything, "u1").Return(profile(domain.StatusPending), nil)
	f.profiles.On("SetStatus", mock.Anything, "u1", domain.StatusVerified, "", fixedNow, mock.Anything).Return(nil)
	f.notifier.On("Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("throttled"))

	assert.NoError(t, f.svc.UpdateStatus(context.Background(), "u1", domain.StatusVerified, ""))
}

// --- Reset ---

func TestReset_ImageDeleteFailureIsIgnored(t *testing.T) {
	f := newFixture()
	f.profiles.On("Reset", mock.Anything, "u1").Return(nil)
	f.images.On("ListByUser", mock.Anything, "u1").Return(bothImages(), nil)
	f.images.On("DeleteByUser", mock.Anything, "u1").Return(errors.New("throttled"))

	assert.NoError(t, f.svc.Reset(context.Background(), "u1"))
	f.images.AssertExpectations(t)
}

func TestReset_DeletesStoredObjects(t *testing.T) {
	f := newFixture()
	f.profiles.On("Reset", mock.Anything, "u1").Return(nil)
	f.images.On("ListByUser", mock.Anything, "u1").Return([]domain.VerificationImage{
		{UserID: "u1", ImageType: domain.ImageLicensePlate, ImageKey: "verification/u1/license_plate/a.jpg"},
		{UserID: "u1", ImageType: domain.ImageDashboard, ImageBase64: "data:image/jpeg;base64,AAAA"},
	}, nil)
	f.images.On("DeleteByUser", mock.Anything, "u1").Return(nil)
	f.storage.On("Delete", mock.Anything, "verification/u1/license_plate/a.jpg").Return(nil)

	require.NoError(t, f.svc.Reset(context.Background(), "u1"))
	f.storage.AssertNumberOfCalls(t, "Delete", 1)
}

func TestReset_StoreFailure(t *testing.T) {
	f := newFixture()
	f.profiles.On("Reset", mock.Anything, "u1").Return(domain.ErrNotFound)

	err := f.svc.Reset(context.Background(), "u1")

	assert.True(t, errors.Is(err, domain.ErrNotFound))
	f.images.AssertNotCalled(t, "DeleteByUser", mock.Anything, mock.Anything)
}

// --- CheckExpired ---

func TestCheckExpired(t *testing.T) {
	f := newFixture()
	at := func(d time.Duration) *time.Time { ts := fixedNow.Add(d); return &ts }
	warned := fixedNow.Add(-time.Hour)
	f.profiles.On("ListUnverified", mock.Anything).Return([]domain.Profile{
		{UserID: "expired", VerificationExpiresAt: at(-time.Hour)},
		{UserID: "soon", VerificationExpiresAt: at(2 * 24 * time.Hour)},
		{UserID: "already-warned", VerificationExpiresAt: at(time.Hour), ExpiryWarnedAt: &warned},
		{UserID: "later", VerificationExpiresAt: at(10 * 24 * time.Hour)},
	}, nil)
	f.profiles.On("SoftDelete", mock.Anything, "expired", fixedNow).Return(nil)
	f.notifier.On("Create", mock.Anything, "soon", domain.NotificationVerificationExpiry, mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.Notification{}, nil)
	f.profiles.On("MarkWarned", mock.Anything, "soon", fixedNow).Return(nil)

	res, err := f.svc.CheckExpired(context.Background())

	require.NoError(t, err)
	assert.Equal(t, &SweepResult{Disabled: 1, Warned: 1}, res)
	f.profiles.AssertExpectations(t)
	f.notifier.AssertNumberOfCalls(t, "Create", 1)
}
