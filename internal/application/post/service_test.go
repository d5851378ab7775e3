package post

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/plated-app/plated-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockPostStore struct{ mock.Mock }

func (m *mockPostStore) Put(ctx context.Context, p *domain.Post) error {
	return m.Called(ctx, p).Error(0)
}
func (m *mockPostStore) Get(ctx context.Context, postID string) (*domain.Post, error) {
	args := m.Called(ctx, postID)
	if p, _ := args.Get(0).(*domain.Post); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockPostStore) ListFeed(ctx context.Context, limit, offset int) ([]domain.Post, error) {
	args := m.Called(ctx, limit, offset)
	ps, _ := args.Get(0).([]domain.Post)
	return ps, args.Error(1)
}

type mockProfileStore struct{ mock.Mock }

func (m *mockProfileStore) GetMany(ctx context.Context, userIDs []string) (map[string]*domain.Profile, error) {
	args := m.Called(ctx, userIDs)
	ps, _ := args.Get(0).(map[string]*domain.Profile)
	return ps, args.Error(1)
}

type mockObjectStore struct{ mock.Mock }

func (m *mockObjectStore) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	args := m.Called(ctx, key, r, size, contentType)
	return args.String(0), args.Error(1)
}

type mockCompressor struct{ mock.Mock }

func (m *mockCompressor) Compress(data []byte, fallbackMime string, quality float64) (string, error) {
	args := m.Called(data, fallbackMime, quality)
	return args.String(0), args.Error(1)
}

// --- helpers ---

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

const (
	inputImage = "data:image/png;base64,cmF3"  // "raw"
	compressed = "data:image/jpeg;base64,anBn" // "jpg"
)

type fixture struct {
	posts    *mockPostStore
	profiles *mockProfileStore
	storage  *mockObjectStore
	pipeline *mockCompressor
	svc      Service
}

func newFixture() *fixture {
	f := &fixture{
		posts:    &mockPostStore{},
		profiles: &mockProfileStore{},
		storage:  &mockObjectStore{},
		pipeline: &mockCompressor{},
	}
	f.svc = NewService(ServiceDeps{
		Posts:    f.posts,
		Profiles: f.profiles,
		Storage:  f.storage,
		Pipeline: f.pipeline,
		Quality:  0.7,
		MaxMB:    1,
		Now:      func() time.Time { return fixedNow },
	})
	f.profiles.On("GetMany", mock.Anything, mock.Anything).Return(map[string]*domain.Profile{
		"u1": {UserID: "u1", Username: "alice", LicensePlate: "B-AL 1"},
	}, nil)
	return f
}

// --- Create ---

func TestCreate_TextOnly(t *testing.T) {
	f := newFixture()
	f.posts.On("Put", mock.Anything, mock.MatchedBy(func(p *domain.Post) bool {
		return p.Content == "Nice parking" && p.ImageURL == nil && p.ImageBase64 == nil && p.Feed == domain.FeedGlobal
	})).Return(nil)

	p, err := f.svc.Create(context.Background(), "u1", domain.CreatePostRequest{Content: " Nice parking "})

	require.NoError(t, err)
	require.NotNil(t, p.Author)
	assert.Equal(t, "alice", p.Author.Username)
	f.pipeline.AssertNotCalled(t, "Compress", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreate_Empty(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Create(context.Background(), "u1", domain.CreatePostRequest{Content: "   "})

	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestCreate_RejectsPersonalData(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Create(context.Background(), "u1", domain.CreatePostRequest{Content: "mail me: me@example.com"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	assert.Contains(t, err.Error(), "email")
	f.posts.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestCreate_ImageUploaded(t *testing.T) {
	f := newFixture()
	f.pipeline.On("Compress", []byte("raw"), "image/png", 0.7).Return(compressed, nil)
	f.storage.On("Upload", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "posts/u1/2024/06/") && strings.HasSuffix(key, ".jpg")
	}), mock.Anything, int64(3), "image/jpeg").Return("https://cdn.example/post-images/x.jpg", nil)
	f.posts.On("Put", mock.Anything, mock.MatchedBy(func(p *domain.Post) bool {
		return p.ImageURL != nil && *p.ImageURL == "https://cdn.example/post-images/x.jpg" && p.ImageBase64 == nil
	})).Return(nil)

	_, err := f.svc.Create(context.Background(), "u1", domain.CreatePostRequest{Image: inputImage})

	require.NoError(t, err)
	f.storage.AssertExpectations(t)
}

func TestCreate_UploadFailureStoresInline(t *testing.T) {
	f := newFixture()
	f.pipeline.On("Compress", mock.Anything, mock.Anything, mock.Anything).Return(compressed, nil)
	f.storage.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("bucket missing"))
	f.posts.On("Put", mock.Anything, mock.MatchedBy(func(p *domain.Post) bool {
		return p.ImageURL == nil && p.ImageBase64 != nil && *p.ImageBase64 == compressed
	})).Return(nil)

	_, err := f.svc.Create(context.Background(), "u1", domain.CreatePostRequest{Content: "look", Image: inputImage})

	require.NoError(t, err)
	f.posts.AssertExpectations(t)
}

func TestCreate_UploadFailureRejectsPayloadTooBigForItem(t *testing.T) {
	f := newFixture()
	big := "data:image/jpeg;base64," + strings.Repeat("QUFB", 500*1024/4)
	f.pipeline.On("Compress", mock.Anything, mock.Anything, mock.Anything).Return(big, nil)
	f.storage.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("bucket missing"))

	_, err := f.svc.Create(context.Background(), "u1", domain.CreatePostRequest{Image: inputImage})

	assert.True(t, errors.Is(err, domain.ErrPayloadTooLarge))
	f.posts.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestCreate_LargeImageUploaded(t *testing.T) {
	f := newFixture()
	big := "data:image/jpeg;base64," + strings.Repeat("QUFB", 500*1024/4)
	f.pipeline.On("Compress", mock.Anything, mock.Anything, mock.Anything).Return(big, nil)
	f.storage.On("Upload", mock.Anything, mock.Anything, mock.Anything, int64(3*500*1024/4), "image/jpeg").
		Return("https://cdn.example/post-images/big.jpg", nil)
	f.posts.On("Put", mock.Anything, mock.MatchedBy(func(p *domain.Post) bool {
		return p.ImageURL != nil && p.ImageBase64 == nil
	})).Return(nil)

	_, err := f.svc.Create(context.Background(), "u1", domain.CreatePostRequest{Image: inputImage})

	require.NoError(t, err)
	f.posts.AssertExpectations(t)
}

func TestCreate_ImageTooLarge(t *testing.T) {
	f := newFixture()
	f.pipeline.On("Compress", mock.Anything, mock.Anything, mock.Anything).Return(strings.Repeat("a", 1024*1024+1), nil)

	_, err := f.svc.Create(context.Background(), "u1", domain.CreatePostRequest{Image: inputImage})

	assert.True(t, errors.Is(err, domain.ErrPayloadTooLarge))
	f.storage.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreate_InvalidImage(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Create(context.Background(), "u1", domain.CreatePostRequest{Image: "https://example.com/a.jpg"})

	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

// --- List / Get ---

func TestList_ClampsLimitAndNormalisesAuthors(t *testing.T) {
	f := newFixture()
	f.posts.On("ListFeed", mock.Anything, maxListLimit, 0).Return([]domain.Post{
		{PostID: "p1", AuthorID: "u1"},
		{PostID: "p2", AuthorID: "ghost"},
	}, nil)

	posts, err := f.svc.List(context.Background(), 500, -3)

	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "alice", posts[0].Author.Username)
	assert.Equal(t, domain.UnknownUsername, posts[1].Author.Username)
	assert.Equal(t, domain.UnknownLicensePlate, posts[1].Author.LicensePlate)
}

func TestList_DefaultLimit(t *testing.T) {
	f := newFixture()
	f.posts.On("ListFeed", mock.Anything, defaultListLimit, 40).Return([]domain.Post(nil), nil)

	posts, err := f.svc.List(context.Background(), 0, 40)

	require.NoError(t, err)
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture()
	f.posts.On("Get", mock.Anything, "p1").Return(nil, domain.ErrNotFound)

	_, err := f.svc.Get(context.Background(), "p1")

	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
