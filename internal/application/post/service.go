package post

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/plated-app/plated-api/internal/domain"
	"github.com/plated-app/plated-api/internal/imaging"
	"github.com/plated-app/plated-api/internal/metrics"
	"github.com/plated-app/plated-api/internal/pkg/id"
	"github.com/plated-app/plated-api/internal/pkg/sensitive"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type Service interface {
	// Create publishes a post. The optional image is compressed and uploaded
	// to object storage; if the upload fails it is stored inline instead,
	// provided it fits in a DynamoDB item.
	Create(ctx context.Context, authorID string, req domain.CreatePostRequest) (*domain.Post, error)
	Get(ctx context.Context, postID string) (*domain.Post, error)
	List(ctx context.Context, limit, offset int) ([]domain.Post, error)
}

type postStore interface {
	Put(ctx context.Context, p *domain.Post) error
	Get(ctx context.Context, postID string) (*domain.Post, error)
	ListFeed(ctx context.Context, limit, offset int) ([]domain.Post, error)
}

type profileStore interface {
	GetMany(ctx context.Context, userIDs []string) (map[string]*domain.Profile, error)
}

// ObjectStore is implemented by the S3 and MinIO stores.
type ObjectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

type imageCompressor interface {
	Compress(data []byte, fallbackMime string, quality float64) (string, error)
}

type service struct {
	posts    postStore
	profiles profileStore
	storage  ObjectStore
	pipeline imageCompressor
	metrics  *metrics.Metrics
	quality  float64
	maxMB    float64
	now      func() time.Time
}

type ServiceDeps struct {
	Posts    postStore
	Profiles profileStore
	Storage  ObjectStore
	Pipeline imageCompressor
	Metrics  *metrics.Metrics
	Quality  float64
	MaxMB    float64
	Now      func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		posts:    deps.Posts,
		profiles: deps.Profiles,
		storage:  deps.Storage,
		pipeline: deps.Pipeline,
		metrics:  deps.Metrics,
		quality:  deps.Quality,
		maxMB:    deps.MaxMB,
		now:      deps.Now,
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.quality == 0 {
		s.quality = 0.7
	}
	if s.maxMB == 0 {
		s.maxMB = 1
	}
	return s
}

func (s *service) Create(ctx context.Context, authorID string, req domain.CreatePostRequest) (*domain.Post, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" && req.Image == "" {
		return nil, fmt.Errorf("post needs text or an image: %w", domain.ErrBadRequest)
	}
	if matches := sensitive.Detect(content); len(matches) > 0 {
		kinds := sensitive.Kinds(matches)
		names := make([]string, len(kinds))
		for i, k := range kinds {
			names[i] = string(k)
		}
		return nil, fmt.Errorf("post contains personal data (%s): %w", strings.Join(names, ", "), domain.ErrBadRequest)
	}

	p := &domain.Post{
		PostID:    id.New(),
		AuthorID:  authorID,
		Content:   content,
		Feed:      domain.FeedGlobal,
		CreatedAt: s.now(),
	}
	if req.Image != "" {
		if err := s.attachImage(ctx, p, req.Image); err != nil {
			return nil, err
		}
	}
	if err := s.posts.Put(ctx, p); err != nil {
		slog.Error("create post", "author_id", authorID, "err", err)
		return nil, fmt.Errorf("create post: %w", err)
	}
	s.withAuthors(ctx, []*domain.Post{p})
	return p, nil
}

func (s *service) attachImage(ctx context.Context, p *domain.Post, image string) error {
	raw, mime, err := imaging.DecodeDataURI(image)
	if err != nil {
		return fmt.Errorf("image: %v: %w", err, domain.ErrBadRequest)
	}
	uri, err := s.pipeline.Compress(raw, mime, s.quality)
	if err != nil {
		if errors.Is(err, imaging.ErrEncodeFailed) {
			return fmt.Errorf("encode image: %w", domain.ErrBadRequest)
		}
		return err
	}
	if imaging.IsBase64TooLarge(uri, s.maxMB) {
		return fmt.Errorf("post image: %w", domain.ErrPayloadTooLarge)
	}

	data, contentType, err := imaging.DecodeDataURI(uri)
	if err == nil && s.storage != nil {
		key := objectKey(p.AuthorID, p.CreatedAt, contentType)
		url, upErr := s.storage.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), contentType)
		if upErr == nil {
			p.ImageURL = &url
			s.metrics.ImageUpload("bucket")
			return nil
		}
		err = upErr
	}
	if !imaging.FitsInline(uri) {
		slog.Error("post image upload failed", "author_id", p.AuthorID, "bytes", len(uri), "err", err)
		return fmt.Errorf("post image cannot be stored inline: %w", domain.ErrPayloadTooLarge)
	}
	slog.Warn("post image upload failed, storing inline", "author_id", p.AuthorID, "err", err)
	p.ImageBase64 = &uri
	s.metrics.ImageUpload("inline")
	return nil
}

func objectKey(authorID string, at time.Time, contentType string) string {
	return fmt.Sprintf("posts/%s/%d/%02d/%s%s",
		authorID, at.Year(), at.Month(), uuid.New().String(), imaging.ExtensionForMime(contentType))
}

func (s *service) Get(ctx context.Context, postID string) (*domain.Post, error) {
	p, err := s.posts.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	s.withAuthors(ctx, []*domain.Post{p})
	return p, nil
}

func (s *service) List(ctx context.Context, limit, offset int) ([]domain.Post, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	posts, err := s.posts.ListFeed(ctx, limit, offset)
	if err != nil {
		slog.Error("list posts", "err", err)
		return nil, err
	}
	if posts == nil {
		posts = []domain.Post{}
	}
	ptrs := make([]*domain.Post, len(posts))
	for i := range posts {
		ptrs[i] = &posts[i]
	}
	s.withAuthors(ctx, ptrs)
	return posts, nil
}

// withAuthors fills in author summaries. Lookup failures leave the display
// defaults in place.
func (s *service) withAuthors(ctx context.Context, posts []*domain.Post) {
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.AuthorID)
	}
	profiles, err := s.profiles.GetMany(ctx, ids)
	if err != nil {
		slog.Warn("load post authors", "err", err)
	}
	for _, p := range posts {
		summary := domain.Summary(profiles[p.AuthorID])
		p.Author = &summary
	}
}
