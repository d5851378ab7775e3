package minioinfra

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/plated-app/plated-api/internal/config"
)

// Store wraps MinIO operations for one bucket.
type Store struct {
	client  *minio.Client
	bucket  string
	region  string
	baseURL string
}

func NewClient(cfg *config.Config) (*minio.Client, error) {
	client, err := minio.New(cfg.MinIOEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
		Secure: cfg.MinIOUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return client, nil
}

// NewStore creates a Store for bucket. Public URLs are served from
// cfg.PublicBaseURL, or straight from the MinIO endpoint when unset.
func NewStore(client *minio.Client, cfg *config.Config, bucket string) *Store {
	base := cfg.PublicBaseURL
	if base == "" {
		scheme := "http"
		if cfg.MinIOUseSSL {
			scheme = "https"
		}
		base = scheme + "://" + cfg.MinIOEndpoint
	}
	return &Store{client: client, bucket: bucket, region: cfg.AWSRegion, baseURL: strings.TrimSuffix(base, "/")}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("minio bucket exists %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("minio make bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Upload streams an object to MinIO under key and returns its public URL.
func (s *Store) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("minio put object: %w", err)
	}
	return s.PublicURL(key), nil
}

func (s *Store) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.baseURL, s.bucket, key)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio remove object: %w", err)
	}
	return nil
}
