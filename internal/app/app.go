// Package app wires configuration, storage and services together for the
// server and the admin CLI.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/plated-app/plated-api/internal/application/conversation"
	"github.com/plated-app/plated-api/internal/application/device"
	"github.com/plated-app/plated-api/internal/application/notification"
	"github.com/plated-app/plated-api/internal/application/post"
	"github.com/plated-app/plated-api/internal/application/profile"
	"github.com/plated-app/plated-api/internal/application/verification"
	"github.com/plated-app/plated-api/internal/config"
	"github.com/plated-app/plated-api/internal/imaging"
	"github.com/plated-app/plated-api/internal/infrastructure/dynamo"
	minioinfra "github.com/plated-app/plated-api/internal/infrastructure/minio"
	s3infra "github.com/plated-app/plated-api/internal/infrastructure/s3"
	"github.com/plated-app/plated-api/internal/infrastructure/sns"
	"github.com/plated-app/plated-api/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App holds the assembled services.
type App struct {
	Dynamo   *dynamodb.Client
	Registry *prometheus.Registry

	Profiles      profile.Service
	Verification  verification.Service
	Conversations conversation.Service
	Notifications notification.Service
	Devices       device.Service
	Posts         post.Service
}

// New builds every repository and service from cfg. Push and object storage
// degrade gracefully: without them notifications are stored only and images
// small enough for a DynamoDB item are kept inline.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	switch cfg.StorageDriver {
	case "s3", "minio":
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	client, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	profiles := dynamo.NewProfileRepo(client, cfg.DynamoTables.Profiles)
	devices := dynamo.NewDeviceRepo(client, cfg.DynamoTables.Devices)

	var push sns.PushSender
	if cfg.SNSPlatformApplicationARN != "" {
		sender, err := sns.NewSender(cfg)
		if err != nil {
			slog.Warn("push sender not available", "err", err)
		} else {
			push = sender
		}
	}

	postStore, err := newObjectStore(ctx, cfg, cfg.S3Buckets.PostImages)
	if err != nil {
		slog.Warn("object storage not available, small post images stay inline", "driver", cfg.StorageDriver, "err", err)
	}
	verificationStore, err := newObjectStore(ctx, cfg, cfg.S3Buckets.VerificationImages)
	if err != nil {
		slog.Warn("object storage not available, small verification images stay inline", "driver", cfg.StorageDriver, "err", err)
	}

	pipeline := imaging.New(cfg.ImageMaxWidth)

	notifSvc := notification.NewService(notification.ServiceDeps{
		Repo:    dynamo.NewNotificationRepo(client, cfg.DynamoTables.Notifications),
		Devices: devices,
		Push:    push,
		Metrics: m,
	})

	a := &App{
		Dynamo:        client,
		Registry:      reg,
		Notifications: notifSvc,
		Profiles:      profile.NewService(profile.ServiceDeps{Profiles: profiles}),
		Verification: verification.NewService(verification.ServiceDeps{
			Profiles:      profiles,
			Images:        dynamo.NewVerificationImageRepo(client, cfg.DynamoTables.VerificationImages),
			Storage:       verificationStore,
			Pipeline:      pipeline,
			Notifications: notifSvc,
			Metrics:       m,
			Quality:       cfg.ImageQuality,
			MaxMB:         cfg.ImageMaxMB,
			Window:        cfg.VerificationWindow,
			Warning:       cfg.VerificationWarning,
		}),
		Conversations: conversation.NewService(conversation.ServiceDeps{
			Conversations: dynamo.NewConversationRepo(client, cfg.DynamoTables.Conversations, cfg.DynamoTables.ConversationParticipants),
			Messages:      dynamo.NewMessageRepo(client, cfg.DynamoTables.Messages),
			Profiles:      profiles,
			Notifications: notifSvc,
			Metrics:       m,
		}),
		Devices: device.NewService(devices, push),
		Posts: post.NewService(post.ServiceDeps{
			Posts:    dynamo.NewPostRepo(client, cfg.DynamoTables.Posts),
			Profiles: profiles,
			Storage:  postStore,
			Pipeline: pipeline,
			Metrics:  m,
			Quality:  cfg.ImageQuality,
			MaxMB:    cfg.ImageMaxMB,
		}),
	}
	return a, nil
}

// objectStore is the part of the S3 and MinIO stores the services use.
type objectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// newObjectStore returns the store for bucket on cfg.StorageDriver and makes
// sure the bucket exists. A nil store is returned on failure.
func newObjectStore(ctx context.Context, cfg *config.Config, bucket string) (objectStore, error) {
	if cfg.StorageDriver == "minio" {
		client, err := minioinfra.NewClient(cfg)
		if err != nil {
			return nil, err
		}
		store := minioinfra.NewStore(client, cfg, bucket)
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	}
	client, err := s3infra.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	store := s3infra.NewStore(client, cfg, bucket)
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}
