package sns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/plated-app/plated-api/internal/config"
)

// ErrPushDisabled is returned by CreateEndpoint when no platform application
// is configured.
var ErrPushDisabled = errors.New("push platform application not configured")

// PushSender delivers push notifications through SNS platform endpoints.
type PushSender interface {
	CreateEndpoint(ctx context.Context, token string) (string, error)
	Publish(ctx context.Context, endpointARN, title, body string, data map[string]string) error
	DeleteEndpoint(ctx context.Context, endpointARN string) error
}

type sender struct {
	client         *sns.Client
	applicationARN string
}

func NewSender(cfg *config.Config) (PushSender, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.SNSRegion),
	}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, err
	}
	clientOpts := []func(*sns.Options){}
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return &sender{
		client:         sns.NewFromConfig(awsCfg, clientOpts...),
		applicationARN: cfg.SNSPlatformApplicationARN,
	}, nil
}

func (s *sender) CreateEndpoint(ctx context.Context, token string) (string, error) {
	if s.applicationARN == "" {
		return "", ErrPushDisabled
	}
	out, err := s.client.CreatePlatformEndpoint(ctx, &sns.CreatePlatformEndpointInput{
		PlatformApplicationArn: aws.String(s.applicationARN),
		Token:                  aws.String(token),
	})
	if err != nil {
		return "", fmt.Errorf("create platform endpoint: %w", err)
	}
	return aws.ToString(out.EndpointArn), nil
}

func (s *sender) Publish(ctx context.Context, endpointARN, title, body string, data map[string]string) error {
	msg, err := BuildMessage(title, body, data)
	if err != nil {
		return err
	}
	_, err = s.client.Publish(ctx, &sns.PublishInput{
		TargetArn:        aws.String(endpointARN),
		Message:          aws.String(msg),
		MessageStructure: aws.String("json"),
	})
	return err
}

func (s *sender) DeleteEndpoint(ctx context.Context, endpointARN string) error {
	_, err := s.client.DeleteEndpoint(ctx, &sns.DeleteEndpointInput{EndpointArn: aws.String(endpointARN)})
	return err
}

// BuildMessage renders the per-platform SNS message envelope.
func BuildMessage(title, body string, data map[string]string) (string, error) {
	apns, err := json.Marshal(map[string]interface{}{
		"aps": map[string]interface{}{
			"alert": map[string]string{"title": title, "body": body},
			"sound": "default",
		},
		"data": data,
	})
	if err != nil {
		return "", fmt.Errorf("marshal apns payload: %w", err)
	}
	gcm, err := json.Marshal(map[string]interface{}{
		"notification": map[string]string{"title": title, "body": body},
		"data":         data,
	})
	if err != nil {
		return "", fmt.Errorf("marshal gcm payload: %w", err)
	}
	envelope, err := json.Marshal(map[string]string{
		"default":      body,
		"APNS":         string(apns),
		"APNS_SANDBOX": string(apns),
		"GCM":          string(gcm),
	})
	if err != nil {
		return "", fmt.Errorf("marshal sns envelope: %w", err)
	}
	return string(envelope), nil
}
