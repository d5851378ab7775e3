package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string
	AppEnv   string
	LogLevel string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	StorageDriver  string // "s3" | "minio"
	S3Buckets      Buckets
	PublicBaseURL  string // prefix for public object URLs; derived from the driver when empty
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOUseSSL    bool

	SNSRegion                 string
	SNSPlatformApplicationARN string // empty disables remote push

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	ImageMaxWidth int
	ImageQuality  float64
	ImageMaxMB    float64

	VerificationWindow  time.Duration
	VerificationWarning time.Duration

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Profiles                 string
	VerificationImages       string
	Conversations            string
	ConversationParticipants string
	Messages                 string
	Notifications            string
	Devices                  string
	Posts                    string
}

// Buckets holds the object storage bucket per media kind.
type Buckets struct {
	PostImages         string
	VerificationImages string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:  getEnv("APP_PORT", "3000"),
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AWSRegion:      getEnv("AWS_REGION", "eu-central-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Profiles:                 getEnv("DYNAMO_TABLE_PROFILES", "profiles"),
			VerificationImages:       getEnv("DYNAMO_TABLE_VERIFICATION_IMAGES", "verification_images"),
			Conversations:            getEnv("DYNAMO_TABLE_CONVERSATIONS", "conversations"),
			ConversationParticipants: getEnv("DYNAMO_TABLE_CONVERSATION_PARTICIPANTS", "conversation_participants"),
			Messages:                 getEnv("DYNAMO_TABLE_MESSAGES", "messages"),
			Notifications:            getEnv("DYNAMO_TABLE_NOTIFICATIONS", "notifications"),
			Devices:                  getEnv("DYNAMO_TABLE_DEVICES", "devices"),
			Posts:                    getEnv("DYNAMO_TABLE_POSTS", "posts"),
		},

		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", "s3")),
		S3Buckets: Buckets{
			PostImages:         getEnv("S3_BUCKET_POST_IMAGES", "post-images"),
			VerificationImages: getEnv("S3_BUCKET_VERIFICATION_IMAGES", "verification-images"),
		},
		PublicBaseURL:  getEnv("STORAGE_PUBLIC_BASE_URL", ""),
		MinIOEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinIOAccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		MinIOSecretKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
		MinIOUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		SNSRegion:                 getEnv("SNS_REGION", "eu-central-1"),
		SNSPlatformApplicationARN: getEnv("SNS_PLATFORM_APPLICATION_ARN", ""),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         time.Duration(getEnvInt("JWT_EXPIRY_DAYS", 7)) * 24 * time.Hour,

		ImageMaxWidth: getEnvInt("IMAGE_MAX_WIDTH", 1000),
		ImageQuality:  getEnvFloat("IMAGE_QUALITY", 0.7),
		ImageMaxMB:    getEnvFloat("IMAGE_MAX_MB", 1),

		VerificationWindow:  time.Duration(getEnvInt("VERIFICATION_WINDOW_DAYS", 14)) * 24 * time.Hour,
		VerificationWarning: time.Duration(getEnvInt("VERIFICATION_WARNING_DAYS", 3)) * 24 * time.Hour,

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
