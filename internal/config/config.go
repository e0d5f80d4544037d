package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Blob storage backends.
const (
	BlobBackendFilesystem = "filesystem"
	BlobBackendS3         = "s3"
	BlobBackendMemory     = "memory"
)

// Config holds the application configuration
type Config struct {
	ServerPort  int    `envconfig:"SERVER_PORT" default:"8080"`
	JWTSecret   string `envconfig:"JWT_SECRET" required:"true"`
	DatabaseURL string `envconfig:"DATABASE_URL"` // empty selects the in-memory store
	CORSOrigin  string `envconfig:"CORS_ORIGIN" default:"http://localhost:5173"`
	FrontendURL string `envconfig:"FRONTEND_URL" default:"http://localhost:5173"`

	BlobBackend   string `envconfig:"BLOB_BACKEND" default:"filesystem"`
	UploadDir     string `envconfig:"UPLOAD_DIR" default:"uploads"`
	AWSBucketName string `envconfig:"AWS_BUCKET_NAME"`
	AWSRegion     string `envconfig:"AWS_REGION"`
	AWSEndpoint   string `envconfig:"AWS_ENDPOINT"` // S3-compatible endpoint, e.g. MinIO
	S3AccessKey   string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey   string `envconfig:"S3_SECRET_KEY"`

	MaxUploadBytes   int64    `envconfig:"MAX_UPLOAD_BYTES" default:"10485760"`
	AllowedMIMETypes []string `envconfig:"ALLOWED_MIME_TYPES" default:"image/jpeg,image/png,application/pdf,text/plain"`

	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	ResetTTL   time.Duration `envconfig:"RESET_TTL" default:"15m"`
	ShareTTL   time.Duration `envconfig:"SHARE_TTL" default:"15m"`

	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"100"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"15m"`
	TrustProxyHeaders bool          `envconfig:"TRUST_PROXY_HEADERS" default:"false"`

	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser     string `envconfig:"EMAIL_USER"`
	SMTPPassword string `envconfig:"EMAIL_PASS"`
	MailFrom     string `envconfig:"MAIL_FROM"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

// Load reads the configuration from environment variables and validates it
func Load(cfg *Config) error {
	if err := envconfig.Process("", cfg); err != nil {
		return err
	}
	return cfg.Validate()
}

// Validate checks the rules envconfig tags cannot express.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}

	switch c.BlobBackend {
	case BlobBackendFilesystem:
		if c.UploadDir == "" {
			return fmt.Errorf("UPLOAD_DIR is required for the filesystem blob backend")
		}
	case BlobBackendS3:
		if c.AWSBucketName == "" || c.AWSRegion == "" {
			return fmt.Errorf("AWS_BUCKET_NAME and AWS_REGION are required for the s3 blob backend")
		}
	case BlobBackendMemory:
	default:
		return fmt.Errorf("unknown BLOB_BACKEND %q", c.BlobBackend)
	}

	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	if len(c.AllowedMIMETypes) == 0 {
		return fmt.Errorf("ALLOWED_MIME_TYPES must list at least one type")
	}
	if c.SessionTTL <= 0 || c.ResetTTL <= 0 || c.ShareTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("rate limit settings must be positive")
	}
	return nil
}

// SMTPEnabled reports whether enough SMTP settings are present to deliver mail.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

// Sender returns the From address for outgoing mail.
func (c *Config) Sender() string {
	if c.MailFrom != "" {
		return c.MailFrom
	}
	return c.SMTPUser
}
