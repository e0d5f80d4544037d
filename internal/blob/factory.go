package blob

import (
	"context"
	"fmt"

	"cloudvault-backend/internal/config"
)

// NewFromConfig creates the Store selected by cfg.BlobBackend.
func NewFromConfig(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.BlobBackend {
	case config.BlobBackendFilesystem:
		return NewFileSystemStore(cfg.UploadDir)
	case config.BlobBackendS3:
		client, err := NewS3Client(ctx, S3Options{
			Region:    cfg.AWSRegion,
			Endpoint:  cfg.AWSEndpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, err
		}
		return NewS3Store(client, cfg.AWSBucketName), nil
	case config.BlobBackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown blob backend: %s", cfg.BlobBackend)
	}
}
