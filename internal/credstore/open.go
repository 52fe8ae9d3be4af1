package credstore

import (
	"context"
	"fmt"

	"github.com/imamik/nodekit/internal/config"
	"github.com/imamik/nodekit/internal/platform/s3"
)

// Open returns the store selected by cfg.
func Open(ctx context.Context, cfg config.CredentialsConfig) (Store, error) {
	switch cfg.Backend {
	case "", config.StoreMemory:
		return NewMemoryStore(), nil
	case config.StoreBadger:
		return OpenBadger(cfg.Path)
	case config.StoreS3:
		client, err := s3.NewClient(ctx, s3.Options{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKeyID,
			SecretKey: cfg.S3.SecretAccessKey,
			PathStyle: cfg.S3.Endpoint != "",
		})
		if err != nil {
			return nil, err
		}
		if err := client.EnsureBucket(ctx, cfg.S3.Bucket); err != nil {
			return nil, err
		}
		return NewS3Store(client, cfg.S3.Bucket, cfg.S3.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown credentials backend %q", cfg.Backend)
	}
}
