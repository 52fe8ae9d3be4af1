package credstore

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/imamik/nodekit/internal/platform/s3"
	"github.com/imamik/nodekit/pkg/compute"
)

// ObjectClient is the subset of the S3 client the store uses.
type ObjectClient interface {
	PutObject(ctx context.Context, bucket, key string, data []byte) error
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	DeleteObject(ctx context.Context, bucket, key string) error
}

// S3Store keeps one JSON object per node in a bucket.
type S3Store struct {
	client ObjectClient
	bucket string
	prefix string
}

// NewS3Store creates a store writing to bucket under prefix.
func NewS3Store(client ObjectClient, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Store) key(nodeID string) string {
	return path.Join(s.prefix, nodeID+".json")
}

func (s *S3Store) Put(ctx context.Context, nodeID string, creds *compute.LoginCredentials) error {
	data, err := encode(creds)
	if err != nil {
		return err
	}
	return s.client.PutObject(ctx, s.bucket, s.key(nodeID), data)
}

func (s *S3Store) Get(ctx context.Context, nodeID string) (*compute.LoginCredentials, error) {
	data, err := s.client.GetObject(ctx, s.bucket, s.key(nodeID))
	if err != nil {
		if errors.Is(err, s3.ErrObjectNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read credentials of node %s: %w", nodeID, err)
	}
	return decode(data)
}

func (s *S3Store) Delete(ctx context.Context, nodeID string) error {
	return s.client.DeleteObject(ctx, s.bucket, s.key(nodeID))
}

func (s *S3Store) Close() error { return nil }
