// Package storage opens gocloud.dev blob buckets that audit reports and writeback
// files are uploaded to.
package storage

import (
	"context"
	"fmt"

	"gocloud.dev/blob"

	// Register blob drivers
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// Bucket is the subset of *blob.Bucket used by the exporters.
type Bucket interface {
	WriteAll(ctx context.Context, key string, p []byte, opts *blob.WriterOptions) error
	ReadAll(ctx context.Context, key string) ([]byte, error)
	Close() error
}

// BucketService opens buckets by URL.
type BucketService interface {
	// OpenBucket opens the bucket for bucketURL.
	// Supports: file:///path?create_dir=true, s3://bucket?region=..., gs://bucket, mem://
	OpenBucket(ctx context.Context, bucketURL string) (Bucket, error)
}

type bucketService struct{}

// NewBucketService creates a new bucket service instance.
func NewBucketService() BucketService {
	return &bucketService{}
}

// OpenBucket opens a *blob.Bucket for the URL scheme's registered driver.
func (b *bucketService) OpenBucket(ctx context.Context, bucketURL string) (Bucket, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket: %w", err)
	}
	return bucket, nil
}
