package delivery

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/c0ld-w4ter/you-fm/internal/briefing"
)

// ObjectStore uploads local files to remote storage and returns a URL
type ObjectStore interface {
	Put(ctx context.Context, key, path, contentType string) (string, error)
	Check(ctx context.Context) (bool, error)
}

// MinioConfig holds configuration for an S3-compatible bucket
type MinioConfig struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// MinioStore implements ObjectStore using minio-go
type MinioStore struct {
	client   *minio.Client
	bucket   string
	endpoint string
	scheme   string
}

// NewMinioStore creates a store for one bucket
func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return &MinioStore{
		client:   client,
		bucket:   cfg.Bucket,
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		scheme:   scheme,
	}, nil
}

// Put uploads the file at path under key, then confirms the stored size
// matches before returning the object's URL
func (s *MinioStore) Put(ctx context.Context, key, path, contentType string) (string, error) {
	const op = "delivery.object_store"

	stat, err := os.Stat(path)
	if err != nil {
		return "", briefing.NewError(briefing.KindStorageWrite, op, err)
	}

	if _, err := s.client.FPutObject(ctx, s.bucket, key, path, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", classifyStoreError(op, "upload "+key, err)
	}

	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return "", classifyStoreError(op, "verify "+key, err)
	}
	if info.Size != stat.Size() {
		return "", briefing.Errorf(briefing.KindStorageWrite, op,
			"stored size %d does not match local size %d", info.Size, stat.Size())
	}
	return ObjectURL(s.scheme, s.endpoint, s.bucket, key), nil
}

// Check reports whether the bucket exists and is reachable
func (s *MinioStore) Check(ctx context.Context) (bool, error) {
	return s.client.BucketExists(ctx, s.bucket)
}

// ObjectURL returns the path-style URL of an object
func ObjectURL(scheme, endpoint, bucket, key string) string {
	return fmt.Sprintf("%s://%s/%s/%s", scheme, endpoint, bucket, key)
}

// classifyStoreError marks throttling, server errors and transport failures
// as temporary so the upload is retried once
func classifyStoreError(op, action string, err error) error {
	resp := minio.ToErrorResponse(err)
	wrapped := fmt.Errorf("%s: %w", action, err)
	switch {
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return briefing.NewTemporaryError(briefing.KindStorageWrite, op, wrapped)
	case resp.StatusCode == 0 && briefing.KindOf(err, "") == briefing.KindNetwork:
		return briefing.NewTemporaryError(briefing.KindStorageWrite, op, wrapped)
	default:
		return briefing.NewError(briefing.KindStorageWrite, op, wrapped)
	}
}
