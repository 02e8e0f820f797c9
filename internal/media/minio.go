package media

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/hongminglow/streamhub-be/internal/config"
)

// MinIO uploads to a MinIO server, creating the bucket on first use.
type MinIO struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinIO connects to cfg.Endpoint and ensures the bucket exists.
func NewMinIO(ctx context.Context, cfg config.MediaConfig, log *zap.Logger) (*MinIO, error) {
	host := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(checkCtx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(checkCtx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		log.Info("created media bucket", zap.String("bucket", cfg.Bucket))
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = PublicURL(endpointURL(host, cfg.UseSSL), cfg.Bucket)
	}
	return &MinIO{client: client, bucket: cfg.Bucket, publicURL: publicURL}, nil
}

// Upload puts f under a fresh key in folder.
func (u *MinIO) Upload(ctx context.Context, folder string, f File) (Object, error) {
	key := ObjectKey(folder, f.Name, time.Now())
	size := f.Size
	if size <= 0 {
		size = -1
	}
	_, err := u.client.PutObject(ctx, u.bucket, key, f.Body, size, minio.PutObjectOptions{
		ContentType: f.ContentType,
	})
	if err != nil {
		return Object{}, fmt.Errorf("put object %s: %w", key, err)
	}
	return Object{Key: key, URL: PublicURL(u.publicURL, key)}, nil
}

// Delete removes key from the bucket.
func (u *MinIO) Delete(ctx context.Context, key string) error {
	if err := u.client.RemoveObject(ctx, u.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}
