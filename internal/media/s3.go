package media

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/hongminglow/streamhub-be/internal/config"
)

// S3 uploads to an S3 bucket, or any S3-compatible endpoint when
// MEDIA_ENDPOINT is set.
type S3 struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

// NewS3 creates an S3 uploader. Static credentials are used when provided,
// otherwise the default AWS credential chain applies.
func NewS3(ctx context.Context, cfg config.MediaConfig) (*S3, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(endpointURL(cfg.Endpoint, cfg.UseSSL))
			o.UsePathStyle = true
		}
	})

	publicURL := cfg.PublicURL
	if publicURL == "" {
		if cfg.Endpoint != "" {
			publicURL = PublicURL(endpointURL(cfg.Endpoint, cfg.UseSSL), cfg.Bucket)
		} else {
			publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}

	return &S3{client: client, bucket: cfg.Bucket, publicURL: publicURL}, nil
}

// Upload puts f under a fresh key in folder.
func (u *S3) Upload(ctx context.Context, folder string, f File) (Object, error) {
	key := ObjectKey(folder, f.Name, time.Now())
	input := &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f.Body,
		ContentType: aws.String(f.ContentType),
	}
	if f.Size > 0 {
		input.ContentLength = aws.Int64(f.Size)
	}
	if _, err := u.client.PutObject(ctx, input); err != nil {
		return Object{}, fmt.Errorf("put object %s: %w", key, err)
	}
	return Object{Key: key, URL: PublicURL(u.publicURL, key)}, nil
}

// Delete removes key from the bucket.
func (u *S3) Delete(ctx context.Context, key string) error {
	_, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

func endpointURL(endpoint string, useSSL bool) string {
	if hasScheme(endpoint) {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

func hasScheme(endpoint string) bool {
	return strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://")
}
