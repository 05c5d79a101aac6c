package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store reads blobs from an S3-compatible bucket (AWS, MinIO, LocalStack).
type S3Store struct {
	client *s3.Client
	bucket string
}

// S3Config holds configuration for S3Store.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string // Optional custom endpoint for S3-compatible stores.
}

// NewS3Store creates an S3-backed blob store.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("blob: empty bucket")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("blob: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

// Fetch downloads one blob. The locator may be a notification-event URL or a
// bare object key.
func (s *S3Store) Fetch(ctx context.Context, locator string) ([]byte, error) {
	key, err := s.keyFromLocator(locator)
	if err != nil {
		return nil, err
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("blob: get %s: %w", key, err)
	}
	defer func() { _ = result.Body.Close() }()

	return io.ReadAll(result.Body)
}

// List enumerates blobs lexically after startAfter under prefix.
func (s *S3Store) List(ctx context.Context, prefix, startAfter string, max int) ([]Object, error) {
	if max <= 0 || max > 1000 {
		max = 1000
	}
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		MaxKeys: aws.Int32(int32(max)),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}
	if startAfter != "" {
		input.StartAfter = aws.String(startAfter)
	}

	result, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("blob: list: %w", err)
	}

	objects := make([]Object, 0, len(result.Contents))
	for _, item := range result.Contents {
		obj := Object{}
		if item.Key != nil {
			obj.Key = *item.Key
		}
		if item.Size != nil {
			obj.Size = *item.Size
		}
		if item.LastModified != nil {
			obj.LastModified = *item.LastModified
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

// keyFromLocator maps a blob URL of the form scheme://host/container/path to
// the object key, tolerating a leading container segment equal to the bucket
// name. Bare keys pass through unchanged.
func (s *S3Store) keyFromLocator(locator string) (string, error) {
	if locator == "" {
		return "", errors.New("blob: empty locator")
	}
	if !strings.Contains(locator, "://") {
		return locator, nil
	}
	parsed, err := url.Parse(locator)
	if err != nil {
		return "", fmt.Errorf("blob: bad locator %q: %w", locator, err)
	}
	key := strings.TrimPrefix(parsed.Path, "/")
	if rest, ok := strings.CutPrefix(key, s.bucket+"/"); ok {
		key = rest
	}
	if key == "" {
		return "", fmt.Errorf("blob: no key in locator %q", locator)
	}
	return key, nil
}
