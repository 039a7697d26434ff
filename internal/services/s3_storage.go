package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Storage keeps media in a bucket. URLs are bucket URLs; the request host
// plays no part because objects are not served by this process.
type S3Storage struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

// NewS3Storage loads the default AWS configuration. A non-empty endpoint
// switches to path-style addressing for S3-compatible servers.
func NewS3Storage(ctx context.Context, bucket, endpoint string) (*S3Storage, error) {
	if bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required for the s3 media backend")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	opts := s3.Options{
		Region:      cfg.Region,
		Credentials: cfg.Credentials,
		HTTPClient:  cfg.HTTPClient,
	}
	baseURL := fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, cfg.Region)
	if endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
		opts.UsePathStyle = true
		baseURL = strings.TrimRight(endpoint, "/") + "/" + bucket
	}

	return &S3Storage{client: s3.New(opts), bucket: bucket, baseURL: baseURL}, nil
}

func (s *S3Storage) Save(ctx context.Context, key string, body io.Reader, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

func (s *S3Storage) URL(key string, _ *RequestInfo) *string {
	if key == "" {
		return nil
	}
	u := s.baseURL + "/" + strings.TrimLeft(key, "/")
	return &u
}
