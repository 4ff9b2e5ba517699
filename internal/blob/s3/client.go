// Package s3blob provides access to the node fills bucket via AWS SDK v2.
// The production bucket is public with requester-pays billing, so the client
// supports anonymous access with an explicit RequestPayer, as well as static
// credentials and custom endpoints for mirrored or local buckets.
package s3blob

import (
	"context"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ClientConfig holds the configuration for connecting to the fills bucket.
type ClientConfig struct {
	// Region is the AWS region hosting the bucket.
	Region string

	// Bucket is the bucket name for all operations.
	Bucket string

	// Endpoint is an optional S3-compatible endpoint URL for mirrored or
	// local buckets (e.g. MinIO). Leave empty for standard AWS S3.
	Endpoint string

	// AccessKey and SecretKey authenticate against non-public buckets.
	// Ignored when Anonymous is true.
	AccessKey string
	SecretKey string

	// RequestPayer is attached to every request when non-empty. The
	// Hyperliquid bucket requires "requester".
	RequestPayer string

	// Anonymous disables request signing entirely. Required for the public
	// requester-pays bucket, which rejects unknown signatures.
	Anonymous bool

	// ForcePathStyle forces path-style addressing (bucket in path rather
	// than subdomain). Required by MinIO and many S3-compatible providers.
	ForcePathStyle bool
}

// Client wraps the AWS S3 SDK client together with the bucket name and
// billing mode used by the reader.
type Client struct {
	s3           *s3.Client
	bucket       string
	requestPayer types.RequestPayer
}

// New creates a new S3 client from the given configuration.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3blob: bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3blob: region is required")
	}

	var credsProvider aws.CredentialsProvider
	switch {
	case cfg.Anonymous:
		credsProvider = aws.AnonymousCredentials{}
	case cfg.AccessKey != "":
		credsProvider = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if credsProvider != nil {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(credsProvider))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3blob: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)

	if cfg.Endpoint != "" {
		endpoint := normaliseEndpoint(cfg.Endpoint)
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}

	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	return &Client{
		s3:           client,
		bucket:       cfg.Bucket,
		requestPayer: types.RequestPayer(cfg.RequestPayer),
	}, nil
}

// Health performs a HeadBucket call to verify connectivity and permissions.
// Returns nil if the bucket is accessible.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		return fmt.Errorf("s3blob: health check failed for bucket %s: %w", c.bucket, err)
	}
	return nil
}

// Close is a no-op included for interface consistency. The underlying S3
// HTTP client does not require explicit teardown.
func (c *Client) Close() error {
	return nil
}

// S3 returns the underlying AWS SDK S3 client for use by the reader
// implementation within this package.
func (c *Client) S3() *s3.Client {
	return c.s3
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

// RequestPayer returns the billing mode attached to every request, or the
// empty value when the bucket is payer-free.
func (c *Client) RequestPayer() types.RequestPayer {
	return c.requestPayer
}

// normaliseEndpoint ensures the endpoint has a scheme. If the provided
// endpoint already has a scheme it is returned as-is; otherwise https:// is
// prepended.
func normaliseEndpoint(endpoint string) string {
	parsed, err := url.Parse(endpoint)
	if err == nil && parsed.Scheme != "" {
		return endpoint
	}
	return "https://" + endpoint
}
