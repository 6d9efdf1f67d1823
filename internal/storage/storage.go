// Package storage wraps the S3-compatible object store holding raw sources
// and published HLS output.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"spool/internal/services"
)

// Options configures the object store connection. Endpoint is optional; when
// empty the SDK resolves the regional AWS endpoint.
type Options struct {
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// Validate reports configuration problems before any network call is made.
func (o Options) Validate() error {
	if strings.TrimSpace(o.AccessKey) == "" || strings.TrimSpace(o.SecretKey) == "" {
		return services.Wrap(services.ErrConfiguration, "", "storage", "access key and secret key are required", nil)
	}
	if strings.TrimSpace(o.Region) == "" {
		return services.Wrap(services.ErrConfiguration, "", "storage", "region is required", nil)
	}
	return nil
}

// PutInput describes a single object upload.
type PutInput struct {
	Bucket       string
	Key          string
	ContentType  string
	CacheControl string
	Body         io.Reader
}

// Client is a thin wrapper over the AWS SDK S3 client.
type Client struct {
	api *s3.Client
}

// New builds a client using static credentials and, for MinIO-style
// deployments, a custom endpoint with path-style addressing.
func New(ctx context.Context, opts Options) (*Client, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")),
	)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "storage", "load aws config", err)
	}
	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(opts.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})
	return &Client{api: api}, nil
}

// Put writes one object.
func (c *Client) Put(ctx context.Context, in PutInput) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(in.Bucket),
		Key:    aws.String(in.Key),
		Body:   in.Body,
	}
	if in.ContentType != "" {
		input.ContentType = aws.String(in.ContentType)
	}
	if in.CacheControl != "" {
		input.CacheControl = aws.String(in.CacheControl)
	}
	if _, err := c.api.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", in.Bucket, in.Key, err)
	}
	return nil
}

// Download streams an object to destPath, creating parent directories as
// needed. The file is written via a temp name and renamed so a partial
// download never masquerades as a complete source.
func (c *Client) Download(ctx context.Context, bucket, key, destPath string) error {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}
	tmp := destPath + ".partial"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create download file: %w", err)
	}
	if _, err := io.Copy(file, out.Body); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalize download: %w", err)
	}
	return os.Rename(tmp, destPath)
}
