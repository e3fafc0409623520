package state

import (
	"bytes"
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ajitpratap0/taboola-tap/pkg/config"
	"github.com/ajitpratap0/taboola-tap/pkg/connector/core"
	"github.com/ajitpratap0/taboola-tap/pkg/connector/registry"
	"github.com/ajitpratap0/taboola-tap/pkg/errors"
)

func init() {
	_ = registry.RegisterStateBackend("s3", func(ctx context.Context, cfg *config.StateConfig) (core.StateBackend, error) {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "load AWS config")
		}
		return NewS3Backend(s3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Key)
	})
}

// S3API is the subset of the S3 client used by S3Backend.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Backend keeps the state document in an S3 object.
type S3Backend struct {
	client S3API
	bucket string
	key    string
}

// NewS3Backend creates a backend for s3://bucket/key.
func NewS3Backend(client S3API, bucket, key string) (*S3Backend, error) {
	if bucket == "" || key == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "state bucket and key are required")
	}
	return &S3Backend{client: client, bucket: bucket, key: key}, nil
}

// Load returns the object body, or nil when the object does not exist.
func (b *S3Backend) Load(ctx context.Context) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "get state object")
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "read state object")
	}
	return data, nil
}

// Save overwrites the object with data.
func (b *S3Backend) Save(ctx context.Context, data []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "put state object")
	}
	return nil
}

// Close is a no-op.
func (b *S3Backend) Close() error { return nil }
