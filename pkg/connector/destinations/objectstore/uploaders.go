package objectstore

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/taboola-tap/pkg/errors"
)

const contentType = "application/x-ndjson"

// S3Uploader writes objects with the multipart upload manager.
type S3Uploader struct {
	uploader *manager.Uploader
	bucket   string
}

// NewS3Uploader loads the default AWS configuration for region.
func NewS3Uploader(ctx context.Context, bucket, region string) (*S3Uploader, error) {
	if bucket == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "output.bucket is required for s3")
	}
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "load aws config")
	}
	return NewS3UploaderWithClient(s3.NewFromConfig(cfg), bucket), nil
}

// NewS3UploaderWithClient creates an uploader over client.
func NewS3UploaderWithClient(client manager.UploadAPIClient, bucket string) *S3Uploader {
	return &S3Uploader{
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = 8 * 1024 * 1024
			u.Concurrency = 2
		}),
		bucket: bucket,
	}
}

// Upload implements Uploader.
func (u *S3Uploader) Upload(ctx context.Context, key string, body io.Reader) error {
	_, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	return err
}

// Close implements Uploader.
func (u *S3Uploader) Close() error { return nil }

// GCSUploader writes objects through a Cloud Storage object writer.
type GCSUploader struct {
	client *storage.Client
	bucket string
}

// NewGCSUploader connects to Cloud Storage. An empty credentialsFile uses
// application default credentials.
func NewGCSUploader(ctx context.Context, bucket, credentialsFile string) (*GCSUploader, error) {
	if bucket == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "output.bucket is required for gcs")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "create gcs client")
	}
	return &GCSUploader{client: client, bucket: bucket}, nil
}

// Upload implements Uploader. A failed copy cancels the writer so no
// partial object is committed.
func (u *GCSUploader) Upload(ctx context.Context, key string, body io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := u.client.Bucket(u.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, body); err != nil {
		cancel()
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Close implements Uploader.
func (u *GCSUploader) Close() error { return u.client.Close() }
