package state

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/taboola-tap/pkg/config"
	"github.com/ajitpratap0/taboola-tap/pkg/connector/core"
	"github.com/ajitpratap0/taboola-tap/pkg/connector/registry"
	"github.com/ajitpratap0/taboola-tap/pkg/errors"
)

func init() {
	_ = registry.RegisterStateBackend("gcs", func(ctx context.Context, cfg *config.StateConfig) (core.StateBackend, error) {
		return NewGCSBackend(ctx, cfg.Bucket, cfg.Key, cfg.CredentialsFile)
	})
}

// GCSBackend keeps the state document in a Cloud Storage object.
type GCSBackend struct {
	client *storage.Client
	object *storage.ObjectHandle
}

// NewGCSBackend connects to Cloud Storage. An empty credentialsFile uses
// application default credentials.
func NewGCSBackend(ctx context.Context, bucket, key, credentialsFile string) (*GCSBackend, error) {
	if bucket == "" || key == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "state bucket and key are required")
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "create GCS client")
	}
	return &GCSBackend{client: client, object: client.Bucket(bucket).Object(key)}, nil
}

// Load returns the object content, or nil when the object does not exist.
func (b *GCSBackend) Load(ctx context.Context) ([]byte, error) {
	r, err := b.object.NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "open state object")
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "read state object")
	}
	return data, nil
}

// Save overwrites the object with data.
func (b *GCSBackend) Save(ctx context.Context, data []byte) error {
	w := b.object.NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return errors.Wrap(err, errors.ErrorTypeConnection, "write state object")
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "commit state object")
	}
	return nil
}

// Close releases the client.
func (b *GCSBackend) Close() error {
	return b.client.Close()
}
