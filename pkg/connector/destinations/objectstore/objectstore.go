// Package objectstore streams line-delimited messages into a single S3 or
// Cloud Storage object per run.
package objectstore

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/taboola-tap/pkg/compression"
	"github.com/ajitpratap0/taboola-tap/pkg/config"
	"github.com/ajitpratap0/taboola-tap/pkg/connector/core"
	"github.com/ajitpratap0/taboola-tap/pkg/connector/destinations/jsonl"
	"github.com/ajitpratap0/taboola-tap/pkg/connector/registry"
	"github.com/ajitpratap0/taboola-tap/pkg/errors"
	"github.com/ajitpratap0/taboola-tap/pkg/logger"
)

func init() {
	_ = registry.RegisterDestination("s3", func(ctx context.Context, cfg *config.OutputConfig) (core.Destination, error) {
		up, err := NewS3Uploader(ctx, cfg.Bucket, cfg.Region)
		if err != nil {
			return nil, err
		}
		return openDestination(ctx, up, cfg)
	})
	_ = registry.RegisterDestination("gcs", func(ctx context.Context, cfg *config.OutputConfig) (core.Destination, error) {
		up, err := NewGCSUploader(ctx, cfg.Bucket, cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		return openDestination(ctx, up, cfg)
	})
}

func openDestination(ctx context.Context, up Uploader, cfg *config.OutputConfig) (core.Destination, error) {
	d, err := Open(ctx, up, cfg)
	if err != nil {
		_ = up.Close()
		return nil, err
	}
	return d, nil
}

// Uploader stores the content of body under key.
type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader) error
	Close() error
}

// Destination encodes messages through a pipe consumed by an Uploader. The
// object is complete once Close returns without error.
type Destination struct {
	*jsonl.Destination

	uploader Uploader
	key      string
	pw       *io.PipeWriter
	done     chan error
	once     sync.Once
	closeErr error
	logger   *zap.Logger
}

// Open starts the upload of the object named by cfg.Key, suffixed with the
// compression extension. An empty key is derived from the current time.
func Open(ctx context.Context, up Uploader, cfg *config.OutputConfig) (*Destination, error) {
	alg, err := compression.Parse(cfg.Compression)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	inner, err := jsonl.NewWriter(pw, alg)
	if err != nil {
		_ = pw.Close()
		return nil, err
	}

	d := &Destination{
		Destination: inner,
		uploader:    up,
		key:         ObjectKey(cfg.Key, alg, time.Now()),
		pw:          pw,
		done:        make(chan error, 1),
		logger:      logger.Get().With(zap.String("component", "objectstore_destination")),
	}

	go func() {
		err := up.Upload(ctx, d.key, pr)
		_ = pr.CloseWithError(err)
		d.done <- err
	}()
	return d, nil
}

// ObjectKey returns key with the extension of alg appended when missing.
func ObjectKey(key string, alg compression.Algorithm, now time.Time) string {
	if key == "" {
		key = "taboola/" + now.UTC().Format("20060102T150405Z") + ".jsonl"
	}
	if ext := alg.Extension(); ext != "" && !strings.HasSuffix(key, ext) {
		key += ext
	}
	return key
}

// Key returns the object key being written.
func (d *Destination) Key() string { return d.key }

// DeliversOnClose is true: the object exists only once the upload finished.
func (d *Destination) DeliversOnClose() bool { return true }

// Close flushes the encoder, ends the pipe and waits for the upload.
func (d *Destination) Close(ctx context.Context) error {
	d.once.Do(func() {
		flushErr := d.Destination.Close(ctx)
		if flushErr != nil {
			_ = d.pw.CloseWithError(flushErr)
		} else {
			_ = d.pw.Close()
		}

		var uploadErr error
		select {
		case uploadErr = <-d.done:
		case <-ctx.Done():
			uploadErr = ctx.Err()
		}
		if err := d.uploader.Close(); err != nil && uploadErr == nil {
			uploadErr = err
		}

		switch {
		case flushErr != nil:
			d.closeErr = flushErr
		case uploadErr != nil:
			d.closeErr = errors.Wrap(uploadErr, errors.ErrorTypeConnection, "upload "+d.key)
		default:
			d.logger.Info("object uploaded", zap.String("key", d.key))
		}
	})
	return d.closeErr
}

var _ core.DeferredDelivery = (*Destination)(nil)
