package state

import (
	"context"
	"os"
	"path/filepath"

	"github.com/ajitpratap0/taboola-tap/pkg/config"
	"github.com/ajitpratap0/taboola-tap/pkg/connector/core"
	"github.com/ajitpratap0/taboola-tap/pkg/connector/registry"
	"github.com/ajitpratap0/taboola-tap/pkg/errors"
)

func init() {
	_ = registry.RegisterStateBackend("file", func(_ context.Context, cfg *config.StateConfig) (core.StateBackend, error) {
		return NewFileBackend(cfg.Path)
	})
}

// FileBackend keeps the state document in a local file. Saves replace the
// file atomically.
type FileBackend struct {
	path string
}

// NewFileBackend creates a backend for path.
func NewFileBackend(path string) (*FileBackend, error) {
	if path == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "state file path is required").WithDetail("field", "state.path")
	}
	return &FileBackend{path: path}, nil
}

// Load returns the file content, or nil when the file does not exist.
func (b *FileBackend) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "read state file")
	}
	return data, nil
}

// Save writes data to a temporary file next to the target and renames it.
func (b *FileBackend) Save(_ context.Context, data []byte) error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "create state directory")
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "create temporary state file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "write state file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "sync state file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "close state file")
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "replace state file")
	}
	return nil
}

// Close is a no-op.
func (b *FileBackend) Close() error { return nil }
