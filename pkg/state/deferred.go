package state

import (
	"context"
	"sync"

	"github.com/ajitpratap0/taboola-tap/pkg/connector/core"
)

// DeferredBackend holds saved documents in memory until Commit. It wraps
// the real backend for destinations that deliver records only on Close.
type DeferredBackend struct {
	mu      sync.Mutex
	backend core.StateBackend
	pending []byte
}

// NewDeferredBackend wraps backend.
func NewDeferredBackend(backend core.StateBackend) *DeferredBackend {
	return &DeferredBackend{backend: backend}
}

// Load reads from the wrapped backend.
func (d *DeferredBackend) Load(ctx context.Context) ([]byte, error) {
	return d.backend.Load(ctx)
}

// Save keeps data until Commit. Only the latest document is kept.
func (d *DeferredBackend) Save(_ context.Context, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append([]byte(nil), data...)
	return nil
}

// Commit writes the latest saved document to the wrapped backend.
func (d *DeferredBackend) Commit(ctx context.Context) error {
	d.mu.Lock()
	data := d.pending
	d.mu.Unlock()
	if data == nil {
		return nil
	}
	if err := d.backend.Save(ctx, data); err != nil {
		return err
	}

	d.mu.Lock()
	d.pending = nil
	d.mu.Unlock()
	return nil
}

// Close drops uncommitted state. The wrapped backend is closed by its owner.
func (d *DeferredBackend) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = nil
	return nil
}

var _ core.StateBackend = (*DeferredBackend)(nil)
