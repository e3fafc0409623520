// Package registry keeps the named factories for sources, destinations and
// state backends. Implementations register themselves from init functions.
package registry

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/taboola-tap/pkg/config"
	"github.com/ajitpratap0/taboola-tap/pkg/connector/core"
	"github.com/ajitpratap0/taboola-tap/pkg/errors"
	"github.com/ajitpratap0/taboola-tap/pkg/logger"
)

// Registry manages connector registration and instantiation
type Registry struct {
	sources      map[string]core.SourceFactory
	destinations map[string]core.DestinationFactory
	backends     map[string]core.StateBackendFactory
	mu           sync.RWMutex
	logger       *zap.Logger
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates a new connector registry
func NewRegistry() *Registry {
	return &Registry{
		sources:      make(map[string]core.SourceFactory),
		destinations: make(map[string]core.DestinationFactory),
		backends:     make(map[string]core.StateBackendFactory),
		logger:       logger.Get().With(zap.String("component", "connector_registry")),
	}
}

// RegisterSource registers a source factory
func (r *Registry) RegisterSource(name string, factory core.SourceFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "source %s already registered", name)
	}

	r.sources[name] = factory
	r.logger.Debug("source registered", zap.String("name", name))
	return nil
}

// RegisterDestination registers a destination factory
func (r *Registry) RegisterDestination(name string, factory core.DestinationFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.destinations[name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "destination %s already registered", name)
	}

	r.destinations[name] = factory
	r.logger.Debug("destination registered", zap.String("name", name))
	return nil
}

// RegisterStateBackend registers a state backend factory
func (r *Registry) RegisterStateBackend(name string, factory core.StateBackendFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "state backend %s already registered", name)
	}

	r.backends[name] = factory
	r.logger.Debug("state backend registered", zap.String("name", name))
	return nil
}

// CreateSource creates a source instance
func (r *Registry) CreateSource(name string, cfg *config.TapConfig) (core.Source, error) {
	r.mu.RLock()
	factory, exists := r.sources[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrorTypeConfig, "source %s not found", name)
	}

	source, err := factory(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create source "+name)
	}
	return source, nil
}

// CreateDestination creates a destination instance
func (r *Registry) CreateDestination(ctx context.Context, name string, cfg *config.OutputConfig) (core.Destination, error) {
	r.mu.RLock()
	factory, exists := r.destinations[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrorTypeConfig, "destination %s not found", name)
	}

	destination, err := factory(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create destination "+name)
	}
	return destination, nil
}

// CreateStateBackend creates a state backend instance
func (r *Registry) CreateStateBackend(ctx context.Context, name string, cfg *config.StateConfig) (core.StateBackend, error) {
	r.mu.RLock()
	factory, exists := r.backends[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrorTypeConfig, "state backend %s not found", name)
	}

	backend, err := factory(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create state backend "+name)
	}
	return backend, nil
}

// ListSources returns the sorted names of registered sources
func (r *Registry) ListSources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.sources)
}

// ListDestinations returns the sorted names of registered destinations
func (r *Registry) ListDestinations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.destinations)
}

// ListStateBackends returns the sorted names of registered state backends
func (r *Registry) ListStateBackends() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.backends)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Global registry functions

// RegisterSource registers a source in the global registry
func RegisterSource(name string, factory core.SourceFactory) error {
	return globalRegistry.RegisterSource(name, factory)
}

// RegisterDestination registers a destination in the global registry
func RegisterDestination(name string, factory core.DestinationFactory) error {
	return globalRegistry.RegisterDestination(name, factory)
}

// RegisterStateBackend registers a state backend in the global registry
func RegisterStateBackend(name string, factory core.StateBackendFactory) error {
	return globalRegistry.RegisterStateBackend(name, factory)
}

// CreateSource creates a source from the global registry
func CreateSource(name string, cfg *config.TapConfig) (core.Source, error) {
	return globalRegistry.CreateSource(name, cfg)
}

// CreateDestination creates a destination from the global registry
func CreateDestination(ctx context.Context, name string, cfg *config.OutputConfig) (core.Destination, error) {
	return globalRegistry.CreateDestination(ctx, name, cfg)
}

// CreateStateBackend creates a state backend from the global registry
func CreateStateBackend(ctx context.Context, name string, cfg *config.StateConfig) (core.StateBackend, error) {
	return globalRegistry.CreateStateBackend(ctx, name, cfg)
}

// ListSources returns registered sources from the global registry
func ListSources() []string {
	return globalRegistry.ListSources()
}

// ListDestinations returns registered destinations from the global registry
func ListDestinations() []string {
	return globalRegistry.ListDestinations()
}

// ListStateBackends returns registered state backends from the global registry
func ListStateBackends() []string {
	return globalRegistry.ListStateBackends()
}

// GetRegistry returns the global registry instance.
func GetRegistry() *Registry {
	return globalRegistry
}
