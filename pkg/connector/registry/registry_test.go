package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/taboola-tap/pkg/config"
	"github.com/ajitpratap0/taboola-tap/pkg/connector/core"
	"github.com/ajitpratap0/taboola-tap/pkg/errors"
)

type nopDestination struct{}

func (nopDestination) WriteRecord(context.Context, core.RecordMessage) error { return nil }

func (nopDestination) WriteState(context.Context, core.StateMessage) error { return nil }

func (nopDestination) Close(context.Context) error { return nil }

func TestRegistryDestinations(t *testing.T) {
	r := NewRegistry()

	factory := func(ctx context.Context, cfg *config.OutputConfig) (core.Destination, error) {
		return nopDestination{}, nil
	}
	require.NoError(t, r.RegisterDestination("nop", factory))
	require.NoError(t, r.RegisterDestination("another", factory))

	err := r.RegisterDestination("nop", factory)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	dest, err := r.CreateDestination(context.Background(), "nop", &config.OutputConfig{})
	require.NoError(t, err)
	assert.NotNil(t, dest)

	_, err = r.CreateDestination(context.Background(), "missing", &config.OutputConfig{})
	assert.Error(t, err)

	assert.Equal(t, []string{"another", "nop"}, r.ListDestinations())
}

func TestRegistryStateBackendFactoryError(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterStateBackend("broken", func(ctx context.Context, cfg *config.StateConfig) (core.StateBackend, error) {
		return nil, errors.New(errors.ErrorTypeConfig, "no bucket")
	}))

	_, err := r.CreateStateBackend(context.Background(), "broken", &config.StateConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no bucket")
	assert.Equal(t, []string{"broken"}, r.ListStateBackends())
}
