package taboola

import (
	"github.com/ajitpratap0/taboola-tap/pkg/config"
	"github.com/ajitpratap0/taboola-tap/pkg/connector/core"
	"github.com/ajitpratap0/taboola-tap/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterSource("taboola", func(cfg *config.TapConfig) (core.Source, error) {
		return NewSource(cfg)
	})
}
