// Package destinations links every destination implementation so that
// their init functions register them with the connector registry.
package destinations

import (
	// Registered destinations
	_ "github.com/ajitpratap0/taboola-tap/pkg/connector/destinations/jsonl"
	_ "github.com/ajitpratap0/taboola-tap/pkg/connector/destinations/kafka"
	_ "github.com/ajitpratap0/taboola-tap/pkg/connector/destinations/objectstore"
)
