// Package sources links every source implementation so that their init
// functions register them with the connector registry.
package sources

import (
	// Registered sources
	_ "github.com/ajitpratap0/taboola-tap/pkg/connector/sources/taboola"
)
