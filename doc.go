// Package taboolatap is an incremental extractor for the Taboola Backstage
// API.
//
// A run walks a tree of streams (accounts, campaigns, campaign items and
// the daily campaign report) depth-first, pages through each stream for
// every context derived from its parent records, and writes RECORD and
// STATE messages to a destination. Bookmarks are kept per stream and
// context and persisted to a state backend, so repeated runs only pick up
// data newer than the last finalized bookmark.
//
// # Layout
//
//   - cmd/tap-taboola: the command line entry point (run, discover, list)
//   - pkg/connector/rest: the extraction engine (graph, driver, pipeline,
//     paginators, resume policies, contexts)
//   - pkg/connector/sources/taboola: the Backstage stream definitions
//   - pkg/connector/destinations: jsonl, kafka, s3 and gcs sinks
//   - pkg/state: the bookmark store and its file, s3, gcs and postgres
//     backends
//   - pkg/clients: HTTP client with retries, rate limiting, circuit
//     breaking and OAuth2 client credentials
//
// # Quick Start
//
//	export TAP_TABOOLA_CLIENT_ID=...
//	export TAP_TABOOLA_CLIENT_SECRET=...
//	tap-taboola run --start-date 2024-01-01 --state-path state.json > out.jsonl
package taboolatap
