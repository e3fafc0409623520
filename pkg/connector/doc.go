// Package connector groups the pieces that move records from the Taboola
// Backstage API to a destination.
//
// # Architecture Overview
//
//   - core: the message types (RECORD, STATE) and the Source, Destination
//     and StateBackend contracts.
//
//   - rest: the incremental extraction engine. A Graph of Streams is walked
//     depth-first by a Driver; each (stream, context) is read lazily by a
//     Pipeline run that pages with a Paginator and classifies failures with
//     a ResumePolicy.
//
//   - sources: source implementations. The taboola package declares the
//     Backstage streams and their transport.
//
//   - destinations: jsonl (stdout or file), kafka and object store (s3,
//     gcs) sinks.
//
//   - registry: named factories. Implementations register themselves from
//     init functions and the CLI creates them by name.
//
// # Usage
//
//	src, err := registry.CreateSource("taboola", cfg)
//	if err != nil {
//		return err
//	}
//	backend, err := registry.CreateStateBackend(ctx, cfg.State.Backend, &cfg.State)
//	if err != nil {
//		return err
//	}
//	dest, err := registry.CreateDestination(ctx, cfg.Output.Destination, &cfg.Output)
//	if err != nil {
//		return err
//	}
//	summary, err := src.Sync(ctx, dest, backend, core.SyncOptions{})
package connector
