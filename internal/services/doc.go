// Package services defines shared utilities consumed by the job handlers and
// external tool adapters.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, batch item IDs, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that let callers decide
//     whether a failure skips an item, fails an item, or fails the whole job.
//
// Use these helpers when wiring new handlers so error handling and
// observability stay uniform across the pipeline.
package services
