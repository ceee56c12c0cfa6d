// Package jobs owns the in-memory job registry and the bounded worker pool
// that runs background subtitle work.
//
// The Orchestrator is the only writer of Job state. Work functions receive a
// Reporter to publish progress and poll cancellation; they never touch the
// registry directly. Readers get deep-copied snapshots.
//
// Lifecycle:
//
//	pending -> running -> completed | failed | cancelled
//	pending -> cancelled | failed
//
// Terminal states have no outgoing transitions. The cancellation flag in
// Metadata is the one field that may still change on a terminal job.
package jobs
