// Package history archives terminal job snapshots in SQLite so finished
// jobs stay queryable after the in-memory orchestrator forgets them or the
// daemon restarts. Live jobs are never persisted or resumed.
package history
