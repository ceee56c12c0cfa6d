// Package workflow turns typed job requests into orchestrated jobs.
//
// Manager validates a request, fills defaults from configuration, registers
// a job with the orchestrator and submits the work for its type: a bulk
// dual subtitle batch, a single pair sync, or an embedded stream
// extraction. The HTTP API, the CLI and the daemon's inbox watcher all
// submit through the same Manager.
package workflow
