// Package daemon coordinates the long-running dualsub process.
//
// It wires the workflow manager, the HTTP job API, the inbox watcher and the
// retention sweep into a single lifecycle with flock-based locking to prevent
// multiple instances. Component construction lives in the command layer; the
// daemon only starts, stops and reports on what it was given.
//
// The inbox is a directory of YAML job requests. Each file is decoded with
// workflow.DecodeYAML, submitted, and moved into processed/ (renamed with the
// job id) or failed/ (with a sibling .error file).
package daemon
