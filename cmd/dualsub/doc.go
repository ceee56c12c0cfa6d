// Command dualsub runs the dual-language subtitle daemon and talks to it.
//
// The daemon command wires every component from the configuration file and
// serves the job API. Every other job-related command is a thin client of
// that API. The catalog, config, deps and test-notify commands work locally
// without a daemon.
package main
