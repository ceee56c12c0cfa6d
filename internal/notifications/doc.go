// Package notifications sends ntfy alerts when jobs finish.
//
// NewService returns a no-op when no topic is configured, so callers can
// install Hook unconditionally as an orchestrator terminal hook.
package notifications
