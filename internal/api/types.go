package api

import (
	"dualsub/internal/deps"
	"dualsub/internal/history"
	"dualsub/internal/jobs"
)

// JobResponse wraps a single job.
type JobResponse struct {
	Job jobs.Job `json:"job"`
}

// JobListResponse wraps a collection of jobs, newest first.
type JobListResponse struct {
	Jobs []jobs.Job `json:"jobs"`
}

// ProgressResponse is the lightweight view polled by clients while a job runs.
type ProgressResponse struct {
	ID        string        `json:"id"`
	Status    jobs.Status   `json:"status"`
	Progress  jobs.Progress `json:"progress"`
	Error     string        `json:"error,omitempty"`
	Cancelled bool          `json:"cancelled"`
}

// CleanupResponse reports how many terminal jobs were dropped.
type CleanupResponse struct {
	Removed        int `json:"removed"`
	RetentionHours int `json:"retention_hours"`
}

// HistoryResponse wraps archived jobs, most recently finished first.
type HistoryResponse struct {
	Entries []history.Entry `json:"entries"`
}

// HistoryEntryResponse wraps a single archived job.
type HistoryEntryResponse struct {
	Entry history.Entry `json:"entry"`
}

// DaemonStatus aggregates runtime information for the status command.
type DaemonStatus struct {
	Running           bool           `json:"running"`
	PID               int            `json:"pid"`
	LockFilePath      string         `json:"lock_file_path,omitempty"`
	HistoryPath       string         `json:"history_path,omitempty"`
	InboxDir          string         `json:"inbox_dir,omitempty"`
	Catalog           string         `json:"catalog,omitempty"`
	MaxConcurrentJobs int            `json:"max_concurrent_jobs"`
	JobCounts         map[string]int `json:"job_counts"`
	Dependencies      []deps.Status  `json:"dependencies"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Hint      string `json:"hint,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// CountsByName converts orchestrator counts into a JSON-friendly map that
// always carries every status.
func CountsByName(counts map[jobs.Status]int) map[string]int {
	out := make(map[string]int, len(jobs.AllStatuses()))
	for _, s := range jobs.AllStatuses() {
		out[string(s)] = counts[s]
	}
	return out
}
