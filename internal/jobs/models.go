package jobs

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

var allStatuses = []Status{StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts a user supplied string into a Status.
func ParseStatus(value string) (Status, error) {
	candidate := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, s := range allStatuses {
		if s == candidate {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown job status %q", value)
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// IsActive reports whether the job is pending or running.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusRunning
}

// Type identifies the kind of work a job performs.
type Type string

const (
	TypeBulkDualSubtitle   Type = "bulk_dual_subtitle"
	TypeSingleSubtitleSync Type = "single_subtitle_sync"
	TypeSubtitleExtraction Type = "subtitle_extraction"
)

// MetadataCancelled is the metadata key carrying the cancellation flag.
const MetadataCancelled = "cancelled"

// Progress is a job's latest progress snapshot.
type Progress struct {
	CurrentStep            string         `json:"current_step"`
	CurrentItem            string         `json:"current_item,omitempty"`
	Processed              int            `json:"processed_items"`
	Total                  int            `json:"total_items"`
	EstimatedTimeRemaining string         `json:"estimated_time_remaining,omitempty"`
	Details                map[string]any `json:"details,omitempty"`
}

// Percentage derives completion from Processed and Total. It is never stored.
func (p Progress) Percentage() float64 {
	if p.Total <= 0 {
		return 0
	}
	return 100 * float64(p.Processed) / float64(p.Total)
}

// MarshalJSON emits the derived percentage alongside the stored fields.
func (p Progress) MarshalJSON() ([]byte, error) {
	type plain Progress
	return json.Marshal(struct {
		plain
		Percentage float64 `json:"percentage"`
	}{plain: plain(p), Percentage: p.Percentage()})
}

// ProgressUpdate is a partial progress change. Nil fields are left alone and
// Details are merged key by key.
type ProgressUpdate struct {
	CurrentStep            *string
	CurrentItem            *string
	Processed              *int
	Total                  *int
	EstimatedTimeRemaining *string
	Details                map[string]any
}

// Ptr returns a pointer to v for building ProgressUpdate values.
func Ptr[T any](v T) *T {
	return &v
}

func (u ProgressUpdate) apply(p *Progress) {
	if u.CurrentStep != nil {
		p.CurrentStep = *u.CurrentStep
	}
	if u.CurrentItem != nil {
		p.CurrentItem = *u.CurrentItem
	}
	if u.Processed != nil {
		p.Processed = max(*u.Processed, 0)
	}
	if u.Total != nil {
		p.Total = max(*u.Total, 0)
	}
	if u.EstimatedTimeRemaining != nil {
		p.EstimatedTimeRemaining = *u.EstimatedTimeRemaining
	}
	if len(u.Details) > 0 {
		if p.Details == nil {
			p.Details = make(map[string]any, len(u.Details))
		}
		for k, v := range u.Details {
			p.Details[k] = copyValue(v)
		}
	}
}

// Job is one unit of background work.
type Job struct {
	ID          string         `json:"id"`
	Type        Type           `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Status      Status         `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Progress    Progress       `json:"progress"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata"`

	seq uint64
}

// Cancelled reports the cancellation flag.
func (j Job) Cancelled() bool {
	v, ok := j.Metadata[MetadataCancelled].(bool)
	return ok && v
}

// Duration returns how long the job ran, or has been running at now.
func (j Job) Duration(now time.Time) time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	end := now
	if j.CompletedAt != nil {
		end = *j.CompletedAt
	}
	return end.Sub(*j.StartedAt)
}

func (j *Job) clone() Job {
	out := *j
	out.StartedAt = copyTime(j.StartedAt)
	out.CompletedAt = copyTime(j.CompletedAt)
	out.Progress.Details = copyMap(j.Progress.Details)
	out.Result = copyMap(j.Result)
	out.Metadata = copyMap(j.Metadata)
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

// copyValue deep-copies the container shapes that appear in job maps.
// Other values are treated as immutable.
func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = copyValue(item)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, item := range t {
			out[i] = copyMap(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, s := range t {
			out[k] = s
		}
		return out
	default:
		return v
	}
}
