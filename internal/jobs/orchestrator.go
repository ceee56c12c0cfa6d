package jobs

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"dualsub/internal/logging"
)

// DefaultMaxConcurrentJobs bounds concurrently running work.
const DefaultMaxConcurrentJobs = 2

// DefaultRetention is how long terminal jobs stay in the registry.
const DefaultRetention = 24 * time.Hour

// Orchestrator is the single writer of job state and owns the worker pool.
type Orchestrator struct {
	mu     sync.Mutex
	jobs   map[string]*Job
	runs   map[string]context.CancelFunc
	seq    uint64
	closed bool

	maxConcurrent int64
	sem           *semaphore.Weighted
	wg            sync.WaitGroup
	baseCtx       context.Context
	baseCancel    context.CancelFunc

	now      func() time.Time
	logger   *slog.Logger
	metrics  *Metrics
	onFinish []func(Job)
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithMaxConcurrentJobs sets the worker pool size. Values below 1 are ignored.
func WithMaxConcurrentJobs(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxConcurrent = int64(n)
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logging.NewComponentLogger(logger, "jobs")
	}
}

// WithMetrics records job activity into m.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithTerminalHook registers fn to run once for every submitted job after it
// reaches a terminal state. Cancelled jobs carry their partial result in the
// snapshot handed to fn.
func WithTerminalHook(fn func(Job)) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.onFinish = append(o.onFinish, fn)
		}
	}
}

// New constructs an Orchestrator.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		jobs:          make(map[string]*Job),
		runs:          make(map[string]context.CancelFunc),
		maxConcurrent: DefaultMaxConcurrentJobs,
		now:           time.Now,
		logger:        logging.NewComponentLogger(nil, "jobs"),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.sem = semaphore.NewWeighted(o.maxConcurrent)
	o.baseCtx, o.baseCancel = context.WithCancel(context.Background())
	return o
}

// MaxConcurrentJobs reports the worker pool size.
func (o *Orchestrator) MaxConcurrentJobs() int {
	return int(o.maxConcurrent)
}

// CreateJob registers a pending job and returns its id. params are copied
// into the job's Metadata.
func (o *Orchestrator) CreateJob(jobType Type, title, description string, params map[string]any) string {
	id := uuid.NewString()
	o.mu.Lock()
	o.seq++
	job := &Job{
		ID:          id,
		Type:        jobType,
		Title:       title,
		Description: description,
		Status:      StatusPending,
		CreatedAt:   o.now(),
		Progress:    Progress{CurrentStep: "Queued"},
		Metadata:    copyMap(params),
		seq:         o.seq,
	}
	if job.Metadata == nil {
		job.Metadata = make(map[string]any)
	}
	o.jobs[id] = job
	o.refreshGaugesLocked()
	o.mu.Unlock()

	o.logger.Info("job created",
		logging.String(logging.FieldJobID, id),
		logging.String("job_type", string(jobType)),
		logging.String("title", title),
	)
	return id
}

// GetJob returns a snapshot of the job.
func (o *Orchestrator) GetJob(id string) (Job, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	job, ok := o.jobs[id]
	if !ok {
		return Job{}, false
	}
	return job.clone(), true
}

// GetAllJobs returns snapshots newest first, optionally filtered by status.
func (o *Orchestrator) GetAllJobs(statuses ...Status) []Job {
	filter := make(map[Status]struct{}, len(statuses))
	for _, s := range statuses {
		filter[s] = struct{}{}
	}
	o.mu.Lock()
	out := make([]Job, 0, len(o.jobs))
	for _, job := range o.jobs {
		if len(filter) > 0 {
			if _, ok := filter[job.Status]; !ok {
				continue
			}
		}
		out = append(out, job.clone())
	}
	o.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].seq > out[j].seq
	})
	return out
}

// GetActiveJobs returns pending and running jobs.
func (o *Orchestrator) GetActiveJobs() []Job {
	return o.GetAllJobs(StatusPending, StatusRunning)
}

// CancelJob cancels a pending or running job and interrupts its work.
func (o *Orchestrator) CancelJob(id string) bool {
	o.mu.Lock()
	job, ok := o.jobs[id]
	if !ok || !job.Status.IsActive() {
		o.mu.Unlock()
		return false
	}
	now := o.now()
	job.Status = StatusCancelled
	job.CompletedAt = &now
	job.Metadata[MetadataCancelled] = true
	cancel := o.runs[id]
	o.refreshGaugesLocked()
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	o.logger.Info("job cancelled", logging.String(logging.FieldJobID, id))
	return true
}

// IsJobCancelled reports the job's cancellation flag.
func (o *Orchestrator) IsJobCancelled(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	job, ok := o.jobs[id]
	return ok && job.Cancelled()
}

// MarkJobCancelled sets the cancellation flag without changing status.
func (o *Orchestrator) MarkJobCancelled(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if job, ok := o.jobs[id]; ok {
		job.Metadata[MetadataCancelled] = true
	}
}

// UpdateJobProgress merges update into a running job's progress. It returns
// false and changes nothing for jobs in any other state.
func (o *Orchestrator) UpdateJobProgress(id string, update ProgressUpdate) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	job, ok := o.jobs[id]
	if !ok || job.Status != StatusRunning {
		return false
	}
	update.apply(&job.Progress)
	return true
}

// StartJob moves a pending job to running.
func (o *Orchestrator) StartJob(id string) bool {
	o.mu.Lock()
	job, ok := o.jobs[id]
	if !ok || job.Status != StatusPending {
		o.mu.Unlock()
		return false
	}
	now := o.now()
	job.Status = StatusRunning
	job.StartedAt = &now
	job.Progress.CurrentStep = "Starting"
	o.refreshGaugesLocked()
	o.mu.Unlock()

	o.logger.Info("job started", logging.String(logging.FieldJobID, id))
	return true
}

// CompleteJob moves a running job to completed and stores result. Progress
// is forced to 100%.
func (o *Orchestrator) CompleteJob(id string, result map[string]any) bool {
	o.mu.Lock()
	job, ok := o.jobs[id]
	if !ok || job.Status != StatusRunning {
		o.mu.Unlock()
		return false
	}
	now := o.now()
	job.Status = StatusCompleted
	job.CompletedAt = &now
	job.Result = copyMap(result)
	if job.Progress.Total <= 0 {
		job.Progress.Total = 1
	}
	job.Progress.Processed = job.Progress.Total
	job.Progress.EstimatedTimeRemaining = ""
	o.refreshGaugesLocked()
	o.mu.Unlock()

	o.logger.Info("job completed", logging.String(logging.FieldJobID, id))
	return true
}

// FailJob moves a pending or running job to failed.
func (o *Orchestrator) FailJob(id, errMsg string) bool {
	o.mu.Lock()
	job, ok := o.jobs[id]
	if !ok || !job.Status.IsActive() {
		o.mu.Unlock()
		return false
	}
	now := o.now()
	job.Status = StatusFailed
	job.CompletedAt = &now
	job.Error = errMsg
	o.refreshGaugesLocked()
	o.mu.Unlock()

	logging.ErrorWithContext(o.logger, "job failed", "job_failed",
		logging.String(logging.FieldJobID, id),
		logging.String("error", errMsg),
	)
	return true
}

// CleanupOldJobs removes terminal jobs that completed before now-retention
// and returns how many were removed. A non-positive retention uses
// DefaultRetention. Jobs whose work is still unwinding are kept.
func (o *Orchestrator) CleanupOldJobs(retention time.Duration) int {
	if retention <= 0 {
		retention = DefaultRetention
	}
	cutoff := o.now().Add(-retention)
	o.mu.Lock()
	removed := 0
	for id, job := range o.jobs {
		if !job.Status.IsTerminal() || job.CompletedAt == nil || !job.CompletedAt.Before(cutoff) {
			continue
		}
		if _, running := o.runs[id]; running {
			continue
		}
		delete(o.jobs, id)
		removed++
	}
	o.mu.Unlock()

	if removed > 0 {
		o.logger.Info("old jobs removed",
			logging.Int("removed", removed),
			logging.Duration("retention", retention),
		)
	}
	return removed
}

// Counts returns the number of jobs per status.
func (o *Orchestrator) Counts() map[Status]int {
	o.mu.Lock()
	defer o.mu.Unlock()
	counts := make(map[Status]int, len(allStatuses))
	for _, job := range o.jobs {
		counts[job.Status]++
	}
	return counts
}

func (o *Orchestrator) refreshGaugesLocked() {
	if o.metrics == nil {
		return
	}
	var pending, running int
	for _, job := range o.jobs {
		switch job.Status {
		case StatusPending:
			pending++
		case StatusRunning:
			running++
		}
	}
	o.metrics.setActive(pending, running)
}
