package jobs

// Reporter is the work-facing view of one job.
type Reporter interface {
	JobID() string
	// Update merges a progress change. It returns false once the job is no
	// longer running.
	Update(ProgressUpdate) bool
	// Cancelled reports whether cancellation was requested.
	Cancelled() bool
	// MarkCancelled records that the work observed cancellation.
	MarkCancelled()
}

type jobReporter struct {
	o  *Orchestrator
	id string
}

func (r *jobReporter) JobID() string { return r.id }

func (r *jobReporter) Update(u ProgressUpdate) bool { return r.o.UpdateJobProgress(r.id, u) }

func (r *jobReporter) Cancelled() bool { return r.o.IsJobCancelled(r.id) }

func (r *jobReporter) MarkCancelled() { r.o.MarkJobCancelled(r.id) }

// Reporter returns a Reporter bound to id, for callers that drive a job
// without Submit.
func (o *Orchestrator) Reporter(id string) Reporter {
	return &jobReporter{o: o, id: id}
}
