package jobs

import (
	"context"
	"fmt"
	"runtime/debug"

	"dualsub/internal/logging"
	"dualsub/internal/services"
)

// Work is the body of a job. The returned map becomes the job result; on
// cancellation it is the partial result surfaced to terminal hooks.
type Work func(ctx context.Context, r Reporter) (map[string]any, error)

// Submit schedules work for a pending job. At most MaxConcurrentJobs works
// run at once; further jobs stay pending until a slot frees. Work for a job
// cancelled while waiting never runs. ctx bounds the job's lifetime in
// addition to CancelJob and Close.
func (o *Orchestrator) Submit(ctx context.Context, id string, work Work) error {
	if work == nil {
		return services.Wrap(services.ErrValidation, "jobs", "submit", "nil work", nil)
	}
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	job, ok := o.jobs[id]
	if !ok {
		o.mu.Unlock()
		return services.Wrap(services.ErrNotFound, "jobs", "submit", fmt.Sprintf("job %s", id), nil)
	}
	if job.Status != StatusPending {
		o.mu.Unlock()
		return services.Wrap(services.ErrValidation, "jobs", "submit", fmt.Sprintf("job %s is %s", id, job.Status), nil)
	}
	if _, dup := o.runs[id]; dup {
		o.mu.Unlock()
		return services.Wrap(services.ErrValidation, "jobs", "submit", fmt.Sprintf("job %s already submitted", id), nil)
	}

	jobCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(o.baseCtx, cancel)
	o.runs[id] = cancel
	o.wg.Add(1)
	o.mu.Unlock()

	jobCtx = services.WithJobID(jobCtx, id)
	go func() {
		defer o.wg.Done()
		defer func() {
			stop()
			cancel()
		}()
		o.run(jobCtx, id, work)
	}()
	return nil
}

func (o *Orchestrator) run(ctx context.Context, id string, work Work) {
	defer func() {
		o.mu.Lock()
		delete(o.runs, id)
		o.mu.Unlock()
	}()

	if err := o.sem.Acquire(ctx, 1); err != nil {
		o.CancelJob(id)
		o.finish(id, nil)
		return
	}
	defer o.sem.Release(1)

	if ctx.Err() != nil {
		o.CancelJob(id)
		o.finish(id, nil)
		return
	}
	if !o.StartJob(id) {
		o.finish(id, nil)
		return
	}

	result, err := o.execute(ctx, id, work)
	switch terminalStatus(ctx, err) {
	case StatusCompleted:
		o.CompleteJob(id, result)
	case StatusCancelled:
		o.MarkJobCancelled(id)
		o.CancelJob(id)
	default:
		o.FailJob(id, err.Error())
	}
	o.finish(id, result)
}

func (o *Orchestrator) execute(ctx context.Context, id string, work Work) (result map[string]any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.ErrorWithContext(o.logger, "job work panicked", "job_panic",
				logging.String(logging.FieldJobID, id),
				logging.Any("panic", rec),
				logging.String("stack", string(debug.Stack())),
			)
			result = nil
			err = fmt.Errorf("internal error: %v", rec)
		}
	}()
	return work(ctx, &jobReporter{o: o, id: id})
}

// finish hands a terminal snapshot to the hooks and metrics.
func (o *Orchestrator) finish(id string, partial map[string]any) {
	snapshot, ok := o.GetJob(id)
	if !ok || !snapshot.Status.IsTerminal() {
		return
	}
	if snapshot.Status == StatusCancelled && snapshot.Result == nil && partial != nil {
		snapshot.Result = copyMap(partial)
	}
	if o.metrics != nil {
		o.metrics.observeTerminal(snapshot, o.now())
	}
	for _, fn := range o.onFinish {
		fn(snapshot)
	}
}

// Wait blocks until every submitted work has returned.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Close cancels all jobs and waits for their work to return. Submit fails
// afterwards.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	for _, job := range o.GetActiveJobs() {
		o.CancelJob(job.ID)
	}
	o.baseCancel()
	o.wg.Wait()
}
