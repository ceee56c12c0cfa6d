package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestProgressPercentage(t *testing.T) {
	assert.Equal(t, 75.0, Progress{Processed: 3, Total: 4}.Percentage())
	assert.Equal(t, 0.0, Progress{Processed: 3}.Percentage())

	data, err := json.Marshal(Progress{CurrentStep: "Processing episodes", Processed: 1, Total: 4})
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 25.0, decoded["percentage"])
	assert.Equal(t, "Processing episodes", decoded["current_step"])
}

func TestCreateJobCopiesParamsAndSnapshotsAreIsolated(t *testing.T) {
	o := New()
	params := map[string]any{"show_id": "42", "nested": map[string]any{"k": "v"}}
	id := o.CreateJob(TypeBulkDualSubtitle, "Bulk", "desc", params)
	params["show_id"] = "changed"

	job, ok := o.GetJob(id)
	require.True(t, ok)
	assert.Equal(t, StatusPending, job.Status)
	assert.Equal(t, "42", job.Metadata["show_id"])

	job.Metadata["show_id"] = "mutated"
	job.Metadata["nested"].(map[string]any)["k"] = "mutated"
	again, _ := o.GetJob(id)
	assert.Equal(t, "42", again.Metadata["show_id"])
	assert.Equal(t, "v", again.Metadata["nested"].(map[string]any)["k"])

	_, ok = o.GetJob("missing")
	assert.False(t, ok)
}

func TestCancelJobSemantics(t *testing.T) {
	clock := newFakeClock()
	o := New(WithClock(clock.Now))
	id := o.CreateJob(TypeBulkDualSubtitle, "Bulk", "", nil)

	require.True(t, o.CancelJob(id))
	job, _ := o.GetJob(id)
	assert.Equal(t, StatusCancelled, job.Status)
	require.NotNil(t, job.CompletedAt)
	assert.Equal(t, clock.Now(), *job.CompletedAt)
	assert.True(t, o.IsJobCancelled(id))

	assert.False(t, o.CancelJob(id))
	assert.False(t, o.StartJob(id))
	assert.False(t, o.CompleteJob(id, map[string]any{"x": 1}))
	assert.False(t, o.FailJob(id, "late"))
	assert.False(t, o.CancelJob("missing"))

	job, _ = o.GetJob(id)
	assert.Equal(t, StatusCancelled, job.Status)
	assert.Nil(t, job.Result)
	assert.Empty(t, job.Error)
}

func TestCancelRunningJob(t *testing.T) {
	o := New()
	id := o.CreateJob(TypeSingleSubtitleSync, "Sync", "", nil)
	require.True(t, o.StartJob(id))
	require.True(t, o.CancelJob(id))
	assert.False(t, o.CompleteJob(id, nil))
}

func TestMarkJobCancelledKeepsStatus(t *testing.T) {
	o := New()
	id := o.CreateJob(TypeBulkDualSubtitle, "Bulk", "", nil)
	require.True(t, o.StartJob(id))
	require.True(t, o.CompleteJob(id, nil))

	assert.False(t, o.IsJobCancelled(id))
	o.MarkJobCancelled(id)
	assert.True(t, o.IsJobCancelled(id))
	job, _ := o.GetJob(id)
	assert.Equal(t, StatusCompleted, job.Status)
}

func TestUpdateJobProgressOnlyWhileRunning(t *testing.T) {
	o := New()
	id := o.CreateJob(TypeBulkDualSubtitle, "Bulk", "", nil)

	assert.False(t, o.UpdateJobProgress(id, ProgressUpdate{CurrentStep: Ptr("early")}))
	job, _ := o.GetJob(id)
	assert.Equal(t, "Queued", job.Progress.CurrentStep)

	require.True(t, o.StartJob(id))
	assert.True(t, o.UpdateJobProgress(id, ProgressUpdate{
		CurrentStep: Ptr("Processing episodes"),
		Total:       Ptr(4),
		Details:     map[string]any{"a": 1},
	}))
	assert.True(t, o.UpdateJobProgress(id, ProgressUpdate{
		Processed: Ptr(2),
		Details:   map[string]any{"b": 2},
	}))
	job, _ = o.GetJob(id)
	assert.Equal(t, "Processing episodes", job.Progress.CurrentStep)
	assert.Equal(t, 2, job.Progress.Processed)
	assert.Equal(t, 4, job.Progress.Total)
	assert.Equal(t, 50.0, job.Progress.Percentage())
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, job.Progress.Details)

	require.True(t, o.CompleteJob(id, nil))
	assert.False(t, o.UpdateJobProgress(id, ProgressUpdate{Processed: Ptr(0)}))
	job, _ = o.GetJob(id)
	assert.Equal(t, 100.0, job.Progress.Percentage())

	assert.False(t, o.UpdateJobProgress("missing", ProgressUpdate{}))
}

func TestCompleteJobForcesFullPercentage(t *testing.T) {
	o := New()
	empty := o.CreateJob(TypeSubtitleExtraction, "Extract", "", nil)
	require.True(t, o.StartJob(empty))
	require.True(t, o.CompleteJob(empty, map[string]any{"output": "x.srt"}))
	job, _ := o.GetJob(empty)
	assert.Equal(t, 100.0, job.Progress.Percentage())
	assert.Equal(t, "x.srt", job.Result["output"])

	partial := o.CreateJob(TypeBulkDualSubtitle, "Bulk", "", nil)
	require.True(t, o.StartJob(partial))
	o.UpdateJobProgress(partial, ProgressUpdate{Processed: Ptr(3), Total: Ptr(10)})
	require.True(t, o.CompleteJob(partial, nil))
	job, _ = o.GetJob(partial)
	assert.Equal(t, 10, job.Progress.Processed)
	assert.Equal(t, 100.0, job.Progress.Percentage())
}

func TestCompleteJobRequiresRunning(t *testing.T) {
	o := New()
	id := o.CreateJob(TypeBulkDualSubtitle, "Bulk", "", nil)
	assert.False(t, o.CompleteJob(id, nil))
	job, _ := o.GetJob(id)
	assert.Equal(t, StatusPending, job.Status)
}

func TestFailJob(t *testing.T) {
	o := New()
	pending := o.CreateJob(TypeBulkDualSubtitle, "Bulk", "", nil)
	require.True(t, o.FailJob(pending, "token missing"))
	job, _ := o.GetJob(pending)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, "token missing", job.Error)
	assert.NotNil(t, job.CompletedAt)
	assert.False(t, o.FailJob(pending, "again"))
}

func TestCleanupOldJobs(t *testing.T) {
	clock := newFakeClock()
	o := New(WithClock(clock.Now))

	old := o.CreateJob(TypeBulkDualSubtitle, "old", "", nil)
	require.True(t, o.StartJob(old))
	require.True(t, o.CompleteJob(old, nil))

	clock.Advance(23 * time.Hour)
	young := o.CreateJob(TypeBulkDualSubtitle, "young", "", nil)
	require.True(t, o.FailJob(young, "boom"))
	active := o.CreateJob(TypeBulkDualSubtitle, "active", "", nil)
	require.True(t, o.StartJob(active))

	clock.Advance(2 * time.Hour)
	assert.Equal(t, 1, o.CleanupOldJobs(24*time.Hour))

	_, ok := o.GetJob(old)
	assert.False(t, ok)
	_, ok = o.GetJob(young)
	assert.True(t, ok)
	_, ok = o.GetJob(active)
	assert.True(t, ok)
	assert.Equal(t, 0, o.CleanupOldJobs(24*time.Hour))
}

func TestGetAllJobsOrderingAndFilter(t *testing.T) {
	clock := newFakeClock()
	o := New(WithClock(clock.Now))
	first := o.CreateJob(TypeBulkDualSubtitle, "first", "", nil)
	clock.Advance(time.Minute)
	second := o.CreateJob(TypeBulkDualSubtitle, "second", "", nil)
	third := o.CreateJob(TypeBulkDualSubtitle, "third", "", nil)
	require.True(t, o.StartJob(second))
	require.True(t, o.FailJob(first, "x"))

	all := o.GetAllJobs()
	require.Len(t, all, 3)
	assert.Equal(t, []string{third, second, first}, []string{all[0].ID, all[1].ID, all[2].ID})

	active := o.GetActiveJobs()
	require.Len(t, active, 2)
	failed := o.GetAllJobs(StatusFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, first, failed[0].ID)
	assert.Equal(t, map[Status]int{StatusPending: 1, StatusRunning: 1, StatusFailed: 1}, o.Counts())
}

func TestSubmitCompletesJobAndCallsHookOnce(t *testing.T) {
	var hooked []Job
	var mu sync.Mutex
	o := New(WithTerminalHook(func(j Job) {
		mu.Lock()
		hooked = append(hooked, j)
		mu.Unlock()
	}))
	id := o.CreateJob(TypeBulkDualSubtitle, "Bulk", "", nil)
	require.NoError(t, o.Submit(context.Background(), id, func(_ context.Context, r Reporter) (map[string]any, error) {
		assert.Equal(t, id, r.JobID())
		assert.True(t, r.Update(ProgressUpdate{CurrentStep: Ptr("Working"), Total: Ptr(2), Processed: Ptr(1)}))
		return map[string]any{"successful": 2}, nil
	}))
	o.Wait()

	job, _ := o.GetJob(id)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, 2, job.Result["successful"])
	assert.Equal(t, 100.0, job.Progress.Percentage())
	require.Len(t, hooked, 1)
	assert.Equal(t, StatusCompleted, hooked[0].Status)
}

func TestSubmitHardBlockingAdmission(t *testing.T) {
	o := New(WithMaxConcurrentJobs(1))
	release := make(chan struct{})
	started := make(chan string, 2)
	var inFlight, peak atomic.Int32
	work := func(_ context.Context, r Reporter) (map[string]any, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		started <- r.JobID()
		<-release
		inFlight.Add(-1)
		return nil, nil
	}
	a := o.CreateJob(TypeBulkDualSubtitle, "a", "", nil)
	b := o.CreateJob(TypeBulkDualSubtitle, "b", "", nil)
	require.NoError(t, o.Submit(context.Background(), a, work))
	require.NoError(t, o.Submit(context.Background(), b, work))

	first := <-started
	second := a
	if first == a {
		second = b
	}
	select {
	case id := <-started:
		t.Fatalf("job %s started while the only slot was busy", id)
	case <-time.After(50 * time.Millisecond):
	}
	waiting, _ := o.GetJob(second)
	assert.Equal(t, StatusPending, waiting.Status)
	running, _ := o.GetJob(first)
	assert.Equal(t, StatusRunning, running.Status)

	close(release)
	o.Wait()
	assert.Equal(t, int32(1), peak.Load())
	for _, id := range []string{a, b} {
		job, _ := o.GetJob(id)
		assert.Equal(t, StatusCompleted, job.Status)
	}
}

func TestSubmitCancelWhileWaitingNeverRuns(t *testing.T) {
	var hooked atomic.Int32
	o := New(WithMaxConcurrentJobs(1), WithTerminalHook(func(Job) { hooked.Add(1) }))
	release := make(chan struct{})
	blockerStarted := make(chan struct{})
	blocker := o.CreateJob(TypeBulkDualSubtitle, "blocker", "", nil)
	require.NoError(t, o.Submit(context.Background(), blocker, func(context.Context, Reporter) (map[string]any, error) {
		close(blockerStarted)
		<-release
		return nil, nil
	}))
	<-blockerStarted

	var ran atomic.Bool
	waiting := o.CreateJob(TypeBulkDualSubtitle, "waiting", "", nil)
	require.NoError(t, o.Submit(context.Background(), waiting, func(context.Context, Reporter) (map[string]any, error) {
		ran.Store(true)
		return nil, nil
	}))
	require.True(t, o.CancelJob(waiting))
	close(release)
	o.Wait()

	assert.False(t, ran.Load())
	job, _ := o.GetJob(waiting)
	assert.Equal(t, StatusCancelled, job.Status)
	assert.Nil(t, job.StartedAt)
	assert.Equal(t, int32(2), hooked.Load())
}

func TestSubmitCancelRunningInterruptsWork(t *testing.T) {
	var final Job
	o := New(WithTerminalHook(func(j Job) { final = j }))
	id := o.CreateJob(TypeBulkDualSubtitle, "Bulk", "", nil)
	started := make(chan struct{})
	require.NoError(t, o.Submit(context.Background(), id, func(ctx context.Context, _ Reporter) (map[string]any, error) {
		close(started)
		<-ctx.Done()
		return map[string]any{"successful": 1}, ctx.Err()
	}))
	<-started
	require.True(t, o.CancelJob(id))
	o.Wait()

	job, _ := o.GetJob(id)
	assert.Equal(t, StatusCancelled, job.Status)
	assert.Nil(t, job.Result)
	assert.Equal(t, StatusCancelled, final.Status)
	assert.Equal(t, 1, final.Result["successful"])
}

func TestSubmitErrCancelledFromWork(t *testing.T) {
	var mu sync.Mutex
	var final Job
	o := New(WithTerminalHook(func(j Job) {
		mu.Lock()
		final = j
		mu.Unlock()
	}))
	id := o.CreateJob(TypeBulkDualSubtitle, "Bulk", "", nil)
	require.NoError(t, o.Submit(context.Background(), id, func(_ context.Context, r Reporter) (map[string]any, error) {
		r.MarkCancelled()
		return map[string]any{"partial": true}, ErrCancelled
	}))
	o.Wait()
	job, _ := o.GetJob(id)
	assert.Equal(t, StatusCancelled, job.Status)
	assert.True(t, job.Cancelled())
	assert.Nil(t, job.Result, "registry keeps no result for a cancelled job")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, StatusCancelled, final.Status)
	assert.Equal(t, map[string]any{"partial": true}, final.Result)
}

func TestSubmitErrorFailsJob(t *testing.T) {
	o := New()
	id := o.CreateJob(TypeBulkDualSubtitle, "Bulk", "", nil)
	require.NoError(t, o.Submit(context.Background(), id, func(context.Context, Reporter) (map[string]any, error) {
		return nil, errors.New("catalog unreachable")
	}))
	o.Wait()
	job, _ := o.GetJob(id)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, "catalog unreachable", job.Error)
}

func TestSubmitPanicFailsJob(t *testing.T) {
	o := New()
	id := o.CreateJob(TypeBulkDualSubtitle, "Bulk", "", nil)
	require.NoError(t, o.Submit(context.Background(), id, func(context.Context, Reporter) (map[string]any, error) {
		panic("nil map")
	}))
	o.Wait()
	job, _ := o.GetJob(id)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Contains(t, job.Error, "nil map")
}

func TestSubmitValidation(t *testing.T) {
	o := New()
	work := func(context.Context, Reporter) (map[string]any, error) { return nil, nil }
	require.Error(t, o.Submit(context.Background(), "missing", work))

	id := o.CreateJob(TypeBulkDualSubtitle, "Bulk", "", nil)
	require.Error(t, o.Submit(context.Background(), id, nil))
	require.True(t, o.StartJob(id))
	require.Error(t, o.Submit(context.Background(), id, work))

	o.Close()
	other := o.CreateJob(TypeBulkDualSubtitle, "late", "", nil)
	require.ErrorIs(t, o.Submit(context.Background(), other, work), ErrClosed)
}

func TestCloseCancelsRunningWork(t *testing.T) {
	o := New()
	id := o.CreateJob(TypeBulkDualSubtitle, "Bulk", "", nil)
	started := make(chan struct{})
	require.NoError(t, o.Submit(context.Background(), id, func(ctx context.Context, _ Reporter) (map[string]any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}))
	<-started
	o.Close()
	job, _ := o.GetJob(id)
	assert.Equal(t, StatusCancelled, job.Status)
}

func TestMetricsRecordTerminalJobs(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	o := New(WithMetrics(m))

	ok := o.CreateJob(TypeBulkDualSubtitle, "ok", "", nil)
	bad := o.CreateJob(TypeBulkDualSubtitle, "bad", "", nil)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.pending))

	require.NoError(t, o.Submit(context.Background(), ok, func(context.Context, Reporter) (map[string]any, error) { return nil, nil }))
	require.NoError(t, o.Submit(context.Background(), bad, func(context.Context, Reporter) (map[string]any, error) { return nil, errors.New("x") }))
	o.Wait()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.finished.WithLabelValues("bulk_dual_subtitle", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.finished.WithLabelValues("bulk_dual_subtitle", "failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.pending))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.running))
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" Running ")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, s)
	_, err = ParseStatus("paused")
	assert.Error(t, err)
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
}
