package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dualsub/internal/api"
	"dualsub/internal/bulk"
	"dualsub/internal/catalog"
	"dualsub/internal/cues"
	"dualsub/internal/history"
	"dualsub/internal/jobs"
	"dualsub/internal/logging"
	"dualsub/internal/syncengine"
	"dualsub/internal/workflow"
)

type emptyCatalog struct{}

func (emptyCatalog) Libraries(context.Context, string) ([]catalog.Library, error) { return nil, nil }
func (emptyCatalog) Show(context.Context, string, string) (catalog.Show, error) {
	return catalog.Show{}, nil
}
func (emptyCatalog) Episodes(context.Context, string, string) ([]catalog.Item, error) {
	return nil, nil
}
func (emptyCatalog) Movies(context.Context, string, string) ([]catalog.Item, error) { return nil, nil }

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type env struct {
	orch    *jobs.Orchestrator
	manager *workflow.Manager
	handler http.Handler
	clock   *clock
}

func newEnv(t *testing.T, opts ...api.Option) *env {
	t.Helper()
	clk := &clock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	engine := syncengine.New(nil, syncengine.WithTempDir(t.TempDir()))
	pipeline := bulk.New(emptyCatalog{}, engine, bulk.WithTempDir(t.TempDir()), bulk.WithTokenOptional())
	orch := jobs.New(jobs.WithLogger(logging.NewNop()), jobs.WithClock(clk.Now))
	t.Cleanup(orch.Close)
	manager := workflow.NewManager(orch, pipeline)
	server := api.NewServer(manager, opts...)
	return &env{orch: orch, manager: manager, handler: server.Handler(), clock: clk}
}

func (e *env) do(t *testing.T, method, target string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func writeTrack(t *testing.T, path, text string) {
	t.Helper()
	require.NoError(t, cues.WriteFile(path, cues.List{{Start: 1000, End: 2000, Text: text}}))
}

func TestSubmitSyncJobAndPoll(t *testing.T) {
	e := newEnv(t)
	dir := t.TempDir()
	primary := filepath.Join(dir, "ep.en.srt")
	secondary := filepath.Join(dir, "ep.fr.srt")
	writeTrack(t, primary, "Hello")
	writeTrack(t, secondary, "Bonjour")

	rec := e.do(t, http.MethodPost, "/api/jobs", workflow.Request{
		Type: jobs.TypeSingleSubtitleSync,
		Sync: &workflow.SyncRequest{
			PrimaryPath:       primary,
			SecondaryPath:     secondary,
			PrimaryLanguage:   "en",
			SecondaryLanguage: "fr",
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[api.JobResponse](t, rec)
	require.NotEmpty(t, created.Job.ID)
	e.orch.Wait()

	rec = e.do(t, http.MethodGet, "/api/jobs/"+created.Job.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[api.JobResponse](t, rec)
	assert.Equal(t, jobs.StatusCompleted, got.Job.Status, got.Job.Error)
	assert.Equal(t, "ep.en.dual.en-fr.srt", got.Job.Result["output_file"])

	rec = e.do(t, http.MethodGet, "/api/jobs/"+created.Job.ID+"/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	progress := decode[api.ProgressResponse](t, rec)
	assert.Equal(t, jobs.StatusCompleted, progress.Status)
	assert.Equal(t, progress.Progress.Total, progress.Progress.Processed)
	assert.Contains(t, rec.Body.String(), `"percentage":100`)

	rec = e.do(t, http.MethodGet, "/api/jobs?status=completed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[api.JobListResponse](t, rec).Jobs, 1)

	rec = e.do(t, http.MethodGet, "/api/jobs?status=running,pending", nil)
	assert.Empty(t, decode[api.JobListResponse](t, rec).Jobs)
}

func TestSubmitRejectsInvalidRequest(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/jobs", map[string]any{"type": "transcode"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[api.ErrorResponse](t, rec)
	assert.Equal(t, "validation", body.Kind)
	assert.NotEmpty(t, body.RequestID)
	assert.Empty(t, e.orch.GetAllJobs())
}

func TestListRejectsUnknownStatus(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/api/jobs?status=exploded", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownJobIsNotFound(t *testing.T) {
	e := newEnv(t)
	for _, target := range []string{"/api/jobs/nope", "/api/jobs/nope/status"} {
		rec := e.do(t, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.Equal(t, "not_found", decode[api.ErrorResponse](t, rec).Kind)
	}
	rec := e.do(t, http.MethodPost, "/api/jobs/nope/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelPendingJob(t *testing.T) {
	e := newEnv(t)
	first := e.orch.CreateJob(jobs.TypeBulkDualSubtitle, "first", "", nil)
	second := e.orch.CreateJob(jobs.TypeBulkDualSubtitle, "second", "", nil)

	rec := e.do(t, http.MethodPost, "/api/jobs/"+first+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	job := decode[api.JobResponse](t, rec).Job
	assert.Equal(t, jobs.StatusCancelled, job.Status)
	assert.True(t, job.Cancelled())

	rec = e.do(t, http.MethodDelete, "/api/jobs/"+second, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, jobs.StatusCancelled, decode[api.JobResponse](t, rec).Job.Status)

	rec = e.do(t, http.MethodPost, "/api/jobs/"+first+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCleanupUsesRetention(t *testing.T) {
	e := newEnv(t, api.WithRetention(2*time.Hour))
	old := e.orch.CreateJob(jobs.TypeSubtitleExtraction, "old", "", nil)
	require.True(t, e.orch.StartJob(old))
	require.True(t, e.orch.CompleteJob(old, nil))
	e.clock.Advance(3 * time.Hour)
	fresh := e.orch.CreateJob(jobs.TypeSubtitleExtraction, "fresh", "", nil)
	require.True(t, e.orch.StartJob(fresh))
	require.True(t, e.orch.CompleteJob(fresh, nil))

	rec := e.do(t, http.MethodPost, "/api/jobs/cleanup", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[api.CleanupResponse](t, rec)
	assert.Equal(t, 1, resp.Removed)
	assert.Equal(t, 2, resp.RetentionHours)

	_, ok := e.orch.GetJob(fresh)
	assert.True(t, ok)

	rec = e.do(t, http.MethodPost, "/api/jobs/cleanup?retention_hours=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthRequiresBearerToken(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := newEnv(t, api.WithToken("secret"), api.WithMetrics(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	rec := e.do(t, http.MethodGet, "/api/jobs", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/jobs", nil, "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/jobs", nil, "Authorization", "Bearer secret")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/api/jobs", nil, "X-Request-ID", "abc-123")
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))

	rec = e.do(t, http.MethodGet, "/api/jobs", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestHistoryRoutes(t *testing.T) {
	disabled := newEnv(t)
	rec := disabled.do(t, http.MethodGet, "/api/history", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	completed := time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)
	require.NoError(t, store.Record(context.Background(), jobs.Job{
		ID:          "job-1",
		Type:        jobs.TypeBulkDualSubtitle,
		Title:       "Dual subtitles: Example",
		Status:      jobs.StatusFailed,
		Error:       "catalog unreachable",
		CreatedAt:   completed.Add(-time.Minute),
		CompletedAt: &completed,
	}))

	e := newEnv(t, api.WithHistory(store))
	rec = e.do(t, http.MethodGet, "/api/history?status=failed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[api.HistoryResponse](t, rec).Entries
	require.Len(t, entries, 1)
	assert.Equal(t, "catalog unreachable", entries[0].Error)

	rec = e.do(t, http.MethodGet, "/api/history/job-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "job-1", decode[api.HistoryEntryResponse](t, rec).Entry.JobID)

	rec = e.do(t, http.MethodGet, "/api/history/job-2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/history?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusDefaultsToOrchestratorCounts(t *testing.T) {
	e := newEnv(t)
	e.orch.CreateJob(jobs.TypeBulkDualSubtitle, "waiting", "", nil)

	rec := e.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[api.DaemonStatus](t, rec)
	assert.True(t, status.Running)
	assert.Equal(t, 1, status.JobCounts["pending"])
	assert.Equal(t, 0, status.JobCounts["failed"])

	custom := newEnv(t, api.WithStatus(func(context.Context) api.DaemonStatus {
		return api.DaemonStatus{Catalog: "manifest"}
	}))
	rec = custom.do(t, http.MethodGet, "/api/status", nil)
	assert.Equal(t, "manifest", decode[api.DaemonStatus](t, rec).Catalog)
}
