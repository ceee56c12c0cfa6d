package history

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"dualsub/internal/jobs"
	"dualsub/internal/logging"
	"dualsub/internal/services"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func terminalJob(id string, status jobs.Status, completed time.Time) jobs.Job {
	created := completed.Add(-time.Minute)
	started := completed.Add(-30 * time.Second)
	return jobs.Job{
		ID:          id,
		Type:        jobs.TypeBulkDualSubtitle,
		Title:       "Dual subtitles: " + id,
		Status:      status,
		CreatedAt:   created,
		StartedAt:   &started,
		CompletedAt: &completed,
		Result:      map[string]any{"summary": map[string]any{"successful": 3}},
		Metadata:    map[string]any{"show_id": "42"},
	}
}

func TestRecordAndGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	completed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job := terminalJob("a", jobs.StatusCompleted, completed)

	if err := store.Record(ctx, job); err != nil {
		t.Fatalf("Record: %v", err)
	}
	entry, err := store.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.Status != jobs.StatusCompleted || entry.Type != jobs.TypeBulkDualSubtitle {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if !entry.CompletedAt.Equal(completed) {
		t.Fatalf("completed_at = %v, want %v", entry.CompletedAt, completed)
	}
	if entry.StartedAt == nil || entry.Duration != 30*time.Second {
		t.Fatalf("duration = %v started = %v", entry.Duration, entry.StartedAt)
	}
	summary, _ := entry.Result["summary"].(map[string]any)
	if summary["successful"] != float64(3) {
		t.Fatalf("result not round-tripped: %#v", entry.Result)
	}
	if entry.Metadata["show_id"] != "42" {
		t.Fatalf("metadata not round-tripped: %#v", entry.Metadata)
	}
}

func TestRecordRejectsActiveJob(t *testing.T) {
	store := openTestStore(t)
	err := store.Record(context.Background(), jobs.Job{ID: "x", Status: jobs.StatusRunning})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetMissing(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListOrdersAndFilters(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, status := range []jobs.Status{jobs.StatusCompleted, jobs.StatusFailed, jobs.StatusCancelled, jobs.StatusCompleted} {
		job := terminalJob(string(rune('a'+i)), status, base.Add(time.Duration(i)*time.Second+time.Duration(i)*time.Millisecond))
		if err := store.Record(ctx, job); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	all, err := store.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 4 || all[0].JobID != "d" || all[3].JobID != "a" {
		t.Fatalf("unexpected order: %v", ids(all))
	}

	completed, err := store.List(ctx, Filter{Status: jobs.StatusCompleted, Limit: 1})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(completed) != 1 || completed[0].JobID != "d" {
		t.Fatalf("filtered = %v", ids(completed))
	}

	none, err := store.List(ctx, Filter{Type: jobs.TypeSubtitleExtraction})
	if err != nil || len(none) != 0 {
		t.Fatalf("type filter = %v, %v", ids(none), err)
	}
}

func TestPrune(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	_ = store.Record(ctx, terminalJob("old", jobs.StatusCompleted, now.Add(-48*time.Hour)))
	_ = store.Record(ctx, terminalJob("new", jobs.StatusCompleted, now.Add(-time.Hour)))

	removed, err := store.Prune(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := store.Get(ctx, "new"); err != nil {
		t.Fatalf("young entry pruned: %v", err)
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = store.Record(context.Background(), terminalJob("a", jobs.StatusFailed, time.Now()))
	_ = store.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.Get(context.Background(), "a"); err != nil {
		t.Fatalf("entry lost on reopen: %v", err)
	}
}

func TestSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("update version: %v", err)
	}
	_ = db.Close()

	if _, err := Open(path); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}

func TestHookArchivesOrchestratedJobs(t *testing.T) {
	store := openTestStore(t)
	orch := jobs.New(jobs.WithLogger(logging.NewNop()), jobs.WithTerminalHook(store.Hook(logging.NewNop())))
	defer orch.Close()

	id := orch.CreateJob(jobs.TypeSingleSubtitleSync, "pair", "", nil)
	if err := orch.Submit(context.Background(), id, func(context.Context, jobs.Reporter) (map[string]any, error) {
		return map[string]any{"output_file": "x.dual.en-fr.srt"}, nil
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	orch.Wait()

	entry, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.Status != jobs.StatusCompleted || entry.Result["output_file"] != "x.dual.en-fr.srt" {
		t.Fatalf("unexpected archived entry %+v", entry)
	}
}

func ids(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.JobID)
	}
	return out
}
