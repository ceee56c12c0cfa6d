package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"dualsub/internal/config"
	"dualsub/internal/jobs"
	"dualsub/internal/logging"
	"dualsub/internal/notifications"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newServer(t *testing.T, status int) (*httptest.Server, func() []captured) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []captured
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		seen = append(seen, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, func() []captured {
		mu.Lock()
		defer mu.Unlock()
		return append([]captured(nil), seen...)
	}
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyJobFinished(context.Background(), jobs.Job{Status: jobs.StatusFailed}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNotifyJobFinishedFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		job            jobs.Job
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "bulk completed",
			job: jobs.Job{
				Title:  "Dual subtitles: Example",
				Status: jobs.StatusCompleted,
				Result: map[string]any{"summary": map[string]any{"successful": 4, "failed": 1, "skipped": 0}},
			},
			expectTitle:   "dualsub - Job Complete",
			expectMessage: "✅ Dual subtitles: Example\n4 created, 1 failed, 0 skipped",
			expectTags:    "dualsub,job,completed",
		},
		{
			name:           "failed",
			job:            jobs.Job{Title: "Extract stream 3: movie.mkv", Status: jobs.StatusFailed, Error: "ffmpeg missing"},
			expectTitle:    "dualsub - Job Failed",
			expectMessage:  "❌ Extract stream 3: movie.mkv: ffmpeg missing",
			expectTags:     "dualsub,job,failed",
			expectPriority: "high",
		},
		{
			name:          "cancelled",
			job:           jobs.Job{Type: jobs.TypeSingleSubtitleSync, Status: jobs.StatusCancelled},
			expectTitle:   "dualsub - Job Cancelled",
			expectMessage: "⏹️ Cancelled: single_subtitle_sync",
			expectTags:    "dualsub,job,cancelled",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server, seen := newServer(t, http.StatusOK)
			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL

			svc := notifications.NewService(&cfg)
			if err := svc.NotifyJobFinished(context.Background(), tc.job); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}
			got := seen()
			if len(got) != 1 {
				t.Fatalf("expected 1 request, got %d", len(got))
			}
			if got[0].title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, got[0].title)
			}
			if got[0].body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, got[0].body)
			}
			if got[0].tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, got[0].tags)
			}
			if got[0].priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, got[0].priority)
			}
		})
	}
}

func TestSuccessAlertsCanBeSuppressed(t *testing.T) {
	server, seen := newServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.NotifySuccess = false

	svc := notifications.NewService(&cfg)
	if err := svc.NotifyJobFinished(context.Background(), jobs.Job{Status: jobs.StatusCompleted}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(seen()); n != 0 {
		t.Fatalf("expected no request, got %d", n)
	}
}

func TestServerErrorIsReported(t *testing.T) {
	server, _ := newServer(t, http.StatusInternalServerError)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	if err := notifications.NewService(&cfg).TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestHookDeliversInBackground(t *testing.T) {
	server, seen := newServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	hook := notifications.Hook(notifications.NewService(&cfg), logging.NewNop())
	hook(jobs.Job{Title: "x", Status: jobs.StatusFailed, Error: "boom"})

	deadline := time.Now().Add(5 * time.Second)
	for len(seen()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("hook never delivered")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
