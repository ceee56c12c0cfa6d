package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"dualsub/internal/config"
	"dualsub/internal/jobs"
	"dualsub/internal/logging"
)

const userAgent = "dualsub/1.0"

// Service is the notification surface used by the daemon.
type Service interface {
	NotifyJobFinished(ctx context.Context, job jobs.Job) error
	TestNotification(ctx context.Context) error
}

// NewService builds an ntfy-backed service, or a no-op when no topic is
// configured.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:      topic,
		client:        &http.Client{Timeout: timeout},
		notifySuccess: cfg.Notifications.NotifySuccess,
	}
}

// Hook adapts svc to an orchestrator terminal hook. Delivery runs in the
// background and failures are only logged.
func Hook(svc Service, logger *slog.Logger) func(jobs.Job) {
	logger = logging.NewComponentLogger(logger, "notifications")
	return func(job jobs.Job) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := svc.NotifyJobFinished(ctx, job); err != nil {
				logging.WarnWithContext(logger, "job notification failed", "notification_failed",
					logging.String(logging.FieldJobID, job.ID),
					logging.Error(err),
					logging.String(logging.FieldImpact, "no alert was delivered for this job"),
					logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
				)
			}
		}()
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint      string
	client        *http.Client
	notifySuccess bool
}

func (n *ntfyService) NotifyJobFinished(ctx context.Context, job jobs.Job) error {
	data, ok := jobPayload(job, n.notifySuccess)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

// jobPayload renders a terminal job. ok is false for jobs that should not
// alert.
func jobPayload(job jobs.Job, notifySuccess bool) (payload, bool) {
	title := strings.TrimSpace(job.Title)
	if title == "" {
		title = string(job.Type)
	}
	switch job.Status {
	case jobs.StatusCompleted:
		if !notifySuccess {
			return payload{}, false
		}
		message := "✅ " + title
		if summary := summaryLine(job.Result); summary != "" {
			message += "\n" + summary
		}
		return payload{
			title:   "dualsub - Job Complete",
			message: message,
			tags:    []string{"dualsub", "job", "completed"},
		}, true
	case jobs.StatusFailed:
		reason := strings.TrimSpace(job.Error)
		if reason == "" {
			reason = "unknown"
		}
		return payload{
			title:    "dualsub - Job Failed",
			message:  fmt.Sprintf("❌ %s: %s", title, reason),
			tags:     []string{"dualsub", "job", "failed"},
			priority: "high",
		}, true
	case jobs.StatusCancelled:
		return payload{
			title:   "dualsub - Job Cancelled",
			message: fmt.Sprintf("⏹️ Cancelled: %s", title),
			tags:    []string{"dualsub", "job", "cancelled"},
		}, true
	}
	return payload{}, false
}

func summaryLine(result map[string]any) string {
	summary, ok := result["summary"].(map[string]any)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%v created, %v failed, %v skipped", summary["successful"], summary["failed"], summary["skipped"])
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "dualsub - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"dualsub", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyJobFinished(context.Context, jobs.Job) error { return nil }
func (noopService) TestNotification(context.Context) error           { return nil }
