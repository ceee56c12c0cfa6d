package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"dualsub/internal/history"
	"dualsub/internal/jobs"
)

const timeFormat = "2006-01-02 15:04"

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatProgress(p jobs.Progress) string {
	if p.Total <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d (%.0f%%)", p.Processed, p.Total, p.Percentage())
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeFormat)
}

func buildJobRows(list []jobs.Job) [][]string {
	rows := make([][]string, 0, len(list))
	for _, job := range list {
		created := job.CreatedAt
		rows = append(rows, []string{
			shortID(job.ID),
			job.Title,
			string(job.Status),
			formatProgress(job.Progress),
			job.Progress.CurrentStep,
			formatTime(&created),
		})
	}
	return rows
}

var jobColumns = []column{
	{header: "ID"},
	{header: "Title", maxWidth: 48},
	{header: "Status"},
	{header: "Progress", right: true},
	{header: "Step", maxWidth: 32},
	{header: "Created"},
}

// jobDetailLines renders the "jobs show" view.
func jobDetailLines(job jobs.Job, now time.Time) []string {
	lines := []string{
		fmt.Sprintf("ID:        %s", job.ID),
		fmt.Sprintf("Type:      %s", job.Type),
		fmt.Sprintf("Title:     %s", job.Title),
		fmt.Sprintf("Status:    %s", job.Status),
		fmt.Sprintf("Created:   %s", formatTime(&job.CreatedAt)),
		fmt.Sprintf("Started:   %s", formatTime(job.StartedAt)),
		fmt.Sprintf("Finished:  %s", formatTime(job.CompletedAt)),
	}
	if d := job.Duration(now); d > 0 {
		lines = append(lines, fmt.Sprintf("Duration:  %s", d.Round(time.Second)))
	}
	lines = append(lines, fmt.Sprintf("Progress:  %s", formatProgress(job.Progress)))
	if step := job.Progress.CurrentStep; step != "" {
		lines = append(lines, fmt.Sprintf("Step:      %s", step))
	}
	if item := job.Progress.CurrentItem; item != "" && job.Status.IsActive() {
		lines = append(lines, fmt.Sprintf("Item:      %s", item))
	}
	if eta := job.Progress.EstimatedTimeRemaining; eta != "" && job.Status.IsActive() {
		lines = append(lines, fmt.Sprintf("Remaining: %s", eta))
	}
	if job.Cancelled() {
		lines = append(lines, "Cancelled: yes")
	}
	if job.Error != "" {
		lines = append(lines, fmt.Sprintf("Error:     %s", job.Error))
	}
	return append(lines, resultLines(job.Result)...)
}

// resultLines summarizes a job result: bulk counts and per-item outcomes, or
// the output path of single-item jobs.
func resultLines(result map[string]any) []string {
	if len(result) == 0 {
		return nil
	}
	var lines []string
	if summary, ok := result["summary"].(map[string]any); ok {
		lines = append(lines, fmt.Sprintf("Summary:   %v created, %v failed, %v skipped",
			summary["successful"], summary["failed"], summary["skipped"]))
		for _, bucket := range []string{"successful", "failed", "skipped"} {
			items, _ := result[bucket].([]any)
			for _, raw := range items {
				item, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				lines = append(lines, "  "+itemLine(bucket, item))
			}
		}
		return lines
	}
	if path, ok := result["output_path"].(string); ok {
		lines = append(lines, fmt.Sprintf("Output:    %s", path))
	}
	switch warnings := result["sync_warnings"].(type) {
	case []any:
		for _, w := range warnings {
			lines = append(lines, fmt.Sprintf("Warning:   %v", w))
		}
	case []string:
		for _, w := range warnings {
			lines = append(lines, "Warning:   "+w)
		}
	}
	return lines
}

func itemLine(bucket string, item map[string]any) string {
	label, _ := item["item_label"].(string)
	detail, _ := item["detail"].(map[string]any)
	switch bucket {
	case "successful":
		return fmt.Sprintf("✓ %s -> %v", label, detail["output_file"])
	case "failed":
		return fmt.Sprintf("✗ %s: %v", label, detail["error"])
	default:
		reason := detail["reason"]
		if msg, ok := detail["error"]; ok {
			reason = fmt.Sprintf("%v (%v)", reason, msg)
		}
		return fmt.Sprintf("- %s: %v", label, reason)
	}
}

func buildHistoryRows(entries []history.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		completed := e.CompletedAt
		rows = append(rows, []string{
			shortID(e.JobID),
			string(e.Type),
			e.Title,
			string(e.Status),
			e.Duration.Round(time.Second).String(),
			formatTime(&completed),
		})
	}
	return rows
}

var historyColumns = []column{
	{header: "ID"},
	{header: "Type"},
	{header: "Title", maxWidth: 48},
	{header: "Status"},
	{header: "Duration", right: true},
	{header: "Finished"},
}

func parseStatuses(values []string) ([]jobs.Status, error) {
	var out []jobs.Status
	seen := make(map[jobs.Status]struct{})
	for _, raw := range values {
		for _, value := range strings.Split(raw, ",") {
			if strings.TrimSpace(value) == "" {
				continue
			}
			status, err := jobs.ParseStatus(value)
			if err != nil {
				return nil, err
			}
			if _, dup := seen[status]; dup {
				continue
			}
			seen[status] = struct{}{}
			out = append(out, status)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
