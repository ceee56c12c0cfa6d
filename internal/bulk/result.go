package bulk

// ItemStatus classifies one processed item.
type ItemStatus string

const (
	StatusSuccess ItemStatus = "success"
	StatusFailed  ItemStatus = "failed"
	StatusSkipped ItemStatus = "skipped"
)

// Detail keys recorded per item.
const (
	DetailEpisodeID         = "episode_id"
	DetailEpisodeTitle      = "episode_title"
	DetailOutputFile        = "output_file"
	DetailOutputPath        = "output_path"
	DetailUsedEmbedded      = "used_embedded"
	DetailError             = "error"
	DetailReason            = "reason"
	DetailSync              = "sync"
	DetailLanguageDetection = "language_detection"
	DetailSyncWarnings      = "sync_warnings"
)

// ReasonMissingSources is the skip reason for items lacking a usable
// subtitle source for either language.
const ReasonMissingSources = "Missing required subtitle files"

// ItemResult is the outcome of one item.
type ItemResult struct {
	ItemID    string         `json:"item_id"`
	ItemLabel string         `json:"item_label"`
	Status    ItemStatus     `json:"status"`
	Detail    map[string]any `json:"detail"`
}

func (r ItemResult) toMap() map[string]any {
	detail := make(map[string]any, len(r.Detail))
	for k, v := range r.Detail {
		detail[k] = v
	}
	return map[string]any{
		"item_id":    r.ItemID,
		"item_label": r.ItemLabel,
		"status":     string(r.Status),
		"detail":     detail,
	}
}

// BatchResult groups item outcomes by status.
type BatchResult struct {
	Successful []ItemResult `json:"successful"`
	Failed     []ItemResult `json:"failed"`
	Skipped    []ItemResult `json:"skipped"`
}

// Processed counts every recorded item.
func (b BatchResult) Processed() int {
	return len(b.Successful) + len(b.Failed) + len(b.Skipped)
}

func (b *BatchResult) add(r ItemResult) {
	switch r.Status {
	case StatusSuccess:
		b.Successful = append(b.Successful, r)
	case StatusSkipped:
		b.Skipped = append(b.Skipped, r)
	default:
		b.Failed = append(b.Failed, r)
	}
}

// Counts summarizes the batch.
func (b BatchResult) Counts() map[string]any {
	return map[string]any{
		"total_processed": b.Processed(),
		"successful":      len(b.Successful),
		"failed":          len(b.Failed),
		"skipped":         len(b.Skipped),
	}
}

// Map renders the batch as a job result.
func (b BatchResult) Map() map[string]any {
	return map[string]any{
		"successful": itemMaps(b.Successful),
		"failed":     itemMaps(b.Failed),
		"skipped":    itemMaps(b.Skipped),
		"summary":    b.Counts(),
	}
}

func itemMaps(items []ItemResult) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		out = append(out, item.toMap())
	}
	return out
}
