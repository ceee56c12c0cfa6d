package bulk

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"dualsub/internal/catalog"
	"dualsub/internal/jobs"
	"dualsub/internal/language"
	"dualsub/internal/logging"
	"dualsub/internal/services"
)

// Progress steps reported during a run.
const (
	StepInitializing = "Initializing"
	StepAnalyzing    = "Analyzing episodes"
	StepProcessing   = "Processing episodes"
	StepCreating     = "Creating dual subtitles"
	StepCompleted    = "Completed"
)

var errMissingSource = errors.New(ReasonMissingSources)

// Run processes every eligible episode of req.ShowID. Item failures are
// recorded in the result; the returned error is reserved for failures of
// the whole batch and for cancellation, which returns the partial result
// with jobs.ErrCancelled.
func (p *Pipeline) Run(ctx context.Context, req Request, r jobs.Reporter) (BatchResult, error) {
	var batch BatchResult
	logger := logging.WithContext(ctx, p.logger)
	r.Update(jobs.ProgressUpdate{CurrentStep: jobs.Ptr(StepInitializing), Processed: jobs.Ptr(0)})

	if err := p.validateRequest(req); err != nil {
		return batch, err
	}
	if p.catalog == nil {
		return batch, services.Wrap(services.ErrConfiguration, "bulk", "run", "catalog unavailable", nil)
	}

	episodes, err := p.catalog.Episodes(ctx, req.Token, req.ShowID)
	if err != nil {
		return batch, err
	}

	r.Update(jobs.ProgressUpdate{CurrentStep: jobs.Ptr(StepAnalyzing), Total: jobs.Ptr(len(episodes))})
	eligible := Eligible(episodes, req.PrimaryLanguage, req.SecondaryLanguage)
	logger.Info("bulk batch analyzed",
		logging.String("show_id", req.ShowID),
		logging.Int("episodes", len(episodes)),
		logging.Int("eligible", len(eligible)),
	)

	runDir, err := os.MkdirTemp(p.tempDir, "dualsub-bulk-*")
	if err != nil {
		return batch, services.Wrap(services.ErrConfiguration, "bulk", "run", "create temp directory", err)
	}
	defer os.RemoveAll(runDir)

	r.Update(jobs.ProgressUpdate{
		CurrentStep: jobs.Ptr(StepProcessing),
		Processed:   jobs.Ptr(0),
		Total:       jobs.Ptr(len(eligible)),
		Details:     map[string]any{"eligible_items": len(eligible), "total_items_in_show": len(episodes)},
	})

	var window durationWindow
	for i, item := range eligible {
		if r.Cancelled() || ctx.Err() != nil {
			return batch, p.cancelled(ctx, r, batch)
		}
		r.Update(jobs.ProgressUpdate{
			CurrentStep:            jobs.Ptr(StepCreating),
			CurrentItem:            jobs.Ptr(item.Label()),
			Processed:              jobs.Ptr(i),
			EstimatedTimeRemaining: jobs.Ptr(window.remaining(len(eligible) - i)),
		})

		started := p.now()
		itemCtx := services.WithItemID(ctx, item.ID)
		result := p.processItem(itemCtx, runDir, req, item)
		if ctx.Err() != nil {
			return batch, p.cancelled(ctx, r, batch)
		}
		window.add(p.now().Sub(started))
		batch.add(result)

		r.Update(jobs.ProgressUpdate{Processed: jobs.Ptr(i + 1), Details: batch.Counts()})
	}

	r.Update(jobs.ProgressUpdate{
		CurrentStep:            jobs.Ptr(StepCompleted),
		CurrentItem:            jobs.Ptr(""),
		Processed:              jobs.Ptr(len(eligible)),
		EstimatedTimeRemaining: jobs.Ptr(""),
		Details:                batch.Counts(),
	})
	logger.Info("bulk batch finished",
		logging.String("show_id", req.ShowID),
		logging.Int("successful", len(batch.Successful)),
		logging.Int("failed", len(batch.Failed)),
		logging.Int("skipped", len(batch.Skipped)),
	)
	return batch, nil
}

func (p *Pipeline) validateRequest(req Request) error {
	if !p.tokenOptional && strings.TrimSpace(req.Token) == "" {
		return services.Wrap(services.ErrValidation, "bulk", "run", "catalog token is required", nil)
	}
	if strings.TrimSpace(req.ShowID) == "" {
		return services.Wrap(services.ErrValidation, "bulk", "run", "show id is required", nil)
	}
	pri, sec := language.Normalize(req.PrimaryLanguage), language.Normalize(req.SecondaryLanguage)
	if pri == "" || sec == "" {
		return services.Wrap(services.ErrValidation, "bulk", "run", "primary and secondary languages are required", nil)
	}
	if pri == sec {
		return services.Wrap(services.ErrValidation, "bulk", "run", fmt.Sprintf("primary and secondary languages are both %s", pri), nil)
	}
	return nil
}

func (p *Pipeline) cancelled(ctx context.Context, r jobs.Reporter, batch BatchResult) error {
	r.MarkCancelled()
	logging.WithContext(ctx, p.logger).Info("bulk batch cancelled", logging.Int("processed", batch.Processed()))
	return jobs.ErrCancelled
}

// Eligible keeps items that carry both languages among their external and
// embedded sources.
func Eligible(items []catalog.Item, primary, secondary string) []catalog.Item {
	var out []catalog.Item
	for _, item := range items {
		if item.HasLanguage(primary) && item.HasLanguage(secondary) {
			out = append(out, item)
		}
	}
	return out
}

func (p *Pipeline) processItem(ctx context.Context, runDir string, req Request, item catalog.Item) (result ItemResult) {
	result = ItemResult{
		ItemID:    item.ID,
		ItemLabel: item.Label(),
		Detail: map[string]any{
			DetailEpisodeID:    item.ID,
			DetailEpisodeTitle: item.Label(),
		},
	}
	logger := logging.WithContext(ctx, p.logger)
	defer func() {
		if rec := recover(); rec != nil {
			logging.ErrorWithContext(logger, "bulk item panicked", "bulk_item_panic",
				logging.String("item", item.Label()),
				logging.Any("panic", rec),
				logging.String("stack", string(debug.Stack())),
			)
			result.Status = StatusFailed
			result.Detail[DetailError] = fmt.Sprintf("internal error: %v", rec)
		}
	}()

	itemDir, err := os.MkdirTemp(runDir, "item-*")
	if err != nil {
		return failed(result, err)
	}
	defer os.RemoveAll(itemDir)

	primary, primaryEmbedded, err := p.resolveSource(ctx, item, req.PrimaryLanguage, itemDir, "primary")
	if err != nil {
		return p.sourceProblem(ctx, result, err)
	}
	secondary, secondaryEmbedded, err := p.resolveSource(ctx, item, req.SecondaryLanguage, itemDir, "secondary")
	if err != nil {
		return p.sourceProblem(ctx, result, err)
	}
	result.Detail[DetailUsedEmbedded] = primaryEmbedded || secondaryEmbedded

	out, err := p.ProcessPair(ctx, PairInput{
		PrimaryPath:       primary,
		SecondaryPath:     secondary,
		VideoPath:         item.FilePath,
		OutputPath:        OutputPath(item.FilePath, req.PrimaryLanguage, req.SecondaryLanguage),
		PrimaryLanguage:   req.PrimaryLanguage,
		SecondaryLanguage: req.SecondaryLanguage,
		Options:           req.Options,
		Bulk:              true,
	})
	if out.Detection != nil {
		result.Detail[DetailLanguageDetection] = out.Detection
	}
	if err != nil {
		logging.WarnWithContext(logger, "dual subtitle creation failed", "bulk_item_failed",
			logging.String("item", item.Label()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "item has no dual subtitle, batch continues"),
			logging.String(logging.FieldErrorHint, "inspect the source subtitle files"),
		)
		return failed(result, err)
	}

	result.Status = StatusSuccess
	result.Detail[DetailOutputFile] = filepath.Base(out.OutputPath)
	result.Detail[DetailOutputPath] = out.OutputPath
	result.Detail[DetailSync] = out.Sync.Report()
	if len(out.Warnings) > 0 {
		result.Detail[DetailSyncWarnings] = out.Warnings
	}
	return result
}

func failed(result ItemResult, err error) ItemResult {
	result.Status = StatusFailed
	result.Detail[DetailError] = err.Error()
	return result
}

func (p *Pipeline) sourceProblem(ctx context.Context, result ItemResult, err error) ItemResult {
	if !errors.Is(err, errMissingSource) {
		return failed(result, err)
	}
	result.Status = StatusSkipped
	result.Detail[DetailReason] = ReasonMissingSources
	if cause := errors.Unwrap(err); cause != nil {
		result.Detail[DetailError] = err.Error()
	}
	logging.WithContext(ctx, p.logger).Info("bulk item skipped",
		logging.String("item", result.ItemLabel),
		logging.String("reason", ReasonMissingSources),
	)
	return result
}

// resolveSource prefers the best external file for lang that exists on disk
// and falls back to extracting an embedded stream into dir.
func (p *Pipeline) resolveSource(ctx context.Context, item catalog.Item, lang, dir, role string) (string, bool, error) {
	for _, ext := range item.ExternalCandidates(lang) {
		if fileExists(ext.Path) {
			return ext.Path, false, nil
		}
	}
	stream, ok := item.EmbeddedFor(lang)
	if !ok || p.extractor == nil || item.FilePath == "" {
		return "", false, errMissingSource
	}
	output := filepath.Join(dir, role+".srt")
	if err := p.extractor.Extract(ctx, item.FilePath, stream.Index, output, stream.Codec); err != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		return "", false, &sourceError{lang: lang, err: err}
	}
	return output, true, nil
}

// sourceError is a missing source caused by a failed extraction.
type sourceError struct {
	lang string
	err  error
}

func (e *sourceError) Error() string {
	return fmt.Sprintf("extract %s subtitle: %v", e.lang, e.err)
}

func (e *sourceError) Is(target error) bool { return target == errMissingSource }

func (e *sourceError) Unwrap() error { return e.err }
