package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dualsub/internal/aligner"
	"dualsub/internal/alignment"
	"dualsub/internal/cues"
	"dualsub/internal/logging"
)

// Strategy labels describe which path SyncPair took.
const (
	StrategyHybrid             = "hybrid-primary-to-video-secondary-to-primary"
	StrategyFallbackPrimary    = "fallback-primary-failed"
	StrategySubtitleToSubtitle = "subtitle-to-subtitle"
	StrategyDisabled           = "disabled"
)

// Aligner is the external alignment capability.
type Aligner interface {
	Available(ctx context.Context) bool
	Align(ctx context.Context, req aligner.Request) aligner.Result
}

// TrackRequest synchronizes a single subtitle track.
type TrackRequest struct {
	// Target is the subtitle file to synchronize.
	Target string
	// Reference is an optional subtitle file with authoritative timing.
	Reference string
	// Video is an optional video file. When present it is the external
	// aligner's reference.
	Video string
	Bulk  bool
}

// TrackResult carries the outcome and the synced cues of one track.
type TrackResult struct {
	Outcome Outcome
	Cues    cues.List
}

// PairRequest synchronizes a primary/secondary pair.
type PairRequest struct {
	Primary   string
	Secondary string
	Video     string
	Bulk      bool
	// SkipSync copies both tracks as if the engine were disabled.
	SkipSync bool
}

// PairResult carries both outcomes and both synced lists.
type PairResult struct {
	Attempted       bool
	Strategy        string
	Primary         Outcome
	Secondary       Outcome
	PrimaryCues     cues.List
	SecondaryCues   cues.List
	FineTuneShiftMS int64
}

// Report renders the result for job item details.
func (r PairResult) Report() map[string]any {
	return map[string]any{
		"attempted":          r.Attempted,
		"strategy":           r.Strategy,
		"primary":            r.Primary,
		"secondary":          r.Secondary,
		"fine_tune_shift_ms": r.FineTuneShiftMS,
	}
}

// Engine runs the synchronization tiers.
type Engine struct {
	aligner   Aligner
	enabled   bool
	tempDir   string
	threshold int64
	logger    *slog.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithEnabled toggles synchronization. A disabled engine copies both tracks.
func WithEnabled(enabled bool) Option {
	return func(e *Engine) { e.enabled = enabled }
}

// WithTempDir sets the parent directory for per-call scratch files.
func WithTempDir(dir string) Option {
	return func(e *Engine) { e.tempDir = strings.TrimSpace(dir) }
}

// WithFineTuneThreshold overrides the first-cue drift tolerance.
func WithFineTuneThreshold(ms int64) Option {
	return func(e *Engine) {
		if ms >= 0 {
			e.threshold = ms
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logging.NewComponentLogger(logger, "syncengine") }
}

// New constructs an Engine. A nil aligner disables the external tier.
func New(a Aligner, opts ...Option) *Engine {
	e := &Engine{
		aligner:   a,
		enabled:   true,
		threshold: alignment.FineTuneThresholdMS,
		logger:    logging.NewComponentLogger(nil, "syncengine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enabled reports whether synchronization runs at all.
func (e *Engine) Enabled() bool { return e.enabled }

func (e *Engine) externalAvailable(ctx context.Context) bool {
	return e.aligner != nil && e.aligner.Available(ctx)
}

// SyncTrack synchronizes one track: external aligner, then estimator, then copy.
func (e *Engine) SyncTrack(ctx context.Context, req TrackRequest) (TrackResult, error) {
	target, err := readTrack(req.Target)
	if err != nil {
		return TrackResult{}, err
	}
	var reference cues.List
	if req.Reference != "" {
		if reference, err = readTrack(req.Reference); err != nil {
			return TrackResult{}, err
		}
	}
	if !e.enabled {
		return TrackResult{Outcome: copyOutcome(""), Cues: target}, nil
	}

	work, cleanup, err := e.workDir()
	if err != nil {
		return TrackResult{}, err
	}
	defer cleanup()

	externalRef := req.Video
	if externalRef == "" {
		externalRef = req.Reference
	}
	var failures []string
	if externalRef != "" && e.externalAvailable(ctx) {
		list, offset, failure, err := e.runExternal(ctx, externalRef, req.Target, filepath.Join(work, "target.synced.srt"), req.Bulk)
		if err != nil {
			return TrackResult{}, err
		}
		if failure == "" {
			return TrackResult{Outcome: externalOutcome(MethodExternal, offset), Cues: list}, nil
		}
		failures = append(failures, failure)
	} else if externalRef != "" {
		failures = append(failures, "external aligner unavailable")
	}
	if outcome, list, ok := e.runEstimator(ctx, reference, target); ok {
		return TrackResult{Outcome: outcome, Cues: list}, nil
	}
	if reference == nil && externalRef == "" {
		failures = append(failures, "no reference available")
	}
	return TrackResult{Outcome: e.fallbackCopy(ctx, req.Target, failures), Cues: target}, nil
}

// SyncPair synchronizes a primary/secondary pair for composition.
func (e *Engine) SyncPair(ctx context.Context, req PairRequest) (PairResult, error) {
	primary, err := readTrack(req.Primary)
	if err != nil {
		return PairResult{}, err
	}
	secondary, err := readTrack(req.Secondary)
	if err != nil {
		return PairResult{}, err
	}
	if !e.enabled || req.SkipSync {
		return PairResult{
			Strategy:      StrategyDisabled,
			Primary:       copyOutcome(""),
			Secondary:     copyOutcome(""),
			PrimaryCues:   primary,
			SecondaryCues: secondary,
		}, nil
	}

	work, cleanup, err := e.workDir()
	if err != nil {
		return PairResult{}, err
	}
	defer cleanup()

	if req.Video == "" {
		return e.pairWithoutVideo(ctx, req, primary, secondary, work)
	}
	return e.pairWithVideo(ctx, req, primary, secondary, work)
}

func (e *Engine) pairWithoutVideo(ctx context.Context, req PairRequest, primary, secondary cues.List, work string) (PairResult, error) {
	result := PairResult{
		Attempted:   true,
		Strategy:    StrategySubtitleToSubtitle,
		Primary:     referenceOutcome(),
		PrimaryCues: primary,
	}
	outcome, list, err := e.secondaryChain(ctx, req, "", req.Primary, primary, secondary, work, nil)
	if err != nil {
		return PairResult{}, err
	}
	result.Secondary, result.SecondaryCues = outcome, list
	return result, nil
}

func (e *Engine) pairWithVideo(ctx context.Context, req PairRequest, primary, secondary cues.List, work string) (PairResult, error) {
	result := PairResult{Attempted: true}
	available := e.externalAvailable(ctx)

	var stageAFailure string
	if available {
		syncedPath := filepath.Join(work, "primary.synced.srt")
		list, offset, failure, err := e.runExternal(ctx, req.Video, req.Primary, syncedPath, req.Bulk)
		if err != nil {
			return PairResult{}, err
		}
		if failure == "" {
			result.Strategy = StrategyHybrid
			result.Primary = externalOutcome(MethodExternal, offset)
			result.PrimaryCues = list
			return e.relaySecondary(ctx, req, result, syncedPath, secondary, work)
		}
		stageAFailure = failure
	} else {
		stageAFailure = "external aligner unavailable"
	}

	result.Strategy = StrategyFallbackPrimary
	result.Primary = e.fallbackCopy(ctx, req.Primary, []string{stageAFailure})
	result.PrimaryCues = primary
	outcome, list, err := e.secondaryChain(ctx, req, req.Video, "", primary, secondary, work, nil)
	if err != nil {
		return PairResult{}, err
	}
	result.Secondary, result.SecondaryCues = outcome, list
	return result, nil
}

// relaySecondary is stage B of the hybrid relay.
func (e *Engine) relaySecondary(ctx context.Context, req PairRequest, result PairResult, syncedPrimaryPath string, secondary cues.List, work string) (PairResult, error) {
	list, offset, failure, err := e.runExternal(ctx, syncedPrimaryPath, req.Secondary, filepath.Join(work, "secondary.relay.srt"), req.Bulk)
	if err != nil {
		return PairResult{}, err
	}
	if failure == "" {
		tuned, shift := alignment.FineTune(result.PrimaryCues, list, e.threshold)
		if shift != 0 {
			e.logger.Debug("fine-tuned secondary track",
				logging.Int64("shift_ms", shift),
				logging.String("secondary", filepath.Base(req.Secondary)),
			)
		}
		result.Secondary = externalOutcome(MethodHybridRelay, offset)
		result.SecondaryCues = tuned
		result.FineTuneShiftMS = shift
		return result, nil
	}

	logging.WarnWithContext(logging.WithContext(ctx, e.logger), "relay alignment failed; retrying secondary against video", "sync_fallback",
		logging.String("secondary", filepath.Base(req.Secondary)),
		logging.String("reason", failure),
		logging.String(logging.FieldImpact, "secondary timing may be less precise"),
		logging.String(logging.FieldErrorHint, "check the secondary subtitle matches the same cut of the video"),
	)
	outcome, synced, err := e.secondaryChain(ctx, req, req.Video, "", result.PrimaryCues, secondary, work, []string{failure})
	if err != nil {
		return PairResult{}, err
	}
	result.Secondary, result.SecondaryCues = outcome, synced
	return result, nil
}

// secondaryChain runs external (against video or primaryPath), then the
// estimator against primaryCues, then copy.
func (e *Engine) secondaryChain(ctx context.Context, req PairRequest, video, primaryPath string, primaryCues, secondary cues.List, work string, failures []string) (Outcome, cues.List, error) {
	ref := video
	if ref == "" {
		ref = primaryPath
	}
	if ref != "" && e.externalAvailable(ctx) {
		list, offset, failure, err := e.runExternal(ctx, ref, req.Secondary, filepath.Join(work, "secondary.synced.srt"), req.Bulk)
		if err != nil {
			return Outcome{}, nil, err
		}
		if failure == "" {
			return externalOutcome(MethodExternal, offset), list, nil
		}
		failures = append(failures, failure)
	} else if ref != "" && len(failures) == 0 {
		failures = append(failures, "external aligner unavailable")
	}
	if outcome, list, ok := e.runEstimator(ctx, primaryCues, secondary); ok {
		return outcome, list, nil
	}
	return e.fallbackCopy(ctx, req.Secondary, failures), secondary, nil
}

// runExternal returns a non-empty failure string for expected tool failures.
// err is only set for cancellation or an unreadable aligned output.
func (e *Engine) runExternal(ctx context.Context, reference, target, output string, bulk bool) (cues.List, *int64, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, "", err
	}
	res := e.aligner.Align(ctx, aligner.Request{Reference: reference, Target: target, Output: output, Bulk: bulk})
	if err := ctx.Err(); err != nil {
		return nil, nil, "", err
	}
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "external aligner failed"
		}
		return nil, nil, msg, nil
	}
	list, err := cues.ReadFile(output)
	if errors.Is(err, cues.ErrEmpty) {
		return nil, nil, "aligned output contains no cues", nil
	}
	if err != nil {
		return nil, nil, fmt.Sprintf("read aligned output: %v", err), nil
	}
	return list, res.OffsetMS, "", nil
}

func (e *Engine) runEstimator(ctx context.Context, reference, target cues.List) (Outcome, cues.List, bool) {
	est := alignment.EstimateOffset(reference, target)
	if !est.Usable() {
		return Outcome{}, nil, false
	}
	note := string(est.Strategy)
	if est.HighVariance {
		note += "; high variance"
		logging.WarnWithContext(logging.WithContext(ctx, e.logger), "offset estimate has high variance", "sync_estimator_variance",
			logging.Int64("offset_ms", est.OffsetMS),
			logging.Float64("variance", est.Variance),
			logging.String(logging.FieldImpact, "tracks may drift apart over the episode"),
			logging.String(logging.FieldErrorHint, "the two subtitle files may come from different releases"),
		)
	}
	return estimatorOutcome(est.OffsetMS, note), alignment.Apply(target, est.OffsetMS), true
}

func (e *Engine) fallbackCopy(ctx context.Context, path string, failures []string) Outcome {
	reason := strings.Join(failures, "; ")
	if reason != "" {
		logging.WarnWithContext(logging.WithContext(ctx, e.logger), "subtitle synchronization fell back to copy", "sync_fallback",
			logging.String("track", filepath.Base(path)),
			logging.String("reason", reason),
			logging.String(logging.FieldImpact, "track keeps its original timing"),
			logging.String(logging.FieldErrorHint, "verify ffsubsync is installed and the subtitle matches the video"),
		)
	}
	return copyOutcome(reason)
}

func (e *Engine) workDir() (string, func(), error) {
	dir, err := os.MkdirTemp(e.tempDir, "dualsub-sync-*")
	if err != nil {
		return "", func() {}, fmt.Errorf("create sync work dir: %w", err)
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

func readTrack(path string) (cues.List, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("read subtitle track: empty path")
	}
	list, err := cues.ReadFile(path)
	if errors.Is(err, cues.ErrEmpty) {
		// An empty track still syncs; the estimator just has nothing to use.
		return cues.List{}, nil
	}
	return list, err
}
