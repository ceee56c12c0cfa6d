package bulk

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"dualsub/internal/catalog"
	"dualsub/internal/language"
	"dualsub/internal/logging"
	"dualsub/internal/media/ffprobe"
	"dualsub/internal/syncengine"
)

// Syncer synchronizes a primary/secondary pair.
type Syncer interface {
	SyncPair(ctx context.Context, req syncengine.PairRequest) (syncengine.PairResult, error)
}

// Extractor writes one embedded subtitle stream to an SRT file.
type Extractor interface {
	Extract(ctx context.Context, video string, streamIndex int, output string, codec string) error
}

// DurationProbe returns a video's duration in milliseconds.
type DurationProbe func(ctx context.Context, video string) (int64, error)

// FFprobeDuration returns a DurationProbe backed by ffprobe.
func FFprobeDuration(binary string) DurationProbe {
	return func(ctx context.Context, video string) (int64, error) {
		result, err := ffprobe.Inspect(ctx, binary, video)
		if err != nil {
			return 0, err
		}
		return result.DurationMS(), nil
	}
}

// Options toggles per-request behavior.
type Options struct {
	LanguagePrefix    bool `json:"language_prefix" yaml:"language_prefix"`
	SyncEnabled       bool `json:"sync_enabled" yaml:"sync_enabled"`
	LanguageDetection bool `json:"language_detection" yaml:"language_detection"`
}

// DefaultOptions enables every feature.
func DefaultOptions() Options {
	return Options{LanguagePrefix: true, SyncEnabled: true, LanguageDetection: true}
}

// Request describes one bulk run.
type Request struct {
	ShowID            string
	ShowTitle         string
	PrimaryLanguage   string
	SecondaryLanguage string
	Token             string
	Options           Options
}

// Pipeline runs bulk dual subtitle batches.
type Pipeline struct {
	catalog       catalog.Catalog
	syncer        Syncer
	extractor     Extractor
	detector      *language.Detector
	probe         DurationProbe
	tempDir       string
	tokenOptional bool
	now           func() time.Time
	logger        *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithExtractor enables embedded stream extraction.
func WithExtractor(e Extractor) Option {
	return func(p *Pipeline) { p.extractor = e }
}

// WithDetector enables language detection reports.
func WithDetector(d *language.Detector) Option {
	return func(p *Pipeline) { p.detector = d }
}

// WithDurationProbe enables sync validation against the video duration.
func WithDurationProbe(probe DurationProbe) Option {
	return func(p *Pipeline) { p.probe = probe }
}

// WithTempDir sets the parent of per-run scratch directories.
func WithTempDir(dir string) Option {
	return func(p *Pipeline) { p.tempDir = strings.TrimSpace(dir) }
}

// WithTokenOptional accepts requests without a catalog token, for catalogs
// that do not authenticate.
func WithTokenOptional() Option {
	return func(p *Pipeline) { p.tokenOptional = true }
}

// WithClock overrides the clock used for time estimates.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logging.NewComponentLogger(logger, "bulk") }
}

// New constructs a Pipeline.
func New(cat catalog.Catalog, syncer Syncer, opts ...Option) *Pipeline {
	p := &Pipeline{
		catalog: cat,
		syncer:  syncer,
		now:     time.Now,
		logger:  logging.NewComponentLogger(nil, "bulk"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}
