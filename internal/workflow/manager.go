package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"dualsub/internal/bulk"
	"dualsub/internal/cues"
	"dualsub/internal/jobs"
	"dualsub/internal/language"
	"dualsub/internal/logging"
	"dualsub/internal/services"
)

// Progress steps of the single-item job types.
const (
	StepSynchronizing = "Synchronizing subtitles"
	StepExtracting    = "Extracting subtitle"
)

// Defaults fill fields a request leaves blank.
type Defaults struct {
	PrimaryLanguage   string
	SecondaryLanguage string
	Token             string
	Options           bulk.Options
}

// Manager submits typed requests as orchestrated jobs.
type Manager struct {
	orch      *jobs.Orchestrator
	pipeline  *bulk.Pipeline
	extractor bulk.Extractor
	detector  *language.Detector
	defaults  Defaults
	logger    *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithExtractor enables extraction jobs.
func WithExtractor(e bulk.Extractor) ManagerOption {
	return func(m *Manager) { m.extractor = e }
}

// WithDetector adds language detection to extraction results.
func WithDetector(d *language.Detector) ManagerOption {
	return func(m *Manager) { m.detector = d }
}

// WithDefaults sets request defaults.
func WithDefaults(d Defaults) ManagerOption {
	return func(m *Manager) { m.defaults = d }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logging.NewComponentLogger(logger, "workflow") }
}

// NewManager constructs a Manager.
func NewManager(orch *jobs.Orchestrator, pipeline *bulk.Pipeline, opts ...ManagerOption) *Manager {
	m := &Manager{
		orch:     orch,
		pipeline: pipeline,
		defaults: Defaults{Options: bulk.DefaultOptions()},
		logger:   logging.NewComponentLogger(nil, "workflow"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Orchestrator exposes the underlying job registry.
func (m *Manager) Orchestrator() *jobs.Orchestrator { return m.orch }

// Submit validates req, creates its job and schedules the work. The job
// outlives ctx; only ctx's values are carried into the work.
func (m *Manager) Submit(ctx context.Context, req Request) (jobs.Job, error) {
	if err := req.Validate(); err != nil {
		return jobs.Job{}, err
	}
	var (
		id   string
		work jobs.Work
		err  error
	)
	switch req.Type {
	case jobs.TypeBulkDualSubtitle:
		id, work, err = m.prepareBulk(*req.Bulk)
	case jobs.TypeSingleSubtitleSync:
		id, work, err = m.prepareSync(*req.Sync)
	case jobs.TypeSubtitleExtraction:
		id, work, err = m.prepareExtraction(*req.Extraction)
	}
	if err != nil {
		return jobs.Job{}, err
	}
	if err := m.orch.Submit(context.WithoutCancel(ctx), id, work); err != nil {
		m.orch.FailJob(id, err.Error())
		return jobs.Job{}, err
	}
	job, _ := m.orch.GetJob(id)
	logging.WithContext(ctx, m.logger).Info("job submitted",
		logging.String(logging.FieldJobID, id),
		logging.String("job_type", string(req.Type)),
		logging.String("title", job.Title),
	)
	return job, nil
}

func (m *Manager) options(o *bulk.Options) bulk.Options {
	if o == nil {
		return m.defaults.Options
	}
	return *o
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func (m *Manager) prepareBulk(req BulkRequest) (string, jobs.Work, error) {
	if m.pipeline == nil {
		return "", nil, services.Wrap(services.ErrConfiguration, "workflow", "bulk", "bulk pipeline unavailable", nil)
	}
	run := bulk.Request{
		ShowID:            strings.TrimSpace(req.ShowID),
		ShowTitle:         strings.TrimSpace(req.ShowTitle),
		PrimaryLanguage:   firstNonBlank(req.PrimaryLanguage, m.defaults.PrimaryLanguage),
		SecondaryLanguage: firstNonBlank(req.SecondaryLanguage, m.defaults.SecondaryLanguage),
		Token:             firstNonBlank(req.Token, m.defaults.Token),
		Options:           m.options(req.Options),
	}
	name := firstNonBlank(run.ShowTitle, "show "+run.ShowID)
	id := m.orch.CreateJob(jobs.TypeBulkDualSubtitle,
		"Dual subtitles: "+name,
		fmt.Sprintf("%s + %s for every eligible episode", language.DisplayName(run.PrimaryLanguage), language.DisplayName(run.SecondaryLanguage)),
		map[string]any{
			"show_id":            run.ShowID,
			"show_title":         run.ShowTitle,
			"primary_language":   run.PrimaryLanguage,
			"secondary_language": run.SecondaryLanguage,
			"options":            optionsMap(run.Options),
		})

	work := func(ctx context.Context, r jobs.Reporter) (map[string]any, error) {
		batch, err := m.pipeline.Run(ctx, run, r)
		result := batch.Map()
		result["show_id"] = run.ShowID
		result["show_title"] = run.ShowTitle
		result["primary_language"] = run.PrimaryLanguage
		result["secondary_language"] = run.SecondaryLanguage
		return result, err
	}
	return id, work, nil
}

func (m *Manager) prepareSync(req SyncRequest) (string, jobs.Work, error) {
	if m.pipeline == nil {
		return "", nil, services.Wrap(services.ErrConfiguration, "workflow", "sync", "sync pipeline unavailable", nil)
	}
	in := bulk.PairInput{
		PrimaryPath:       strings.TrimSpace(req.PrimaryPath),
		SecondaryPath:     strings.TrimSpace(req.SecondaryPath),
		VideoPath:         strings.TrimSpace(req.VideoPath),
		OutputPath:        strings.TrimSpace(req.OutputPath),
		PrimaryLanguage:   firstNonBlank(req.PrimaryLanguage, m.defaults.PrimaryLanguage),
		SecondaryLanguage: firstNonBlank(req.SecondaryLanguage, m.defaults.SecondaryLanguage),
		Options:           m.options(req.Options),
	}
	id := m.orch.CreateJob(jobs.TypeSingleSubtitleSync,
		"Dual subtitle: "+filepath.Base(in.PrimaryPath),
		fmt.Sprintf("%s + %s", filepath.Base(in.PrimaryPath), filepath.Base(in.SecondaryPath)),
		map[string]any{
			"primary_path":       in.PrimaryPath,
			"secondary_path":     in.SecondaryPath,
			"video_path":         in.VideoPath,
			"primary_language":   in.PrimaryLanguage,
			"secondary_language": in.SecondaryLanguage,
			"options":            optionsMap(in.Options),
		})

	work := func(ctx context.Context, r jobs.Reporter) (map[string]any, error) {
		r.Update(jobs.ProgressUpdate{
			CurrentStep: jobs.Ptr(StepSynchronizing),
			CurrentItem: jobs.Ptr(filepath.Base(in.PrimaryPath)),
			Total:       jobs.Ptr(1),
		})
		out, err := m.pipeline.ProcessPair(ctx, in)
		if err != nil {
			return nil, err
		}
		r.Update(jobs.ProgressUpdate{CurrentStep: jobs.Ptr(bulk.StepCompleted), Processed: jobs.Ptr(1)})
		return out.Map(), nil
	}
	return id, work, nil
}

func (m *Manager) prepareExtraction(req ExtractionRequest) (string, jobs.Work, error) {
	if m.extractor == nil {
		return "", nil, services.Wrap(services.ErrConfiguration, "workflow", "extraction", "subtitle extractor unavailable", nil)
	}
	video := strings.TrimSpace(req.VideoPath)
	output := strings.TrimSpace(req.OutputPath)
	if output == "" {
		output = ExtractionOutputPath(video, req.Language, req.StreamIndex)
	}
	id := m.orch.CreateJob(jobs.TypeSubtitleExtraction,
		fmt.Sprintf("Extract stream %d: %s", req.StreamIndex, filepath.Base(video)),
		"",
		map[string]any{
			"video_path":   video,
			"stream_index": req.StreamIndex,
			"codec":        req.Codec,
			"language":     req.Language,
			"output_path":  output,
		})

	work := func(ctx context.Context, r jobs.Reporter) (map[string]any, error) {
		r.Update(jobs.ProgressUpdate{
			CurrentStep: jobs.Ptr(StepExtracting),
			CurrentItem: jobs.Ptr(filepath.Base(video)),
			Total:       jobs.Ptr(1),
		})
		if _, err := os.Stat(video); err != nil {
			return nil, services.Wrap(services.ErrNotFound, "workflow", "extraction", "video not found", err)
		}
		if err := m.extractor.Extract(ctx, video, req.StreamIndex, output, req.Codec); err != nil {
			return nil, services.Wrap(services.ErrExternalTool, "workflow", "extraction", "ffmpeg extraction failed", err)
		}
		list, err := cues.ReadFile(output)
		if err != nil && !errors.Is(err, cues.ErrEmpty) {
			return nil, err
		}
		result := map[string]any{
			"output_path":  output,
			"output_file":  filepath.Base(output),
			"stream_index": req.StreamIndex,
			"cue_count":    len(list),
		}
		if m.detector != nil {
			result["language_detection"] = m.detector.DetectText(language.Sample(list))
		}
		r.Update(jobs.ProgressUpdate{CurrentStep: jobs.Ptr(bulk.StepCompleted), Processed: jobs.Ptr(1)})
		return result, nil
	}
	return id, work, nil
}

// ExtractionOutputPath names an extracted stream "{base}.{lang}.srt", or
// "{base}.track{index}.srt" when the language is unknown.
func ExtractionOutputPath(video, lang string, index int) string {
	base := strings.TrimSuffix(filepath.Base(video), filepath.Ext(video))
	tag := language.Normalize(lang)
	if tag == "" {
		tag = "track" + strconv.Itoa(index)
	}
	return filepath.Join(filepath.Dir(video), base+"."+tag+".srt")
}

func optionsMap(o bulk.Options) map[string]any {
	return map[string]any{
		"language_prefix":    o.LanguagePrefix,
		"sync_enabled":       o.SyncEnabled,
		"language_detection": o.LanguageDetection,
	}
}
