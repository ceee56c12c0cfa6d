package bulk

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dualsub/internal/compose"
	"dualsub/internal/language"
	"dualsub/internal/logging"
	"dualsub/internal/services"
	"dualsub/internal/syncengine"
)

const previewCues = 5

// PairInput names one explicit pair of subtitle files.
type PairInput struct {
	PrimaryPath       string
	SecondaryPath     string
	VideoPath         string
	OutputPath        string
	PrimaryLanguage   string
	SecondaryLanguage string
	Options           Options
	Bulk              bool
}

// PairOutput describes a written dual subtitle.
type PairOutput struct {
	OutputPath string
	CueCount   int
	Sync       syncengine.PairResult
	Warnings   []string
	Detection  map[string]any
	Preview    []string
}

// Map renders the output as a job result.
func (o PairOutput) Map() map[string]any {
	out := map[string]any{
		DetailOutputFile: filepath.Base(o.OutputPath),
		DetailOutputPath: o.OutputPath,
		"cue_count":      o.CueCount,
		DetailSync:       o.Sync.Report(),
		"preview":        append([]string(nil), o.Preview...),
	}
	if len(o.Warnings) > 0 {
		out[DetailSyncWarnings] = append([]string(nil), o.Warnings...)
	}
	if o.Detection != nil {
		out[DetailLanguageDetection] = o.Detection
	}
	return out
}

// OutputPath returns "{dir}/{base}.dual.{primary}-{secondary}.srt" for a
// video or subtitle path.
func OutputPath(mediaPath, primaryLang, secondaryLang string) string {
	dir := filepath.Dir(mediaPath)
	base := strings.TrimSuffix(filepath.Base(mediaPath), filepath.Ext(mediaPath))
	return filepath.Join(dir, fmt.Sprintf("%s.dual.%s-%s.srt", base, codeOrRaw(primaryLang), codeOrRaw(secondaryLang)))
}

func codeOrRaw(lang string) string {
	if code := language.Normalize(lang); code != "" {
		return code
	}
	return strings.TrimSpace(lang)
}

// ProcessPair synchronizes, composes and writes one dual subtitle.
func (p *Pipeline) ProcessPair(ctx context.Context, in PairInput) (PairOutput, error) {
	if strings.TrimSpace(in.PrimaryPath) == "" || strings.TrimSpace(in.SecondaryPath) == "" {
		return PairOutput{}, services.Wrap(services.ErrValidation, "bulk", "process pair", "primary and secondary subtitle paths are required", nil)
	}
	if p.syncer == nil {
		return PairOutput{}, services.Wrap(services.ErrConfiguration, "bulk", "process pair", "sync engine unavailable", nil)
	}
	logger := logging.WithContext(ctx, p.logger)

	output := in.OutputPath
	if output == "" {
		source := in.VideoPath
		if source == "" {
			source = in.PrimaryPath
		}
		output = OutputPath(source, in.PrimaryLanguage, in.SecondaryLanguage)
	}

	var result PairOutput
	if in.Options.LanguageDetection && p.detector != nil {
		result.Detection = map[string]any{
			"primary":   p.detector.DetectFile(in.PrimaryPath, in.PrimaryLanguage),
			"secondary": p.detector.DetectFile(in.SecondaryPath, in.SecondaryLanguage),
		}
	}

	video := in.VideoPath
	if video != "" && !fileExists(video) {
		logger.Debug("video not found, syncing subtitles against each other", logging.String("video", video))
		video = ""
	}

	pair, err := p.syncer.SyncPair(ctx, syncengine.PairRequest{
		Primary:   in.PrimaryPath,
		Secondary: in.SecondaryPath,
		Video:     video,
		Bulk:      in.Bulk,
		SkipSync:  !in.Options.SyncEnabled,
	})
	if err != nil {
		return PairOutput{}, err
	}
	result.Sync = pair

	if video != "" && p.probe != nil {
		result.Warnings = p.validate(ctx, video, pair)
	}

	primaryPrefix, secondaryPrefix := compose.Prefixes(in.PrimaryLanguage, in.SecondaryLanguage, in.Options.LanguagePrefix)
	merged := compose.Compose(pair.PrimaryCues, pair.SecondaryCues, compose.Options{
		PrimaryPrefix:   primaryPrefix,
		SecondaryPrefix: secondaryPrefix,
	})
	if len(merged) == 0 {
		return PairOutput{}, fmt.Errorf("compose dual subtitle: no cues in either track")
	}
	if err := compose.WriteFile(output, merged); err != nil {
		return PairOutput{}, fmt.Errorf("write dual subtitle: %w", err)
	}

	result.OutputPath = output
	result.CueCount = len(merged)
	result.Preview = compose.Preview(merged, previewCues)
	logger.Info("dual subtitle written",
		logging.String("output", output),
		logging.Int("cues", len(merged)),
		logging.String("strategy", pair.Strategy),
		logging.String("primary_method", string(pair.Primary.Method)),
		logging.String("secondary_method", string(pair.Secondary.Method)),
	)
	return result, nil
}

func (p *Pipeline) validate(ctx context.Context, video string, pair syncengine.PairResult) []string {
	durationMS, err := p.probe(ctx, video)
	if err != nil || durationMS <= 0 {
		p.logger.Debug("video duration unavailable", logging.String("video", video), logging.Error(err))
		return nil
	}
	var warnings []string
	for _, w := range syncengine.ValidateDuration(pair.PrimaryCues, durationMS) {
		warnings = append(warnings, "primary: "+w)
	}
	for _, w := range syncengine.ValidateDuration(pair.SecondaryCues, durationMS) {
		warnings = append(warnings, "secondary: "+w)
	}
	return warnings
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
