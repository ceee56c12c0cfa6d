package catalog

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"dualsub/internal/language"
	"dualsub/internal/logging"
	"dualsub/internal/media/ffprobe"
)

// Prober lists the embedded subtitle streams of a video.
type Prober func(ctx context.Context, videoPath string) ([]EmbeddedStream, error)

// FFprobeProber returns a Prober backed by ffprobe.
func FFprobeProber(binary string) Prober {
	return func(ctx context.Context, videoPath string) ([]EmbeddedStream, error) {
		result, err := ffprobe.Inspect(ctx, binary, videoPath)
		if err != nil {
			return nil, err
		}
		return StreamsFromProbe(result), nil
	}
}

// StreamsFromProbe converts ffprobe subtitle streams into EmbeddedStreams.
func StreamsFromProbe(result ffprobe.Result) []EmbeddedStream {
	subs := result.SubtitleStreams()
	out := make([]EmbeddedStream, 0, len(subs))
	for _, s := range subs {
		code := language.ExtractFromTags(s.Tags)
		out = append(out, EmbeddedStream{
			Index:        s.Index,
			Language:     language.DisplayName(code),
			LanguageCode: code,
			Codec:        s.CodecName,
			Forced:       s.Forced(),
			Title:        s.Title(),
		})
	}
	return out
}

// Scanner discovers subtitle sources on disk.
type Scanner struct {
	probe  Prober
	logger *slog.Logger
}

// NewScanner constructs a Scanner. probe may be nil to skip embedded
// stream discovery.
func NewScanner(logger *slog.Logger, probe Prober) *Scanner {
	return &Scanner{probe: probe, logger: logging.NewComponentLogger(logger, "catalog-scanner")}
}

// ScanExternal lists SRT files beside videoPath whose name starts with the
// video's base name. Previously generated dual subtitles are ignored.
func (s *Scanner) ScanExternal(videoPath string) ([]ExternalSubtitle, error) {
	dir := filepath.Dir(videoPath)
	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var out []ExternalSubtitle
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.EqualFold(filepath.Ext(name), ".srt") || !strings.HasPrefix(name, base) {
			continue
		}
		if isDualOutput(strings.TrimPrefix(name, base)) {
			continue
		}
		tag := language.FromFilename(name, base)
		if tag.Language == "" {
			continue
		}
		out = append(out, ExternalSubtitle{
			Path:     filepath.Join(dir, name),
			Language: tag.Language,
			Forced:   tag.Forced,
			SDH:      tag.SDH,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func isDualOutput(suffix string) bool {
	for _, part := range strings.Split(strings.ToLower(suffix), ".") {
		if part == "dual" {
			return true
		}
	}
	return false
}

// Enrich fills External for items that have none and, when a prober is
// configured, Embedded for items that have none. Scan failures are logged
// and leave the item unchanged.
func (s *Scanner) Enrich(ctx context.Context, items []Item) []Item {
	out := make([]Item, len(items))
	for i, item := range items {
		out[i] = item
		if item.FilePath == "" {
			continue
		}
		if len(item.External) == 0 {
			external, err := s.ScanExternal(item.FilePath)
			if err != nil {
				logging.WarnWithContext(s.logger, "subtitle directory scan failed", "catalog_scan",
					logging.String("path", item.FilePath),
					logging.Error(err),
					logging.String(logging.FieldImpact, "external subtitles for this item are ignored"),
					logging.String(logging.FieldErrorHint, "check directory permissions"),
				)
			} else {
				out[i].External = external
			}
		}
		if len(item.Embedded) == 0 && s.probe != nil {
			if ctx.Err() != nil {
				return out
			}
			streams, err := s.probe(ctx, item.FilePath)
			if err != nil {
				s.logger.Debug("embedded stream probe failed", logging.String("path", item.FilePath), logging.Error(err))
				continue
			}
			out[i].Embedded = streams
		}
	}
	return out
}
