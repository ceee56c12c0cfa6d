// Package ffmpeg extracts embedded subtitle streams into SRT files.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single extraction.
const DefaultTimeout = 5 * time.Minute

// ErrImageSubtitle marks bitmap subtitle codecs that cannot become text.
var ErrImageSubtitle = errors.New("image-based subtitle stream cannot be converted to srt")

var imageCodecs = map[string]struct{}{
	"hdmv_pgs_subtitle": {},
	"pgssub":            {},
	"dvd_subtitle":      {},
	"dvdsub":            {},
	"dvb_subtitle":      {},
	"xsub":              {},
}

// Runner executes ffmpeg and returns its combined output.
type Runner func(ctx context.Context, binary string, args ...string) ([]byte, error)

// Extractor runs ffmpeg subtitle extractions.
type Extractor struct {
	binary  string
	timeout time.Duration
	run     Runner
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithRunner injects a custom runner (primarily for tests).
func WithRunner(r Runner) Option {
	return func(e *Extractor) {
		if r != nil {
			e.run = r
		}
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// New constructs an Extractor for the given ffmpeg binary.
func New(binary string, opts ...Option) *Extractor {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	e := &Extractor{binary: binary, timeout: DefaultTimeout, run: combinedOutput}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func combinedOutput(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

// Args builds the ffmpeg argument list for one extraction.
func Args(video string, streamIndex int, output string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-v", "error",
		"-i", video,
		"-map", fmt.Sprintf("0:%d", streamIndex),
		"-f", "srt",
		output,
	}
}

// Extract writes stream streamIndex of video to output as SRT. codec is the
// stream's codec name when known; bitmap codecs are rejected before ffmpeg
// runs. A zero-byte result is reported as an error and removed.
func (e *Extractor) Extract(ctx context.Context, video string, streamIndex int, output string, codec string) error {
	if streamIndex < 0 {
		return fmt.Errorf("ffmpeg extract: invalid subtitle stream index %d", streamIndex)
	}
	if _, ok := imageCodecs[strings.ToLower(strings.TrimSpace(codec))]; ok {
		return fmt.Errorf("ffmpeg extract stream %d (%s): %w", streamIndex, codec, ErrImageSubtitle)
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if out, err := e.run(runCtx, e.binary, Args(video, streamIndex, output)...); err != nil {
		_ = os.Remove(output)
		if runCtx.Err() != nil && ctx.Err() == nil {
			return fmt.Errorf("ffmpeg extract stream %d: timed out after %s", streamIndex, e.timeout)
		}
		return fmt.Errorf("ffmpeg extract stream %d: %w: %s", streamIndex, err, strings.TrimSpace(string(out)))
	}

	info, err := os.Stat(output)
	if err != nil {
		return fmt.Errorf("ffmpeg extract stream %d: %w", streamIndex, err)
	}
	if info.Size() == 0 {
		_ = os.Remove(output)
		return fmt.Errorf("ffmpeg extract stream %d: empty output", streamIndex)
	}
	return nil
}
