package aligner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"dualsub/internal/logging"
)

const (
	defaultBinary         = "ffsubsync"
	defaultTimeout        = 120 * time.Second
	defaultBulkTimeout    = 90 * time.Second
	defaultProbeTimeout   = 10 * time.Second
	defaultMaxOffset      = 60
	bulkMaxSubtitleSecond = "180"
	bulkVAD               = "webrtc"
	maxErrorDetail        = 512
)

var offsetPattern = regexp.MustCompile(`(?i)offset:\s*([-\d.]+)\s*seconds`)

// Output is what a finished command produced.
type Output struct {
	Stdout []byte
	Stderr []byte
}

// CommandRunner executes name with args and blocks until it exits or ctx is
// done. Implementations must kill the process when ctx is cancelled.
type CommandRunner func(ctx context.Context, name string, args ...string) (Output, error)

// Request describes one alignment run.
type Request struct {
	// Reference is a video or subtitle file whose timing is authoritative.
	Reference string
	// Target is the subtitle file to shift.
	Target string
	// Output receives the aligned subtitle.
	Output string
	// MaxOffsetSeconds overrides the configured search window when positive.
	MaxOffsetSeconds int
	// Timeout overrides the configured budget when positive. Bulk requests
	// are still capped at the bulk budget.
	Timeout time.Duration
	// Bulk requests the faster settings and the shorter timeout budget.
	Bulk bool
}

// Result reports the outcome of one alignment run.
type Result struct {
	Success  bool
	OffsetMS *int64
	Error    string
	TimedOut bool
	Elapsed  time.Duration
}

// Aligner runs ffsubsync.
type Aligner struct {
	binary       string
	maxOffset    int
	timeout      time.Duration
	bulkTimeout  time.Duration
	probeTimeout time.Duration
	run          CommandRunner
	logger       *slog.Logger

	mu        sync.Mutex
	probed    bool
	available bool
}

// Option customizes an Aligner.
type Option func(*Aligner)

// WithBinary overrides the ffsubsync executable.
func WithBinary(binary string) Option {
	return func(a *Aligner) {
		if b := strings.TrimSpace(binary); b != "" {
			a.binary = b
		}
	}
}

// WithTimeouts sets the regular and bulk alignment budgets.
func WithTimeouts(regular, bulk time.Duration) Option {
	return func(a *Aligner) {
		if regular > 0 {
			a.timeout = regular
		}
		if bulk > 0 {
			a.bulkTimeout = bulk
		}
	}
}

// WithProbeTimeout sets the availability probe budget.
func WithProbeTimeout(timeout time.Duration) Option {
	return func(a *Aligner) {
		if timeout > 0 {
			a.probeTimeout = timeout
		}
	}
}

// WithMaxOffset sets --max-offset-seconds.
func WithMaxOffset(seconds int) Option {
	return func(a *Aligner) {
		if seconds > 0 {
			a.maxOffset = seconds
		}
	}
}

// WithRunner injects a custom command runner (primarily for tests).
func WithRunner(r CommandRunner) Option {
	return func(a *Aligner) {
		if r != nil {
			a.run = r
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aligner) {
		a.logger = logging.NewComponentLogger(logger, "aligner")
	}
}

// New constructs an Aligner with defaults matching the sync config section.
func New(opts ...Option) *Aligner {
	a := &Aligner{
		binary:       defaultBinary,
		maxOffset:    defaultMaxOffset,
		timeout:      defaultTimeout,
		bulkTimeout:  defaultBulkTimeout,
		probeTimeout: defaultProbeTimeout,
		run:          runProcessGroup,
		logger:       logging.NewComponentLogger(nil, "aligner"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Available reports whether ffsubsync responds to --version. The answer is
// cached once a probe completes; a probe interrupted by ctx is retried on
// the next call.
func (a *Aligner) Available(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.probed {
		return a.available
	}

	probeCtx, cancel := context.WithTimeout(ctx, a.probeTimeout)
	defer cancel()
	_, err := a.run(probeCtx, a.binary, "--version")
	if err != nil && ctx.Err() != nil {
		return false
	}
	a.probed = true
	a.available = err == nil
	if err != nil {
		logging.WarnWithContext(a.logger, "ffsubsync unavailable", "aligner_probe",
			logging.String("binary", a.binary),
			logging.Error(err),
			logging.String(logging.FieldImpact, "synchronization falls back to the offset estimator"),
			logging.String(logging.FieldErrorHint, "install ffsubsync (pip install ffsubsync) or set sync.ffsubsync_binary"),
		)
	}
	return a.available
}

// Timeout returns the budget that applies to req.
func (a *Aligner) Timeout(req Request) time.Duration {
	timeout := a.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	if req.Bulk && a.bulkTimeout < timeout {
		return a.bulkTimeout
	}
	return timeout
}

// Args builds the ffsubsync argument list for req.
func (a *Aligner) Args(req Request) []string {
	maxOffset := a.maxOffset
	if req.MaxOffsetSeconds > 0 {
		maxOffset = req.MaxOffsetSeconds
	}
	args := []string{
		req.Reference,
		"-i", req.Target,
		"-o", req.Output,
		"--max-offset-seconds", strconv.Itoa(maxOffset),
		"--no-fix-framerate",
	}
	if req.Bulk {
		args = append(args, "--max-subtitle-seconds", bulkMaxSubtitleSecond, "--vad", bulkVAD)
	}
	return args
}

// Align runs ffsubsync for req. Success requires a zero exit status and a
// non-empty output file.
func (a *Aligner) Align(ctx context.Context, req Request) Result {
	started := time.Now()
	timeout := a.Timeout(req)

	if err := os.Remove(req.Output); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Result{Error: fmt.Sprintf("clear output: %v", err), Elapsed: time.Since(started)}
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, runErr := a.run(runCtx, a.binary, a.Args(req)...)
	result := Result{Elapsed: time.Since(started)}

	switch {
	case ctx.Err() != nil:
		result.Error = fmt.Sprintf("ffsubsync interrupted: %v", ctx.Err())
		return result
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		result.TimedOut = true
		result.Error = fmt.Sprintf("ffsubsync timed out after %d seconds", int(timeout.Seconds()))
		return result
	case runErr != nil:
		result.Error = "ffsubsync failed: " + errorDetail(out.Stderr, runErr)
		return result
	}

	info, err := os.Stat(req.Output)
	if err != nil || info.Size() == 0 {
		result.Error = "ffsubsync produced no output: " + errorDetail(out.Stderr, err)
		return result
	}

	result.Success = true
	result.OffsetMS = parseOffset(out.Stdout, out.Stderr)
	a.logger.Debug("ffsubsync aligned subtitle",
		logging.String("target", req.Target),
		logging.Bool("bulk", req.Bulk),
		logging.Duration("elapsed", result.Elapsed),
	)
	return result
}

func parseOffset(streams ...[]byte) *int64 {
	for _, stream := range streams {
		match := offsetPattern.FindSubmatch(stream)
		if match == nil {
			continue
		}
		seconds, err := strconv.ParseFloat(string(match[1]), 64)
		if err != nil {
			continue
		}
		ms := int64(seconds * 1000)
		return &ms
	}
	return nil
}

func errorDetail(stderr []byte, err error) string {
	detail := strings.TrimSpace(string(bytes.ToValidUTF8(stderr, nil)))
	if detail == "" {
		if err == nil {
			return "unknown ffsubsync error"
		}
		return err.Error()
	}
	if len(detail) > maxErrorDetail {
		detail = "..." + detail[len(detail)-maxErrorDetail:]
	}
	return detail
}

// LookPath reports whether the configured binary is on PATH.
func (a *Aligner) LookPath() error {
	if _, err := exec.LookPath(a.binary); err != nil {
		return fmt.Errorf("ffsubsync binary %q not found: %w", a.binary, err)
	}
	return nil
}
