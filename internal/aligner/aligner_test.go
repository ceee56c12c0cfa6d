package aligner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// outputArg returns the value following -o.
func outputArg(args []string) string {
	for i, a := range args {
		if a == "-o" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func newRequest(t *testing.T) Request {
	t.Helper()
	dir := t.TempDir()
	return Request{
		Reference: filepath.Join(dir, "video.mkv"),
		Target:    filepath.Join(dir, "target.srt"),
		Output:    filepath.Join(dir, "out.srt"),
	}
}

func TestAlignSuccessParsesOffset(t *testing.T) {
	var gotArgs []string
	runner := func(_ context.Context, name string, args ...string) (Output, error) {
		gotArgs = args
		require.Equal(t, "ffsubsync", name)
		require.NoError(t, os.WriteFile(outputArg(args), []byte("1\n00:00:01,000 --> 00:00:02,000\nhi\n"), 0o644))
		return Output{Stdout: []byte("INFO: offset: -1.250 seconds, framerate scale factor: 1.000\n")}, nil
	}
	a := New(WithRunner(runner))
	req := newRequest(t)

	res := a.Align(context.Background(), req)

	require.True(t, res.Success, res.Error)
	require.NotNil(t, res.OffsetMS)
	assert.Equal(t, int64(-1250), *res.OffsetMS)
	assert.False(t, res.TimedOut)
	assert.Equal(t, []string{req.Reference, "-i", req.Target, "-o", req.Output, "--max-offset-seconds", "60", "--no-fix-framerate"}, gotArgs)
}

func TestAlignOffsetFromStderr(t *testing.T) {
	runner := func(_ context.Context, _ string, args ...string) (Output, error) {
		require.NoError(t, os.WriteFile(outputArg(args), []byte("x"), 0o644))
		return Output{Stderr: []byte("offset: 2.5 seconds")}, nil
	}
	res := New(WithRunner(runner)).Align(context.Background(), newRequest(t))
	require.True(t, res.Success)
	require.NotNil(t, res.OffsetMS)
	assert.Equal(t, int64(2500), *res.OffsetMS)
}

func TestAlignEmptyOutputIsFailure(t *testing.T) {
	runner := func(_ context.Context, _ string, args ...string) (Output, error) {
		require.NoError(t, os.WriteFile(outputArg(args), nil, 0o644))
		return Output{}, nil
	}
	res := New(WithRunner(runner)).Align(context.Background(), newRequest(t))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "no output")
}

func TestAlignRemovesStaleOutput(t *testing.T) {
	req := newRequest(t)
	require.NoError(t, os.WriteFile(req.Output, []byte("stale"), 0o644))
	runner := func(context.Context, string, ...string) (Output, error) {
		return Output{}, nil
	}
	res := New(WithRunner(runner)).Align(context.Background(), req)
	assert.False(t, res.Success)
	_, err := os.Stat(req.Output)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestAlignNonZeroExit(t *testing.T) {
	runner := func(context.Context, string, ...string) (Output, error) {
		return Output{Stderr: []byte("could not extract speech\n")}, errors.New("exit status 1")
	}
	res := New(WithRunner(runner)).Align(context.Background(), newRequest(t))
	assert.False(t, res.Success)
	assert.False(t, res.TimedOut)
	assert.Equal(t, "ffsubsync failed: could not extract speech", res.Error)
}

func TestAlignTimeout(t *testing.T) {
	runner := func(ctx context.Context, _ string, _ ...string) (Output, error) {
		<-ctx.Done()
		return Output{}, ctx.Err()
	}
	a := New(WithRunner(runner), WithTimeouts(20*time.Millisecond, 10*time.Millisecond))
	res := a.Align(context.Background(), newRequest(t))
	assert.False(t, res.Success)
	assert.True(t, res.TimedOut)
	assert.Contains(t, res.Error, "timed out")
}

func TestAlignParentCancellationIsNotTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := func(ctx context.Context, _ string, _ ...string) (Output, error) {
		cancel()
		<-ctx.Done()
		return Output{}, ctx.Err()
	}
	res := New(WithRunner(runner)).Align(ctx, newRequest(t))
	assert.False(t, res.Success)
	assert.False(t, res.TimedOut)
	assert.Contains(t, res.Error, "interrupted")
}

func TestBulkArgsAndTimeoutCap(t *testing.T) {
	a := New(WithTimeouts(300*time.Second, 90*time.Second), WithMaxOffset(30))
	req := Request{Reference: "ref.srt", Target: "t.srt", Output: "o.srt", Bulk: true}

	args := a.Args(req)
	assert.True(t, slices.Contains(args, "--vad"))
	assert.Equal(t, []string{"--max-subtitle-seconds", "180", "--vad", "webrtc"}, args[len(args)-4:])
	assert.Equal(t, "30", args[6])
	assert.Equal(t, 90*time.Second, a.Timeout(req))

	req.Bulk = false
	assert.Equal(t, 300*time.Second, a.Timeout(req))
	req.Timeout = 45 * time.Second
	req.Bulk = true
	assert.Equal(t, 45*time.Second, a.Timeout(req))
}

func TestRequestMaxOffsetOverride(t *testing.T) {
	args := New().Args(Request{Reference: "r", Target: "t", Output: "o", MaxOffsetSeconds: 15})
	assert.Equal(t, "15", args[6])
}

func TestAvailableCachesResult(t *testing.T) {
	var calls atomic.Int32
	runner := func(_ context.Context, _ string, args ...string) (Output, error) {
		calls.Add(1)
		require.Equal(t, []string{"--version"}, args)
		return Output{Stdout: []byte("0.4.25")}, nil
	}
	a := New(WithRunner(runner))
	assert.True(t, a.Available(context.Background()))
	assert.True(t, a.Available(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
}

func TestAvailableFalseWhenProbeFails(t *testing.T) {
	runner := func(context.Context, string, ...string) (Output, error) {
		return Output{}, errors.New("executable file not found")
	}
	a := New(WithRunner(runner))
	assert.False(t, a.Available(context.Background()))
}

func TestParseOffsetMissing(t *testing.T) {
	assert.Nil(t, parseOffset([]byte("nothing useful"), nil))
}
