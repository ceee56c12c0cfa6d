package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractWritesOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "track.srt")
	var got []string
	runner := func(_ context.Context, binary string, args ...string) ([]byte, error) {
		assert.Equal(t, "ffmpeg", binary)
		got = args
		return nil, os.WriteFile(args[len(args)-1], []byte("1\n00:00:00,000 --> 00:00:01,000\nhi\n"), 0o644)
	}
	err := New("", WithRunner(runner)).Extract(context.Background(), "/v/ep.mkv", 3, out, "subrip")
	require.NoError(t, err)
	assert.Equal(t, []string{"-y", "-hide_banner", "-v", "error", "-i", "/v/ep.mkv", "-map", "0:3", "-f", "srt", out}, got)
}

func TestExtractRejectsImageCodec(t *testing.T) {
	called := false
	runner := func(context.Context, string, ...string) ([]byte, error) {
		called = true
		return nil, nil
	}
	err := New("ffmpeg", WithRunner(runner)).Extract(context.Background(), "v.mkv", 4, "o.srt", "hdmv_pgs_subtitle")
	require.ErrorIs(t, err, ErrImageSubtitle)
	assert.False(t, called)
}

func TestExtractEmptyOutputRemoved(t *testing.T) {
	out := filepath.Join(t.TempDir(), "track.srt")
	runner := func(_ context.Context, _ string, args ...string) ([]byte, error) {
		return nil, os.WriteFile(args[len(args)-1], nil, 0o644)
	}
	err := New("ffmpeg", WithRunner(runner)).Extract(context.Background(), "v.mkv", 2, out, "")
	require.Error(t, err)
	_, statErr := os.Stat(out)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestExtractFailureIncludesOutput(t *testing.T) {
	runner := func(context.Context, string, ...string) ([]byte, error) {
		return []byte("Stream map '0:9' matches no streams."), errors.New("exit status 1")
	}
	err := New("ffmpeg", WithRunner(runner)).Extract(context.Background(), "v.mkv", 9, filepath.Join(t.TempDir(), "o.srt"), "ass")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matches no streams")
}

func TestExtractInvalidIndex(t *testing.T) {
	err := New("ffmpeg").Extract(context.Background(), "v.mkv", -1, "o.srt", "")
	require.Error(t, err)
}
