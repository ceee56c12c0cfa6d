package ffprobe

import (
	"context"
	"errors"
	"strings"
	"testing"
)

const sample = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video"},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "tags": {"language": "jpn"}},
    {"index": 2, "codec_name": "subrip", "codec_type": "subtitle", "tags": {"language": "ENG", "title": "Full"}},
    {"index": 3, "codec_name": "ass", "codec_type": "subtitle", "tags": {"language": "jpn"}, "disposition": {"forced": 1}}
  ],
  "format": {"filename": "ep.mkv", "duration": "1425.120000", "format_name": "matroska,webm"}
}`

func TestParseSubtitleStreams(t *testing.T) {
	result, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	subs := result.SubtitleStreams()
	if len(subs) != 2 {
		t.Fatalf("expected 2 subtitle streams, got %d", len(subs))
	}
	if subs[0].Index != 2 || subs[0].Language() != "eng" || subs[0].Title() != "Full" || subs[0].Forced() {
		t.Fatalf("unexpected first subtitle stream: %+v", subs[0])
	}
	if !subs[1].Forced() || subs[1].CodecName != "ass" {
		t.Fatalf("expected forced ass stream, got %+v", subs[1])
	}
	if result.DurationMS() != 1425120 {
		t.Fatalf("unexpected duration: %d", result.DurationMS())
	}
}

func TestDurationHandlesInvalidValues(t *testing.T) {
	for _, value := range []string{"", "bad", "-3"} {
		r := Result{Format: Format{Duration: value}}
		if r.DurationSeconds() != 0 {
			t.Fatalf("duration %q: expected 0, got %v", value, r.DurationSeconds())
		}
	}
}

func TestInspectWithRunner(t *testing.T) {
	var gotArgs []string
	runner := func(_ context.Context, binary string, args ...string) ([]byte, error) {
		if binary != "ffprobe" {
			t.Fatalf("unexpected binary %q", binary)
		}
		gotArgs = args
		return []byte(sample), nil
	}
	result, err := InspectWith(context.Background(), runner, "", "/media/ep.mkv")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if gotArgs[len(gotArgs)-1] != "/media/ep.mkv" {
		t.Fatalf("expected path as last arg, got %v", gotArgs)
	}
	if len(result.Streams) != 4 {
		t.Fatalf("expected 4 streams, got %d", len(result.Streams))
	}
}

func TestInspectErrors(t *testing.T) {
	if _, err := InspectWith(context.Background(), nil, "ffprobe", "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
	failing := func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	}
	_, err := InspectWith(context.Background(), failing, "ffprobe", "x.mkv")
	if err == nil || !strings.Contains(err.Error(), "ffprobe inspect") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
