package cues

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeTempSRT(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.srt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write srt: %v", err)
	}
	return path
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"00:00:01,000", 1000},
		{"01:02:03,456", 3723456},
		{" 00:00:00.5 ", 500},
		{"00:10:00", 600000},
	}
	for _, tc := range tests {
		got, err := ParseTimestamp(tc.in)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseTimestamp(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
	if _, err := ParseTimestamp("1:2"); err == nil {
		t.Fatal("expected error for malformed timestamp")
	}
}

func TestFormatTimestamp(t *testing.T) {
	if got := FormatTimestamp(3723456); got != "01:02:03,456" {
		t.Fatalf("unexpected format %q", got)
	}
	if got := FormatTimestamp(-5); got != "00:00:00,000" {
		t.Fatalf("negative values should clamp, got %q", got)
	}
}

func TestParseHandlesMultilineAndMalformedBlocks(t *testing.T) {
	content := "1\r\n00:00:01,000 --> 00:00:02,500\r\nHello\r\nthere\r\n\r\n" +
		"garbage block\r\n\r\n" +
		"3\r\n00:00:05,000 --> 00:00:04,000 X1:10\r\nBackwards\r\n"
	list := Parse(content)
	if len(list) != 2 {
		t.Fatalf("expected 2 cues, got %d: %+v", len(list), list)
	}
	if list[0].Text != `Hello\Nthere` {
		t.Fatalf("unexpected multiline text %q", list[0].Text)
	}
	if list[1].Start != 5000 || list[1].End != 5000 {
		t.Fatalf("expected inverted cue repaired, got %+v", list[1])
	}
}

func TestWriteRendersNumberedBlocks(t *testing.T) {
	list := List{
		{Start: 1000, End: 3000, Text: `[EN] Hello\N[FR] Bonjour`},
		{Start: 4000, End: 5000, Text: "Bye"},
	}
	var buf bytes.Buffer
	if err := Write(&buf, list); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := "1\n00:00:01,000 --> 00:00:03,000\n[EN] Hello\n[FR] Bonjour\n\n2\n00:00:04,000 --> 00:00:05,000\nBye\n\n"
	if buf.String() != want {
		t.Fatalf("unexpected srt output:\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestWriteFileThenReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.srt")
	list := List{{Start: 0, End: 1200, Text: `a\Nb`}}
	if err := WriteFile(path, list); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(got) != 1 || got[0] != list[0] {
		t.Fatalf("unexpected cues %+v", got)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp file to be renamed away, found %d entries", len(entries))
	}
}

func TestReadFileDecodesLegacyEncodings(t *testing.T) {
	t.Run("windows-1252", func(t *testing.T) {
		path := writeTempSRT(t, "1\n00:00:01,000 --> 00:00:02,000\nCaf\xe9\n")
		list, err := ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		if len(list) != 1 || list[0].Text != "Café" {
			t.Fatalf("unexpected decode %+v", list)
		}
	})

	t.Run("utf-16le", func(t *testing.T) {
		src := "1\n00:00:01,000 --> 00:00:02,000\nこんにちは\n"
		encoded := []byte{0xFF, 0xFE}
		for _, r := range src {
			encoded = append(encoded, byte(r), byte(r>>8))
		}
		path := writeTempSRT(t, string(encoded))
		list, err := ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		if len(list) != 1 || list[0].Text != "こんにちは" {
			t.Fatalf("unexpected decode %+v", list)
		}
	})

	t.Run("no cues", func(t *testing.T) {
		path := writeTempSRT(t, "\n\nnot a subtitle\n")
		list, err := ReadFile(path)
		if !errors.Is(err, ErrEmpty) {
			t.Fatalf("expected ErrEmpty, got %v", err)
		}
		if list != nil {
			t.Fatalf("expected nil list, got %+v", list)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := ReadFile(filepath.Join(t.TempDir(), "nope.srt")); err == nil {
			t.Fatal("expected read error")
		}
	})
}

func TestListHelpers(t *testing.T) {
	list := List{{Start: 500, End: 1500, Text: "a"}, {Start: 100, End: 4000, Text: "b"}}
	shifted := list.Shift(-1000)
	if shifted[0].Start != 0 || shifted[0].End != 500 {
		t.Fatalf("expected clamp at zero, got %+v", shifted[0])
	}
	if list[0].Start != 500 {
		t.Fatal("Shift must not mutate the receiver")
	}
	if list.LastEnd() != 4000 {
		t.Fatalf("unexpected last end %d", list.LastEnd())
	}
	clone := list.Clone()
	clone.SortByStart()
	if clone[0].Text != "b" || list[0].Text != "a" {
		t.Fatalf("unexpected sort/clone behaviour: %+v %+v", clone, list)
	}
	if !(Cue{Start: 1000, End: 2000}).Overlaps(Cue{Start: 2000, End: 3000}) {
		t.Fatal("touching cues should overlap")
	}
}
