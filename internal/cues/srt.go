package cues

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrEmpty is returned by ReadFile when the file decodes but contains no cues.
var ErrEmpty = errors.New("subtitle file contains no cues")

// ReadFile loads and decodes an SRT file.
func ReadFile(path string) (List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}
	text, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode srt %s: %w", filepath.Base(path), err)
	}
	list := Parse(text)
	if len(list) == 0 {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrEmpty)
	}
	return list, nil
}

// Parse converts SRT text into cues. Malformed blocks are skipped. Cues whose
// end precedes their start are repaired by clamping end to start.
func Parse(content string) List {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	var list List
	for _, block := range splitBlocks(content) {
		lines := strings.Split(block, "\n")
		timing := 0
		if !strings.Contains(lines[0], "-->") {
			timing = 1
		}
		if timing >= len(lines) || !strings.Contains(lines[timing], "-->") {
			continue
		}
		parts := strings.SplitN(lines[timing], "-->", 2)
		start, err := ParseTimestamp(parts[0])
		if err != nil {
			continue
		}
		endFields := strings.Fields(parts[1])
		if len(endFields) == 0 {
			continue
		}
		end, err := ParseTimestamp(endFields[0])
		if err != nil {
			continue
		}
		if end < start {
			end = start
		}
		text := strings.Join(trimLines(lines[timing+1:]), LineBreak)
		list = append(list, Cue{Start: start, End: end, Text: text})
	}
	return list
}

func splitBlocks(content string) []string {
	var blocks []string
	var current []string
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			if len(current) > 0 {
				blocks = append(blocks, strings.Join(current, "\n"))
				current = current[:0]
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		blocks = append(blocks, strings.Join(current, "\n"))
	}
	return blocks
}

func trimLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, strings.TrimRight(line, " \t"))
	}
	return out
}

// ParseTimestamp parses HH:MM:SS,mmm (a dot separator is also accepted)
// into milliseconds.
func ParseTimestamp(value string) (int64, error) {
	value = strings.TrimSpace(strings.ReplaceAll(value, ".", ","))
	clock, millis, found := strings.Cut(value, ",")
	fields := strings.Split(clock, ":")
	if len(fields) != 3 {
		return 0, fmt.Errorf("invalid srt timestamp %q", value)
	}
	var parsed [3]int64
	for i, f := range fields {
		n, err := strconv.ParseInt(strings.TrimSpace(f), 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid srt timestamp %q", value)
		}
		parsed[i] = n
	}
	var ms int64
	if found {
		digits := strings.TrimSpace(millis)
		if len(digits) > 3 {
			digits = digits[:3]
		}
		for len(digits) < 3 {
			digits += "0"
		}
		n, err := strconv.ParseInt(digits, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid srt timestamp %q", value)
		}
		ms = n
	}
	return ((parsed[0]*60+parsed[1])*60+parsed[2])*1000 + ms, nil
}

// FormatTimestamp renders milliseconds as HH:MM:SS,mmm.
func FormatTimestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	hours := ms / 3_600_000
	ms -= hours * 3_600_000
	minutes := ms / 60_000
	ms -= minutes * 60_000
	seconds := ms / 1000
	ms -= seconds * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, ms)
}

// Write renders the list as numbered SRT blocks.
func Write(w io.Writer, list List) error {
	var buf bytes.Buffer
	for i, cue := range list {
		fmt.Fprintf(&buf, "%d\n%s --> %s\n%s\n\n",
			i+1,
			FormatTimestamp(cue.Start),
			FormatTimestamp(cue.End),
			strings.ReplaceAll(cue.Text, LineBreak, "\n"),
		)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteFile writes the list as UTF-8 SRT. The file is written to a temporary
// sibling and renamed so readers never observe a partial file.
func WriteFile(path string, list List) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create srt temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if err := Write(tmp, list); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write srt: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close srt: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod srt: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename srt: %w", err)
	}
	return nil
}
