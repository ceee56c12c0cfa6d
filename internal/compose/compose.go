// Package compose merges a primary and a secondary cue list into a single
// dual-language track.
package compose

import (
	"fmt"
	"sort"
	"strings"

	"dualsub/internal/cues"
)

// Options controls how secondary text is attached to primary cues.
type Options struct {
	PrimaryPrefix   string
	SecondaryPrefix string
	// LineBreak separates the two languages inside one cue. Defaults to
	// cues.LineBreak.
	LineBreak string
}

// Compose copies every primary cue (prefixed) and attaches each secondary
// cue to the first output cue it overlaps. Secondary cues without an overlap
// become cues of their own. Endpoints that merely touch count as overlap.
// The result is stably sorted by start time; inputs are not modified.
func Compose(primary, secondary cues.List, opts Options) cues.List {
	lineBreak := opts.LineBreak
	if lineBreak == "" {
		lineBreak = cues.LineBreak
	}

	out := make(cues.List, 0, len(primary)+len(secondary))
	for _, c := range primary {
		out = append(out, cues.Cue{Start: c.Start, End: c.End, Text: opts.PrimaryPrefix + c.Text})
	}

	for _, s := range secondary {
		text := opts.SecondaryPrefix + s.Text
		merged := false
		for i := range out {
			if s.Overlaps(out[i]) {
				out[i].Text += lineBreak + text
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, cues.Cue{Start: s.Start, End: s.End, Text: text})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// Prefixes returns the "[XX] " labels for both languages, or empty strings
// when prefixing is disabled. Blank languages fall back to PRI and SEC.
func Prefixes(primaryLang, secondaryLang string, enabled bool) (string, string) {
	if !enabled {
		return "", ""
	}
	return label(primaryLang, "PRI"), label(secondaryLang, "SEC")
}

func label(lang, fallback string) string {
	lang = strings.ToUpper(strings.TrimSpace(lang))
	if lang == "" {
		lang = fallback
	}
	return "[" + lang + "] "
}

// WriteFile writes the composed track as SRT.
func WriteFile(path string, list cues.List) error {
	if err := cues.WriteFile(path, list); err != nil {
		return fmt.Errorf("write dual subtitle: %w", err)
	}
	return nil
}

// Preview renders the first limit cues as "HH:MM:SS,mmm --> HH:MM:SS,mmm text"
// lines with line breaks shown as " / ".
func Preview(list cues.List, limit int) []string {
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	lines := make([]string, 0, limit)
	for _, c := range list[:limit] {
		lines = append(lines, fmt.Sprintf("%s --> %s %s",
			cues.FormatTimestamp(c.Start),
			cues.FormatTimestamp(c.End),
			strings.ReplaceAll(c.Text, cues.LineBreak, " / "),
		))
	}
	return lines
}
