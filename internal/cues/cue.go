package cues

import "sort"

// LineBreak is the in-memory line separator inside cue text.
const LineBreak = `\N`

// Cue is one timed caption entry. Times are milliseconds from media start.
type Cue struct {
	Start int64  `json:"start_ms"`
	End   int64  `json:"end_ms"`
	Text  string `json:"text"`
}

// Duration returns End-Start.
func (c Cue) Duration() int64 {
	return c.End - c.Start
}

// Overlaps reports whether the two cues share any instant. Touching
// endpoints count as overlap.
func (c Cue) Overlaps(other Cue) bool {
	return c.Start <= other.End && c.End >= other.Start
}

// List is an ordered sequence of cues.
type List []Cue

// Clone returns an independent copy of the list.
func (l List) Clone() List {
	if l == nil {
		return nil
	}
	out := make(List, len(l))
	copy(out, l)
	return out
}

// Shift returns a copy with every cue moved by offset milliseconds. Negative
// results are clamped to zero.
func (l List) Shift(offset int64) List {
	out := make(List, len(l))
	for i, cue := range l {
		cue.Start = clampZero(cue.Start + offset)
		cue.End = clampZero(cue.End + offset)
		out[i] = cue
	}
	return out
}

// SortByStart stable-sorts the list in place by start time.
func (l List) SortByStart() {
	sort.SliceStable(l, func(i, j int) bool { return l[i].Start < l[j].Start })
}

// LastEnd returns the greatest end time in the list, or 0 for an empty list.
func (l List) LastEnd() int64 {
	var last int64
	for _, cue := range l {
		if cue.End > last {
			last = cue.End
		}
	}
	return last
}

// FirstStart returns the start of the first cue and false when empty.
func (l List) FirstStart() (int64, bool) {
	if len(l) == 0 {
		return 0, false
	}
	return l[0].Start, true
}

// Texts returns up to limit cue texts, in order. A non-positive limit returns all.
func (l List) Texts(limit int) []string {
	n := len(l)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]string, 0, n)
	for _, cue := range l[:n] {
		out = append(out, cue.Text)
	}
	return out
}

func clampZero(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
