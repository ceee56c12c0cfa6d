package syncengine

import (
	"fmt"

	"dualsub/internal/cues"
)

const (
	// LateEndToleranceMS is how far past the video end a track may run.
	LateEndToleranceMS = 5_000
	// EarlyEndToleranceMS is how long before the video end a track may stop.
	EarlyEndToleranceMS = 30_000
)

// ValidateDuration compares the last cue of list with the video duration and
// returns human-readable warnings. A non-positive duration skips the check.
func ValidateDuration(list cues.List, videoMS int64) []string {
	if videoMS <= 0 || len(list) == 0 {
		return nil
	}
	last := list.LastEnd()
	var warnings []string
	if last > videoMS+LateEndToleranceMS {
		warnings = append(warnings, fmt.Sprintf("Subtitles end %.1fs after video", float64(last-videoMS)/1000))
	}
	if last < videoMS-EarlyEndToleranceMS {
		warnings = append(warnings, fmt.Sprintf("Subtitles end %.1fs before video", float64(videoMS-last)/1000))
	}
	return warnings
}
