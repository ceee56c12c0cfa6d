package bulk

import (
	"fmt"
	"time"
)

const estimateWindow = 10

// durationWindow keeps the most recent item durations.
type durationWindow struct {
	samples []time.Duration
}

func (w *durationWindow) add(d time.Duration) {
	w.samples = append(w.samples, d)
	if len(w.samples) > estimateWindow {
		w.samples = w.samples[len(w.samples)-estimateWindow:]
	}
}

// remaining estimates the time left for n items.
func (w *durationWindow) remaining(n int) string {
	if len(w.samples) == 0 {
		return "Calculating..."
	}
	var total time.Duration
	for _, d := range w.samples {
		total += d
	}
	avg := total / time.Duration(len(w.samples))
	return FormatRemaining(avg * time.Duration(max(n, 0)))
}

// FormatRemaining renders d as "{m}m {s}s", or "{s}s" under a minute.
func FormatRemaining(d time.Duration) string {
	secs := int(d.Seconds())
	if secs >= 60 {
		return fmt.Sprintf("%dm %ds", secs/60, secs%60)
	}
	return fmt.Sprintf("%ds", secs)
}
