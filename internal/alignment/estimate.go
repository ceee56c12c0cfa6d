// Package alignment estimates a constant time offset between two cue lists
// without invoking any external tool.
//
// Sign convention: Offset = start(reference) - start(target). Adding Offset
// to every target cue moves the target onto the reference timeline.
package alignment

import (
	"math"
	"sort"

	"dualsub/internal/cues"
)

const (
	// MaxSamples bounds how many index pairs are compared.
	MaxSamples = 10
	// LengthMismatchRatio is the relative cue-count difference above which
	// only the first cue pair is used.
	LengthMismatchRatio = 0.3
	// HighVarianceMS2 flags sample sets whose spread exceeds one second.
	HighVarianceMS2 = 1_000_000
	// FineTuneThresholdMS is the first-cue drift tolerated after a relay.
	FineTuneThresholdMS = 50
)

// Strategy names how an estimate was derived.
type Strategy string

const (
	StrategyEmpty    Strategy = "empty"
	StrategyFirstCue Strategy = "first-cue"
	StrategyMedian   Strategy = "median"
)

// Estimate is the result of comparing two cue lists.
type Estimate struct {
	OffsetMS     int64
	Strategy     Strategy
	Samples      []int64
	Variance     float64
	HighVariance bool
}

// Usable reports whether the estimate was computed from real cues.
func (e Estimate) Usable() bool {
	return e.Strategy != StrategyEmpty
}

// EstimateOffset computes the offset that moves target onto reference.
func EstimateOffset(reference, target cues.List) Estimate {
	if len(reference) == 0 || len(target) == 0 {
		return Estimate{Strategy: StrategyEmpty}
	}

	diff := math.Abs(float64(len(reference) - len(target)))
	if diff > float64(len(reference))*LengthMismatchRatio {
		offset := reference[0].Start - target[0].Start
		return Estimate{OffsetMS: offset, Strategy: StrategyFirstCue, Samples: []int64{offset}}
	}

	n := min(MaxSamples, len(reference), len(target))
	samples := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		ri := sampleIndex(i, n, len(reference))
		ti := sampleIndex(i, n, len(target))
		samples = append(samples, reference[ri].Start-target[ti].Start)
	}

	sorted := append([]int64(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	median := sorted[len(sorted)/2]

	var variance float64
	for _, s := range samples {
		d := float64(s - median)
		variance += d * d
	}
	variance /= float64(len(samples))

	return Estimate{
		OffsetMS:     median,
		Strategy:     StrategyMedian,
		Samples:      samples,
		Variance:     variance,
		HighVariance: len(samples) > 1 && variance > HighVarianceMS2,
	}
}

// sampleIndex maps sample i of n proportionally onto a list of size length.
func sampleIndex(i, n, length int) int {
	if n <= 1 {
		return 0
	}
	idx := int(math.Round(float64(i) / float64(n-1) * float64(length-1)))
	return min(max(idx, 0), length-1)
}

// Apply shifts every target cue by offset, clamping negatives to zero.
func Apply(target cues.List, offset int64) cues.List {
	return target.Shift(offset)
}

// FineTune aligns the first cue of secondary with the first cue of primary
// when they drift apart by more than threshold milliseconds. It returns the
// adjusted list and the shift that was applied (0 when untouched).
func FineTune(primary, secondary cues.List, threshold int64) (cues.List, int64) {
	if len(primary) == 0 || len(secondary) == 0 {
		return secondary, 0
	}
	drift := primary[0].Start - secondary[0].Start
	if drift <= threshold && drift >= -threshold {
		return secondary, 0
	}
	return secondary.Shift(drift), drift
}
