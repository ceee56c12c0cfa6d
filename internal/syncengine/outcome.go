package syncengine

// Method names the strategy that produced a synced track.
type Method string

const (
	MethodExternal    Method = "external"
	MethodHybridRelay Method = "hybrid_relay"
	MethodEstimator   Method = "estimator"
	MethodNone        Method = "none"
)

const (
	confidenceExternal  = 0.95
	confidenceEstimator = 0.6
	confidenceCopy      = 0.1
	confidenceReference = 1.0
)

// Outcome is the immutable result of synchronizing one track.
type Outcome struct {
	Method        Method  `json:"method"`
	Success       bool    `json:"success"`
	OffsetMS      *int64  `json:"offset_ms,omitempty"`
	Error         string  `json:"error,omitempty"`
	Confidence    float64 `json:"confidence"`
	LowConfidence bool    `json:"low_confidence"`
	Note          string  `json:"note,omitempty"`
}

func externalOutcome(method Method, offset *int64) Outcome {
	return Outcome{Method: method, Success: true, OffsetMS: copyOffset(offset), Confidence: confidenceExternal}
}

func estimatorOutcome(offset int64, note string) Outcome {
	return Outcome{Method: MethodEstimator, Success: true, OffsetMS: &offset, Confidence: confidenceEstimator, Note: note}
}

// copyOutcome is the last tier. lastErr describes why the earlier tiers
// failed; an empty lastErr means nothing was attempted.
func copyOutcome(lastErr string) Outcome {
	return Outcome{
		Method:        MethodNone,
		Success:       true,
		Error:         lastErr,
		Confidence:    confidenceCopy,
		LowConfidence: lastErr != "",
	}
}

func referenceOutcome() Outcome {
	return Outcome{Method: MethodNone, Success: true, Confidence: confidenceReference, Note: "reference track"}
}

func copyOffset(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
