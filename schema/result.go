package schema

import (
	"fmt"
	"time"
)

// DefaultStabilityThreshold is the slope magnitude below which a trend is
// classified as stable.
const DefaultStabilityThreshold = 0.1

// FixedDisclaimers is the "not" list carried by every explanation. It is
// always present so a consumer can never read a result as confirmation of a
// specific event, a live tracker or a prediction.
var FixedDisclaimers = []string{
	"Not confirmation of any specific event",
	"Not a real-time tracker; all data is delayed",
	"Not a prediction of future activity",
}

// TrendInfo describes how signal activity moved across the window.
type TrendInfo struct {
	Slope     float64        `json:"slope"`     // Signals per day, least-squares fit
	Direction TrendDirection `json:"direction"` // Derived from slope vs stability threshold
}

// DeriveTrendDirection classifies a slope against a stability threshold.
// A non-positive threshold falls back to DefaultStabilityThreshold.
func DeriveTrendDirection(slope, threshold float64) TrendDirection {
	if threshold <= 0 {
		threshold = DefaultStabilityThreshold
	}
	switch {
	case slope > threshold:
		return RisingTrend
	case slope < -threshold:
		return FallingTrend
	default:
		return StableTrend
	}
}

// NewTrendInfo pairs a slope with its derived direction.
func NewTrendInfo(slope, threshold float64) TrendInfo {
	return TrendInfo{Slope: slope, Direction: DeriveTrendDirection(slope, threshold)}
}

// Provenance records exactly what produced a result. InputsHash is a content
// hash of the input signal multiset and is immutable once computed; replaying
// the pipeline carries ModelVersion and SchemaVersion through unchanged.
type Provenance struct {
	ModelVersion  string          `json:"model_version"`
	SchemaVersion string          `json:"schema_version"`
	InputsHash    string          `json:"inputs_hash"`
	SignalsN      int             `json:"signals_n"`
	Sources       SourceBreakdown `json:"sources"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

// Explanation pairs the reasons a result looks the way it does (Why) with the
// fixed list of things it must never be read as (Not).
type Explanation struct {
	Why []string `json:"why"`
	Not []string `json:"not"`
}

// AttentionResult is the single externally-visible artifact of the pipeline.
// It is created once per (zip, window) evaluation, never mutated afterwards,
// and superseded rather than edited when the pipeline reruns with a new model
// version. Construct it only through NewAttentionResult.
type AttentionResult struct {
	ZIP         string         `json:"zip"`
	Window      TimeWindow     `json:"window"`
	State       AttentionState `json:"state"`
	Score       float64        `json:"score"`
	Confidence  float64        `json:"confidence"`
	Trend       TrendInfo      `json:"trend"`
	Provenance  Provenance     `json:"provenance"`
	Explanation Explanation    `json:"explanation"`
}

// NewAttentionResult validates and assembles a result. Score or confidence
// outside [0,1], or a zip that is not 5 digits after zero-padding, fail
// construction; an out-of-range value here is an internal bug and is never
// clamped. Score, confidence and slope are rounded to 3 decimals, the state
// is classified from score times confidence, and an empty Not list is filled
// with FixedDisclaimers.
func NewAttentionResult(zip string, window TimeWindow, score, confidence float64, trend TrendInfo, prov Provenance, expl Explanation) (AttentionResult, error) {
	normalized, err := NormalizeZIP(zip)
	if err != nil {
		return AttentionResult{}, err
	}
	if score < 0 || score > 1 {
		return AttentionResult{}, &ValidationError{Field: "score", Reason: fmt.Sprintf("%v is outside [0,1]", score)}
	}
	if confidence < 0 || confidence > 1 {
		return AttentionResult{}, &ValidationError{Field: "confidence", Reason: fmt.Sprintf("%v is outside [0,1]", confidence)}
	}
	if err := window.Validate(); err != nil {
		return AttentionResult{}, err
	}
	if prov.SchemaVersion == "" {
		prov.SchemaVersion = SchemaVersion
	}
	if len(expl.Not) == 0 {
		expl.Not = FixedDisclaimers
	}

	score = Round3(score)
	confidence = Round3(confidence)
	trend.Slope = Round3(trend.Slope)

	return AttentionResult{
		ZIP:         normalized,
		Window:      window,
		State:       ClassifyAttentionState(score * confidence),
		Score:       score,
		Confidence:  confidence,
		Trend:       trend,
		Provenance:  prov,
		Explanation: expl,
	}, nil
}

// EffectiveScore returns score times confidence, the quantity the attention
// state is classified on.
func (r *AttentionResult) EffectiveScore() float64 {
	return r.Score * r.Confidence
}
