// Package attention turns gated aggregation units into versioned
// AttentionResult artifacts: a bounded score, a confidence discount, a trend
// fit, a deterministic explanation and a provenance record with a
// permutation-invariant hash of the input signals.
package attention

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/quantumclean/heatshield/internal/contract"
	"github.com/quantumclean/heatshield/schema"
)

// ErrNotCleared is returned when a unit whose safety decision failed is
// handed to the builder. Failed units never produce results.
var ErrNotCleared = errors.New("unit did not clear the safety gates")

// Builder assembles AttentionResults from cleared units.
type Builder struct {
	cfg      *contract.Config
	baseline map[string]float64
}

// NewBuilder creates a builder over the given scoring configuration.
func NewBuilder(cfg *contract.Config) *Builder {
	return &Builder{cfg: cfg}
}

// WithBaseline attaches per-zip historical daily volumes for novelty scoring.
// Zips absent from the map score without a novelty component.
func (b *Builder) WithBaseline(baseline map[string]float64) *Builder {
	b.baseline = baseline
	return b
}

// LoadBaselineFile reads a JSON object mapping zip codes to historical mean
// daily signal volumes.
func LoadBaselineFile(path string) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read baseline file: %w", err)
	}
	var baseline map[string]float64
	if err := json.Unmarshal(data, &baseline); err != nil {
		return nil, fmt.Errorf("failed to parse baseline file %s: %w", path, err)
	}
	return baseline, nil
}

func (b *Builder) baselineFor(zip string) *float64 {
	normalized, err := schema.NormalizeZIP(zip)
	if err != nil {
		return nil
	}
	if v, ok := b.baseline[normalized]; ok && v > 0 {
		return &v
	}
	return nil
}

// Build produces the result for one cleared unit. The decision must be the
// one the safety gates produced for this unit; a failed decision returns
// ErrNotCleared. The now argument becomes the provenance generation time and
// never influences the score, so replays reproduce identical scores.
func (b *Builder) Build(unit *schema.AggregationUnit, decision schema.SafetyDecision, now time.Time) (schema.AttentionResult, error) {
	if !decision.Passed {
		return schema.AttentionResult{}, fmt.Errorf("unit %s: %w", unit.ID, ErrNotCleared)
	}

	cfg := b.cfg
	score, _ := computeScore(unit, b.baselineFor(unit.ZIP), cfg)
	confidence := b.computeConfidence(unit, decision)
	trend, percent := computeTrend(unit, cfg.StabilityThreshold)

	prov := schema.Provenance{
		ModelVersion:  cfg.ModelVersion,
		SchemaVersion: schema.SchemaVersion,
		InputsHash:    ComputeInputsHash(unit.Signals),
		SignalsN:      len(unit.Signals),
		Sources:       schema.BuildSourceBreakdown(unit.Signals),
		GeneratedAt:   now,
	}

	expl := schema.Explanation{
		Why: b.buildWhy(unit, decision, trend, percent, score, confidence),
		Not: schema.FixedDisclaimers,
	}

	return schema.NewAttentionResult(unit.ZIP, unit.Window, score, confidence, trend, prov, expl)
}

// computeConfidence starts at 1.0 and applies multiplicative discounts: one
// when the corroboration gate passed only through the single-official-source
// exception, one when the window is too short for a dependable trend.
func (b *Builder) computeConfidence(unit *schema.AggregationUnit, decision schema.SafetyDecision) float64 {
	confidence := 1.0

	if decision.OfficialException {
		discount := b.cfg.OfficialDiscount
		if discount <= 0 || discount > 1 {
			discount = contract.DefaultOfficialDiscount
		}
		confidence *= discount
	}

	minDays := b.cfg.MinTrendWindowDays
	if minDays < 2 {
		minDays = contract.DefaultMinTrendWindowDays
	}
	if trendWindowShort(unit.Window, minDays) {
		discount := b.cfg.ShortWindowDiscount
		if discount <= 0 || discount > 1 {
			discount = contract.DefaultShortWindowDiscount
		}
		confidence *= discount
	}

	return confidence
}

// buildWhy assembles the explanation lines in a fixed order: volume, then
// corroboration, then trend, then the terminal state. Every line derives only
// from inputs the score actually used, so the same unit always explains the
// same way.
func (b *Builder) buildWhy(unit *schema.AggregationUnit, decision schema.SafetyDecision, trend schema.TrendInfo, percent, score, confidence float64) []string {
	var why []string

	minGroup := b.cfg.MinGroupSize
	if minGroup < 1 {
		minGroup = contract.DefaultMinGroupSize
	}
	if size := unit.Size(); size >= minGroup {
		why = append(why, fmt.Sprintf("%d distinct reports across %d days", size, unit.Window.Days()))
	}

	if distinct := len(unit.SourceCategories()); distinct >= 2 {
		why = append(why, fmt.Sprintf("corroborated by %d source types", distinct))
	} else if decision.OfficialException {
		why = append(why, "single official source, confidence reduced")
	}

	why = append(why, fmt.Sprintf("activity %s (%+.1f%% per day)", trend.Direction, percent))

	effective := schema.Round3(score) * schema.Round3(confidence)
	state := schema.ClassifyAttentionState(effective)
	why = append(why, fmt.Sprintf("effective score %.3f classified %s", effective, state))

	return why
}
