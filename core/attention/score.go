package attention

import (
	"math"

	"github.com/quantumclean/heatshield/internal/contract"
	"github.com/quantumclean/heatshield/schema"
)

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// decayedVolume sums exponentially decayed signal weights. A signal dated at
// the window end contributes 1.0 and every halfLifeHours of age halves the
// contribution. Duplicate signals (same date, source and text) count once,
// matching the k-anonymity size rule.
func decayedVolume(u *schema.AggregationUnit, halfLifeHours float64) float64 {
	if halfLifeHours <= 0 {
		halfLifeHours = contract.DefaultHalfLifeHours
	}
	halfLifeDays := halfLifeHours / 24.0
	end := u.Window.EndTime()

	seen := make(map[string]struct{}, len(u.Signals))
	var sum float64
	for _, s := range u.Signals {
		key := s.Date + "\x00" + s.Source + "\x00" + s.Text
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		t, err := s.Time()
		if err != nil {
			continue
		}
		ageDays := end.Sub(t).Hours() / 24.0
		if ageDays < 0 {
			ageDays = 0
		}
		sum += math.Exp2(-ageDays / halfLifeDays)
	}
	return sum
}

// noveltyScore compares the window's mean daily volume against a historical
// baseline for the same zip. It is 0 at or below baseline and saturates
// smoothly toward 1 as current volume dwarfs the baseline.
func noveltyScore(currentDaily, baselineDaily float64) float64 {
	if currentDaily+baselineDaily <= 0 {
		return 0
	}
	return clamp01((currentDaily - baselineDaily) / (currentDaily + baselineDaily))
}

// computeScore calculates a unit's attention score (0-1) from three
// normalized components:
// - volume: time-decayed signal count, saturating at VolumeSaturation
// - diversity: distinct source categories out of the canonical five
// - novelty: current daily volume versus the historical baseline
// When no baseline exists for the zip, the novelty weight is redistributed
// proportionally onto volume and diversity so the score stays in [0,1].
func computeScore(u *schema.AggregationUnit, baseline *float64, cfg *contract.Config) (float64, map[schema.WeightKey]float64) {
	saturation := float64(cfg.VolumeSaturation)
	if saturation < 1 {
		saturation = float64(contract.DefaultVolumeSaturation)
	}

	// --- Normalized Components [0,1] ---
	nVolume := clamp01(decayedVolume(u, cfg.DecayHalfLifeHours) / saturation)
	nDiversity := clamp01(float64(len(u.SourceCategories())) / float64(len(schema.AllSourceCategories)))

	weights := cfg.Weights
	if len(weights) == 0 {
		weights = schema.GetDefaultScoreWeights()
	}
	wVolume := weights[schema.WeightVolume]
	wDiversity := weights[schema.WeightDiversity]
	wNovelty := weights[schema.WeightNovelty]

	breakdown := make(map[schema.WeightKey]float64, 3)

	if baseline == nil {
		// Redistribute the novelty weight in proportion to the other two.
		if rest := wVolume + wDiversity; rest > 0 {
			wVolume, wDiversity = wVolume+wNovelty*wVolume/rest, wDiversity+wNovelty*wDiversity/rest
		}
	} else {
		days := u.Window.Days()
		if days < 1 {
			days = 1
		}
		currentDaily := float64(u.Size()) / float64(days)
		breakdown[schema.WeightNovelty] = wNovelty * noveltyScore(currentDaily, *baseline)
	}

	breakdown[schema.WeightVolume] = wVolume * nVolume
	breakdown[schema.WeightDiversity] = wDiversity * nDiversity

	var raw float64
	for _, value := range breakdown {
		raw += value
	}
	return clamp01(raw), breakdown
}
