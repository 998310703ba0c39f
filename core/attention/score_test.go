package attention

import (
	"fmt"
	"math"
	"testing"

	"github.com/quantumclean/heatshield/internal/contract"
	"github.com/quantumclean/heatshield/schema"
	"github.com/stretchr/testify/assert"
)

func scoringConfig() *contract.Config {
	return &contract.Config{
		Weights:            schema.GetDefaultScoreWeights(),
		DecayHalfLifeHours: contract.DefaultHalfLifeHours,
		VolumeSaturation:   contract.DefaultVolumeSaturation,
		MinGroupSize:       contract.DefaultMinGroupSize,
		MinTrendWindowDays: contract.DefaultMinTrendWindowDays,
		StabilityThreshold: schema.DefaultStabilityThreshold,
	}
}

// unitWithSignals builds a week-long unit over the given signals.
func unitWithSignals(signals ...schema.Signal) *schema.AggregationUnit {
	return &schema.AggregationUnit{
		ID:      "unit-score",
		ZIP:     "60601",
		Window:  schema.TimeWindow{Start: "2025-06-01", End: "2025-06-07"},
		Signals: signals,
	}
}

func TestDecayedVolume(t *testing.T) {
	tests := []struct {
		name     string
		signals  []schema.Signal
		expected float64
	}{
		{
			name: "signal at window end has full weight",
			signals: []schema.Signal{
				{Text: "a", Source: "s1", Date: "2025-06-07"},
			},
			expected: 1.0,
		},
		{
			name: "one half life halves the weight",
			signals: []schema.Signal{
				{Text: "a", Source: "s1", Date: "2025-06-04"},
			},
			expected: 0.5,
		},
		{
			name: "weights accumulate across signals",
			signals: []schema.Signal{
				{Text: "a", Source: "s1", Date: "2025-06-07"},
				{Text: "b", Source: "s1", Date: "2025-06-04"},
			},
			expected: 1.5,
		},
		{
			name: "exact duplicates count once",
			signals: []schema.Signal{
				{Text: "a", Source: "s1", Date: "2025-06-07"},
				{Text: "a", Source: "s1", Date: "2025-06-07"},
			},
			expected: 1.0,
		},
		{
			name: "date past the window end does not exceed full weight",
			signals: []schema.Signal{
				{Text: "a", Source: "s1", Date: "2025-06-10"},
			},
			expected: 1.0,
		},
		{
			name: "unparseable dates contribute nothing",
			signals: []schema.Signal{
				{Text: "a", Source: "s1", Date: "soon"},
			},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decayedVolume(unitWithSignals(tt.signals...), 72)
			assert.InDelta(t, tt.expected, got, 0.001)
		})
	}
}

func TestNoveltyScore(t *testing.T) {
	tests := []struct {
		name     string
		current  float64
		baseline float64
		expected float64
	}{
		{"at baseline", 1, 1, 0.0},
		{"below baseline clamps to zero", 0.5, 1, 0.0},
		{"double the baseline", 2, 1, 1.0 / 3.0},
		{"triple the baseline", 3, 1, 0.5},
		{"no history saturates", 5, 0, 1.0},
		{"nothing at all", 0, 0, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, noveltyScore(tt.current, tt.baseline), 0.001)
		})
	}
}

func TestComputeScoreWithoutBaseline(t *testing.T) {
	cfg := scoringConfig()
	cfg.VolumeSaturation = 4

	// Two full-weight signals against saturation 4 gives volume 0.5; one
	// category of five gives diversity 0.2. With no baseline the novelty
	// weight 0.2 redistributes onto volume and diversity proportionally.
	u := unitWithSignals(
		schema.Signal{Text: "a", Source: "s1", Category: schema.NewsSource, Date: "2025-06-07"},
		schema.Signal{Text: "b", Source: "s2", Category: schema.NewsSource, Date: "2025-06-07"},
	)

	score, breakdown := computeScore(u, nil, cfg)

	assert.InDelta(t, 0.625*0.5+0.375*0.2, score, 0.001)
	assert.NotContains(t, breakdown, schema.WeightNovelty)
	assert.InDelta(t, 0.625*0.5, breakdown[schema.WeightVolume], 0.001)
}

func TestComputeScoreWithBaseline(t *testing.T) {
	cfg := scoringConfig()
	cfg.VolumeSaturation = 4

	u := unitWithSignals(
		schema.Signal{Text: "a", Source: "s1", Category: schema.NewsSource, Date: "2025-06-07"},
		schema.Signal{Text: "b", Source: "s2", Category: schema.NewsSource, Date: "2025-06-07"},
	)

	// Current daily volume 2/7 sits below baseline 1.0, so novelty is zero
	// and its weight is NOT redistributed: the score must come in under the
	// no-baseline score for the same unit.
	baseline := 1.0
	withBaseline, breakdown := computeScore(u, &baseline, cfg)
	withoutBaseline, _ := computeScore(u, nil, cfg)

	assert.InDelta(t, 0.5*0.5+0.3*0.2, withBaseline, 0.001)
	assert.Contains(t, breakdown, schema.WeightNovelty)
	assert.Less(t, withBaseline, withoutBaseline)
}

func TestComputeScoreSaturates(t *testing.T) {
	cfg := scoringConfig()

	// Far more distinct fresh signals than the saturation point across every
	// category: both components pinned at 1.0 and the score lands at 1.0.
	var signals []schema.Signal
	for i := range 40 {
		signals = append(signals, schema.Signal{
			Text:     fmt.Sprintf("report %d", i),
			Source:   fmt.Sprintf("s%d", i),
			Category: schema.AllSourceCategories[i%len(schema.AllSourceCategories)],
			Date:     "2025-06-07",
		})
	}

	score, _ := computeScore(unitWithSignals(signals...), nil, cfg)
	assert.InDelta(t, 1.0, score, 0.001)
}

// TestComputeScoreMonotonicity checks the ordering guarantees: more recent,
// more corroborated and more novel activity never lowers the score.
func TestComputeScoreMonotonicity(t *testing.T) {
	cfg := scoringConfig()

	t.Run("recency", func(t *testing.T) {
		older := unitWithSignals(schema.Signal{Text: "a", Source: "s1", Category: schema.NewsSource, Date: "2025-06-01"})
		newer := unitWithSignals(schema.Signal{Text: "a", Source: "s1", Category: schema.NewsSource, Date: "2025-06-07"})

		oldScore, _ := computeScore(older, nil, cfg)
		newScore, _ := computeScore(newer, nil, cfg)
		assert.GreaterOrEqual(t, newScore, oldScore)
	})

	t.Run("corroboration", func(t *testing.T) {
		single := unitWithSignals(
			schema.Signal{Text: "a", Source: "s1", Category: schema.NewsSource, Date: "2025-06-07"},
			schema.Signal{Text: "b", Source: "s2", Category: schema.NewsSource, Date: "2025-06-07"},
		)
		corroborated := unitWithSignals(
			schema.Signal{Text: "a", Source: "s1", Category: schema.NewsSource, Date: "2025-06-07"},
			schema.Signal{Text: "b", Source: "s2", Category: schema.OfficialSource, Date: "2025-06-07"},
		)

		singleScore, _ := computeScore(single, nil, cfg)
		corroboratedScore, _ := computeScore(corroborated, nil, cfg)
		assert.GreaterOrEqual(t, corroboratedScore, singleScore)
	})

	t.Run("novelty", func(t *testing.T) {
		u := unitWithSignals(
			schema.Signal{Text: "a", Source: "s1", Category: schema.NewsSource, Date: "2025-06-07"},
			schema.Signal{Text: "b", Source: "s2", Category: schema.NewsSource, Date: "2025-06-07"},
		)

		quietHistory := 0.1
		busyHistory := 5.0
		novelScore, _ := computeScore(u, &quietHistory, cfg)
		routineScore, _ := computeScore(u, &busyHistory, cfg)
		assert.GreaterOrEqual(t, novelScore, routineScore)
	})
}

func TestComputeScoreBounds(t *testing.T) {
	cfg := scoringConfig()

	// Zero-value config falls back to defaults rather than zeroing the score.
	empty := &contract.Config{}
	score, _ := computeScore(unitWithSignals(
		schema.Signal{Text: "a", Source: "s1", Category: schema.NewsSource, Date: "2025-06-07"},
	), nil, empty)
	assert.Greater(t, score, 0.0)

	for _, n := range []int{0, 1, 5, 50} {
		var signals []schema.Signal
		for i := range n {
			signals = append(signals, schema.Signal{
				Text: fmt.Sprintf("t%d", i), Source: "s", Category: schema.NewsSource, Date: "2025-06-05",
			})
		}
		score, _ := computeScore(unitWithSignals(signals...), nil, cfg)
		assert.GreaterOrEqual(t, score, 0.0, "score below 0 for %d signals", n)
		assert.LessOrEqual(t, score, 1.0, "score above 1 for %d signals", n)
		assert.False(t, math.IsNaN(score))
	}
}
