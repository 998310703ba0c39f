package attention

import (
	"github.com/quantumclean/heatshield/schema"
)

// dailyCounts buckets a unit's signals into one count per window day,
// zero-filling days with no activity. Signals dated outside the window are
// skipped rather than clamped onto an edge day.
func dailyCounts(u *schema.AggregationUnit) []int {
	days := u.Window.Days()
	if days < 1 {
		return nil
	}
	counts := make([]int, days)
	start := u.Window.StartTime()
	for _, s := range u.Signals {
		t, err := s.Time()
		if err != nil {
			continue
		}
		idx := int(t.Sub(start).Hours() / 24)
		if idx < 0 || idx >= days {
			continue
		}
		counts[idx]++
	}
	return counts
}

// leastSquaresSlope fits counts against day indexes 0..n-1 and returns the
// slope in signals per day. Fewer than two days has no defined slope.
func leastSquaresSlope(counts []int) float64 {
	n := len(counts)
	if n < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range counts {
		x := float64(i)
		sumX += x
		sumY += float64(y)
		sumXY += x * float64(y)
		sumXX += x * x
	}

	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (fn*sumXY - sumX*sumY) / denom
}

// computeTrend fits the unit's per-day counts and returns the trend plus the
// slope expressed as a signed percentage of the mean daily volume, which is
// what explanations show. A flat or empty window reports a stable trend at 0%.
func computeTrend(u *schema.AggregationUnit, threshold float64) (schema.TrendInfo, float64) {
	counts := dailyCounts(u)
	slope := leastSquaresSlope(counts)

	var total float64
	for _, c := range counts {
		total += float64(c)
	}

	var percent float64
	if len(counts) > 0 {
		if mean := total / float64(len(counts)); mean > 0 {
			percent = slope / mean * 100
		}
	}
	return schema.NewTrendInfo(slope, threshold), percent
}

// trendWindowShort reports whether the window covers fewer days than the
// minimum needed for a dependable slope estimate.
func trendWindowShort(window schema.TimeWindow, minDays int) bool {
	return window.Days() < minDays
}
