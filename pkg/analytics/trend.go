package analytics

import (
	"math"

	"github.com/vjranagit/gaitmetrics/pkg/types"
)

// trendThreshold is the relative change below which a metric counts as stable
const trendThreshold = 0.05

// Classify returns the direction of a metric from its two most recent values.
// A zero previous value yields a zero threshold, so any change is a trend.
func Classify(series types.MetricSeries) types.Trend {
	previous, recent, ok := lastTwo(series)
	if !ok {
		return types.TrendStable
	}
	return ClassifyPair(previous, recent)
}

// ClassifyPair applies the trend rule to an explicit pair of values
func ClassifyPair(previous, recent float64) types.Trend {
	diff := recent - previous
	threshold := math.Abs(previous) * trendThreshold

	switch {
	case diff > threshold:
		return types.TrendUp
	case diff < -threshold:
		return types.TrendDown
	default:
		return types.TrendStable
	}
}

// lastTwo walks backwards so older history is never inspected
func lastTwo(series types.MetricSeries) (previous, recent float64, ok bool) {
	found := 0
	for i := len(series) - 1; i >= 0 && found < 2; i-- {
		if !series[i].Value.Valid {
			continue
		}
		if found == 0 {
			recent = series[i].Value.Float64
		} else {
			previous = series[i].Value.Float64
		}
		found++
	}
	return previous, recent, found == 2
}
