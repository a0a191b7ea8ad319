package analytics

import (
	"math"

	"github.com/montanaflynn/stats"

	"github.com/vjranagit/gaitmetrics/pkg/types"
)

// OutlierMethod selects how a value's deviation is measured
type OutlierMethod string

const (
	// OutlierJackknife tests each value against the mean and sample standard
	// deviation of all the other values.
	OutlierJackknife OutlierMethod = "jackknife"
	// OutlierPopulation tests each value against the mean and population
	// standard deviation of the whole set, the value itself included.
	OutlierPopulation OutlierMethod = "population"
)

// absorbs rounding in the mean of identical values
const equalTolerance = 1e-9

// RangeOptions tunes the personalized range derivation
type RangeOptions struct {
	// K is the number of standard deviations a value may sit from the mean
	K float64
	// MinSamples is the smallest history that earns a personalized range
	MinSamples int
	// MinRetained is the smallest filtered set still considered usable
	MinRetained int
	Method      OutlierMethod
	// LowPercentile and HighPercentile narrow the range to a percentile band
	// of the filtered values. Zero means min/max.
	LowPercentile  float64
	HighPercentile float64
}

// DefaultRangeOptions returns the defaults used by the dashboard
func DefaultRangeOptions() RangeOptions {
	return RangeOptions{
		K:           2,
		MinSamples:  5,
		MinRetained: 2,
		Method:      OutlierJackknife,
	}
}

// RangeCalculator derives a normal range per metric from its history
type RangeCalculator struct {
	opts RangeOptions
}

// NewRangeCalculator creates a calculator, filling unset options with defaults
func NewRangeCalculator(opts RangeOptions) *RangeCalculator {
	def := DefaultRangeOptions()
	if opts.K <= 0 {
		opts.K = def.K
	}
	if opts.MinSamples <= 0 {
		opts.MinSamples = def.MinSamples
	}
	if opts.MinRetained <= 0 {
		opts.MinRetained = def.MinRetained
	}
	if opts.Method == "" {
		opts.Method = def.Method
	}
	return &RangeCalculator{opts: opts}
}

// Options returns the effective options
func (rc *RangeCalculator) Options() RangeOptions {
	return rc.opts
}

// Compute returns the range to present as normal and the statistics behind it.
// Stats is nil when the series holds no numeric value at all.
func (rc *RangeCalculator) Compute(series types.MetricSeries, baseline [2]float64) (types.NormalRange, *types.ComputedStats) {
	valid := series.Valid()
	if len(valid) == 0 {
		return baselineRange(baseline, 0), nil
	}

	computed := &types.ComputedStats{ValidCount: len(valid)}
	if len(valid) < rc.opts.MinSamples {
		return baselineRange(baseline, len(valid)), computed
	}

	filtered := rc.FilterOutliers(valid)
	computed.OutliersFiltered = len(valid) - len(filtered)
	if len(filtered) < rc.opts.MinRetained {
		return baselineRange(baseline, len(valid)), computed
	}

	low, high := rc.bounds(filtered)
	return types.NormalRange{
		Low:        low,
		High:       high,
		Basis:      types.BasisPersonalized,
		SampleSize: len(filtered),
	}, computed
}

// FilterOutliers returns the values within K standard deviations, in order
func (rc *RangeCalculator) FilterOutliers(values []float64) []float64 {
	if len(values) < 2 {
		return append([]float64(nil), values...)
	}

	switch rc.opts.Method {
	case OutlierPopulation:
		return rc.filterPopulation(values)
	default:
		return rc.filterJackknife(values)
	}
}

func (rc *RangeCalculator) filterPopulation(values []float64) []float64 {
	mean, _ := stats.Mean(values)
	sd, _ := stats.StandardDeviationPopulation(values)

	kept := make([]float64, 0, len(values))
	for _, v := range values {
		if within(v, mean, sd, rc.opts.K) {
			kept = append(kept, v)
		}
	}
	return kept
}

func (rc *RangeCalculator) filterJackknife(values []float64) []float64 {
	kept := make([]float64, 0, len(values))
	others := make([]float64, 0, len(values)-1)

	for i, v := range values {
		others = others[:0]
		others = append(others, values[:i]...)
		others = append(others, values[i+1:]...)

		mean, _ := stats.Mean(others)
		sd := 0.0
		if len(others) > 1 {
			sd, _ = stats.StandardDeviationSample(others)
		}

		if within(v, mean, sd, rc.opts.K) {
			kept = append(kept, v)
		}
	}
	return kept
}

// within reports whether v is no further than k·sd from mean.
// With zero deviation only values equal to the mean qualify.
func within(v, mean, sd, k float64) bool {
	if sd == 0 || math.IsNaN(sd) {
		return math.Abs(v-mean) <= equalTolerance*math.Max(1, math.Abs(mean))
	}
	return math.Abs(v-mean) <= k*sd
}

func (rc *RangeCalculator) bounds(filtered []float64) (float64, float64) {
	low, _ := stats.Min(filtered)
	high, _ := stats.Max(filtered)

	if rc.opts.LowPercentile <= 0 || rc.opts.HighPercentile <= 0 {
		return low, high
	}

	pLow, errLow := stats.Percentile(filtered, rc.opts.LowPercentile)
	pHigh, errHigh := stats.Percentile(filtered, rc.opts.HighPercentile)
	if errLow != nil || errHigh != nil || pLow > pHigh {
		return low, high
	}
	return pLow, pHigh
}

func baselineRange(baseline [2]float64, sampleSize int) types.NormalRange {
	return types.NormalRange{
		Low:        math.Min(baseline[0], baseline[1]),
		High:       math.Max(baseline[0], baseline[1]),
		Basis:      types.BasisBaseline,
		SampleSize: sampleSize,
	}
}
