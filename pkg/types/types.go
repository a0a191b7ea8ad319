package types

import (
	"time"

	"gopkg.in/guregu/null.v3"
)

// MetricRecord is the outcome of one completed analysis upload
type MetricRecord struct {
	ID          string         `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	SourceRef   string         `json:"sourceRef"`
	Metrics     map[string]any `json:"metrics"`
	FallWarning string         `json:"fallWarning,omitempty"`
}

// SeriesEntry pairs a record with the parsed value of one metric
type SeriesEntry struct {
	Index  int          `json:"index"`
	Record MetricRecord `json:"record"`
	Value  null.Float   `json:"value"`
}

// MetricSeries is the chronological sequence of one metric's values.
// It holds one entry per record; absent values are kept as invalid floats.
type MetricSeries []SeriesEntry

// Valid returns the numeric values in order, skipping absent ones
func (s MetricSeries) Valid() []float64 {
	out := make([]float64, 0, len(s))
	for _, e := range s {
		if e.Value.Valid {
			out = append(out, e.Value.Float64)
		}
	}
	return out
}

// Latest returns the last numeric entry of the series
func (s MetricSeries) Latest() (SeriesEntry, bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i].Value.Valid {
			return s[i], true
		}
	}
	return SeriesEntry{}, false
}

// Basis tells where a normal range came from
type Basis string

const (
	BasisPersonalized Basis = "personalized"
	BasisBaseline     Basis = "baseline"
)

// NormalRange is the interval presented as "normal" for a metric
type NormalRange struct {
	Low        float64 `json:"low"`
	High       float64 `json:"high"`
	Basis      Basis   `json:"basis"`
	SampleSize int     `json:"sampleSize"`
}

// Contains reports whether v lies within the range, bounds included
func (r NormalRange) Contains(v float64) bool {
	return v >= r.Low && v <= r.High
}

// ComputedStats summarises the history a range was derived from
type ComputedStats struct {
	ValidCount       int `json:"validCount"`
	OutliersFiltered int `json:"outliersFiltered"`
}

// MetricConfig is rebuilt from the series on every read
type MetricConfig struct {
	Unit     string         `json:"unit"`
	Baseline [2]float64     `json:"baselineRange"`
	Stats    *ComputedStats `json:"computedStats"`
}

// Trend is the short-term direction of a metric
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// Glyph returns the arrow shown next to a metric
func (t Trend) Glyph() string {
	switch t {
	case TrendUp:
		return "↑"
	case TrendDown:
		return "↓"
	default:
		return "→"
	}
}

// Status colours the latest value against its normal range
type Status string

const (
	StatusNormal  Status = "normal"
	StatusWarning Status = "warning"
	StatusNone    Status = "none"
)

// ChartPoint is one vertex in logical canvas coordinates
type ChartPoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Value float64 `json:"value"`
	Date  string  `json:"date"`
	Index int     `json:"index"`
}

// Canvas is a logical drawing surface with padding around the plot area
type Canvas struct {
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
	PaddingTop    float64 `json:"paddingTop"`
	PaddingRight  float64 `json:"paddingRight"`
	PaddingBottom float64 `json:"paddingBottom"`
	PaddingLeft   float64 `json:"paddingLeft"`
}

// SparklineCanvas is the small inline chart used in metric cards
func SparklineCanvas() Canvas {
	return Canvas{Width: 100, Height: 40, PaddingTop: 5, PaddingRight: 5, PaddingBottom: 5, PaddingLeft: 5}
}

// DetailCanvas is the enlarged chart of a single metric
func DetailCanvas() Canvas {
	return Canvas{Width: 600, Height: 250, PaddingTop: 20, PaddingRight: 20, PaddingBottom: 30, PaddingLeft: 40}
}

// PlotArea returns the bounds of the drawable region
func (c Canvas) PlotArea() (left, top, right, bottom float64) {
	return c.PaddingLeft, c.PaddingTop, c.Width - c.PaddingRight, c.Height - c.PaddingBottom
}
