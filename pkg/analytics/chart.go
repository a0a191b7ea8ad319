package analytics

import (
	"gonum.org/v1/gonum/floats"

	"github.com/vjranagit/gaitmetrics/pkg/types"
)

// DefaultDateLayout formats point dates for axis labels
const DefaultDateLayout = "01-02"

// Projector maps a window of a metric series onto canvas coordinates
type Projector struct {
	dateLayout string
}

// NewProjector creates a projector. An empty layout uses DefaultDateLayout.
func NewProjector(dateLayout string) *Projector {
	if dateLayout == "" {
		dateLayout = DefaultDateLayout
	}
	return &Projector{dateLayout: dateLayout}
}

// Projection is the geometry of one chart
type Projection struct {
	Points []types.ChartPoint `json:"points"`
	Min    float64            `json:"min"`
	Max    float64            `json:"max"`
	Canvas types.Canvas       `json:"canvas"`
}

// ValueAt inverts the vertical mapping, turning a y coordinate back into a value
func (p Projection) ValueAt(y float64) float64 {
	_, top, _, bottom := p.Canvas.PlotArea()
	if p.Max == p.Min || bottom == top {
		return p.Min
	}
	return p.Min + (bottom-y)/(bottom-top)*(p.Max-p.Min)
}

type windowPoint struct {
	index int
	value float64
	date  string
}

// Project lays out the last window records of a series. A window of zero or
// less covers the whole series. Absent values are skipped and points are
// spaced by order of appearance, not by elapsed time.
func (p *Projector) Project(series types.MetricSeries, window int, canvas types.Canvas) Projection {
	proj := Projection{Points: []types.ChartPoint{}, Canvas: canvas}

	start := 0
	if window > 0 && len(series) > window {
		start = len(series) - window
	}

	pts := make([]windowPoint, 0, len(series)-start)
	for _, e := range series[start:] {
		if !e.Value.Valid {
			continue
		}
		pts = append(pts, windowPoint{
			index: e.Index,
			value: e.Value.Float64,
			date:  p.formatDate(e.Record),
		})
	}

	if len(pts) == 0 {
		return proj
	}

	left, top, right, bottom := canvas.PlotArea()
	midX := left + (right-left)/2
	midY := top + (bottom-top)/2

	if len(pts) == 1 {
		proj.Min, proj.Max = pts[0].value, pts[0].value
		proj.Points = append(proj.Points, types.ChartPoint{
			X:     midX,
			Y:     midY,
			Value: pts[0].value,
			Date:  pts[0].date,
			Index: pts[0].index,
		})
		return proj
	}

	values := make([]float64, len(pts))
	for i, pt := range pts {
		values[i] = pt.value
	}
	proj.Min = floats.Min(values)
	proj.Max = floats.Max(values)
	span := proj.Max - proj.Min

	step := (right - left) / float64(len(pts)-1)
	for i, pt := range pts {
		y := midY
		if span != 0 {
			y = bottom - (pt.value-proj.Min)/span*(bottom-top)
		}
		proj.Points = append(proj.Points, types.ChartPoint{
			X:     left + float64(i)*step,
			Y:     y,
			Value: pt.value,
			Date:  pt.date,
			Index: pt.index,
		})
	}

	return proj
}

func (p *Projector) formatDate(rec types.MetricRecord) string {
	if rec.Timestamp.IsZero() {
		return ""
	}
	return rec.Timestamp.Format(p.dateLayout)
}

// Area closes a line into a polygon along the bottom of the plot area:
// bottom under the first point, the points, bottom under the last point.
// Corner vertices carry Index -1.
func Area(points []types.ChartPoint, canvas types.Canvas) []types.ChartPoint {
	if len(points) == 0 {
		return []types.ChartPoint{}
	}

	_, _, _, bottom := canvas.PlotArea()
	first, last := points[0], points[len(points)-1]

	poly := make([]types.ChartPoint, 0, len(points)+2)
	poly = append(poly, types.ChartPoint{X: first.X, Y: bottom, Index: -1})
	poly = append(poly, points...)
	poly = append(poly, types.ChartPoint{X: last.X, Y: bottom, Index: -1})
	return poly
}
