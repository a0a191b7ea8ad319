package dashboard

import (
	"fmt"
	"strconv"

	"gopkg.in/guregu/null.v3"

	"github.com/vjranagit/gaitmetrics/pkg/analytics"
	"github.com/vjranagit/gaitmetrics/pkg/types"
)

// NoData is shown in place of a missing latest value
const NoData = "no data"

// SeriesSource yields the series of a metric
type SeriesSource interface {
	Collect(name string) types.MetricSeries
}

// Options controls how views are derived
type Options struct {
	// Window is the number of most recent records charted; zero or less charts all
	Window   int
	Canvas   types.Canvas
	WithArea bool
}

// DefaultOptions charts the last ten uploads on the sparkline canvas
func DefaultOptions() Options {
	return Options{
		Window:   10,
		Canvas:   types.SparklineCanvas(),
		WithArea: true,
	}
}

// MetricView is everything the UI needs to render one metric card
type MetricView struct {
	Name        string             `json:"name"`
	Label       string             `json:"label"`
	Unit        string             `json:"unit"`
	Latest      null.Float         `json:"latest"`
	LatestText  string             `json:"latestText"`
	Status      types.Status       `json:"status"`
	Trend       types.Trend        `json:"trend"`
	TrendGlyph  string             `json:"trendGlyph"`
	Points      []types.ChartPoint `json:"points"`
	Area        []types.ChartPoint `json:"area,omitempty"`
	ChartMin    float64            `json:"chartMin"`
	ChartMax    float64            `json:"chartMax"`
	Range       types.NormalRange  `json:"range"`
	RangeNote   string             `json:"rangeNote"`
	Config      types.MetricConfig `json:"config"`
	Explanation string             `json:"explanation"`
	WarningText string             `json:"warningText,omitempty"`
}

// Dashboard composes range, trend and chart per metric.
// It holds no state derived from the series.
type Dashboard struct {
	catalog   *Catalog
	ranges    *analytics.RangeCalculator
	projector *analytics.Projector
}

// New creates a dashboard. Nil collaborators are replaced by defaults.
func New(catalog *Catalog, ranges *analytics.RangeCalculator, projector *analytics.Projector) *Dashboard {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if ranges == nil {
		ranges = analytics.NewRangeCalculator(analytics.DefaultRangeOptions())
	}
	if projector == nil {
		projector = analytics.NewProjector("")
	}
	return &Dashboard{catalog: catalog, ranges: ranges, projector: projector}
}

// Catalog returns the metric knowledge table in use
func (d *Dashboard) Catalog() *Catalog {
	return d.catalog
}

// Build returns one view per catalogued metric, in catalog order
func (d *Dashboard) Build(src SeriesSource, opts Options) []MetricView {
	names := d.catalog.Names()
	views := make([]MetricView, 0, len(names))
	for _, name := range names {
		info, _ := d.catalog.Lookup(name)
		views = append(views, d.Compose(info, src.Collect(name), opts))
	}
	return views
}

// View returns the view of a single catalogued metric
func (d *Dashboard) View(src SeriesSource, name string, opts Options) (MetricView, bool) {
	info, ok := d.catalog.Lookup(name)
	if !ok {
		return MetricView{}, false
	}
	return d.Compose(info, src.Collect(name), opts), true
}

// Compose derives a view from a series snapshot
func (d *Dashboard) Compose(info MetricInfo, s types.MetricSeries, opts Options) MetricView {
	normal, computed := d.ranges.Compute(s, info.Baseline)
	proj := d.projector.Project(s, opts.Window, opts.Canvas)
	trend := analytics.Classify(s)

	view := MetricView{
		Name:        info.Name,
		Label:       info.Label,
		Unit:        info.Unit,
		LatestText:  NoData,
		Status:      types.StatusNone,
		Trend:       trend,
		TrendGlyph:  trend.Glyph(),
		Points:      proj.Points,
		ChartMin:    proj.Min,
		ChartMax:    proj.Max,
		Range:       normal,
		RangeNote:   rangeNote(normal, computed),
		Explanation: info.Explanation,
		Config: types.MetricConfig{
			Unit:     info.Unit,
			Baseline: info.Baseline,
			Stats:    computed,
		},
	}

	if opts.WithArea {
		view.Area = analytics.Area(proj.Points, opts.Canvas)
	}

	if latest, ok := s.Latest(); ok {
		v := latest.Value.Float64
		view.Latest = latest.Value
		view.LatestText = formatValue(v, info.Unit)
		if normal.Contains(v) {
			view.Status = types.StatusNormal
		} else {
			view.Status = types.StatusWarning
			view.WarningText = info.WarningText
		}
	}

	return view
}

func formatValue(v float64, unit string) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if unit == "" {
		return s
	}
	return s + " " + unit
}

func rangeNote(r types.NormalRange, computed *types.ComputedStats) string {
	if r.Basis == types.BasisBaseline {
		return fmt.Sprintf("历史数据不足（%d 条），使用参考范围", r.SampleSize)
	}
	note := fmt.Sprintf("基于您的 %d 次有效记录", r.SampleSize)
	if computed != nil && computed.OutliersFiltered > 0 {
		note += fmt.Sprintf("，已自动过滤 %d 个异常值", computed.OutliersFiltered)
	}
	return note
}
