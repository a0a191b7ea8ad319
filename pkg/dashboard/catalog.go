package dashboard

import (
	"sort"

	"github.com/samber/lo"
)

// MetricInfo is the static knowledge attached to one metric name
type MetricInfo struct {
	Name        string     `json:"name"`
	Label       string     `json:"label"`
	Unit        string     `json:"unit"`
	Baseline    [2]float64 `json:"baselineRange"`
	Explanation string     `json:"explanation"`
	WarningText string     `json:"warningText"`
}

// Catalog is an ordered lookup table of metric knowledge
type Catalog struct {
	order   []string
	entries map[string]MetricInfo
}

// NewCatalog builds a catalog; later entries with the same name replace earlier ones
func NewCatalog(infos ...MetricInfo) *Catalog {
	c := &Catalog{entries: make(map[string]MetricInfo, len(infos))}
	for _, info := range infos {
		if _, exists := c.entries[info.Name]; !exists {
			c.order = append(c.order, info.Name)
		}
		c.entries[info.Name] = info
	}
	return c
}

// Lookup returns the knowledge for a metric
func (c *Catalog) Lookup(name string) (MetricInfo, bool) {
	info, ok := c.entries[name]
	return info, ok
}

// Names returns metric names in catalog order
func (c *Catalog) Names() []string {
	return append([]string(nil), c.order...)
}

// Units maps metric names to units
func (c *Catalog) Units() map[string]string {
	return lo.MapValues(c.entries, func(info MetricInfo, _ string) string { return info.Unit })
}

// Unknown returns the names not present in the catalog, sorted
func (c *Catalog) Unknown(names []string) []string {
	out := lo.Filter(names, func(name string, _ int) bool {
		_, ok := c.entries[name]
		return !ok
	})
	sort.Strings(out)
	return out
}

// Metric names emitted by the gait analysis pipeline.
const (
	MetricCadence        = "步频"
	MetricGaitCycle      = "步态周期"
	MetricSymmetry       = "对称性指数"
	MetricVariability    = "变异系数"
	MetricTorsoStability = "躯干稳定性"
	MetricTorsoTilt      = "躯干倾斜角"
	MetricStepLength     = "平均步长"
	MetricSwingAmplitude = "摆动幅度"
	MetricKneeROM        = "膝关节活动度"
)

// DefaultCatalog covers the nine metrics of the gait analysis pipeline
func DefaultCatalog() *Catalog {
	return NewCatalog(
		MetricInfo{
			Name:        MetricCadence,
			Label:       "Cadence",
			Unit:        "步/分",
			Baseline:    [2]float64{100, 120},
			Explanation: "每分钟迈出的步数，反映行走节奏。",
			WarningText: "步频偏离正常范围，可能提示行走节奏异常。",
		},
		MetricInfo{
			Name:        MetricGaitCycle,
			Label:       "Gait cycle",
			Unit:        "秒",
			Baseline:    [2]float64{0.9, 1.2},
			Explanation: "同一只脚连续两次落地之间的时间。",
			WarningText: "步态周期异常，行走节奏可能不稳定。",
		},
		MetricInfo{
			Name:        MetricSymmetry,
			Label:       "Symmetry index",
			Unit:        "%",
			Baseline:    [2]float64{0, 10},
			Explanation: "左右步态周期的差异，越小越对称。",
			WarningText: "左右不对称程度较高，建议关注单侧负重。",
		},
		MetricInfo{
			Name:        MetricVariability,
			Label:       "Cycle variability",
			Unit:        "%",
			Baseline:    [2]float64{0, 5},
			Explanation: "步态周期的变异系数，越小越稳定。",
			WarningText: "步态变异较大，跌倒风险可能升高。",
		},
		MetricInfo{
			Name:        MetricTorsoStability,
			Label:       "Torso stability",
			Unit:        "度/帧",
			Baseline:    [2]float64{0, 0.5},
			Explanation: "躯干倾斜角的帧间平均变化，越小越稳定。",
			WarningText: "躯干晃动明显，平衡能力可能下降。",
		},
		MetricInfo{
			Name:        MetricTorsoTilt,
			Label:       "Torso tilt",
			Unit:        "度",
			Baseline:    [2]float64{0, 10},
			Explanation: "躯干相对竖直方向的平均倾斜角度。",
			WarningText: "躯干前倾或侧倾明显。",
		},
		MetricInfo{
			Name:        MetricStepLength,
			Label:       "Step length",
			Unit:        "相对值",
			Baseline:    [2]float64{0.05, 0.25},
			Explanation: "相邻两次落地的水平位移（画面归一化坐标）。",
			WarningText: "步长变化明显，可能存在拖步或步幅受限。",
		},
		MetricInfo{
			Name:        MetricSwingAmplitude,
			Label:       "Swing amplitude",
			Unit:        "相对值",
			Baseline:    [2]float64{0.02, 0.15},
			Explanation: "脚踝纵向运动范围，反映抬腿高度。",
			WarningText: "摆动幅度异常，抬腿可能不足。",
		},
		MetricInfo{
			Name:        MetricKneeROM,
			Label:       "Knee range of motion",
			Unit:        "度",
			Baseline:    [2]float64{40, 70},
			Explanation: "行走过程中膝关节角度的变化范围。",
			WarningText: "膝关节活动度异常，建议进一步评估。",
		},
	)
}
