package analytics

import (
	"fmt"
	"time"

	"gopkg.in/guregu/null.v3"

	"github.com/vjranagit/gaitmetrics/pkg/types"
)

var day0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// seriesOf builds a series one record per value; nil is an absent value
func seriesOf(values ...any) types.MetricSeries {
	out := make(types.MetricSeries, 0, len(values))
	for i, v := range values {
		var val null.Float
		switch x := v.(type) {
		case float64:
			val = null.FloatFrom(x)
		case int:
			val = null.FloatFrom(float64(x))
		}
		out = append(out, types.SeriesEntry{
			Index: i,
			Record: types.MetricRecord{
				ID:        fmt.Sprintf("r%d", i),
				Timestamp: day0.AddDate(0, 0, i),
			},
			Value: val,
		})
	}
	return out
}
