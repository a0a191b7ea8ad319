package ingest

import (
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/vjranagit/gaitmetrics/pkg/series"
	"github.com/vjranagit/gaitmetrics/pkg/types"
)

// timestampLayouts are tried in order for string timestamps
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseRecordJSON reads a record as produced by the analysis pipeline:
//
//	{"id": ..., "timestamp": ..., "sourceRef": ..., "metrics": {"步频": 110.2, "步长": null}}
//
// A missing timestamp is left zero. Values inside metrics are kept raw and
// coerced when read from the store.
func ParseRecordJSON(data []byte) (types.MetricRecord, error) {
	var rec types.MetricRecord

	if !gjson.ValidBytes(data) {
		return rec, series.NewValidationError("body", "invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return rec, series.NewValidationError("body", "must be a JSON object")
	}

	metrics := root.Get("metrics")
	if !metrics.IsObject() {
		return rec, series.NewValidationError("metrics", "must be a mapping of metric name to value")
	}

	rec.Metrics = make(map[string]any)
	metrics.ForEach(func(key, value gjson.Result) bool {
		rec.Metrics[key.String()] = rawValue(value)
		return true
	})

	rec.ID = strings.TrimSpace(root.Get("id").String())
	rec.SourceRef = firstString(root, "sourceRef", "source_ref", "filename")
	rec.FallWarning = firstString(root, "fallWarning", "fall_warning")

	ts := root.Get("timestamp")
	if !ts.Exists() {
		ts = root.Get("date")
	}
	if ts.Exists() && ts.Type != gjson.Null {
		parsed, err := parseTimestamp(ts)
		if err != nil {
			return rec, err
		}
		rec.Timestamp = parsed
	}

	return rec, nil
}

func rawValue(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.Number:
		return v.Float()
	case gjson.String:
		return v.String()
	case gjson.True, gjson.False:
		return v.Bool()
	default:
		// nested objects and arrays are not metric values
		return v.Raw
	}
}

func firstString(root gjson.Result, paths ...string) string {
	for _, p := range paths {
		if r := root.Get(p); r.Exists() && r.Type != gjson.Null {
			return strings.TrimSpace(r.String())
		}
	}
	return ""
}

// epochs above this are milliseconds; in seconds it is the year 5138
const maxEpochSeconds = 1e11

func parseTimestamp(ts gjson.Result) (time.Time, error) {
	if ts.Type == gjson.Number {
		n := ts.Int()
		if n > maxEpochSeconds || n < -maxEpochSeconds {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}

	s := strings.TrimSpace(ts.String())
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, series.NewValidationError("timestamp", "unrecognised format "+s)
}
