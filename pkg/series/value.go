package series

import (
	"math"
	"strconv"
	"strings"

	"gopkg.in/guregu/null.v3"
)

// ParseValue coerces a raw metric value into a number or absent.
// It never fails: nil, booleans, unparsable strings, NaN and ±Inf are absent.
func ParseValue(raw any) null.Float {
	var f float64

	switch v := raw.(type) {
	case nil:
		return null.Float{}
	case null.Float:
		if !v.Valid {
			return v
		}
		f = v.Float64
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return null.Float{}
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return null.Float{}
		}
		f = parsed
	case interface{ Float64() (float64, error) }:
		// json.Number and friends
		parsed, err := v.Float64()
		if err != nil {
			return null.Float{}
		}
		f = parsed
	default:
		return null.Float{}
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return null.Float{}
	}
	return null.FloatFrom(f)
}
