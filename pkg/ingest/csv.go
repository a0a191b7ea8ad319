package ingest

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/vjranagit/gaitmetrics/pkg/series"
)

const (
	columnMetric = "指标"
	columnValue  = "数值"
	columnUnit   = "单位"

	warningMarker = "警告："
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Analysis is the content of one per-upload analysis CSV
type Analysis struct {
	Metrics     map[string]any
	Units       map[string]string
	FallWarning string
}

// ParseAnalysisCSV reads the `指标,数值,单位` table written by the analysis
// pipeline. Empty values become absent; a trailing "警告：..." line is kept as
// the fall warning.
func ParseAnalysisCSV(r io.Reader) (*Analysis, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	analysis := &Analysis{
		Metrics: make(map[string]any),
		Units:   make(map[string]string),
	}

	// The warning line is free text and may contain commas.
	var table bytes.Buffer
	for _, line := range strings.Split(string(data), "\n") {
		if trimmed := strings.TrimSpace(line); strings.HasPrefix(trimmed, warningMarker) {
			analysis.FallWarning = trimmed
			continue
		}
		table.WriteString(line)
		table.WriteByte('\n')
	}

	reader := csv.NewReader(&table)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, series.NewValidationError("csv", "empty analysis file")
	}
	if err != nil {
		return nil, series.NewValidationError("csv", err.Error())
	}

	metricCol, valueCol, unitCol := -1, -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case columnMetric:
			metricCol = i
		case columnValue:
			valueCol = i
		case columnUnit:
			unitCol = i
		}
	}
	if metricCol < 0 || valueCol < 0 {
		return nil, series.NewValidationError("csv", "missing 指标/数值 header")
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, series.NewValidationError("csv", err.Error())
		}

		if len(row) <= metricCol || len(row) <= valueCol {
			continue
		}

		name := strings.TrimSpace(row[metricCol])
		if name == "" {
			continue
		}
		analysis.Metrics[name] = csvValue(row[valueCol])
		if unitCol >= 0 && unitCol < len(row) {
			analysis.Units[name] = strings.TrimSpace(row[unitCol])
		}
	}

	return analysis, nil
}

func csvValue(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
