package storage

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/vjranagit/gaitmetrics/pkg/types"
)

func TestCodecRoundTrip(t *testing.T) {
	codec, err := NewCodec(2)
	if err != nil {
		t.Fatalf("Failed to create codec: %v", err)
	}
	defer codec.Close()

	rec := types.MetricRecord{
		ID:          "r1",
		Timestamp:   time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC),
		SourceRef:   "walk.mp4",
		FallWarning: "警告：在 3.20 秒检测到摔倒",
		Metrics: map[string]any{
			"步频":   112.5,
			"对称性指数": nil,
			"平均步长":  "n/a",
		},
	}

	payload, err := codec.Encode(&rec)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	got, err := codec.Decode(payload)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if got.ID != rec.ID || got.SourceRef != rec.SourceRef || got.FallWarning != rec.FallWarning {
		t.Errorf("Header mismatch: %+v", got)
	}
	if !got.Timestamp.Equal(rec.Timestamp) {
		t.Errorf("Expected timestamp %v, got %v", rec.Timestamp, got.Timestamp)
	}
	if got.Metrics["步频"] != 112.5 {
		t.Errorf("Expected cadence 112.5, got %v", got.Metrics["步频"])
	}
	if v, ok := got.Metrics["对称性指数"]; !ok || v != nil {
		t.Errorf("Expected explicit null to survive, got %v (present=%v)", v, ok)
	}
	if got.Metrics["平均步长"] != "n/a" {
		t.Errorf("Expected raw string to survive, got %v", got.Metrics["平均步长"])
	}
}

func TestCodecCompresses(t *testing.T) {
	for level := 1; level <= 4; level++ {
		codec, err := NewCodec(level)
		if err != nil {
			t.Fatalf("Failed to create codec at level %d: %v", level, err)
		}

		rec := types.MetricRecord{
			ID:        "r1",
			SourceRef: strings.Repeat("session-", 200),
			Metrics:   map[string]any{"步频": 100.0},
		}

		payload, err := codec.Encode(&rec)
		if err != nil {
			t.Fatalf("Encode failed at level %d: %v", level, err)
		}
		if len(payload) >= len(rec.SourceRef) {
			t.Errorf("Compression ineffective at level %d: %d bytes", level, len(payload))
		}
		codec.Close()
	}
}

func TestCodecRejectsGarbage(t *testing.T) {
	codec, err := NewCodec(3)
	if err != nil {
		t.Fatalf("Failed to create codec: %v", err)
	}
	defer codec.Close()

	if _, err := codec.Decode(bytes.Repeat([]byte{0x42}, 16)); err == nil {
		t.Error("Expected error decoding non-zstd payload")
	}
}

func TestCodecEmptyMetrics(t *testing.T) {
	codec, err := NewCodec(3)
	if err != nil {
		t.Fatalf("Failed to create codec: %v", err)
	}
	defer codec.Close()

	payload, err := codec.Encode(&types.MetricRecord{ID: "r1"})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	got, err := codec.Decode(payload)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.Metrics == nil {
		t.Error("Expected decoded metrics to be an empty map")
	}
}
