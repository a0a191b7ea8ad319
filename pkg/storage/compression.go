package storage

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"

	"github.com/vjranagit/gaitmetrics/pkg/types"
)

// Codec turns records into compressed payloads and back
type Codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCodec creates a codec with a compression level between 1 and 4
func NewCodec(level int) (*Codec, error) {
	encLevel := zstd.SpeedDefault
	switch level {
	case 1:
		encLevel = zstd.SpeedFastest
	case 2:
		encLevel = zstd.SpeedDefault
	case 3:
		encLevel = zstd.SpeedBetterCompression
	case 4:
		encLevel = zstd.SpeedBestCompression
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	return &Codec{
		encoder: encoder,
		decoder: decoder,
	}, nil
}

// Encode serialises a record as zstd-compressed JSON
func (c *Codec) Encode(rec *types.MetricRecord) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	return c.encoder.EncodeAll(data, make([]byte, 0, len(data))), nil
}

// Decode restores a record written by Encode
func (c *Codec) Decode(payload []byte) (types.MetricRecord, error) {
	var rec types.MetricRecord

	data, err := c.decoder.DecodeAll(payload, nil)
	if err != nil {
		return rec, fmt.Errorf("decompression failed: %w", err)
	}

	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	if rec.Metrics == nil {
		rec.Metrics = map[string]any{}
	}
	return rec, nil
}

// Close closes the codec resources
func (c *Codec) Close() {
	if c.encoder != nil {
		c.encoder.Close()
	}
	if c.decoder != nil {
		c.decoder.Close()
	}
}
