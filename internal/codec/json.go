package codec

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/hanpama/graphcache/internal/record"
)

// JSON encodes fields as a JSON object. Numbers are decoded as int64 when
// integral.
type JSON struct{}

func (JSON) Name() string { return "json" }

func (JSON) Encode(r *record.Record) ([]byte, error) {
	b, err := json.Marshal(toWire(map[string]any(r.Fields)))
	if err != nil {
		return nil, fmt.Errorf("codec: json: encode %s: %w", r.Key, err)
	}
	return b, nil
}

func (JSON) Decode(key string, data []byte) (*record.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("codec: json: decode %s: %w", key, err)
	}
	return toRecord(key, fromWire(raw), "json")
}
