package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hanpama/graphcache/internal/record"
	"github.com/hanpama/graphcache/internal/value"
)

// Proto encodes fields as a google.protobuf.Struct. Struct numbers are
// doubles; integral values within float64 precision decode as int64.
type Proto struct{}

func (Proto) Name() string { return "proto" }

func (Proto) Encode(r *record.Record) ([]byte, error) {
	fields, _ := toWire(map[string]any(r.Fields)).(map[string]any)
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("codec: proto: encode %s: %w", r.Key, err)
	}
	b, err := proto.MarshalOptions{Deterministic: true}.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("codec: proto: encode %s: %w", r.Key, err)
	}
	return b, nil
}

func (Proto) Decode(key string, data []byte) (*record.Record, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("codec: proto: decode %s: %w", key, err)
	}
	return toRecord(key, fromWire(integers(s.AsMap())), "proto")
}

// maxExactInt is the largest magnitude a double holds without rounding.
const maxExactInt = 1 << 53

func integers(v any) any {
	switch x := v.(type) {
	case float64:
		if i, ok := value.AsInt(x); ok && i <= maxExactInt && i >= -maxExactInt {
			return i
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = integers(e)
		}
		return x
	case map[string]any:
		for k, e := range x {
			x[k] = integers(e)
		}
		return x
	default:
		return v
	}
}
