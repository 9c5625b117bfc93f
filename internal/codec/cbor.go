package codec

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/hanpama/graphcache/internal/record"
	"github.com/hanpama/graphcache/internal/value"
)

// ReferenceTag is the CBOR tag number wrapping a reference key.
const ReferenceTag uint64 = 39999

// CBOR encodes fields in canonical CBOR.
type CBOR struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func NewCBOR() *CBOR {
	enc, err := cbor.EncOptions{Sort: cbor.SortCanonical}.EncMode()
	if err != nil {
		panic(err)
	}
	dec, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return &CBOR{enc: enc, dec: dec}
}

func (*CBOR) Name() string { return "cbor" }

func (c *CBOR) Encode(r *record.Record) ([]byte, error) {
	b, err := c.enc.Marshal(replaceReferences(map[string]any(r.Fields), referenceTag))
	if err != nil {
		return nil, fmt.Errorf("codec: cbor: encode %s: %w", r.Key, err)
	}
	return b, nil
}

func (c *CBOR) Decode(key string, data []byte) (*record.Record, error) {
	var raw map[string]any
	if err := c.dec.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("codec: cbor: decode %s: %w", key, err)
	}
	return toRecord(key, restoreReferences(raw, fromReferenceTag), "cbor")
}

func referenceTag(r value.Reference) any {
	return cbor.Tag{Number: ReferenceTag, Content: r.Key}
}

func fromReferenceTag(v any) (value.Reference, bool) {
	tag, ok := v.(cbor.Tag)
	if !ok || tag.Number != ReferenceTag {
		return value.Reference{}, false
	}
	key, ok := tag.Content.(string)
	if !ok {
		return value.Reference{}, false
	}
	return value.Reference{Key: key}, true
}
