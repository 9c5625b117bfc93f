package codec_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/graphcache/internal/codec"
	"github.com/hanpama/graphcache/internal/record"
	"github.com/hanpama/graphcache/internal/value"
)

func sampleRecord() *record.Record {
	return &record.Record{Key: "QUERY_ROOT.hero", Fields: record.Fields{
		"__typename": "Droid",
		"name":       "R2-D2",
		"height":     1.09,
		"episodes":   int64(3),
		"alive":      true,
		"nickname":   nil,
		"friends": []any{
			value.Reference{Key: "1000"},
			nil,
			value.Reference{Key: "QUERY_ROOT.hero.friends.2"},
		},
		"ship": value.Reference{Key: "Ship:1"},
		"metadata": value.Object{
			"tags": []any{"astromech", int64(-1)},
		},
		`search({"text":"r2"})`: []any{[]any{value.Reference{Key: "2001"}}},
	}}
}

// equalNumbers compares int64 and float64 by magnitude, the way record
// merges do.
var equalNumbers = cmp.FilterValues(func(a, b any) bool {
	_, aok := value.AsFloat(a)
	_, bok := value.AsFloat(b)
	return aok && bok
}, cmp.Comparer(func(a, b any) bool { return value.Equal(a, b) }))

func TestRoundTrip(t *testing.T) {
	codecs := []codec.Codec{codec.JSON{}, codec.NewCBOR(), codec.Proto{}}
	for _, c := range codecs {
		t.Run(c.Name(), func(t *testing.T) {
			in := sampleRecord()
			b, err := c.Encode(in)
			require.NoError(t, err)

			out, err := c.Decode(in.Key, b)
			require.NoError(t, err)
			if diff := cmp.Diff(in, out, equalNumbers); diff != "" {
				t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIntegersSurviveJSONAndCBOR(t *testing.T) {
	for _, c := range []codec.Codec{codec.JSON{}, codec.NewCBOR()} {
		t.Run(c.Name(), func(t *testing.T) {
			b, err := c.Encode(&record.Record{Key: "k", Fields: record.Fields{"n": int64(42), "f": 2.5}})
			require.NoError(t, err)
			out, err := c.Decode("k", b)
			require.NoError(t, err)
			require.Equal(t, int64(42), out.Fields["n"])
			require.Equal(t, 2.5, out.Fields["f"])
		})
	}
}

func TestProtoRestoresIntegers(t *testing.T) {
	c := codec.Proto{}
	b, err := c.Encode(&record.Record{Key: "k", Fields: record.Fields{
		"n":     int64(42),
		"f":     2.5,
		"list":  []any{int64(-1), 0.5},
		"big":   float64(1 << 60),
		"inner": value.Object{"n": int64(7)},
	}})
	require.NoError(t, err)
	out, err := c.Decode("k", b)
	require.NoError(t, err)

	want := record.Fields{
		"n":     int64(42),
		"f":     2.5,
		"list":  []any{int64(-1), 0.5},
		"big":   float64(1 << 60),
		"inner": value.Object{"n": int64(7)},
	}
	if diff := cmp.Diff(want, out.Fields); diff != "" {
		t.Fatalf("decoded fields mismatch (-want +got):\n%s", diff)
	}
}

func TestObjectsShapedLikeReferencesStayObjects(t *testing.T) {
	in := &record.Record{Key: "k", Fields: record.Fields{
		"payload": value.Object{codec.ReferenceKey: "Ship:1"},
		"escaped": value.Object{"$$price": "1", "$": "x"},
		"ship":    value.Reference{Key: "Ship:1"},
	}}
	for _, c := range []codec.Codec{codec.JSON{}, codec.NewCBOR(), codec.Proto{}} {
		t.Run(c.Name(), func(t *testing.T) {
			b, err := c.Encode(in)
			require.NoError(t, err)
			out, err := c.Decode(in.Key, b)
			require.NoError(t, err)
			if diff := cmp.Diff(in, out); diff != "" {
				t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}

	b, err := codec.JSON{}.Encode(in)
	require.NoError(t, err)
	require.Contains(t, string(b), `{"$$reference":"Ship:1"}`)
	require.Contains(t, string(b), `"ship":{"$reference":"Ship:1"}`)
}

func TestCBORIsDeterministic(t *testing.T) {
	c := codec.NewCBOR()
	a, err := c.Encode(sampleRecord())
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		b, err := c.Encode(sampleRecord())
		require.NoError(t, err)
		require.Equal(t, a, b)
	}
}

func TestDecodeRejectsNonObjects(t *testing.T) {
	_, err := codec.JSON{}.Decode("k", []byte(`[1,2]`))
	require.Error(t, err)

	_, err = codec.NewCBOR().Decode("k", []byte{0xff})
	require.Error(t, err)
}

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "cbor", "proto"} {
		c, err := codec.ByName(name)
		require.NoError(t, err)
		require.Equal(t, name, c.Name())
	}
	_, err := codec.ByName("xml")
	require.Error(t, err)
}
