package codec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/klor-lang/klor/internal/runtime/value"
)

func roundTripCases() []value.Value {
	return []value.Value{
		value.Nil{},
		value.Bool(true),
		value.Bool(false),
		value.Int(0),
		value.Int(-42),
		value.Float(3.5),
		value.Str(""),
		value.Str("hello"),
		value.Tuple{Elems: []value.Value{value.Int(1), value.Str("a")}},
		value.Vector{Elems: []value.Value{value.Int(1), value.Int(2), value.Int(3)}},
		value.Set{Elems: []value.Value{value.Bool(true), value.Bool(false)}},
		value.Map{Pairs: []value.Pair{
			{Key: value.Str("k"), Val: value.Int(7)},
		}},
	}
}

func TestJSONRoundTrip(t *testing.T) {
	c := JSON{}
	for _, v := range roundTripCases() {
		payload, err := c.Encode(v)
		require.NoError(t, err, "encoding %#v", v)
		got, err := c.Decode(payload)
		require.NoError(t, err, "decoding %#v", v)
		require.Equal(t, v, got)
	}
}

func TestDynamicProtoRoundTrip(t *testing.T) {
	c := DynamicProto{}
	for _, v := range roundTripCases() {
		payload, err := c.Encode(v)
		require.NoError(t, err, "encoding %#v", v)
		got, err := c.Decode(payload)
		require.NoError(t, err, "decoding %#v", v)
		require.Equal(t, v, got)
	}
}
