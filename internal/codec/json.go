package codec

import (
	"encoding/json"
	"fmt"

	"github.com/klor-lang/klor/internal/runtime/value"
)

// JSON is the default codec: it round-trips a value.Value through a
// small tagged-union JSON shape so decoding can reconstruct the exact
// Value variant (plain encoding/json unmarshal into interface{} would
// otherwise collapse Int/Float and lose Tuple/Set/Map distinctions).
type JSON struct{}

// wireValue is the tagged-union shape written to the wire.
type wireValue struct {
	Kind  string      `json:"kind"`
	Bool  *bool       `json:"bool,omitempty"`
	Int   *int64      `json:"int,omitempty"`
	Float *float64    `json:"float,omitempty"`
	Str   *string     `json:"str,omitempty"`
	Elems []wireValue `json:"elems,omitempty"`
	Pairs []wirePair  `json:"pairs,omitempty"`
}

type wirePair struct {
	Key wireValue `json:"key"`
	Val wireValue `json:"val"`
}

func toWire(v value.Value) (wireValue, error) {
	switch t := v.(type) {
	case value.Nil:
		return wireValue{Kind: "nil"}, nil
	case value.Bool:
		b := bool(t)
		return wireValue{Kind: "bool", Bool: &b}, nil
	case value.Int:
		i := int64(t)
		return wireValue{Kind: "int", Int: &i}, nil
	case value.Float:
		f := float64(t)
		return wireValue{Kind: "float", Float: &f}, nil
	case value.Str:
		s := string(t)
		return wireValue{Kind: "str", Str: &s}, nil
	case value.Tuple:
		return wireElems("tuple", t.Elems)
	case value.Vector:
		return wireElems("vector", t.Elems)
	case value.Set:
		return wireElems("set", t.Elems)
	case value.Map:
		pairs := make([]wirePair, len(t.Pairs))
		for i, p := range t.Pairs {
			k, err := toWire(p.Key)
			if err != nil {
				return wireValue{}, err
			}
			v, err := toWire(p.Val)
			if err != nil {
				return wireValue{}, err
			}
			pairs[i] = wirePair{Key: k, Val: v}
		}
		return wireValue{Kind: "map", Pairs: pairs}, nil
	default:
		return wireValue{}, fmt.Errorf("codec.JSON: cannot encode %T", v)
	}
}

func wireElems(kind string, elems []value.Value) (wireValue, error) {
	out := make([]wireValue, len(elems))
	for i, e := range elems {
		w, err := toWire(e)
		if err != nil {
			return wireValue{}, err
		}
		out[i] = w
	}
	return wireValue{Kind: kind, Elems: out}, nil
}

func fromWire(w wireValue) (value.Value, error) {
	switch w.Kind {
	case "nil":
		return value.Nil{}, nil
	case "bool":
		return value.Bool(*w.Bool), nil
	case "int":
		return value.Int(*w.Int), nil
	case "float":
		return value.Float(*w.Float), nil
	case "str":
		return value.Str(*w.Str), nil
	case "tuple", "vector", "set":
		elems := make([]value.Value, len(w.Elems))
		for i, e := range w.Elems {
			v, err := fromWire(e)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		switch w.Kind {
		case "tuple":
			return value.Tuple{Elems: elems}, nil
		case "vector":
			return value.Vector{Elems: elems}, nil
		default:
			return value.Set{Elems: elems}, nil
		}
	case "map":
		pairs := make([]value.Pair, len(w.Pairs))
		for i, p := range w.Pairs {
			k, err := fromWire(p.Key)
			if err != nil {
				return nil, err
			}
			v, err := fromWire(p.Val)
			if err != nil {
				return nil, err
			}
			pairs[i] = value.Pair{Key: k, Val: v}
		}
		return value.Map{Pairs: pairs}, nil
	default:
		return nil, fmt.Errorf("codec.JSON: unknown wire kind %q", w.Kind)
	}
}

func (JSON) Encode(v value.Value) ([]byte, error) {
	w, err := toWire(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

func (JSON) Decode(payload []byte) (value.Value, error) {
	var w wireValue
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, fmt.Errorf("codec.JSON: decode: %w", err)
	}
	return fromWire(w)
}
