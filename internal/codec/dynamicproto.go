package codec

import (
	"fmt"
	"sync"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"github.com/jhump/protoreflect/dynamic"

	"github.com/klor-lang/klor/internal/runtime/value"
)

// valueSchema is the fixed, recursive proto schema DynamicProto encodes
// every value.Value against: one Value message with a field per runtime
// kind (only one ever populated, protobuf's own field-presence tracking
// doubling as the tag rather than a hand-rolled oneof discriminant), and
// two auxiliary messages for its recursive cases. Declared once, in
// Go source, rather than read from a user-supplied .proto — a schema'd
// cross-language wire format only needs to be stable, not user-editable,
// and every role process compiled from the same choreography already
// agrees on it.
const valueSchema = `
syntax = "proto3";
package klor.codec;

message Value {
  optional bool b = 1;
  optional int64 i = 2;
  optional double f = 3;
  optional string s = 4;
  optional bool is_nil = 5;
  ValueList tuple = 6;
  ValueList vector = 7;
  ValueList set = 8;
  ValueMap map = 9;
}

message ValueList {
  repeated Value elems = 1;
}

message ValuePair {
  Value key = 1;
  Value val = 2;
}

message ValueMap {
  repeated ValuePair pairs = 1;
}
`

var (
	valueDescOnce sync.Once
	valueDesc     *desc.MessageDescriptor
	valueDescErr  error
)

func valueMessageDescriptor() (*desc.MessageDescriptor, error) {
	valueDescOnce.Do(func() {
		parser := protoparse.Parser{
			Accessor: protoparse.FileContentsFromMap(map[string]string{"klor_value.proto": valueSchema}),
		}
		fds, err := parser.ParseFiles("klor_value.proto")
		if err != nil {
			valueDescErr = fmt.Errorf("codec.DynamicProto: parse schema: %w", err)
			return
		}
		for _, md := range fds[0].GetMessageTypes() {
			if md.GetName() == "Value" {
				valueDesc = md
				return
			}
		}
		valueDescErr = fmt.Errorf("codec.DynamicProto: schema missing Value message")
	})
	return valueDesc, valueDescErr
}

// DynamicProto serializes values against the schema above using
// dynamic.Message. The descriptor is a fixed recursive schema built in,
// rather than looked up by name from a user-loaded .proto file, since
// every role of a compiled choreography needs exactly the same wire
// shape regardless of what the choreography's own host values look
// like.
type DynamicProto struct{}

func toDynamicMessage(md *desc.MessageDescriptor, v value.Value) (*dynamic.Message, error) {
	listMD := md.FindMessage("klor.codec.ValueList")
	mapMD := md.FindMessage("klor.codec.ValueMap")
	pairMD := md.FindMessage("klor.codec.ValuePair")

	msg := dynamic.NewMessage(md)
	switch t := v.(type) {
	case value.Nil:
		msg.SetFieldByName("is_nil", true)
	case value.Bool:
		msg.SetFieldByName("b", bool(t))
	case value.Int:
		msg.SetFieldByName("i", int64(t))
	case value.Float:
		msg.SetFieldByName("f", float64(t))
	case value.Str:
		msg.SetFieldByName("s", string(t))
	case value.Tuple:
		l, err := toDynamicList(listMD, md, t.Elems)
		if err != nil {
			return nil, err
		}
		msg.SetFieldByName("tuple", l)
	case value.Vector:
		l, err := toDynamicList(listMD, md, t.Elems)
		if err != nil {
			return nil, err
		}
		msg.SetFieldByName("vector", l)
	case value.Set:
		l, err := toDynamicList(listMD, md, t.Elems)
		if err != nil {
			return nil, err
		}
		msg.SetFieldByName("set", l)
	case value.Map:
		m := dynamic.NewMessage(mapMD)
		pairs := make([]*dynamic.Message, len(t.Pairs))
		for i, p := range t.Pairs {
			k, err := toDynamicMessage(md, p.Key)
			if err != nil {
				return nil, err
			}
			val, err := toDynamicMessage(md, p.Val)
			if err != nil {
				return nil, err
			}
			pm := dynamic.NewMessage(pairMD)
			pm.SetFieldByName("key", k)
			pm.SetFieldByName("val", val)
			pairs[i] = pm
		}
		m.SetFieldByName("pairs", toInterfaceSlice(pairs))
		msg.SetFieldByName("map", m)
	default:
		return nil, fmt.Errorf("codec.DynamicProto: cannot encode %T", v)
	}
	return msg, nil
}

func toDynamicList(listMD, valueMD *desc.MessageDescriptor, elems []value.Value) (*dynamic.Message, error) {
	msgs := make([]*dynamic.Message, len(elems))
	for i, e := range elems {
		m, err := toDynamicMessage(valueMD, e)
		if err != nil {
			return nil, err
		}
		msgs[i] = m
	}
	l := dynamic.NewMessage(listMD)
	l.SetFieldByName("elems", toInterfaceSlice(msgs))
	return l, nil
}

func toInterfaceSlice(msgs []*dynamic.Message) []interface{} {
	out := make([]interface{}, len(msgs))
	for i, m := range msgs {
		out[i] = m
	}
	return out
}

// fromDynamicMessage relies on explicit proto3 field presence (the
// "optional" scalar fields in valueSchema) rather than zero-value
// heuristics, so an encoded Int(0), Str(""), or Bool(false) decodes
// back to itself instead of being mistaken for an unset field.
func fromDynamicMessage(msg *dynamic.Message) (value.Value, error) {
	if msg.HasFieldName("is_nil") {
		return value.Nil{}, nil
	}
	if msg.HasFieldName("tuple") {
		elems, err := fromDynamicList(msg.GetFieldByName("tuple").(*dynamic.Message))
		if err != nil {
			return nil, err
		}
		return value.Tuple{Elems: elems}, nil
	}
	if msg.HasFieldName("vector") {
		elems, err := fromDynamicList(msg.GetFieldByName("vector").(*dynamic.Message))
		if err != nil {
			return nil, err
		}
		return value.Vector{Elems: elems}, nil
	}
	if msg.HasFieldName("set") {
		elems, err := fromDynamicList(msg.GetFieldByName("set").(*dynamic.Message))
		if err != nil {
			return nil, err
		}
		return value.Set{Elems: elems}, nil
	}
	if msg.HasFieldName("map") {
		m := msg.GetFieldByName("map").(*dynamic.Message)
		rawPairs, _ := m.TryGetFieldByName("pairs")
		ps, _ := rawPairs.([]interface{})
		pairs := make([]value.Pair, len(ps))
		for i, raw := range ps {
			pm := raw.(*dynamic.Message)
			k, err := fromDynamicMessage(pm.GetFieldByName("key").(*dynamic.Message))
			if err != nil {
				return nil, err
			}
			val, err := fromDynamicMessage(pm.GetFieldByName("val").(*dynamic.Message))
			if err != nil {
				return nil, err
			}
			pairs[i] = value.Pair{Key: k, Val: val}
		}
		return value.Map{Pairs: pairs}, nil
	}
	if msg.HasFieldName("s") {
		return value.Str(msg.GetFieldByName("s").(string)), nil
	}
	if msg.HasFieldName("i") {
		return value.Int(msg.GetFieldByName("i").(int64)), nil
	}
	if msg.HasFieldName("f") {
		return value.Float(msg.GetFieldByName("f").(float64)), nil
	}
	if msg.HasFieldName("b") {
		return value.Bool(msg.GetFieldByName("b").(bool)), nil
	}
	return value.Nil{}, nil
}

func fromDynamicList(l *dynamic.Message) ([]value.Value, error) {
	raw, _ := l.TryGetFieldByName("elems")
	elemsRaw, _ := raw.([]interface{})
	out := make([]value.Value, len(elemsRaw))
	for i, e := range elemsRaw {
		v, err := fromDynamicMessage(e.(*dynamic.Message))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (DynamicProto) Encode(v value.Value) ([]byte, error) {
	md, err := valueMessageDescriptor()
	if err != nil {
		return nil, err
	}
	msg, err := toDynamicMessage(md, v)
	if err != nil {
		return nil, err
	}
	return msg.Marshal()
}

func (DynamicProto) Decode(payload []byte) (value.Value, error) {
	md, err := valueMessageDescriptor()
	if err != nil {
		return nil, err
	}
	msg := dynamic.NewMessage(md)
	if err := msg.Unmarshal(payload); err != nil {
		return nil, fmt.Errorf("codec.DynamicProto: unmarshal: %w", err)
	}
	return fromDynamicMessage(msg)
}
