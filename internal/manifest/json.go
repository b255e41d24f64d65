package manifest

import "encoding/json"

// MarshalJSON lets a Value appear directly inside JSON-tagged structs (used
// by the wire declared-state document, which shares this generic-tree
// representation with the on-disk manifests).
func (v *Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(valueToAny(v))
}

// UnmarshalJSON decodes arbitrary JSON into a Value tree.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = *valueFromAny(raw)
	return nil
}

func valueFromAny(raw any) *Value {
	switch x := raw.(type) {
	case nil:
		return NewNull()
	case bool:
		return NewBool(x)
	case string:
		return NewString(x)
	case float64:
		return &Value{Kind: KindScalar, Scalar: x}
	case map[string]any:
		m := NewOrderedMap()
		for k, v := range x {
			m.Set(k, valueFromAny(v))
		}
		return &Value{Kind: KindMap, Map: m}
	case []any:
		seq := make([]*Value, 0, len(x))
		for _, e := range x {
			seq = append(seq, valueFromAny(e))
		}
		return &Value{Kind: KindSeq, Seq: seq}
	default:
		return NewNull()
	}
}

func valueToAny(v *Value) any {
	if v == nil || v.Kind == KindNull {
		return nil
	}
	switch v.Kind {
	case KindMap:
		m := make(map[string]any, v.Map.Len())
		for _, k := range v.Map.Keys() {
			child, _ := v.Map.Get(k)
			m[k] = valueToAny(child)
		}
		return m
	case KindSeq:
		seq := make([]any, len(v.Seq))
		for i, e := range v.Seq {
			seq[i] = valueToAny(e)
		}
		return seq
	default:
		return v.Scalar
	}
}
