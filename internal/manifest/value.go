// Package manifest implements the Manifest Store: loading
// and atomically saving the compose manifest, configurations manifest, and
// env file, all as order-preserving documents.
//
// The compose and configurations manifests are schema-free structured
// trees. They are represented internally as
// a recursive tagged union — Value, below — of mapping / sequence / scalar,
// rather than as reflection-driven Go structs, so that generic walks
// (secret masking, secret restoration, template overlay) can operate on any
// document shape without per-field code.
package manifest

import "fmt"

// Kind tags the shape of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindMap
	KindSeq
	KindScalar
)

// Value is a recursive tagged union: exactly one of Map, Seq, Scalar is
// meaningful, selected by Kind.
type Value struct {
	Kind   Kind
	Map    *OrderedMap
	Seq    []*Value
	Scalar any // string, int64, float64, bool, or nil
}

// NewNull returns a null Value.
func NewNull() *Value { return &Value{Kind: KindNull} }

// NewMap returns an empty mapping Value.
func NewMap() *Value { return &Value{Kind: KindMap, Map: NewOrderedMap()} }

// NewSeq returns an empty sequence Value.
func NewSeq() *Value { return &Value{Kind: KindSeq, Seq: nil} }

// NewString returns a string scalar Value.
func NewString(s string) *Value { return &Value{Kind: KindScalar, Scalar: s} }

// NewInt returns an integer scalar Value.
func NewInt(i int64) *Value { return &Value{Kind: KindScalar, Scalar: i} }

// NewBool returns a boolean scalar Value.
func NewBool(b bool) *Value { return &Value{Kind: KindScalar, Scalar: b} }

// IsNull reports whether v is nil or a KindNull Value.
func (v *Value) IsNull() bool { return v == nil || v.Kind == KindNull }

// AsMap returns the underlying OrderedMap and true if v is a mapping.
func (v *Value) AsMap() (*OrderedMap, bool) {
	if v == nil || v.Kind != KindMap {
		return nil, false
	}
	return v.Map, true
}

// AsSeq returns the underlying slice and true if v is a sequence.
func (v *Value) AsSeq() ([]*Value, bool) {
	if v == nil || v.Kind != KindSeq {
		return nil, false
	}
	return v.Seq, true
}

// AsString returns the scalar as a string and true if v is a string scalar.
func (v *Value) AsString() (string, bool) {
	if v == nil || v.Kind != KindScalar {
		return "", false
	}
	s, ok := v.Scalar.(string)
	return s, ok
}

// AsBool returns the scalar as a bool and true if v is a boolean scalar.
func (v *Value) AsBool() (bool, bool) {
	if v == nil || v.Kind != KindScalar {
		return false, false
	}
	b, ok := v.Scalar.(bool)
	return b, ok
}

// AsInt returns the scalar as an int64 and true if v is a numeric scalar.
func (v *Value) AsInt() (int64, bool) {
	if v == nil || v.Kind != KindScalar {
		return 0, false
	}
	switch n := v.Scalar.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

// Clone returns a deep copy of v.
func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	switch v.Kind {
	case KindMap:
		return &Value{Kind: KindMap, Map: v.Map.Clone()}
	case KindSeq:
		seq := make([]*Value, len(v.Seq))
		for i, e := range v.Seq {
			seq[i] = e.Clone()
		}
		return &Value{Kind: KindSeq, Seq: seq}
	default:
		cp := *v
		return &cp
	}
}

// OrderedMap is an insertion-ordered string-keyed map of *Value, used to
// preserve on-disk key order across load/modify/save cycles.
type OrderedMap struct {
	keys []string
	vals map[string]*Value
}

// NewOrderedMap returns an empty OrderedMap.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{vals: make(map[string]*Value)}
}

// Get returns the value at key and whether it was present.
func (m *OrderedMap) Get(key string) (*Value, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.vals[key]
	return v, ok
}

// Set upserts key -> v, appending key to the end of Keys() if it is new.
func (m *OrderedMap) Set(key string, v *Value) {
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

// Delete removes key, reporting whether it was present.
func (m *OrderedMap) Delete(key string) bool {
	if _, ok := m.vals[key]; !ok {
		return false
	}
	delete(m.vals, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns keys in insertion order.
func (m *OrderedMap) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of entries.
func (m *OrderedMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Clone returns a deep copy of m.
func (m *OrderedMap) Clone() *OrderedMap {
	if m == nil {
		return NewOrderedMap()
	}
	out := NewOrderedMap()
	for _, k := range m.keys {
		out.Set(k, m.vals[k].Clone())
	}
	return out
}

// String implements fmt.Stringer for debugging/log messages.
func (v *Value) String() string {
	if v == nil {
		return "<nil>"
	}
	switch v.Kind {
	case KindNull:
		return "null"
	case KindMap:
		return fmt.Sprintf("map[%d]", v.Map.Len())
	case KindSeq:
		return fmt.Sprintf("seq[%d]", len(v.Seq))
	default:
		return fmt.Sprintf("%v", v.Scalar)
	}
}
