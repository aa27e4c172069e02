// Package payload turns configured data trees into the flat, typed field set
// that a notifier sends. Trees mix literals and template expressions at any
// depth; every string in a configured tree is a template.
package payload

import (
	"fmt"
	"math"
	"reflect"
	"sort"
)

// Node is one value in a data tree: Literal, Template, Sequence or *Mapping.
type Node interface {
	node()
}

// Literal is a scalar returned as-is (string, int, float, bool or nil).
type Literal struct {
	Value any
}

// Template is template source rendered against the send context.
type Template struct {
	Source string
}

// Sequence is an ordered list of nodes.
type Sequence []Node

// Mapping is an insertion-ordered set of unique keys.
type Mapping struct {
	keys   []string
	values map[string]Node
}

func (Literal) node()  {}
func (Template) node() {}
func (Sequence) node() {}
func (*Mapping) node() {}

// NewMapping returns an empty mapping.
func NewMapping() *Mapping {
	return &Mapping{values: make(map[string]Node)}
}

// Set stores n under key. Re-setting a key keeps its original position.
func (m *Mapping) Set(key string, n Node) {
	if m.values == nil {
		m.values = make(map[string]Node)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = n
}

// Get returns the node stored under key.
func (m *Mapping) Get(key string) (Node, bool) {
	if m == nil {
		return nil, false
	}
	n, ok := m.values[key]
	return n, ok
}

// Keys returns the keys in insertion order.
func (m *Mapping) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of keys; a nil mapping is empty.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Parse builds a tree from plain Go values, the shape produced by decoding
// JSON or YAML into interface{}. Strings become templates, maps become
// mappings with sorted keys, slices become sequences and everything else is
// a literal. Values that already are nodes are returned unchanged.
func Parse(v any) Node {
	switch x := v.(type) {
	case Node:
		return x
	case string:
		return Template{Source: x}
	case []any:
		seq := make(Sequence, 0, len(x))
		for _, item := range x {
			seq = append(seq, Parse(item))
		}
		return seq
	case []string:
		seq := make(Sequence, 0, len(x))
		for _, item := range x {
			seq = append(seq, Template{Source: item})
		}
		return seq
	case map[string]any:
		return ParseMap(x)
	case map[string]string:
		m := NewMapping()
		for _, k := range sortedKeys(x) {
			m.Set(k, Template{Source: x[k]})
		}
		return m
	case map[any]any:
		conv := make(map[string]any, len(x))
		for k, item := range x {
			conv[fmt.Sprint(k)] = item
		}
		return ParseMap(conv)
	default:
		return Literal{Value: normalizeScalar(v)}
	}
}

// ParseMap is Parse for a top-level map.
func ParseMap(in map[string]any) *Mapping {
	m := NewMapping()
	for _, k := range sortedKeys(in) {
		m.Set(k, Parse(in[k]))
	}
	return m
}

func sortedKeys[V any](in map[string]V) []string {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// normalizeScalar widens sized numeric kinds to int64/float64 so the
// resolver and encoders only deal with a small set of scalar types.
// Unsigned values above math.MaxInt64 stay uint64.
func normalizeScalar(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if u := rv.Uint(); u > math.MaxInt64 {
			return u
		}
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	default:
		return v
	}
}
