// ABOUTME: YAML codec for component configuration text.
// ABOUTME: Decodes into ordered values and encodes deterministically (indent 2, no wrapping, no aliases).

package configtext

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotMapping is returned by ParseMap when the text holds a non-mapping value.
var ErrNotMapping = errors.New("configuration is not a mapping")

// Parse decodes YAML text into the value model: *Map, []any, string, int,
// float64, bool or nil. Blank text yields nil.
func Parse(text string) (any, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return FromNode(&doc)
}

// ParseMap decodes YAML text that must be a mapping. Blank text yields an empty map.
func ParseMap(text string) (*Map, error) {
	v, err := Parse(text)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return NewMap(), nil
	}
	m, ok := v.(*Map)
	if !ok {
		return nil, ErrNotMapping
	}
	return m, nil
}

// FromNode converts a decoded YAML node into the value model.
func FromNode(n *yaml.Node) (any, error) {
	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return FromNode(n.Content[0])
	case yaml.AliasNode:
		return FromNode(n.Alias)
	case yaml.MappingNode:
		m := NewMap()
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i]
			if k.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping keys must be scalars", k.Line)
			}
			v, err := FromNode(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m.Set(k.Value, v)
		}
		return m, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := FromNode(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("unsupported yaml node kind %d", n.Kind)
}

// Dump encodes a value as block YAML. A nil value or empty top-level mapping
// yields the empty string. Output is byte-for-byte deterministic for equal input.
func Dump(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	if m, ok := v.(*Map); ok && m.Len() == 0 {
		return "", nil
	}
	node, err := toNode(v)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.String(), nil
}

// MustDump is Dump for values known to be encodable; failures yield "".
func MustDump(v any) string {
	s, err := Dump(v)
	if err != nil {
		return ""
	}
	return s
}

func toNode(v any) (*yaml.Node, error) {
	switch t := v.(type) {
	case *Map:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		var err error
		t.Range(func(k string, val any) bool {
			key := &yaml.Node{}
			if err = key.Encode(k); err != nil {
				return false
			}
			var vn *yaml.Node
			if vn, err = toNode(val); err != nil {
				return false
			}
			n.Content = append(n.Content, key, vn)
			return true
		})
		return n, err
	case map[string]any:
		m := NewMap()
		for _, k := range sortedKeys(t) {
			m.Set(k, t[k])
		}
		return toNode(m)
	case []any:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range t {
			c, err := toNode(item)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, c)
		}
		return n, nil
	case []string:
		items := make([]any, len(t))
		for i, s := range t {
			items[i] = s
		}
		return toNode(items)
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	default:
		n := &yaml.Node{}
		if err := n.Encode(t); err != nil {
			return nil, fmt.Errorf("failed to encode %T: %w", t, err)
		}
		return n, nil
	}
}

// Equal reports semantic equality: mapping order is ignored and numbers are
// compared by value regardless of their integer or float representation.
func Equal(a, b any) bool {
	if na, ok := number(a); ok {
		nb, ok := number(b)
		return ok && na == nb
	}
	switch x := a.(type) {
	case *Map:
		y, ok := b.(*Map)
		if !ok || x.Len() != y.Len() {
			return false
		}
		equal := true
		x.Range(func(k string, v any) bool {
			w, found := y.Get(k)
			if !found || !Equal(v, w) {
				equal = false
			}
			return equal
		})
		return equal
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case nil:
		return b == nil
	default:
		return a == b
	}
}

// EqualText parses both texts and compares them semantically. Text that fails to
// parse is compared verbatim.
func EqualText(a, b string) bool {
	va, errA := Parse(a)
	vb, errB := Parse(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return Equal(normalizeEmpty(va), normalizeEmpty(vb))
}

func normalizeEmpty(v any) any {
	if m, ok := v.(*Map); ok && m.Len() == 0 {
		return nil
	}
	return v
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		if math.IsNaN(n) {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// Clone deep-copies maps and slices. Scalars are immutable and shared.
func Clone(v any) any {
	switch t := v.(type) {
	case *Map:
		out := NewMap()
		t.Range(func(k string, val any) bool {
			out.Set(k, Clone(val))
			return true
		})
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Clone(item)
		}
		return out
	}
	return v
}
