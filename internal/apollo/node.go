package apollo

import "math"

const refKey = "__ref"

// Node is one cache entry, or any nested object inside an entry.
type Node map[string]any

// Ref reports the target key when the node is a reference marker.
func (n Node) Ref() (string, bool) {
	ref, ok := n[refKey].(string)
	if !ok || ref == "" {
		return "", false
	}
	return ref, true
}

// IsEmpty reports whether the node carries no fields.
func (n Node) IsEmpty() bool {
	return len(n) == 0
}

// String returns the field as a string, or "" when absent or not a string.
func (n Node) String(field string) string {
	s, _ := n[field].(string)
	return s
}

// Float returns the numeric field and whether it was present.
func (n Node) Float(field string) (float64, bool) {
	switch v := n[field].(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// Int returns the numeric field truncated to an integer, or 0 when absent.
func (n Node) Int(field string) int64 {
	v, ok := n.Float(field)
	if !ok {
		return 0
	}
	return int64(v)
}

// Object returns the nested object stored under field without resolving references.
func (n Node) Object(field string) Node {
	return asNode(n[field])
}

// List returns the array stored under field, or nil.
func (n Node) List(field string) []any {
	l, _ := n[field].([]any)
	return l
}

func asNode(v any) Node {
	switch m := v.(type) {
	case Node:
		return m
	case map[string]any:
		return Node(m)
	default:
		return nil
	}
}
