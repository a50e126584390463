package chainrun

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Subject is what a chain yields: either a set of element nodes or a plain
// value.
type Subject struct {
	Nodes   []NodeID
	Value   interface{}
	IsValue bool
}

// ValueSubject returns a subject holding v.
func ValueSubject(v interface{}) Subject {
	return Subject{Value: v, IsValue: true}
}

// NodeSubject returns a subject holding the given nodes.
func NodeSubject(nodes ...NodeID) Subject {
	return Subject{Nodes: nodes}
}

// Len returns the number of nodes, or the length of the value when it has
// one.
func (s Subject) Len() int {
	if !s.IsValue {
		return len(s.Nodes)
	}
	switch v := s.Value.(type) {
	case string:
		return len([]rune(v))
	case nil:
		return 0
	}
	rv := reflect.ValueOf(s.Value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len()
	}
	return 0
}

// String satisfies fmt.Stringer.
func (s Subject) String() string {
	if s.IsValue {
		return formatValue(s.Value)
	}
	return fmt.Sprintf("%d elements", len(s.Nodes))
}

// formatValue renders v for error messages.
func formatValue(v interface{}) string {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	case fmt.Stringer:
		return x.String()
	case nil:
		return "null"
	}
	return fmt.Sprintf("%v", v)
}

// normalize converts numeric values to float64 recursively so that values
// read from different providers compare equal.
func normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case nil, string, bool, float64:
		return x
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	case []string:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = e
		}
		return out
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32:
		return rv.Float()
	case reflect.Slice, reflect.Array:
		out := make([]interface{}, rv.Len())
		for i := range out {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out
	}
	return v
}

// toString renders v the way a text comparison sees it.
func toString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// normalizeSpace collapses runs of whitespace and trims the result.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// dedupe removes repeated ids, keeping the first appearance.
func dedupe(ids []NodeID) []NodeID {
	seen := make(map[NodeID]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
