// Package meta implements the metadata tree attached to every envelope.
//
// A Meta is an immutable tree of named values. Nested nodes are addressed
// with dotted paths ("external_meta.HV1_value"). Typed getters take a
// default that is returned when the key is absent; Require* variants report
// a configuration error instead.
package meta

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xtxerr/numass/internal/errors"
)

// Meta is an immutable metadata tree.
type Meta struct {
	root map[string]any
}

// New wraps m. Nested maps are normalized to map[string]any and the
// input is copied, so later changes to m are not visible.
func New(m map[string]any) Meta {
	if m == nil {
		return Meta{}
	}
	return Meta{root: normalizeMap(m)}
}

// Empty returns a Meta without keys.
func Empty() Meta {
	return Meta{}
}

// IsEmpty reports whether the tree has no keys.
func (m Meta) IsEmpty() bool {
	return len(m.root) == 0
}

// Get returns the raw value at path.
func (m Meta) Get(path string) (any, bool) {
	if m.root == nil || path == "" {
		return nil, false
	}
	if v, ok := m.root[path]; ok {
		return v, true
	}

	node := m.root
	parts := strings.Split(path, ".")
	for i, part := range parts {
		v, ok := node[part]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		next, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		node = next
	}
	return nil, false
}

// Has reports whether path exists.
func (m Meta) Has(path string) bool {
	_, ok := m.Get(path)
	return ok
}

// First returns the value of the first existing path and the path it was found at.
func (m Meta) First(paths ...string) (any, string, bool) {
	for _, p := range paths {
		if v, ok := m.Get(p); ok {
			return v, p, true
		}
	}
	return nil, "", false
}

// Sub returns the subtree at path, or an empty Meta.
func (m Meta) Sub(path string) Meta {
	v, ok := m.Get(path)
	if !ok {
		return Meta{}
	}
	sub, ok := v.(map[string]any)
	if !ok {
		return Meta{}
	}
	return Meta{root: sub}
}

// Keys returns the top-level keys in sorted order.
func (m Meta) Keys() []string {
	keys := make([]string, 0, len(m.root))
	for k := range m.root {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a deep copy of the tree.
func (m Meta) Map() map[string]any {
	if m.root == nil {
		return map[string]any{}
	}
	return normalizeMap(m.root)
}

// With returns a copy of m with path set to v. Intermediate nodes are created.
func (m Meta) With(path string, v any) Meta {
	root := m.Map()
	parts := strings.Split(path, ".")
	node := root
	for _, part := range parts[:len(parts)-1] {
		next, ok := node[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			node[part] = next
		}
		node = next
	}
	node[parts[len(parts)-1]] = normalizeValue(v)
	return Meta{root: root}
}

// =============================================================================
// Typed Getters
// =============================================================================

// String returns the value at path as a string.
func (m Meta) String(path, def string) string {
	v, ok := m.Get(path)
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(t)
	}
}

// Float returns the value at path as a float64.
func (m Meta) Float(path string, def float64) float64 {
	v, ok := m.Get(path)
	if !ok {
		return def
	}
	f, err := toFloat(v)
	if err != nil {
		return def
	}
	return f
}

// Int returns the value at path as an int.
func (m Meta) Int(path string, def int) int {
	v, ok := m.Get(path)
	if !ok {
		return def
	}
	f, err := toFloat(v)
	if err != nil || f != math.Trunc(f) {
		return def
	}
	return int(f)
}

// Bool returns the value at path as a bool.
func (m Meta) Bool(path string, def bool) bool {
	v, ok := m.Get(path)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(t)
		if err != nil {
			return def
		}
		return b
	default:
		return def
	}
}

// Time returns the timestamp at path.
//
// Accepted forms: RFC 3339 strings with or without zone, "2006-01-02 15:04:05"
// and epoch milliseconds. Values without a zone are UTC.
func (m Meta) Time(path string) (time.Time, error) {
	v, ok := m.Get(path)
	if !ok {
		return time.Time{}, errors.NewMissingKey(path)
	}
	t, err := toTime(v)
	if err != nil {
		return time.Time{}, errors.NewBadValue(path, v, err.Error())
	}
	return t, nil
}

// Seconds returns the first existing path as a duration in seconds.
// Earlier paths have priority.
func (m Meta) Seconds(def time.Duration, paths ...string) time.Duration {
	v, p, ok := m.First(paths...)
	if !ok {
		return def
	}
	f, err := toFloat(v)
	if err != nil {
		logBadValue(p, v)
		return def
	}
	return time.Duration(f * float64(time.Second))
}

// =============================================================================
// Conversion
// =============================================================================

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime converts a string, number or time value the way Time does.
func ParseTime(v any) (time.Time, error) {
	return toTime(v)
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return ts.UTC(), nil
			}
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
		return time.Time{}, fmt.Errorf("unrecognized timestamp")
	default:
		f, err := toFloat(v)
		if err != nil {
			return time.Time{}, err
		}
		return time.UnixMilli(int64(f)).UTC(), nil
	}
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case uint:
		return float64(t), nil
	case uint32:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	case fmt.Stringer:
		return strconv.ParseFloat(t.String(), 64)
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}

func normalizeMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return normalizeMap(t)
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeValue(val)
		}
		return out
	case Meta:
		return t.Map()
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeValue(val)
		}
		return out
	default:
		return v
	}
}
