package point

import (
	"encoding/json"
	"strings"
)

// Payload is the metadata stored with an item. Nested objects are map[string]any.
type Payload map[string]any

// Lookup resolves a dotted path such as "cafe.location".
func (p Payload) Lookup(path string) (any, bool) {
	if p == nil || path == "" {
		return nil, false
	}
	var cur any = map[string]any(p)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

// String returns the string at path.
func (p Payload) String(path string) (string, bool) {
	v, ok := p.Lookup(path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Float returns the number at path.
func (p Payload) Float(path string) (float64, bool) {
	v, ok := p.Lookup(path)
	if !ok {
		return 0, false
	}
	return asFloat(v)
}

// GeoPoint returns the coordinates stored at path as {lat, lon} or {latitude, longitude}.
func (p Payload) GeoPoint(path string) (lat, lon float64, ok bool) {
	v, found := p.Lookup(path)
	if !found {
		return 0, 0, false
	}
	m, isMap := asMap(v)
	if !isMap {
		return 0, 0, false
	}
	lat, okLat := firstFloat(m, "lat", "latitude")
	lon, okLon := firstFloat(m, "lon", "longitude")
	return lat, lon, okLat && okLon
}

// GroupKey renders the value at path as a grouping key. Only scalar values group.
func (p Payload) GroupKey(path string) (string, bool) {
	v, ok := p.Lookup(path)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		if t {
			return "true", true
		}
		return "false", true
	}
	if f, ok := asFloat(v); ok {
		b, _ := json.Marshal(f)
		return string(b), true
	}
	return "", false
}

func firstFloat(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return asFloat(v)
		}
	}
	return 0, false
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Payload:
		return m, true
	}
	return nil, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
