package configuration

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ConfigMap is a configuration file's top level object with key order
// preserved, so diagnostics come out in the order the user wrote them.
type ConfigMap struct {
	keys   []string
	values map[string]any
}

// NewConfigMap returns an empty map.
func NewConfigMap() *ConfigMap {
	return &ConfigMap{values: map[string]any{}}
}

// Set inserts or replaces key. New keys go to the end.
func (m *ConfigMap) Set(key string, value any) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value for key.
func (m *ConfigMap) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Remove deletes key and returns its value.
func (m *ConfigMap) Remove(key string) (any, bool) {
	v, ok := m.values[key]
	if !ok {
		return nil, false
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i:i], m.keys[i+1:]...)
			break
		}
	}
	return v, true
}

// Keys returns the keys in insertion order.
func (m *ConfigMap) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Len returns the number of keys.
func (m *ConfigMap) Len() int {
	return len(m.keys)
}

// Clone returns a copy that can be consumed without affecting m.
func (m *ConfigMap) Clone() *ConfigMap {
	out := &ConfigMap{keys: m.Keys(), values: make(map[string]any, len(m.values))}
	for k, v := range m.values {
		out.values[k] = v
	}
	return out
}

// ParseConfigMap parses a JSON object.
func ParseConfigMap(text string) (*ConfigMap, error) {
	if !gjson.Valid(text) {
		return nil, errors.New("invalid JSON")
	}
	root := gjson.Parse(text)
	if !root.IsObject() {
		return nil, errors.New("expected the configuration file to contain a JSON object")
	}
	m := NewConfigMap()
	root.ForEach(func(key, value gjson.Result) bool {
		m.Set(key.String(), jsonValue(value))
		return true
	})
	return m, nil
}

// jsonValue converts a gjson result into a plain Go value. Integral numbers
// become int64 so they round trip without a trailing ".0".
func jsonValue(r gjson.Result) any {
	switch r.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.String:
		return r.Str
	case gjson.Number:
		if r.Num == float64(int64(r.Num)) {
			return int64(r.Num)
		}
		return r.Num
	case gjson.JSON:
		if r.IsArray() {
			items := []any{}
			for _, item := range r.Array() {
				items = append(items, jsonValue(item))
			}
			return items
		}
		obj := map[string]any{}
		r.ForEach(func(key, value gjson.Result) bool {
			obj[key.String()] = jsonValue(value)
			return true
		})
		return obj
	default:
		return r.Raw
	}
}

// stringSlice accepts either a single string or an array of strings.
func stringSlice(key string, value any) ([]string, error) {
	switch v := value.(type) {
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected '%s' to be an array of strings", key)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected '%s' to be a string or an array of strings", key)
	}
}
