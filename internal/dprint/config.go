package dprint

import (
	"fmt"
	"slices"

	"github.com/mridang/dprint-go/internal/hasher"
)

// ConfigKeyMap is a plugin's raw configuration. Values are JSON-compatible:
// string, bool, int64, float64, nil, []any or map[string]any.
type ConfigKeyMap map[string]any

// Clone returns a shallow copy of m.
func (m ConfigKeyMap) Clone() ConfigKeyMap {
	if m == nil {
		return nil
	}
	out := make(ConfigKeyMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// SortedKeys returns the keys of m in byte order.
func (m ConfigKeyMap) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// HashValue feeds a configuration value into h. Maps are walked in sorted
// key order so the result does not depend on Go's map iteration order.
func HashValue(h *hasher.FastInsecureHasher, value any) {
	switch v := value.(type) {
	case nil:
		h.WriteU8(0)
	case bool:
		h.WriteU8(1)
		h.WriteBool(v)
	case string:
		h.WriteU8(2)
		h.WriteStr(v)
	case int:
		h.WriteU8(3)
		h.WriteInt64(int64(v))
	case int64:
		h.WriteU8(3)
		h.WriteInt64(v)
	case float64:
		h.WriteU8(4)
		h.WriteFloat64(v)
	case []any:
		h.WriteU8(5)
		h.WriteUint64(uint64(len(v)))
		for _, item := range v {
			HashValue(h, item)
		}
	case map[string]any:
		HashValue(h, ConfigKeyMap(v))
	case ConfigKeyMap:
		h.WriteU8(6)
		h.WriteUint64(uint64(len(v)))
		for _, key := range v.SortedKeys() {
			h.WriteStr(key)
			HashValue(h, v[key])
		}
	default:
		h.WriteU8(7)
		h.WriteStr(fmt.Sprint(v))
	}
}

// GlobalConfiguration holds the settings every plugin in a scope shares.
// See: https://dprint.dev/config/#global-configuration
type GlobalConfiguration struct {
	LineWidth   *uint32 `json:"lineWidth,omitempty"`
	IndentWidth *uint8  `json:"indentWidth,omitempty"`
	UseTabs     *bool   `json:"useTabs,omitempty"`
	NewLineKind string  `json:"newLineKind,omitempty"`
}

// Hash feeds every field, including whether it was set, into h.
func (g GlobalConfiguration) Hash(h *hasher.FastInsecureHasher) {
	h.WriteBool(g.LineWidth != nil)
	if g.LineWidth != nil {
		h.WriteUint64(uint64(*g.LineWidth))
	}
	h.WriteBool(g.IndentWidth != nil)
	if g.IndentWidth != nil {
		h.WriteUint64(uint64(*g.IndentWidth))
	}
	h.WriteBool(g.UseTabs != nil)
	if g.UseTabs != nil {
		h.WriteBool(*g.UseTabs)
	}
	h.WriteStr(g.NewLineKind)
}

// FormatConfig is the immutable configuration a plugin formats with. It is
// shared by pointer between every format call for that plugin in a scope.
type FormatConfig struct {
	// ID is unique per resolution and is what wasm plugins key their
	// registered configuration by.
	ID     uint32
	Global GlobalConfiguration
	Raw    ConfigKeyMap
}
