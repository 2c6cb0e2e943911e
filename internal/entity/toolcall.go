package entity

import (
	"encoding/json"
	"fmt"
)

// ToolInvocation is a single requested call to a registered tool, decoded
// from an assistant ToolCallBlock before dispatch.
type ToolInvocation struct {
	ToolCallID string
	ToolName   string
	Arguments  Args
}

// Args wraps the dynamic JSON object backing a tool invocation's arguments.
// Callers pull typed values out with the accessor helpers below instead of
// re-unmarshalling raw JSON at each call site.
type Args struct {
	raw map[string]any
}

// NewArgs decodes raw JSON into an Args wrapper. Empty input and JSON null
// yield an empty Args; any other non-object JSON is a decode error.
func NewArgs(raw json.RawMessage) (Args, error) {
	if len(raw) == 0 {
		return Args{raw: map[string]any{}}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return Args{}, fmt.Errorf("decode tool arguments: %w", err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return Args{raw: m}, nil
}

// Has reports whether key is present.
func (a Args) Has(key string) bool {
	_, ok := a.raw[key]
	return ok
}

// String returns the string value at key, or "" if absent or not a string.
func (a Args) String(key string) string {
	v, _ := a.raw[key].(string)
	return v
}

// RequiredString returns the string at key or an error if missing or empty.
func (a Args) RequiredString(key string) (string, error) {
	v, ok := a.raw[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	if s == "" {
		return "", fmt.Errorf("argument %q must not be empty", key)
	}
	return s, nil
}

// Int returns the numeric value at key truncated to int, or def if absent.
func (a Args) Int(key string, def int) int {
	v, ok := a.raw[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return def
	}
}

// Bool returns the boolean value at key, or def if absent or not a bool.
func (a Args) Bool(key string, def bool) bool {
	v, ok := a.raw[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

// StringSlice returns a []string at key, skipping non-string elements.
func (a Args) StringSlice(key string) []string {
	v, ok := a.raw[key]
	if !ok {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Raw returns the underlying decoded map, for handing off to a JSON-Schema
// validator or a provider-specific re-encode.
func (a Args) Raw() map[string]any { return a.raw }

// MarshalJSON re-encodes Args back to a JSON object.
func (a Args) MarshalJSON() ([]byte, error) {
	if a.raw == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(a.raw)
}
