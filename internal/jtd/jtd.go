// Package jtd converts JSON Type Definition (RFC 8927-style) schemas into
// JSON-Schema documents, so sub-agent structured output can be validated
// with a JSON-Schema-only validator.
package jtd

import (
	"encoding/json"
	"sort"
)

// Schema is a JTD schema node. Exactly one of its "form" fields should be
// set, mirroring the JTD spec's mutually exclusive forms.
type Schema struct {
	Type               string            `json:"type,omitempty"`
	Enum               []string          `json:"enum,omitempty"`
	Elements           *Schema           `json:"elements,omitempty"`
	Values             *Schema           `json:"values,omitempty"`
	Properties         map[string]Schema `json:"properties,omitempty"`
	OptionalProperties map[string]Schema `json:"optionalProperties,omitempty"`
	Discriminator      string            `json:"discriminator,omitempty"`
	Mapping            map[string]Schema `json:"mapping,omitempty"`
	Ref                string            `json:"ref,omitempty"`
	Definitions        map[string]Schema `json:"definitions,omitempty"`
	Nullable           bool              `json:"nullable,omitempty"`
}

// jsonSchemaTypes maps JTD primitive type names to JSON-Schema (type,format) pairs.
var jsonSchemaTypes = map[string]struct {
	jsType string
	format string
}{
	"boolean":   {"boolean", ""},
	"string":    {"string", ""},
	"timestamp": {"string", "date-time"},
	"float32":   {"number", ""},
	"float64":   {"number", ""},
	"int8":      {"integer", ""},
	"uint8":     {"integer", ""},
	"int16":     {"integer", ""},
	"uint16":    {"integer", ""},
	"int32":     {"integer", ""},
	"uint32":    {"integer", ""},
}

// ToJSONSchema converts a top-level JTD schema to a JSON-Schema document.
// Definitions on the root schema become a sibling "$defs" object; nested
// refs point at "#/$defs/<name>".
func ToJSONSchema(s Schema) map[string]any {
	out := convert(s)
	if len(s.Definitions) > 0 {
		defs := make(map[string]any, len(s.Definitions))
		for name, def := range s.Definitions {
			defs[name] = convert(def)
		}
		out["$defs"] = defs
	}
	return out
}

func convert(s Schema) map[string]any {
	converted := convertForm(s)
	if s.Nullable {
		return map[string]any{
			"oneOf": []any{converted, map[string]any{"type": "null"}},
		}
	}
	return converted
}

func convertForm(s Schema) map[string]any {
	switch {
	case s.Ref != "":
		return map[string]any{"$ref": "#/$defs/" + s.Ref}

	case len(s.Enum) > 0:
		enum := make([]any, len(s.Enum))
		for i, v := range s.Enum {
			enum[i] = v
		}
		return map[string]any{"type": "string", "enum": enum}

	case s.Elements != nil:
		return map[string]any{"type": "array", "items": convert(*s.Elements)}

	case s.Values != nil:
		return map[string]any{"type": "object", "additionalProperties": convert(*s.Values)}

	case s.Discriminator != "":
		return convertDiscriminator(s)

	case len(s.Properties) > 0 || len(s.OptionalProperties) > 0:
		return convertProperties(s)

	case s.Type != "":
		mapped, ok := jsonSchemaTypes[s.Type]
		if !ok {
			return map[string]any{"type": "string"}
		}
		out := map[string]any{"type": mapped.jsType}
		if mapped.format != "" {
			out["format"] = mapped.format
		}
		return out

	default:
		return map[string]any{}
	}
}

func convertProperties(s Schema) map[string]any {
	properties := make(map[string]any, len(s.Properties)+len(s.OptionalProperties))
	required := sortedKeys(s.Properties)
	for _, name := range required {
		properties[name] = convert(s.Properties[name])
	}
	for _, name := range sortedKeys(s.OptionalProperties) {
		properties[name] = convert(s.OptionalProperties[name])
	}
	out := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func convertDiscriminator(s Schema) map[string]any {
	branches := make([]any, 0, len(s.Mapping))
	for _, tag := range sortedKeys(s.Mapping) {
		branch := s.Mapping[tag]
		converted := convertProperties(branch)
		properties, _ := converted["properties"].(map[string]any)
		if properties == nil {
			properties = map[string]any{}
			converted["properties"] = properties
		}
		properties[s.Discriminator] = map[string]any{"const": tag}

		required, _ := converted["required"].([]string)
		required = append(required, s.Discriminator)
		sort.Strings(required)
		converted["required"] = required

		branches = append(branches, converted)
	}
	return map[string]any{"oneOf": branches}
}

func sortedKeys(m map[string]Schema) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Marshal is a convenience wrapper producing canonical JSON bytes for the
// converted schema, ready to hand to a JSON-Schema compiler.
func Marshal(s Schema) ([]byte, error) {
	return json.Marshal(ToJSONSchema(s))
}
