// Package schema describes the structural contract a generation step expects
// the model to honor. The descriptor is provider-neutral; each provider
// translates it into its own wire representation.
package schema

import (
	"encoding/json"
	"sort"
)

// Type enumerates the value kinds a schema node can declare.
type Type string

const (
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
)

// Schema is a recursive type descriptor for structured model output.
type Schema struct {
	Type        Type
	Description string
	Properties  map[string]*Schema // object nodes
	Required    []string           // object nodes
	Items       *Schema            // array nodes
	Enum        []string           // string nodes
}

// String returns a string schema node.
func String(description string) *Schema {
	return &Schema{Type: TypeString, Description: description}
}

// Number returns a number schema node.
func Number(description string) *Schema {
	return &Schema{Type: TypeNumber, Description: description}
}

// Integer returns an integer schema node.
func Integer(description string) *Schema {
	return &Schema{Type: TypeInteger, Description: description}
}

// Boolean returns a boolean schema node.
func Boolean(description string) *Schema {
	return &Schema{Type: TypeBoolean, Description: description}
}

// Array returns an array schema node with the given item type.
func Array(items *Schema, description string) *Schema {
	return &Schema{Type: TypeArray, Items: items, Description: description}
}

// Object returns an object schema node. Every property is marked required,
// matching how generation steps declare complete output shapes; use
// ObjectWithOptional when some keys may be omitted.
func Object(description string, properties map[string]*Schema) *Schema {
	required := make([]string, 0, len(properties))
	for name := range properties {
		required = append(required, name)
	}
	sort.Strings(required)
	return &Schema{
		Type:        TypeObject,
		Description: description,
		Properties:  properties,
		Required:    required,
	}
}

// ObjectWithOptional returns an object schema node requiring only the listed keys.
func ObjectWithOptional(description string, properties map[string]*Schema, required ...string) *Schema {
	return &Schema{
		Type:        TypeObject,
		Description: description,
		Properties:  properties,
		Required:    required,
	}
}

// TopLevelKeys returns the sorted property names of an object schema. Steps
// that fan out into multiple composite keys declare them from this set.
func (s *Schema) TopLevelKeys() []string {
	if s == nil || s.Type != TypeObject {
		return nil
	}
	keys := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON renders the descriptor as standard JSON Schema, the shape
// embedded into prompts and accepted by OpenAI-style response formats.
func (s *Schema) MarshalJSON() ([]byte, error) {
	out := map[string]any{"type": string(s.Type)}
	if s.Description != "" {
		out["description"] = s.Description
	}
	switch s.Type {
	case TypeObject:
		props := make(map[string]any, len(s.Properties))
		for name, prop := range s.Properties {
			props[name] = prop
		}
		out["properties"] = props
		if len(s.Required) > 0 {
			out["required"] = s.Required
		}
	case TypeArray:
		if s.Items != nil {
			out["items"] = s.Items
		}
	case TypeString:
		if len(s.Enum) > 0 {
			out["enum"] = s.Enum
		}
	}
	return json.Marshal(out)
}

// JSON returns the JSON Schema rendering as a string, for prompt embedding.
func (s *Schema) JSON() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
