package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
)

type SchemaType string

const (
	TypeObject  SchemaType = "object"
	TypeArray   SchemaType = "array"
	TypeString  SchemaType = "string"
	TypeNumber  SchemaType = "number"
	TypeInteger SchemaType = "integer"
	TypeBoolean SchemaType = "boolean"
)

// Schema is the JSON Schema subset supported by every model backend.
type Schema struct {
	Type                 SchemaType         `json:"type"`
	Description          string             `json:"description,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	Enum                 []string           `json:"enum,omitempty"`
	Minimum              *float64           `json:"minimum,omitempty"`
	Maximum              *float64           `json:"maximum,omitempty"`
	AdditionalProperties *bool              `json:"additionalProperties,omitempty"`
}

// Object builds a closed object schema: every property is required and
// unknown properties are rejected.
func Object(properties map[string]*Schema) *Schema {
	required := make([]string, 0, len(properties))
	for name := range properties {
		required = append(required, name)
	}
	sort.Strings(required)

	closed := false
	return &Schema{
		Type:                 TypeObject,
		Properties:           properties,
		Required:             required,
		AdditionalProperties: &closed,
	}
}

func ArrayOf(items *Schema) *Schema {
	return &Schema{Type: TypeArray, Items: items}
}

func String(description string, enum ...string) *Schema {
	return &Schema{Type: TypeString, Description: description, Enum: enum}
}

func Number(description string, minimum, maximum float64) *Schema {
	return &Schema{Type: TypeNumber, Description: description, Minimum: &minimum, Maximum: &maximum}
}

func Integer(description string) *Schema {
	return &Schema{Type: TypeInteger, Description: description}
}

// Map renders the schema as a generic JSON object.
func (s *Schema) Map() map[string]any {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// Validate checks a decoded JSON value against the schema.
func (s *Schema) Validate(value any) error {
	return s.validate("$", value)
}

func (s *Schema) validate(path string, value any) error {
	if s == nil {
		return nil
	}

	switch s.Type {
	case TypeObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: expected object, got %T", path, value)
		}
		for _, name := range s.Required {
			if _, ok := obj[name]; !ok {
				return fmt.Errorf("%s: missing required property %q", path, name)
			}
		}
		names := make([]string, 0, len(obj))
		for name := range obj {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			prop, ok := s.Properties[name]
			if !ok {
				if s.AdditionalProperties != nil && !*s.AdditionalProperties {
					return fmt.Errorf("%s: unexpected property %q", path, name)
				}
				continue
			}
			if err := prop.validate(path+"."+name, obj[name]); err != nil {
				return err
			}
		}
	case TypeArray:
		items, ok := value.([]any)
		if !ok {
			return fmt.Errorf("%s: expected array, got %T", path, value)
		}
		for i, item := range items {
			if err := s.Items.validate(fmt.Sprintf("%s[%d]", path, i), item); err != nil {
				return err
			}
		}
	case TypeString:
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s: expected string, got %T", path, value)
		}
		if len(s.Enum) > 0 && !slices.Contains(s.Enum, str) {
			return fmt.Errorf("%s: %q is not one of %v", path, str, s.Enum)
		}
	case TypeNumber, TypeInteger:
		num, ok := value.(float64)
		if !ok {
			return fmt.Errorf("%s: expected number, got %T", path, value)
		}
		if s.Type == TypeInteger && num != math.Trunc(num) {
			return fmt.Errorf("%s: expected integer, got %v", path, num)
		}
		if s.Minimum != nil && num < *s.Minimum {
			return fmt.Errorf("%s: %v is below minimum %v", path, num, *s.Minimum)
		}
		if s.Maximum != nil && num > *s.Maximum {
			return fmt.Errorf("%s: %v is above maximum %v", path, num, *s.Maximum)
		}
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%s: expected boolean, got %T", path, value)
		}
	}

	return nil
}
