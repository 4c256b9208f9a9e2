package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
)

// JSON represents a JSON Schema definition for a configuration value.
type JSON struct {
	Type        string          `json:"type,omitempty" yaml:"type,omitempty"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Properties  map[string]JSON `json:"properties,omitempty" yaml:"properties,omitempty"`
	Required    []string        `json:"required,omitempty" yaml:"required,omitempty"`
	Items       *JSON           `json:"items,omitempty" yaml:"items,omitempty"`
	Enum        []any           `json:"enum,omitempty" yaml:"enum,omitempty"`
	Default     any             `json:"default,omitempty" yaml:"default,omitempty"`
	Minimum     *float64        `json:"minimum,omitempty" yaml:"minimum,omitempty"`
	Maximum     *float64        `json:"maximum,omitempty" yaml:"maximum,omitempty"`
	MinLength   *int            `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength   *int            `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Pattern     string          `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// IsZero reports whether the schema carries no constraints at all.
// A zero schema accepts every configuration.
func (s JSON) IsZero() bool {
	return s.Type == "" && len(s.Properties) == 0 && len(s.Required) == 0 &&
		s.Items == nil && len(s.Enum) == 0
}

// Any creates a schema that accepts any value.
func Any() JSON {
	return JSON{}
}

// String creates a schema for a string value.
func String() JSON {
	return JSON{Type: "string"}
}

// StringWithDesc creates a string schema with a description.
func StringWithDesc(desc string) JSON {
	return JSON{Type: "string", Description: desc}
}

// Int creates a schema for an integer value.
func Int() JSON {
	return JSON{Type: "integer"}
}

// Number creates a schema for a numeric value.
func Number() JSON {
	return JSON{Type: "number"}
}

// Bool creates a schema for a boolean value.
func Bool() JSON {
	return JSON{Type: "boolean"}
}

// Array creates a schema for an array whose items match the given schema.
func Array(items JSON) JSON {
	return JSON{Type: "array", Items: &items}
}

// Object creates a schema for an object with the given properties; the
// listed property names are required.
func Object(properties map[string]JSON, required ...string) JSON {
	return JSON{Type: "object", Properties: properties, Required: required}
}

// Enum creates a schema restricted to the given values.
func Enum(values ...any) JSON {
	return JSON{Enum: values}
}

// Validate checks the given value against the schema. It returns an error
// describing the first violation found, or nil if the value conforms.
func (s JSON) Validate(value any) error {
	if value == nil {
		if s.Type != "" {
			return fmt.Errorf("expected type %s, got nil", s.Type)
		}
		return nil
	}

	if len(s.Enum) > 0 {
		return s.validateEnum(value)
	}

	switch s.Type {
	case "":
		return nil
	case "string":
		return s.validateString(value)
	case "integer":
		return s.validateInteger(value)
	case "number":
		return s.validateNumber(value)
	case "boolean":
		return s.validateBoolean(value)
	case "array":
		return s.validateArray(value)
	case "object":
		return s.validateObject(value)
	default:
		return fmt.Errorf("unknown schema type: %s", s.Type)
	}
}

func (s JSON) validateString(value any) error {
	str, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected string, got %T", value)
	}

	if s.MinLength != nil && len(str) < *s.MinLength {
		return fmt.Errorf("string length %d is less than minimum %d", len(str), *s.MinLength)
	}
	if s.MaxLength != nil && len(str) > *s.MaxLength {
		return fmt.Errorf("string length %d is greater than maximum %d", len(str), *s.MaxLength)
	}
	if s.Pattern != "" {
		matched, err := regexp.MatchString(s.Pattern, str)
		if err != nil {
			return fmt.Errorf("invalid pattern: %w", err)
		}
		if !matched {
			return fmt.Errorf("string does not match pattern %s", s.Pattern)
		}
	}
	return nil
}

func (s JSON) validateInteger(value any) error {
	v := reflect.ValueOf(value)
	var num float64
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		num = float64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		num = float64(v.Uint())
	case reflect.Float32, reflect.Float64:
		num = v.Float()
		if num != float64(int64(num)) {
			return fmt.Errorf("expected integer, got float with decimal: %v", value)
		}
	default:
		return fmt.Errorf("expected integer, got %T", value)
	}
	return s.validateNumericBounds(num)
}

func (s JSON) validateNumber(value any) error {
	v := reflect.ValueOf(value)
	var num float64
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		num = float64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		num = float64(v.Uint())
	case reflect.Float32, reflect.Float64:
		num = v.Float()
	default:
		return fmt.Errorf("expected number, got %T", value)
	}
	return s.validateNumericBounds(num)
}

func (s JSON) validateNumericBounds(num float64) error {
	if s.Minimum != nil && num < *s.Minimum {
		return fmt.Errorf("value %v is less than minimum %v", num, *s.Minimum)
	}
	if s.Maximum != nil && num > *s.Maximum {
		return fmt.Errorf("value %v is greater than maximum %v", num, *s.Maximum)
	}
	return nil
}

func (s JSON) validateBoolean(value any) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("expected boolean, got %T", value)
	}
	return nil
}

func (s JSON) validateArray(value any) error {
	v := reflect.ValueOf(value)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return fmt.Errorf("expected array, got %T", value)
	}
	if s.Items != nil {
		for i := 0; i < v.Len(); i++ {
			if err := s.Items.Validate(v.Index(i).Interface()); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
	}
	return nil
}

func (s JSON) validateObject(value any) error {
	var objMap map[string]any
	switch v := value.(type) {
	case map[string]any:
		objMap = v
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal object: %w", err)
		}
		if err := json.Unmarshal(data, &objMap); err != nil {
			return fmt.Errorf("failed to unmarshal object: %w", err)
		}
	}

	for _, req := range s.Required {
		if _, exists := objMap[req]; !exists {
			return fmt.Errorf("required field %s is missing", req)
		}
	}
	for key, val := range objMap {
		if propSchema, exists := s.Properties[key]; exists {
			if err := propSchema.Validate(val); err != nil {
				return fmt.Errorf("property %s: %w", key, err)
			}
		}
	}
	return nil
}

func (s JSON) validateEnum(value any) error {
	for _, enumVal := range s.Enum {
		if reflect.DeepEqual(value, enumVal) {
			return nil
		}
	}
	return fmt.Errorf("value %v is not one of the allowed values: %v", value, s.Enum)
}
