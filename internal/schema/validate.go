// ABOUTME: JSON Schema derivation and local validation of component configuration text.
// ABOUTME: Used by the local backend's validate endpoint and the stream builder's pre-save checks.

package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/2389/airtruct-console/internal/configtext"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Problem is one validation finding. Field is a dotted path, empty for the whole config.
type Problem struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (p Problem) String() string {
	if p.Field == "" {
		return p.Message
	}
	return p.Field + ": " + p.Message
}

// JSONSchema derives a draft-07 JSON Schema document for a component's configuration.
func JSONSchema(c *ComponentSchema) *configtext.Map {
	var doc *configtext.Map
	if f, ok := c.FlatField(); ok {
		doc = fieldJSONSchema(f.Schema)
	} else {
		doc = objectJSONSchema(c.Properties)
	}
	doc = doc.Copy()
	out := configtext.MapOf("$schema", "http://json-schema.org/draft-07/schema#", "title", c.Title)
	if c.Description != "" {
		out.Set("description", c.Description)
	}
	doc.Range(func(k string, v any) bool {
		out.Set(k, v)
		return true
	})
	return out
}

func objectJSONSchema(props Properties) *configtext.Map {
	out := configtext.MapOf("type", "object")
	if len(props) == 0 {
		return out
	}
	properties := configtext.NewMap()
	var required []any
	for _, p := range props {
		properties.Set(p.Name, fieldJSONSchema(p.Schema))
		if p.Schema.Required {
			required = append(required, p.Name)
		}
	}
	out.Set("properties", properties)
	if len(required) > 0 {
		out.Set("required", required)
	}
	return out
}

var scalarTypes = []any{"string", "number", "boolean"}

func singleComponentJSONSchema() *configtext.Map {
	return configtext.MapOf("type", "object", "minProperties", 1, "maxProperties", 1)
}

func fieldJSONSchema(f *FieldSchema) *configtext.Map {
	var out *configtext.Map
	switch f.Type {
	case TypeInput, TypeCode:
		out = configtext.MapOf("type", scalarTypes)
	case TypeDynamicSelect:
		out = configtext.MapOf("type", "string")
	case TypeNumber:
		out = configtext.MapOf("type", "number")
		if f.Min != nil {
			out.Set("minimum", *f.Min)
		}
	case TypeBool:
		out = configtext.MapOf("type", "boolean")
	case TypeSelect:
		enum := make([]any, len(f.Options))
		for i, o := range f.Options {
			enum[i] = o
		}
		out = configtext.MapOf("type", "string", "enum", enum)
	case TypeKeyValue:
		out = configtext.MapOf("type", "object", "additionalProperties", configtext.MapOf("type", scalarTypes))
	case TypeArray:
		out = configtext.MapOf("type", "array", "items", configtext.MapOf("type", scalarTypes))
	case TypeObject:
		out = objectJSONSchema(f.Properties)
	case TypeProcessorList, TypeInputList, TypeOutputList:
		out = configtext.MapOf("type", "array", "items", singleComponentJSONSchema())
	case TypeProcessorCases:
		out = configtext.MapOf("type", "array", "items", configtext.MapOf(
			"type", "object",
			"required", []any{"processors"},
			"properties", configtext.MapOf(
				"check", configtext.MapOf("type", "string"),
				"processors", configtext.MapOf("type", "array", "items", singleComponentJSONSchema()),
				"fallthrough", configtext.MapOf("type", "boolean"),
			),
		))
	case TypeOutputCases:
		out = configtext.MapOf("type", "array", "items", configtext.MapOf(
			"type", "object",
			"required", []any{"output"},
			"properties", configtext.MapOf(
				"check", configtext.MapOf("type", "string"),
				"output", singleComponentJSONSchema(),
				"continue", configtext.MapOf("type", "boolean"),
			),
		))
	default:
		out = configtext.NewMap()
	}
	if f.Description != "" {
		out.Set("description", f.Description)
	}
	return out
}

// ValidateConfig checks configuration text against a component schema. Missing
// required top-level fields are reported by title; type, enum and nested
// violations come from the derived JSON Schema. An empty result means valid.
func (r *Registry) ValidateConfig(c *ComponentSchema, text string) []Problem {
	if c == nil {
		return []Problem{{Message: "unknown component"}}
	}

	var instance any
	if f, ok := c.FlatField(); ok && (f.Schema.Type == TypeCode || f.Schema.Type == TypeInput) {
		if strings.TrimSpace(text) == "" && f.Schema.Required {
			return []Problem{{Message: fmt.Sprintf("%s is required", f.Schema.Label(f.Name))}}
		}
		instance = text
	} else {
		parsed, err := configtext.Parse(text)
		if err != nil {
			return []Problem{{Message: err.Error()}}
		}
		instance = parsed
		if parsed == nil {
			if f, ok := c.FlatField(); ok && f.Schema.Type.IsList() {
				if f.Schema.Required {
					return []Problem{{Message: fmt.Sprintf("%s is required", f.Schema.Label(f.Name))}}
				}
				instance = []any{}
			} else if !c.Flat {
				instance = configtext.NewMap()
			}
		}
	}

	var problems []Problem
	if m, ok := instance.(*configtext.Map); ok && !c.Flat {
		for _, p := range c.Properties {
			if p.Schema.Required && !m.Has(p.Name) {
				problems = append(problems, Problem{Field: p.Name, Message: fmt.Sprintf("%s is required", p.Schema.Label(p.Name))})
			}
		}
	}

	compiled, err := r.compiled(c)
	if err != nil {
		return append(problems, Problem{Message: err.Error()})
	}
	plain, err := toJSONValue(instance)
	if err != nil {
		return append(problems, Problem{Message: err.Error()})
	}
	if err := compiled.Validate(plain); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return append(problems, Problem{Message: err.Error()})
		}
		problems = append(problems, leafProblems(ve)...)
	}
	return problems
}

func (r *Registry) compiled(c *ComponentSchema) (*jsonschema.Schema, error) {
	key := string(c.Section) + "/" + c.Name
	if s, ok := r.validators.Load(key); ok {
		return s.(*jsonschema.Schema), nil
	}
	data, err := JSONSchema(c).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema for %s: %w", key, err)
	}
	s, err := compileJSONSchema("component://"+key+".json", data)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema for %s: %w", key, err)
	}
	r.validators.Store(key, s)
	return s, nil
}

func leafProblems(ve *jsonschema.ValidationError) []Problem {
	if len(ve.Causes) == 0 {
		if ve.InstanceLocation == "" && strings.HasSuffix(ve.KeywordLocation, "/required") {
			return nil
		}
		field := strings.ReplaceAll(strings.TrimPrefix(ve.InstanceLocation, "/"), "/", ".")
		return []Problem{{Field: field, Message: ve.Message}}
	}
	var out []Problem
	for _, cause := range ve.Causes {
		out = append(out, leafProblems(cause)...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}
