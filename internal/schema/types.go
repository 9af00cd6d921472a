// ABOUTME: Field and component schema types for the pipeline component catalog.
// ABOUTME: FieldType is a closed enumeration; every consumer switches over it exhaustively.

package schema

import (
	"fmt"

	"github.com/2389/airtruct-console/internal/configtext"
	"gopkg.in/yaml.v3"
)

// FieldType identifies how a field is edited and serialized.
type FieldType string

const (
	TypeInput          FieldType = "input"
	TypeNumber         FieldType = "number"
	TypeBool           FieldType = "bool"
	TypeSelect         FieldType = "select"
	TypeDynamicSelect  FieldType = "dynamic_select"
	TypeCode           FieldType = "code"
	TypeKeyValue       FieldType = "key_value"
	TypeArray          FieldType = "array"
	TypeObject         FieldType = "object"
	TypeProcessorList  FieldType = "processor_list"
	TypeProcessorCases FieldType = "processor_cases"
	TypeOutputList     FieldType = "output_list"
	TypeOutputCases    FieldType = "output_cases"
	TypeInputList      FieldType = "input_list"
)

// FieldTypes lists every field type in declaration order.
var FieldTypes = []FieldType{
	TypeInput, TypeNumber, TypeBool, TypeSelect, TypeDynamicSelect, TypeCode,
	TypeKeyValue, TypeArray, TypeObject,
	TypeProcessorList, TypeProcessorCases, TypeOutputList, TypeOutputCases, TypeInputList,
}

// Valid reports whether t is a member of the enumeration.
func (t FieldType) Valid() bool {
	for _, ft := range FieldTypes {
		if ft == t {
			return true
		}
	}
	return false
}

// IsList reports whether t is one of the composite component-list kinds.
func (t FieldType) IsList() bool {
	switch t {
	case TypeProcessorList, TypeProcessorCases, TypeOutputList, TypeOutputCases, TypeInputList:
		return true
	}
	return false
}

// IsCases reports whether t holds conditional cases rather than plain entries.
func (t FieldType) IsCases() bool {
	return t == TypeProcessorCases || t == TypeOutputCases
}

// ListRole returns the catalog role whose components populate a list-kind field.
func (t FieldType) ListRole() Role {
	switch t {
	case TypeProcessorList, TypeProcessorCases:
		return RoleProcessor
	case TypeOutputList, TypeOutputCases:
		return RoleOutput
	case TypeInputList:
		return RoleInput
	}
	return ""
}

// DataSource names an external option list for dynamic_select fields.
type DataSource string

const (
	SourceCaches     DataSource = "caches"
	SourceSecrets    DataSource = "secrets"
	SourceRateLimits DataSource = "rate_limits"
)

// Valid reports whether s is a known option source.
func (s DataSource) Valid() bool {
	switch s {
	case SourceCaches, SourceSecrets, SourceRateLimits:
		return true
	}
	return false
}

// FieldSchema describes one configurable field.
type FieldSchema struct {
	Type        FieldType  `yaml:"type" json:"type"`
	Title       string     `yaml:"title,omitempty" json:"title,omitempty"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Required    bool       `yaml:"required,omitempty" json:"required,omitempty"`
	Default     any        `yaml:"-" json:"default,omitempty"`
	HasDefault  bool       `yaml:"-" json:"-"`
	Options     []string   `yaml:"options,omitempty" json:"options,omitempty"`
	DataSource  DataSource `yaml:"data_source,omitempty" json:"data_source,omitempty"`
	Min         *float64   `yaml:"min,omitempty" json:"min,omitempty"`
	Properties  Properties `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// UnmarshalYAML decodes a field, converting the default into the ordered value model.
func (f *FieldSchema) UnmarshalYAML(n *yaml.Node) error {
	type plain FieldSchema
	var raw struct {
		plain   `yaml:",inline"`
		Default yaml.Node `yaml:"default"`
	}
	if err := n.Decode(&raw); err != nil {
		return err
	}
	*f = FieldSchema(raw.plain)
	if raw.Default.Kind != 0 {
		v, err := configtext.FromNode(&raw.Default)
		if err != nil {
			return fmt.Errorf("default: %w", err)
		}
		f.Default = v
		f.HasDefault = true
	}
	return nil
}

// Label returns the title, falling back to the given field name.
func (f *FieldSchema) Label(name string) string {
	if f.Title != "" {
		return f.Title
	}
	return name
}

// Field is a named field schema.
type Field struct {
	Name   string
	Schema *FieldSchema
}

// Properties is an ordered set of named fields.
type Properties []Field

// Get returns the schema of the named field.
func (p Properties) Get(name string) (*FieldSchema, bool) {
	for _, f := range p {
		if f.Name == name {
			return f.Schema, true
		}
	}
	return nil, false
}

// Names returns field names in declaration order.
func (p Properties) Names() []string {
	out := make([]string, len(p))
	for i, f := range p {
		out[i] = f.Name
	}
	return out
}

// UnmarshalYAML keeps the mapping's declaration order.
func (p *Properties) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: properties must be a mapping", n.Line)
	}
	out := make(Properties, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		fs := &FieldSchema{}
		if err := n.Content[i+1].Decode(fs); err != nil {
			return fmt.Errorf("property %s: %w", n.Content[i].Value, err)
		}
		out = append(out, Field{Name: n.Content[i].Value, Schema: fs})
	}
	*p = out
	return nil
}

// MarshalJSON encodes properties as an ordered JSON object.
func (p Properties) MarshalJSON() ([]byte, error) {
	m := configtext.NewMap()
	for _, f := range p {
		m.Set(f.Name, f.Schema)
	}
	return m.MarshalJSON()
}

// Section is a catalog section.
type Section string

const (
	SectionInput     Section = "input"
	SectionPipeline  Section = "pipeline"
	SectionOutput    Section = "output"
	SectionBuffer    Section = "buffer"
	SectionCache     Section = "cache"
	SectionRateLimit Section = "rate_limit"
)

// Sections lists every section in display order.
var Sections = []Section{SectionInput, SectionPipeline, SectionOutput, SectionBuffer, SectionCache, SectionRateLimit}

// Valid reports whether s is a known section.
func (s Section) Valid() bool {
	for _, sec := range Sections {
		if sec == s {
			return true
		}
	}
	return false
}

// Role maps pipeline sections to node roles. Resource sections have no role.
func (s Section) Role() Role {
	switch s {
	case SectionInput:
		return RoleInput
	case SectionPipeline:
		return RoleProcessor
	case SectionOutput:
		return RoleOutput
	}
	return ""
}

// Role is the part a component plays in a stream.
type Role string

const (
	RoleInput     Role = "input"
	RoleProcessor Role = "processor"
	RoleOutput    Role = "output"
)

// Section returns the catalog section that supplies components for r.
func (r Role) Section() Section {
	switch r {
	case RoleInput:
		return SectionInput
	case RoleProcessor:
		return SectionPipeline
	case RoleOutput:
		return SectionOutput
	}
	return ""
}

// ComponentSchema is the configuration schema of one selectable component.
type ComponentSchema struct {
	Name        string     `yaml:"name" json:"name"`
	Section     Section    `yaml:"-" json:"section"`
	Title       string     `yaml:"title" json:"title"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Flat        bool       `yaml:"flat,omitempty" json:"flat,omitempty"`
	Properties  Properties `yaml:"properties" json:"properties"`
}

// FlatField returns the single inlined field of a flat component.
func (c *ComponentSchema) FlatField() (Field, bool) {
	if c == nil || !c.Flat || len(c.Properties) == 0 {
		return Field{}, false
	}
	return c.Properties[0], true
}

// Empty reports whether the component takes no configuration at all.
func (c *ComponentSchema) Empty() bool {
	return c != nil && len(c.Properties) == 0
}

// RequiredFields returns the names of required top-level fields.
func (c *ComponentSchema) RequiredFields() []string {
	var out []string
	for _, f := range c.Properties {
		if f.Schema.Required {
			out = append(out, f.Name)
		}
	}
	return out
}
