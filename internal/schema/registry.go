// ABOUTME: Read-only component registry loaded from the embedded YAML catalog.
// ABOUTME: Every catalog document is checked against a meta-schema before it is accepted.

package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed catalog/*.yaml
var catalogFS embed.FS

//go:embed catalog.schema.yaml
var catalogMetaSchema []byte

// Registry maps (section, component) to component schemas. It is immutable
// after construction and safe for concurrent use.
type Registry struct {
	order map[Section][]*ComponentSchema
	index map[Section]map[string]*ComponentSchema

	validators sync.Map // "section/name" -> *jsonschema.Schema
}

type catalogFile struct {
	Section    Section            `yaml:"section"`
	Components []*ComponentSchema `yaml:"components"`
}

// Builtin loads the catalog compiled into the binary.
func Builtin() (*Registry, error) {
	return Load(catalogFS, "catalog/*.yaml")
}

// MustBuiltin is Builtin for callers that cannot proceed without a catalog.
func MustBuiltin() *Registry {
	r, err := Builtin()
	if err != nil {
		panic(err)
	}
	return r
}

// Load reads every catalog document matching pattern from fsys.
func Load(fsys fs.FS, pattern string) (*Registry, error) {
	meta, err := compileYAMLSchema("mem://catalog.schema.json", catalogMetaSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to compile catalog meta-schema: %w", err)
	}

	files, err := fs.Glob(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog files: %w", err)
	}
	sort.Strings(files)

	r := &Registry{
		order: make(map[Section][]*ComponentSchema),
		index: make(map[Section]map[string]*ComponentSchema),
	}
	for _, name := range files {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		if err := validateYAML(meta, data); err != nil {
			return nil, fmt.Errorf("catalog %s is invalid: %w", path.Base(name), err)
		}

		var doc catalogFile
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		if err := r.add(doc); err != nil {
			return nil, fmt.Errorf("catalog %s: %w", path.Base(name), err)
		}
	}
	return r, nil
}

func (r *Registry) add(doc catalogFile) error {
	if r.index[doc.Section] == nil {
		r.index[doc.Section] = make(map[string]*ComponentSchema)
	}
	for _, c := range doc.Components {
		if _, dup := r.index[doc.Section][c.Name]; dup {
			return fmt.Errorf("duplicate component %s.%s", doc.Section, c.Name)
		}
		if c.Flat && len(c.Properties) != 1 {
			return fmt.Errorf("flat component %s.%s must declare exactly one field", doc.Section, c.Name)
		}
		c.Section = doc.Section
		r.index[doc.Section][c.Name] = c
		r.order[doc.Section] = append(r.order[doc.Section], c)
	}
	return nil
}

// Component looks up a component schema.
func (r *Registry) Component(section Section, name string) (*ComponentSchema, bool) {
	c, ok := r.index[section][name]
	return c, ok
}

// Components lists the selectable component names of a section in catalog order.
func (r *Registry) Components(section Section) []string {
	out := make([]string, 0, len(r.order[section]))
	for _, c := range r.order[section] {
		out = append(out, c.Name)
	}
	return out
}

// Schemas returns the component schemas of a section in catalog order.
func (r *Registry) Schemas(section Section) []*ComponentSchema {
	out := make([]*ComponentSchema, len(r.order[section]))
	copy(out, r.order[section])
	return out
}

// Refs returns selection records for a pipeline section.
func (r *Registry) Refs(section Section) []ComponentRef {
	role := section.Role()
	out := make([]ComponentRef, 0, len(r.order[section]))
	for _, c := range r.order[section] {
		out = append(out, ComponentRef{
			ID:        c.Name,
			Name:      c.Title,
			Component: c.Name,
			Role:      role,
			Schema:    c,
		})
	}
	return out
}

// Catalog returns the selection lists consumed by list editors and the stream builder.
func (r *Registry) Catalog() Catalog {
	return Catalog{
		Inputs:     r.Refs(SectionInput),
		Processors: r.Refs(SectionPipeline),
		Outputs:    r.Refs(SectionOutput),
	}
}

func compileYAMLSchema(url string, data []byte) (*jsonschema.Schema, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return compileJSONSchema(url, jsonData)
}

func compileJSONSchema(url string, jsonData []byte) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	if err := compiler.AddResource(url, bytes.NewReader(jsonData)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	return compiler.Compile(url)
}

func validateYAML(s *jsonschema.Schema, data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse document: %w", err)
	}
	instance, err := toJSONValue(doc)
	if err != nil {
		return err
	}
	return s.Validate(instance)
}

// toJSONValue converts arbitrary values into the plain JSON shapes the validator expects.
func toJSONValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to json: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to convert to json: %w", err)
	}
	return out, nil
}
