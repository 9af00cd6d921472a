// ABOUTME: Stream builder drafts: an input node, ordered processor nodes, and an output node.
// ABOUTME: Converts between drafts and coordinator stream records.

package builder

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/2389/airtruct-console/internal/api"
	"github.com/2389/airtruct-console/internal/schema"
	"github.com/google/uuid"
)

var (
	ErrUnknownNode  = errors.New("unknown node")
	ErrInvalidLabel = errors.New("labels may only contain lowercase letters, digits, '_' and '-'")
)

var labelPattern = regexp.MustCompile(`^[a-z0-9_-]*$`)

// ValidLabel reports whether label is acceptable as a node label.
func ValidLabel(label string) bool {
	return labelPattern.MatchString(label)
}

// Node is one component in the pipeline.
type Node struct {
	ID          string      `json:"id"`
	Label       string      `json:"label"`
	Role        schema.Role `json:"type"`
	ComponentID string      `json:"component_id"`
	ConfigYAML  string      `json:"config"`
}

func newNode(role schema.Role) *Node {
	return &Node{ID: uuid.NewString(), Label: "new_" + string(role), Role: role}
}

// Draft is an unsaved stream definition.
type Draft struct {
	ID         int64   `json:"id,omitempty"`
	Name       string  `json:"name"`
	Status     string  `json:"status"`
	BufferID   *int64  `json:"buffer_id,omitempty"`
	Input      *Node   `json:"input"`
	Processors []*Node `json:"processors"`
	Output     *Node   `json:"output"`
}

// New returns an empty draft with unselected input and output nodes.
func New() *Draft {
	return &Draft{
		Status: api.StatusActive,
		Input:  newNode(schema.RoleInput),
		Output: newNode(schema.RoleOutput),
	}
}

// Nodes returns every node in pipeline order.
func (d *Draft) Nodes() []*Node {
	out := make([]*Node, 0, len(d.Processors)+2)
	out = append(out, d.Input)
	out = append(out, d.Processors...)
	return append(out, d.Output)
}

// Node finds a node by id.
func (d *Draft) Node(id string) (*Node, error) {
	for _, n := range d.Nodes() {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownNode, id)
}

func (d *Draft) processorIndex(id string) (int, error) {
	for i, n := range d.Processors {
		if n.ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrUnknownNode, id)
}

// AddProcessor appends an unselected processor node.
func (d *Draft) AddProcessor() *Node {
	n := newNode(schema.RoleProcessor)
	d.Processors = append(d.Processors, n)
	return n
}

// RemoveProcessor deletes a processor node. Input and output cannot be removed.
func (d *Draft) RemoveProcessor(id string) error {
	i, err := d.processorIndex(id)
	if err != nil {
		return err
	}
	d.Processors = append(d.Processors[:i], d.Processors[i+1:]...)
	return nil
}

// MoveProcessor moves a processor node to position to.
func (d *Draft) MoveProcessor(id string, to int) error {
	i, err := d.processorIndex(id)
	if err != nil {
		return err
	}
	if to < 0 || to >= len(d.Processors) {
		return fmt.Errorf("position %d out of range", to)
	}
	n := d.Processors[i]
	d.Processors = append(d.Processors[:i], d.Processors[i+1:]...)
	d.Processors = append(d.Processors[:to], append([]*Node{n}, d.Processors[to:]...)...)
	return nil
}

// SetLabel renames a node. Invalid labels are rejected and leave the node unchanged.
func (d *Draft) SetLabel(id, label string) error {
	n, err := d.Node(id)
	if err != nil {
		return err
	}
	if !ValidLabel(label) {
		return fmt.Errorf("%q: %w", label, ErrInvalidLabel)
	}
	n.Label = label
	return nil
}

// SelectComponent picks a node's component. Choosing a different component clears its config.
func (d *Draft) SelectComponent(id, componentID string) error {
	n, err := d.Node(id)
	if err != nil {
		return err
	}
	if n.ComponentID == componentID {
		return nil
	}
	n.ComponentID = componentID
	n.ConfigYAML = ""
	return nil
}

// SetConfig replaces a node's configuration text.
func (d *Draft) SetConfig(id, text string) error {
	n, err := d.Node(id)
	if err != nil {
		return err
	}
	n.ConfigYAML = text
	return nil
}

func component(cat schema.Catalog, n *Node) string {
	if ref, ok := cat.Find(n.Role, n.ComponentID); ok {
		return ref.Component
	}
	return n.ComponentID
}

// Request builds the stream create or update body.
func (d *Draft) Request(cat schema.Catalog) api.StreamRequest {
	procs := make([]api.Processor, 0, len(d.Processors))
	for _, n := range d.Processors {
		procs = append(procs, api.Processor{Label: n.Label, Component: component(cat, n), Config: n.ConfigYAML})
	}
	return api.StreamRequest{
		Name:            d.Name,
		Status:          d.Status,
		InputLabel:      d.Input.Label,
		InputComponent:  component(cat, d.Input),
		InputConfig:     d.Input.ConfigYAML,
		OutputLabel:     d.Output.Label,
		OutputComponent: component(cat, d.Output),
		OutputConfig:    d.Output.ConfigYAML,
		BufferID:        d.BufferID,
		Processors:      procs,
	}
}

// FromStream loads a saved stream into a draft. Unknown components are kept by name.
func FromStream(s api.Stream, cat schema.Catalog) *Draft {
	node := func(role schema.Role, label, comp, config string) *Node {
		n := newNode(role)
		n.Label = label
		if comp != "" {
			n.ComponentID = cat.Resolve(role, comp).ID
		}
		n.ConfigYAML = config
		return n
	}
	d := &Draft{
		ID:       s.ID,
		Name:     s.Name,
		Status:   s.Status,
		BufferID: s.BufferID,
		Input:    node(schema.RoleInput, s.InputLabel, s.InputComponent, s.InputConfig),
		Output:   node(schema.RoleOutput, s.OutputLabel, s.OutputComponent, s.OutputConfig),
	}
	for _, p := range s.Processors {
		d.Processors = append(d.Processors, node(schema.RoleProcessor, p.Label, p.Component, p.Config))
	}
	if d.Status == "" {
		d.Status = api.StatusActive
	}
	return d
}
