// ABOUTME: Selection records for list editors and the stream builder.
// ABOUTME: A Catalog resolves component ids back to their schemas, tolerating unknown names.

package schema

// ComponentRef identifies one instantiable choice for a component-list field.
type ComponentRef struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Component string           `json:"component"`
	Role      Role             `json:"type"`
	Schema    *ComponentSchema `json:"schema,omitempty"`
}

// Catalog holds the selectable components per role.
type Catalog struct {
	Inputs     []ComponentRef `json:"input"`
	Processors []ComponentRef `json:"processor"`
	Outputs    []ComponentRef `json:"output"`
}

// ForRole returns the selection list for a role.
func (c Catalog) ForRole(role Role) []ComponentRef {
	switch role {
	case RoleInput:
		return c.Inputs
	case RoleProcessor:
		return c.Processors
	case RoleOutput:
		return c.Outputs
	}
	return nil
}

// Find resolves a component id within a role.
func (c Catalog) Find(role Role, id string) (ComponentRef, bool) {
	for _, ref := range c.ForRole(role) {
		if ref.ID == id {
			return ref, true
		}
	}
	return ComponentRef{}, false
}

// FindByComponent resolves a canonical component name within a role.
func (c Catalog) FindByComponent(role Role, component string) (ComponentRef, bool) {
	for _, ref := range c.ForRole(role) {
		if ref.Component == component {
			return ref, true
		}
	}
	return ComponentRef{}, false
}

// Resolve maps a component name to a ref, falling back to a schema-less ref
// named after the component itself when the catalog does not know it.
func (c Catalog) Resolve(role Role, component string) ComponentRef {
	if ref, ok := c.FindByComponent(role, component); ok {
		return ref
	}
	return ComponentRef{ID: component, Name: component, Component: component, Role: role}
}
