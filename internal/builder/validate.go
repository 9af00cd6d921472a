// ABOUTME: Local validation of a draft before it is saved.
// ABOUTME: Remote validation and dry runs are delegated to the backend.

package builder

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/2389/airtruct-console/internal/api"
	"github.com/2389/airtruct-console/internal/schema"
)

// FieldError is a validation failure tied to a node field or a draft field.
// Node is empty for draft-level fields such as the name.
type FieldError struct {
	Node    string `json:"node,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Message
}

func describe(n *Node) string {
	kind := strings.ToUpper(string(n.Role[:1])) + string(n.Role[1:])
	if n.Label == "" {
		return kind + " node"
	}
	return fmt.Sprintf("%s node %q", kind, n.Label)
}

// Validate checks the draft against the registry. Saving is blocked while it returns anything.
func (d *Draft) Validate(reg *schema.Registry) []FieldError {
	var errs []FieldError
	if strings.TrimSpace(d.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Message: "Stream name is required"})
	}
	if !slices.Contains(api.Statuses, d.Status) {
		errs = append(errs, FieldError{Field: "status", Message: fmt.Sprintf("Status must be one of %s", strings.Join(api.Statuses, ", "))})
	}

	cat := reg.Catalog()
	seen := map[string]string{}
	for _, n := range d.Nodes() {
		if !ValidLabel(n.Label) {
			errs = append(errs, FieldError{Node: n.ID, Field: "label", Message: fmt.Sprintf("%s: %s", describe(n), ErrInvalidLabel)})
		} else if n.Label != "" {
			if other, dup := seen[n.Label]; dup && other != n.ID {
				errs = append(errs, FieldError{Node: n.ID, Field: "label", Message: fmt.Sprintf("Label %q is used by more than one node", n.Label)})
			}
			seen[n.Label] = n.ID
		}

		if n.ComponentID == "" {
			errs = append(errs, FieldError{Node: n.ID, Field: "component", Message: describe(n) + " must have a component selected"})
			continue
		}
		ref, ok := cat.Find(n.Role, n.ComponentID)
		if !ok || ref.Schema == nil {
			errs = append(errs, FieldError{Node: n.ID, Field: "component", Message: fmt.Sprintf("%s: component %q not found in available schemas", describe(n), n.ComponentID)})
			continue
		}
		for _, p := range reg.ValidateConfig(ref.Schema, n.ConfigYAML) {
			field := "config"
			if p.Field != "" {
				field = "config." + p.Field
			}
			errs = append(errs, FieldError{Node: n.ID, Field: field, Message: describe(n) + ": " + p.String()})
		}
	}
	return errs
}

// RemoteValidate asks the backend to validate the draft without saving it.
func (d *Draft) RemoteValidate(ctx context.Context, b api.Backend, cat schema.Catalog) (*api.ValidateResult, error) {
	return b.ValidateStream(ctx, d.Request(cat))
}

// Try runs sample messages through the draft's processors. Blank messages are skipped.
func (d *Draft) Try(ctx context.Context, b api.Backend, cat schema.Catalog, messages []string) (*api.TryResult, error) {
	req := api.TryRequest{Processors: d.Request(cat).Processors, Messages: []api.TryMessage{}}
	for _, m := range messages {
		if strings.TrimSpace(m) != "" {
			req.Messages = append(req.Messages, api.TryMessage{Content: m})
		}
	}
	return b.TryStream(ctx, req)
}
