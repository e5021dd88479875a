package tool

import (
	"fmt"
	"slices"
)

// Registry is an immutable name -> Tool index built at construction.
// Definition order follows registration order.
type Registry struct {
	order []string
	tools map[string]Tool
}

// NewRegistry indexes tools by name. Nil tools, empty names and duplicate
// names are rejected.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}

	for _, t := range tools {
		if t == nil {
			return nil, fmt.Errorf("tool registry: nil tool")
		}

		name := t.Name()
		if name == "" {
			return nil, fmt.Errorf("tool registry: tool with empty name")
		}

		if _, dup := r.tools[name]; dup {
			return nil, fmt.Errorf("tool registry: duplicate tool name %q", name)
		}

		r.tools[name] = t
		r.order = append(r.order, name)
	}

	return r, nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.tools[name]
	return t, ok
}

// Names returns registered names in registration order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return slices.Clone(r.order)
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []Tool {
	if r == nil {
		return nil
	}
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}
