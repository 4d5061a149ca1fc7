package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownTool is returned when the model names a tool that is not registered.
var ErrUnknownTool = errors.New("invalid tool call")

// Registry is the static name → tool table used to dispatch model actions.
type Registry struct {
	tools map[string]Tool
	order []string
}

func NewRegistry(ts ...Tool) *Registry {
	m := make(map[string]Tool, len(ts))
	order := make([]string, 0, len(ts))
	for _, t := range ts {
		if _, dup := m[t.Name()]; !dup {
			order = append(order, t.Name())
		}
		m[t.Name()] = t
	}
	return &Registry{tools: m, order: order}
}

// Names returns tool names sorted alphabetically.
func (r *Registry) Names() []string {
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Catalog returns one "- signature: description" line per tool in registration order.
func (r *Registry) Catalog() []string {
	out := make([]string, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		out = append(out, fmt.Sprintf("- %s: %s", t.Signature(), t.Description()))
	}
	return out
}

func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage) (any, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return t.Execute(ctx, input)
}
