package tools

import (
	"context"
	"fmt"
	"sort"
)

// Registry is a static table of Tool Layer members keyed by name, mirroring
// the Agent Registry's closed-enum-over-a-map shape rather than the
// repository/discovery abstraction a dynamic plugin system would need.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry builds an empty registry; callers Register each configured
// tool.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, keyed by its declared name.
func (r *Registry) Register(t Tool) error {
	info := t.Info()
	if info.Name == "" {
		return fmt.Errorf("tools: tool has empty name")
	}
	r.tools[info.Name] = t
	return nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List returns every registered tool's info, sorted by name.
func (r *Registry) List() []ToolInfo {
	out := make([]ToolInfo, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Invoke looks up a tool by name and invokes it, wrapping an unknown tool
// name as a permanent error so callers can treat every Invoke failure
// uniformly.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any, onProgress ProgressFunc) (Result, error) {
	t, ok := r.Get(name)
	if !ok {
		return Result{}, NewError(name, ErrorKindPermanent, fmt.Errorf("unknown tool: %s", name))
	}
	return t.Invoke(ctx, args, onProgress)
}
