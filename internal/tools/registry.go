package tools

import (
	"sort"

	"github.com/agentfleet/ghtools/internal/manager"
)

// toolset binds the operation bodies to a manager.
type toolset struct {
	m *manager.Manager
}

// Registry is the fixed, enumerable set of operations known at
// construction time. Immutable after New.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry builds the full operation set against one manager.
func NewRegistry(m *manager.Manager) *Registry {
	s := &toolset{m: m}

	reg := &Registry{tools: make(map[string]Tool)}
	for _, group := range [][]*opTool{
		s.issueTools(),
		s.pullRequestTools(),
		s.repositoryTools(),
		s.commitTools(),
		s.branchTools(),
		s.releaseTools(),
		s.actionTools(),
	} {
		for _, t := range group {
			reg.tools[t.name] = t
		}
	}
	return reg
}

// Get looks up an operation by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Operations returns the operation names in sorted order.
func (r *Registry) Operations() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe lists every operation with its description, sorted by
// name.
func (r *Registry) Describe() []map[string]string {
	out := make([]map[string]string, 0, len(r.tools))
	for _, name := range r.Operations() {
		out = append(out, map[string]string{
			"operation":   name,
			"description": r.tools[name].Description(),
		})
	}
	return out
}

// Schema returns the input schema for one operation, or nil when the
// operation does not exist.
func (r *Registry) Schema(name string) any {
	t, ok := r.tools[name]
	if !ok {
		return nil
	}
	return t.InputSchema()
}
