package workflows

import (
	"context"
	"fmt"
	"sort"
)

// Workflow is one named, linear sequence of platform calls.
type Workflow interface {
	Name() string
	Run(ctx context.Context) error
}

// Described is implemented by workflows that carry a one-line summary for
// `ttd list`.
type Described interface {
	Description() string
}

// Registry keeps workflows in registration order and resolves them by name.
type Registry struct {
	ordered []Workflow
	byName  map[string]Workflow
}

// NewRegistry builds a registry preloaded with workflows. Nil entries are
// skipped.
func NewRegistry(items ...Workflow) (*Registry, error) {
	registry := &Registry{byName: map[string]Workflow{}}
	for _, wf := range items {
		if err := registry.Register(wf); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Register adds wf. Names must be non-empty and unique.
func (r *Registry) Register(wf Workflow) error {
	if wf == nil {
		return nil
	}
	name := wf.Name()
	if name == "" {
		return fmt.Errorf("workflow name is required")
	}
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("workflow %q already registered", name)
	}
	r.byName[name] = wf
	r.ordered = append(r.ordered, wf)
	return nil
}

// Lookup returns the workflow registered under name.
func (r *Registry) Lookup(name string) (Workflow, bool) {
	wf, ok := r.byName[name]
	return wf, ok
}

// Workflows returns the registered workflows in the order they were added.
func (r *Registry) Workflows() []Workflow {
	out := make([]Workflow, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Names returns the registered names sorted alphabetically.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Subset returns a registry holding only the named workflows, in the order
// given.
func (r *Registry) Subset(names ...string) (*Registry, error) {
	sub := &Registry{byName: map[string]Workflow{}}
	for _, name := range names {
		wf, ok := r.byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown workflow %q", name)
		}
		if err := sub.Register(wf); err != nil {
			return nil, err
		}
	}
	return sub, nil
}

// Func adapts a function into a Workflow.
type Func struct {
	WorkflowName string
	Summary      string
	Fn           func(ctx context.Context) error
}

func (f Func) Name() string                  { return f.WorkflowName }
func (f Func) Description() string           { return f.Summary }
func (f Func) Run(ctx context.Context) error { return f.Fn(ctx) }
