package skill

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry maps skill names to skill instances and routes execution
// requests to them.
type Registry struct {
	mu     sync.RWMutex
	skills map[string]Skill
	runner *Runner
}

// NewRegistry builds an empty registry backed by the given runner.
func NewRegistry(runner *Runner) *Registry {
	return &Registry{
		skills: make(map[string]Skill),
		runner: runner,
	}
}

// Register adds a skill under its configured name, replacing any previous
// registration.
func (r *Registry) Register(s Skill) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skills[s.Config().Name] = s
}

// Get returns the skill registered under name.
func (r *Registry) Get(name string) (Skill, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.skills[name]
	if !ok {
		return nil, fmt.Errorf("unknown skill: %s", name)
	}
	return s, nil
}

// Names returns the registered skill names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.skills))
	for name := range r.skills {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch executes the named skill with the given input.
func (r *Registry) Dispatch(ctx context.Context, name string, input any) (Result, error) {
	s, err := r.Get(name)
	if err != nil {
		return Result{}, err
	}
	return r.runner.Execute(ctx, s, input)
}
