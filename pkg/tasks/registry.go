package tasks

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrDuplicateAction is returned when two task types claim the same action name.
	ErrDuplicateAction = errors.New("tasks: duplicate action name")
	// ErrMissingActionName is returned for a task type without an action name.
	ErrMissingActionName = errors.New("tasks: task has no action name")
	// ErrUnknownAction is returned by Registry.Resolve for an unregistered action.
	ErrUnknownAction = errors.New("tasks: unknown action")
)

// Registry is the explicit action-name -> task table built once at startup.
// It is read-only after construction and safe for concurrent lookups.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry registers every factory and fails on the first conflict.
func NewRegistry(factories ...Factory) (*Registry, error) {
	r := &Registry{factories: make(map[string]Factory, len(factories))}
	for _, f := range factories {
		if err := r.Register(f); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a factory keyed by the action name of the task it builds.
func (r *Registry) Register(f Factory) error {
	if f == nil {
		return fmt.Errorf("%w: nil factory", ErrMissingActionName)
	}
	t := f()
	if t == nil {
		return fmt.Errorf("%w: factory returned nil", ErrMissingActionName)
	}
	action := t.ActionName()
	if action == "" {
		return fmt.Errorf("%w: %T", ErrMissingActionName, t)
	}
	if existing, ok := r.factories[action]; ok {
		return fmt.Errorf("%w: %q claimed by %T and %T", ErrDuplicateAction, action, existing(), t)
	}
	r.factories[action] = f
	return nil
}

// Lookup returns the factory registered for action.
func (r *Registry) Lookup(action string) (Factory, bool) {
	f, ok := r.factories[action]
	return f, ok
}

// Resolve instantiates the task registered for action.
func (r *Registry) Resolve(action string) (Task, error) {
	f, ok := r.Lookup(action)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	return f(), nil
}

// Actions lists the registered action names in sorted order.
func (r *Registry) Actions() []string {
	out := make([]string, 0, len(r.factories))
	for a := range r.factories {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
