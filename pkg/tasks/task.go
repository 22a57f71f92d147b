// Package tasks contains the deferrable-work abstraction shared by the
// dispatcher service, the broker worker and the queue forwarder.
//
// A Task is a named unit of work. Application code wraps a Task in a
// Queueable (see Dispatcher.New) and calls Queue; depending on the
// per-instance immediate flag and the process-wide Backend the work runs
// inline, is handed to the broker, or is serialized onto the durable queue
// and later replayed by the worker ingress.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotImplemented is returned by Base.Run. Concrete tasks must override Run.
	ErrNotImplemented = errors.New("tasks: Run must be overridden by every concrete task")
	// ErrArgumentMissing is returned by Args.Arg for an index past the end.
	ErrArgumentMissing = errors.New("tasks: argument missing")
)

// Task defines the contract for a deferrable unit of work.
type Task interface {
	// ActionName is the stable identifier of the task type. It is the routing
	// key on the durable queue and the lookup key at the worker ingress.
	ActionName() string

	// Run performs the work. It may be invoked more than once for the same
	// payload (at-least-once redelivery) and must be safe under that.
	Run(ctx context.Context, args Args) error
}

// Factory builds a fresh Task instance. The registry stores factories rather
// than instances so every delivery runs on its own value.
type Factory func() Task

// Base can be embedded by tasks that only want to supply ActionName while
// their Run is still being written. Calling its Run is a programming error.
type Base struct{}

func (Base) Run(context.Context, Args) error {
	return ErrNotImplemented
}

// Args carries the positional and named arguments of one invocation in
// their JSON form. Arguments are always encoded, even for immediate runs,
// so a task behaves the same inline and after a round trip through a queue.
type Args struct {
	Positional []json.RawMessage
	Named      map[string]json.RawMessage
}

// EncodeArgs converts caller values into Args. Any value that cannot be
// represented as JSON is rejected.
func EncodeArgs(args []any, kwargs map[string]any) (Args, error) {
	out := Args{
		Positional: make([]json.RawMessage, 0, len(args)),
		Named:      make(map[string]json.RawMessage, len(kwargs)),
	}
	for i, a := range args {
		raw, err := json.Marshal(a)
		if err != nil {
			return Args{}, fmt.Errorf("tasks: encode positional argument %d: %w", i, err)
		}
		out.Positional = append(out.Positional, raw)
	}
	for k, v := range kwargs {
		raw, err := json.Marshal(v)
		if err != nil {
			return Args{}, fmt.Errorf("tasks: encode keyword argument %q: %w", k, err)
		}
		out.Named[k] = raw
	}
	return out, nil
}

// Len reports the number of positional arguments.
func (a Args) Len() int {
	return len(a.Positional)
}

// Arg decodes the positional argument at index i into v.
func (a Args) Arg(i int, v any) error {
	if i < 0 || i >= len(a.Positional) {
		return fmt.Errorf("%w: index %d of %d", ErrArgumentMissing, i, len(a.Positional))
	}
	if err := json.Unmarshal(a.Positional[i], v); err != nil {
		return fmt.Errorf("tasks: decode positional argument %d: %w", i, err)
	}
	return nil
}

// Kwarg decodes the named argument into v. It reports false when the name
// was not supplied, leaving v untouched.
func (a Args) Kwarg(name string, v any) (bool, error) {
	raw, ok := a.Named[name]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("tasks: decode keyword argument %q: %w", name, err)
	}
	return true, nil
}
