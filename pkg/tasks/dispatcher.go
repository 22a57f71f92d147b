package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

// Backend selects where non-immediate tasks go. It is process-wide
// configuration, unlike the per-instance immediate flag.
type Backend string

const (
	// BackendDurable pushes payloads onto the external durable queue; the
	// worker ingress replays them.
	BackendDurable Backend = "durable"
	// BackendBroker hands payloads to the broker for asynchronous execution.
	BackendBroker Backend = "broker"
)

// ParseBackend validates a configured backend name.
func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case BackendDurable, BackendBroker:
		return Backend(s), nil
	default:
		return "", fmt.Errorf("tasks: unknown queue backend %q (want %q or %q)", s, BackendDurable, BackendBroker)
	}
}

// DurableQueue accepts a serialized Payload. The boolean reports whether the
// queue acknowledged it.
type DurableQueue interface {
	Submit(ctx context.Context, payload []byte) bool
}

// Broker accepts a Payload for asynchronous execution by a broker worker.
type Broker interface {
	Enqueue(ctx context.Context, payload *Payload) error
}

// Dispatcher routes task invocations. It is built once per process and
// shared by every request.
type Dispatcher struct {
	backend Backend
	durable DurableQueue
	broker  Broker
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher for backend. Only the submitter for the
// selected backend is required; the other may be nil.
func NewDispatcher(backend Backend, durable DurableQueue, broker Broker, logger *slog.Logger) (*Dispatcher, error) {
	switch backend {
	case BackendDurable:
		if durable == nil {
			return nil, fmt.Errorf("tasks: durable backend selected without a durable queue")
		}
	case BackendBroker:
		if broker == nil {
			return nil, fmt.Errorf("tasks: broker backend selected without a broker")
		}
	default:
		return nil, fmt.Errorf("tasks: unknown queue backend %q", backend)
	}
	return &Dispatcher{
		backend: backend,
		durable: durable,
		broker:  broker,
		logger:  logger.With("component", "TaskDispatcher"),
	}, nil
}

// Backend reports the configured backend.
func (d *Dispatcher) Backend() Backend {
	return d.backend
}

// New binds t to the dispatcher. With immediate set, Queue runs the task in
// the caller's goroutine instead of deferring it.
func (d *Dispatcher) New(t Task, immediate bool) *Queueable {
	d.logger.Debug("Task created", "action", t.ActionName(), "immediate", immediate)
	return &Queueable{task: t, immediate: immediate, d: d}
}

// Queueable is one task instance bound to a dispatcher.
type Queueable struct {
	task      Task
	immediate bool
	d         *Dispatcher
}

// Task returns the wrapped task.
func (q *Queueable) Task() Task {
	return q.task
}

// Immediate reports whether Queue runs the task inline.
func (q *Queueable) Immediate() bool {
	return q.immediate
}

// Queue dispatches one invocation. The boolean is an acceptance indicator,
// not a completion guarantee.
//
// An error is only returned for immediate runs: it is the task's own error
// (or an argument encoding error). Deferred dispatch never returns an error;
// failures are logged and reported as false.
//
// Arguments are JSON-encoded in every mode, immediate included, so a task
// sees the same Args inline as it does from a queue. An argument that does
// not encode to JSON (a func, a channel, a cyclic value) therefore fails an
// immediate call before Run is reached.
func (q *Queueable) Queue(ctx context.Context, args []any, kwargs map[string]any) (bool, error) {
	action := q.task.ActionName()
	logger := q.d.logger.With("action", action)
	logger.Debug("Queueing task", "args", len(args), "kwargs", len(kwargs), "immediate", q.immediate)

	encoded, err := EncodeArgs(args, kwargs)
	if err != nil {
		if q.immediate {
			return false, err
		}
		logger.Error("Task arguments are not serializable", "err", err)
		return false, nil
	}

	if q.immediate {
		if err := q.task.Run(ctx, encoded); err != nil {
			return false, err
		}
		return true, nil
	}

	switch q.d.backend {
	case BackendDurable:
		return q.submitDurable(ctx, logger, action, encoded), nil
	default:
		return q.submitBroker(ctx, logger, action, encoded), nil
	}
}

func (q *Queueable) submitDurable(ctx context.Context, logger *slog.Logger, action string, args Args) bool {
	if action == "" {
		logger.Error("Task has no action name; it cannot be routed through the durable queue", "task", fmt.Sprintf("%T", q.task))
		return false
	}
	body, err := NewPayload(action, args).Marshal()
	if err != nil {
		logger.Error("Failed to serialize payload", "err", err)
		return false
	}
	if len(body) > MaxPayloadSize {
		logger.Warn("Payload too large for the durable queue", "size", len(body), "limit", MaxPayloadSize)
		return false
	}
	ok := q.d.durable.Submit(ctx, body)
	if !ok {
		logger.Warn("Failed to submit task to durable queue")
		return false
	}
	logger.Debug("Submitted task to durable queue", "payload", string(body))
	return true
}

func (q *Queueable) submitBroker(ctx context.Context, logger *slog.Logger, action string, args Args) bool {
	if err := q.d.broker.Enqueue(ctx, NewPayload(action, args)); err != nil {
		logger.Error("Broker rejected task", "err", err)
		return false
	}
	return true
}

// DecodeArgsAndRun replays a deserialized payload against the task. It is
// used by the worker ingress and the broker worker.
func (q *Queueable) DecodeArgsAndRun(ctx context.Context, p *Payload) error {
	return q.task.Run(ctx, p.Arguments())
}

// Replay resolves p.Action in registry and runs a fresh task instance with
// p's arguments. A panic in the task is returned as an error.
func (d *Dispatcher) Replay(ctx context.Context, registry *Registry, p *Payload) (err error) {
	t, err := registry.Resolve(p.Action)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tasks: %q panicked: %v", p.Action, r)
		}
	}()
	return d.New(t, false).DecodeArgsAndRun(ctx, p)
}
