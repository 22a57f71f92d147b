package redisqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/tasks"
)

// Runner executes a decoded payload. *tasks.Dispatcher bound to a registry
// (see RunnerFor) satisfies it.
type Runner interface {
	Run(ctx context.Context, p *tasks.Payload) error
}

type RunnerFunc func(ctx context.Context, p *tasks.Payload) error

func (f RunnerFunc) Run(ctx context.Context, p *tasks.Payload) error { return f(ctx, p) }

// RunnerFor replays payloads through d using registry.
func RunnerFor(d *tasks.Dispatcher, registry *tasks.Registry) Runner {
	return RunnerFunc(func(ctx context.Context, p *tasks.Payload) error {
		return d.Replay(ctx, registry, p)
	})
}

type WorkerConfig struct {
	Stream   string
	Group    string
	Consumer string
	Workers  int
	Block    time.Duration
	Count    int64
	// ClaimIdle is how long an entry may sit unacknowledged in another
	// consumer's pending list before Start takes it over.
	ClaimIdle time.Duration
}

// Worker consumes the stream through a consumer group. Each entry is run once
// and acknowledged; failures are copied to the dead-letter stream. There is
// no broker-side retry.
type Worker struct {
	client StreamClient
	cfg    WorkerConfig
	runner Runner
	logger *slog.Logger

	// readCancel stops the read loops; workCancel aborts running tasks and
	// is only used when Stop runs out of time.
	readCancel context.CancelFunc
	workCancel context.CancelFunc
	wg         sync.WaitGroup
}

func NewWorker(client StreamClient, cfg WorkerConfig, runner Runner, logger *slog.Logger) *Worker {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.Count <= 0 {
		cfg.Count = 10
	}
	if cfg.ClaimIdle <= 0 {
		cfg.ClaimIdle = 5 * time.Minute
	}
	return &Worker{
		client: client,
		cfg:    cfg,
		runner: runner,
		logger: logger.With("component", "RedisWorker", "stream", cfg.Stream, "group", cfg.Group),
	}
}

// Start creates the consumer group if needed, takes over entries abandoned
// by consumers that went away, and launches the read loops.
//
// Tasks run on a context detached from ctx so that cancelling ctx (or
// calling Stop) lets in-flight tasks finish and be acknowledged.
func (w *Worker) Start(ctx context.Context) error {
	err := w.client.XGroupCreateMkStream(ctx, w.cfg.Stream, w.cfg.Group, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}

	readCtx, readCancel := context.WithCancel(ctx)
	workCtx, workCancel := context.WithCancel(context.WithoutCancel(ctx))
	w.readCancel = readCancel
	w.workCancel = workCancel

	w.wg.Add(1)
	go w.reclaim(readCtx, workCtx)
	for i := range w.cfg.Workers {
		w.wg.Add(1)
		go w.run(readCtx, workCtx, i)
	}
	w.logger.Info("Worker started", "workers", w.cfg.Workers, "consumer", w.cfg.Consumer)
	return nil
}

// Stop stops reading and waits for in-flight tasks to finish and be
// acknowledged. If ctx expires first the running tasks are cancelled and
// ctx.Err() is returned; their entries stay pending and are reclaimed by the
// next Start.
func (w *Worker) Stop(ctx context.Context) error {
	if w.readCancel != nil {
		w.readCancel()
	}
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		if w.workCancel != nil {
			w.workCancel()
		}
		w.logger.Info("Worker stopped")
		return nil
	case <-ctx.Done():
		if w.workCancel != nil {
			w.workCancel()
		}
		w.logger.Warn("Worker stop timed out, in-flight tasks cancelled")
		return ctx.Err()
	}
}

// reclaim walks the group's pending list once and processes every entry
// idle for longer than ClaimIdle, whichever consumer it was delivered to.
func (w *Worker) reclaim(readCtx, workCtx context.Context) {
	defer w.wg.Done()
	logger := w.logger.With("worker", "reclaim")

	start := "0-0"
	for readCtx.Err() == nil {
		msgs, next, err := w.client.XAutoClaim(readCtx, &redis.XAutoClaimArgs{
			Stream:   w.cfg.Stream,
			Group:    w.cfg.Group,
			Consumer: w.cfg.Consumer,
			MinIdle:  w.cfg.ClaimIdle,
			Start:    start,
			Count:    w.cfg.Count,
		}).Result()
		if err != nil {
			if readCtx.Err() == nil {
				logger.Error("XAUTOCLAIM failed", "err", err)
			}
			return
		}
		if len(msgs) > 0 {
			logger.Info("Reclaimed abandoned entries", "count", len(msgs))
		}
		for _, msg := range msgs {
			w.process(workCtx, logger, msg)
		}
		if next == "" || next == "0-0" {
			return
		}
		start = next
	}
}

func (w *Worker) run(readCtx, workCtx context.Context, id int) {
	defer w.wg.Done()
	logger := w.logger.With("worker", id)

	for readCtx.Err() == nil {
		streams, err := w.client.XReadGroup(readCtx, &redis.XReadGroupArgs{
			Group:    w.cfg.Group,
			Consumer: w.cfg.Consumer,
			Streams:  []string{w.cfg.Stream, ">"},
			Block:    w.cfg.Block,
			Count:    w.cfg.Count,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || readCtx.Err() != nil {
				continue
			}
			logger.Error("XREADGROUP failed", "err", err)
			select {
			case <-readCtx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				w.process(workCtx, logger, msg)
			}
		}
	}
}

// process runs one entry, dead-letters it on failure and always acks it.
func (w *Worker) process(ctx context.Context, logger *slog.Logger, msg redis.XMessage) {
	jobID, _ := msg.Values[fieldID].(string)
	raw, _ := msg.Values[fieldTask].(string)
	logger = logger.With("entry_id", msg.ID, "job_id", jobID)

	err := w.execute(ctx, raw)
	if err != nil {
		logger.Error("Task failed, moving to dead-letter stream", "payload", raw, "err", err)
		dlqErr := w.client.XAdd(ctx, &redis.XAddArgs{
			Stream: DeadLetterStream(w.cfg.Stream),
			Values: map[string]any{fieldID: jobID, fieldTask: raw, fieldError: err.Error()},
		}).Err()
		if dlqErr != nil {
			logger.Error("Dead-letter push failed", "err", dlqErr)
		}
	} else {
		logger.Debug("Task succeeded")
	}

	if err := w.client.XAck(ctx, w.cfg.Stream, w.cfg.Group, msg.ID).Err(); err != nil {
		logger.Error("XACK failed", "err", err)
	}
}

func (w *Worker) execute(ctx context.Context, raw string) error {
	if raw == "" {
		return fmt.Errorf("entry has no %q field", fieldTask)
	}
	p, err := tasks.DecodePayload([]byte(raw))
	if err != nil {
		return err
	}
	return w.runner.Run(ctx, p)
}
