// Package pipeline contains the stages of the queue forwarder: durable-queue
// messages are validated as task payloads and POSTed to the worker ingress.
package pipeline

import (
	"context"
	"fmt"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/tasks"
)

// PayloadTransformer is a dataflow Transformer that validates a raw message
// as a task payload. Malformed messages are skipped with an error so the
// subscription's dead-letter policy takes them.
func PayloadTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*tasks.Payload, bool, error) {
	p, err := tasks.DecodePayload(msg.Payload)
	if err != nil {
		return nil, true, fmt.Errorf("failed to decode task payload from message %s: %w", msg.ID, err)
	}
	return p, false, nil
}
