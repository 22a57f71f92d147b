// Package pubsub is the durable queue backend: payloads are published to a
// Google Cloud Pub/Sub topic and later pushed back to the worker ingress.
package pubsub

import (
	"context"
	"log/slog"

	"cloud.google.com/go/pubsub/v2"
)

// Submitter implements tasks.DurableQueue.
type Submitter struct {
	publisher *pubsub.Publisher
	logger    *slog.Logger
}

func NewSubmitter(client *pubsub.Client, topicID string, logger *slog.Logger) *Submitter {
	return &Submitter{
		publisher: client.Publisher(topicID),
		logger:    logger.With("component", "PubsubSubmitter", "topic", topicID),
	}
}

// Submit publishes payload and waits for the server to assign an id.
func (s *Submitter) Submit(ctx context.Context, payload []byte) bool {
	result := s.publisher.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: map[string]string{"content-type": "application/json"},
	})
	id, err := result.Get(ctx)
	if err != nil {
		s.logger.Error("Publish failed", "err", err)
		return false
	}
	s.logger.Debug("Payload published", "message_id", id)
	return true
}

// Stop flushes pending publishes.
func (s *Submitter) Stop() {
	s.publisher.Stop()
}
