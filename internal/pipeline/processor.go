package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/tasks"
)

// MessageIDHeader carries the queue message id to the ingress for log correlation.
const MessageIDHeader = "X-Queue-Message-Id"

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewForwardProcessor posts each message body to the worker ingress at url.
// A non-2xx answer is returned as an error, so the message is nacked and the
// queue's retry and dead-letter policy decide what happens next.
func NewForwardProcessor(url string, client HTTPDoer, logger *slog.Logger) messagepipeline.StreamProcessor[tasks.Payload] {
	logger = logger.With("component", "ForwardProcessor", "target", url)

	return func(ctx context.Context, original messagepipeline.Message, payload *tasks.Payload) error {
		procLogger := logger.With("action", payload.Action, "pubsub_msg_id", original.ID)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(original.Payload))
		if err != nil {
			return fmt.Errorf("build forward request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(MessageIDHeader, original.ID)

		resp, err := client.Do(req)
		if err != nil {
			procLogger.Error("Forward failed", "err", err)
			return fmt.Errorf("forward to ingress: %w", err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			procLogger.Warn("Ingress rejected task", "status", resp.StatusCode, "body", string(body))
			return fmt.Errorf("ingress returned %d for action %q", resp.StatusCode, payload.Action)
		}
		procLogger.Debug("Task forwarded")
		return nil
	}
}
