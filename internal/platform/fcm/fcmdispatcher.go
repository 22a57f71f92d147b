// Package fcm is the push gateway channel backed by Firebase Cloud Messaging.
package fcm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tinywideclouds/go-notification-dispatcher/pkg/dispatch"
)

// ChunkSize is the number of registration tokens sent per gateway call.
const ChunkSize = 900

// Gateway is the bulk-send capability of the push provider.
type Gateway interface {
	SendOne(ctx context.Context, token string, msg dispatch.PushMessage) (*dispatch.PushResult, error)
	SendMany(ctx context.Context, tokens []string, msg dispatch.PushMessage) (*dispatch.PushResult, error)
}

type Dispatcher struct {
	gateway Gateway
	logger  *slog.Logger
}

func NewDispatcher(gateway Gateway, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		gateway: gateway,
		logger:  logger.With("component", "FCMDispatcher"),
	}
}

// Send delivers to a single token or to a token list. Lists are split into
// chunks of ChunkSize and sent one after another.
//
// Only the result of the last chunk is returned; earlier chunk results are
// logged. Callers relying on per-token outcomes for large lists must split
// the list themselves.
func (d *Dispatcher) Send(ctx context.Context, msg dispatch.PushMessage) (*dispatch.PushResult, error) {
	if err := validate(msg); err != nil {
		return nil, err
	}

	if msg.Token != "" {
		res, err := d.gateway.SendOne(ctx, msg.Token, msg)
		if err != nil {
			d.logger.Error("FCM send failed", "err", err)
			return res, fmt.Errorf("%w: fcm: %v", dispatch.ErrDelivery, err)
		}
		return res, nil
	}

	var result *dispatch.PushResult
	for i, chunk := range Chunks(msg.Tokens, ChunkSize) {
		res, err := d.gateway.SendMany(ctx, chunk, msg)
		if err != nil {
			d.logger.Error("FCM chunk failed", "chunk", i, "size", len(chunk), "err", err)
			return nil, fmt.Errorf("%w: fcm chunk %d: %v", dispatch.ErrDelivery, i, err)
		}
		d.logger.Debug("FCM chunk sent", "chunk", i, "success", res.SuccessCount, "failure", res.FailureCount)
		result = res
	}
	return result, nil
}

// Chunks splits tokens into consecutive slices of at most size elements.
func Chunks(tokens []string, size int) [][]string {
	if size <= 0 {
		size = ChunkSize
	}
	var out [][]string
	for start := 0; start < len(tokens); start += size {
		end := min(start+size, len(tokens))
		out = append(out, tokens[start:end])
	}
	return out
}

func validate(msg dispatch.PushMessage) error {
	if msg.Token == "" && len(msg.Tokens) == 0 {
		return fmt.Errorf("%w: no registration token provided", dispatch.ErrValidation)
	}
	if msg.Content.Title == "" {
		return fmt.Errorf("%w: no message title provided", dispatch.ErrValidation)
	}
	if msg.Content.Body == "" {
		return fmt.Errorf("%w: no message body provided", dispatch.ErrValidation)
	}
	return nil
}
