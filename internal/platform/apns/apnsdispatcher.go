// Package apns provides the push channel for the Apple Push Notification Service.
package apns

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/dispatch"
)

// APNSClient defines the subset of the apns2.Client methods we use.
type APNSClient interface {
	PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error)
}

type Dispatcher struct {
	client APNSClient
	topic  string // app bundle id
	logger *slog.Logger
}

// Config holds the credentials required to sign APNs tokens.
type Config struct {
	KeyID    string
	TeamID   string
	BundleID string
	// P8KeyContent is the raw content of the .p8 file.
	P8KeyContent string
	Sandbox      bool
}

// NewDispatcher parses the P8 key immediately so bad credentials fail at startup.
func NewDispatcher(cfg Config, logger *slog.Logger) (*Dispatcher, error) {
	if cfg.BundleID == "" {
		return nil, fmt.Errorf("apns bundle id is required")
	}
	authKey, err := token.AuthKeyFromBytes([]byte(cfg.P8KeyContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse APNs P8 key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})
	if cfg.Sandbox {
		client = client.Development()
	} else {
		client = client.Production()
	}

	return newDispatcher(client, cfg.BundleID, logger), nil
}

func newDispatcher(client APNSClient, topic string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		client: client,
		topic:  topic,
		logger: logger.With("component", "APNSDispatcher"),
	}
}

// Send pushes to every token in msg. APNs has no multicast endpoint, so
// tokens are sent one request at a time.
//
// A transport failure on every token is reported as a delivery error; partial
// failures and rejected tokens are reported through the result.
func (d *Dispatcher) Send(ctx context.Context, msg dispatch.PushMessage) (*dispatch.PushResult, error) {
	tokens := msg.Tokens
	if msg.Token != "" {
		tokens = append([]string{msg.Token}, tokens...)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: no device token provided", dispatch.ErrValidation)
	}
	if msg.Content.Title == "" && msg.Content.Body == "" {
		return nil, fmt.Errorf("%w: no alert title or body provided", dispatch.ErrValidation)
	}

	builder := payload.NewPayload().
		AlertTitle(msg.Content.Title).
		AlertBody(msg.Content.Body)
	if msg.Content.Sound != "" {
		builder.Sound(msg.Content.Sound)
	}
	for k, v := range msg.Data {
		builder.Custom(k, v)
	}

	result := &dispatch.PushResult{}
	transportFailures := 0
	for _, deviceToken := range tokens {
		res, err := d.client.PushWithContext(ctx, &apns2.Notification{
			DeviceToken: deviceToken,
			Topic:       d.topic,
			Payload:     builder,
		})
		if err != nil {
			d.logger.Error("APNs transport failed", "token", deviceToken, "err", err)
			result.FailureCount++
			transportFailures++
			continue
		}

		if res.Sent() {
			result.SuccessCount++
			if result.MessageID == "" {
				result.MessageID = res.ApnsID
			}
			continue
		}

		result.FailureCount++
		switch res.Reason {
		case apns2.ReasonBadDeviceToken, apns2.ReasonUnregistered, apns2.ReasonDeviceTokenNotForTopic:
			result.InvalidTokens = append(result.InvalidTokens, deviceToken)
		default:
			// Configuration problems (TopicDisallowed, PayloadEmpty) leave the token valid.
			d.logger.Warn("APNs rejected notification", "reason", res.Reason, "status", res.StatusCode)
		}
	}

	if transportFailures == len(tokens) {
		return result, fmt.Errorf("%w: apns unreachable for all %d tokens", dispatch.ErrDelivery, len(tokens))
	}
	return result, nil
}
