// Package web delivers push messages to browser subscriptions over VAPID.
package web

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/tinywideclouds/go-notification-dispatcher/notificationservice/config"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/dispatch"
	"github.com/tinywideclouds/go-platform/pkg/notification/v1"
)

const defaultTTL = 60

type Dispatcher struct {
	subscriber string
	privateKey string
	publicKey  string
	logger     *slog.Logger
	httpClient webpush.HTTPClient
}

func NewDispatcher(cfg config.VapidConfig, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		privateKey: cfg.PrivateKey,
		publicKey:  cfg.PublicKey,
		subscriber: cfg.SubscriberEmail,
		logger:     logger.With("component", "WebPushDispatcher"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send delivers content to every subscription. Expired subscriptions (404/410)
// are reported in InvalidTokens by endpoint so the caller can remove them.
func (d *Dispatcher) Send(
	ctx context.Context,
	subs []notification.WebPushSubscription,
	content notification.NotificationContent,
	data map[string]string,
) (*dispatch.PushResult, error) {
	if len(subs) == 0 {
		return nil, fmt.Errorf("%w: no subscriptions provided", dispatch.ErrValidation)
	}
	if content.Title == "" && content.Body == "" {
		return nil, fmt.Errorf("%w: no title or body provided", dispatch.ErrValidation)
	}
	if d.privateKey == "" || d.publicKey == "" {
		return nil, fmt.Errorf("%w: VAPID keys are not configured", dispatch.ErrValidation)
	}

	payloadBytes, err := json.Marshal(map[string]any{
		"notification": map[string]string{
			"title": content.Title,
			"body":  content.Body,
		},
		"data": data,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal payload: %v", dispatch.ErrValidation, err)
	}

	result := &dispatch.PushResult{}
	transportFailures := 0
	for _, sub := range subs {
		status, err := d.sendOne(ctx, payloadBytes, sub)
		if err != nil {
			// DNS, timeout: the subscription may still be valid.
			d.logger.Error("WebPush transport error", "endpoint", sub.Endpoint, "err", err)
			result.FailureCount++
			transportFailures++
			continue
		}

		switch status {
		case http.StatusCreated, http.StatusOK:
			result.SuccessCount++
		case http.StatusGone, http.StatusNotFound:
			result.InvalidTokens = append(result.InvalidTokens, sub.Endpoint)
			result.FailureCount++
		default:
			d.logger.Warn("WebPush rejected", "status", status, "endpoint", sub.Endpoint)
			result.FailureCount++
		}
	}

	if transportFailures == len(subs) {
		return result, fmt.Errorf("%w: web push unreachable for all %d subscriptions", dispatch.ErrDelivery, len(subs))
	}
	return result, nil
}

func (d *Dispatcher) sendOne(ctx context.Context, payload []byte, sub notification.WebPushSubscription) (int, error) {
	s := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: base64.RawURLEncoding.EncodeToString(sub.Keys.P256dh),
			Auth:   base64.RawURLEncoding.EncodeToString(sub.Keys.Auth),
		},
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, s, &webpush.Options{
		Subscriber:      d.subscriber,
		VAPIDPublicKey:  d.publicKey,
		VAPIDPrivateKey: d.privateKey,
		TTL:             defaultTTL,
		HTTPClient:      d.httpClient,
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
