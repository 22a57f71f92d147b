package sns

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tinywideclouds/go-notification-dispatcher/pkg/dispatch"
)

// Registration holds the endpoint ARN for one device across calls. It is not
// safe for concurrent use.
type Registration struct {
	client      *Client
	device      Device
	endpointARN string
	storedUser  string
}

func (r *Registration) EndpointARN() string { return r.endpointARN }

// Register makes sure the device has a live, enabled endpoint carrying its
// current token.
func (r *Registration) Register(ctx context.Context) error {
	logger := r.client.logger.With("device_type", r.device.Type)
	provider := r.client.provider

	arn := r.endpointARN
	createNeeded := arn == ""
	updateNeeded := false

	if createNeeded {
		created, err := r.createEndpoint(ctx)
		if err != nil {
			return err
		}
		arn = created
		createNeeded = false
	}

	attrs, err := provider.GetEndpointAttributes(ctx, arn)
	switch {
	case errors.Is(err, ErrNotFound):
		// The stored ARN points at an endpoint the provider dropped.
		logger.Info("Endpoint disappeared, recreating", "endpoint_arn", arn)
		createNeeded = true
	case err != nil:
		return fmt.Errorf("get endpoint attributes: %w", err)
	default:
		updateNeeded = attrs["Token"] != r.device.Token || !strings.EqualFold(attrs["Enabled"], "true")
	}

	if createNeeded {
		created, err := r.createEndpoint(ctx)
		if err != nil {
			return err
		}
		arn = created
	}

	if updateNeeded {
		logger.Info("Endpoint drifted, updating", "endpoint_arn", arn)
		err := provider.SetEndpointAttributes(ctx, arn, map[string]string{
			"Token":   r.device.Token,
			"Enabled": "true",
		})
		if err != nil {
			return fmt.Errorf("set endpoint attributes: %w", err)
		}
	}

	changed := arn != r.endpointARN || r.storedUser != r.device.UserData
	r.endpointARN = arn
	if changed {
		r.remember(ctx)
	}
	return nil
}

// createEndpoint relies on the provider's idempotent create. A conflict on
// the same token with different attributes resolves to the existing ARN.
func (r *Registration) createEndpoint(ctx context.Context) (string, error) {
	appARN, err := r.client.platformARN(r.device.Type)
	if err != nil {
		return "", err
	}

	arn, err := r.client.provider.CreatePlatformEndpoint(ctx, appARN, r.device.Token, r.device.UserData)
	if err == nil {
		return arn, nil
	}

	outcome := parseEndpointConflict(err)
	if !outcome.resolved() {
		return "", fmt.Errorf("create platform endpoint: %w", outcome.err)
	}
	r.client.logger.Debug("Endpoint already exists with different attributes", "endpoint_arn", outcome.arn)
	return outcome.arn, nil
}

func (r *Registration) remember(ctx context.Context) {
	store := r.client.store
	if store == nil {
		return
	}
	err := store.Put(ctx, dispatch.EndpointRecord{
		DeviceType:  string(r.device.Type),
		UserData:    r.device.UserData,
		Token:       r.device.Token,
		EndpointARN: r.endpointARN,
		UpdatedAt:   time.Now().UTC(),
	})
	if err != nil {
		// The provider is the source of truth; the next call recreates or finds.
		r.client.logger.Warn("Failed to persist endpoint", "endpoint_arn", r.endpointARN, "err", err)
		return
	}
	r.storedUser = r.device.UserData
}

// Publish registers the device, then publishes message (an SNS JSON message
// structure). It reports true only when the provider returns a message id.
func (r *Registration) Publish(ctx context.Context, message string) (bool, error) {
	if err := r.Register(ctx); err != nil {
		return false, err
	}

	r.client.logger.Info("Publishing to endpoint", "endpoint_arn", r.endpointARN, "user_data", r.device.UserData)
	messageID, err := r.client.provider.Publish(ctx, r.endpointARN, message)
	if err != nil {
		return false, fmt.Errorf("publish: %w", err)
	}
	return messageID != "", nil
}
