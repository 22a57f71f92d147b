// Package sns keeps device tokens registered as Amazon SNS platform
// endpoints and publishes to them.
//
// Registration follows the token management flow recommended for SNS mobile
// push: create (or find) the endpoint, read its attributes back, recreate it
// if it vanished and rewrite the token if it drifted. Endpoints are never
// deleted here.
package sns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tinywideclouds/go-notification-dispatcher/pkg/dispatch"
)

type DeviceType string

const (
	DeviceAndroid DeviceType = "android"
	DeviceIOS     DeviceType = "ios"
)

func ParseDeviceType(s string) (DeviceType, error) {
	switch DeviceType(strings.ToLower(strings.TrimSpace(s))) {
	case DeviceAndroid:
		return DeviceAndroid, nil
	case DeviceIOS:
		return DeviceIOS, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDeviceType, s)
}

// Device is one app installation as seen by the push provider.
type Device struct {
	Type     DeviceType
	Token    string
	UserData string
}

func (d Device) key() dispatch.EndpointKey {
	return dispatch.EndpointKey{DeviceType: string(d.Type), Token: d.Token}
}

// PlatformApplications holds the platform application ARN per OS.
// An empty ARN disables that device type.
type PlatformApplications struct {
	Android string
	IOS     string
}

// Client is the long-lived, validated handle on the provider. Build it once
// at startup and share it; per-device state lives in Registration.
type Client struct {
	provider Provider
	apps     PlatformApplications
	store    dispatch.EndpointStore
	logger   *slog.Logger
}

// NewClient validates the provider connection and every configured platform
// application. Any failure aborts construction. store may be nil.
func NewClient(ctx context.Context, provider Provider, apps PlatformApplications, store dispatch.EndpointStore, logger *slog.Logger) (*Client, error) {
	logger = logger.With("component", "SNSClient")

	if apps.Android == "" && apps.IOS == "" {
		return nil, ErrNoPlatformApplications
	}

	if err := provider.ListPlatformApplications(ctx); err != nil {
		logger.Error("SNS client validation failed", "err", err)
		return nil, fmt.Errorf("%w: %w", ErrInvalidClient, err)
	}

	for _, arn := range []string{apps.Android, apps.IOS} {
		if arn == "" {
			continue
		}
		if err := validatePlatformApplication(ctx, provider, arn); err != nil {
			logger.Error("Platform application validation failed", "arn", arn, "err", err)
			return nil, err
		}
	}

	logger.Info("SNS client validated", "android", apps.Android != "", "ios", apps.IOS != "")
	return &Client{provider: provider, apps: apps, store: store, logger: logger}, nil
}

func validatePlatformApplication(ctx context.Context, provider Provider, arn string) error {
	attrs, err := provider.GetPlatformApplicationAttributes(ctx, arn)
	var invalid *InvalidParameterError
	switch {
	case errors.Is(err, ErrNotFound):
		return fmt.Errorf("%w: %s", ErrPlatformApplicationNotFound, arn)
	case errors.As(err, &invalid):
		return fmt.Errorf("%w: %s: %s", ErrPlatformApplicationInvalid, arn, invalid.Message)
	case err != nil:
		return fmt.Errorf("platform application %s: %w", arn, err)
	}
	if attrs["Enabled"] != "true" {
		return fmt.Errorf("%w: %s", ErrPlatformApplicationNotEnabled, arn)
	}
	return nil
}

func (c *Client) platformARN(t DeviceType) (string, error) {
	var arn string
	switch t {
	case DeviceAndroid:
		arn = c.apps.Android
	case DeviceIOS:
		arn = c.apps.IOS
	}
	if arn == "" {
		return "", fmt.Errorf("%w: %q has no platform application", ErrUnknownDeviceType, t)
	}
	return arn, nil
}

// Registration starts the registry protocol for device. A previously stored
// endpoint ARN for the same device type and token is reused when the store
// has one.
func (c *Client) Registration(ctx context.Context, device Device) *Registration {
	r := &Registration{client: c, device: device}
	if c.store == nil {
		return r
	}

	rec, err := c.store.Get(ctx, device.key())
	switch {
	case errors.Is(err, dispatch.ErrEndpointNotFound):
	case err != nil:
		c.logger.Warn("Endpoint store lookup failed, will create", "device_type", device.Type, "err", err)
	default:
		r.endpointARN = rec.EndpointARN
		r.storedUser = rec.UserData
	}
	return r
}

// Register runs the registry protocol for device without publishing.
func (c *Client) Register(ctx context.Context, device Device) (string, error) {
	r := c.Registration(ctx, device)
	if err := r.Register(ctx); err != nil {
		return "", err
	}
	return r.EndpointARN(), nil
}

// Publish registers device and publishes message to it.
func (c *Client) Publish(ctx context.Context, device Device, message string) (bool, error) {
	return c.Registration(ctx, device).Publish(ctx, message)
}
