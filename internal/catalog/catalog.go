// Package catalog holds the concrete notification tasks and the explicit
// table that registers them at startup.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tinywideclouds/go-notification-dispatcher/internal/platform/sns"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/dispatch"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/tasks"
)

const (
	ActionSendEmail      = "send_email"
	ActionSendCloudEmail = "send_cloud_email"
	ActionSendPush       = "send_push"
	ActionRegisterDevice = "register_device"
	ActionPublishDevice  = "publish_device"
)

// Push channels accepted by the send_push task's "channel" kwarg.
const (
	ChannelFCM  = "fcm"
	ChannelAPNS = "apns"
	ChannelWeb  = "web"
)

// ErrChannelUnavailable is returned by send_push for a channel that is not configured.
var ErrChannelUnavailable = errors.New("push channel not configured")

// DeviceRegistry is the part of the SNS client the device tasks need.
type DeviceRegistry interface {
	Register(ctx context.Context, device sns.Device) (string, error)
	Publish(ctx context.Context, device sns.Device, message string) (bool, error)
}

// Deps carries the long-lived channel clients. A nil field leaves the tasks
// that need it unregistered.
type Deps struct {
	Email      dispatch.EmailSender
	CloudEmail dispatch.EmailSender
	FCM        dispatch.PushSender
	APNS       dispatch.PushSender
	Web        dispatch.WebPushSender
	Devices    DeviceRegistry
}

// NewRegistry builds the action table for every configured dependency.
func NewRegistry(deps Deps, logger *slog.Logger) (*tasks.Registry, error) {
	logger = logger.With("component", "TaskCatalog")
	var factories []tasks.Factory

	if deps.Email != nil {
		factories = append(factories, func() tasks.Task {
			return &emailTask{action: ActionSendEmail, sender: deps.Email, logger: logger}
		})
	}
	if deps.CloudEmail != nil {
		factories = append(factories, func() tasks.Task {
			return &emailTask{action: ActionSendCloudEmail, sender: deps.CloudEmail, logger: logger}
		})
	}
	if deps.FCM != nil || deps.APNS != nil || deps.Web != nil {
		factories = append(factories, func() tasks.Task {
			return &pushTask{fcm: deps.FCM, apns: deps.APNS, web: deps.Web, logger: logger}
		})
	}
	if deps.Devices != nil {
		factories = append(factories,
			func() tasks.Task { return &registerDeviceTask{devices: deps.Devices, logger: logger} },
			func() tasks.Task { return &publishDeviceTask{devices: deps.Devices, logger: logger} },
		)
	}

	registry, err := tasks.NewRegistry(factories...)
	if err != nil {
		return nil, fmt.Errorf("failed to build task registry: %w", err)
	}
	logger.Info("Task catalog registered", "actions", registry.Actions())
	return registry, nil
}

// decodeArgs fills v from the first positional argument when one is given,
// otherwise from the keyword arguments taken as one JSON object.
func decodeArgs(args tasks.Args, v any) error {
	if args.Len() > 0 {
		return args.Arg(0, v)
	}
	raw, err := json.Marshal(args.Named)
	if err != nil {
		return fmt.Errorf("tasks: re-encode keyword arguments: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("tasks: decode keyword arguments: %w", err)
	}
	return nil
}
