package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tinywideclouds/go-notification-dispatcher/internal/platform/sns"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/tasks"
)

type deviceArgs struct {
	DeviceType string `json:"device_type"`
	Token      string `json:"token"`
	UserData   string `json:"user_data"`
	Message    string `json:"message"`
}

func (a deviceArgs) device() (sns.Device, error) {
	t, err := sns.ParseDeviceType(a.DeviceType)
	if err != nil {
		return sns.Device{}, err
	}
	if a.Token == "" {
		return sns.Device{}, fmt.Errorf("device token is required")
	}
	return sns.Device{Type: t, Token: a.Token, UserData: a.UserData}, nil
}

type registerDeviceTask struct {
	devices DeviceRegistry
	logger  *slog.Logger
}

func (t *registerDeviceTask) ActionName() string { return ActionRegisterDevice }

func (t *registerDeviceTask) Run(ctx context.Context, args tasks.Args) error {
	var in deviceArgs
	if err := decodeArgs(args, &in); err != nil {
		return err
	}
	device, err := in.device()
	if err != nil {
		return err
	}
	arn, err := t.devices.Register(ctx, device)
	if err != nil {
		return err
	}
	t.logger.Debug("Device registered", "device_type", device.Type, "endpoint_arn", arn)
	return nil
}

type publishDeviceTask struct {
	devices DeviceRegistry
	logger  *slog.Logger
}

func (t *publishDeviceTask) ActionName() string { return ActionPublishDevice }

func (t *publishDeviceTask) Run(ctx context.Context, args tasks.Args) error {
	var in deviceArgs
	if err := decodeArgs(args, &in); err != nil {
		return err
	}
	device, err := in.device()
	if err != nil {
		return err
	}
	if in.Message == "" {
		return fmt.Errorf("message is required")
	}
	sent, err := t.devices.Publish(ctx, device, in.Message)
	if err != nil {
		return err
	}
	if !sent {
		return fmt.Errorf("publish to %s device returned no message id", device.Type)
	}
	return nil
}
