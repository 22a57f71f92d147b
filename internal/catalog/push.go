package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tinywideclouds/go-notification-dispatcher/pkg/dispatch"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/tasks"
	"github.com/tinywideclouds/go-platform/pkg/notification/v1"
)

type pushArgs struct {
	Channel       string                             `json:"channel"`
	Token         string                             `json:"token"`
	Tokens        []string                           `json:"tokens"`
	Subscriptions []notification.WebPushSubscription `json:"subscriptions"`
	Content       notification.NotificationContent   `json:"content"`
	Data          map[string]string                  `json:"data"`
}

type pushTask struct {
	fcm    dispatch.PushSender
	apns   dispatch.PushSender
	web    dispatch.WebPushSender
	logger *slog.Logger
}

func (t *pushTask) ActionName() string { return ActionSendPush }

func (t *pushTask) Run(ctx context.Context, args tasks.Args) error {
	var in pushArgs
	if err := decodeArgs(args, &in); err != nil {
		return err
	}
	if in.Channel == "" {
		in.Channel = ChannelFCM
	}

	var (
		result *dispatch.PushResult
		err    error
	)
	switch in.Channel {
	case ChannelFCM, ChannelAPNS:
		sender := t.fcm
		if in.Channel == ChannelAPNS {
			sender = t.apns
		}
		if sender == nil {
			return fmt.Errorf("%w: %s", ErrChannelUnavailable, in.Channel)
		}
		result, err = sender.Send(ctx, dispatch.PushMessage{
			Token:   in.Token,
			Tokens:  in.Tokens,
			Content: in.Content,
			Data:    in.Data,
		})
	case ChannelWeb:
		if t.web == nil {
			return fmt.Errorf("%w: %s", ErrChannelUnavailable, in.Channel)
		}
		result, err = t.web.Send(ctx, in.Subscriptions, in.Content, in.Data)
	default:
		return fmt.Errorf("%w: unknown push channel %q", dispatch.ErrValidation, in.Channel)
	}
	if err != nil {
		return err
	}

	if len(result.InvalidTokens) > 0 {
		t.logger.Warn("Push rejected stale tokens", "channel", in.Channel, "count", len(result.InvalidTokens))
	}
	t.logger.Debug("Push sent",
		"channel", in.Channel,
		"success", result.SuccessCount,
		"failure", result.FailureCount,
	)
	return nil
}
