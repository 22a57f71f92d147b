package catalog

import (
	"context"
	"log/slog"

	"github.com/tinywideclouds/go-notification-dispatcher/pkg/dispatch"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/tasks"
)

// emailTask sends one message through an EmailSender. The same type backs
// the SMTP relay and the cloud email actions.
type emailTask struct {
	action string
	sender dispatch.EmailSender
	logger *slog.Logger
}

func (t *emailTask) ActionName() string { return t.action }

func (t *emailTask) Run(ctx context.Context, args tasks.Args) error {
	var msg dispatch.EmailMessage
	if err := decodeArgs(args, &msg); err != nil {
		return err
	}
	receipt, err := t.sender.Send(ctx, msg)
	if err != nil {
		return err
	}
	t.logger.Debug("Email sent", "action", t.action, "recipients", len(msg.To), "receipt", receipt)
	return nil
}
