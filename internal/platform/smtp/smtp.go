// Package smtp sends email through an authenticated SMTP relay.
package smtp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/dispatch"
	"gopkg.in/gomail.v2"
)

// Dialer is the part of *gomail.Dialer we use.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type Sender struct {
	dialer   Dialer
	cfg      Config
	hostname string
	logger   *slog.Logger
}

func NewSender(cfg Config, logger *slog.Logger) *Sender {
	return newSender(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg, logger)
}

func newSender(dialer Dialer, cfg Config, logger *slog.Logger) *Sender {
	hostname := cfg.Host
	if hostname == "" {
		hostname = "localhost"
	}
	return &Sender{
		dialer:   dialer,
		cfg:      cfg,
		hostname: hostname,
		logger:   logger.With("component", "SMTPSender"),
	}
}

// Send relays msg and returns the Message-ID header it was sent with.
func (s *Sender) Send(ctx context.Context, msg dispatch.EmailMessage) (string, error) {
	switch {
	case len(msg.To) == 0:
		return "", fmt.Errorf("%w: no to address provided", dispatch.ErrValidation)
	case msg.Text == "" && msg.HTML == "":
		return "", fmt.Errorf("%w: no text content or html content provided", dispatch.ErrValidation)
	case s.cfg.Username == "":
		return "", fmt.Errorf("%w: no smtp host user configured", dispatch.ErrValidation)
	case s.cfg.Password == "":
		return "", fmt.Errorf("%w: no smtp host password configured", dispatch.ErrValidation)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	from := msg.From
	if from == "" {
		from = s.cfg.From
	}
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), s.hostname)

	m := gomail.NewMessage()
	m.SetHeader("Message-ID", messageID)
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To...)
	if len(msg.Cc) > 0 {
		m.SetHeader("Cc", msg.Cc...)
	}
	if len(msg.Bcc) > 0 {
		m.SetHeader("Bcc", msg.Bcc...)
	}
	if len(msg.ReplyTo) > 0 {
		m.SetHeader("Reply-To", msg.ReplyTo...)
	}
	m.SetHeader("Subject", msg.Subject)

	switch {
	case msg.Text != "" && msg.HTML != "":
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	case msg.HTML != "":
		m.SetBody("text/html", msg.HTML)
	default:
		m.SetBody("text/plain", msg.Text)
	}

	s.logger.Info("Sending email", "to", msg.To, "subject", msg.Subject)
	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Error("SMTP send failed", "to", msg.To, "err", err)
		return "", fmt.Errorf("%w: smtp: %v", dispatch.ErrDelivery, err)
	}
	return messageID, nil
}
