// Package ses sends email through Amazon Simple Email Service.
package ses

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/smithy-go"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/dispatch"
)

var (
	// ErrInvalidClient means the service could not be reached (bad region,
	// no network, no credentials found).
	ErrInvalidClient = errors.New("ses client could not be validated")
	// ErrCredentialsInvalid means the service answered but rejected the caller.
	ErrCredentialsInvalid = errors.New("ses credentials are invalid")
	// ErrIdentityNotVerified means the sender identity is not verified in the account.
	ErrIdentityNotVerified = errors.New("ses email identity is not verified")
)

// API is the subset of *ses.Client we use.
type API interface {
	ListIdentities(ctx context.Context, in *ses.ListIdentitiesInput, optFns ...func(*ses.Options)) (*ses.ListIdentitiesOutput, error)
	ListVerifiedEmailAddresses(ctx context.Context, in *ses.ListVerifiedEmailAddressesInput, optFns ...func(*ses.Options)) (*ses.ListVerifiedEmailAddressesOutput, error)
	SendEmail(ctx context.Context, in *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type Config struct {
	// Identity is the verified address checked at startup.
	Identity string
	// From is the Source header; defaults to Identity. It may carry a
	// display name, e.g. `"Team" <no-reply@example.com>`.
	From string
}

// Client is built once per process. Construction checks the connection and
// the sender identity; a constructed Client is never re-validated.
type Client struct {
	api    API
	from   string
	logger *slog.Logger
}

func NewClient(ctx context.Context, api API, cfg Config, logger *slog.Logger) (*Client, error) {
	logger = logger.With("component", "SESClient")
	if cfg.Identity == "" {
		return nil, fmt.Errorf("%w: no email identity configured", ErrIdentityNotVerified)
	}

	if _, err := api.ListIdentities(ctx, &ses.ListIdentitiesInput{}); err != nil {
		logger.Error("SES client validation failed", "err", err)
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("%w: %s", ErrCredentialsInvalid, apiErr.ErrorMessage())
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidClient, err)
	}

	verified, err := api.ListVerifiedEmailAddresses(ctx, &ses.ListVerifiedEmailAddressesInput{})
	if err != nil {
		return nil, fmt.Errorf("%w: listing verified addresses: %v", ErrIdentityNotVerified, err)
	}
	if !slices.Contains(verified.VerifiedEmailAddresses, cfg.Identity) {
		return nil, fmt.Errorf("%w: %s", ErrIdentityNotVerified, cfg.Identity)
	}

	from := cfg.From
	if from == "" {
		from = cfg.Identity
	}
	logger.Info("SES client verified", "identity", cfg.Identity)
	return &Client{api: api, from: from, logger: logger}, nil
}

// Send returns the provider message id.
func (c *Client) Send(ctx context.Context, msg dispatch.EmailMessage) (string, error) {
	if len(msg.To) == 0 {
		return "", fmt.Errorf("%w: no to address provided", dispatch.ErrValidation)
	}
	if msg.Text == "" && msg.HTML == "" {
		return "", fmt.Errorf("%w: no text content or html content provided", dispatch.ErrValidation)
	}

	body := &types.Body{}
	if msg.Text != "" {
		body.Text = &types.Content{Data: aws.String(msg.Text), Charset: aws.String("UTF-8")}
	}
	if msg.HTML != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")}
	}

	source := c.from
	if msg.From != "" {
		source = msg.From
	}

	c.logger.Info("Sending email", "to", msg.To, "subject", msg.Subject)
	out, err := c.api.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(source),
		Destination: &types.Destination{
			ToAddresses:  msg.To,
			CcAddresses:  msg.Cc,
			BccAddresses: msg.Bcc,
		},
		ReplyToAddresses: msg.ReplyTo,
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
			Body:    body,
		},
	})
	if err != nil {
		c.logger.Error("SES send failed", "to", msg.To, "err", err)
		return "", fmt.Errorf("%w: ses: %v", dispatch.ErrDelivery, err)
	}
	messageID := aws.ToString(out.MessageId)
	if messageID == "" {
		return "", fmt.Errorf("%w: ses returned no message id", dispatch.ErrDelivery)
	}
	return messageID, nil
}
