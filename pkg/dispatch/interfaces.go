// Package dispatch holds the public contracts of the delivery channels and
// the endpoint store used by the device registry.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/tinywideclouds/go-platform/pkg/notification/v1"
)

var (
	// ErrValidation marks a message rejected before any network call.
	ErrValidation = errors.New("validation failed")
	// ErrDelivery marks a provider or transport failure. The provider's own
	// error types are never exposed through it.
	ErrDelivery = errors.New("delivery failed")
	// ErrEndpointNotFound is returned by an EndpointStore with no record for a key.
	ErrEndpointNotFound = errors.New("endpoint record not found")
)

// EmailMessage is the channel-neutral email shape used by the SMTP relay
// and the cloud email service.
type EmailMessage struct {
	From    string   `json:"from,omitempty"`
	To      []string `json:"to"`
	Cc      []string `json:"cc,omitempty"`
	Bcc     []string `json:"bcc,omitempty"`
	ReplyTo []string `json:"reply_to,omitempty"`
	Subject string   `json:"subject"`
	Text    string   `json:"text,omitempty"`
	HTML    string   `json:"html,omitempty"`
}

// PushMessage addresses either a single device Token or a list of Tokens.
type PushMessage struct {
	Token   string                           `json:"token,omitempty"`
	Tokens  []string                         `json:"tokens,omitempty"`
	Content notification.NotificationContent `json:"content"`
	Data    map[string]string                `json:"data,omitempty"`
}

// PushResult summarises one provider call.
type PushResult struct {
	MessageID     string
	SuccessCount  int
	FailureCount  int
	InvalidTokens []string
}

// EmailSender is the SMTP relay / cloud email capability.
type EmailSender interface {
	// Send returns a provider receipt (a count or message id rendered as text).
	Send(ctx context.Context, msg EmailMessage) (string, error)
}

// PushSender is the push gateway capability (FCM, APNs).
type PushSender interface {
	Send(ctx context.Context, msg PushMessage) (*PushResult, error)
}

// WebPushSender delivers to browser subscriptions.
type WebPushSender interface {
	Send(ctx context.Context, subs []notification.WebPushSubscription, content notification.NotificationContent, data map[string]string) (*PushResult, error)
}

// EndpointKey identifies one provider endpoint. The provider keeps one
// endpoint per platform application and token, so the token is the key; the
// same user may own many devices.
type EndpointKey struct {
	DeviceType string
	Token      string
}

// EndpointRecord remembers the provider endpoint resolved for a device.
type EndpointRecord struct {
	DeviceType  string    `json:"device_type" firestore:"device_type"`
	UserData    string    `json:"user_data" firestore:"user_data"`
	Token       string    `json:"token" firestore:"token"`
	EndpointARN string    `json:"endpoint_arn" firestore:"endpoint_arn"`
	UpdatedAt   time.Time `json:"updated_at" firestore:"updated_at"`
}

func (r EndpointRecord) Key() EndpointKey {
	return EndpointKey{DeviceType: r.DeviceType, Token: r.Token}
}

// EndpointStore persists resolved endpoint identifiers so later publishes
// for the same device skip the create call.
type EndpointStore interface {
	// Get returns ErrEndpointNotFound when nothing is stored for key.
	Get(ctx context.Context, key EndpointKey) (*EndpointRecord, error)
	// Put upserts the record.
	Put(ctx context.Context, record EndpointRecord) error
	// Delete forgets key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key EndpointKey) error
}
