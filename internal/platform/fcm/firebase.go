package fcm

import (
	"context"

	"firebase.google.com/go/v4/messaging"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/dispatch"
)

// multicastLimit is the SDK's own per-request cap, below ChunkSize.
const multicastLimit = 500

// MessagingClient defines the subset of the Firebase Messaging API we use.
// *messaging.Client satisfies it.
type MessagingClient interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
	SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FirebaseGateway implements Gateway on the Firebase Admin SDK.
type FirebaseGateway struct {
	client MessagingClient
}

func NewFirebaseGateway(client MessagingClient) *FirebaseGateway {
	return &FirebaseGateway{client: client}
}

func (g *FirebaseGateway) SendOne(ctx context.Context, token string, msg dispatch.PushMessage) (*dispatch.PushResult, error) {
	id, err := g.client.Send(ctx, &messaging.Message{
		Token:        token,
		Data:         msg.Data,
		Notification: notificationFor(msg),
	})
	if err != nil {
		if messaging.IsRegistrationTokenNotRegistered(err) || messaging.IsInvalidArgument(err) {
			return &dispatch.PushResult{FailureCount: 1, InvalidTokens: []string{token}}, err
		}
		return nil, err
	}
	return &dispatch.PushResult{MessageID: id, SuccessCount: 1}, nil
}

// SendMany sends one gateway chunk, split further into SDK-sized requests
// whose responses are merged.
func (g *FirebaseGateway) SendMany(ctx context.Context, tokens []string, msg dispatch.PushMessage) (*dispatch.PushResult, error) {
	result := &dispatch.PushResult{}
	for _, batch := range Chunks(tokens, multicastLimit) {
		br, err := g.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
			Tokens:       batch,
			Data:         msg.Data,
			Notification: notificationFor(msg),
		})
		if err != nil {
			return nil, err
		}
		result.SuccessCount += br.SuccessCount
		result.FailureCount += br.FailureCount
		for idx, resp := range br.Responses {
			if resp.Success {
				if result.MessageID == "" {
					result.MessageID = resp.MessageID
				}
				continue
			}
			// The token is garbage; report it for cleanup.
			if messaging.IsInvalidArgument(resp.Error) || messaging.IsRegistrationTokenNotRegistered(resp.Error) {
				result.InvalidTokens = append(result.InvalidTokens, batch[idx])
			}
		}
	}
	return result, nil
}

func notificationFor(msg dispatch.PushMessage) *messaging.Notification {
	return &messaging.Notification{
		Title: msg.Content.Title,
		Body:  msg.Content.Body,
	}
}
