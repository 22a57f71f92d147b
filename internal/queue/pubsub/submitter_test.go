//go:build integration

package pubsub_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/google/uuid"
	"github.com/illmade-knight/go-test/emulators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	queue "github.com/tinywideclouds/go-notification-dispatcher/internal/queue/pubsub"
)

func TestSubmitter_Integration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	projectID := "test-submitter"
	conn := emulators.SetupPubsubEmulator(t, ctx, emulators.GetDefaultPubsubConfig(projectID))
	client, err := pubsub.NewClient(ctx, projectID, conn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	topicID := "tasks-" + uuid.NewString()
	topicName := fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
	subName := fmt.Sprintf("projects/%s/subscriptions/%s-sub", projectID, topicID)
	_, err = client.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: topicName})
	require.NoError(t, err)
	_, err = client.SubscriptionAdminClient.CreateSubscription(ctx, &pubsubpb.Subscription{Name: subName, Topic: topicName})
	require.NoError(t, err)

	submitter := queue.NewSubmitter(client, topicID, logger)
	t.Cleanup(submitter.Stop)

	body := []byte(`{"action":"user_update","args":[42],"kwargs":{}}`)
	require.True(t, submitter.Submit(ctx, body))

	received := make(chan []byte, 1)
	recvCtx, recvCancel := context.WithCancel(ctx)
	defer recvCancel()
	go func() {
		_ = client.Subscriber(subName).Receive(recvCtx, func(_ context.Context, m *pubsub.Message) {
			m.Ack()
			select {
			case received <- m.Data:
			default:
			}
			recvCancel()
		})
	}()

	select {
	case got := <-received:
		assert.JSONEq(t, string(body), string(got))
	case <-ctx.Done():
		t.Fatal("timed out waiting for published payload")
	}
}

func TestSubmitter_MissingTopic(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	projectID := "test-submitter-missing"
	conn := emulators.SetupPubsubEmulator(t, ctx, emulators.GetDefaultPubsubConfig(projectID))
	client, err := pubsub.NewClient(ctx, projectID, conn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	submitter := queue.NewSubmitter(client, "does-not-exist", slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(submitter.Stop)

	assert.False(t, submitter.Submit(ctx, []byte(`{"action":"x","args":[],"kwargs":{}}`)))
}
