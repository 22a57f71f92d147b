package apns

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/sideshow/apns2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/dispatch"
	"github.com/tinywideclouds/go-platform/pkg/notification/v1"
)

type MockAPNSClient struct {
	mock.Mock
}

func (m *MockAPNSClient) PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error) {
	args := m.Called(n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apns2.Response), args.Error(1)
}

func TestSend(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()
	content := notification.NotificationContent{Title: "Hello iOS", Body: "Body"}
	data := map[string]string{"msg_id": "123"}

	t.Run("Happy Path - Success", func(t *testing.T) {
		mockClient := new(MockAPNSClient)
		dispatcher := newDispatcher(mockClient, "com.test.app", logger)

		mockClient.On("PushWithContext", mock.MatchedBy(func(n *apns2.Notification) bool {
			return n.DeviceToken == "token-1" && n.Topic == "com.test.app"
		})).Return(&apns2.Response{StatusCode: http.StatusOK, ApnsID: "apns-1"}, nil)

		res, err := dispatcher.Send(ctx, dispatch.PushMessage{Token: "token-1", Content: content, Data: data})

		require.NoError(t, err)
		assert.Equal(t, 1, res.SuccessCount)
		assert.Equal(t, "apns-1", res.MessageID)
		assert.Empty(t, res.InvalidTokens)
		mockClient.AssertExpectations(t)
	})

	t.Run("Bad Device Token is reported for cleanup", func(t *testing.T) {
		mockClient := new(MockAPNSClient)
		dispatcher := newDispatcher(mockClient, "com.test.app", logger)

		mockClient.On("PushWithContext", mock.Anything).Return(&apns2.Response{
			StatusCode: http.StatusBadRequest,
			Reason:     apns2.ReasonBadDeviceToken,
		}, nil)

		res, err := dispatcher.Send(ctx, dispatch.PushMessage{Tokens: []string{"bad-token"}, Content: content})

		require.NoError(t, err)
		assert.Equal(t, []string{"bad-token"}, res.InvalidTokens)
		assert.Equal(t, 1, res.FailureCount)
	})

	t.Run("Transport failure on every token is a delivery error", func(t *testing.T) {
		mockClient := new(MockAPNSClient)
		dispatcher := newDispatcher(mockClient, "com.test.app", logger)

		mockClient.On("PushWithContext", mock.Anything).Return(nil, errors.New("connection refused"))

		res, err := dispatcher.Send(ctx, dispatch.PushMessage{Tokens: []string{"t1", "t2"}, Content: content})

		assert.ErrorIs(t, err, dispatch.ErrDelivery)
		assert.Equal(t, 2, res.FailureCount)
	})

	t.Run("Partial transport failure is best effort", func(t *testing.T) {
		mockClient := new(MockAPNSClient)
		dispatcher := newDispatcher(mockClient, "com.test.app", logger)

		mockClient.On("PushWithContext", mock.MatchedBy(func(n *apns2.Notification) bool { return n.DeviceToken == "t1" })).
			Return(nil, errors.New("reset"))
		mockClient.On("PushWithContext", mock.MatchedBy(func(n *apns2.Notification) bool { return n.DeviceToken == "t2" })).
			Return(&apns2.Response{StatusCode: http.StatusOK}, nil)

		res, err := dispatcher.Send(ctx, dispatch.PushMessage{Tokens: []string{"t1", "t2"}, Content: content})

		require.NoError(t, err)
		assert.Equal(t, 1, res.SuccessCount)
		assert.Equal(t, 1, res.FailureCount)
	})

	t.Run("Validation", func(t *testing.T) {
		mockClient := new(MockAPNSClient)
		dispatcher := newDispatcher(mockClient, "com.test.app", logger)

		_, err := dispatcher.Send(ctx, dispatch.PushMessage{Content: content})
		assert.ErrorIs(t, err, dispatch.ErrValidation)

		_, err = dispatcher.Send(ctx, dispatch.PushMessage{Token: "t"})
		assert.ErrorIs(t, err, dispatch.ErrValidation)

		mockClient.AssertNotCalled(t, "PushWithContext", mock.Anything)
	})

	t.Run("Invalid P8 key fails at construction", func(t *testing.T) {
		_, err := NewDispatcher(Config{BundleID: "com.test.app", P8KeyContent: "not a key"}, logger)
		assert.Error(t, err)
	})
}
