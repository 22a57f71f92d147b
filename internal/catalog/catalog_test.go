package catalog_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-notification-dispatcher/internal/catalog"
	"github.com/tinywideclouds/go-notification-dispatcher/internal/platform/sns"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/dispatch"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/tasks"
	"github.com/tinywideclouds/go-platform/pkg/notification/v1"
)

// --- Mocks ---

type mockEmailSender struct{ mock.Mock }

func (m *mockEmailSender) Send(ctx context.Context, msg dispatch.EmailMessage) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

type mockPushSender struct{ mock.Mock }

func (m *mockPushSender) Send(ctx context.Context, msg dispatch.PushMessage) (*dispatch.PushResult, error) {
	args := m.Called(ctx, msg)
	res, _ := args.Get(0).(*dispatch.PushResult)
	return res, args.Error(1)
}

type mockWebSender struct{ mock.Mock }

func (m *mockWebSender) Send(ctx context.Context, subs []notification.WebPushSubscription, content notification.NotificationContent, data map[string]string) (*dispatch.PushResult, error) {
	args := m.Called(ctx, subs, content, data)
	res, _ := args.Get(0).(*dispatch.PushResult)
	return res, args.Error(1)
}

type mockDevices struct{ mock.Mock }

func (m *mockDevices) Register(ctx context.Context, device sns.Device) (string, error) {
	args := m.Called(ctx, device)
	return args.String(0), args.Error(1)
}

func (m *mockDevices) Publish(ctx context.Context, device sns.Device, message string) (bool, error) {
	args := m.Called(ctx, device, message)
	return args.Bool(0), args.Error(1)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func run(t *testing.T, registry *tasks.Registry, action string, args []any, kwargs map[string]any) error {
	t.Helper()
	task, err := registry.Resolve(action)
	require.NoError(t, err)
	encoded, err := tasks.EncodeArgs(args, kwargs)
	require.NoError(t, err)
	return task.Run(context.Background(), encoded)
}

// --- Tests ---

func TestNewRegistry_OnlyConfiguredTasks(t *testing.T) {
	testCases := []struct {
		name     string
		deps     catalog.Deps
		expected []string
	}{
		{name: "Nothing configured", deps: catalog.Deps{}, expected: []string{}},
		{
			name:     "Email only",
			deps:     catalog.Deps{Email: new(mockEmailSender)},
			expected: []string{catalog.ActionSendEmail},
		},
		{
			name:     "Web push alone enables send_push",
			deps:     catalog.Deps{Web: new(mockWebSender)},
			expected: []string{catalog.ActionSendPush},
		},
		{
			name: "Everything",
			deps: catalog.Deps{
				Email:      new(mockEmailSender),
				CloudEmail: new(mockEmailSender),
				FCM:        new(mockPushSender),
				Devices:    new(mockDevices),
			},
			expected: []string{
				catalog.ActionPublishDevice,
				catalog.ActionRegisterDevice,
				catalog.ActionSendCloudEmail,
				catalog.ActionSendEmail,
				catalog.ActionSendPush,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			registry, err := catalog.NewRegistry(tc.deps, newTestLogger())
			require.NoError(t, err)
			assert.Equal(t, tc.expected, registry.Actions())
		})
	}
}

func TestEmailTasks(t *testing.T) {
	smtp := new(mockEmailSender)
	ses := new(mockEmailSender)
	registry, err := catalog.NewRegistry(catalog.Deps{Email: smtp, CloudEmail: ses}, newTestLogger())
	require.NoError(t, err)

	expected := dispatch.EmailMessage{To: []string{"a@example.com"}, Subject: "Hi", Text: "Hello"}

	t.Run("send_email decodes keyword arguments", func(t *testing.T) {
		smtp.On("Send", mock.Anything, expected).Return("<id@host>", nil).Once()
		err := run(t, registry, catalog.ActionSendEmail, nil, map[string]any{
			"to": []string{"a@example.com"}, "subject": "Hi", "text": "Hello",
		})
		require.NoError(t, err)
		smtp.AssertExpectations(t)
	})

	t.Run("send_cloud_email accepts a positional message", func(t *testing.T) {
		ses.On("Send", mock.Anything, expected).Return("ses-id", nil).Once()
		err := run(t, registry, catalog.ActionSendCloudEmail, []any{expected}, nil)
		require.NoError(t, err)
		ses.AssertExpectations(t)
	})

	t.Run("sender failure is returned", func(t *testing.T) {
		smtp.On("Send", mock.Anything, expected).Return("", dispatch.ErrDelivery).Once()
		err := run(t, registry, catalog.ActionSendEmail, []any{expected}, nil)
		assert.ErrorIs(t, err, dispatch.ErrDelivery)
	})
}

func TestPushTask(t *testing.T) {
	fcm := new(mockPushSender)
	web := new(mockWebSender)
	registry, err := catalog.NewRegistry(catalog.Deps{FCM: fcm, Web: web}, newTestLogger())
	require.NoError(t, err)

	content := notification.NotificationContent{Title: "T", Body: "B"}

	t.Run("defaults to fcm", func(t *testing.T) {
		fcm.On("Send", mock.Anything, dispatch.PushMessage{Token: "tok", Content: content}).
			Return(&dispatch.PushResult{SuccessCount: 1}, nil).Once()
		err := run(t, registry, catalog.ActionSendPush, nil, map[string]any{"token": "tok", "content": content})
		require.NoError(t, err)
		fcm.AssertExpectations(t)
	})

	t.Run("web channel", func(t *testing.T) {
		subs := []notification.WebPushSubscription{{Endpoint: "https://push.example/1"}}
		web.On("Send", mock.Anything, mock.Anything, content, map[string]string(nil)).
			Return(&dispatch.PushResult{SuccessCount: 1}, nil).Once()
		err := run(t, registry, catalog.ActionSendPush, nil, map[string]any{
			"channel": "web", "subscriptions": subs, "content": content,
		})
		require.NoError(t, err)
		web.AssertExpectations(t)
	})

	t.Run("unconfigured channel", func(t *testing.T) {
		err := run(t, registry, catalog.ActionSendPush, nil, map[string]any{"channel": "apns", "token": "t", "content": content})
		assert.ErrorIs(t, err, catalog.ErrChannelUnavailable)
	})

	t.Run("unknown channel", func(t *testing.T) {
		err := run(t, registry, catalog.ActionSendPush, nil, map[string]any{"channel": "pager", "content": content})
		assert.ErrorIs(t, err, dispatch.ErrValidation)
	})
}

func TestDeviceTasks(t *testing.T) {
	devices := new(mockDevices)
	registry, err := catalog.NewRegistry(catalog.Deps{Devices: devices}, newTestLogger())
	require.NoError(t, err)

	device := sns.Device{Type: sns.DeviceAndroid, Token: "tok", UserData: "urn:user:1"}
	kwargs := map[string]any{"device_type": "android", "token": "tok", "user_data": "urn:user:1"}

	t.Run("register", func(t *testing.T) {
		devices.On("Register", mock.Anything, device).Return("arn:aws:sns:endpoint", nil).Once()
		require.NoError(t, run(t, registry, catalog.ActionRegisterDevice, nil, kwargs))
	})

	t.Run("register rejects unknown device type", func(t *testing.T) {
		err := run(t, registry, catalog.ActionRegisterDevice, nil, map[string]any{"device_type": "pager", "token": "tok"})
		assert.ErrorIs(t, err, sns.ErrUnknownDeviceType)
	})

	t.Run("publish", func(t *testing.T) {
		devices.On("Publish", mock.Anything, device, "hello").Return(true, nil).Once()
		kw := map[string]any{"message": "hello"}
		for k, v := range kwargs {
			kw[k] = v
		}
		require.NoError(t, run(t, registry, catalog.ActionPublishDevice, nil, kw))
	})

	t.Run("publish without message id is an error", func(t *testing.T) {
		devices.On("Publish", mock.Anything, device, "nope").Return(false, nil).Once()
		kw := map[string]any{"message": "nope"}
		for k, v := range kwargs {
			kw[k] = v
		}
		assert.Error(t, run(t, registry, catalog.ActionPublishDevice, nil, kw))
	})

	t.Run("provider failure", func(t *testing.T) {
		boom := errors.New("boom")
		devices.On("Register", mock.Anything, sns.Device{Type: sns.DeviceIOS, Token: "x"}).Return("", boom).Once()
		err := run(t, registry, catalog.ActionRegisterDevice, nil, map[string]any{"device_type": "ios", "token": "x"})
		assert.ErrorIs(t, err, boom)
	})

	devices.AssertExpectations(t)
}
