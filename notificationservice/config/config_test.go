package config_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-notification-dispatcher/notificationservice/config"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/tasks"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUpdateConfigWithEnvOverrides(t *testing.T) {
	logger := newTestLogger()

	baseConfig := func() *config.Config {
		return &config.Config{
			ProjectID:          "base-project",
			ListenAddr:         ":8080",
			TopicID:            "base-topic",
			SubscriptionID:     "base-sub",
			NumPipelineWorkers: 2,
			Vapid: config.VapidConfig{
				PublicKey:  "base-pub",
				PrivateKey: "base-priv",
			},
		}
	}

	t.Run("Success - All overrides applied", func(t *testing.T) {
		cfg := baseConfig()

		t.Setenv("PROJECT_ID", "env-project")
		t.Setenv("PORT", "9090")
		t.Setenv("TOPIC_ID", "env-topic")
		t.Setenv("SUBSCRIPTION_ID", "env-sub")
		t.Setenv("FORWARD_URL", "http://worker:9090/tasks/")
		t.Setenv("VAPID_PUBLIC_KEY", "env-pub")
		t.Setenv("VAPID_PRIVATE_KEY", "env-priv")
		t.Setenv("VAPID_SUB_EMAIL", "env@test.com")
		t.Setenv("AWS_REGION", "eu-west-1")
		t.Setenv("SNS_PLATFORM_APPLICATION_ARN_ANDROID", "arn:aws:sns:eu-west-1:1:app/GCM/app")
		t.Setenv("SES_EMAIL_IDENTITY", "example.com")
		t.Setenv("EMAIL_HOST", "smtp.example.com")
		t.Setenv("EMAIL_PORT", "2525")
		t.Setenv("EMAIL_HOST_USER", "mailer")
		t.Setenv("EMAIL_HOST_PASSWORD", "secret")
		t.Setenv("FCM_CREDENTIALS_FILE", "/etc/fcm.json")
		t.Setenv("APNS_SANDBOX", "true")

		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, "env-project", finalCfg.ProjectID)
		assert.Equal(t, ":9090", finalCfg.ListenAddr)
		assert.Equal(t, "env-topic", finalCfg.TopicID)
		assert.Equal(t, "env-sub", finalCfg.SubscriptionID)
		assert.Equal(t, "http://worker:9090/tasks/", finalCfg.ForwardURL)
		assert.Equal(t, "env-pub", finalCfg.Vapid.PublicKey)
		assert.Equal(t, "env-priv", finalCfg.Vapid.PrivateKey)
		assert.Equal(t, "env@test.com", finalCfg.Vapid.SubscriberEmail)
		assert.Equal(t, "eu-west-1", finalCfg.AWS.Region)
		assert.True(t, finalCfg.SNS.Enabled())
		assert.True(t, finalCfg.SES.Enabled())
		assert.Equal(t, config.EmailConfig{Host: "smtp.example.com", Port: 2525, User: "mailer", Password: "secret"}, finalCfg.Email)
		assert.True(t, finalCfg.FCM.Enabled)
		assert.Equal(t, "/etc/fcm.json", finalCfg.FCM.CredentialsFile)
		assert.True(t, finalCfg.APNS.Sandbox)
		require.NotNil(t, finalCfg.PubsubConsumerConfig)
	})

	t.Run("Success - Defaults preserved and filled", func(t *testing.T) {
		cfg := baseConfig()
		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, "base-project", finalCfg.ProjectID)
		assert.Equal(t, "base-pub", finalCfg.Vapid.PublicKey)
		assert.Equal(t, tasks.BackendDurable, finalCfg.QueueBackend)
		assert.Equal(t, "http://localhost:8080/tasks/", finalCfg.ForwardURL)
		assert.Equal(t, "notify:tasks", finalCfg.Broker.Stream)
		assert.Equal(t, "notify-workers", finalCfg.Broker.Group)
		assert.Equal(t, 4, finalCfg.Broker.Workers)
		assert.Equal(t, 587, finalCfg.Email.Port)
		assert.False(t, finalCfg.SNS.Enabled())
	})

	t.Run("Success - Broker backend needs only redis", func(t *testing.T) {
		t.Setenv("QUEUE_BACKEND", "broker")
		t.Setenv("REDIS_ADDR", "localhost:6379")
		t.Setenv("BROKER_WORKERS", "8")

		finalCfg, err := config.UpdateConfigWithEnvOverrides(&config.Config{}, logger)
		require.NoError(t, err)
		assert.Equal(t, tasks.BackendBroker, finalCfg.QueueBackend)
		assert.True(t, finalCfg.Redis.Enabled)
		assert.Equal(t, 8, finalCfg.Broker.Workers)
	})

	validationFailures := []struct {
		name string
		cfg  *config.Config
		env  map[string]string
	}{
		{name: "Unknown backend", cfg: baseConfig(), env: map[string]string{"QUEUE_BACKEND": "celery"}},
		{name: "Durable without project", cfg: &config.Config{TopicID: "t"}},
		{name: "Durable without topic", cfg: &config.Config{ProjectID: "p"}},
		{name: "Broker without redis", cfg: &config.Config{QueueBackend: tasks.BackendBroker}},
		{
			name: "SNS without region",
			cfg:  baseConfig(),
			env:  map[string]string{"SNS_PLATFORM_APPLICATION_ARN_IOS": "arn:aws:sns:x"},
		},
	}
	for _, tc := range validationFailures {
		t.Run("Validation Failure - "+tc.name, func(t *testing.T) {
			t.Setenv("PROJECT_ID", "")
			t.Setenv("TOPIC_ID", "")
			t.Setenv("AWS_REGION", "")
			t.Setenv("REDIS_ADDR", "")
			t.Setenv("QUEUE_BACKEND", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := config.UpdateConfigWithEnvOverrides(tc.cfg, logger)
			assert.Error(t, err)
		})
	}
}

func TestRequireForwarder(t *testing.T) {
	assert.NoError(t, (&config.Config{ProjectID: "p", TopicID: "t", SubscriptionID: "s"}).RequireForwarder())
	assert.Error(t, (&config.Config{ProjectID: "p", TopicID: "t"}).RequireForwarder())
	assert.Error(t, (&config.Config{TopicID: "t", SubscriptionID: "s"}).RequireForwarder())
}
