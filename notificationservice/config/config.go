package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/tasks"
)

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// BrokerConfig names the Redis stream and consumer group of the broker backend.
type BrokerConfig struct {
	Stream  string
	Group   string
	Workers int
}

type VapidConfig struct {
	PublicKey       string
	PrivateKey      string
	SubscriberEmail string
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// SNSConfig holds the platform application ARN per device type. An empty
// ARN leaves that device type unsupported.
type SNSConfig struct {
	AndroidApplicationARN string
	IOSApplicationARN     string
}

func (c SNSConfig) Enabled() bool {
	return c.AndroidApplicationARN != "" || c.IOSApplicationARN != ""
}

type SESConfig struct {
	Identity  string
	FromEmail string
}

func (c SESConfig) Enabled() bool { return c.Identity != "" }

// EmailConfig is the SMTP relay.
type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

func (c EmailConfig) Enabled() bool { return c.Host != "" }

type FCMConfig struct {
	Enabled         bool
	CredentialsFile string
}

type APNSConfig struct {
	KeyID     string
	TeamID    string
	BundleID  string
	P8KeyFile string
	Sandbox   bool
}

func (c APNSConfig) Enabled() bool { return c.BundleID != "" && c.P8KeyFile != "" }

// Config defines the *single*, authoritative configuration shared by the
// dispatcher, the broker worker and the queue forwarder.
type Config struct {
	ProjectID    string
	ListenAddr   string
	QueueBackend tasks.Backend
	IdentityURL  string

	TopicID                string
	SubscriptionID         string
	SubscriptionDLQTopicID string
	ForwardURL             string
	NumPipelineWorkers     int

	CorsConfig middleware.CorsConfig
	Redis      RedisConfig
	Broker     BrokerConfig
	Vapid      VapidConfig
	AWS        AWSConfig
	SNS        SNSConfig
	SES        SESConfig
	Email      EmailConfig
	FCM        FCMConfig
	APNS       APNSConfig

	PubsubConsumerConfig *messagepipeline.GooglePubsubConsumerConfig
}

const (
	defaultListenAddr    = ":8080"
	defaultForwardURL    = "http://localhost:8080/tasks/"
	defaultBrokerStream  = "notify:tasks"
	defaultBrokerGroup   = "notify-workers"
	defaultBrokerWorkers = 4
	defaultEmailPort     = 587
)

func overrideString(logger *slog.Logger, key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		logger.Debug("Overriding config value", "key", key, "source", "env")
		*dst = val
	}
}

func overrideInt(logger *slog.Logger, key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			logger.Warn("Ignoring non-numeric env value", "key", key, "value", val)
			return
		}
		logger.Debug("Overriding config value", "key", key, "source", "env")
		*dst = n
	}
}

func overrideBool(logger *slog.Logger, key string, dst *bool) {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			logger.Warn("Ignoring non-boolean env value", "key", key, "value", val)
			return
		}
		logger.Debug("Overriding config value", "key", key, "source", "env")
		*dst = b
	}
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	// 1. Apply Environment Overrides
	overrideString(logger, "PROJECT_ID", &cfg.ProjectID)
	if val := os.Getenv("PORT"); val != "" {
		logger.Debug("Overriding config value", "key", "PORT", "source", "env")
		cfg.ListenAddr = ":" + val
	}
	if val := os.Getenv("QUEUE_BACKEND"); val != "" {
		logger.Debug("Overriding config value", "key", "QUEUE_BACKEND", "source", "env")
		cfg.QueueBackend = tasks.Backend(val)
	}
	overrideString(logger, "IDENTITY_SERVICE_URL", &cfg.IdentityURL)
	overrideString(logger, "TOPIC_ID", &cfg.TopicID)
	if val := os.Getenv("SUBSCRIPTION_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_ID", "source", "env")
		cfg.SubscriptionID = val
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(val)
	}
	overrideString(logger, "SUBSCRIPTION_DLQ_TOPIC_ID", &cfg.SubscriptionDLQTopicID)
	overrideString(logger, "FORWARD_URL", &cfg.ForwardURL)
	if val := os.Getenv("NUM_PIPELINE_WORKERS"); val != "" {
		if workers, err := strconv.Atoi(val); err == nil && workers > 0 {
			logger.Debug("Overriding config value", "key", "NUM_PIPELINE_WORKERS", "source", "env")
			cfg.NumPipelineWorkers = workers
		}
	}

	// Redis / Broker Overrides
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.Redis.Addr = val
		cfg.Redis.Enabled = true
	}
	overrideString(logger, "REDIS_PASSWORD", &cfg.Redis.Password)
	overrideInt(logger, "REDIS_DB", &cfg.Redis.DB)
	overrideBool(logger, "REDIS_ENABLED", &cfg.Redis.Enabled)
	overrideString(logger, "BROKER_STREAM", &cfg.Broker.Stream)
	overrideString(logger, "BROKER_GROUP", &cfg.Broker.Group)
	overrideInt(logger, "BROKER_WORKERS", &cfg.Broker.Workers)

	// AWS Overrides
	overrideString(logger, "AWS_REGION", &cfg.AWS.Region)
	overrideString(logger, "AWS_ACCESS_KEY_ID", &cfg.AWS.AccessKeyID)
	overrideString(logger, "AWS_SECRET_ACCESS_KEY", &cfg.AWS.SecretAccessKey)
	overrideString(logger, "SNS_PLATFORM_APPLICATION_ARN_ANDROID", &cfg.SNS.AndroidApplicationARN)
	overrideString(logger, "SNS_PLATFORM_APPLICATION_ARN_IOS", &cfg.SNS.IOSApplicationARN)
	overrideString(logger, "SES_EMAIL_IDENTITY", &cfg.SES.Identity)
	overrideString(logger, "SES_FROM_EMAIL", &cfg.SES.FromEmail)

	// SMTP Overrides
	overrideString(logger, "EMAIL_HOST", &cfg.Email.Host)
	overrideInt(logger, "EMAIL_PORT", &cfg.Email.Port)
	overrideString(logger, "EMAIL_HOST_USER", &cfg.Email.User)
	overrideString(logger, "EMAIL_HOST_PASSWORD", &cfg.Email.Password)
	overrideString(logger, "EMAIL_FROM", &cfg.Email.From)

	// Push Overrides
	if val := os.Getenv("FCM_CREDENTIALS_FILE"); val != "" {
		logger.Debug("Overriding config value", "key", "FCM_CREDENTIALS_FILE", "source", "env")
		cfg.FCM.CredentialsFile = val
		cfg.FCM.Enabled = true
	}
	overrideBool(logger, "FCM_ENABLED", &cfg.FCM.Enabled)
	overrideString(logger, "APNS_KEY_ID", &cfg.APNS.KeyID)
	overrideString(logger, "APNS_TEAM_ID", &cfg.APNS.TeamID)
	overrideString(logger, "APNS_BUNDLE_ID", &cfg.APNS.BundleID)
	overrideString(logger, "APNS_P8_KEY_FILE", &cfg.APNS.P8KeyFile)
	overrideBool(logger, "APNS_SANDBOX", &cfg.APNS.Sandbox)
	overrideString(logger, "VAPID_PUBLIC_KEY", &cfg.Vapid.PublicKey)
	overrideString(logger, "VAPID_PRIVATE_KEY", &cfg.Vapid.PrivateKey)
	overrideString(logger, "VAPID_SUB_EMAIL", &cfg.Vapid.SubscriberEmail)

	// CORS Overrides
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		logger.Debug("Overriding config value", "key", "CORS_ALLOWED_ORIGINS", "source", "env")
		rawOrigins := strings.Split(corsOrigins, ",")
		var cleanOrigins []string
		for _, o := range rawOrigins {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				cleanOrigins = append(cleanOrigins, trimmed)
			}
		}
		cfg.CorsConfig.AllowedOrigins = cleanOrigins
	}

	// 2. Defaults
	if cfg.QueueBackend == "" {
		cfg.QueueBackend = tasks.BackendDurable
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.ForwardURL == "" {
		cfg.ForwardURL = defaultForwardURL
	}
	if cfg.NumPipelineWorkers <= 0 {
		cfg.NumPipelineWorkers = 1
	}
	if cfg.Broker.Stream == "" {
		cfg.Broker.Stream = defaultBrokerStream
	}
	if cfg.Broker.Group == "" {
		cfg.Broker.Group = defaultBrokerGroup
	}
	if cfg.Broker.Workers <= 0 {
		cfg.Broker.Workers = defaultBrokerWorkers
	}
	if cfg.Email.Port == 0 {
		cfg.Email.Port = defaultEmailPort
	}
	if cfg.PubsubConsumerConfig == nil && cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	// 3. Final Validation
	backend, err := tasks.ParseBackend(string(cfg.QueueBackend))
	if err != nil {
		return nil, fmt.Errorf("queue_backend: %w", err)
	}
	cfg.QueueBackend = backend

	switch backend {
	case tasks.BackendDurable:
		if cfg.ProjectID == "" {
			return nil, fmt.Errorf("project_id is required for the durable backend (set via YAML or PROJECT_ID env var)")
		}
		if cfg.TopicID == "" {
			return nil, fmt.Errorf("topic_id is required for the durable backend (set via YAML or TOPIC_ID env var)")
		}
	case tasks.BackendBroker:
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("redis addr is required for the broker backend (set via YAML or REDIS_ADDR env var)")
		}
	}
	if (cfg.SNS.Enabled() || cfg.SES.Enabled()) && cfg.AWS.Region == "" {
		return nil, fmt.Errorf("aws region is required when SNS or SES is configured (set via YAML or AWS_REGION env var)")
	}

	logger.Debug("Configuration finalized and validated successfully", "backend", cfg.QueueBackend)
	return cfg, nil
}

// RequireForwarder checks the settings only the queue forwarder needs.
func (c *Config) RequireForwarder() error {
	if c.ProjectID == "" {
		return fmt.Errorf("project_id is required by the queue forwarder")
	}
	if c.TopicID == "" {
		return fmt.Errorf("topic_id is required by the queue forwarder")
	}
	if c.SubscriptionID == "" {
		return fmt.Errorf("subscription_id is required by the queue forwarder (set via YAML or SUBSCRIPTION_ID env var)")
	}
	return nil
}
