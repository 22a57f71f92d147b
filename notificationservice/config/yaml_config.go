package config

import (
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/tasks"
)

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	Role           string   `yaml:"role"`
}

type YamlRedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

type YamlBrokerConfig struct {
	Stream  string `yaml:"stream"`
	Group   string `yaml:"group"`
	Workers int    `yaml:"workers"`
}

type YamlVapidConfig struct {
	PublicKey       string `yaml:"public_key"`
	PrivateKey      string `yaml:"private_key"`
	SubscriberEmail string `yaml:"subscriber_email"`
}

type YamlAWSConfig struct {
	Region                   string `yaml:"region"`
	SNSAndroidApplicationARN string `yaml:"sns_platform_application_arn_android"`
	SNSIOSApplicationARN     string `yaml:"sns_platform_application_arn_ios"`
	SESEmailIdentity         string `yaml:"ses_email_identity"`
	SESFromEmail             string `yaml:"ses_from_email"`
}

type YamlEmailConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	From string `yaml:"from"`
}

type YamlFCMConfig struct {
	Enabled         bool   `yaml:"enabled"`
	CredentialsFile string `yaml:"credentials_file"`
}

type YamlAPNSConfig struct {
	KeyID     string `yaml:"key_id"`
	TeamID    string `yaml:"team_id"`
	BundleID  string `yaml:"bundle_id"`
	P8KeyFile string `yaml:"p8_key_file"`
	Sandbox   bool   `yaml:"sandbox"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
// AWS keys and the SMTP password are only read from the environment.
type YamlConfig struct {
	ProjectID              string           `yaml:"project_id"`
	ListenAddr             string           `yaml:"listen_addr"`
	QueueBackend           string           `yaml:"queue_backend"`
	IdentityURL            string           `yaml:"identity_url"`
	TopicID                string           `yaml:"topic_id"`
	SubscriptionID         string           `yaml:"subscription_id"`
	SubscriptionDLQTopicID string           `yaml:"subscription_dlq_topic_id"`
	ForwardURL             string           `yaml:"forward_url"`
	NumPipelineWorkers     int              `yaml:"num_pipeline_workers"`
	CorsConfig             YamlCorsConfig   `yaml:"cors"`
	RedisConfig            YamlRedisConfig  `yaml:"redis"`
	BrokerConfig           YamlBrokerConfig `yaml:"broker"`
	VapidConfig            YamlVapidConfig  `yaml:"vapid"`
	AWSConfig              YamlAWSConfig    `yaml:"aws"`
	EmailConfig            YamlEmailConfig  `yaml:"email"`
	FCMConfig              YamlFCMConfig    `yaml:"fcm"`
	APNSConfig             YamlAPNSConfig   `yaml:"apns"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	cfg := &Config{
		ProjectID:    baseCfg.ProjectID,
		ListenAddr:   baseCfg.ListenAddr,
		QueueBackend: tasks.Backend(baseCfg.QueueBackend),
		IdentityURL:  baseCfg.IdentityURL,

		TopicID:                baseCfg.TopicID,
		SubscriptionID:         baseCfg.SubscriptionID,
		SubscriptionDLQTopicID: baseCfg.SubscriptionDLQTopicID,
		ForwardURL:             baseCfg.ForwardURL,
		NumPipelineWorkers:     baseCfg.NumPipelineWorkers,

		CorsConfig: middleware.CorsConfig{
			AllowedOrigins: baseCfg.CorsConfig.AllowedOrigins,
			Role:           middleware.CorsRole(baseCfg.CorsConfig.Role),
		},
		Redis: RedisConfig{
			Addr:     baseCfg.RedisConfig.Addr,
			Password: baseCfg.RedisConfig.Password,
			DB:       baseCfg.RedisConfig.DB,
			Enabled:  baseCfg.RedisConfig.Enabled,
		},
		Broker: BrokerConfig{
			Stream:  baseCfg.BrokerConfig.Stream,
			Group:   baseCfg.BrokerConfig.Group,
			Workers: baseCfg.BrokerConfig.Workers,
		},
		Vapid: VapidConfig{
			PublicKey:       baseCfg.VapidConfig.PublicKey,
			PrivateKey:      baseCfg.VapidConfig.PrivateKey,
			SubscriberEmail: baseCfg.VapidConfig.SubscriberEmail,
		},
		AWS: AWSConfig{Region: baseCfg.AWSConfig.Region},
		SNS: SNSConfig{
			AndroidApplicationARN: baseCfg.AWSConfig.SNSAndroidApplicationARN,
			IOSApplicationARN:     baseCfg.AWSConfig.SNSIOSApplicationARN,
		},
		SES: SESConfig{
			Identity:  baseCfg.AWSConfig.SESEmailIdentity,
			FromEmail: baseCfg.AWSConfig.SESFromEmail,
		},
		Email: EmailConfig{
			Host: baseCfg.EmailConfig.Host,
			Port: baseCfg.EmailConfig.Port,
			User: baseCfg.EmailConfig.User,
			From: baseCfg.EmailConfig.From,
		},
		FCM: FCMConfig{
			Enabled:         baseCfg.FCMConfig.Enabled || baseCfg.FCMConfig.CredentialsFile != "",
			CredentialsFile: baseCfg.FCMConfig.CredentialsFile,
		},
		APNS: APNSConfig{
			KeyID:     baseCfg.APNSConfig.KeyID,
			TeamID:    baseCfg.APNSConfig.TeamID,
			BundleID:  baseCfg.APNSConfig.BundleID,
			P8KeyFile: baseCfg.APNSConfig.P8KeyFile,
			Sandbox:   baseCfg.APNSConfig.Sandbox,
		},
	}

	if cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("YAML config mapping complete",
		"project_id", cfg.ProjectID,
		"listen_addr", cfg.ListenAddr,
		"queue_backend", cfg.QueueBackend,
		"subscription_id", cfg.SubscriptionID,
	)

	return cfg, nil
}
