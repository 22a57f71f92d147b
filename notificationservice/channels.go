package notificationservice

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	awsses "github.com/aws/aws-sdk-go-v2/service/ses"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"
	"google.golang.org/api/option"

	"github.com/tinywideclouds/go-notification-dispatcher/internal/catalog"
	"github.com/tinywideclouds/go-notification-dispatcher/internal/platform/apns"
	"github.com/tinywideclouds/go-notification-dispatcher/internal/platform/awsauth"
	"github.com/tinywideclouds/go-notification-dispatcher/internal/platform/fcm"
	"github.com/tinywideclouds/go-notification-dispatcher/internal/platform/ses"
	"github.com/tinywideclouds/go-notification-dispatcher/internal/platform/smtp"
	"github.com/tinywideclouds/go-notification-dispatcher/internal/platform/sns"
	"github.com/tinywideclouds/go-notification-dispatcher/internal/platform/web"
	"github.com/tinywideclouds/go-notification-dispatcher/internal/storage/cache"
	fsStore "github.com/tinywideclouds/go-notification-dispatcher/internal/storage/firestore"
	"github.com/tinywideclouds/go-notification-dispatcher/notificationservice/config"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/dispatch"
)

// endpointCacheTTL bounds how long a cached endpoint ARN is trusted.
const endpointCacheTTL = 24 * time.Hour

// Channels holds every long-lived channel client built from the config.
type Channels struct {
	Deps    catalog.Deps
	Devices *sns.Client

	closers []func() error
}

// Close releases the storage clients opened by NewChannels.
func (c *Channels) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i]()
	}
}

// NewChannels validates and builds every configured channel once. Any
// configured channel that fails validation aborts startup.
func NewChannels(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Channels, error) {
	ch := &Channels{}
	fail := func(err error) (*Channels, error) {
		ch.Close()
		return nil, err
	}

	// --- Email ---
	if cfg.Email.Enabled() {
		ch.Deps.Email = smtp.NewSender(smtp.Config{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.User,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
		}, logger)
		logger.Info("SMTP relay enabled", "host", cfg.Email.Host)
	}

	// --- AWS (SES / SNS) ---
	if cfg.SES.Enabled() || cfg.SNS.Enabled() {
		awsCfg, err := awsauth.Load(ctx, awsauth.Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
		})
		if err != nil {
			return fail(err)
		}

		if cfg.SES.Enabled() {
			sesClient, err := ses.NewClient(ctx, awsses.NewFromConfig(awsCfg), ses.Config{
				Identity: cfg.SES.Identity,
				From:     cfg.SES.FromEmail,
			}, logger)
			if err != nil {
				return fail(fmt.Errorf("ses: %w", err))
			}
			ch.Deps.CloudEmail = sesClient
			logger.Info("Cloud email enabled", "identity", cfg.SES.Identity)
		}

		if cfg.SNS.Enabled() {
			store, err := ch.endpointStore(ctx, cfg, logger)
			if err != nil {
				return fail(err)
			}
			devices, err := sns.NewClient(ctx, sns.NewAWSProvider(awssns.NewFromConfig(awsCfg)), sns.PlatformApplications{
				Android: cfg.SNS.AndroidApplicationARN,
				IOS:     cfg.SNS.IOSApplicationARN,
			}, store, logger)
			if err != nil {
				return fail(fmt.Errorf("sns: %w", err))
			}
			ch.Devices = devices
			ch.Deps.Devices = devices
			logger.Info("Device registry enabled")
		}
	}

	// --- Push ---
	if cfg.FCM.Enabled {
		var opts []option.ClientOption
		if cfg.FCM.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.FCM.CredentialsFile))
		}
		fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
		if err != nil {
			return fail(fmt.Errorf("failed to initialize Firebase App: %w", err))
		}
		fcmMessaging, err := fbApp.Messaging(ctx)
		if err != nil {
			return fail(fmt.Errorf("failed to create FCM messaging client: %w", err))
		}
		ch.Deps.FCM = fcm.NewDispatcher(fcm.NewFirebaseGateway(fcmMessaging), logger)
		logger.Info("Push gateway enabled", "channel", "fcm")
	}

	if cfg.APNS.Enabled() {
		p8, err := os.ReadFile(cfg.APNS.P8KeyFile)
		if err != nil {
			return fail(fmt.Errorf("failed to read APNs key file: %w", err))
		}
		apnsDispatcher, err := apns.NewDispatcher(apns.Config{
			KeyID:        cfg.APNS.KeyID,
			TeamID:       cfg.APNS.TeamID,
			BundleID:     cfg.APNS.BundleID,
			P8KeyContent: string(p8),
			Sandbox:      cfg.APNS.Sandbox,
		}, logger)
		if err != nil {
			return fail(err)
		}
		ch.Deps.APNS = apnsDispatcher
		logger.Info("Push gateway enabled", "channel", "apns", "sandbox", cfg.APNS.Sandbox)
	}

	if cfg.Vapid.PrivateKey != "" && cfg.Vapid.PublicKey != "" {
		ch.Deps.Web = web.NewDispatcher(cfg.Vapid, logger)
		logger.Info("Web Dispatcher enabled", "public_key", cfg.Vapid.PublicKey)
	}

	return ch, nil
}

// endpointStore returns the Firestore store, Redis-cached when enabled. It is
// nil without a project; registration then leans on the provider's
// duplicate-token answer to find existing endpoints.
func (c *Channels) endpointStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (dispatch.EndpointStore, error) {
	if cfg.ProjectID == "" {
		logger.Warn("No project configured, device endpoints will not be persisted")
		return nil, nil
	}
	fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("firestore client failed: %w", err)
	}
	c.closers = append(c.closers, fsClient.Close)

	var store dispatch.EndpointStore = fsStore.NewEndpointStore(fsClient, "")
	logger.Info("EndpointStore initialized", "type", "firestore")

	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		c.closers = append(c.closers, redisClient.Close)
		store = cache.NewCachedEndpointStore(store, redisClient, endpointCacheTTL, logger)
		logger.Info("EndpointStore upgraded", "type", "redis_cached_firestore")
	}
	return store, nil
}
