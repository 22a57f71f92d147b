// Command dispatcher serves the worker ingress (POST /tasks/) and, when SNS
// is configured, the device registration API.
package main

import (
	"context"
	_ "embed"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-notification-dispatcher/internal/api"
	"github.com/tinywideclouds/go-notification-dispatcher/internal/catalog"
	pubsubqueue "github.com/tinywideclouds/go-notification-dispatcher/internal/queue/pubsub"
	redisqueue "github.com/tinywideclouds/go-notification-dispatcher/internal/queue/redis"
	"github.com/tinywideclouds/go-notification-dispatcher/internal/storage/cache"
	"github.com/tinywideclouds/go-notification-dispatcher/notificationservice"
	"github.com/tinywideclouds/go-notification-dispatcher/notificationservice/config"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/tasks"
)

//go:embed local.yaml
var configFile []byte

func main() {
	logger := config.NewLogger("go-notification-dispatcher")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Config Loading ---
	cfg, err := config.Load(configFile, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}

	// --- Channels ---
	channels, err := notificationservice.NewChannels(ctx, cfg, logger)
	if err != nil {
		logger.Error("Channel setup failed", "err", err)
		os.Exit(1)
	}
	defer channels.Close()

	registry, err := catalog.NewRegistry(channels.Deps, logger)
	if err != nil {
		logger.Error("Task registry failed", "err", err)
		os.Exit(1)
	}

	// --- Queue backend ---
	var durable tasks.DurableQueue
	var broker tasks.Broker
	switch cfg.QueueBackend {
	case tasks.BackendDurable:
		psClient, err := pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			logger.Error("PubSub client failed", "err", err)
			os.Exit(1)
		}
		defer psClient.Close()
		submitter := pubsubqueue.NewSubmitter(psClient, cfg.TopicID, logger)
		defer submitter.Stop()
		durable = submitter
	case tasks.BackendBroker:
		redisClient, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Error("Failed to connect to Redis", "err", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		broker = redisqueue.NewBroker(redisClient.Redis(), cfg.Broker.Stream, logger)
	}

	dispatcher, err := tasks.NewDispatcher(cfg.QueueBackend, durable, broker, logger)
	if err != nil {
		logger.Error("Task dispatcher failed", "err", err)
		os.Exit(1)
	}

	// --- Auth (device API only) ---
	var devices api.DeviceRegistrar
	authMiddleware := func(h http.Handler) http.Handler { return h }
	if channels.Devices != nil {
		devices = channels.Devices
		identityURL := cfg.IdentityURL
		if identityURL == "" {
			identityURL = "http://localhost:3000"
		}
		jwksURL, err := middleware.DiscoverAndValidateJWTConfig(identityURL, middleware.RSA256, logger)
		if err != nil {
			logger.Error("JWT discovery failed", "identity_url", identityURL, "err", err)
			os.Exit(1)
		}
		authMiddleware, err = middleware.NewJWKSAuthMiddleware(jwksURL, logger)
		if err != nil {
			logger.Error("JWKS middleware failed", "err", err)
			os.Exit(1)
		}
	}

	service, err := notificationservice.New(cfg, registry, dispatcher, devices, authMiddleware, logger)
	if err != nil {
		logger.Error("Service creation failed", "err", err)
		os.Exit(1)
	}

	go func() {
		logger.Info("Starting service...", "backend", cfg.QueueBackend, "addr", cfg.ListenAddr)
		if err := service.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Service shutdown with error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := service.Shutdown(shutdownCtx); err != nil {
		os.Exit(1)
	}
}
