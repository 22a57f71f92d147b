// Command brokerworker consumes the Redis task stream and runs each task
// against the same catalog the dispatcher serves.
package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tinywideclouds/go-notification-dispatcher/internal/catalog"
	redisqueue "github.com/tinywideclouds/go-notification-dispatcher/internal/queue/redis"
	"github.com/tinywideclouds/go-notification-dispatcher/internal/storage/cache"
	"github.com/tinywideclouds/go-notification-dispatcher/notificationservice"
	"github.com/tinywideclouds/go-notification-dispatcher/notificationservice/config"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/tasks"
)

//go:embed local.yaml
var configFile []byte

func main() {
	logger := config.NewLogger("go-notification-brokerworker")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configFile, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}
	if cfg.QueueBackend != tasks.BackendBroker {
		logger.Error("Broker worker requires the broker backend", "backend", cfg.QueueBackend)
		os.Exit(1)
	}

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

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Error("Failed to connect to Redis", "err", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	broker := redisqueue.NewBroker(redisClient.Redis(), cfg.Broker.Stream, logger)
	dispatcher, err := tasks.NewDispatcher(tasks.BackendBroker, nil, broker, logger)
	if err != nil {
		logger.Error("Task dispatcher failed", "err", err)
		os.Exit(1)
	}

	hostname, _ := os.Hostname()
	worker := redisqueue.NewWorker(redisClient.Redis(), redisqueue.WorkerConfig{
		Stream:   cfg.Broker.Stream,
		Group:    cfg.Broker.Group,
		Consumer: fmt.Sprintf("%s-%d", hostname, os.Getpid()),
		Workers:  cfg.Broker.Workers,
	}, redisqueue.RunnerFor(dispatcher, registry), logger)

	service := notificationservice.NewBrokerWorker(cfg, worker, logger)

	go func() {
		logger.Info("Starting broker worker...", "stream", cfg.Broker.Stream, "group", cfg.Broker.Group)
		if err := service.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Service shutdown with error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := service.Shutdown(shutdownCtx); err != nil {
		os.Exit(1)
	}
}
