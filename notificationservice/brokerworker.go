package notificationservice

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-notification-dispatcher/notificationservice/config"
)

// StreamWorker is the broker consumer (a *redisqueue.Worker in production).
type StreamWorker interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// BrokerWorker runs the broker consumer group next to a health endpoint.
type BrokerWorker struct {
	*microservice.BaseServer
	worker StreamWorker
	logger *slog.Logger
}

func NewBrokerWorker(cfg *config.Config, worker StreamWorker, logger *slog.Logger) *BrokerWorker {
	return &BrokerWorker{
		BaseServer: microservice.NewBaseServer(logger, cfg.ListenAddr),
		worker:     worker,
		logger:     logger,
	}
}

func (b *BrokerWorker) Start(ctx context.Context) error {
	b.logger.Info("Broker worker starting...")
	if err := b.worker.Start(ctx); err != nil {
		return fmt.Errorf("failed to start broker worker: %w", err)
	}
	b.SetReady(true)
	b.logger.Info("Service is now ready.")
	return b.BaseServer.Start()
}

func (b *BrokerWorker) Shutdown(ctx context.Context) error {
	b.logger.Info("Shutting down service components...")
	var finalErr error
	if err := b.worker.Stop(ctx); err != nil {
		b.logger.Error("Broker worker shutdown failed.", "err", err)
		finalErr = err
	}
	if err := b.BaseServer.Shutdown(ctx); err != nil {
		b.logger.Error("HTTP server shutdown failed.", "err", err)
		finalErr = err
	}
	b.logger.Info("Service shutdown complete.")
	return finalErr
}
