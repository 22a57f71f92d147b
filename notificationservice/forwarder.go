package notificationservice

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-notification-dispatcher/internal/pipeline"
	"github.com/tinywideclouds/go-notification-dispatcher/notificationservice/config"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/tasks"
)

// Forwarder pulls the durable queue and POSTs each payload to the worker
// ingress. It serves only health and readiness itself.
type Forwarder struct {
	*microservice.BaseServer
	pipelineService *messagepipeline.StreamingService[tasks.Payload]
	logger          *slog.Logger
}

func NewForwarder(
	cfg *config.Config,
	consumer messagepipeline.MessageConsumer,
	client pipeline.HTTPDoer,
	logger *slog.Logger,
) (*Forwarder, error) {
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	streamingService, err := messagepipeline.NewStreamingService(
		messagepipeline.StreamingServiceConfig{NumWorkers: cfg.NumPipelineWorkers},
		consumer,
		pipeline.PayloadTransformer,
		pipeline.NewForwardProcessor(cfg.ForwardURL, client, logger),
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create streaming service: %w", err)
	}

	return &Forwarder{
		BaseServer:      baseServer,
		pipelineService: streamingService,
		logger:          logger,
	}, nil
}

func (f *Forwarder) Start(ctx context.Context) error {
	f.logger.Info("Forwarding pipeline starting...")
	if err := f.pipelineService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start processing service: %w", err)
	}
	f.SetReady(true)
	f.logger.Info("Service is now ready.")
	return f.BaseServer.Start()
}

func (f *Forwarder) Shutdown(ctx context.Context) error {
	f.logger.Info("Shutting down service components...")
	var finalErr error
	if err := f.pipelineService.Stop(ctx); err != nil {
		f.logger.Error("Processing pipeline shutdown failed.", "err", err)
		finalErr = err
	}
	if err := f.BaseServer.Shutdown(ctx); err != nil {
		f.logger.Error("HTTP server shutdown failed.", "err", err)
		finalErr = err
	}
	f.logger.Info("Service shutdown complete.")
	return finalErr
}
