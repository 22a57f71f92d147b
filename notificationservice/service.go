package notificationservice

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-notification-dispatcher/internal/api"
	"github.com/tinywideclouds/go-notification-dispatcher/notificationservice/config"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/tasks"
)

// TaskRoute is the root of the worker ingress.
const TaskRoute = "/tasks/"

// Wrapper is the dispatcher service: the worker ingress plus, when a device
// registry is configured, the authenticated device registration API.
type Wrapper struct {
	*microservice.BaseServer
	logger *slog.Logger
}

// New assembles the service. devices may be nil, which leaves the device
// API unrouted.
func New(
	cfg *config.Config,
	registry *tasks.Registry,
	dispatcher *tasks.Dispatcher,
	devices api.DeviceRegistrar,
	authMiddleware func(http.Handler) http.Handler,
	logger *slog.Logger,
) (*Wrapper, error) {

	// 1. Base Server
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)
	mux := baseServer.Mux()

	// 2. Worker ingress (only answers on the durable backend)
	workerAPI := api.NewWorkerAPI(registry, dispatcher, dispatcher.Backend() == tasks.BackendDurable, logger)
	mux.Handle("POST "+TaskRoute, workerAPI)

	// 3. Device registration
	if devices != nil {
		deviceAPI := api.NewDeviceAPI(devices, logger)
		corsMiddleware := middleware.NewCorsMiddleware(cfg.CorsConfig, logger)

		mux.Handle("POST /api/v1/devices", corsMiddleware(authMiddleware(http.HandlerFunc(deviceAPI.RegisterDevice))))
		mux.Handle("OPTIONS /api/v1/", corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	} else {
		logger.Info("Device registry not configured, device API disabled")
	}

	return &Wrapper{
		BaseServer: baseServer,
		logger:     logger,
	}, nil
}

func (w *Wrapper) Start(ctx context.Context) error {
	w.SetReady(true)
	w.logger.Info("Service is now ready.")
	return w.BaseServer.Start()
}

func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		return err
	}
	w.logger.Info("Service shutdown complete.")
	return nil
}
