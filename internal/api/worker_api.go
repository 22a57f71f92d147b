package api

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/tasks"
)

const taskFailedBody = "Task could not be processed."

// maxTaskBody bounds the ingress request body. It leaves room for the base64
// push envelope around a payload of tasks.MaxPayloadSize.
const maxTaskBody = 2 * tasks.MaxPayloadSize

// WorkerAPI is the ingress that replays payloads delivered by the durable
// queue. It only answers when the durable backend is active.
type WorkerAPI struct {
	registry   *tasks.Registry
	dispatcher *tasks.Dispatcher
	enabled    bool
	logger     *slog.Logger
}

func NewWorkerAPI(registry *tasks.Registry, dispatcher *tasks.Dispatcher, enabled bool, logger *slog.Logger) *WorkerAPI {
	return &WorkerAPI{
		registry:   registry,
		dispatcher: dispatcher,
		enabled:    enabled,
		logger:     logger.With("component", "WorkerAPI"),
	}
}

func (api *WorkerAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !api.enabled {
		http.NotFound(w, r)
		return
	}

	logger := api.logger.With("request_id", uuid.NewString())
	logger.Info("Task request received")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTaskBody))
	if err != nil {
		logger.Error("Failed to read task body", "err", err)
		http.Error(w, taskFailedBody, http.StatusInternalServerError)
		return
	}

	payload, err := tasks.DecodePayload(body)
	if err != nil {
		logger.Error("Task could not be processed", "payload", string(body), "err", err)
		http.Error(w, taskFailedBody, http.StatusInternalServerError)
		return
	}

	logger = logger.With("action", payload.Action)
	if err := api.dispatcher.Replay(r.Context(), api.registry, payload); err != nil {
		logger.Error("Task could not be processed", "payload", string(body), "err", err)
		http.Error(w, taskFailedBody, http.StatusInternalServerError)
		return
	}

	logger.Info("Task request completed")
	w.WriteHeader(http.StatusOK)
}
