package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"
	"github.com/tinywideclouds/go-notification-dispatcher/internal/platform/sns"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
)

// DeviceRegistrar runs the device registry protocol.
type DeviceRegistrar interface {
	Register(ctx context.Context, device sns.Device) (string, error)
}

type DeviceAPI struct {
	Devices DeviceRegistrar
	Logger  *slog.Logger
}

func NewDeviceAPI(devices DeviceRegistrar, logger *slog.Logger) *DeviceAPI {
	return &DeviceAPI{
		Devices: devices,
		Logger:  logger.With("component", "DeviceAPI"),
	}
}

type RegisterDeviceRequest struct {
	DeviceType string `json:"device_type"`
	Token      string `json:"token"`
}

// RegisterDevice binds the caller's device token to a provider endpoint.
// The authenticated user URN becomes the endpoint's custom user data.
func (api *DeviceAPI) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserHandleFromContext(ctx)
	if !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	userURN, err := urn.Parse(userID)
	if err != nil {
		api.Logger.Warn("RegisterDevice: user handle is not a URN", "user", userID, "err", err)
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Token == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing token")
		return
	}
	deviceType, err := sns.ParseDeviceType(req.DeviceType)
	if err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "unsupported device_type")
		return
	}

	device := sns.Device{Type: deviceType, Token: req.Token, UserData: userURN.String()}
	arn, err := api.Devices.Register(ctx, device)
	if err != nil {
		if errors.Is(err, sns.ErrUnknownDeviceType) {
			response.WriteJSONError(w, http.StatusBadRequest, "unsupported device_type")
			return
		}
		api.Logger.Error("RegisterDevice: registration failed", "user", userURN, "device_type", deviceType, "err", err)
		response.WriteJSONError(w, http.StatusBadGateway, "device registration failed")
		return
	}
	api.Logger.Info("RegisterDevice: device registered", "user", userURN, "device_type", deviceType, "endpoint_arn", arn)

	w.WriteHeader(http.StatusNoContent)
}
