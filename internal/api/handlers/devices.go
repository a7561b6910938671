package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/graemedakers/decision-jar/internal/api/dto"
	"github.com/graemedakers/decision-jar/internal/api/middleware"
	"github.com/graemedakers/decision-jar/internal/notify"
)

type DeviceHandler struct {
	devices *notify.DeviceService
}

func NewDeviceHandler(devices *notify.DeviceService) *DeviceHandler {
	return &DeviceHandler{devices: devices}
}

// Register handles POST /api/v1/devices
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req dto.RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	device, err := h.devices.Register(r.Context(), userID, req.Token, req.Platform)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to register device"})
		return
	}

	writeJSON(w, http.StatusCreated, device)
}

// Unregister handles DELETE /api/v1/devices
func (h *DeviceHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req dto.RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if req.Token == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Token is required"})
		return
	}

	if err := h.devices.Unregister(r.Context(), userID, req.Token); err != nil {
		if errors.Is(err, notify.ErrDeviceNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Device not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to unregister device"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Device unregistered"})
}
