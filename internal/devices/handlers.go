package devices

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/OpsCenterRio/COR-Backend/internal/apperr"
	"github.com/OpsCenterRio/COR-Backend/internal/utils"
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type RegisterRequest struct {
	Platform      string   `json:"platform" validate:"required,oneof=android ios"`
	Neighborhoods []string `json:"neighborhoods" validate:"dive,min=1,max=100"`
}

type UpdateLocationRequest struct {
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
}

type UpdateSubscriptionsRequest struct {
	Neighborhoods []string `json:"neighborhoods" validate:"required,dive,min=1,max=100"`
}

type DeviceOut struct {
	ID             string     `json:"id"`
	Platform       string     `json:"platform"`
	PushToken      string     `json:"push_token"`
	Neighborhoods  []string   `json:"neighborhoods"`
	HasLocation    bool       `json:"has_location"`
	LastLocationAt *time.Time `json:"last_location_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toDeviceOut(d *Device) DeviceOut {
	return DeviceOut{
		ID:             d.ID,
		Platform:       d.Platform,
		PushToken:      MaskToken(d.PushToken),
		Neighborhoods:  d.Neighborhoods,
		HasLocation:    d.LastLocation != nil,
		LastLocationAt: d.LastLocationAt,
		CreatedAt:      d.CreatedAt,
	}
}

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterHandler upserts the calling device. The push token comes from the
// X-Push-Token header, so re-posting is idempotent.
func (h *Handler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	token, ok := utils.GetPushTokenFromContext(r.Context())
	if !ok {
		http.Error(w, "Missing push token", http.StatusUnauthorized)
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	device, err := h.service.Register(r.Context(), token, req.Platform, req.Neighborhoods)
	if err != nil {
		log.Printf("[devices] register failed: %v", err)
		http.Error(w, "Failed to register device", apperr.Status(err))
		return
	}

	writeJSON(w, http.StatusOK, toDeviceOut(device))
}

// MeHandler returns the calling device with its token masked.
func (h *Handler) MeHandler(w http.ResponseWriter, r *http.Request) {
	token, ok := utils.GetPushTokenFromContext(r.Context())
	if !ok {
		http.Error(w, "Missing push token", http.StatusUnauthorized)
		return
	}

	device, err := h.service.ByToken(r.Context(), token)
	if err != nil {
		http.Error(w, "Device not registered", apperr.Status(err))
		return
	}

	writeJSON(w, http.StatusOK, toDeviceOut(device))
}

// LocationHandler stores the device's current position.
func (h *Handler) LocationHandler(w http.ResponseWriter, r *http.Request) {
	token, ok := utils.GetPushTokenFromContext(r.Context())
	if !ok {
		http.Error(w, "Missing push token", http.StatusUnauthorized)
		return
	}

	var req UpdateLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	device, err := h.service.ByToken(r.Context(), token)
	if err != nil {
		http.Error(w, "Device not registered", apperr.Status(err))
		return
	}

	if err := h.service.UpdateLocation(r.Context(), device.ID, req.Latitude, req.Longitude); err != nil {
		log.Printf("[devices] location update failed: %v", err)
		http.Error(w, "Failed to update location", apperr.Status(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetSubscriptionsHandler returns the device's neighborhood list.
func (h *Handler) GetSubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	token, ok := utils.GetPushTokenFromContext(r.Context())
	if !ok {
		http.Error(w, "Missing push token", http.StatusUnauthorized)
		return
	}

	device, err := h.service.ByToken(r.Context(), token)
	if err != nil {
		http.Error(w, "Device not registered", apperr.Status(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"neighborhoods": device.Neighborhoods})
}

// NeighborhoodsHandler returns the reference neighborhood list. Public; the
// app shows it before the device registers.
func (h *Handler) NeighborhoodsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Neighborhoods(r.Context())
	if err != nil {
		log.Printf("[devices] neighborhood list failed: %v", err)
		http.Error(w, "Failed to list neighborhoods", apperr.Status(err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// SubscriptionsHandler replaces the device's neighborhood list.
func (h *Handler) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	token, ok := utils.GetPushTokenFromContext(r.Context())
	if !ok {
		http.Error(w, "Missing push token", http.StatusUnauthorized)
		return
	}

	var req UpdateSubscriptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	device, err := h.service.ByToken(r.Context(), token)
	if err != nil {
		http.Error(w, "Device not registered", apperr.Status(err))
		return
	}

	updated, err := h.service.UpdateSubscriptions(r.Context(), device.ID, req.Neighborhoods)
	if err != nil {
		log.Printf("[devices] subscription update failed: %v", err)
		http.Error(w, "Failed to update subscriptions", apperr.Status(err))
		return
	}

	writeJSON(w, http.StatusOK, toDeviceOut(updated))
}
