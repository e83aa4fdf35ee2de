package alerts

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/OpsCenterRio/COR-Backend/internal/apperr"
	"github.com/OpsCenterRio/COR-Backend/internal/devices"
	"github.com/OpsCenterRio/COR-Backend/internal/utils"
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type CircleRequest struct {
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
	RadiusM   float64 `json:"radius_m" validate:"required,gt=0"`
}

// AreaRequest carries either an inline GeoJSON polygon or a circle.
type AreaRequest struct {
	GeoJSON json.RawMessage `json:"geojson,omitempty"`
	Circle  *CircleRequest  `json:"circle,omitempty"`
}

type CreateRequest struct {
	Title         string       `json:"title" validate:"required,max=200"`
	Body          string       `json:"body" validate:"required,max=4000"`
	Severity      string       `json:"severity" validate:"omitempty,oneof=info alert emergency"`
	Broadcast     bool         `json:"broadcast"`
	Neighborhoods []string     `json:"neighborhoods" validate:"dive,min=1,max=100"`
	Area          *AreaRequest `json:"area,omitempty"`
	ExpiresAt     *time.Time   `json:"expires_at,omitempty"`
	CreatedBy     string       `json:"created_by,omitempty" validate:"omitempty,max=100"`
}

func (req *CreateRequest) areas() []AreaInput {
	if req.Area == nil {
		return nil
	}
	if req.Area.Circle != nil {
		return []AreaInput{{
			Kind:    "circle",
			Center:  &LatLon{Latitude: req.Area.Circle.Latitude, Longitude: req.Area.Circle.Longitude},
			RadiusM: req.Area.Circle.RadiusM,
		}}
	}
	return []AreaInput{{Kind: "polygon", GeoJSON: req.Area.GeoJSON}}
}

type Handler struct {
	service *Service
	devices *devices.Service
}

func NewHandler(service *Service, deviceService *devices.Service) *Handler {
	return &Handler{service: service, devices: deviceService}
}

// CreateHandler creates a draft alert.
func (h *Handler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	alert, err := h.service.Create(r.Context(), CreateInput{
		Title:         req.Title,
		Body:          req.Body,
		Severity:      req.Severity,
		Broadcast:     req.Broadcast,
		Neighborhoods: req.Neighborhoods,
		Areas:         req.areas(),
		ExpiresAt:     req.ExpiresAt,
		CreatedBy:     req.CreatedBy,
	})
	if err != nil {
		log.Printf("[alerts] create failed: %v", err)
		http.Error(w, "Failed to create alert: "+err.Error(), apperr.Status(err))
		return
	}

	writeJSON(w, http.StatusCreated, alert)
}

// ListHandler lists alerts for operators, optionally filtered by status.
func (h *Handler) ListHandler(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	list, err := h.service.List(r.Context(), status, limit, offset)
	if err != nil {
		http.Error(w, "Failed to list alerts", apperr.Status(err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetHandler returns one alert with its areas.
func (h *Handler) GetHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	alert, err := h.service.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "Alert not found", apperr.Status(err))
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// SendHandler transitions a draft to sent and enqueues delivery.
func (h *Handler) SendHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := h.service.Send(r.Context(), id)
	if err != nil {
		log.Printf("[alerts] send failed for %s: %v", id, err)
		http.Error(w, "Failed to send alert: "+err.Error(), apperr.Status(err))
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

// CancelHandler cancels a draft.
func (h *Handler) CancelHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Cancel(r.Context(), id); err != nil {
		http.Error(w, "Failed to cancel alert: "+err.Error(), apperr.Status(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": StatusCanceled})
}

// StatsHandler returns the delivery outcome summary for an alert.
func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	stats, err := h.service.Stats(r.Context(), id)
	if err != nil {
		http.Error(w, "Failed to load delivery stats", apperr.Status(err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// FeedHandler is the public list of sent alerts, filterable by severity and
// neighborhood.
func (h *Handler) FeedHandler(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.service.ListSent(r.Context(), ListFilter{
		Severity:     r.URL.Query().Get("severity"),
		Neighborhood: r.URL.Query().Get("neighborhood"),
		Limit:        limit,
	})
	if err != nil {
		http.Error(w, "Failed to list alerts", apperr.Status(err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// InboxHandler returns the sent alerts matching the calling device. The
// caller may pass current coordinates to refine geo matching.
func (h *Handler) InboxHandler(w http.ResponseWriter, r *http.Request) {
	device, ok := h.callingDevice(w, r)
	if !ok {
		return
	}

	q := InboxQuery{
		Severity:     r.URL.Query().Get("severity"),
		Neighborhood: r.URL.Query().Get("neighborhood"),
		UnreadOnly:   r.URL.Query().Get("unread_only") == "true",
	}
	if lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64); err == nil {
		if lon, err := strconv.ParseFloat(r.URL.Query().Get("lon"), 64); err == nil {
			q.Lat, q.Lon = &lat, &lon
		}
	}

	inbox, err := h.service.DeviceInbox(r.Context(), device, q)
	if err != nil {
		http.Error(w, "Failed to load inbox", apperr.Status(err))
		return
	}
	writeJSON(w, http.StatusOK, inbox)
}

// ReadHandler marks one alert as read for the calling device.
func (h *Handler) ReadHandler(w http.ResponseWriter, r *http.Request) {
	device, ok := h.callingDevice(w, r)
	if !ok {
		return
	}

	alertID := chi.URLParam(r, "id")
	alert, err := h.service.Get(r.Context(), alertID)
	if err != nil {
		http.Error(w, "Alert not found", apperr.Status(err))
		return
	}

	readAt, err := h.service.MarkRead(r.Context(), alert, device)
	if err != nil {
		http.Error(w, "Failed to mark alert read", apperr.Status(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alert_id": alertID, "read_at": readAt})
}

func (h *Handler) callingDevice(w http.ResponseWriter, r *http.Request) (*devices.Device, bool) {
	token, ok := utils.GetPushTokenFromContext(r.Context())
	if !ok {
		http.Error(w, "Missing push token", http.StatusUnauthorized)
		return nil, false
	}
	device, err := h.devices.ByToken(r.Context(), token)
	if err != nil {
		http.Error(w, "Device not registered", apperr.Status(err))
		return nil, false
	}
	return device, true
}
