package sources

import (
	"encoding/json"
	"net/http"
	"time"
)

// MapLayer describes one overlay the map client can render, pointing at the
// data endpoint that backs it.
type MapLayer struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Kind           string `json:"type"`
	Category       string `json:"category"`
	Endpoint       string `json:"endpoint"`
	MinZoom        int    `json:"min_zoom"`
	MaxZoom        int    `json:"max_zoom"`
	DefaultVisible bool   `json:"default_visible"`
	RefreshSeconds int    `json:"refresh_interval_seconds"`
	Attribution    string `json:"attribution"`
}

// mapLayers is the static layer catalog. Refresh intervals track the cache
// TTL defaults of the endpoints they point at.
func mapLayers() []MapLayer {
	return []MapLayer{
		{
			ID:             "weather-radar",
			Name:           "Weather Radar",
			Description:    "Precipitation radar composite",
			Kind:           "raster",
			Category:       "weather",
			Endpoint:       "/radar",
			MinZoom:        8,
			MaxZoom:        14,
			DefaultVisible: true,
			RefreshSeconds: 180,
			Attribution:    "Rio Operations Center",
		},
		{
			ID:             "rain-gauges",
			Name:           "Rain Gauges",
			Description:    "Accumulated rainfall per station",
			Kind:           "points",
			Category:       "weather",
			Endpoint:       "/rain-gauges",
			MinZoom:        10,
			MaxZoom:        18,
			DefaultVisible: false,
			RefreshSeconds: 120,
			Attribution:    "Alerta Rio",
		},
		{
			ID:             "incidents",
			Name:           "Open Incidents",
			Description:    "Active city incidents and interdictions",
			Kind:           "points",
			Category:       "operations",
			Endpoint:       "/incidents",
			MinZoom:        9,
			MaxZoom:        18,
			DefaultVisible: true,
			RefreshSeconds: 45,
			Attribution:    "Rio Operations Center",
		},
		{
			ID:             "weather-current",
			Name:           "Current Weather",
			Description:    "Current conditions per region",
			Kind:           "points",
			Category:       "weather",
			Endpoint:       "/weather/now",
			MinZoom:        8,
			MaxZoom:        16,
			DefaultVisible: false,
			RefreshSeconds: 60,
			Attribution:    "Alerta Rio",
		},
		{
			ID:             "sirens",
			Name:           "Warning Sirens",
			Description:    "Community siren network with live status",
			Kind:           "points",
			Category:       "safety",
			Endpoint:       "/sirens",
			MinZoom:        10,
			MaxZoom:        18,
			DefaultVisible: false,
			RefreshSeconds: 120,
			Attribution:    "Rio Civil Defense",
		},
	}
}

// Layers serves the overlay catalog. It is static, so there is no cache
// metadata in the envelope.
func (h *Handler) Layers(w http.ResponseWriter, r *http.Request) {
	data, _ := json.Marshal(map[string]interface{}{"layers": mapLayers()})
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Envelope{
		Success:   true,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}
