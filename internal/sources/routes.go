package sources

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes attaches the data endpoints directly on the parent router;
// the feeds live at the API root rather than under a shared prefix.
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/weather/now", h.Serve("weather-now"))
	r.Get("/weather/forecast", h.Serve("weather-forecast"))
	r.Get("/radar", h.Serve("radar"))
	r.Get("/rain-gauges", h.Serve("rain-gauges"))
	r.Get("/incidents", h.Serve("incidents"))
	r.Get("/alertario", h.Serve("alertario"))
	r.Get("/alertario/extended", h.Serve("alertario-extended"))
	r.Get("/sirens", h.Serve("sirens"))
	r.Get("/map/layers", h.Layers)
}
