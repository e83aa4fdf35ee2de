package sources

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/OpsCenterRio/COR-Backend/internal/apperr"
	"github.com/OpsCenterRio/COR-Backend/internal/cache"
	"github.com/OpsCenterRio/COR-Backend/internal/observability"
)

// Envelope is the response shape shared by every data endpoint.
type Envelope struct {
	Success   bool            `json:"success"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
	Cache     *cache.Info     `json:"cache,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type Handler struct {
	freshness *cache.Freshness
	sources   map[string]Source
	metrics   *observability.Metrics
}

func NewHandler(freshness *cache.Freshness, srcs map[string]Source, metrics *observability.Metrics) *Handler {
	return &Handler{freshness: freshness, sources: srcs, metrics: metrics}
}

func addServerTiming(w http.ResponseWriter, kv ...[2]string) {
	if len(kv) == 0 {
		return
	}
	val := ""
	for i, p := range kv {
		if i > 0 {
			val += ", "
		}
		val += fmt.Sprintf("%s;dur=%s", p[0], p[1])
	}
	w.Header().Add("Server-Timing", val)
}

// Serve returns the handler for one named source.
func (h *Handler) Serve(name string) http.HandlerFunc {
	src, ok := h.sources[name]
	if !ok {
		panic("unknown source " + name)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		payload, info, err := h.freshness.FetchOrFallback(r.Context(), src.Namespace, src.Key, src.TTL, src.Provider.Fetch)
		elapsed := time.Since(start)
		addServerTiming(w, [2]string{"fetch", fmt.Sprintf("%.1f", float64(elapsed.Microseconds())/1000)})

		w.Header().Set("Content-Type", "application/json")

		if err != nil {
			if h.metrics != nil {
				h.metrics.CacheFetches.WithLabelValues(src.Namespace, "unavailable").Inc()
			}
			log.Printf("[sources] %s unavailable: %v", name, err)
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(apperr.Status(err))
			_ = json.NewEncoder(w).Encode(Envelope{
				Success:   false,
				Timestamp: time.Now().UTC(),
				Error:     "source unavailable and no cached data",
			})
			return
		}

		status := "fresh"
		if info.Stale {
			status = "stale"
		}
		if h.metrics != nil {
			h.metrics.CacheFetches.WithLabelValues(src.Namespace, status).Inc()
		}
		w.Header().Set("X-Data-Status", status)

		_ = json.NewEncoder(w).Encode(Envelope{
			Success:   true,
			Timestamp: time.Now().UTC(),
			Data:      payload,
			Cache:     info,
		})
	}
}
