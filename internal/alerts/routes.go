package alerts

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/OpsCenterRio/COR-Backend/internal/middleware"
)

func SetupRoutes(h *Handler) http.Handler {
	r := chi.NewRouter()

	// Operator surface.
	r.Post("/", h.CreateHandler)
	r.Get("/", h.ListHandler)
	r.Get("/{id}", h.GetHandler)
	r.Post("/{id}/send", h.SendHandler)
	r.Post("/{id}/cancel", h.CancelHandler)
	r.Get("/{id}/stats", h.StatsHandler)

	// Public feed of sent alerts.
	r.Get("/feed", h.FeedHandler)

	// Device surface, authenticated by push token.
	r.Group(func(r chi.Router) {
		r.Use(middleware.PushTokenMiddleware)
		r.Get("/inbox", h.InboxHandler)
		r.Post("/inbox/{id}/read", h.ReadHandler)
	})

	return r
}
