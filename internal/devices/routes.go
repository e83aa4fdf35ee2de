package devices

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/OpsCenterRio/COR-Backend/internal/middleware"
)

func SetupRoutes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.PushTokenMiddleware)

	r.Post("/register", h.RegisterHandler)
	r.Get("/me", h.MeHandler)
	r.Post("/location", h.LocationHandler)
	r.Get("/subscriptions", h.GetSubscriptionsHandler)
	r.Post("/subscriptions", h.SubscriptionsHandler)

	return r
}
