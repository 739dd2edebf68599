package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jcmexdev/vending-sagas/internal/pkg/middlewares"
)

// NewRouter wires the order surface. metricsHandler may be nil when the
// service runs without a registry (tests).
func NewRouter(handler *Handler, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middlewares.AttachRequestMetadata)
	r.Use(middleware.Recoverer)

	r.Get("/health", handler.Health)
	r.Get("/menu", handler.GetMenu)
	r.Post("/orders", handler.CreateOrder)
	r.Get("/orders/attempts/{key}", handler.GetAttempt)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}
	return r
}
