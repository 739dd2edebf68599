package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jcmexdev/vending-sagas/internal/pkg/middlewares"
)

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middlewares.AttachRequestMetadata)
	r.Use(middleware.Recoverer)

	r.Get("/health", handler.Health)
	r.Get("/sales", handler.GetSales)
	r.Post("/payment", handler.ProcessPayment)
	r.Post("/refund", handler.Refund)
	r.Post("/inventory-cost", handler.AddInventoryCost)
	return r
}
