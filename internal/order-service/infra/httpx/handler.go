package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jcmexdev/vending-sagas/internal/order-service/app"
	"github.com/jcmexdev/vending-sagas/internal/order-service/core/domain/entity"
	"github.com/jcmexdev/vending-sagas/internal/pkg/httpclient"
	"github.com/jcmexdev/vending-sagas/internal/pkg/middlewares"
)

// Handler handles the order HTTP surface and triggers the saga.
type Handler struct {
	service *app.Service
}

func NewHandler(service *app.Service) *Handler {
	return &Handler{service: service}
}

// CreateOrder runs the full order-placement saga. The client blocks until
// the attempt reaches COMMITTED or FAILED.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	key := middlewares.IdempotencyKeyFromContext(r.Context())
	if key == "" {
		key = req.IdempotencyKey
	}

	slog.InfoContext(r.Context(), "placing order", "menu_id", req.MenuID, "quantity", req.Quantity)

	receipt, err := h.service.PlaceOrder(r.Context(), key, req.MenuID, req.Quantity, req.PaymentAmount)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, OrderResponse{
		OrderID:    receipt.OrderID,
		MenuName:   receipt.MenuName,
		Quantity:   receipt.Quantity,
		TotalPrice: receipt.TotalPrice,
		Change:     receipt.Change,
	})
}

// GetMenu lists the menu.
func (h *Handler) GetMenu(w http.ResponseWriter, r *http.Request) {
	menus, err := h.service.GetMenu(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	writeJSON(w, http.StatusOK, MenuResponse{Menus: menus})
}

// GetAttempt returns the latest saga state for an idempotency key.
func (h *Handler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "attempt_key_required", "")
		return
	}

	entry, err := h.service.AttemptStatus(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusNotFound, "attempt_not_found", err.Error())
		return
	}

	var errs []string
	_ = json.Unmarshal([]byte(entry.ErrorMessages), &errs)
	writeJSON(w, http.StatusOK, AttemptResponse{
		AttemptKey:  entry.AttemptKey,
		Phase:       string(entry.Phase),
		CurrentStep: entry.CurrentStep,
		Errors:      errs,
		UpdatedAt:   entry.UpdatedAt.Format(time.RFC3339Nano),
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var remote *httpclient.RemoteError
	switch {
	case errors.Is(err, entity.ErrMenuNotFound):
		writeError(w, http.StatusNotFound, "menu_not_found", err.Error())
	case errors.Is(err, entity.ErrInvalidQuantity), errors.Is(err, entity.ErrInvalidPayment):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.As(err, &remote):
		// Forward the upstream rejection (insufficient stock / payment /
		// change) with its original reason code.
		writeError(w, http.StatusBadRequest, remote.Code, remote.Message)
	default:
		// Ambiguous or compensation-exhausted states are escalated through
		// the alert pipeline, not explained to the customer.
		slog.ErrorContext(r.Context(), "order placement failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}
