package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	billingservice "github.com/jcmexdev/vending-sagas/internal/billing-service"
	"github.com/jcmexdev/vending-sagas/internal/billing-service/domain"
	"github.com/jcmexdev/vending-sagas/internal/pkg/middlewares"
)

// Handler handles the billing HTTP surface.
type Handler struct {
	service billingservice.IService
}

func NewHandler(service billingservice.IService) *Handler {
	return &Handler{service: service}
}

// GetSales returns the ledger snapshot plus derived net profit.
func (h *Handler) GetSales(w http.ResponseWriter, r *http.Request) {
	ledger, err := h.service.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	writeJSON(w, http.StatusOK, SalesResponse{
		CashRegister:  ledger.CashRegister,
		TotalSales:    ledger.TotalSales,
		InventoryCost: ledger.InventoryCost,
		NetProfit:     ledger.NetProfit(),
	})
}

// ProcessPayment charges an order and returns the computed change.
func (h *Handler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	key := middlewares.IdempotencyKeyFromContext(r.Context())
	change, err := h.service.Charge(r.Context(), key, req.Amount, req.TotalPrice)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PaymentResponse{Change: change, Message: "payment accepted"})
}

// Refund reverses a prior charge.
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	var req RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	key := middlewares.IdempotencyKeyFromContext(r.Context())
	if err := h.service.Refund(r.Context(), key, req.TotalPrice); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "payment refunded"})
}

// AddInventoryCost records the cost of a replenishment.
func (h *Handler) AddInventoryCost(w http.ResponseWriter, r *http.Request) {
	var req InventoryCostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	if err := h.service.PostCost(r.Context(), req.Item); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "inventory cost recorded"})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInsufficientPayment):
		writeError(w, http.StatusBadRequest, "insufficient_payment", err.Error())
	case errors.Is(err, domain.ErrInsufficientChange):
		writeError(w, http.StatusBadRequest, "insufficient_change", err.Error())
	case errors.Is(err, domain.ErrInvalidItem):
		writeError(w, http.StatusBadRequest, "invalid_resource", err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds):
		writeError(w, http.StatusBadRequest, "insufficient_funds", err.Error())
	case errors.Is(err, domain.ErrAttemptCompensated):
		writeError(w, http.StatusBadRequest, "attempt_compensated", err.Error())
	default:
		slog.ErrorContext(r.Context(), "billing operation failed", "error", err)
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
