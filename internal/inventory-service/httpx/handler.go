package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	inventoryservice "github.com/jcmexdev/vending-sagas/internal/inventory-service"
	"github.com/jcmexdev/vending-sagas/internal/inventory-service/domain"
	"github.com/jcmexdev/vending-sagas/internal/pkg/middlewares"
)

// Handler handles the inventory HTTP surface.
type Handler struct {
	service inventoryservice.IService
}

func NewHandler(service inventoryservice.IService) *Handler {
	return &Handler{service: service}
}

// GetInventory returns the current ledger snapshot.
func (h *Handler) GetInventory(w http.ResponseWriter, r *http.Request) {
	ledger, err := h.service.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	writeJSON(w, http.StatusOK, InventoryResponse{
		CoffeeBeans: ledger.CoffeeBeans,
		Water:       ledger.Water,
		Milk:        ledger.Milk,
	})
}

// UseInventory reserves stock for an order attempt (all-or-nothing).
func (h *Handler) UseInventory(w http.ResponseWriter, r *http.Request) {
	var req UseInventoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	key := middlewares.IdempotencyKeyFromContext(r.Context())
	err := h.service.Reserve(r.Context(), key, usageFromRequest(req))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "stock reserved"})
}

// ReleaseInventory is the compensating credit for a prior reservation.
func (h *Handler) ReleaseInventory(w http.ResponseWriter, r *http.Request) {
	var req UseInventoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	key := middlewares.IdempotencyKeyFromContext(r.Context())
	err := h.service.Release(r.Context(), key, usageFromRequest(req))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "stock released"})
}

// AddInventory replenishes a single resource and triggers the billing
// cost posting.
func (h *Handler) AddInventory(w http.ResponseWriter, r *http.Request) {
	var req AddInventoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	err := h.service.Replenish(r.Context(), req.Item, req.Amount)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "stock replenished"})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var short *domain.InsufficientStockError
	switch {
	case errors.As(err, &short):
		writeError(w, http.StatusBadRequest, "insufficient_stock", short.Error())
	case errors.Is(err, domain.ErrInvalidResource):
		writeError(w, http.StatusBadRequest, "invalid_resource", err.Error())
	case errors.Is(err, domain.ErrAttemptCompensated):
		writeError(w, http.StatusBadRequest, "attempt_compensated", err.Error())
	default:
		slog.ErrorContext(r.Context(), "inventory operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
	}
}

func usageFromRequest(req UseInventoryRequest) map[string]int {
	return map[string]int{
		domain.CoffeeBeans: req.CoffeeBeans,
		domain.Water:       req.Water,
		domain.Milk:        req.Milk,
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
