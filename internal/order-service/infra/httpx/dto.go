package httpx

import "github.com/jcmexdev/vending-sagas/internal/order-service/core/domain/entity"

type CreateOrderRequest struct {
	MenuID        int64  `json:"menu_id"`
	Quantity      int    `json:"quantity"`
	PaymentAmount int    `json:"payment_amount"`
	// IdempotencyKey may also be supplied as the X-Idempotency-Key header;
	// the header wins when both are present.
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type OrderResponse struct {
	OrderID    int64  `json:"order_id"`
	MenuName   string `json:"menu_name"`
	Quantity   int    `json:"quantity"`
	TotalPrice int    `json:"total_price"`
	Change     int    `json:"change"`
}

type MenuResponse struct {
	Menus []entity.MenuItem `json:"menus"`
}

type AttemptResponse struct {
	AttemptKey  string   `json:"attempt_key"`
	Phase       string   `json:"phase"`
	CurrentStep string   `json:"current_step,omitempty"`
	Errors      []string `json:"errors,omitempty"`
	UpdatedAt   string   `json:"updated_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
