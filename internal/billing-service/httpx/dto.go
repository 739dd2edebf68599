package httpx

type PaymentRequest struct {
	MenuID     int `json:"menu_id"`
	Amount     int `json:"amount"`
	Quantity   int `json:"quantity"`
	TotalPrice int `json:"total_price"`
}

type PaymentResponse struct {
	Change  int    `json:"change"`
	Message string `json:"message"`
}

type RefundRequest struct {
	TotalPrice int `json:"total_price"`
}

type InventoryCostRequest struct {
	Item string `json:"item"`
}

type SalesResponse struct {
	CashRegister  int `json:"cash_register"`
	TotalSales    int `json:"total_sales"`
	InventoryCost int `json:"inventory_cost"`
	NetProfit     int `json:"net_profit"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
