package httpx

type UseInventoryRequest struct {
	CoffeeBeans int `json:"coffee_beans"`
	Water       int `json:"water"`
	Milk        int `json:"milk"`
}

type AddInventoryRequest struct {
	Item   string `json:"item"`
	Amount int    `json:"amount"`
}

type InventoryResponse struct {
	CoffeeBeans int `json:"coffee_beans"`
	Water       int `json:"water"`
	Milk        int `json:"milk"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
