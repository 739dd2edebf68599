package gateway

import (
	"context"
	"time"

	"github.com/jcmexdev/vending-sagas/internal/coordinator"
	"github.com/jcmexdev/vending-sagas/internal/pkg/httpclient"
)

type billingClient struct {
	client  *httpclient.Client
	baseURL string
	timeout time.Duration
}

func NewBillingClient(client *httpclient.Client, baseURL string, timeout time.Duration) coordinator.BillingGateway {
	return &billingClient{client: client, baseURL: baseURL, timeout: timeout}
}

type paymentRequest struct {
	Amount     int `json:"amount"`
	TotalPrice int `json:"total_price"`
}

type paymentResponse struct {
	Change int `json:"change"`
}

type refundRequest struct {
	TotalPrice int `json:"total_price"`
}

func (c *billingClient) Charge(ctx context.Context, key string, amountTendered, totalPrice int) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var resp paymentResponse
	err := c.client.PostJSON(ctx, c.baseURL+"/payment", key,
		paymentRequest{Amount: amountTendered, TotalPrice: totalPrice}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Change, nil
}

func (c *billingClient) Refund(ctx context.Context, key string, totalPrice int) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.client.PostJSON(ctx, c.baseURL+"/refund", key, refundRequest{TotalPrice: totalPrice}, nil)
}
