package inventoryservice

import (
	"context"
	"time"

	"github.com/jcmexdev/vending-sagas/internal/pkg/httpclient"
)

// billingClient posts replenishment costs over the billing HTTP surface.
type billingClient struct {
	client  *httpclient.Client
	baseURL string
	timeout time.Duration
}

func NewBillingClient(client *httpclient.Client, baseURL string, timeout time.Duration) BillingGateway {
	return &billingClient{client: client, baseURL: baseURL, timeout: timeout}
}

type postCostRequest struct {
	Item string `json:"item"`
}

func (c *billingClient) PostCost(ctx context.Context, item string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.client.PostJSON(ctx, c.baseURL+"/inventory-cost", "", postCostRequest{Item: item}, nil)
}
