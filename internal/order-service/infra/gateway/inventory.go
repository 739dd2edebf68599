// Package gateway implements the coordinator's downstream ports over the
// inventory and billing HTTP surfaces. Every call gets its own deadline;
// a deadline that fires is an unknown outcome, surfaced as a transport
// error so the orchestrator retries idempotently.
package gateway

import (
	"context"
	"time"

	"github.com/jcmexdev/vending-sagas/internal/coordinator"
	"github.com/jcmexdev/vending-sagas/internal/pkg/httpclient"
)

type inventoryClient struct {
	client  *httpclient.Client
	baseURL string
	timeout time.Duration
}

func NewInventoryClient(client *httpclient.Client, baseURL string, timeout time.Duration) coordinator.InventoryGateway {
	return &inventoryClient{client: client, baseURL: baseURL, timeout: timeout}
}

type useInventoryRequest struct {
	CoffeeBeans int `json:"coffee_beans"`
	Water       int `json:"water"`
	Milk        int `json:"milk"`
}

func (c *inventoryClient) Reserve(ctx context.Context, key string, usage map[string]int) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.client.PostJSON(ctx, c.baseURL+"/inventory/use", key, usageRequest(usage), nil)
}

func (c *inventoryClient) Release(ctx context.Context, key string, usage map[string]int) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.client.PostJSON(ctx, c.baseURL+"/inventory/release", key, usageRequest(usage), nil)
}

func usageRequest(usage map[string]int) useInventoryRequest {
	return useInventoryRequest{
		CoffeeBeans: usage["coffee_beans"],
		Water:       usage["water"],
		Milk:        usage["milk"],
	}
}
