// Package httpclient is the shared JSON client the order service uses to
// call inventory and billing. It distinguishes two failure classes:
//
//   - RemoteError: the downstream answered with a 4xx and a reason — the
//     outcome is known and final for that request.
//   - anything else (transport error, timeout, 5xx): the outcome is
//     unknown. A timed-out call may have succeeded server-side, so callers
//     must retry idempotently instead of assuming failure.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jcmexdev/vending-sagas/internal/pkg/constants"
	"github.com/jcmexdev/vending-sagas/internal/pkg/middlewares"
)

// RemoteError is a definitive rejection from a downstream service.
type RemoteError struct {
	Status  int    `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Terminal marks the error as a definitive outcome: the downstream service
// saw the request and rejected it, so retrying cannot change the answer.
func (e *RemoteError) Terminal() bool { return true }

// Client wraps a pooled http.Client. Per-call deadlines come from the
// request context, not a client-wide timeout.
type Client struct {
	httpClient *http.Client
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
			},
		},
	}
}

// PostJSON sends body to url and decodes a 2xx response into out (out may
// be nil). The idempotency key and request ID are forwarded as headers so
// downstream services can deduplicate and correlate.
func (c *Client) PostJSON(ctx context.Context, url, idempotencyKey string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("httpclient: encode request for %s: %w", url, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("httpclient: build request for %s: %w", url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set(constants.HeaderXIdempotencyKey, idempotencyKey)
	}
	if reqID := middlewares.RequestIDFromContext(ctx); reqID != "" {
		req.Header.Set(constants.HeaderXRequestId, reqID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: call %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		remote := &RemoteError{Status: resp.StatusCode, Code: "rejected"}
		if err := json.NewDecoder(resp.Body).Decode(remote); err != nil {
			remote.Message = fmt.Sprintf("status %s", resp.Status)
		}
		return remote
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		// 5xx: the server may or may not have applied the mutation.
		return fmt.Errorf("httpclient: %s returned status %s", url, resp.Status)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("httpclient: decode response from %s: %w", url, err)
	}
	return nil
}

// GetJSON fetches url and decodes a 200 response into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("httpclient: build request for %s: %w", url, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: call %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("httpclient: %s returned status %s", url, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("httpclient: decode response from %s: %w", url, err)
	}
	return nil
}
