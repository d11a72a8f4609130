// Package ledger talks to the external credit-balance service. Deducts
// and refunds are keyed by email and order ID and authenticated with a
// shared secret header.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/promptarena/arena/internal/httputil"
)

type Ledger interface {
	Deduct(ctx context.Context, email, orderID string, credits int) error
	Refund(ctx context.Context, email, orderID string, credits int) error
}

type HTTPClient struct {
	baseURL string
	secret  string
	client  *http.Client
}

func NewHTTPClient(baseURL, secret string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		secret:  secret,
		client:  httputil.DefaultClient(),
	}
}

type creditRequest struct {
	Email   string `json:"email"`
	OrderID string `json:"orderId"`
	Credits int    `json:"credits"`
}

func (c *HTTPClient) Deduct(ctx context.Context, email, orderID string, credits int) error {
	return c.post(ctx, "/v1/credits/deduct", creditRequest{Email: email, OrderID: orderID, Credits: credits})
}

func (c *HTTPClient) Refund(ctx context.Context, email, orderID string, credits int) error {
	return c.post(ctx, "/v1/credits/refund", creditRequest{Email: email, OrderID: orderID, Credits: credits})
}

func (c *HTTPClient) post(ctx context.Context, path string, req creditRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Ledger-Secret", c.secret)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ledger error: status=%d body=%s", resp.StatusCode, string(bodyBytes))
	}

	return nil
}

// InMemoryLedger tracks balances per email for tests.
type InMemoryLedger struct {
	mu       sync.Mutex
	deducted map[string]int
	refunded map[string]int
}

func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{
		deducted: make(map[string]int),
		refunded: make(map[string]int),
	}
}

func (l *InMemoryLedger) Deduct(ctx context.Context, email, orderID string, credits int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deducted[email] += credits
	return nil
}

func (l *InMemoryLedger) Refund(ctx context.Context, email, orderID string, credits int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refunded[email] += credits
	return nil
}

func (l *InMemoryLedger) Refunded(email string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refunded[email]
}

func (l *InMemoryLedger) Deducted(email string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.deducted[email]
}
