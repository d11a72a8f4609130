package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPClient_DeductAndRefund(t *testing.T) {
	type call struct {
		path   string
		secret string
		body   creditRequest
	}
	var calls []call

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body creditRequest
		json.NewDecoder(r.Body).Decode(&body)
		calls = append(calls, call{
			path:   r.URL.Path,
			secret: r.Header.Get("X-Ledger-Secret"),
			body:   body,
		})
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "hush")
	ctx := context.Background()

	if err := c.Deduct(ctx, "user@example.com", "ord-1", 3); err != nil {
		t.Fatalf("deduct: %v", err)
	}
	if err := c.Refund(ctx, "user@example.com", "ord-1", 2); err != nil {
		t.Fatalf("refund: %v", err)
	}

	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(calls))
	}
	if calls[0].path != "/v1/credits/deduct" || calls[0].body.Credits != 3 {
		t.Errorf("deduct call = %+v", calls[0])
	}
	if calls[1].path != "/v1/credits/refund" || calls[1].body.Credits != 2 {
		t.Errorf("refund call = %+v", calls[1])
	}
	for _, c := range calls {
		if c.secret != "hush" {
			t.Errorf("secret header = %q, want hush", c.secret)
		}
	}
}

func TestHTTPClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "insufficient balance", http.StatusConflict)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "hush")

	if err := c.Deduct(context.Background(), "user@example.com", "ord-1", 3); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestInMemoryLedger(t *testing.T) {
	l := NewInMemoryLedger()
	ctx := context.Background()

	l.Deduct(ctx, "user@example.com", "ord-1", 3)
	l.Refund(ctx, "user@example.com", "ord-1", 1)
	l.Refund(ctx, "user@example.com", "ord-2", 2)

	if got := l.Deducted("user@example.com"); got != 3 {
		t.Errorf("deducted = %d, want 3", got)
	}
	if got := l.Refunded("user@example.com"); got != 3 {
		t.Errorf("refunded = %d, want 3", got)
	}
	if got := l.Refunded("other@example.com"); got != 0 {
		t.Errorf("refunded for other = %d, want 0", got)
	}
}
