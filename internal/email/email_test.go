package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRESTSender_SendReport(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewRESTSender(Config{
		BaseURL:    srv.URL,
		ServiceID:  "svc-1",
		TemplateID: "tpl-1",
		UserID:     "usr-1",
	})

	err := s.SendReport(context.Background(), ReportEmail{
		To:              "user@example.com",
		OrderID:         "ord-1",
		Report:          "# Report",
		CreditsUsed:     3,
		CreditsRefunded: 1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/api/v1.0/email/send" {
		t.Errorf("path = %q, want /api/v1.0/email/send", gotPath)
	}
	if gotBody["service_id"] != "svc-1" {
		t.Errorf("service_id = %v, want svc-1", gotBody["service_id"])
	}

	params, ok := gotBody["template_params"].(map[string]interface{})
	if !ok {
		t.Fatalf("template_params missing from body: %v", gotBody)
	}
	if params["email"] != "user@example.com" {
		t.Errorf("email = %v, want user@example.com", params["email"])
	}
	if params["credits_refunded"] != float64(1) {
		t.Errorf("credits_refunded = %v, want 1", params["credits_refunded"])
	}
}

func TestRESTSender_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewRESTSender(Config{BaseURL: srv.URL})

	if err := s.SendReport(context.Background(), ReportEmail{To: "user@example.com"}); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestInMemorySender(t *testing.T) {
	s := NewInMemorySender()

	if err := s.SendReport(context.Background(), ReportEmail{To: "a@example.com", OrderID: "ord-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.Fail(true)
	if err := s.SendReport(context.Background(), ReportEmail{To: "b@example.com"}); err == nil {
		t.Fatal("expected error when failing")
	}

	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].OrderID != "ord-1" {
		t.Errorf("messages = %+v, want only the first delivery", msgs)
	}
}
