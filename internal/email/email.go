// Package email delivers the finished comparison report through an
// EmailJS-style REST collaborator. Delivery failure never fails the run;
// it only flips the emailSent flag.
package email

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

// ReportEmail carries everything the template needs for one report.
type ReportEmail struct {
	To              string
	OrderID         string
	Report          string
	CreditsUsed     int
	CreditsRefunded int
}

type Sender interface {
	SendReport(ctx context.Context, msg ReportEmail) error
}

type Config struct {
	BaseURL     string
	ServiceID   string
	TemplateID  string
	UserID      string
	AccessToken string
}

const defaultBaseURL = "https://api.emailjs.com"

type RESTSender struct {
	cfg    Config
	client *http.Client
}

func NewRESTSender(cfg Config) *RESTSender {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &RESTSender{
		cfg:    cfg,
		client: httputil.DefaultClient(),
	}
}

type sendRequest struct {
	ServiceID      string         `json:"service_id"`
	TemplateID     string         `json:"template_id"`
	UserID         string         `json:"user_id"`
	AccessToken    string         `json:"accessToken,omitempty"`
	TemplateParams templateParams `json:"template_params"`
}

type templateParams struct {
	Email           string `json:"email"`
	OrderID         string `json:"order_id"`
	Report          string `json:"report"`
	CreditsUsed     int    `json:"credits_used"`
	CreditsRefunded int    `json:"credits_refunded"`
}

func (s *RESTSender) SendReport(ctx context.Context, msg ReportEmail) error {
	body, err := json.Marshal(sendRequest{
		ServiceID:   s.cfg.ServiceID,
		TemplateID:  s.cfg.TemplateID,
		UserID:      s.cfg.UserID,
		AccessToken: s.cfg.AccessToken,
		TemplateParams: templateParams{
			Email:           msg.To,
			OrderID:         msg.OrderID,
			Report:          msg.Report,
			CreditsUsed:     msg.CreditsUsed,
			CreditsRefunded: msg.CreditsRefunded,
		},
	})
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/api/v1.0/email/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("email error: status=%d body=%s", resp.StatusCode, string(bodyBytes))
	}

	return nil
}

// InMemorySender records messages for tests.
type InMemorySender struct {
	mu       sync.Mutex
	messages []ReportEmail
	fail     bool
}

func NewInMemorySender() *InMemorySender {
	return &InMemorySender{}
}

func (s *InMemorySender) SendReport(ctx context.Context, msg ReportEmail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("email delivery disabled")
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *InMemorySender) Fail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *InMemorySender) Messages() []ReportEmail {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]ReportEmail, len(s.messages))
	copy(result, s.messages)
	return result
}
