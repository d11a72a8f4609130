package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/promptarena/arena/internal/cache"
	"github.com/promptarena/arena/internal/dispatch"
	"github.com/promptarena/arena/internal/domain"
	"github.com/promptarena/arena/internal/email"
	"github.com/promptarena/arena/internal/ledger"
	"github.com/promptarena/arena/internal/notifications"
	"github.com/promptarena/arena/internal/provider"
	"github.com/promptarena/arena/internal/usage"
)

type mockAdapter struct {
	id         string
	configured bool
	complete   func(ctx context.Context, prompt string) (string, error)
	calls      int32
}

func (m *mockAdapter) ID() string       { return m.id }
func (m *mockAdapter) Configured() bool { return m.configured }
func (m *mockAdapter) Complete(ctx context.Context, prompt string) (string, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.complete != nil {
		return m.complete(ctx, prompt)
	}
	return "response from " + m.id, nil
}

func (m *mockAdapter) callCount() int {
	return int(atomic.LoadInt32(&m.calls))
}

const goodResponse = "The analysis covers the key points in detail. " +
	"First, the fundamentals look solid.\n\n" +
	"- Strong demand\n- Low vacancy\n\n" +
	"For example, comparable listings support the valuation. I recommend proceeding with the purchase."

type fixture struct {
	pipeline *Pipeline
	ledger   *ledger.InMemoryLedger
	sender   *email.InMemorySender
	notifier *notifications.InMemoryNotifier
	tracker  *usage.InMemoryTracker
	cache    *cache.InMemoryCache
}

func newFixture(adapters ...*mockAdapter) *fixture {
	registry := provider.NewRegistry()
	for _, a := range adapters {
		registry.Register(a, time.Second)
	}

	f := &fixture{
		ledger:   ledger.NewInMemoryLedger(),
		sender:   email.NewInMemorySender(),
		notifier: notifications.NewInMemoryNotifier(),
		tracker:  usage.NewInMemoryTracker(),
		cache:    cache.NewInMemoryCache(),
	}
	f.pipeline = New(Config{
		Dispatcher: dispatch.New(registry),
		Emails:     f.sender,
		Ledger:     f.ledger,
		Notifier:   f.notifier,
		Cache:      f.cache,
		Tracker:    f.tracker,
	})
	return f
}

func (f *fixture) eventTypes() []notifications.EventType {
	events := f.notifier.Events()
	types := make([]notifications.EventType, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	return types
}

func hasEvent(types []notifications.EventType, want notifications.EventType) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}

func TestRun_PartialFailureRefundsAndReports(t *testing.T) {
	f := newFixture(
		&mockAdapter{id: "openai", configured: true, complete: func(ctx context.Context, prompt string) (string, error) {
			return goodResponse, nil
		}},
		&mockAdapter{id: "anthropic", configured: true, complete: func(ctx context.Context, prompt string) (string, error) {
			return "", errors.New("upstream 503")
		}},
	)

	req := domain.ComparisonRequest{
		Prompt:            "Compare the options",
		SelectedProviders: []string{"openai", "anthropic"},
		OrderID:           "ord-100",
		Email:             "user@example.com",
		CreditsUsed:       2,
	}

	result, err := f.pipeline.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(result.Results))
	}
	if result.Report.Winner != "openai" {
		t.Errorf("winner = %q, want openai", result.Report.Winner)
	}
	if result.CreditInfo == nil {
		t.Fatal("credit info missing for credit-bearing request")
	}
	if result.CreditInfo.Refunded != 1 {
		t.Errorf("refunded = %d, want 1", result.CreditInfo.Refunded)
	}
	if got := f.ledger.Deducted("user@example.com"); got != 2 {
		t.Errorf("ledger deducted = %d, want 2", got)
	}
	if got := f.ledger.Refunded("user@example.com"); got != 1 {
		t.Errorf("ledger refunded = %d, want 1", got)
	}
	if !result.EmailSent {
		t.Error("email should have been sent")
	}
	if msgs := f.sender.Messages(); len(msgs) != 1 || msgs[0].CreditsRefunded != 1 {
		t.Errorf("sent messages = %+v, want one with CreditsRefunded=1", msgs)
	}
	if !hasEvent(f.eventTypes(), notifications.EventRefundIssued) {
		t.Errorf("events = %v, want refund_issued", f.eventTypes())
	}
	if records := f.tracker.All(); len(records) != 2 {
		t.Errorf("usage records = %d, want 2", len(records))
	}

	// Failed outcome keeps its fixed zero score.
	for _, r := range result.Results {
		if r.Outcome.Provider == "anthropic" {
			if r.Score.Score != 0 || len(r.Score.Cons) != 1 || r.Score.Cons[0] != "Response unavailable" {
				t.Errorf("failed provider score = %+v, want fixed unavailable result", r.Score)
			}
		}
	}
}

func TestRun_AllFailedNotifiesAndStatesRefund(t *testing.T) {
	fail := func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("unreachable")
	}
	f := newFixture(
		&mockAdapter{id: "openai", configured: true, complete: fail},
		&mockAdapter{id: "anthropic", configured: true, complete: fail},
	)

	req := domain.ComparisonRequest{
		Prompt:            "prompt",
		SelectedProviders: []string{"openai", "anthropic"},
		OrderID:           "ord-101",
		Email:             "user@example.com",
		CreditsUsed:       2,
	}

	result, err := f.pipeline.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Report.AllFailed {
		t.Fatal("report should be marked all-failed")
	}
	if !strings.Contains(result.Report.Body, "have been refunded") {
		t.Error("total-failure report should state the refund")
	}
	if result.CreditInfo.Refunded != 2 {
		t.Errorf("refunded = %d, want 2", result.CreditInfo.Refunded)
	}
	if !hasEvent(f.eventTypes(), notifications.EventAllProvidersFailed) {
		t.Errorf("events = %v, want all_providers_failed", f.eventTypes())
	}
	if !result.EmailSent {
		t.Error("failure report should still be emailed")
	}
}

func TestRun_EmailFailureIsNonFatal(t *testing.T) {
	f := newFixture(&mockAdapter{id: "openai", configured: true})
	f.sender.Fail(true)

	req := domain.ComparisonRequest{
		Prompt:            "prompt",
		SelectedProviders: []string{"openai"},
		OrderID:           "ord-102",
		Email:             "user@example.com",
	}

	result, err := f.pipeline.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("email failure should not fail the run: %v", err)
	}

	if result.EmailSent {
		t.Error("emailSent should be false when delivery fails")
	}
	if !hasEvent(f.eventTypes(), notifications.EventEmailFailed) {
		t.Errorf("events = %v, want email_failed", f.eventTypes())
	}
}

func TestRun_ValidationErrorPropagates(t *testing.T) {
	f := newFixture(&mockAdapter{id: "openai", configured: true})

	_, err := f.pipeline.Run(context.Background(), domain.ComparisonRequest{
		Prompt:            "",
		SelectedProviders: []string{"openai"},
	})
	if !errors.Is(err, domain.ErrEmptyPrompt) {
		t.Errorf("err = %v, want ErrEmptyPrompt", err)
	}
}

func TestRun_CreditFreeRequestsHitCache(t *testing.T) {
	adapter := &mockAdapter{id: "openai", configured: true, complete: func(ctx context.Context, prompt string) (string, error) {
		return goodResponse, nil
	}}
	f := newFixture(adapter)

	req := domain.ComparisonRequest{
		Prompt:            "same prompt",
		SelectedProviders: []string{"openai"},
		OrderID:           "ord-103",
		Email:             "user@example.com",
	}

	if _, err := f.pipeline.Run(context.Background(), req); err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := f.pipeline.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if adapter.callCount() != 1 {
		t.Errorf("provider called %d times, want 1 (second run from cache)", adapter.callCount())
	}
	if second.Report.Winner != "openai" {
		t.Errorf("cached winner = %q, want openai", second.Report.Winner)
	}
	if msgs := f.sender.Messages(); len(msgs) != 2 {
		t.Errorf("emails sent = %d, want 2 (cache hits still deliver)", len(msgs))
	}
}

func TestRun_CreditBearingRequestsBypassCache(t *testing.T) {
	adapter := &mockAdapter{id: "openai", configured: true, complete: func(ctx context.Context, prompt string) (string, error) {
		return goodResponse, nil
	}}
	f := newFixture(adapter)

	req := domain.ComparisonRequest{
		Prompt:            "same prompt",
		SelectedProviders: []string{"openai"},
		OrderID:           "ord-104",
		Email:             "user@example.com",
		CreditsUsed:       1,
	}

	for i := 0; i < 2; i++ {
		if _, err := f.pipeline.Run(context.Background(), req); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	if adapter.callCount() != 2 {
		t.Errorf("provider called %d times, want 2 (paid runs never served from cache)", adapter.callCount())
	}
}

func TestRefundAll(t *testing.T) {
	f := newFixture(&mockAdapter{id: "openai", configured: true})

	req := domain.ComparisonRequest{
		OrderID:     "ord-105",
		Email:       "user@example.com",
		CreditsUsed: 3,
	}

	f.pipeline.RefundAll(context.Background(), req)

	if got := f.ledger.Refunded("user@example.com"); got != 3 {
		t.Errorf("refunded = %d, want 3", got)
	}
}

func TestRefundAll_NoCreditsNoRefund(t *testing.T) {
	f := newFixture(&mockAdapter{id: "openai", configured: true})

	f.pipeline.RefundAll(context.Background(), domain.ComparisonRequest{
		OrderID: "ord-106",
		Email:   "user@example.com",
	})

	if got := f.ledger.Refunded("user@example.com"); got != 0 {
		t.Errorf("refunded = %d, want 0", got)
	}
}
