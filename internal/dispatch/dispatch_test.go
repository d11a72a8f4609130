package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/promptarena/arena/internal/domain"
	"github.com/promptarena/arena/internal/provider"
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

func TestDispatch_ValidationErrors(t *testing.T) {
	d := New(provider.NewRegistry())

	if _, err := d.Dispatch(context.Background(), "   ", []string{"openai"}); !errors.Is(err, domain.ErrEmptyPrompt) {
		t.Errorf("blank prompt: err = %v, want ErrEmptyPrompt", err)
	}
	if _, err := d.Dispatch(context.Background(), "prompt", nil); !errors.Is(err, domain.ErrNoProviders) {
		t.Errorf("no providers: err = %v, want ErrNoProviders", err)
	}
}

func TestDispatch_OneOutcomePerProviderInOrder(t *testing.T) {
	registry := provider.NewRegistry()
	registry.Register(&mockAdapter{id: "openai", configured: true}, time.Second)
	registry.Register(&mockAdapter{id: "anthropic", configured: true, complete: func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("upstream 500")
	}}, time.Second)
	registry.Register(&mockAdapter{id: "google", configured: true}, time.Second)

	d := New(registry)
	names := []string{"openai", "anthropic", "google"}

	outcomes, err := d.Dispatch(context.Background(), "prompt", names)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(outcomes) != len(names) {
		t.Fatalf("got %d outcomes, want %d", len(outcomes), len(names))
	}
	for i, name := range names {
		if outcomes[i].Provider != name {
			t.Errorf("outcomes[%d].Provider = %q, want %q", i, outcomes[i].Provider, name)
		}
	}

	if !outcomes[0].OK || outcomes[0].Text != "response from openai" {
		t.Errorf("openai outcome = %+v, want success", outcomes[0])
	}
	if outcomes[1].OK || outcomes[1].Err != "upstream 500" {
		t.Errorf("anthropic outcome = %+v, want failure with upstream error", outcomes[1])
	}
	if !outcomes[2].OK {
		t.Errorf("google outcome = %+v, want success despite sibling failure", outcomes[2])
	}
}

func TestDispatch_MissingCredentialSkipsNetworkCall(t *testing.T) {
	adapter := &mockAdapter{id: "openai", configured: false}
	registry := provider.NewRegistry()
	registry.Register(adapter, time.Second)

	d := New(registry)

	outcomes, err := d.Dispatch(context.Background(), "prompt", []string{"openai"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcomes[0].OK {
		t.Fatal("unconfigured provider should fail")
	}
	if outcomes[0].Err != "missing credential" {
		t.Errorf("err = %q, want %q", outcomes[0].Err, "missing credential")
	}
	if adapter.callCount() != 0 {
		t.Errorf("Complete called %d times, want 0", adapter.callCount())
	}
}

func TestDispatch_UnknownProvider(t *testing.T) {
	d := New(provider.NewRegistry())

	outcomes, err := d.Dispatch(context.Background(), "prompt", []string{"nope"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcomes[0].OK || outcomes[0].Err != "unknown provider" {
		t.Errorf("outcome = %+v, want unknown provider failure", outcomes[0])
	}
}

func TestDispatch_Timeout(t *testing.T) {
	slow := &mockAdapter{id: "slow", configured: true, complete: func(ctx context.Context, prompt string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	fast := &mockAdapter{id: "fast", configured: true}

	registry := provider.NewRegistry()
	registry.Register(slow, 20*time.Millisecond)
	registry.Register(fast, time.Second)

	d := New(registry)

	outcomes, err := d.Dispatch(context.Background(), "prompt", []string{"slow", "fast"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcomes[0].OK || outcomes[0].Err != "timeout" {
		t.Errorf("slow outcome = %+v, want timeout failure", outcomes[0])
	}
	if !outcomes[1].OK {
		t.Errorf("fast outcome = %+v, want success; a sibling timeout must not cancel it", outcomes[1])
	}
}

func TestDispatch_OutcomesCarryTimestamps(t *testing.T) {
	registry := provider.NewRegistry()
	registry.Register(&mockAdapter{id: "openai", configured: true}, time.Second)

	d := New(registry)

	before := time.Now().UTC()
	outcomes, err := d.Dispatch(context.Background(), "prompt", []string{"openai"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcomes[0].Timestamp.Before(before) {
		t.Errorf("timestamp %v predates dispatch start %v", outcomes[0].Timestamp, before)
	}
	if outcomes[0].LatencyMs < 0 {
		t.Errorf("latency = %d, want non-negative", outcomes[0].LatencyMs)
	}
}
