package provider

import (
	"context"
	"reflect"
	"testing"
	"time"
)

type stubAdapter struct {
	id string
}

func (s *stubAdapter) ID() string       { return s.id }
func (s *stubAdapter) Configured() bool { return true }
func (s *stubAdapter) Complete(ctx context.Context, prompt string) (string, error) {
	return "", nil
}

func TestRegistry_PreservesRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubAdapter{id: "google"}, time.Second)
	r.Register(&stubAdapter{id: "openai"}, time.Second)
	r.Register(&stubAdapter{id: "anthropic"}, time.Second)

	want := []string{"google", "openai", "anthropic"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	if r.Len() != 3 {
		t.Errorf("Len() = %d, want 3", r.Len())
	}
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubAdapter{id: "openai"}, 5*time.Second)

	entry, ok := r.Get("openai")
	if !ok {
		t.Fatal("expected registered provider")
	}
	if entry.Adapter.ID() != "openai" {
		t.Errorf("adapter id = %q, want openai", entry.Adapter.ID())
	}
	if entry.Timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", entry.Timeout)
	}

	if _, ok := r.Get("missing"); ok {
		t.Error("unregistered provider should not be found")
	}
}

func TestRegistry_ZeroTimeoutUsesDefault(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubAdapter{id: "openai"}, 0)

	entry, _ := r.Get("openai")
	if entry.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want default %v", entry.Timeout, DefaultTimeout)
	}
}
