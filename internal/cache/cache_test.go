package cache

import (
	"context"
	"testing"
	"time"

	"github.com/promptarena/arena/internal/domain"
)

func TestKey(t *testing.T) {
	base := Key("prompt", []string{"openai", "anthropic"}, "general")

	if Key("prompt", []string{"openai", "anthropic"}, "general") != base {
		t.Error("same inputs should produce the same key")
	}
	if Key("other prompt", []string{"openai", "anthropic"}, "general") == base {
		t.Error("different prompt should produce a different key")
	}
	// Selection order drives ranking tie-breaks, so it is part of the key.
	if Key("prompt", []string{"anthropic", "openai"}, "general") == base {
		t.Error("provider order should produce a different key")
	}
	if Key("prompt", []string{"openai", "anthropic"}, "professional") == base {
		t.Error("tool context should produce a different key")
	}
	// Whitespace around the prompt does not change the comparison.
	if Key("  prompt  ", []string{"openai", "anthropic"}, "general") != base {
		t.Error("prompt whitespace should be trimmed before hashing")
	}
}

func TestInMemoryCache(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()

	comparison := &CachedComparison{
		Report: domain.ComparisonReport{Winner: "openai", Body: "# Report"},
	}

	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("empty cache should miss")
	}

	if err := c.Set(ctx, "k", comparison, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, ok := c.Get(ctx, "k")
	if !ok {
		t.Fatal("expected hit after set")
	}
	if got.Report.Winner != "openai" {
		t.Errorf("winner = %q, want openai", got.Report.Winner)
	}
}

func TestInMemoryCache_Expiry(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()

	c.Set(ctx, "k", &CachedComparison{}, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("expired entry should miss")
	}
}
