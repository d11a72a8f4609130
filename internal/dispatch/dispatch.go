// Package dispatch fans a prompt out to the selected providers and
// collects one Outcome per provider. Per-provider failures are contained
// here; only validation errors fail the whole batch.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/promptarena/arena/internal/domain"
	"github.com/promptarena/arena/internal/metrics"
	"github.com/promptarena/arena/internal/provider"
	"github.com/promptarena/arena/internal/telemetry"
)

type Dispatcher struct {
	registry *provider.Registry
}

func New(registry *provider.Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Dispatch invokes every named provider concurrently and waits for all of
// them to settle. The returned slice has exactly one Outcome per input
// name, in input order. A provider timing out or failing never cancels
// its siblings.
func (d *Dispatcher) Dispatch(ctx context.Context, prompt string, names []string) ([]domain.Outcome, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, domain.ErrEmptyPrompt
	}
	if len(names) == 0 {
		return nil, domain.ErrNoProviders
	}

	ctx, span := telemetry.StartSpan(ctx, "dispatch")
	defer span.End()

	start := time.Now()
	outcomes := make([]domain.Outcome, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			outcomes[i] = d.invoke(ctx, prompt, name)
		}(i, name)
	}
	wg.Wait()

	for _, o := range outcomes {
		telemetry.AddOutcomeAttributes(span, o.Provider, o.OK, o.LatencyMs)
	}

	metrics.ObserveDispatch(time.Since(start).Seconds())

	return outcomes, nil
}

func (d *Dispatcher) invoke(ctx context.Context, prompt, name string) domain.Outcome {
	started := time.Now()

	fail := func(err error) domain.Outcome {
		slog.Warn("provider failed",
			"provider", name,
			"error", err,
		)
		metrics.RecordOutcome(name, errorLabel(err))
		return domain.Outcome{
			Provider:  name,
			OK:        false,
			Err:       err.Error(),
			LatencyMs: time.Since(started).Milliseconds(),
			Timestamp: time.Now().UTC(),
		}
	}

	entry, ok := d.registry.Get(name)
	if !ok {
		return fail(domain.ErrUnknownProvider)
	}

	// Unconfigured providers never reach the network; the distinct error
	// keeps refund accounting correct.
	if !entry.Adapter.Configured() {
		return fail(domain.ErrMissingCredential)
	}

	callCtx, cancel := context.WithTimeout(ctx, entry.Timeout)
	defer cancel()

	text, err := entry.Adapter.Complete(callCtx, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			return fail(domain.ErrTimeout)
		}
		return fail(err)
	}

	metrics.RecordOutcome(name, "success")

	return domain.Outcome{
		Provider:  name,
		Text:      text,
		OK:        true,
		LatencyMs: time.Since(started).Milliseconds(),
		Timestamp: time.Now().UTC(),
	}
}

func errorLabel(err error) string {
	var shapeErr *domain.ShapeError
	switch {
	case errors.Is(err, domain.ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrUnknownProvider):
		return "unknown_provider"
	case errors.As(err, &shapeErr):
		return "shape"
	default:
		return "transport"
	}
}
