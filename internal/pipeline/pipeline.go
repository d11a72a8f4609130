// Package pipeline runs one comparison end to end: dispatch, scoring,
// credit reconciliation, report building, then the explicit side-effect
// steps (ledger refund, email, notifications). The scoring/aggregation
// core runs without any of the collaborators wired, which is how the
// tests exercise it.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/promptarena/arena/internal/cache"
	"github.com/promptarena/arena/internal/credits"
	"github.com/promptarena/arena/internal/dispatch"
	"github.com/promptarena/arena/internal/domain"
	"github.com/promptarena/arena/internal/email"
	"github.com/promptarena/arena/internal/ledger"
	"github.com/promptarena/arena/internal/metrics"
	"github.com/promptarena/arena/internal/notifications"
	"github.com/promptarena/arena/internal/queue"
	"github.com/promptarena/arena/internal/report"
	"github.com/promptarena/arena/internal/scoring"
	"github.com/promptarena/arena/internal/telemetry"
	"github.com/promptarena/arena/internal/usage"
)

type Config struct {
	Dispatcher *dispatch.Dispatcher
	Scorer     *scoring.Scorer
	Reports    *report.Builder

	// Collaborators; any of these may be nil, which disables that step.
	Emails   email.Sender
	Ledger   ledger.Ledger
	Notifier notifications.Notifier
	Cache    cache.Cache
	Tracker  usage.Tracker

	CacheTTL time.Duration
}

type Pipeline struct {
	cfg Config
}

func New(cfg Config) *Pipeline {
	if cfg.Scorer == nil {
		cfg.Scorer = scoring.NewDefault()
	}
	if cfg.Reports == nil {
		cfg.Reports = report.NewBuilder()
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	return &Pipeline{cfg: cfg}
}

// Run executes one comparison. Only validation errors come back as
// errors; per-provider failures are folded into the result.
func (p *Pipeline) Run(ctx context.Context, req domain.ComparisonRequest) (*domain.RunResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "pipeline.run")
	defer span.End()

	runID := uuid.New().String()
	telemetry.AddRunAttributes(span, runID, req.OrderID, req.SelectedProviders)

	// Credit-bearing requests always hit the providers for real; serving
	// them from cache would fake the refund accounting.
	cacheable := p.cfg.Cache != nil && req.CreditsUsed == 0
	cacheKey := ""
	if cacheable {
		cacheKey = cache.Key(req.Prompt, req.SelectedProviders, req.ToolContext)
		if cached, ok := p.cfg.Cache.Get(ctx, cacheKey); ok {
			slog.Info("comparison served from cache",
				"run_id", runID,
				"order_id", req.OrderID,
			)
			result := &domain.RunResult{
				RunID:   runID,
				OrderID: req.OrderID,
				Results: cached.Results,
				Report:  cached.Report,
			}
			result.EmailSent = p.sendEmail(ctx, req, result.Report, nil)
			metrics.RecordComparison("cache_hit")
			return result, nil
		}
	}

	if p.cfg.Ledger != nil && req.CreditsUsed > 0 {
		if err := p.cfg.Ledger.Deduct(ctx, req.Email, req.OrderID, req.CreditsUsed); err != nil {
			slog.Warn("credit deduction failed",
				"order_id", req.OrderID,
				"error", err,
			)
		}
	}

	outcomes, err := p.cfg.Dispatcher.Dispatch(ctx, req.Prompt, req.SelectedProviders)
	if err != nil {
		telemetry.AddErrorAttribute(span, err)
		metrics.RecordComparison("validation_error")
		return nil, err
	}

	toolCtx := scoring.ContextFor(req.ToolContext)
	results := make([]domain.ProviderResult, len(outcomes))
	for i, outcome := range outcomes {
		score := scoring.Unavailable()
		if outcome.OK {
			score = p.cfg.Scorer.Score(outcome.Text, toolCtx)
			metrics.ObserveScore(outcome.Provider, score.Score)
			telemetry.AddScoreAttribute(span, outcome.Provider, score.Score)
		}
		results[i] = domain.ProviderResult{Outcome: outcome, Score: score}
	}

	var creditInfo *domain.CreditInfo
	if req.CreditsUsed > 0 {
		info := credits.Reconcile(req.CreditsUsed, outcomes)
		creditInfo = &info
	}

	rep := p.cfg.Reports.Build(req, results, creditInfo)

	p.recordUsage(ctx, runID, req.OrderID, results)
	p.refund(ctx, req, creditInfo)

	if rep.AllFailed {
		metrics.RecordComparison("all_failed")
		p.notify(ctx, notifications.Event{
			Type:    notifications.EventAllProvidersFailed,
			OrderID: req.OrderID,
			Message: fmt.Sprintf("all %d providers failed for order %s", len(outcomes), req.OrderID),
		})
	} else {
		metrics.RecordComparison("ok")
		if cacheable {
			if err := p.cfg.Cache.Set(ctx, cacheKey, &cache.CachedComparison{Results: results, Report: rep}, p.cfg.CacheTTL); err != nil {
				slog.Warn("failed to cache comparison", "error", err, "run_id", runID)
			}
		}
	}

	result := &domain.RunResult{
		RunID:      runID,
		OrderID:    req.OrderID,
		Results:    results,
		Report:     rep,
		CreditInfo: creditInfo,
	}
	result.EmailSent = p.sendEmail(ctx, req, rep, creditInfo)

	slog.Info("comparison completed",
		"run_id", runID,
		"order_id", req.OrderID,
		"providers", len(outcomes),
		"winner", rep.Winner,
		"email_sent", result.EmailSent,
	)

	return result, nil
}

// RunJob executes a queued comparison, used by the webhook worker loop.
func (p *Pipeline) RunJob(ctx context.Context, job queue.Job) {
	if _, err := p.Run(ctx, job.Request); err != nil {
		slog.Error("queued comparison failed",
			"job_id", job.ID,
			"order_id", job.Request.OrderID,
			"error", err,
		)
	}
}

// RefundAll attempts a full-credit refund after an unexpected pipeline
// failure. Best effort; the caller already has an error to report.
func (p *Pipeline) RefundAll(ctx context.Context, req domain.ComparisonRequest) {
	if p.cfg.Ledger == nil || req.CreditsUsed == 0 {
		return
	}
	if err := p.cfg.Ledger.Refund(ctx, req.Email, req.OrderID, req.CreditsUsed); err != nil {
		slog.Error("full refund failed",
			"order_id", req.OrderID,
			"error", err,
		)
		p.notify(ctx, notifications.Event{
			Type:    notifications.EventRefundFailed,
			OrderID: req.OrderID,
			Message: fmt.Sprintf("full refund of %d credits failed", req.CreditsUsed),
		})
		return
	}
	metrics.RecordRefund(req.CreditsUsed)
}

func (p *Pipeline) refund(ctx context.Context, req domain.ComparisonRequest, creditInfo *domain.CreditInfo) {
	if creditInfo == nil || creditInfo.Refunded == 0 {
		return
	}

	metrics.RecordRefund(creditInfo.Refunded)

	if p.cfg.Ledger == nil {
		return
	}

	if err := p.cfg.Ledger.Refund(ctx, req.Email, req.OrderID, creditInfo.Refunded); err != nil {
		slog.Error("refund failed",
			"order_id", req.OrderID,
			"credits", creditInfo.Refunded,
			"error", err,
		)
		p.notify(ctx, notifications.Event{
			Type:    notifications.EventRefundFailed,
			OrderID: req.OrderID,
			Message: fmt.Sprintf("refund of %d credits failed", creditInfo.Refunded),
		})
		return
	}

	p.notify(ctx, notifications.Event{
		Type:    notifications.EventRefundIssued,
		OrderID: req.OrderID,
		Message: fmt.Sprintf("refunded %d of %d credits", creditInfo.Refunded, creditInfo.Used),
	})
}

func (p *Pipeline) sendEmail(ctx context.Context, req domain.ComparisonRequest, rep domain.ComparisonReport, creditInfo *domain.CreditInfo) bool {
	if p.cfg.Emails == nil || req.Email == "" {
		return false
	}

	msg := email.ReportEmail{
		To:      req.Email,
		OrderID: req.OrderID,
		Report:  rep.Body,
	}
	if creditInfo != nil {
		msg.CreditsUsed = creditInfo.Used
		msg.CreditsRefunded = creditInfo.Refunded
	}

	if err := p.cfg.Emails.SendReport(ctx, msg); err != nil {
		slog.Error("report email failed",
			"order_id", req.OrderID,
			"error", err,
		)
		metrics.RecordEmail(false)
		p.notify(ctx, notifications.Event{
			Type:    notifications.EventEmailFailed,
			OrderID: req.OrderID,
			Message: "report email delivery failed",
		})
		return false
	}

	metrics.RecordEmail(true)
	return true
}

func (p *Pipeline) recordUsage(ctx context.Context, runID, orderID string, results []domain.ProviderResult) {
	if p.cfg.Tracker == nil {
		return
	}

	for _, r := range results {
		record := usage.Record{
			RunID:     runID,
			OrderID:   orderID,
			Provider:  r.Outcome.Provider,
			Success:   r.Outcome.OK,
			ErrorKind: r.Outcome.Err,
			Score:     r.Score.Score,
			LatencyMs: r.Outcome.LatencyMs,
			Timestamp: r.Outcome.Timestamp,
		}
		if err := p.cfg.Tracker.Record(ctx, record); err != nil {
			slog.Warn("failed to record usage", "error", err, "run_id", runID)
		}
	}
}

func (p *Pipeline) notify(ctx context.Context, event notifications.Event) {
	if p.cfg.Notifier == nil {
		return
	}
	if err := p.cfg.Notifier.Send(ctx, event); err != nil {
		slog.Warn("notification failed", "type", event.Type, "error", err)
	}
}
