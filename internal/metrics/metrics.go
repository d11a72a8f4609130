package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ComparisonsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arena_comparisons_total",
			Help: "Total number of comparison runs processed",
		},
		[]string{"status"},
	)

	OutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arena_provider_outcomes_total",
			Help: "Per-provider dispatch outcomes",
		},
		[]string{"provider", "status"},
	)

	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "arena_dispatch_duration_seconds",
			Help:    "Wall-clock duration of a full provider fan-out",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
	)

	ScoreDistribution = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arena_response_score",
			Help:    "Heuristic quality scores per provider",
			Buckets: []float64{0, 2, 4, 5, 6, 7, 8, 9, 10},
		},
		[]string{"provider"},
	)

	EmailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arena_emails_total",
			Help: "Report email delivery attempts",
		},
		[]string{"status"},
	)

	CreditsRefundedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arena_credits_refunded_total",
			Help: "Credits refunded for failed provider outcomes",
		},
	)

	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arena_webhook_events_total",
			Help: "Payment webhook events received",
		},
		[]string{"status"},
	)
)

func RecordComparison(status string) {
	ComparisonsTotal.WithLabelValues(status).Inc()
}

func RecordOutcome(providerID, status string) {
	OutcomesTotal.WithLabelValues(providerID, status).Inc()
}

func ObserveDispatch(seconds float64) {
	DispatchDuration.Observe(seconds)
}

func ObserveScore(providerID string, score float64) {
	ScoreDistribution.WithLabelValues(providerID).Observe(score)
}

func RecordEmail(sent bool) {
	status := "sent"
	if !sent {
		status = "failed"
	}
	EmailsTotal.WithLabelValues(status).Inc()
}

func RecordRefund(credits int) {
	CreditsRefundedTotal.Add(float64(credits))
}

func RecordWebhookEvent(status string) {
	WebhookEventsTotal.WithLabelValues(status).Inc()
}
