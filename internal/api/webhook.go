package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/promptarena/arena/internal/domain"
	"github.com/promptarena/arena/internal/metrics"
	"github.com/promptarena/arena/internal/queue"
)

// paymentEvent is the payment processor's webhook payload. Only completed
// payments trigger a comparison; everything else is acknowledged and
// dropped.
type paymentEvent struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Data struct {
		OrderID string `json:"orderId"`
		Email   string `json:"email"`
		Credits int    `json:"credits"`
		Custom  struct {
			Prompt            string   `json:"prompt"`
			SelectedProviders []string `json:"selectedProviders"`
			ToolContext       string   `json:"toolContext"`
			PropertyAddress   string   `json:"propertyAddress"`
		} `json:"custom"`
	} `json:"data"`
}

const eventPaymentCompleted = "payment.completed"

func (h *Handler) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	writeCORS(w)

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		w.Header().Set("Allow", "POST, OPTIONS")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var event paymentEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		metrics.RecordWebhookEvent("malformed")
		writeError(w, http.StatusBadRequest, "invalid webhook payload")
		return
	}

	if event.Type != eventPaymentCompleted {
		metrics.RecordWebhookEvent("ignored")
		slog.Debug("ignoring webhook event", "type", event.Type, "event_id", event.ID)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":  true,
			"received": true,
		})
		return
	}

	req := domain.ComparisonRequest{
		Prompt:            event.Data.Custom.Prompt,
		SelectedProviders: event.Data.Custom.SelectedProviders,
		OrderID:           event.Data.OrderID,
		Email:             event.Data.Email,
		CreditsUsed:       event.Data.Credits,
		ToolContext:       event.Data.Custom.ToolContext,
		PropertyAddress:   event.Data.Custom.PropertyAddress,
	}

	job := queue.Job{
		ID:        uuid.New().String(),
		Request:   req,
		Source:    "payment-webhook",
		CreatedAt: time.Now().UTC(),
	}

	if h.queue != nil {
		if err := h.queue.Enqueue(r.Context(), job); err != nil {
			slog.Error("failed to enqueue comparison job",
				"job_id", job.ID,
				"order_id", req.OrderID,
				"error", err,
			)
			metrics.RecordWebhookEvent("enqueue_failed")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	} else {
		// The webhook caller only needs an acknowledgement; run the
		// comparison detached from the request lifetime.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			h.pipeline.RunJob(ctx, job)
		}()
	}

	metrics.RecordWebhookEvent("accepted")
	slog.Info("payment webhook accepted",
		"event_id", event.ID,
		"job_id", job.ID,
		"order_id", req.OrderID,
	)

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"success": true,
		"jobId":   job.ID,
		"orderId": req.OrderID,
	})
}
