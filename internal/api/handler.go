// Package api exposes the comparison pipeline over HTTP: the inbound
// comparison endpoint, the payment webhook, and the operational
// endpoints. Failures always come back as well-formed JSON, never a
// stack trace.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/promptarena/arena/internal/auth"
	"github.com/promptarena/arena/internal/domain"
	"github.com/promptarena/arena/internal/pipeline"
	"github.com/promptarena/arena/internal/provider"
	"github.com/promptarena/arena/internal/queue"
	"github.com/promptarena/arena/internal/telemetry"
	"github.com/promptarena/arena/internal/usage"
)

type HandlerConfig struct {
	Pipeline *pipeline.Pipeline
	Registry *provider.Registry
	Queue    queue.Queue // nil runs webhook jobs inline
	Tracker  usage.Tracker
	Admin    *auth.AdminAuth
}

type Handler struct {
	pipeline *pipeline.Pipeline
	registry *provider.Registry
	queue    queue.Queue
	tracker  usage.Tracker
	mux      *http.ServeMux
}

func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		pipeline: cfg.Pipeline,
		registry: cfg.Registry,
		queue:    cfg.Queue,
		tracker:  cfg.Tracker,
		mux:      http.NewServeMux(),
	}

	// Comparison and webhook routes handle their own method dispatch so
	// CORS preflight and 405 behavior stay explicit.
	h.mux.HandleFunc("/v1/comparisons", h.handleComparisons)
	h.mux.HandleFunc("/v1/webhooks/payment", h.handlePaymentWebhook)
	h.mux.HandleFunc("GET /v1/providers", h.handleListProviders)
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /health/live", h.handleHealthLive)
	h.mux.HandleFunc("GET /health/ready", h.handleHealthReady)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	if cfg.Admin != nil && cfg.Admin.Enabled() && cfg.Tracker != nil {
		h.mux.Handle("GET /v1/usage", cfg.Admin.Require(http.HandlerFunc(h.handleUsage)))
	}

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("panic in handler", "panic", rec, "path", r.URL.Path)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
	}()

	h.mux.ServeHTTP(w, r)
}

type comparisonResponse struct {
	Success    bool                    `json:"success"`
	OrderID    string                  `json:"orderId"`
	RunID      string                  `json:"runId"`
	Results    []domain.ProviderResult `json:"results"`
	Report     string                  `json:"report"`
	Winner     string                  `json:"winner,omitempty"`
	EmailSent  bool                    `json:"emailSent"`
	CreditInfo *domain.CreditInfo      `json:"creditInfo,omitempty"`
}

func (h *Handler) handleComparisons(w http.ResponseWriter, r *http.Request) {
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

	ctx := r.Context()
	start := time.Now()

	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.New().String()
	}
	w.Header().Set("X-Request-ID", requestID)

	var req domain.ComparisonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Unexpected failures respond with a generic message and trigger a
	// best-effort full refund for credit-bearing requests.
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("comparison panicked",
				"panic", rec,
				"order_id", req.OrderID,
				"request_id", requestID,
			)
			h.pipeline.RefundAll(ctx, req)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
	}()

	result, err := h.pipeline.Run(ctx, req)
	if err != nil {
		if domain.IsValidation(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("comparison failed",
			"error", err,
			"order_id", req.OrderID,
			"request_id", requestID,
		)
		h.pipeline.RefundAll(ctx, req)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.Info("comparison request completed",
		"request_id", requestID,
		"order_id", req.OrderID,
		"trace_id", telemetry.GetTraceID(ctx),
		"latency_ms", time.Since(start).Milliseconds(),
	)

	writeJSON(w, http.StatusOK, comparisonResponse{
		Success:    true,
		OrderID:    result.OrderID,
		RunID:      result.RunID,
		Results:    result.Results,
		Report:     result.Report.Body,
		Winner:     result.Report.Winner,
		EmailSent:  result.EmailSent,
		CreditInfo: result.CreditInfo,
	})
}

type providerStatus struct {
	ID         string `json:"id"`
	Configured bool   `json:"configured"`
}

func (h *Handler) handleListProviders(w http.ResponseWriter, r *http.Request) {
	providers := make([]providerStatus, 0, h.registry.Len())
	for _, id := range h.registry.Names() {
		entry, ok := h.registry.Get(id)
		if !ok {
			continue
		}
		providers = append(providers, providerStatus{
			ID:         id,
			Configured: entry.Adapter.Configured(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"providers": providers,
	})
}

func (h *Handler) handleUsage(w http.ResponseWriter, r *http.Request) {
	records, err := h.tracker.Recent(r.Context(), 100)
	if err != nil {
		slog.Error("usage query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
	})
}

func writeCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
