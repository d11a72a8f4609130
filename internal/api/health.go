package api

import "net/http"

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "prompt-arena",
	})
}

func (h *Handler) handleHealthLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// Readiness only requires at least one configured provider; an instance
// with no usable credentials cannot serve comparisons.
func (h *Handler) handleHealthReady(w http.ResponseWriter, r *http.Request) {
	for _, id := range h.registry.Names() {
		if entry, ok := h.registry.Get(id); ok && entry.Adapter.Configured() {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
			return
		}
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status": "no providers configured",
	})
}
