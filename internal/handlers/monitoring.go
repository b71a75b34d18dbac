package handlers

import (
	"net/http"
	"time"
)

// ErrorStats handles GET /api/monitoring/errors: per-(category,service)
// error totals over the trailing hour.
func (h *Handlers) ErrorStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.tracker.Stats(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"errors":    stats,
		"threshold": h.tracker.Threshold(),
		"window":    "1h",
	})
}

// Health handles GET /health. It reports per-dependency status and answers
// 503 as soon as any dependency is down.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{
		"database": "ok",
		"redis":    "ok",
	}
	status := http.StatusOK

	if err := h.storage.Health(); err != nil {
		checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if err := h.redis.Health(); err != nil {
		checks["redis"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	body := map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
		"checks": checks,
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	h.respondJSON(w, status, body)
}
