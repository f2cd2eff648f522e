package intake

import (
	"net/http"
	"time"
)

// Health handles GET /health: an aggregate liveness check that degrades to
// 503 if any dependency reports unhealthy.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := http.StatusOK
	components := map[string]string{"store": "ok"}

	if err := h.store.Ping(ctx); err != nil {
		components["store"] = "unavailable"
		status = http.StatusServiceUnavailable
	}
	if h.redisPinger != nil {
		if err := h.redisPinger.Ping(ctx); err != nil {
			components["redis"] = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			components["redis"] = "ok"
		}
	}

	writeJSON(w, status, map[string]any{
		"status":     healthLabel(status),
		"uptime_sec": int(time.Since(h.startedAt).Seconds()),
		"components": components,
	})
}

// HealthDB handles GET /health/db.
func (h *Handlers) HealthDB(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthRedis handles GET /health/redis.
func (h *Handlers) HealthRedis(w http.ResponseWriter, r *http.Request) {
	if h.redisPinger == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": "redis not configured"})
		return
	}
	if err := h.redisPinger.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// TestJobsStatus handles GET /test/jobs/status, exposing per-queue depth for
// integration tests to poll on instead of sleeping a fixed duration.
func (h *Handlers) TestJobsStatus(w http.ResponseWriter, r *http.Request) {
	if h.inspector == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "inspector not configured"})
		return
	}
	statuses, err := h.inspector.Status()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

func healthLabel(status int) string {
	if status == http.StatusOK {
		return "ok"
	}
	return "degraded"
}
