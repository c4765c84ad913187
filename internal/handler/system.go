package handler

import (
	"context"
	"net/http"
	"time"
)

// SeedNotice is returned by the retired key seeding endpoint. Keys are
// issued by MIS MIADP through the CLI, never over HTTP.
const SeedNotice = "Please contact MIS MIADP to request a new API Key."

// HelloMessage is the body of the protected connectivity check.
const HelloMessage = "Hello from protected API!"

// Pinger reports whether the record store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandler serves the small fixed endpoints: the connectivity check,
// the seed notice and the health probes.
type SystemHandler struct {
	store Pinger
	now   func() time.Time
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(store Pinger) *SystemHandler {
	return &SystemHandler{store: store, now: time.Now}
}

// Hello answers an authorized client with a greeting and the server time.
// GET /api/v1/miadp-fmr
func (h *SystemHandler) Hello(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   HelloMessage,
		"timestamp": h.now().UTC(),
	})
}

// Seed tells callers how to obtain a key. It never creates one.
// GET /api/v1/seed
func (h *SystemHandler) Seed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": SeedNotice})
}

// Healthz is the liveness probe.
// GET /healthz
func (h *SystemHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports ready only while the record store answers a ping.
// GET /readyz
func (h *SystemHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  "database unreachable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
