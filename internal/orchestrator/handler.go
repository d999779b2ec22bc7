package orchestrator

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// Handler handles HTTP requests for the job lifecycle.
type Handler struct {
	manager *Manager
}

// NewHandler creates a new orchestrator Handler.
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// HandleSubmit queues a chat request for governance.
// POST /api/v1/jobs
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	job, err := h.manager.Submit(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrInputTooLarge):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, ErrQueueFull):
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "gateway busy, retry later"})
		default:
			slog.Error("submit failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "submit failed"})
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"request_id": job.ID,
		"status":     "queued",
	})
}

// HandleStatus returns the status of a job.
// GET /api/v1/jobs/{id}
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id is required"})
		return
	}

	view, err := h.manager.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
			return
		}
		slog.Error("status lookup failed", "job_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
		return
	}

	if !view.Terminal() {
		writeJSON(w, http.StatusOK, map[string]string{"status": view.Status})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleMetrics returns savings and query totals over all finished jobs.
// GET /api/v1/metrics
func (h *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	totals, err := h.manager.Metrics(r.Context())
	if err != nil {
		slog.Error("metrics failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "metrics unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
