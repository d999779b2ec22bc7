package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// Lister is the read side the handler needs.
type Lister interface {
	List(ctx context.Context, limit int) ([]Record, error)
}

// Handler serves audit query endpoints.
type Handler struct {
	store Lister
}

// NewHandler creates an audit query handler.
func NewHandler(store Lister) *Handler {
	return &Handler{store: store}
}

// HandleListRecords returns recent audit records, newest first.
// GET /api/v1/audit/records?limit=50
func (h *Handler) HandleListRecords(w http.ResponseWriter, r *http.Request) {
	limit := DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := parsePositiveInt(raw)
		if err != nil || n == 0 {
			writeAuditJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = clampLimit(n)
	}

	if h.store == nil {
		writeAuditJSON(w, http.StatusOK, map[string]any{"records": []Record{}, "count": 0})
		return
	}

	records, err := h.store.List(r.Context(), limit)
	if err != nil {
		slog.Error("listing audit records failed", "error", err)
		writeAuditJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}

	writeAuditJSON(w, http.StatusOK, map[string]any{"records": records, "count": len(records)})
}

func writeAuditJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parsePositiveInt(s string) (int, error) {
	if len(s) > 6 {
		return 0, fmt.Errorf("invalid")
	}
	var n int
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("invalid")
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}
