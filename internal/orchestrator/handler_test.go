package orchestrator

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMux(m *Manager) *http.ServeMux {
	h := NewHandler(m)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/jobs", h.HandleSubmit)
	mux.HandleFunc("GET /api/v1/jobs/{id}", h.HandleStatus)
	mux.HandleFunc("GET /api/v1/metrics", h.HandleMetrics)
	return mux
}

func postJob(t *testing.T, mux http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func getPath(mux http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHandleSubmit_Accepted(t *testing.T) {
	store := newSQLiteStore(t, filepath.Join(t.TempDir(), "vault.db"))
	m := NewManager(newPipeline(echoCompleter("Here is the summary.")), store, ManagerConfig{})
	startManager(t, m)
	mux := newTestMux(m)

	w := postJob(t, mux, `{"messages":[{"role":"user","content":"Summarize this meeting"}],"department":"marketing"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var accepted map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&accepted))
	assert.Equal(t, "queued", accepted["status"])
	id := accepted["request_id"]
	require.NotEmpty(t, id)

	var view StatusView
	require.Eventually(t, func() bool {
		rr := getPath(mux, "/api/v1/jobs/"+id)
		if rr.Code != http.StatusOK {
			return false
		}
		view = StatusView{}
		return json.NewDecoder(rr.Body).Decode(&view) == nil && view.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, StatusCompleted, view.Status)
	assert.Equal(t, "Here is the summary.", view.Output)
	assert.Equal(t, "gpt-4o-mini", view.Model)
	assert.Equal(t, "PASS", view.Verdict)
	assert.Equal(t, []string{}, view.EntitiesFound)
}

func TestHandleSubmit_BadRequests(t *testing.T) {
	store := newSQLiteStore(t, filepath.Join(t.TempDir(), "vault.db"))
	m := NewManager(newPipeline(echoCompleter("x")), store, ManagerConfig{})
	mux := newTestMux(m)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"messages":`},
		{"no messages", `{"messages":[]}`},
		{"over token budget", `{"messages":[{"content":"` + strings.Repeat("a", 16004) + `"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJob(t, mux, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var body map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.NotEmpty(t, body["error"])
		})
	}
	assert.Zero(t, m.Pending())
}

func TestHandleSubmit_QueueFull(t *testing.T) {
	store := newSQLiteStore(t, filepath.Join(t.TempDir(), "vault.db"))
	m := NewManager(newPipeline(echoCompleter("x")), store, ManagerConfig{QueueSize: 1})
	mux := newTestMux(m)

	body := `{"messages":[{"content":"hello"}]}`
	require.Equal(t, http.StatusAccepted, postJob(t, mux, body).Code)
	assert.Equal(t, http.StatusServiceUnavailable, postJob(t, mux, body).Code)
}

func TestHandleStatus_Processing(t *testing.T) {
	store := newSQLiteStore(t, filepath.Join(t.TempDir(), "vault.db"))
	m := NewManager(newPipeline(echoCompleter("x")), store, ManagerConfig{})
	mux := newTestMux(m)

	job := submit(t, m, "hello", "")

	w := getPath(mux, "/api/v1/jobs/"+job.ID)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"PROCESSING"}`, w.Body.String())
}

func TestHandleStatus_NotFound(t *testing.T) {
	store := newSQLiteStore(t, filepath.Join(t.TempDir(), "vault.db"))
	m := NewManager(newPipeline(echoCompleter("x")), store, ManagerConfig{})

	w := getPath(newTestMux(m), "/api/v1/jobs/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"job not found"}`, w.Body.String())
}

func TestHandleMetrics(t *testing.T) {
	store := newSQLiteStore(t, filepath.Join(t.TempDir(), "vault.db"))
	m := NewManager(newPipeline(echoCompleter("ok")), store, ManagerConfig{})
	mux := newTestMux(m)

	w := getPath(mux, "/api/v1/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total_savings":0,"total_queries":0}`, w.Body.String())

	startManager(t, m)
	waitTerminal(t, m, submit(t, m, "Summarize this meeting", "").ID)
	require.Eventually(t, func() bool { return m.Pending() == 0 }, time.Second, 10*time.Millisecond)

	w = getPath(mux, "/api/v1/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	var totals struct {
		TotalSavings float64 `json:"total_savings"`
		TotalQueries int64   `json:"total_queries"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&totals))
	assert.Equal(t, int64(1), totals.TotalQueries)
	assert.InDelta(t, 0.027, totals.TotalSavings, 1e-9)
}
