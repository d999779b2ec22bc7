package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valinor-ai/airlock/internal/auth"
)

func TestMiddleware(t *testing.T) {
	keys := auth.NewKeys(map[string]string{"ops": "ops-secret", "ci": "ci-secret", "blank": "  "})

	tests := []struct {
		name       string
		key        string
		wantStatus int
		wantName   string
	}{
		{"valid ops key", "ops-secret", http.StatusOK, "ops"},
		{"valid ci key", "ci-secret", http.StatusOK, "ci"},
		{"missing key", "", http.StatusForbidden, ""},
		{"wrong key", "nope", http.StatusForbidden, ""},
		{"prefix of a key", "ops-secre", http.StatusForbidden, ""},
		{"default key not active when keys configured", auth.DefaultDevKey, http.StatusForbidden, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *auth.Identity
			handler := auth.Middleware(keys)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = auth.GetIdentity(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil)
			if tt.key != "" {
				req.Header.Set("x-api-key", tt.key)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				require.NotNil(t, got)
				assert.Equal(t, tt.wantName, got.KeyName)
			} else {
				assert.Nil(t, got)
				assert.JSONEq(t, `{"error":"Invalid API Key"}`, w.Body.String())
			}
		})
	}
}

func TestNewKeys_DefaultDevKey(t *testing.T) {
	keys := auth.NewKeys(nil)

	id, ok := keys.Verify(auth.DefaultDevKey)
	require.True(t, ok)
	assert.Equal(t, "default", id.KeyName)

	_, ok = keys.Verify("anything-else")
	assert.False(t, ok)
}
