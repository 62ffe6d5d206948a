package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadahiro/hydralens/internal/protocol"
)

const testMetadataURL = "http://example.com/.well-known/oauth-protected-resource/demo/resource"

func resourceRequest(authorization string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/demo/resource", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	return req
}

func TestResourceMissingToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(resourceRequest(""))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, `Bearer resource_metadata="`+testMetadataURL+`"`, rec.Header().Get("WWW-Authenticate"))
	assert.Equal(t, "missing_token", decodeJSON(t, rec)["error"])
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestResourceWrongScheme(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(resourceRequest("Basic YWxhZGRpbjpvcGVuc2VzYW1l"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	code, _, _ := protocol.ParseWWWAuthenticate(rec.Header().Get("WWW-Authenticate"))
	assert.Equal(t, "invalid_request", code)
	assert.Empty(t, env.provider.requestsTo("/oauth2/introspect"))
}

func TestResourceIntrospection(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantDesc   string
	}{
		{"active", http.StatusOK, `{"active":true,"sub":"demo-user","scope":"openid"}`, http.StatusOK, ""},
		{"inactive", http.StatusOK, `{"active":false}`, http.StatusUnauthorized, "Token is not active"},
		{"provider error", http.StatusInternalServerError, `{"error":"server_error"}`, http.StatusUnauthorized, "Token introspection failed"},
		{"not json", http.StatusOK, `[]`, http.StatusUnauthorized, "Invalid introspection response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.provider.handle("POST /oauth2/introspect", tt.status, tt.body)

			rec := env.do(resourceRequest("Bearer at-123"))
			require.Equal(t, tt.wantStatus, rec.Code)

			reqs := env.provider.requestsTo("/oauth2/introspect")
			require.Len(t, reqs, 1)
			assert.Contains(t, string(reqs[0].Body), "token=at-123")

			got := decodeJSON(t, rec)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, env.provider.URL, got["authorization_server"])
				intro, _ := got["token_introspection"].(map[string]any)
				assert.Equal(t, "demo-user", intro["sub"])
				return
			}
			code, desc, _ := protocol.ParseWWWAuthenticate(rec.Header().Get("WWW-Authenticate"))
			assert.Equal(t, "invalid_token", code)
			assert.Equal(t, tt.wantDesc, desc)
			assert.Equal(t, "invalid_token", got["error"])
		})
	}
}

func TestResourceMetadata(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/.well-known/oauth-protected-resource/demo/resource", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeJSON(t, rec)
	assert.Equal(t, "http://example.com/demo/resource", got["resource"])
	assert.Equal(t, []any{env.provider.URL}, got["authorization_servers"])
	assert.Equal(t, []any{"header"}, got["bearer_methods_supported"])
}
