package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newUpstream starts a minimal OpenID provider that issues one ID token for
// the given client.
func newUpstream(t *testing.T, clientID string) *fakeProvider {
	t.Helper()
	up := newFakeProvider(t)

	discovery, err := json.Marshal(map[string]any{
		"issuer":                                up.URL,
		"authorization_endpoint":                up.URL + "/authorize",
		"token_endpoint":                        up.URL + "/token",
		"jwks_uri":                              up.URL + "/.well-known/jwks.json",
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
	require.NoError(t, err)
	up.handle("GET /.well-known/openid-configuration", http.StatusOK, string(discovery))

	tok, err := json.Marshal(map[string]any{
		"access_token": "upstream-access-token",
		"token_type":   "Bearer",
		"expires_in":   3600,
		"id_token": up.idToken(t, jwt.MapClaims{
			"aud":   clientID,
			"sub":   "1234567890",
			"email": "alice@example.com",
		}),
	})
	require.NoError(t, err)
	up.handle("POST /token", http.StatusOK, string(tok))
	return up
}

func TestFederationNotConfigured(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/federation/google", "/federation/google/callback?code=x"} {
		rec := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "Google client not configured")
	}
}

func TestFederationStartRedirectsUpstream(t *testing.T) {
	up := newUpstream(t, "google-client")
	env := newTestEnv(t, func(o *Options) {
		o.Google = NewGoogleFederation(up.URL, "google-client", "google-secret", up.Client())
	})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/federation/google?login_challenge=lc1", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, up.URL+"/authorize", loc.Scheme+"://"+loc.Host+loc.Path)
	assert.Equal(t, "lc1", loc.Query().Get("state"))
	assert.Equal(t, "google-client", loc.Query().Get("client_id"))
	assert.Equal(t, "http://example.com/federation/google/callback", loc.Query().Get("redirect_uri"))
	assert.Equal(t, "openid email profile", loc.Query().Get("scope"))
}

func TestFederationCallbackAcceptsLogin(t *testing.T) {
	up := newUpstream(t, "google-client")
	env := newTestEnv(t, func(o *Options) {
		o.Google = NewGoogleFederation(up.URL, "google-client", "google-secret", up.Client())
	})
	env.provider.handle("PUT /oauth2/auth/requests/login/accept", http.StatusOK, `{"redirect_to":"http://hydra/after-google"}`)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/federation/google/callback?code=gcode&state=lc1", nil))
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	assert.Equal(t, "http://hydra/after-google", rec.Header().Get("Location"))

	tokenReqs := up.requestsTo("/token")
	require.Len(t, tokenReqs, 1)
	form, _ := url.ParseQuery(string(tokenReqs[0].Body))
	assert.Equal(t, "gcode", form.Get("code"))

	reqs := env.provider.requestsTo("/oauth2/auth/requests/login/accept")
	require.Len(t, reqs, 1)
	assert.Equal(t, "lc1", reqs[0].Query.Get("login_challenge"))
	assert.JSONEq(t,
		`{"subject":"google:1234567890","remember":false,"context":{"upstream":"google","email":"alice@example.com"}}`,
		string(reqs[0].Body))
}

func TestFederationCallbackWithoutState(t *testing.T) {
	up := newUpstream(t, "google-client")
	env := newTestEnv(t, func(o *Options) {
		o.Google = NewGoogleFederation(up.URL, "google-client", "google-secret", up.Client())
	})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/federation/google/callback?code=gcode", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "google:1234567890")
	assert.Contains(t, body, "alice@example.com")
	assert.NotContains(t, body, "upstream-access-token")
}

func TestFederationCallbackRejectsForeignAudience(t *testing.T) {
	up := newUpstream(t, "someone-else")
	env := newTestEnv(t, func(o *Options) {
		o.Google = NewGoogleFederation(up.URL, "google-client", "google-secret", up.Client())
	})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/federation/google/callback?code=gcode&state=lc1", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, env.provider.requestsTo("/oauth2/auth/requests/login/accept"))
}

func TestFederationUpstreamError(t *testing.T) {
	up := newUpstream(t, "google-client")
	env := newTestEnv(t, func(o *Options) {
		o.Google = NewGoogleFederation(up.URL, "google-client", "google-secret", up.Client())
	})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/federation/google/callback?error=access_denied", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "access_denied")
	assert.Empty(t, up.requestsTo("/token"))
}
