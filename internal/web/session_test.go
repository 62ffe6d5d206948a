package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionRequest(path, idToken string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if idToken != "" {
		req.AddCookie(&http.Cookie{Name: "id_token", Value: idToken})
	}
	return req
}

func TestSession(t *testing.T) {
	env := newTestEnv(t)

	t.Run("no cookie", func(t *testing.T) {
		rec := env.do(sessionRequest("/session", ""))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"loggedIn":false}`, rec.Body.String())
	})

	t.Run("garbage cookie", func(t *testing.T) {
		rec := env.do(sessionRequest("/session", "garbage"))
		assert.JSONEq(t, `{"loggedIn":false}`, rec.Body.String())
	})

	t.Run("verified", func(t *testing.T) {
		rec := env.do(sessionRequest("/session", env.provider.idToken(t, nil)))
		got := decodeJSON(t, rec)
		assert.Equal(t, true, got["loggedIn"])
		assert.Equal(t, true, got["verified"])
		claims, _ := got["claims"].(map[string]any)
		assert.Equal(t, "demo-user", claims["sub"])
	})

	t.Run("expired", func(t *testing.T) {
		tok := env.provider.idToken(t, jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()})
		got := decodeJSON(t, env.do(sessionRequest("/session", tok)))
		assert.Equal(t, true, got["loggedIn"])
		assert.Equal(t, false, got["verified"])
	})
}

func TestSessionIssuerFallback(t *testing.T) {
	env := newTestEnv(t)
	// Same provider reached under another base URL.
	tok := env.provider.idToken(t, jwt.MapClaims{"iss": "http://127.0.0.1:4444/"})

	got := decodeJSON(t, env.do(sessionRequest("/session", tok)))
	assert.Equal(t, true, got["verified"])
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(sessionRequest("/dashboard", env.provider.idToken(t, jwt.MapClaims{"email": "demo-user@example.com"})))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "demo-user@example.com")

	expired := env.provider.idToken(t, jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()})
	rec = env.do(sessionRequest("/dashboard", expired))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "token expired")
}

func TestSessionVerificationScope(t *testing.T) {
	env := newTestEnv(t)

	// Signed by the provider's key under a kid its JWKS no longer lists.
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss": env.provider.URL,
		"sub": "demo-user",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	tok.Header["kid"] = "rotated-key"
	stale, err := tok.SignedString(env.provider.key)
	require.NoError(t, err)

	for _, path := range []string{"/static/style.css", "/healthz", "/static/ui.js", "/demo/pkce"} {
		rec := env.do(sessionRequest(path, stale))
		require.Equal(t, http.StatusOK, rec.Code, path)
	}
	assert.Empty(t, env.provider.requestsTo("/.well-known/jwks.json"))

	rec := env.do(sessionRequest("/dashboard", stale))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "demo-user")
	assert.Len(t, env.provider.requestsTo("/.well-known/jwks.json"), 1)
}

func TestResultPageListsParams(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/result?zeta=last&alpha=first", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Less(t, strings.Index(body, "alpha"), strings.Index(body, "zeta"))
}
