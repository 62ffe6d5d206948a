package web

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/wadahiro/hydralens/internal/exchange"
	"github.com/wadahiro/hydralens/internal/hydra"
	"github.com/wadahiro/hydralens/internal/idtoken"
	"github.com/wadahiro/hydralens/internal/users"
)

const testKID = "test-key"

// fakeProvider serves both provider APIs from one httptest server. Tests add
// routes to mux; every request is recorded.
type fakeProvider struct {
	*httptest.Server
	mux *http.ServeMux
	key *rsa.PrivateKey

	mu       sync.Mutex
	requests []recordedRequest
}

type recordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	fp := &fakeProvider{mux: http.NewServeMux(), key: key}
	fp.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fp.mu.Lock()
		fp.requests = append(fp.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		})
		fp.mu.Unlock()
		r.Body = io.NopCloser(strings.NewReader(string(body)))
		fp.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(fp.Close)

	jwks, err := json.Marshal(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key: &key.PublicKey, KeyID: testKID, Algorithm: "RS256", Use: "sig",
	}}})
	require.NoError(t, err)
	fp.mux.HandleFunc("GET /.well-known/jwks.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(jwks)
	})
	return fp
}

// handle registers a JSON responder.
func (fp *fakeProvider) handle(pattern string, status int, body string) {
	fp.mux.HandleFunc(pattern, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	})
}

func (fp *fakeProvider) requestsTo(path string) []recordedRequest {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	var out []recordedRequest
	for _, r := range fp.requests {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (fp *fakeProvider) idToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	base := jwt.MapClaims{
		"iss": fp.URL,
		"sub": "demo-user",
		"aud": "playground",
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
	for k, v := range claims {
		base[k] = v
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, base)
	tok.Header["kid"] = testKID
	s, err := tok.SignedString(fp.key)
	require.NoError(t, err)
	return s
}

type testEnv struct {
	provider *fakeProvider
	handler  *Handler
	router   http.Handler
	users    *users.Service
}

type envOption func(*Options)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	fp := newFakeProvider(t)

	hc := hydra.New(fp.URL, fp.URL, fp.Client(), nil)
	keys, err := idtoken.NewRemoteKeySet(hc.JWKSURL(), idtoken.WithHTTPClient(fp.Client()))
	require.NoError(t, err)

	svc := users.NewService(users.NewMemoryRepository(), nil)
	_, err = svc.SeedDemoUser(context.Background())
	require.NoError(t, err)

	o := Options{
		Hydra: hc,
		Exchange: exchange.New(hc.TokenURL(),
			exchange.WithClientLookup(hc),
			exchange.WithAdminURL(hc.AdminURL()),
			exchange.WithHTTPClient(fp.Client())),
		Verifier: idtoken.NewVerifier(fp.URL, keys),
		Users:    svc,
		Limiter:  NewRateLimiter(100, 100, 0),
	}
	for _, opt := range opts {
		opt(&o)
	}
	h, err := NewHandler(o)
	require.NoError(t, err)
	return &testEnv{provider: fp, handler: h, router: h.Routes(), users: svc}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func formRequest(method, target string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func jsonRequest(method, target string, body any) *http.Request {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, strings.NewReader(string(b)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
