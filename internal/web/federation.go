package web

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-chi/chi/v5"
	"golang.org/x/oauth2"

	"github.com/wadahiro/hydralens/internal/hydra"
	"github.com/wadahiro/hydralens/internal/protocol"
)

// GoogleIssuer is the issuer discovered when no other is configured.
const GoogleIssuer = "https://accounts.google.com"

const googleCallbackPath = "/federation/google/callback"

// GoogleFederation signs users in with an upstream OpenID provider and maps
// them to "google:<sub>" subjects.
type GoogleFederation struct {
	issuer       string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	ctx          context.Context

	mu       sync.Mutex
	provider *gooidc.Provider
}

// NewGoogleFederation creates the federation. Discovery happens on first use.
// An empty issuer means GoogleIssuer.
func NewGoogleFederation(issuer, clientID, clientSecret string, httpClient *http.Client) *GoogleFederation {
	if issuer == "" {
		issuer = GoogleIssuer
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GoogleFederation{
		issuer:       issuer,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpClient,
		// go-oidc keeps this context for later key set refreshes.
		ctx:          gooidc.ClientContext(context.Background(), httpClient),
	}
}

func (g *GoogleFederation) discover() (*gooidc.Provider, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.provider != nil {
		return g.provider, nil
	}
	p, err := gooidc.NewProvider(g.ctx, g.issuer)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", g.issuer, err)
	}
	g.provider = p
	return p, nil
}

func (g *GoogleFederation) oauth2Config(p *gooidc.Provider, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     g.clientID,
		ClientSecret: g.clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     p.Endpoint(),
		Scopes:       []string{gooidc.ScopeOpenID, "email", "profile"},
	}
}

// upstreamIdentity is the verified result of an upstream login.
type upstreamIdentity struct {
	Subject string
	Claims  map[string]any
	Token   *oauth2.Token
}

func (g *GoogleFederation) authCodeURL(redirectURL, state string) (string, error) {
	p, err := g.discover()
	if err != nil {
		return "", err
	}
	return g.oauth2Config(p, redirectURL).AuthCodeURL(state), nil
}

// complete redeems code and verifies the returned ID token.
func (g *GoogleFederation) complete(ctx context.Context, redirectURL, code string) (*upstreamIdentity, error) {
	p, err := g.discover()
	if err != nil {
		return nil, err
	}
	ctx = gooidc.ClientContext(ctx, g.httpClient)

	tok, err := g.oauth2Config(p, redirectURL).Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange upstream code: %w", err)
	}
	rawID, ok := tok.Extra("id_token").(string)
	if !ok || rawID == "" {
		return nil, fmt.Errorf("upstream token response has no id_token")
	}
	idt, err := p.Verifier(&gooidc.Config{ClientID: g.clientID}).Verify(ctx, rawID)
	if err != nil {
		return nil, fmt.Errorf("verify upstream id_token: %w", err)
	}
	claims := map[string]any{}
	if err := idt.Claims(&claims); err != nil {
		return nil, fmt.Errorf("decode upstream claims: %w", err)
	}
	return &upstreamIdentity{Subject: "google:" + idt.Subject, Claims: claims, Token: tok}, nil
}

func (h *Handler) federationRoutes(r chi.Router) {
	r.Get("/google", h.handleGoogleStart)
	r.Get("/google/callback", h.handleGoogleCallback)
}

// handleGoogleStart redirects to the upstream provider. The provider login
// challenge travels in state.
func (h *Handler) handleGoogleStart(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		http.Error(w, "Google client not configured", http.StatusBadRequest)
		return
	}
	u, err := h.google.authCodeURL(baseURL(r)+googleCallbackPath, r.URL.Query().Get("login_challenge"))
	if err != nil {
		h.relayError(w, r, "google_discovery", err)
		return
	}
	http.Redirect(w, r, u, http.StatusFound)
}

func (h *Handler) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		http.Error(w, "Google client not configured", http.StatusBadRequest)
		return
	}
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		http.Error(w, fmt.Sprintf("upstream login failed: %s %s", e, q.Get("error_description")), http.StatusBadRequest)
		return
	}
	code := q.Get("code")
	if code == "" {
		http.Error(w, "code missing", http.StatusBadRequest)
		return
	}

	id, err := h.google.complete(r.Context(), baseURL(r)+googleCallbackPath, code)
	if err != nil {
		h.relayError(w, r, "google_callback", err)
		return
	}
	h.logger.Info("Upstream login verified", "subject", id.Subject)

	challenge := q.Get("state")
	if challenge == "" {
		// No provider login in progress; show what came back.
		h.render(w, http.StatusOK, "result", struct {
			pageMeta
			Params []protocol.KeyValue
		}{
			pageMeta: h.meta(r, "Google login"),
			Params:   identityParams(id),
		})
		return
	}

	accept := hydra.AcceptLogin{Subject: id.Subject, Context: map[string]any{"upstream": "google"}}
	if email, ok := id.Claims["email"].(string); ok {
		accept.Context["email"] = email
	}
	done, err := h.hydra.AcceptLoginRequest(r.Context(), challenge, accept)
	if err != nil {
		h.relayError(w, r, "accept_login", err)
		return
	}
	http.Redirect(w, r, done.RedirectTo, http.StatusFound)
}

func identityParams(id *upstreamIdentity) []protocol.KeyValue {
	out := []protocol.KeyValue{{Key: "subject", Value: id.Subject}}
	for _, k := range protocol.SortedKeys(id.Claims) {
		out = append(out, protocol.KeyValue{Key: "claim." + k, Value: protocol.FormatClaimValue(k, id.Claims[k])})
	}
	out = append(out, protocol.KeyValue{Key: "access_token", Value: protocol.Redact(id.Token.AccessToken)})
	return out
}
