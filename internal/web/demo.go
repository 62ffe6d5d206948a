package web

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/oauth2"

	"github.com/wadahiro/hydralens/internal/exchange"
	"github.com/wadahiro/hydralens/internal/hydra"
	"github.com/wadahiro/hydralens/internal/idtoken"
	"github.com/wadahiro/hydralens/internal/protocol"
)

const defaultScope = "openid offline"

func (h *Handler) demoRoutes(r chi.Router) {
	r.Get("/well-known", h.handleWellKnown)
	r.Get("/jwks", h.handleJWKS)
	r.Get("/pkce", h.handlePKCE)
	r.Get("/authorize-url", h.handleAuthorizeURL)
	r.Post("/token", h.handleTokenPassthrough)
	r.Post("/token/exchange", h.handleTokenPassthrough)
	r.Post("/token/refresh", h.handleRefresh)
	r.Post("/token/revoke", h.handleRevoke)
	r.Post("/token/introspect", h.handleIntrospect)
	r.Post("/exchange-pkce", h.handleExchangePKCE)
	r.Post("/userinfo", h.handleUserInfo)
	r.Post("/verify", h.handleDecode)
	r.Post("/verify/full", h.handleVerify)
	r.Get("/resource", h.handleResource)
}

func (h *Handler) handleWellKnown(w http.ResponseWriter, r *http.Request) {
	doc, err := h.hydra.WellKnown(r.Context())
	if err != nil {
		h.relayError(w, r, "well_known", err)
		return
	}
	writeRawJSON(w, http.StatusOK, doc)
}

func (h *Handler) handleJWKS(w http.ResponseWriter, r *http.Request) {
	doc, err := h.hydra.JWKS(r.Context())
	if err != nil {
		h.relayError(w, r, "jwks", err)
		return
	}
	writeRawJSON(w, http.StatusOK, doc)
}

func (h *Handler) handlePKCE(w http.ResponseWriter, r *http.Request) {
	verifier, err := protocol.GenerateVerifier()
	if err != nil {
		h.relayError(w, r, "pkce", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"verifier":              verifier,
		"challenge":             protocol.DeriveChallenge(verifier),
		"code_challenge_method": protocol.PKCEMethodS256,
	})
}

// handleAuthorizeURL builds an authorization request. The PKCE verifier is
// returned to the caller and not kept here.
func (h *Handler) handleAuthorizeURL(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	clientID := q.Get("client_id")
	if clientID == "" {
		writeError(w, http.StatusBadRequest, exchange.ErrorInvalidRequest, "client_id is required")
		return
	}
	redirectURI := q.Get("redirect_uri")
	if redirectURI == "" {
		redirectURI = callbackURL(r)
	}
	scope := q.Get("scope")
	if scope == "" {
		scope = defaultScope
	}

	state, err := protocol.RandomHex(16)
	if err != nil {
		h.relayError(w, r, "authorize_url", err)
		return
	}
	nonce, err := protocol.RandomHex(16)
	if err != nil {
		h.relayError(w, r, "authorize_url", err)
		return
	}

	cfg := &oauth2.Config{
		ClientID:    clientID,
		RedirectURL: redirectURI,
		Endpoint:    oauth2.Endpoint{AuthURL: h.hydra.AuthURL(), TokenURL: h.hydra.TokenURL()},
		Scopes:      strings.Fields(scope),
	}
	opts := []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("nonce", nonce)}
	out := map[string]any{
		"client_id":    clientID,
		"redirect_uri": redirectURI,
		"state":        state,
		"nonce":        nonce,
	}

	if q.Get("pkce") != "false" {
		verifier, err := protocol.GenerateVerifier()
		if err != nil {
			h.relayError(w, r, "authorize_url", err)
			return
		}
		challenge := protocol.DeriveChallenge(verifier)
		opts = append(opts,
			oauth2.SetAuthURLParam("code_challenge", challenge),
			oauth2.SetAuthURLParam("code_challenge_method", protocol.PKCEMethodS256))
		out["verifier"] = verifier
		out["challenge"] = challenge
		out["code_challenge_method"] = protocol.PKCEMethodS256
	}

	out["url"] = cfg.AuthCodeURL(state, opts...)
	writeJSON(w, http.StatusOK, out)
}

// handleTokenPassthrough forwards the body to the token endpoint unchanged.
func (h *Handler) handleTokenPassthrough(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, exchange.ErrorInvalidRequest, err.Error())
		return
	}
	form := url.Values(p)
	if form.Get("grant_type") == "" {
		form.Set("grant_type", "authorization_code")
	}
	tok, err := h.hydra.Token(r.Context(), form, nil)
	if err != nil {
		h.relayError(w, r, "token", err)
		return
	}
	writeRawJSON(w, http.StatusOK, tok)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, exchange.ErrorInvalidRequest, err.Error())
		return
	}
	if p.get("refresh_token") == "" {
		writeError(w, http.StatusBadRequest, exchange.ErrorInvalidRequest, "refresh_token is required")
		return
	}
	form := p.fields("refresh_token", "scope")
	form.Set("grant_type", "refresh_token")
	auth := clientAuth(p, form)

	tok, err := h.hydra.Token(r.Context(), form, auth)
	if err != nil {
		h.relayError(w, r, "refresh", err)
		return
	}
	writeRawJSON(w, http.StatusOK, tok)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, exchange.ErrorInvalidRequest, err.Error())
		return
	}
	if p.get("token") == "" {
		writeError(w, http.StatusBadRequest, exchange.ErrorInvalidRequest, "token is required")
		return
	}
	form := p.fields("token", "token_type_hint")
	auth := clientAuth(p, form)

	data, err := h.hydra.Revoke(r.Context(), form, auth)
	if err != nil {
		h.relayError(w, r, "revoke", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"revoked": true, "data": data})
}

func (h *Handler) handleIntrospect(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, exchange.ErrorInvalidRequest, err.Error())
		return
	}
	if p.get("token") == "" {
		writeError(w, http.StatusBadRequest, exchange.ErrorInvalidRequest, "token is required")
		return
	}
	form := p.fields("token", "token_type_hint", "scope")
	auth := clientAuth(p, form)

	data, err := h.hydra.Introspect(r.Context(), form, auth)
	if err != nil {
		h.relayError(w, r, "introspect", err)
		return
	}
	writeRawJSON(w, http.StatusOK, data)
}

// clientAuth sends credentials as HTTP Basic when a secret is present and
// otherwise identifies a public client by client_id in the body.
func clientAuth(p params, form url.Values) *hydra.BasicAuth {
	id, secret := p.get("client_id"), p.get("client_secret")
	if secret != "" {
		return &hydra.BasicAuth{ClientID: id, ClientSecret: secret}
	}
	if id != "" {
		form.Set("client_id", id)
	}
	return nil
}

func (h *Handler) handleExchangePKCE(w http.ResponseWriter, r *http.Request) {
	tok, sessionSet, ok := h.runExchange(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, tokenResult(tok, sessionSet))
}

// handleUserInfo forwards the caller's Authorization header, or the session
// access token when there is none.
func (h *Handler) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	authz := r.Header.Get("Authorization")
	if authz == "" {
		if c, err := r.Cookie(exchange.AccessTokenCookie); err == nil && c.Value != "" {
			authz = "Bearer " + c.Value
		}
	}
	data, err := h.hydra.UserInfo(r.Context(), authz)
	if err != nil {
		h.relayError(w, r, "userinfo", err)
		return
	}
	writeRawJSON(w, http.StatusOK, data)
}

// handleDecode splits a token into header, payload and signature without
// checking anything.
func (h *Handler) handleDecode(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, exchange.ErrorInvalidRequest, err.Error())
		return
	}
	decoded, err := protocol.DecodeJWT(p.get("token"))
	if err != nil {
		writeError(w, http.StatusBadRequest, exchange.ErrorInvalidRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, decoded)
}

// handleVerify runs full ID token verification against the provider key set.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, exchange.ErrorInvalidRequest, err.Error())
		return
	}
	raw := p.get("token")
	if raw == "" {
		raw = sessionToken(r)
	}
	audience := p.getDefault("audience", h.audience)

	claims, err := h.verifier.Verify(r.Context(), raw, audience)
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]any{"valid": true, "claims": claims})
		return
	}

	var verr *idtoken.VerificationError
	if !errors.As(err, &verr) {
		h.relayError(w, r, "verify", err)
		return
	}
	status := http.StatusUnauthorized
	if verr.Retryable() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"valid":             false,
		"error":             verr.Code(),
		"error_description": err.Error(),
		"retryable":         verr.Retryable(),
		"payload":           verr.Payload,
	})
}
