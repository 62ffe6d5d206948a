package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wadahiro/hydralens/internal/exchange"
	"github.com/wadahiro/hydralens/internal/hydra"
	"github.com/wadahiro/hydralens/internal/protocol"
	"github.com/wadahiro/hydralens/internal/users"
)

// rememberFor is how long the provider remembers login and consent when the
// user ticks "remember".
const rememberFor = 3600

func (h *Handler) authRoutes(r chi.Router) {
	r.Get("/login", h.handleLoginPage)
	r.Post("/login", h.handleLogin)
	r.Post("/seed-user", h.handleSeedUser)
	r.Get("/users", h.handleListUsers)
	r.Get("/consent", h.handleConsentPage)
	r.Post("/consent", h.handleConsent)
	r.Get("/logout", h.handleLogoutPage)
	r.Post("/logout", h.handleLogout)
}

type loginPage struct {
	pageMeta
	Challenge     string
	Request       *hydra.LoginRequest
	RequestParams []protocol.KeyValue
	GoogleEnabled bool
	Error         string
}

func (h *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	challenge := r.URL.Query().Get("login_challenge")
	if challenge == "" {
		http.Error(w, "login_challenge missing", http.StatusBadRequest)
		return
	}
	lr, err := h.hydra.GetLoginRequest(r.Context(), challenge)
	if err != nil {
		h.relayError(w, r, "get_login_request", err)
		return
	}

	// The provider already authenticated this subject; no form needed.
	if lr.Skip {
		done, err := h.hydra.AcceptLoginRequest(r.Context(), challenge, hydra.AcceptLogin{Subject: lr.Subject})
		if err != nil {
			h.relayError(w, r, "accept_login", err)
			return
		}
		http.Redirect(w, r, done.RedirectTo, http.StatusFound)
		return
	}

	h.render(w, http.StatusOK, "login", loginPage{
		pageMeta:      h.meta(r, "Sign in"),
		Challenge:     challenge,
		Request:       lr,
		RequestParams: protocol.ParseURLParams(lr.RequestURL),
		GoogleEnabled: h.google != nil,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ip := h.clientIP(r)
	if !h.limiter.Allow(ip) {
		h.metrics.RecordRateLimitExceeded(r.Context(), "login")
		h.logger.Warn("Login rate limit exceeded", "ip", ip)
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many login attempts, slow down")
		return
	}

	p, err := readParams(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, exchange.ErrorInvalidRequest, err.Error())
		return
	}
	challenge := p.get("challenge")
	if challenge == "" {
		http.Error(w, "login challenge missing", http.StatusBadRequest)
		return
	}
	username := p.getDefault("username", users.DemoUsername)
	password := p.getDefault("password", users.DemoPassword)

	user, err := h.users.Verify(r.Context(), username, password)
	if errors.Is(err, users.ErrInvalidCredentials) {
		h.metrics.RecordLoginAttempt(r.Context(), "invalid_credentials")
		h.logger.Info("Login rejected", "username", username)
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if err != nil {
		h.metrics.RecordLoginAttempt(r.Context(), "error")
		h.relayError(w, r, "verify_user", err)
		return
	}
	h.metrics.RecordLoginAttempt(r.Context(), "success")

	accept := hydra.AcceptLogin{Subject: user.Username}
	if remember, _ := strconv.ParseBool(p.get("remember")); remember {
		accept.Remember = true
		accept.RememberFor = rememberFor
	}
	done, err := h.hydra.AcceptLoginRequest(r.Context(), challenge, accept)
	if err != nil {
		h.relayError(w, r, "accept_login", err)
		return
	}
	h.logger.Info("Login accepted", "subject", user.Username)
	http.Redirect(w, r, done.RedirectTo, http.StatusFound)
}

func (h *Handler) handleSeedUser(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, exchange.ErrorInvalidRequest, err.Error())
		return
	}
	u, err := h.users.Create(r.Context(),
		p.getDefault("username", users.DemoUsername),
		p.getDefault("password", users.DemoPassword),
		nil)
	if errors.Is(err, users.ErrUsernameTaken) {
		writeError(w, http.StatusConflict, "username_taken", err.Error())
		return
	}
	if err != nil {
		h.relayError(w, r, "create_user", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": u.ID})
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.users.List(r.Context())
	if err != nil {
		h.relayError(w, r, "list_users", err)
		return
	}
	type userView struct {
		ID       string         `json:"id"`
		Username string         `json:"username"`
		Profile  map[string]any `json:"profile"`
	}
	out := make([]userView, 0, len(list))
	for _, u := range list {
		profile := u.Profile
		if profile == nil {
			profile = map[string]any{}
		}
		out = append(out, userView{ID: u.ID.String(), Username: u.Username, Profile: profile})
	}
	writeJSON(w, http.StatusOK, out)
}

type consentPage struct {
	pageMeta
	Challenge string
	Request   *hydra.ConsentRequest
}

func (h *Handler) handleConsentPage(w http.ResponseWriter, r *http.Request) {
	challenge := r.URL.Query().Get("consent_challenge")
	if challenge == "" {
		http.Error(w, "consent_challenge missing", http.StatusBadRequest)
		return
	}
	cr, err := h.hydra.GetConsentRequest(r.Context(), challenge)
	if err != nil {
		h.relayError(w, r, "get_consent_request", err)
		return
	}

	if cr.Skip {
		h.acceptConsent(w, r, challenge, cr, cr.RequestedScope, false)
		return
	}

	h.render(w, http.StatusOK, "consent", consentPage{
		pageMeta:  h.meta(r, "Consent"),
		Challenge: challenge,
		Request:   cr,
	})
}

func (h *Handler) handleConsent(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, exchange.ErrorInvalidRequest, err.Error())
		return
	}
	challenge := p.get("challenge")
	if challenge == "" {
		http.Error(w, "consent challenge missing", http.StatusBadRequest)
		return
	}

	if p.get("action") == "deny" {
		done, err := h.hydra.RejectConsentRequest(r.Context(), challenge, hydra.Reject{
			Error:            "access_denied",
			ErrorDescription: "The resource owner denied the request",
		})
		if err != nil {
			h.relayError(w, r, "reject_consent", err)
			return
		}
		http.Redirect(w, r, done.RedirectTo, http.StatusFound)
		return
	}

	cr, err := h.hydra.GetConsentRequest(r.Context(), challenge)
	if err != nil {
		h.relayError(w, r, "get_consent_request", err)
		return
	}
	remember, _ := strconv.ParseBool(p.get("remember"))
	h.acceptConsent(w, r, challenge, cr, p.list("grant_scope"), remember)
}

// acceptConsent grants scopes and copies the user's profile into the ID token.
func (h *Handler) acceptConsent(w http.ResponseWriter, r *http.Request, challenge string, cr *hydra.ConsentRequest, scopes []string, remember bool) {
	if scopes == nil {
		scopes = []string{}
	}
	audience := cr.RequestedAccessTokenAudience
	if audience == nil {
		audience = []string{}
	}
	body := hydra.AcceptConsent{
		GrantScope:               scopes,
		GrantAccessTokenAudience: audience,
		Remember:                 remember,
	}
	if remember {
		body.RememberFor = rememberFor
	}
	if u, err := h.users.Find(r.Context(), cr.Subject); err == nil && len(u.Profile) > 0 {
		body.Session = &hydra.ConsentSession{IDToken: u.Profile}
	}

	done, err := h.hydra.AcceptConsentRequest(r.Context(), challenge, body)
	if err != nil {
		h.relayError(w, r, "accept_consent", err)
		return
	}
	h.logger.Info("Consent accepted", "subject", cr.Subject, "scopes", scopes)
	http.Redirect(w, r, done.RedirectTo, http.StatusFound)
}

type logoutPage struct {
	pageMeta
	Challenge string
	Request   *hydra.LogoutRequest
}

func (h *Handler) handleLogoutPage(w http.ResponseWriter, r *http.Request) {
	challenge := r.URL.Query().Get("logout_challenge")
	if challenge == "" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("No logout_challenge provided"))
		return
	}
	lr, err := h.hydra.GetLogoutRequest(r.Context(), challenge)
	if err != nil {
		h.relayError(w, r, "get_logout_request", err)
		return
	}
	h.render(w, http.StatusOK, "logout", logoutPage{
		pageMeta:  h.meta(r, "Sign out"),
		Challenge: challenge,
		Request:   lr,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, exchange.ErrorInvalidRequest, err.Error())
		return
	}
	challenge := p.get("challenge")
	action := p.get("action")

	// Without a challenge only the local session is cleared.
	if challenge == "" || action == "local" {
		exchange.ClearSessionCookies(w, r)
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	if action == "deny" {
		if err := h.hydra.RejectLogoutRequest(r.Context(), challenge); err != nil {
			h.relayError(w, r, "reject_logout", err)
			return
		}
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	done, err := h.hydra.AcceptLogoutRequest(r.Context(), challenge)
	if err != nil {
		h.relayError(w, r, "accept_logout", err)
		return
	}
	exchange.ClearSessionCookies(w, r)
	http.Redirect(w, r, done.RedirectTo, http.StatusFound)
}
