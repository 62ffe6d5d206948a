package web

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/wadahiro/hydralens/internal/exchange"
	"github.com/wadahiro/hydralens/internal/protocol"
)

func (h *Handler) oauthRoutes(r chi.Router) {
	r.Get("/callback", h.handleCallback)
	r.Post("/exchange", h.handleExchange)
}

// handleCallback shows the code and state the provider redirected back with.
func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.render(w, http.StatusOK, "callback", struct {
		pageMeta
		Code             string
		State            string
		Error            string
		ErrorDescription string
		RedirectURI      string
	}{
		pageMeta:         h.meta(r, "Callback"),
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
		RedirectURI:      callbackURL(r),
	})
}

// handleExchange redeems a code, sets the session cookies and sends the browser
// to the dashboard. JSON callers get the token response instead.
func (h *Handler) handleExchange(w http.ResponseWriter, r *http.Request) {
	tok, sessionSet, ok := h.runExchange(w, r)
	if !ok {
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, tokenResult(tok, sessionSet))
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// runExchange reads the exchange parameters, calls the orchestrator and writes
// the error response itself when it fails.
func (h *Handler) runExchange(w http.ResponseWriter, r *http.Request) (*exchange.TokenResponse, bool, bool) {
	p, err := readParams(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, exchange.ErrorInvalidRequest, err.Error())
		return nil, false, false
	}
	h.logger.Debug("Exchange request received", "fields", protocol.SortedKeys(url.Values(p)))

	tok, err := h.exchange.Exchange(r.Context(), exchange.Request{
		Code:         p.get("code"),
		RedirectURI:  p.get("redirect_uri"),
		ClientID:     p.get("client_id"),
		CodeVerifier: p.get("code_verifier"),
		ClientSecret: p.get("client_secret"),
	})
	if err != nil {
		h.relayError(w, r, "token", err)
		return nil, false, false
	}
	return tok, exchange.SetSessionCookies(w, r, tok), true
}

// tokenResult is the provider's token response plus session_set.
func tokenResult(tok *exchange.TokenResponse, sessionSet bool) map[string]any {
	out := make(map[string]any, len(tok.Raw)+1)
	for k, v := range tok.Raw {
		out[k] = v
	}
	out["session_set"] = sessionSet
	return out
}
