package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/wadahiro/hydralens/internal/exchange"
	"github.com/wadahiro/hydralens/internal/idtoken"
	"github.com/wadahiro/hydralens/internal/protocol"
)

type sessionKey struct{}

// sessionState is the outcome of verifying the request's session token.
type sessionState struct {
	claims idtoken.Claims
	err    error
}

var errSessionNotJWT = errors.New("session token is not a JWT")

// UserFromContext returns the verified ID token claims attached by attachUser.
func UserFromContext(ctx context.Context) (idtoken.Claims, bool) {
	st, ok := ctx.Value(sessionKey{}).(sessionState)
	if !ok || st.err != nil {
		return nil, false
	}
	return st.claims, true
}

// sessionError returns why attachUser rejected the session token, if it did.
func sessionError(ctx context.Context) error {
	st, _ := ctx.Value(sessionKey{}).(sessionState)
	return st.err
}

// sessionToken returns the ID token from the id_token cookie, falling back to a
// Bearer Authorization header.
func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(exchange.IDTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if tok, ok := protocol.BearerToken(r.Header.Get("Authorization")); ok {
		return tok
	}
	return ""
}

// attachUser verifies the session ID token, when present, and stores the result
// in the request context. It never rejects a request.
func (h *Handler) attachUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := sessionToken(r)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		st := sessionState{err: errSessionNotJWT}
		if protocol.IsJWT(raw) {
			st.claims, st.err = h.verifier.Verify(r.Context(), raw, h.audience)
		}
		if st.err != nil {
			h.logger.Debug("Session token not verified", "error", st.err)
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, st)))
	})
}

// pageMeta is shared by every rendered page.
type pageMeta struct {
	Title string
	User  idtoken.Claims
}

func (h *Handler) meta(r *http.Request, title string) pageMeta {
	u, _ := UserFromContext(r.Context())
	return pageMeta{Title: title, User: u}
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "index", struct {
		pageMeta
		AdminURL      string
		PublicURL     string
		Issuer        string
		GoogleEnabled bool
	}{
		pageMeta:      h.meta(r, "Home"),
		AdminURL:      h.hydra.AdminURL(),
		PublicURL:     h.hydra.PublicURL(),
		Issuer:        h.verifier.Issuer(),
		GoogleEnabled: h.google != nil,
	})
}

func (h *Handler) handleFlows(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "flows", struct {
		pageMeta
		ClientID    string
		RedirectURI string
	}{
		pageMeta:    h.meta(r, "Flows"),
		ClientID:    r.URL.Query().Get("client_id"),
		RedirectURI: callbackURL(r),
	})
}

// handleSession reports the session ID token claims. Claims are decoded without
// verification; verified tells whether attachUser accepted the token.
func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(exchange.IDTokenCookie)
	if err != nil || c.Value == "" {
		writeJSON(w, http.StatusOK, map[string]any{"loggedIn": false})
		return
	}
	claims, err := protocol.UnverifiedClaims(c.Value)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"loggedIn": false})
		return
	}
	_, verified := UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"loggedIn": true,
		"claims":   claims,
		"verified": verified,
	})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	data := struct {
		pageMeta
		Claims      map[string]any
		Verified    bool
		VerifyError string
	}{pageMeta: h.meta(r, "Dashboard")}

	if user, ok := UserFromContext(r.Context()); ok {
		data.Claims = user
		data.Verified = true
	} else if c, err := r.Cookie(exchange.IDTokenCookie); err == nil && c.Value != "" {
		claims, err := protocol.UnverifiedClaims(c.Value)
		if err != nil {
			data.Claims = map[string]any{"error": err.Error()}
		} else {
			data.Claims = claims
		}
		if err := sessionError(r.Context()); err != nil {
			data.VerifyError = err.Error()
		}
	}
	h.render(w, http.StatusOK, "dashboard", data)
}

func (h *Handler) handleResult(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "result", struct {
		pageMeta
		Params []protocol.KeyValue
	}{
		pageMeta: h.meta(r, "Result"),
		Params:   protocol.SortedParams(r.URL.Query()),
	})
}

// callbackURL is this application's /oauth/callback as seen by the browser.
func callbackURL(r *http.Request) string {
	return baseURL(r) + "/oauth/callback"
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if protocol.IsHTTPS(r) {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
