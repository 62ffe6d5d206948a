package exchange

import (
	"net/http"

	"github.com/wadahiro/hydralens/internal/protocol"
)

// Cookie names holding the browser session.
const (
	AccessTokenCookie = "access_token"
	IDTokenCookie     = "id_token"
)

// SetSessionCookies stores the access and ID tokens as HttpOnly cookies and
// reports whether any cookie was set.
func SetSessionCookies(w http.ResponseWriter, r *http.Request, tok *TokenResponse) bool {
	if tok == nil {
		return false
	}
	secure := protocol.IsHTTPS(r)
	set := false
	if tok.AccessToken != "" {
		http.SetCookie(w, sessionCookie(AccessTokenCookie, tok.AccessToken, secure))
		set = true
	}
	if tok.IDToken != "" {
		http.SetCookie(w, sessionCookie(IDTokenCookie, tok.IDToken, secure))
		set = true
	}
	return set
}

// ClearSessionCookies expires both session cookies.
func ClearSessionCookies(w http.ResponseWriter, r *http.Request) {
	secure := protocol.IsHTTPS(r)
	for _, name := range []string{AccessTokenCookie, IDTokenCookie} {
		c := sessionCookie(name, "", secure)
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func sessionCookie(name, value string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
