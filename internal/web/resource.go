package web

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/wadahiro/hydralens/internal/protocol"
)

const (
	resourcePath         = "/demo/resource"
	resourceMetadataPath = "/.well-known/oauth-protected-resource" + resourcePath
)

// handleResource is a built-in protected resource. The Bearer token is checked
// through token introspection.
func (h *Handler) handleResource(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	metadataURL := baseURL(r) + resourceMetadataPath

	deny := func(status int, code, desc string) {
		if code == "" {
			// RFC 6750 3.1: no error code when the request had no credentials.
			w.Header().Set("WWW-Authenticate", protocol.BuildWWWAuthenticate("", "", metadataURL))
			writeError(w, status, "missing_token", desc)
			return
		}
		w.Header().Set("WWW-Authenticate", protocol.BuildWWWAuthenticate(code, desc, metadataURL))
		writeError(w, status, code, desc)
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		deny(http.StatusUnauthorized, "", "No Authorization header provided")
		return
	}
	token, ok := protocol.BearerToken(authHeader)
	if !ok {
		deny(http.StatusBadRequest, "invalid_request", "Authorization header must use Bearer scheme with a token")
		return
	}

	raw, err := h.hydra.Introspect(r.Context(), url.Values{
		"token":           {token},
		"token_type_hint": {"access_token"},
	}, nil)
	if err != nil {
		h.logger.Warn("Resource server introspection failed", "error", err)
		deny(http.StatusUnauthorized, "invalid_token", "Token introspection failed")
		return
	}

	var intro map[string]any
	if err := json.Unmarshal(raw, &intro); err != nil {
		deny(http.StatusUnauthorized, "invalid_token", "Invalid introspection response")
		return
	}
	if active, _ := intro["active"].(bool); !active {
		deny(http.StatusUnauthorized, "invalid_token", "Token is not active")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"resource_server":      baseURL(r) + resourcePath,
		"authorization_server": h.verifier.Issuer(),
		"timestamp":            time.Now().UTC().Format(time.RFC3339),
		"token_introspection":  intro,
	})
}

// handleResourceMetadata serves RFC 9728 protected resource metadata.
func (h *Handler) handleResourceMetadata(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"resource":                 baseURL(r) + resourcePath,
		"authorization_servers":    []string{h.verifier.Issuer()},
		"bearer_methods_supported": []string{"header"},
		"resource_name":            "hydralens demo resource",
	})
}
