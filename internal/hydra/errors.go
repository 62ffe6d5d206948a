package hydra

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// APIError is a non-2xx answer from the admin or public API. Body is kept
// verbatim so callers can relay it unchanged.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (e *APIError) Error() string {
	if code, desc := e.OAuthError(); code != "" {
		if desc != "" {
			return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.StatusCode, code, desc)
		}
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, code)
	}
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
}

// OAuthError extracts the RFC 6749 error fields from the body, if any.
func (e *APIError) OAuthError() (code, description string) {
	var body struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if json.Unmarshal(e.Body, &body) != nil {
		return "", ""
	}
	return body.Error, body.ErrorDescription
}

// ContentType returns the response content type, defaulting to JSON.
func (e *APIError) ContentType() string {
	if ct := e.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/json"
}
