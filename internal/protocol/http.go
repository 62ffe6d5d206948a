package protocol

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// CleanGoErrorMessage removes Go HTTP client prefixes like `Get "http://...": `.
func CleanGoErrorMessage(msg string) string {
	for _, method := range []string{"Get", "Post", "Head", "Put", "Delete", "Patch"} {
		prefix := method + " \""
		if strings.HasPrefix(msg, prefix) {
			if idx := strings.Index(msg[len(prefix):], "\": "); idx >= 0 {
				return msg[len(prefix)+idx+3:]
			}
		}
	}
	return msg
}

// BuildWWWAuthenticate constructs an RFC 6750 WWW-Authenticate header value.
func BuildWWWAuthenticate(errCode, errDesc, metadataURL string) string {
	var parts []string
	if errCode != "" {
		parts = append(parts, fmt.Sprintf(`error="%s"`, errCode))
	}
	if errDesc != "" {
		parts = append(parts, fmt.Sprintf(`error_description="%s"`, errDesc))
	}
	if metadataURL != "" {
		parts = append(parts, fmt.Sprintf(`resource_metadata="%s"`, metadataURL))
	}
	if len(parts) == 0 {
		return "Bearer"
	}
	return "Bearer " + strings.Join(parts, ", ")
}

var wwwAuthParamRe = regexp.MustCompile(`(\w+)="([^"]*)"`)

// ParseWWWAuthenticate extracts error, error_description, and error_uri
// from a WWW-Authenticate header value (RFC 6750 Section 3).
func ParseWWWAuthenticate(value string) (errCode, errDesc, errURI string) {
	for _, match := range wwwAuthParamRe.FindAllStringSubmatch(value, -1) {
		switch match[1] {
		case "error":
			errCode = match[2]
		case "error_description":
			errDesc = match[2]
		case "error_uri":
			errURI = match[2]
		}
	}
	return
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(authorization string) (string, bool) {
	const prefix = "Bearer "
	if len(authorization) < len(prefix) || !strings.EqualFold(authorization[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(authorization[len(prefix):])
	return token, token != ""
}

// IsHTTPS reports whether the request reached us over TLS, directly or through
// a proxy that sets X-Forwarded-Proto.
func IsHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
