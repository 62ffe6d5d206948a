package exchange

import (
	"errors"
	"fmt"
	"net/http"
)

// OAuth 2.0 error codes (RFC 6749 section 5.2) used for local diagnostics.
const (
	ErrorInvalidRequest = "invalid_request"
	ErrorInvalidClient  = "invalid_client"
	ErrorInvalidGrant   = "invalid_grant"
	ErrorServerError    = "server_error"
)

var (
	// ErrProviderUnavailable wraps transport failures talking to the token endpoint.
	ErrProviderUnavailable = errors.New("token endpoint unreachable")

	// ErrInvalidTokenResponse wraps a 2xx token response whose body is not a JSON object.
	ErrInvalidTokenResponse = errors.New("invalid token response")
)

// OAuthError is a failure diagnosed locally, before the token endpoint was called.
type OAuthError struct {
	Code        string            `json:"error"`
	Description string            `json:"error_description"`
	Hint        string            `json:"hint,omitempty"`
	HowToFix    map[string]string `json:"how_to_fix,omitempty"`
	Status      int               `json:"-"`
}

func (e *OAuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func errShortVerifier(length int) *OAuthError {
	return &OAuthError{
		Code:        ErrorInvalidGrant,
		Description: fmt.Sprintf("code_verifier is missing or too short (%d characters, at least 43 required)", length),
		Hint:        "Generate a new code_verifier and code_challenge pair and restart the authorization request.",
		Status:      http.StatusBadRequest,
	}
}

func errPublicClientWithSecret(clientID string) *OAuthError {
	return &OAuthError{
		Code:        ErrorInvalidClient,
		Description: "Public client must not send a client_secret.",
		Hint:        fmt.Sprintf("Client %q uses token_endpoint_auth_method=\"none\". Remove client_secret from the token request.", clientID),
		Status:      http.StatusUnauthorized,
	}
}

func errConfidentialWithoutSecret(adminURL, clientID, method string) *OAuthError {
	return &OAuthError{
		Code:        ErrorInvalidClient,
		Description: "Client authentication required. This client is configured as confidential.",
		Hint: fmt.Sprintf("Client uses token_endpoint_auth_method=%q. Either include client_secret (Basic auth) in the token request "+
			"or update the client to token_endpoint_auth_method=\"none\" for public PKCE.", method),
		HowToFix: map[string]string{
			"curl_update_client": fmt.Sprintf(
				`curl -X PUT %s/clients/%s -H 'Content-Type: application/json' -d '{"token_endpoint_auth_method":"none"}'`,
				adminURL, clientID),
		},
		Status: http.StatusUnauthorized,
	}
}

// ProviderError is a non-2xx token endpoint response, kept verbatim.
type ProviderError struct {
	StatusCode       int
	ContentType      string
	Body             []byte
	ErrorCode        string
	ErrorDescription string
}

func (e *ProviderError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("token endpoint returned %d: %s", e.StatusCode, e.ErrorCode)
	}
	return fmt.Sprintf("token endpoint returned %d", e.StatusCode)
}
