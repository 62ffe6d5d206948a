package hydra

import "encoding/json"

// OAuth2Client is the subset of a registered client this application reads.
type OAuth2Client struct {
	ClientID                string   `json:"client_id"`
	ClientName              string   `json:"client_name,omitempty"`
	RedirectURIs            []string `json:"redirect_uris,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
	Audience                []string `json:"audience,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
}

// IsPublic reports whether the client authenticates with "none".
func (c *OAuth2Client) IsPublic() bool {
	return c.TokenEndpointAuthMethod == AuthMethodNone
}

const (
	AuthMethodNone              = "none"
	AuthMethodClientSecretBasic = "client_secret_basic"
	AuthMethodClientSecretPost  = "client_secret_post"
)

// LoginRequest is returned by GET /oauth2/auth/requests/login.
type LoginRequest struct {
	Challenge                    string          `json:"challenge"`
	Client                       OAuth2Client    `json:"client"`
	RequestURL                   string          `json:"request_url"`
	RequestedScope               []string        `json:"requested_scope"`
	RequestedAccessTokenAudience []string        `json:"requested_access_token_audience"`
	Skip                         bool            `json:"skip"`
	Subject                      string          `json:"subject"`
	SessionID                    string          `json:"session_id,omitempty"`
	OIDCContext                  json.RawMessage `json:"oidc_context,omitempty"`
}

// AcceptLogin is the body of PUT /oauth2/auth/requests/login/accept.
type AcceptLogin struct {
	Subject     string         `json:"subject"`
	Remember    bool           `json:"remember"`
	RememberFor int            `json:"remember_for,omitempty"`
	ACR         string         `json:"acr,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
}

// ConsentRequest is returned by GET /oauth2/auth/requests/consent.
type ConsentRequest struct {
	Challenge                    string       `json:"challenge"`
	Client                       OAuth2Client `json:"client"`
	RequestURL                   string       `json:"request_url"`
	RequestedScope               []string     `json:"requested_scope"`
	RequestedAccessTokenAudience []string     `json:"requested_access_token_audience"`
	Skip                         bool         `json:"skip"`
	Subject                      string       `json:"subject"`
	LoginChallenge               string       `json:"login_challenge,omitempty"`
}

// AcceptConsent is the body of PUT /oauth2/auth/requests/consent/accept.
type AcceptConsent struct {
	GrantScope               []string        `json:"grant_scope"`
	GrantAccessTokenAudience []string        `json:"grant_access_token_audience"`
	Remember                 bool            `json:"remember"`
	RememberFor              int             `json:"remember_for,omitempty"`
	Session                  *ConsentSession `json:"session,omitempty"`
}

// ConsentSession carries extra claims for the issued tokens.
type ConsentSession struct {
	AccessToken map[string]any `json:"access_token,omitempty"`
	IDToken     map[string]any `json:"id_token,omitempty"`
}

// LogoutRequest is returned by GET /oauth2/auth/requests/logout.
type LogoutRequest struct {
	Challenge   string        `json:"challenge,omitempty"`
	Subject     string        `json:"subject"`
	SessionID   string        `json:"sid"`
	RequestURL  string        `json:"request_url"`
	RPInitiated bool          `json:"rp_initiated"`
	Client      *OAuth2Client `json:"client,omitempty"`
}

// Reject is the body of the reject endpoints.
type Reject struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorHint        string `json:"error_hint,omitempty"`
	StatusCode       int    `json:"status_code,omitempty"`
}

// Completed is the answer to accept/reject calls.
type Completed struct {
	RedirectTo string `json:"redirect_to"`
}
