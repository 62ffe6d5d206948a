// Package hydra is a small client for the admin and public HTTP APIs of an
// Ory Hydra compatible OAuth2/OIDC provider.
package hydra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// Client talks to both provider APIs with a shared http.Client.
type Client struct {
	adminURL   string
	publicURL  string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Client. Trailing slashes on the base URLs are ignored.
func New(adminURL, publicURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		adminURL:   strings.TrimRight(adminURL, "/"),
		publicURL:  strings.TrimRight(publicURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

func (c *Client) AdminURL() string  { return c.adminURL }
func (c *Client) PublicURL() string { return c.publicURL }

func (c *Client) TokenURL() string      { return c.publicURL + "/oauth2/token" }
func (c *Client) AuthURL() string       { return c.publicURL + "/oauth2/auth" }
func (c *Client) JWKSURL() string       { return c.publicURL + "/.well-known/jwks.json" }
func (c *Client) IntrospectURL() string { return c.publicURL + "/oauth2/introspect" }

// --- login ---

func (c *Client) GetLoginRequest(ctx context.Context, challenge string) (*LoginRequest, error) {
	var out LoginRequest
	if err := c.admin(ctx, http.MethodGet, "/oauth2/auth/requests/login", "login_challenge", challenge, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AcceptLoginRequest(ctx context.Context, challenge string, body AcceptLogin) (*Completed, error) {
	var out Completed
	if err := c.admin(ctx, http.MethodPut, "/oauth2/auth/requests/login/accept", "login_challenge", challenge, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RejectLoginRequest(ctx context.Context, challenge string, body Reject) (*Completed, error) {
	var out Completed
	if err := c.admin(ctx, http.MethodPut, "/oauth2/auth/requests/login/reject", "login_challenge", challenge, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- consent ---

func (c *Client) GetConsentRequest(ctx context.Context, challenge string) (*ConsentRequest, error) {
	var out ConsentRequest
	if err := c.admin(ctx, http.MethodGet, "/oauth2/auth/requests/consent", "consent_challenge", challenge, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AcceptConsentRequest(ctx context.Context, challenge string, body AcceptConsent) (*Completed, error) {
	var out Completed
	if err := c.admin(ctx, http.MethodPut, "/oauth2/auth/requests/consent/accept", "consent_challenge", challenge, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RejectConsentRequest(ctx context.Context, challenge string, body Reject) (*Completed, error) {
	var out Completed
	if err := c.admin(ctx, http.MethodPut, "/oauth2/auth/requests/consent/reject", "consent_challenge", challenge, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- logout ---

func (c *Client) GetLogoutRequest(ctx context.Context, challenge string) (*LogoutRequest, error) {
	var out LogoutRequest
	if err := c.admin(ctx, http.MethodGet, "/oauth2/auth/requests/logout", "logout_challenge", challenge, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AcceptLogoutRequest(ctx context.Context, challenge string) (*Completed, error) {
	var out Completed
	if err := c.admin(ctx, http.MethodPut, "/oauth2/auth/requests/logout/accept", "logout_challenge", challenge, struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RejectLogoutRequest answers with 204 and no redirect.
func (c *Client) RejectLogoutRequest(ctx context.Context, challenge string) error {
	return c.admin(ctx, http.MethodPut, "/oauth2/auth/requests/logout/reject", "logout_challenge", challenge, struct{}{}, nil)
}

// --- clients ---

// CreateClient registers a client. The request and response documents are passed
// through untouched so no provider field is lost.
func (c *Client) CreateClient(ctx context.Context, client json.RawMessage) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodPost, c.adminURL+"/clients", "/clients", jsonBody(client), "application/json", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListClients(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.adminURL+"/clients", "/clients", nil, "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetClient(ctx context.Context, id string) (*OAuth2Client, error) {
	path := "/clients/" + url.PathEscape(id)
	var out OAuth2Client
	if err := c.do(ctx, http.MethodGet, c.adminURL+path, path, nil, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- public API ---

// BasicAuth carries client credentials sent as an HTTP Basic Authorization header.
type BasicAuth struct {
	ClientID     string
	ClientSecret string
}

// PostForm sends a form-encoded body to a public endpoint such as /oauth2/token,
// /oauth2/introspect or /oauth2/revoke and returns the raw response body. When
// auth is non-nil the credentials go in the Authorization header, never the body.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values, auth *BasicAuth) (json.RawMessage, error) {
	var h http.Header
	if auth != nil && auth.ClientID != "" {
		req := &http.Request{Header: http.Header{}}
		req.SetBasicAuth(url.QueryEscape(auth.ClientID), url.QueryEscape(auth.ClientSecret))
		h = req.Header
	}
	var out json.RawMessage
	if err := c.do(ctx, http.MethodPost, c.publicURL+path, path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", h, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Token(ctx context.Context, form url.Values, auth *BasicAuth) (json.RawMessage, error) {
	return c.PostForm(ctx, "/oauth2/token", form, auth)
}

func (c *Client) Introspect(ctx context.Context, form url.Values, auth *BasicAuth) (json.RawMessage, error) {
	return c.PostForm(ctx, "/oauth2/introspect", form, auth)
}

func (c *Client) Revoke(ctx context.Context, form url.Values, auth *BasicAuth) (json.RawMessage, error) {
	return c.PostForm(ctx, "/oauth2/revoke", form, auth)
}

// UserInfo forwards the caller's Authorization header value.
func (c *Client) UserInfo(ctx context.Context, authorization string) (json.RawMessage, error) {
	h := http.Header{}
	if authorization != "" {
		h.Set("Authorization", authorization)
	}
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.publicURL+"/oauth2/userinfo", "/oauth2/userinfo", nil, "", h, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) WellKnown(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.publicURL+"/.well-known/openid-configuration", "/.well-known/openid-configuration", nil, "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) JWKS(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.JWKSURL(), "/.well-known/jwks.json", nil, "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// admin issues a challenge-scoped call against the admin API.
func (c *Client) admin(ctx context.Context, method, path, param, challenge string, in, out any) error {
	u := c.adminURL + path + "?" + url.Values{param: {challenge}}.Encode()
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}
	return c.do(ctx, method, u, path, body, contentType, nil, out)
}

func (c *Client) do(ctx context.Context, method, rawURL, path string, body io.Reader, contentType string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return fmt.Errorf("create %s %s request: %w", method, path, err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Header:     resp.Header.Clone(),
			Body:       data,
		}
		c.logger.Debug("Provider returned error", "method", method, "path", path, "status", resp.StatusCode)
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		if raw, ok := out.(*json.RawMessage); ok {
			*raw = json.RawMessage("{}")
		}
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], data...)
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func jsonBody(b json.RawMessage) io.Reader {
	if len(b) == 0 {
		return strings.NewReader("{}")
	}
	return bytes.NewReader(b)
}
