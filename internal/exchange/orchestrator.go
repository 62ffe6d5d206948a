// Package exchange redeems authorization codes at the provider's token endpoint
// with PKCE, diagnosing common client misconfigurations before the call.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"

	"github.com/wadahiro/hydralens/internal/hydra"
	"github.com/wadahiro/hydralens/internal/instrumentation"
	"github.com/wadahiro/hydralens/internal/protocol"
)

// ClientLookup resolves a registered client through the admin API.
type ClientLookup interface {
	GetClient(ctx context.Context, clientID string) (*hydra.OAuth2Client, error)
}

// Request is one authorization code redemption.
type Request struct {
	Code         string
	RedirectURI  string
	ClientID     string
	CodeVerifier string
	ClientSecret string
}

// Orchestrator performs PKCE code exchanges.
type Orchestrator struct {
	tokenURL   string
	adminURL   string
	lookup     ClientLookup
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClientLookup enables the token_endpoint_auth_method check.
func WithClientLookup(l ClientLookup) Option {
	return func(o *Orchestrator) { o.lookup = l }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(o *Orchestrator) { o.httpClient = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithMetrics(m *instrumentation.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithAdminURL sets the admin base URL shown in remediation commands.
func WithAdminURL(u string) Option {
	return func(o *Orchestrator) { o.adminURL = u }
}

// New creates an Orchestrator posting to tokenURL.
func New(tokenURL string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		tokenURL:   tokenURL,
		adminURL:   "http://localhost:4445",
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.httpClient == nil {
		o.httpClient = http.DefaultClient
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Exchange validates the request, checks the client's authentication method when a
// lookup is configured, then redeems the code. Errors are *OAuthError for local
// rejections, *ProviderError for non-2xx provider answers, or wrap
// ErrProviderUnavailable.
func (o *Orchestrator) Exchange(ctx context.Context, req Request) (*TokenResponse, error) {
	withSecret := req.ClientSecret != ""

	if len(req.CodeVerifier) < protocol.MinVerifierLength {
		o.metrics.RecordCodeExchange(ctx, ErrorInvalidGrant, withSecret)
		return nil, errShortVerifier(len(req.CodeVerifier))
	}

	if err := o.checkClientAuth(ctx, req); err != nil {
		o.metrics.RecordCodeExchange(ctx, err.Code, withSecret)
		return nil, err
	}

	o.logger.Debug("Exchanging authorization code",
		"token_url", o.tokenURL,
		"client_id", req.ClientID,
		"redirect_uri", req.RedirectURI,
		"code_verifier", protocol.Redact(req.CodeVerifier),
		"client_secret", protocol.Redact(req.ClientSecret),
	)

	tok, err := o.redeem(ctx, req)
	if err != nil {
		var pe *ProviderError
		switch {
		case errors.As(err, &pe):
			o.metrics.RecordCodeExchange(ctx, "provider_error", withSecret)
			o.metrics.RecordProviderError(ctx, "token", pe.StatusCode)
			o.logger.Warn("Token endpoint rejected code exchange",
				"client_id", req.ClientID, "status", pe.StatusCode, "error", pe.ErrorCode)
		case errors.Is(err, ErrInvalidTokenResponse):
			o.metrics.RecordCodeExchange(ctx, "invalid_response", withSecret)
			o.logger.Warn("Token endpoint returned an undecodable response",
				"client_id", req.ClientID, "error", err)
		default:
			o.metrics.RecordCodeExchange(ctx, "network_error", withSecret)
			o.metrics.RecordProviderError(ctx, "token", 0)
			o.logger.Error("Token endpoint unreachable", "client_id", req.ClientID, "error", err)
		}
		return nil, err
	}

	o.metrics.RecordCodeExchange(ctx, "success", withSecret)
	o.logger.Info("Authorization code exchanged",
		"client_id", req.ClientID, "fields", protocol.SortedKeys(tok.Raw))
	return tok, nil
}

// checkClientAuth compares the secret presence with the registered auth method.
// A lookup failure only skips the check.
func (o *Orchestrator) checkClientAuth(ctx context.Context, req Request) *OAuthError {
	if o.lookup == nil || req.ClientID == "" {
		return nil
	}
	client, err := o.lookup.GetClient(ctx, req.ClientID)
	if err != nil {
		o.logger.Warn("Client lookup failed, skipping auth method check",
			"client_id", req.ClientID, "error", err)
		return nil
	}

	method := client.TokenEndpointAuthMethod
	switch {
	case method == hydra.AuthMethodNone && req.ClientSecret != "":
		return errPublicClientWithSecret(req.ClientID)
	case method != "" && method != hydra.AuthMethodNone && req.ClientSecret == "":
		return errConfidentialWithoutSecret(o.adminURL, url.PathEscape(req.ClientID), method)
	}
	return nil
}

func (o *Orchestrator) redeem(ctx context.Context, req Request) (*TokenResponse, error) {
	cfg := &oauth2.Config{
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		RedirectURL:  req.RedirectURI,
		Endpoint: oauth2.Endpoint{
			TokenURL:  o.tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	opts := []oauth2.AuthCodeOption{oauth2.VerifierOption(req.CodeVerifier)}
	if req.ClientSecret != "" {
		cfg.Endpoint.AuthStyle = oauth2.AuthStyleInHeader
		// AuthStyleInHeader form-encodes id and secret before Basic encoding
		// (RFC 6749 2.3.1) and drops client_id from the body; keep it there too.
		opts = append(opts, oauth2.SetAuthURLParam("client_id", req.ClientID))
	}

	rec := newTokenRecorder(o.httpClient.Transport)
	hc := &http.Client{Transport: rec, Timeout: o.httpClient.Timeout}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)

	_, err := cfg.Exchange(ctx, req.Code, opts...)
	resp := rec.recorded()

	if resp == nil {
		if err == nil {
			err = errors.New("no response from token endpoint")
		}
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	if !resp.successful() {
		return nil, resp.providerError()
	}

	// A 2xx answer is relayed even when x/oauth2 objects to its content
	// (for example a body without access_token).
	if err != nil {
		o.logger.Debug("Token response accepted despite client-side parse error", "error", err)
	}
	return parseTokenResponse(resp.Body)
}
