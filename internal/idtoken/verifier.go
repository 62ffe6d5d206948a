// Package idtoken verifies ID tokens issued by the provider against its
// published key set.
package idtoken

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wadahiro/hydralens/internal/instrumentation"
	"github.com/wadahiro/hydralens/internal/protocol"
)

// AsymmetricAlgorithms are the only signing algorithms accepted.
var AsymmetricAlgorithms = []string{
	"RS256", "RS384", "RS512",
	"PS256", "PS384", "PS512",
	"ES256", "ES384", "ES512",
	"EdDSA",
}

// Claims is a verified token payload.
type Claims map[string]any

func (c Claims) Subject() string {
	s, _ := c["sub"].(string)
	return s
}

func (c Claims) Issuer() string {
	s, _ := c["iss"].(string)
	return s
}

// Verifier checks signature, issuer, audience and expiry of ID tokens.
type Verifier struct {
	keys    KeySource
	issuer  string
	leeway  time.Duration
	now     func() time.Time
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// Option configures a Verifier.
type Option func(*Verifier)

func WithLeeway(d time.Duration) Option {
	return func(v *Verifier) { v.leeway = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(v *Verifier) { v.logger = l }
}

func WithMetrics(m *instrumentation.Metrics) Option {
	return func(v *Verifier) { v.metrics = m }
}

// WithClock overrides the time source used for exp/nbf checks.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// NewVerifier creates a Verifier expecting tokens from issuer, with keys
// resolved through keys.
func NewVerifier(issuer string, keys KeySource, opts ...Option) *Verifier {
	v := &Verifier{
		keys:   keys,
		issuer: issuer,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Issuer returns the configured issuer.
func (v *Verifier) Issuer() string {
	return v.issuer
}

// Verify validates raw and returns its claims. audience is checked only when
// non-empty.
//
// When the only problem is the issuer and the token names a different issuer
// of its own, verification is repeated expecting that issuer, so a provider
// reachable under several base URLs still verifies. Keys always come from the
// configured key source. If the retry fails the original error is returned.
func (v *Verifier) Verify(ctx context.Context, raw, audience string) (Claims, error) {
	claims, err := v.verify(ctx, raw, v.issuer, audience)
	if err == nil {
		v.metrics.RecordVerification(ctx, "ok", false)
		return claims, nil
	}

	var verr *VerificationError
	if !errors.As(err, &verr) || verr.Kind != ErrIssuerMismatch {
		v.record(ctx, err, false)
		return nil, err
	}

	tokenIssuer, _ := verr.Payload["iss"].(string)
	if tokenIssuer == "" || sameIssuer(tokenIssuer, v.issuer) {
		v.record(ctx, err, false)
		return nil, err
	}

	v.logger.Info("Retrying ID token verification with token issuer",
		"configured_issuer", v.issuer, "token_issuer", tokenIssuer)
	claims, retryErr := v.verify(ctx, raw, tokenIssuer, audience)
	if retryErr != nil {
		v.logger.Debug("Issuer fallback failed", "error", retryErr)
		v.record(ctx, err, true)
		return nil, err
	}
	v.metrics.RecordVerification(ctx, "ok", true)
	return claims, nil
}

func (v *Verifier) verify(ctx context.Context, raw, issuer, audience string) (Claims, error) {
	payload, _ := protocol.UnverifiedClaims(raw)
	fail := func(kind, cause error) error {
		return &VerificationError{Kind: kind, Err: cause, Payload: payload}
	}

	if raw == "" {
		return nil, fail(ErrMalformedToken, errors.New("token is empty"))
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(AsymmetricAlgorithms),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	mc := jwt.MapClaims{}
	_, err := jwt.NewParser(opts...).ParseWithClaims(raw, mc, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return v.keys.PublicKey(ctx, kid)
	})
	if err != nil {
		if alg, kid := protocol.ExtractJWTHeaderInfo(raw); alg != "" {
			v.logger.Debug("ID token rejected", "alg", alg, "kid", kid, "error", err)
		}
		return nil, fail(classify(err), err)
	}

	iss, _ := mc["iss"].(string)
	if !sameIssuer(iss, issuer) {
		return nil, fail(ErrIssuerMismatch, fmt.Errorf("token issuer %q does not match expected %q", iss, issuer))
	}
	return Claims(mc), nil
}

func (v *Verifier) record(ctx context.Context, err error, fallback bool) {
	result := "verification_failed"
	var verr *VerificationError
	if errors.As(err, &verr) {
		result = verr.Code()
	}
	v.metrics.RecordVerification(ctx, result, fallback)
}

// classify maps parser and key source errors onto the failure kinds.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrKeyFetchFailed):
		return ErrKeyFetchFailed
	case errors.Is(err, ErrKeyNotFound):
		return ErrSignatureInvalid
	case errors.Is(err, jwt.ErrTokenMalformed), errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return ErrMalformedToken
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return ErrTokenNotYetValid
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrAudienceMismatch
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrIssuerMismatch
	default:
		return ErrMalformedToken
	}
}

// sameIssuer compares issuer URLs ignoring a trailing slash.
func sameIssuer(a, b string) bool {
	return a != "" && strings.TrimRight(a, "/") == strings.TrimRight(b, "/")
}
