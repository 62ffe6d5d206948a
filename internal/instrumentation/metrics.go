package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments. A nil *Metrics is valid and records nothing.
type Metrics struct {
	CodeExchanged     metric.Int64Counter
	TokenVerified     metric.Int64Counter
	JWKSFetched       metric.Int64Counter
	LoginAttempted    metric.Int64Counter
	RateLimitExceeded metric.Int64Counter
	ProviderErrors    metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.CodeExchanged, err = meter.Int64Counter(
		"hydralens.code.exchanged",
		metric.WithDescription("Authorization code exchanges by outcome"),
		metric.WithUnit("{exchange}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create code.exchanged counter: %w", err)
	}

	m.TokenVerified, err = meter.Int64Counter(
		"hydralens.id_token.verified",
		metric.WithDescription("ID token verifications by result"),
		metric.WithUnit("{verification}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create id_token.verified counter: %w", err)
	}

	m.JWKSFetched, err = meter.Int64Counter(
		"hydralens.jwks.fetched",
		metric.WithDescription("Key set fetches from the provider"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create jwks.fetched counter: %w", err)
	}

	m.LoginAttempted, err = meter.Int64Counter(
		"hydralens.login.attempted",
		metric.WithDescription("Credential checks on the login form"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create login.attempted counter: %w", err)
	}

	m.RateLimitExceeded, err = meter.Int64Counter(
		"hydralens.ratelimit.exceeded",
		metric.WithDescription("Requests rejected by the login rate limiter"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ratelimit.exceeded counter: %w", err)
	}

	m.ProviderErrors, err = meter.Int64Counter(
		"hydralens.provider.errors",
		metric.WithDescription("Provider API calls that failed"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider.errors counter: %w", err)
	}

	return m, nil
}

// RecordCodeExchange records an exchange outcome ("success", "invalid_grant",
// "invalid_client", "provider_error", "invalid_response", "network_error").
func (m *Metrics) RecordCodeExchange(ctx context.Context, outcome string, withSecret bool) {
	if m == nil {
		return
	}
	m.CodeExchanged.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.Bool("client_secret", withSecret),
	))
}

// RecordVerification records an ID token verification result.
func (m *Metrics) RecordVerification(ctx context.Context, result string, fallback bool) {
	if m == nil {
		return
	}
	m.TokenVerified.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", result),
		attribute.Bool("issuer_fallback", fallback),
	))
}

func (m *Metrics) RecordJWKSFetch(ctx context.Context, success bool) {
	if m == nil {
		return
	}
	m.JWKSFetched.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

func (m *Metrics) RecordLoginAttempt(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.LoginAttempted.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *Metrics) RecordRateLimitExceeded(ctx context.Context, limiter string) {
	if m == nil {
		return
	}
	m.RateLimitExceeded.Add(ctx, 1, metric.WithAttributes(attribute.String("limiter", limiter)))
}

// RecordProviderError records a failed admin/public API call. status is 0 for
// transport failures.
func (m *Metrics) RecordProviderError(ctx context.Context, operation string, status int) {
	if m == nil {
		return
	}
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Int("status", status),
	))
}
