package idtoken

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-jose/go-jose/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/wadahiro/hydralens/internal/instrumentation"
)

const (
	DefaultCacheMaxEntries = 5
	DefaultCacheMaxAge     = 10 * time.Minute

	maxJWKSBytes = 1 << 20
)

// KeySource resolves the public key for a token's kid.
type KeySource interface {
	PublicKey(ctx context.Context, kid string) (crypto.PublicKey, error)
}

type cachedKey struct {
	key       crypto.PublicKey
	fetchedAt time.Time
}

// RemoteKeySet fetches a provider's JWKS on demand and keeps individual keys in
// an LRU bounded by entry count and age. A miss always triggers a fresh fetch.
// Concurrent misses share one request; a duplicate fetch after a race is harmless.
type RemoteKeySet struct {
	jwksURL    string
	httpClient *http.Client
	cache      *lru.Cache[string, cachedKey]
	maxAge     time.Duration
	group      singleflight.Group
	now        func() time.Time
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
}

// KeySetOption configures a RemoteKeySet.
type KeySetOption func(*remoteKeySetConfig)

type remoteKeySetConfig struct {
	maxEntries int
	maxAge     time.Duration
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
	now        func() time.Time
}

func WithCacheMaxEntries(n int) KeySetOption {
	return func(c *remoteKeySetConfig) { c.maxEntries = n }
}

func WithCacheMaxAge(d time.Duration) KeySetOption {
	return func(c *remoteKeySetConfig) { c.maxAge = d }
}

func WithHTTPClient(hc *http.Client) KeySetOption {
	return func(c *remoteKeySetConfig) { c.httpClient = hc }
}

func WithKeySetLogger(l *slog.Logger) KeySetOption {
	return func(c *remoteKeySetConfig) { c.logger = l }
}

func WithKeySetMetrics(m *instrumentation.Metrics) KeySetOption {
	return func(c *remoteKeySetConfig) { c.metrics = m }
}

// NewRemoteKeySet creates a key source for the JWKS at jwksURL.
func NewRemoteKeySet(jwksURL string, opts ...KeySetOption) (*RemoteKeySet, error) {
	cfg := remoteKeySetConfig{
		maxEntries: DefaultCacheMaxEntries,
		maxAge:     DefaultCacheMaxAge,
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.maxEntries <= 0 {
		cfg.maxEntries = DefaultCacheMaxEntries
	}
	if cfg.maxAge <= 0 {
		cfg.maxAge = DefaultCacheMaxAge
	}

	cache, err := lru.New[string, cachedKey](cfg.maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create key cache: %w", err)
	}
	return &RemoteKeySet{
		jwksURL:    jwksURL,
		httpClient: cfg.httpClient,
		cache:      cache,
		maxAge:     cfg.maxAge,
		now:        cfg.now,
		logger:     cfg.logger,
		metrics:    cfg.metrics,
	}, nil
}

// PublicKey returns the verification key for kid. An empty kid matches the only
// signing key of a single-key set.
func (s *RemoteKeySet) PublicKey(ctx context.Context, kid string) (crypto.PublicKey, error) {
	if entry, ok := s.cache.Get(kid); ok {
		if s.now().Sub(entry.fetchedAt) < s.maxAge {
			return entry.key, nil
		}
		s.cache.Remove(kid)
	}

	// The fetch outlives any single caller; the HTTP client timeout bounds it.
	ch := s.group.DoChan(s.jwksURL, func() (any, error) {
		return s.fetch(context.WithoutCancel(ctx))
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrKeyFetchFailed, ctx.Err())
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Shared {
		s.logger.Debug("Shared JWKS fetch", "kid", kid)
	}

	keys := res.Val.([]jose.JSONWebKey)
	key, err := selectKey(keys, kid)
	if err != nil {
		return nil, err
	}
	s.cache.Add(kid, cachedKey{key: key, fetchedAt: s.now()})
	return key, nil
}

// Len returns the number of cached keys.
func (s *RemoteKeySet) Len() int {
	return s.cache.Len()
}

func (s *RemoteKeySet) fetch(ctx context.Context) ([]jose.JSONWebKey, error) {
	keys, err := s.doFetch(ctx)
	s.metrics.RecordJWKSFetch(ctx, err == nil)
	if err != nil {
		s.logger.Warn("JWKS fetch failed", "url", s.jwksURL, "error", err)
		return nil, err
	}
	s.logger.Debug("JWKS fetched", "url", s.jwksURL, "keys", len(keys))
	return keys, nil
}

func (s *RemoteKeySet) doFetch(ctx context.Context) ([]jose.JSONWebKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrKeyFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: JWKS endpoint returned %d", ErrKeyFetchFailed, resp.StatusCode)
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJWKSBytes)).Decode(&set); err != nil {
		return nil, fmt.Errorf("%w: decode JWKS: %w", ErrKeyFetchFailed, err)
	}
	return set.Keys, nil
}

// selectKey picks the asymmetric signing key matching kid.
func selectKey(keys []jose.JSONWebKey, kid string) (crypto.PublicKey, error) {
	var candidates []jose.JSONWebKey
	for _, k := range keys {
		if k.Use != "" && k.Use != "sig" {
			continue
		}
		if !isAsymmetric(k.Key) {
			continue
		}
		if kid == "" || k.KeyID == kid {
			candidates = append(candidates, k)
		}
	}

	if len(candidates) == 0 || (kid == "" && len(candidates) > 1) {
		return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, kid)
	}

	k := candidates[0]
	if !k.IsPublic() {
		k = k.Public()
	}
	return k.Key, nil
}

func isAsymmetric(key any) bool {
	switch key.(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey, ed25519.PublicKey,
		*rsa.PrivateKey, *ecdsa.PrivateKey, ed25519.PrivateKey:
		return true
	default:
		return false
	}
}
