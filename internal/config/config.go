package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config is the top-level configuration.
type Config struct {
	ListenAddr         string           `toml:"listen_addr"`
	InsecureSkipVerify bool             `toml:"insecure_skip_verify"`
	LogLevel           string           `toml:"log_level"`
	LogFormat          string           `toml:"log_format"`
	Timezone           string           `toml:"timezone"`
	TLSCertPath        string           `toml:"tls_cert_path"`
	TLSKeyPath         string           `toml:"tls_key_path"`
	TLSSelfSigned      bool             `toml:"tls_self_signed"`
	HTTPTimeout        time.Duration    `toml:"http_timeout"`
	DatabaseURL        string           `toml:"database_url"`
	TrustedProxies     []string         `toml:"trusted_proxies"` // CIDRs allowed to set X-Forwarded-For
	SeedDemoUser       *bool            `toml:"seed_demo_user"` // default: true
	Hydra              HydraConfig      `toml:"hydra"`
	JWKS               JWKSConfig       `toml:"jwks"`
	Federation         FederationConfig `toml:"federation"`
	Metrics            MetricsConfig    `toml:"metrics"`
	Login              LoginConfig      `toml:"login"`
}

// HydraConfig points at the admin and public APIs of the provider.
type HydraConfig struct {
	AdminURL  string `toml:"admin_url"`
	PublicURL string `toml:"public_url"`
	Issuer    string `toml:"issuer"`   // defaults to public_url
	Audience  string `toml:"audience"` // expected aud when verifying session id_tokens (optional)

	// CheckClientAuthMethod enables the admin lookup of token_endpoint_auth_method
	// before a PKCE exchange. Default: true.
	CheckClientAuthMethod *bool `toml:"check_client_auth_method"`

	// VerifierStorage records where the PKCE verifier lives between the
	// authorization and exchange steps. Only "client" is supported.
	VerifierStorage string `toml:"verifier_storage"`
}

// JWKSConfig bounds the signing key cache.
type JWKSConfig struct {
	CacheMaxEntries int           `toml:"cache_max_entries"`
	CacheMaxAge     time.Duration `toml:"cache_max_age"`
	Leeway          time.Duration `toml:"leeway"`
}

// FederationConfig holds upstream identity providers.
type FederationConfig struct {
	Google GoogleConfig `toml:"google"`
}

// GoogleConfig enables "Sign in with Google" when both fields are set.
type GoogleConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// Enabled reports whether Google federation is configured.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// LoginConfig throttles credential submissions per client IP.
type LoginConfig struct {
	RatePerSecond float64 `toml:"rate_per_second"`
	Burst         int     `toml:"burst"`
}

// Load reads the configuration from an optional TOML file, then applies .env and
// environment overrides. An empty path means defaults plus environment only.
func Load(path string) (*Config, error) {
	cfg := &Config{
		ListenAddr: ":3000",
		LogLevel:   "info",
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	applyEnv(cfg)

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.ListenAddr = ":" + v
	}
	if v := os.Getenv("HYDRA_ADMIN_URL"); v != "" {
		cfg.Hydra.AdminURL = v
	}
	if v := os.Getenv("HYDRA_PUBLIC_URL"); v != "" {
		cfg.Hydra.PublicURL = v
	}
	if v := os.Getenv("HYDRA_ISSUER"); v != "" {
		cfg.Hydra.Issuer = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("OAUTH_GOOGLE_CLIENT_ID"); v != "" {
		cfg.Federation.Google.ClientID = v
	}
	if v := os.Getenv("OAUTH_GOOGLE_CLIENT_SECRET"); v != "" {
		cfg.Federation.Google.ClientSecret = v
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = strings.Split(v, ",")
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SEED_DEMO_USER"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.SeedDemoUser = &b
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":3000"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	if cfg.SeedDemoUser == nil {
		t := true
		cfg.SeedDemoUser = &t
	}

	if cfg.Hydra.AdminURL == "" {
		cfg.Hydra.AdminURL = "http://localhost:4445"
	}
	if cfg.Hydra.PublicURL == "" {
		cfg.Hydra.PublicURL = "http://localhost:4444"
	}
	cfg.Hydra.AdminURL = strings.TrimRight(cfg.Hydra.AdminURL, "/")
	cfg.Hydra.PublicURL = strings.TrimRight(cfg.Hydra.PublicURL, "/")
	if cfg.Hydra.Issuer == "" {
		cfg.Hydra.Issuer = cfg.Hydra.PublicURL
	}
	if cfg.Hydra.CheckClientAuthMethod == nil {
		t := true
		cfg.Hydra.CheckClientAuthMethod = &t
	}
	if cfg.Hydra.VerifierStorage == "" {
		cfg.Hydra.VerifierStorage = "client"
	}

	if cfg.JWKS.CacheMaxEntries <= 0 {
		cfg.JWKS.CacheMaxEntries = 5
	}
	if cfg.JWKS.CacheMaxAge <= 0 {
		cfg.JWKS.CacheMaxAge = 10 * time.Minute
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Login.RatePerSecond <= 0 {
		cfg.Login.RatePerSecond = 1
	}
	if cfg.Login.Burst <= 0 {
		cfg.Login.Burst = 5
	}
}

func validate(cfg *Config) error {
	if cfg.TLSSelfSigned && (cfg.TLSCertPath != "" || cfg.TLSKeyPath != "") {
		return fmt.Errorf("tls_self_signed and tls_cert_path/tls_key_path are mutually exclusive")
	}
	if (cfg.TLSCertPath != "") != (cfg.TLSKeyPath != "") {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be specified together")
	}

	switch strings.ToLower(cfg.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("log_format %q: must be text or json", cfg.LogFormat)
	}

	if err := validateURL("hydra.admin_url", cfg.Hydra.AdminURL); err != nil {
		return err
	}
	if err := validateURL("hydra.public_url", cfg.Hydra.PublicURL); err != nil {
		return err
	}
	if err := validateURL("hydra.issuer", cfg.Hydra.Issuer); err != nil {
		return err
	}
	if cfg.Hydra.VerifierStorage != "client" {
		return fmt.Errorf("hydra.verifier_storage %q: only \"client\" is supported", cfg.Hydra.VerifierStorage)
	}

	g := cfg.Federation.Google
	if (g.ClientID != "") != (g.ClientSecret != "") {
		return fmt.Errorf("federation.google: both client_id and client_secret must be specified together")
	}
	return nil
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: invalid URL %q: %w", field, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s %q: scheme must be http or https", field, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s %q: host is required", field, raw)
	}
	return nil
}

// TLSEnabled returns true if TLS is configured (self-signed or cert files).
func (c *Config) TLSEnabled() bool {
	return c.TLSSelfSigned || (c.TLSCertPath != "" && c.TLSKeyPath != "")
}

// ClientAuthCheckEnabled reports whether the exchange should look up the client's
// token endpoint auth method first.
func (c *Config) ClientAuthCheckEnabled() bool {
	return c.Hydra.CheckClientAuthMethod != nil && *c.Hydra.CheckClientAuthMethod
}

// SeedEnabled reports whether the demo user is created at startup.
func (c *Config) SeedEnabled() bool {
	return c.SeedDemoUser != nil && *c.SeedDemoUser
}
