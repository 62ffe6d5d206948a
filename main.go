package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wadahiro/hydralens/internal/config"
	"github.com/wadahiro/hydralens/internal/exchange"
	"github.com/wadahiro/hydralens/internal/hydra"
	"github.com/wadahiro/hydralens/internal/idtoken"
	"github.com/wadahiro/hydralens/internal/instrumentation"
	"github.com/wadahiro/hydralens/internal/protocol"
	"github.com/wadahiro/hydralens/internal/users"
	"github.com/wadahiro/hydralens/internal/web"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "-healthcheck" {
		healthURL := os.Getenv("HEALTHCHECK_URL")
		if healthURL == "" {
			healthURL = "http://localhost:3000/healthz"
		}
		client := &http.Client{Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}}
		resp, err := client.Get(healthURL)
		if err != nil || resp.StatusCode != 200 {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// CONFIG_FILE is optional; without it defaults and environment apply.
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel, cfg.LogFormat)

	if cfg.Timezone != "" && cfg.Timezone != "UTC" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			slog.Error("Invalid timezone", "timezone", cfg.Timezone, "error", err)
			os.Exit(1)
		}
		protocol.DisplayLocation = loc
		slog.Info("Display timezone configured", "timezone", cfg.Timezone)
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	if cfg.InsecureSkipVerify {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
		slog.Warn("TLS certificate verification is disabled")
	}

	inst, err := instrumentation.New(instrumentation.Config{Enabled: cfg.Metrics.Enabled})
	if err != nil {
		slog.Error("Failed to initialize metrics", "error", err)
		os.Exit(1)
	}
	metrics := inst.Metrics()

	ctx := context.Background()
	repo, closeRepo, err := openUserStore(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to open user store", "error", err)
		os.Exit(1)
	}
	defer closeRepo()

	userService := users.NewService(repo, slog.Default())
	if cfg.SeedEnabled() {
		if _, err := userService.SeedDemoUser(ctx); err != nil {
			slog.Error("Failed to seed demo user", "error", err)
			os.Exit(1)
		}
		slog.Info("Demo user available", "username", users.DemoUsername)
	}

	hydraClient := hydra.New(cfg.Hydra.AdminURL, cfg.Hydra.PublicURL, httpClient, slog.Default())

	keys, err := idtoken.NewRemoteKeySet(hydraClient.JWKSURL(),
		idtoken.WithCacheMaxEntries(cfg.JWKS.CacheMaxEntries),
		idtoken.WithCacheMaxAge(cfg.JWKS.CacheMaxAge),
		idtoken.WithHTTPClient(httpClient),
		idtoken.WithKeySetMetrics(metrics))
	if err != nil {
		slog.Error("Failed to create key set", "error", err)
		os.Exit(1)
	}
	verifier := idtoken.NewVerifier(cfg.Hydra.Issuer, keys,
		idtoken.WithLeeway(cfg.JWKS.Leeway),
		idtoken.WithMetrics(metrics))

	exchangeOpts := []exchange.Option{
		exchange.WithHTTPClient(httpClient),
		exchange.WithAdminURL(cfg.Hydra.AdminURL),
		exchange.WithMetrics(metrics),
	}
	if cfg.ClientAuthCheckEnabled() {
		exchangeOpts = append(exchangeOpts, exchange.WithClientLookup(hydraClient))
	}
	orchestrator := exchange.New(hydraClient.TokenURL(), exchangeOpts...)

	var google *web.GoogleFederation
	if cfg.Federation.Google.Enabled() {
		google = web.NewGoogleFederation("", cfg.Federation.Google.ClientID, cfg.Federation.Google.ClientSecret, httpClient)
		slog.Info("Google federation enabled")
	}

	trustedProxies, err := web.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		slog.Error("Invalid trusted_proxies", "error", err)
		os.Exit(1)
	}

	handler, err := web.NewHandler(web.Options{
		Hydra:    hydraClient,
		Exchange: orchestrator,
		Verifier: verifier,
		Users:    userService,
		Limiter:  web.NewRateLimiter(cfg.Login.RatePerSecond, cfg.Login.Burst, 0),
		Google:   google,
		Audience: cfg.Hydra.Audience,
		Metrics:  metrics,
		Logger:   slog.Default(),

		TrustedProxies: trustedProxies,
	})
	if err != nil {
		slog.Error("Failed to initialize handler", "error", err)
		os.Exit(1)
	}

	root := chi.NewRouter()
	root.Use(middleware.RequestID)
	root.Use(middleware.Recoverer)
	if h := inst.Handler(); h != nil {
		root.Handle(cfg.Metrics.Path, h)
		slog.Info("Metrics endpoint registered", "path", cfg.Metrics.Path)
	}
	root.Mount("/", handler.Routes())

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      root,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		var err error
		if cfg.TLSSelfSigned {
			tlsCert, certErr := generateSelfSignedTLSCert()
			if certErr != nil {
				slog.Error("Failed to generate self-signed TLS certificate", "error", certErr)
				os.Exit(1)
			}
			server.TLSConfig = &tls.Config{Certificates: []tls.Certificate{tlsCert}}
			slog.Info("Listening (TLS, self-signed)", "addr", cfg.ListenAddr)
			err = server.ListenAndServeTLS("", "")
		} else if cfg.TLSEnabled() {
			slog.Info("Listening (TLS)", "addr", cfg.ListenAddr)
			err = server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			slog.Info("Listening", "addr", cfg.ListenAddr,
				"hydra_admin", cfg.Hydra.AdminURL, "hydra_public", cfg.Hydra.PublicURL)
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-shutdown
	slog.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown failed", "error", err)
		os.Exit(1)
	}
	if err := inst.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Metrics shutdown failed", "error", err)
	}
	slog.Info("Server stopped")
}

// openUserStore uses Postgres when a DSN is configured and an in-memory store
// otherwise.
func openUserStore(ctx context.Context, dsn string) (users.Repository, func(), error) {
	if dsn == "" {
		slog.Info("Using in-memory user store")
		return users.NewMemoryRepository(), func() {}, nil
	}
	repo, err := users.OpenPostgres(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("Using Postgres user store")
	return repo, func() {
		if err := repo.Close(); err != nil {
			slog.Warn("Failed to close user store", "error", err)
		}
	}, nil
}

func setupLogger(level, format string) {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func generateSelfSignedTLSCert() (tls.Certificate, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("generate RSA key: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1)},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("create certificate: %w", err)
	}

	return tls.Certificate{
		Certificate: [][]byte{certDER},
		PrivateKey:  key,
	}, nil
}
