// Package web serves the playground UI and the JSON demo endpoints that drive
// the provider's login, consent, logout and token flows.
package web

import (
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"

	"github.com/wadahiro/hydralens/internal/exchange"
	"github.com/wadahiro/hydralens/internal/hydra"
	"github.com/wadahiro/hydralens/internal/idtoken"
	"github.com/wadahiro/hydralens/internal/instrumentation"
	"github.com/wadahiro/hydralens/internal/users"
)

// Options wires the handler's collaborators.
type Options struct {
	Hydra    *hydra.Client
	Exchange *exchange.Orchestrator
	Verifier *idtoken.Verifier
	Users    *users.Service
	Limiter  *RateLimiter
	Google   *GoogleFederation // nil disables federation
	Audience string            // expected aud for session ID tokens, optional
	Metrics  *instrumentation.Metrics
	Logger   *slog.Logger

	// TrustedProxies may set X-Forwarded-For / X-Real-IP. Empty means the
	// socket peer is always the client.
	TrustedProxies []netip.Prefix
}

// Handler serves every playground route.
type Handler struct {
	hydra     *hydra.Client
	exchange  *exchange.Orchestrator
	verifier  *idtoken.Verifier
	users     *users.Service
	limiter   *RateLimiter
	google    *GoogleFederation
	audience  string
	metrics   *instrumentation.Metrics
	logger    *slog.Logger
	templates map[string]*template.Template

	trustedProxies []netip.Prefix
}

// NewHandler validates opts and parses the page templates.
func NewHandler(opts Options) (*Handler, error) {
	if opts.Hydra == nil || opts.Exchange == nil || opts.Verifier == nil || opts.Users == nil {
		return nil, fmt.Errorf("web: hydra client, exchange, verifier and users are required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Limiter == nil {
		opts.Limiter = NewRateLimiter(1, 5, 0)
	}
	tmpls, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	return &Handler{
		hydra:     opts.Hydra,
		exchange:  opts.Exchange,
		verifier:  opts.Verifier,
		users:     opts.Users,
		limiter:   opts.Limiter,
		google:    opts.Google,
		audience:  opts.Audience,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		templates: tmpls,

		trustedProxies: opts.TrustedProxies,
	}, nil
}

// Routes returns a router with all playground endpoints registered.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	staticFS, _ := fs.Sub(staticFiles, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	r.Get("/healthz", handleHealthz)
	r.Get(resourceMetadataPath, h.handleResourceMetadata)
	r.Route("/demo", h.demoRoutes)

	// Pages show the signed-in user.
	r.Group(func(r chi.Router) {
		r.Use(h.attachUser)

		r.Get("/", h.handleIndex)
		r.Get("/flows", h.handleFlows)

		r.Route("/auth", h.authRoutes)
		r.Route("/clients", h.clientRoutes)
		r.Route("/oauth", h.oauthRoutes)
		r.Route("/federation", h.federationRoutes)

		r.Get("/session", h.handleSession)
		r.Get("/dashboard", h.handleDashboard)
		r.Get("/result", h.handleResult)
	})
	return r
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}
