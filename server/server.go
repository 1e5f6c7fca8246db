package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/planb-provider/credentials"
	"github.com/jrsteele09/planb-provider/discovery"
	"github.com/jrsteele09/planb-provider/internal/config"
	"github.com/jrsteele09/planb-provider/internal/metrics"
	"github.com/jrsteele09/planb-provider/realms"
	"github.com/jrsteele09/planb-provider/token/jwt"
	"github.com/jrsteele09/planb-provider/token/keyring"
	"github.com/rs/zerolog/log"
)

const devEnv = "DEV"

type Server struct {
	env     string // Environment (e.g., "DEV", "PROD")
	mux     *http.ServeMux
	routes  []string
	config  config.Config
	metrics *metrics.Metrics // nil disables /metrics and request metrics

	ring      *keyring.KeyRing
	validator *credentials.Validator
	issuer    *jwt.Issuer
	publisher *discovery.Publisher
	limiters  []Middleware
	checks    []healthCheck
}

type Option func(*Server)

// WithMetrics records request and token metrics and serves /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithScopesSupported is passed through to the discovery document.
func WithScopesSupported(scopes []string) Option {
	return func(s *Server) {
		s.publisher = discovery.NewPublisher(s.ring,
			discovery.WithIssuer(s.config.GetIssuerURL()),
			discovery.WithScopesSupported(scopes),
		)
	}
}

// WithHealthCheck adds a dependency probe to /health, e.g. the realm store.
func WithHealthCheck(name string, check func(ctx context.Context) error) Option {
	return func(s *Server) {
		s.checks = append(s.checks, healthCheck{name: name, check: check})
	}
}

func New(cfg config.Config, registry *realms.Registry, ring *keyring.KeyRing, opts ...Option) (*Server, error) {
	if registry == nil || ring == nil {
		return nil, fmt.Errorf("[Server New] registry and key ring are required")
	}
	if err := validateIssuer(cfg.GetEnv(), cfg.GetIssuerURL()); err != nil {
		return nil, fmt.Errorf("[Server New] %w", err)
	}
	trustedProxies, err := ParseTrustedProxies(cfg.GetTrustedProxies())
	if err != nil {
		return nil, fmt.Errorf("[Server New] %w", err)
	}

	s := &Server{
		env:       cfg.GetEnv(),
		mux:       http.NewServeMux(),
		config:    cfg,
		ring:      ring,
		validator: credentials.NewValidator(registry),
		issuer: jwt.NewIssuer(ring,
			jwt.WithIssuer(cfg.GetIssuerURL()),
			jwt.WithTokenLifetime(cfg.GetTokenLifetime()),
		),
		publisher: discovery.NewPublisher(ring, discovery.WithIssuer(cfg.GetIssuerURL())),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.GetEnableRateLimiting() {
		window, burst := cfg.GetRateLimitWindow(), cfg.GetRateLimitBurst()
		s.limiters = []Middleware{
			// Per account, wherever the guesses come from.
			RateLimitMiddleware(RateLimitConfig{
				RequestsPerWindow: cfg.GetRateLimitRequests(),
				Window:            window,
				Burst:             burst,
			}, RealmPrincipalKeyExtractor),
			RateLimitMiddleware(RateLimitConfig{
				RequestsPerWindow: cfg.GetRateLimitAddressRequests(),
				Window:            window,
				Burst:             max(burst, cfg.GetRateLimitAddressRequests()),
			}, ForwardedIPKeyExtractor(trustedProxies)),
		}
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != devEnv {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		method, path, found := strings.Cut(route, " ")
		if !found {
			method, path = "", route
		}
		logRoute(method, path)
	}
}

func logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	log.Debug().Msgf("[%-19s] %s", color+paddedMethod+ResetColor, path)
}

// validateIssuer requires a fixed absolute issuer outside DEV. Deriving it from the
// request would let callers pick the iss of a signed token.
func validateIssuer(env, issuer string) error {
	if issuer == "" {
		if env == devEnv {
			return nil
		}
		return fmt.Errorf("ISSUER_URL is required when ENV=%s", env)
	}
	u, err := url.Parse(issuer)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" || u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("ISSUER_URL %q must be an absolute http(s) URL", issuer)
	}
	return nil
}

// issuerFor is the iss claim for tokens minted on r.
func (s *Server) issuerFor(r *http.Request) string {
	return s.publisher.Issuer(r)
}
