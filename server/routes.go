package server

func (s *Server) initRoutes() {
	// OAuth2 / OIDC API routes
	s.RegisterRouteHandler("GET "+RouteWellKnownOpenIDConfig, ChainMiddleware(s.WellKnownOpenIDConfig(), s.APIMiddleware(RouteWellKnownOpenIDConfig)...))
	s.RegisterRouteHandler("GET "+RouteOAuth2Certs, ChainMiddleware(s.JWKS(), s.APIMiddleware(RouteOAuth2Certs)...))
	s.RegisterRouteHandler("POST "+RouteOAuth2Token, ChainMiddleware(s.Token(), s.APIMiddleware(RouteOAuth2Token, s.TokenMiddleware()...)...))

	// CORS preflight
	for _, route := range []string{RouteWellKnownOpenIDConfig, RouteOAuth2Certs, RouteOAuth2Token} {
		s.RegisterRouteHandler("OPTIONS "+route, ChainMiddleware(s.Preflight(), s.APIMiddleware(route)...))
	}

	// Operational routes
	s.RegisterRouteHandler("GET "+RouteHealth, ChainMiddleware(s.Health(), s.RecoverMiddleware))
	if s.metrics != nil && s.config.GetMetricsEnabled() {
		s.RegisterRouteHandler("GET "+RouteMetrics, s.metrics.Handler())
	}
}
