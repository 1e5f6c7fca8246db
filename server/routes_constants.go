package server

import "github.com/jrsteele09/planb-provider/discovery"

// Route path constants
const (
	// OAuth2 / OIDC Routes
	RouteWellKnownOpenIDConfig = discovery.ConfigurationPath
	RouteOAuth2Token           = discovery.TokenPath
	RouteOAuth2Certs           = discovery.JWKSPath

	// Operational Routes
	RouteHealth  = "/health"
	RouteMetrics = "/metrics"
)
