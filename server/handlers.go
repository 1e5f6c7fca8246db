package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const healthCheckTimeout = 2 * time.Second

type healthCheck struct {
	name  string
	check func(ctx context.Context) error
}

type healthResponse struct {
	Status       string            `json:"status"`
	ActiveKeyID  string            `json:"active_kid,omitempty"`
	PublishedKey int               `json:"published_keys"`
	Checks       map[string]string `json:"checks,omitempty"`
}

// Health reports ready once the key ring has an active signing key and every
// registered dependency check passes.
func (s *Server) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", PublishedKey: len(s.ring.VerificationKeys())}
		status := http.StatusOK

		active, err := s.ring.SigningKey()
		if err != nil {
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			resp.ActiveKeyID = active.KeyID
		}

		if len(s.checks) > 0 {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()
			resp.Checks = make(map[string]string, len(s.checks))
			for _, c := range s.checks {
				if err := c.check(ctx); err != nil {
					log.Warn().Err(err).Str("check", c.name).Msg("health check failed")
					resp.Checks[c.name] = "unavailable"
					resp.Status = "unavailable"
					status = http.StatusServiceUnavailable
					continue
				}
				resp.Checks[c.name] = "ok"
			}
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// Preflight answers OPTIONS requests that CorsMiddleware let through.
func (s *Server) Preflight() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", s.config.GetAllowedMethods())
		w.WriteHeader(http.StatusNoContent)
	}
}
