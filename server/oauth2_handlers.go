package server

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/jrsteele09/planb-provider/credentials"
	"github.com/jrsteele09/planb-provider/discovery"
	"github.com/jrsteele09/planb-provider/internal/errors"
	"github.com/jrsteele09/planb-provider/oauth2"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"

	storeRetryAfterSeconds = "5"

	// Must stay well below KEY_ROTATION_INTERVAL.
	keysCacheControl = "public, max-age=300"
)

// WellKnownOpenIDConfig serves the OIDC discovery document
func (s *Server) WellKnownOpenIDConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc := s.publisher.Document(discovery.EffectiveScheme(r), r.Host)

		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", keysCacheControl)
		// URLs in the document follow the request's host and scheme.
		w.Header().Add("Vary", "Host")
		w.Header().Add("Vary", "X-Forwarded-Proto")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		_ = json.NewEncoder(w).Encode(doc)
	}
}

// JWKS returns the JSON Web Key Set used to validate tokens
func (s *Server) JWKS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", keysCacheControl)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		_ = json.NewEncoder(w).Encode(s.publisher.JWKS())
	}
}

// Token exchanges user or client credentials for a signed token
func (s *Server) Token() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			s.writeTokenError(w, r, "", errors.Wrapf(errors.ErrInvalidRequest, "parse form: %v", err))
			return
		}

		req := credentials.Request{
			GrantType: r.FormValue(oauth2.FieldGrantType),
			Realm:     r.FormValue(oauth2.FieldRealm),
			Username:  r.FormValue(oauth2.FieldUsername),
			Password:  r.FormValue(oauth2.FieldPassword),
			ClientID:  r.FormValue(oauth2.FieldClientID),
			Secret:    r.FormValue(oauth2.FieldClientSecret),
			Scope:     r.FormValue(oauth2.FieldScope),
		}
		if req.ClientID == "" {
			if id, secret, ok := basicClientCredentials(r); ok {
				req.ClientID, req.Secret = id, secret
			}
		}

		grant, err := credentials.ParseGrant(req)
		if err != nil {
			s.writeTokenError(w, r, oauth2.GrantType(req.GrantType), err)
			return
		}

		principal, err := s.validator.Validate(r.Context(), grant)
		if err != nil {
			s.writeTokenError(w, r, grant.Type(), err)
			return
		}

		tokenResponse, err := s.issuer.IssueAs(s.issuerFor(r), principal)
		if err != nil {
			s.writeTokenError(w, r, grant.Type(), err)
			return
		}

		if s.metrics != nil {
			s.metrics.TokensIssued.WithLabelValues(principal.Realm, string(grant.Type())).Inc()
		}
		log.Debug().
			Str("realm", principal.Realm).
			Str("sub", principal.Subject).
			Str("kind", string(principal.Kind)).
			Str("grant_type", string(grant.Type())).
			Msg("token issued")

		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		_ = json.NewEncoder(w).Encode(tokenResponse)
	}
}

// basicClientCredentials reads client_secret_basic credentials, which are form-encoded
// before being base64 encoded (RFC 6749 section 2.3.1).
func basicClientCredentials(r *http.Request) (string, string, bool) {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return "", "", false
	}
	id, err := url.QueryUnescape(user)
	if err != nil {
		return "", "", false
	}
	secret, err := url.QueryUnescape(pass)
	if err != nil {
		return "", "", false
	}
	return id, secret, true
}

// oauthError maps an error onto an HTTP status and OAuth2 error code.
func oauthError(err error, grantType oauth2.GrantType) (int, string, string) {
	switch {
	case errors.Is(err, errors.ErrInvalidGrantType):
		return http.StatusBadRequest, oauth2.ErrorUnsupportedGrantType, "grant_type must be password or client_credentials"
	case errors.Is(err, errors.ErrUnknownRealm):
		return http.StatusBadRequest, oauth2.ErrorInvalidRequest, "unknown realm"
	case errors.Is(err, errors.ErrInvalidRequest):
		return http.StatusBadRequest, oauth2.ErrorInvalidRequest, err.Error()
	case errors.Is(err, errors.ErrInvalidCredentials):
		if grantType == oauth2.ClientCredentialsGrant {
			return http.StatusUnauthorized, oauth2.ErrorInvalidClient, "client authentication failed"
		}
		return http.StatusBadRequest, oauth2.ErrorInvalidGrant, "invalid username or password"
	case errors.Is(err, errors.ErrInvalidScope):
		return http.StatusBadRequest, oauth2.ErrorInvalidScope, "requested scope exceeds the granted entitlement"
	case errors.Is(err, errors.ErrCredentialStoreUnavailable):
		return http.StatusServiceUnavailable, oauth2.ErrorTemporarilyUnavailable, "credential store unavailable, retry later"
	default:
		return http.StatusInternalServerError, oauth2.ErrorServerError, "internal error"
	}
}

func (s *Server) writeTokenError(w http.ResponseWriter, r *http.Request, grantType oauth2.GrantType, err error) {
	status, code, description := oauthError(err, grantType)

	switch {
	case status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("token request failed")
	case status == http.StatusServiceUnavailable:
		log.Warn().Err(err).Msg("credential store unavailable")
		w.Header().Set("Retry-After", storeRetryAfterSeconds)
	default:
		log.Debug().Err(err).Str("error_code", code).Msg("token request rejected")
	}

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Basic realm="oauth2"`)
	}
	if s.metrics != nil {
		s.metrics.TokenErrors.WithLabelValues(code).Inc()
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	writeJSONError(w, code, description, status)
}

// writeJSONError writes an OAuth2 error response
func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(oauth2.ErrorResponse{
		Error:            errorCode,
		ErrorDescription: description,
	})
}
