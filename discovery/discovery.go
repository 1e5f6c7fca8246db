// Package discovery builds the OpenID Connect discovery document and the JWKS.
package discovery

import (
	"net/http"
	"sort"
	"strings"

	"github.com/go-jose/go-jose/v4"
	"github.com/jrsteele09/planb-provider/oauth2"
	"github.com/jrsteele09/planb-provider/token/keyring"
)

// Well-known paths served by the provider.
const (
	ConfigurationPath = "/.well-known/openid-configuration"
	TokenPath         = "/oauth2/access_token"
	JWKSPath          = "/oauth2/v3/certs"
)

// Document is the OpenID Provider Metadata (OIDC Discovery 1.0 section 3).
// Field order is fixed so repeated encodings are byte-identical.
type Document struct {
	Issuer                            string   `json:"issuer"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	JWKSURI                           string   `json:"jwks_uri"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	ClaimsSupported                   []string `json:"claims_supported"`
}

// KeySource lists the keys to publish.
type KeySource interface {
	VerificationKeys() []keyring.VerificationKey
}

var _ KeySource = (*keyring.KeyRing)(nil)

type Publisher struct {
	keys   KeySource
	issuer string
	scopes []string
}

type Option func(*Publisher)

// WithIssuer fixes the issuer. Without it the issuer is the request's base URL.
func WithIssuer(issuer string) Option {
	return func(p *Publisher) {
		p.issuer = strings.TrimSuffix(issuer, "/")
	}
}

// WithScopesSupported advertises the scopes known to the provisioned realms.
func WithScopesSupported(scopes []string) Option {
	return func(p *Publisher) {
		p.scopes = append([]string(nil), scopes...)
		sort.Strings(p.scopes)
	}
}

func NewPublisher(keySource KeySource, opts ...Option) *Publisher {
	p := &Publisher{keys: keySource}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// EffectiveScheme is the first X-Forwarded-Proto value when present, otherwise the
// scheme of the connection itself.
func EffectiveScheme(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if scheme := strings.ToLower(strings.TrimSpace(first)); scheme != "" {
			return scheme
		}
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// BaseURL is scheme://host for r.
func BaseURL(r *http.Request) string {
	return EffectiveScheme(r) + "://" + r.Host
}

// Issuer returns the configured issuer, or the request's base URL when none is set.
func (p *Publisher) Issuer(r *http.Request) string {
	if p.issuer != "" {
		return p.issuer
	}
	return BaseURL(r)
}

// Document builds the discovery document for the given scheme and host.
func (p *Publisher) Document(scheme, host string) Document {
	base := scheme + "://" + host
	issuer := p.issuer
	if issuer == "" {
		issuer = base
	}

	grantTypes := make([]string, 0, len(oauth2.SupportedGrantTypes))
	for _, g := range oauth2.SupportedGrantTypes {
		grantTypes = append(grantTypes, string(g))
	}

	return Document{
		Issuer:                            issuer,
		TokenEndpoint:                     base + TokenPath,
		JWKSURI:                           base + JWKSPath,
		GrantTypesSupported:               grantTypes,
		ResponseTypesSupported:            []string{"token", "id_token"},
		SubjectTypesSupported:             []string{"public"},
		IDTokenSigningAlgValuesSupported:  p.algorithms(),
		TokenEndpointAuthMethodsSupported: []string{"client_secret_basic", "client_secret_post"},
		ScopesSupported:                   p.scopes,
		ClaimsSupported:                   []string{"iss", "sub", "realm", "scope", "iat", "exp", "jti"},
	}
}

// JWKS serialises the public half of every published key.
func (p *Publisher) JWKS() jose.JSONWebKeySet {
	vks := p.keys.VerificationKeys()
	set := jose.JSONWebKeySet{Keys: make([]jose.JSONWebKey, 0, len(vks))}
	for _, vk := range vks {
		set.Keys = append(set.Keys, vk.JWK())
	}
	return set
}

func (p *Publisher) algorithms() []string {
	seen := map[string]struct{}{}
	algs := []string{}
	for _, vk := range p.keys.VerificationKeys() {
		if _, ok := seen[vk.Algorithm]; ok {
			continue
		}
		seen[vk.Algorithm] = struct{}{}
		algs = append(algs, vk.Algorithm)
	}
	sort.Strings(algs)
	return algs
}
