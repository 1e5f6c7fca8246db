package jwt

import (
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/planb-provider/credentials"
	"github.com/jrsteele09/planb-provider/internal/errors"
	"github.com/jrsteele09/planb-provider/internal/utils"
	"github.com/jrsteele09/planb-provider/oauth2"
	"github.com/jrsteele09/planb-provider/token/keyring"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Claims is the claim set of every token the provider signs.
type Claims struct {
	jwtlib.RegisteredClaims
	Realm string `json:"realm"`
	Scope string `json:"scope"` // space separated
}

// Scopes splits the scope claim.
func (c *Claims) Scopes() []string {
	return strings.Fields(c.Scope)
}

// SigningKeySource provides the key new tokens are signed with.
type SigningKeySource interface {
	SigningKey() (*keyring.SigningKey, error)
}

var _ SigningKeySource = (*keyring.KeyRing)(nil)

// Issuer turns an authenticated principal into a signed token response.
type Issuer struct {
	keys     SigningKeySource
	issuer   string
	lifetime time.Duration
}

type IssuerOption func(*Issuer)

// WithIssuer sets the iss claim used by Issue.
func WithIssuer(issuer string) IssuerOption {
	return func(i *Issuer) {
		i.issuer = strings.TrimSuffix(issuer, "/")
	}
}

func WithTokenLifetime(lifetime time.Duration) IssuerOption {
	return func(i *Issuer) {
		i.lifetime = lifetime
	}
}

func NewIssuer(keySource SigningKeySource, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		keys:     keySource,
		lifetime: 8 * time.Hour,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Lifetime is the gap between iat and exp.
func (i *Issuer) Lifetime() time.Duration {
	return i.lifetime
}

// Issue signs a token for p using the configured issuer.
func (i *Issuer) Issue(p *credentials.Principal) (*oauth2.TokenResponse, error) {
	return i.IssueAs(i.issuer, p)
}

// IssueAs signs a token for p with an explicit iss claim. The server uses it when
// the issuer is derived from the request rather than configured.
// The same string is returned as access and id token.
func (i *Issuer) IssueAs(issuer string, p *credentials.Principal) (*oauth2.TokenResponse, error) {
	claims, err := i.buildClaims(issuer, p)
	if err != nil {
		return nil, err
	}

	key, err := i.keys.SigningKey()
	if err != nil {
		return nil, err
	}

	signed, err := key.Sign(claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrClaimConstruction, err)
	}

	return &oauth2.TokenResponse{
		AccessToken: utils.Ptr(signed),
		IdToken:     utils.Ptr(signed),
		TokenType:   oauth2.TokenBearer,
		Scope:       claims.Scope,
		Realm:       claims.Realm,
		ExpiresIn:   int64(i.lifetime / time.Second),
	}, nil
}

func (i *Issuer) buildClaims(issuer string, p *credentials.Principal) (*Claims, error) {
	switch {
	case p == nil:
		return nil, fmt.Errorf("%w: nil principal", errors.ErrClaimConstruction)
	case p.Subject == "":
		return nil, fmt.Errorf("%w: empty subject", errors.ErrClaimConstruction)
	case p.Realm == "":
		return nil, fmt.Errorf("%w: empty realm", errors.ErrClaimConstruction)
	case issuer == "":
		return nil, fmt.Errorf("%w: empty issuer", errors.ErrClaimConstruction)
	case i.lifetime <= 0:
		return nil, fmt.Errorf("%w: non-positive lifetime %s", errors.ErrClaimConstruction, i.lifetime)
	}

	now := NowTimeFunc().Truncate(time.Second)
	return &Claims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    issuer,
			Subject:   p.Subject,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(i.lifetime)),
			ID:        uuid.New().String(),
		},
		Realm: p.Realm,
		Scope: strings.Join(p.Scopes, " "),
	}, nil
}
