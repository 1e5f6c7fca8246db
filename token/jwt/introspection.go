package jwt

import (
	"fmt"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/planb-provider/internal/errors"
	"github.com/jrsteele09/planb-provider/token/keyring"
)

// VerificationKeySource looks up published keys by kid.
type VerificationKeySource interface {
	VerificationKey(kid string) (keyring.VerificationKey, bool)
}

var _ VerificationKeySource = (*keyring.KeyRing)(nil)

// Verifier checks tokens against the keys currently published in the JWKS.
type Verifier struct {
	keys   VerificationKeySource
	issuer string
}

// NewVerifier creates a verifier. An empty issuer skips the iss check.
func NewVerifier(keySource VerificationKeySource, issuer string) *Verifier {
	return &Verifier{
		keys:   keySource,
		issuer: strings.TrimSuffix(issuer, "/"),
	}
}

// Verify parses rawToken, selects the key named by its kid header and validates
// signature, expiry and issuer. All failures wrap errors.ErrInvalidToken.
func (v *Verifier) Verify(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, fmt.Errorf("%w: empty token", errors.ErrInvalidToken)
	}

	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodRS256.Alg(), jwtlib.SigningMethodES256.Alg()}),
		jwtlib.WithTimeFunc(NowTimeFunc),
		jwtlib.WithIssuedAt(),
		jwtlib.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwtlib.ParseWithClaims(rawToken, claims, v.keyFunc, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%w: token not valid", errors.ErrInvalidToken)
	}
	return claims, nil
}

func (v *Verifier) keyFunc(token *jwtlib.Token) (any, error) {
	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		return nil, fmt.Errorf("missing kid header")
	}
	key, ok := v.keys.VerificationKey(kid)
	if !ok {
		return nil, fmt.Errorf("unknown kid %q", kid)
	}
	if token.Method.Alg() != key.Algorithm {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return key.PublicKey, nil
}
