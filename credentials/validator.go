// Package credentials authenticates token requests against a realm and decides the granted scopes.
package credentials

import (
	"context"
	"fmt"

	"github.com/jrsteele09/planb-provider/internal/errors"
	"github.com/jrsteele09/planb-provider/realms"
)

// PrincipalKind tells a user apart from a client.
type PrincipalKind string

const (
	PrincipalUser   PrincipalKind = "user"
	PrincipalClient PrincipalKind = "client"
)

// Principal is an authenticated subject. It lives for a single request.
type Principal struct {
	Realm   string
	Subject string
	Kind    PrincipalKind
	Scopes  []string
}

// RealmResolver is the part of realms.Registry the validator depends on.
type RealmResolver interface {
	Resolve(realmID string) (*realms.Handle, error)
}

var _ RealmResolver = (*realms.Registry)(nil)

type Validator struct {
	realms RealmResolver
}

func NewValidator(resolver RealmResolver) *Validator {
	return &Validator{realms: resolver}
}

// Validate authenticates the grant and intersects its requested scopes with the
// principal's entitlement.
func (v *Validator) Validate(ctx context.Context, g Grant) (*Principal, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: grant is nil", errors.ErrInvalidGrantType)
	}

	handle, err := v.realms.Resolve(g.RealmID())
	if err != nil {
		return nil, err
	}

	var (
		subject  string
		kind     PrincipalKind
		entitled []string
	)
	switch grant := g.(type) {
	case PasswordGrant:
		subject, kind = grant.Username, PrincipalUser
		entitled, err = handle.ValidateUser(ctx, grant.Username, grant.Password)
	case ClientCredentialsGrant:
		subject, kind = grant.ClientID, PrincipalClient
		entitled, err = handle.ValidateClient(ctx, grant.ClientID, grant.ClientSecret)
	default:
		return nil, fmt.Errorf("%w: %T", errors.ErrInvalidGrantType, g)
	}
	if err != nil {
		return nil, err
	}

	granted, err := GrantScopes(g.RequestedScopes(), entitled)
	if err != nil {
		return nil, err
	}

	return &Principal{
		Realm:   handle.Realm(),
		Subject: subject,
		Kind:    kind,
		Scopes:  granted,
	}, nil
}

// GrantScopes returns the scopes to put in the token.
// An empty request grants everything the principal is entitled to.
// Duplicates collapse and first-seen order is kept.
func GrantScopes(requested, entitled []string) ([]string, error) {
	allowed := make(map[string]struct{}, len(entitled))
	for _, s := range entitled {
		allowed[s] = struct{}{}
	}

	if len(requested) == 0 {
		return dedupe(entitled), nil
	}

	for _, s := range requested {
		if _, ok := allowed[s]; !ok {
			return nil, fmt.Errorf("%w: %q is not permitted", errors.ErrInvalidScope, s)
		}
	}
	return dedupe(requested), nil
}

func dedupe(scopes []string) []string {
	seen := make(map[string]struct{}, len(scopes))
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
