package credentials

import (
	"fmt"
	"strings"

	"github.com/jrsteele09/planb-provider/internal/errors"
	"github.com/jrsteele09/planb-provider/oauth2"
)

// Grant is a token request for one of the supported grant types.
// The set is closed: only PasswordGrant and ClientCredentialsGrant implement it.
type Grant interface {
	Type() oauth2.GrantType
	RealmID() string
	RequestedScopes() []string
	grant()
}

// PasswordGrant is the resource owner password credentials grant.
type PasswordGrant struct {
	Realm    string
	Username string
	Password string
	Scopes   []string
}

func (PasswordGrant) Type() oauth2.GrantType      { return oauth2.PasswordGrant }
func (g PasswordGrant) RealmID() string           { return g.Realm }
func (g PasswordGrant) RequestedScopes() []string { return g.Scopes }
func (PasswordGrant) grant()                      {}

// ClientCredentialsGrant authenticates a confidential client on its own behalf.
type ClientCredentialsGrant struct {
	Realm        string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

func (ClientCredentialsGrant) Type() oauth2.GrantType      { return oauth2.ClientCredentialsGrant }
func (g ClientCredentialsGrant) RealmID() string           { return g.Realm }
func (g ClientCredentialsGrant) RequestedScopes() []string { return g.Scopes }
func (ClientCredentialsGrant) grant()                      {}

// Request holds the raw token endpoint parameters before they are bound to a Grant.
type Request struct {
	GrantType string
	Realm     string
	Username  string
	Password  string
	ClientID  string
	Secret    string
	Scope     string
}

// ParseGrant binds a Request to its Grant. An empty or unknown grant type is
// errors.ErrInvalidGrantType, missing parameters are errors.ErrInvalidRequest.
func ParseGrant(req Request) (Grant, error) {
	grantType := oauth2.GrantType(req.GrantType)
	if !grantType.IsSupported() {
		if req.GrantType == "" {
			return nil, fmt.Errorf("%w: grant_type is required", errors.ErrInvalidGrantType)
		}
		return nil, fmt.Errorf("%w: %q", errors.ErrInvalidGrantType, req.GrantType)
	}

	if req.Realm == "" {
		return nil, fmt.Errorf("%w: realm is required", errors.ErrInvalidRequest)
	}
	scopes := ParseScope(req.Scope)

	switch grantType {
	case oauth2.PasswordGrant:
		if req.Username == "" || req.Password == "" {
			return nil, fmt.Errorf("%w: username and password are required", errors.ErrInvalidRequest)
		}
		return PasswordGrant{Realm: req.Realm, Username: req.Username, Password: req.Password, Scopes: scopes}, nil
	case oauth2.ClientCredentialsGrant:
		if req.ClientID == "" || req.Secret == "" {
			return nil, fmt.Errorf("%w: client_id and client_secret are required", errors.ErrInvalidRequest)
		}
		return ClientCredentialsGrant{Realm: req.Realm, ClientID: req.ClientID, ClientSecret: req.Secret, Scopes: scopes}, nil
	}
	return nil, fmt.Errorf("%w: %q", errors.ErrInvalidGrantType, req.GrantType)
}

// ParseScope splits a space separated scope parameter.
func ParseScope(scope string) []string {
	return strings.Fields(scope)
}
