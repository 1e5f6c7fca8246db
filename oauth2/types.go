package oauth2

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
// Determines what credentials are required to obtain tokens.
type GrantType string

const (
	// PasswordGrant exchanges a resource owner's username and password for tokens.
	// Token request includes: realm, username, password, scope
	PasswordGrant GrantType = "password"

	// ClientCredentialsGrant allows machine-to-machine authentication.
	// Token request includes: realm, client_id, client_secret, scope
	// Example: Microservice calling another microservice
	ClientCredentialsGrant GrantType = "client_credentials"
)

// SupportedGrantTypes lists the grants accepted by the token endpoint.
var SupportedGrantTypes = []GrantType{PasswordGrant, ClientCredentialsGrant}

// IsSupported reports whether g is one of SupportedGrantTypes.
func (g GrantType) IsSupported() bool {
	for _, s := range SupportedGrantTypes {
		if s == g {
			return true
		}
	}
	return false
}

// Error codes from RFC 6749 section 5.2 and RFC 8628 section 3.5.
const (
	ErrorInvalidRequest         = "invalid_request"
	ErrorInvalidClient          = "invalid_client"
	ErrorInvalidGrant           = "invalid_grant"
	ErrorInvalidScope           = "invalid_scope"
	ErrorUnsupportedGrantType   = "unsupported_grant_type"
	ErrorServerError            = "server_error"
	ErrorTemporarilyUnavailable = "temporarily_unavailable"
	ErrorSlowDown               = "slow_down"
)

// Form field names used by the token endpoint.
const (
	FieldRealm        = "realm"
	FieldGrantType    = "grant_type"
	FieldUsername     = "username"
	FieldPassword     = "password"
	FieldClientID     = "client_id"
	FieldClientSecret = "client_secret"
	FieldScope        = "scope"
)
