package oauth2

// TokenBearer is the only token type issued.
const TokenBearer = "Bearer"

// TokenResponse is the body returned by the token endpoint (RFC 6749 section 5.1)
// extended with the realm the principal was authenticated in.
type TokenResponse struct {
	// AccessToken is the signed JWT.
	// Usage: Include in Authorization header: "Bearer <access_token>"
	AccessToken *string `json:"access_token,omitempty"`

	// IdToken carries the same signed string as AccessToken in this deployment.
	// Relying parties expecting nonce or azp claims will not find them.
	IdToken *string `json:"id_token,omitempty"`

	// TokenType is always "Bearer".
	TokenType string `json:"token_type,omitempty"`

	// Scope is the space separated list of granted scopes.
	// Example: "uid name"
	Scope string `json:"scope"`

	// Realm the principal was authenticated in.
	// Example: "/test"
	Realm string `json:"realm,omitempty"`

	// ExpiresIn is the token lifetime in seconds.
	// Note: This is a hint - actual expiration is in the JWT's "exp" claim
	ExpiresIn int64 `json:"expires_in,omitempty"`
}

// ErrorResponse is the OAuth2 error body (RFC 6749 section 5.2).
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}
