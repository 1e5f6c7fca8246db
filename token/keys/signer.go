package keys

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Sign serialises claims into a compact JWS with this key, setting the kid header.
func (kp *KeyPair) Sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(kp.SigningMethod(), claims)
	token.Header["kid"] = kp.KeyID

	signedToken, err := token.SignedString(kp.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token with key %s: %w", kp.KeyID, err)
	}
	return signedToken, nil
}
