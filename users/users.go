package users

import (
	"fmt"
	"strings"

	"github.com/jrsteele09/planb-provider/internal/secrets"
)

// User is a resource owner known to a single realm.
type User struct {
	Username     string   `json:"username"`
	PasswordHash string   `json:"-"`      // bcrypt or argon2id, never serialised
	Scopes       []string `json:"scopes"` // Entitled scopes
	Disabled     bool     `json:"disabled,omitempty"`
}

// Validate checks the fields a store needs before persisting the user.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return fmt.Errorf("username is required")
	}
	if !secrets.IsHash(u.PasswordHash) {
		return fmt.Errorf("user %s: password hash is not a supported hash", u.Username)
	}
	return nil
}

// SetPassword hashes password with bcrypt and stores it on the user.
func (u *User) SetPassword(password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

// CheckPassword reports whether password matches the stored hash.
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.PasswordHash)
}

func HashPassword(password string) (string, error) {
	return secrets.Hash(password)
}

func CheckPasswordHash(password, hash string) bool {
	return secrets.Verify(password, hash)
}
