package clients

import (
	"fmt"
	"strings"

	"github.com/jrsteele09/planb-provider/internal/secrets"
)

// Client is a confidential service client known to a single realm.
type Client struct {
	ID         string   `json:"id"`
	SecretHash string   `json:"-"`
	Scopes     []string `json:"scopes"` // Allowed scopes for this client
}

// Validate checks the fields a store needs before persisting the client.
func (c *Client) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("client id is required")
	}
	if !secrets.IsHash(c.SecretHash) {
		return fmt.Errorf("client %s: secret hash is not a supported hash", c.ID)
	}
	return nil
}

// SetSecret hashes secret with bcrypt and stores it on the client.
func (c *Client) SetSecret(secret string) error {
	hash, err := secrets.Hash(secret)
	if err != nil {
		return err
	}
	c.SecretHash = hash
	return nil
}

// CheckSecret reports whether secret matches the stored hash.
func (c *Client) CheckSecret(secret string) bool {
	return secrets.Verify(secret, c.SecretHash)
}
