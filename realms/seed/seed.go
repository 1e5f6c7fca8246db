// Package seed provisions realms, users and clients from a YAML document.
//
//	realms:
//	  - id: /test
//	    users:
//	      - username: klaus
//	        password: test          # plaintext is hashed with bcrypt on load
//	        scopes: [uid, name]
//	    clients:
//	      - id: stups_kio
//	        secret: $argon2id$v=19$...   # pre-hashed values are stored as is
//	        scopes: [uid]
package seed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jrsteele09/planb-provider/clients"
	"github.com/jrsteele09/planb-provider/internal/secrets"
	"github.com/jrsteele09/planb-provider/realms"
	"github.com/jrsteele09/planb-provider/users"
	"gopkg.in/yaml.v3"
)

type File struct {
	Realms []Realm `yaml:"realms"`
}

type Realm struct {
	ID      string   `yaml:"id"`
	Users   []User   `yaml:"users"`
	Clients []Client `yaml:"clients"`
}

type User struct {
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	Scopes   []string `yaml:"scopes"`
	Disabled bool     `yaml:"disabled"`
}

type Client struct {
	ID     string   `yaml:"id"`
	Secret string   `yaml:"secret"`
	Scopes []string `yaml:"scopes"`
}

// Parse decodes a seed document, rejecting unknown fields.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	for _, realm := range f.Realms {
		if err := realms.ValidateRealmID(realm.ID); err != nil {
			return nil, err
		}
	}
	return &f, nil
}

func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Dev is the realm used when no seed file is configured.
func Dev() *File {
	return &File{Realms: []Realm{{
		ID: "/test",
		Users: []User{{
			Username: "klaus",
			Password: "test",
			Scopes:   []string{"uid", "name"},
		}},
	}}}
}

// RealmIDs returns the realm ids in document order.
func (f *File) RealmIDs() []string {
	ids := make([]string, 0, len(f.Realms))
	for _, r := range f.Realms {
		ids = append(ids, r.ID)
	}
	return ids
}

// Apply writes every user and client to the repositories.
func (f *File) Apply(ctx context.Context, userRepo users.Repo, clientRepo clients.Repo) error {
	for _, realm := range f.Realms {
		for _, u := range realm.Users {
			hash, err := hashIfPlain(u.Password)
			if err != nil {
				return fmt.Errorf("realm %s user %s: %w", realm.ID, u.Username, err)
			}
			user := &users.User{Username: u.Username, PasswordHash: hash, Scopes: u.Scopes, Disabled: u.Disabled}
			if err := userRepo.Upsert(ctx, realm.ID, user); err != nil {
				return fmt.Errorf("realm %s user %s: %w", realm.ID, u.Username, err)
			}
		}
		for _, c := range realm.Clients {
			hash, err := hashIfPlain(c.Secret)
			if err != nil {
				return fmt.Errorf("realm %s client %s: %w", realm.ID, c.ID, err)
			}
			client := &clients.Client{ID: c.ID, SecretHash: hash, Scopes: c.Scopes}
			if err := clientRepo.Upsert(ctx, realm.ID, client); err != nil {
				return fmt.Errorf("realm %s client %s: %w", realm.ID, c.ID, err)
			}
		}
	}
	return nil
}

func hashIfPlain(secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("empty secret")
	}
	if secrets.IsHash(secret) {
		return secret, nil
	}
	if strings.HasPrefix(secret, "$argon2id$") {
		return "", fmt.Errorf("malformed argon2id hash")
	}
	return secrets.Hash(secret)
}
