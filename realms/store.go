package realms

import (
	"context"
	"fmt"

	"github.com/jrsteele09/planb-provider/clients"
	"github.com/jrsteele09/planb-provider/internal/errors"
	"github.com/jrsteele09/planb-provider/internal/secrets"
	"github.com/jrsteele09/planb-provider/users"
)

// Store validates credentials for a realm and returns the principal's entitled scopes.
// A mismatch, including an unknown principal, is errors.ErrInvalidCredentials.
// Any other failure is treated as the store being unavailable.
type Store interface {
	ValidateUser(ctx context.Context, realm, username, password string) ([]string, error)
	ValidateClient(ctx context.Context, realm, clientID, secret string) ([]string, error)
}

var _ Store = (*RepoStore)(nil)

// RepoStore implements Store on top of user and client repositories.
type RepoStore struct {
	users   users.Repo
	clients clients.Repo
}

func NewRepoStore(userRepo users.Repo, clientRepo clients.Repo) *RepoStore {
	return &RepoStore{
		users:   userRepo,
		clients: clientRepo,
	}
}

func (s *RepoStore) ValidateUser(ctx context.Context, realm, username, password string) ([]string, error) {
	user, err := s.users.Get(ctx, realm, username)
	if errors.Is(err, errors.ErrNotFound) {
		secrets.VerifyMissing(password)
		return nil, errors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("%w: user lookup: %v", errors.ErrCredentialStoreUnavailable, err)
	}
	if !user.CheckPassword(password) || user.Disabled {
		return nil, errors.ErrInvalidCredentials
	}
	return append([]string(nil), user.Scopes...), nil
}

func (s *RepoStore) ValidateClient(ctx context.Context, realm, clientID, secret string) ([]string, error) {
	client, err := s.clients.Get(ctx, realm, clientID)
	if errors.Is(err, errors.ErrNotFound) {
		secrets.VerifyMissing(secret)
		return nil, errors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("%w: client lookup: %v", errors.ErrCredentialStoreUnavailable, err)
	}
	if !client.CheckSecret(secret) {
		return nil, errors.ErrInvalidCredentials
	}
	return append([]string(nil), client.Scopes...), nil
}
